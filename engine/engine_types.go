package engine

import (
	"context"
	"time"

	"predictivecoder/metrics"
	"predictivecoder/text"
	"predictivecoder/types"
)

// Editor defines the interface for buffer operations.
// Implemented by buffer.NvimBuffer for Neovim integration.
type Editor interface {
	// Sync refreshes the snapshot and reports what changed since the last
	// sync. Writes made through InsertText are part of the snapshot already.
	Sync() (*types.SyncResult, error)
	Document() *text.Document
	CaretOffset() int
	FileType() string
	// InsertText inserts s at offset and leaves the caret after it.
	InsertText(offset int, s string) error
	Reformat(start, end int) error
	ShowGhostText(offset int, s string) error
	ClearGhostText() error
}

// Completer produces suggestion candidates for a request.
// Implemented by provider.Provider.
type Completer interface {
	GetSuggestions(ctx context.Context, req types.CompletionRequest) []string
}

// Tracker receives suggestion lifecycle events.
// Implemented by metrics.Tracker.
type Tracker interface {
	TrackShown(m *metrics.CompletionMetrics)
	TrackAccepted(m *metrics.CompletionMetrics)
	TrackDisposed(m *metrics.CompletionMetrics)
}

type state int

const (
	stateIdle state = iota
	stateDebouncing
	stateDispatched
)

const (
	DefaultLineBoundaryDebounce = 50 * time.Millisecond
	DefaultCompletionTimeout    = 30 * time.Second
	DefaultQueueSize            = 64
)

type EngineConfig struct {
	LineBoundaryDebounce time.Duration
	CompletionTimeout    time.Duration
	QueueSize            int
}

func (c EngineConfig) withDefaults() EngineConfig {
	if c.LineBoundaryDebounce <= 0 {
		c.LineBoundaryDebounce = DefaultLineBoundaryDebounce
	}
	if c.CompletionTimeout <= 0 {
		c.CompletionTimeout = DefaultCompletionTimeout
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	return c
}
