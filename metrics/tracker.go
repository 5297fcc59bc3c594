package metrics

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"predictivecoder/logger"
)

const (
	EventShown    = "suggestion_shown"
	EventAccepted = "suggestion_accepted"
	EventDisposed = "suggestion_disposed"
)

const (
	SuggestionGhostText = "GHOST_TEXT"
)

// Record is one line of the local metrics journal.
type Record struct {
	EventType      string `json:"event_type"`
	SuggestionType string `json:"suggestion_type"`
	FileType       string `json:"file_type,omitempty"`
	Additions      int    `json:"additions"`
	AutocompleteID string `json:"autocomplete_id"`
	Lifespan       *int64 `json:"lifespan,omitempty"`
	Full           bool   `json:"full,omitempty"`
	DeviceID       string `json:"device_id"`
	Time           string `json:"time"`
}

// CompletionMetrics follows one displayed suggestion.
type CompletionMetrics struct {
	ID        string
	FileType  string
	Additions int // lines inserted by the event being tracked
	Full      bool
	ShownAt   time.Time
}

// NewCompletionMetrics starts tracking a suggestion of the given size.
func NewCompletionMetrics(fileType string, lines int) *CompletionMetrics {
	return &CompletionMetrics{
		ID:        uuid.NewString(),
		FileType:  fileType,
		Additions: lines,
		ShownAt:   time.Now(),
	}
}

// Tracker counts suggestion lifecycle events and journals them locally.
// Nothing is sent over the network.
type Tracker struct {
	deviceID string

	mu     sync.Mutex
	out    io.Writer
	counts map[string]int
}

// NewTracker creates a tracker writing JSON lines to out. A nil out only
// counts.
func NewTracker(dataDir string, out io.Writer) *Tracker {
	return &Tracker{
		deviceID: loadOrCreateDeviceID(dataDir),
		out:      out,
		counts:   make(map[string]int),
	}
}

func (t *Tracker) TrackShown(m *CompletionMetrics) {
	t.record(&Record{
		EventType:      EventShown,
		SuggestionType: SuggestionGhostText,
		FileType:       m.FileType,
		Additions:      m.Additions,
		AutocompleteID: m.ID,
	})
}

func (t *Tracker) TrackAccepted(m *CompletionMetrics) {
	t.record(&Record{
		EventType:      EventAccepted,
		SuggestionType: SuggestionGhostText,
		FileType:       m.FileType,
		Additions:      m.Additions,
		AutocompleteID: m.ID,
		Full:           m.Full,
	})
}

func (t *Tracker) TrackDisposed(m *CompletionMetrics) {
	lifespan := time.Since(m.ShownAt).Milliseconds()
	t.record(&Record{
		EventType:      EventDisposed,
		SuggestionType: SuggestionGhostText,
		FileType:       m.FileType,
		Additions:      m.Additions,
		AutocompleteID: m.ID,
		Lifespan:       &lifespan,
	})
}

// Count returns how many events of eventType were tracked.
func (t *Tracker) Count(eventType string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[eventType]
}

// DeviceID returns the persistent installation id.
func (t *Tracker) DeviceID() string { return t.deviceID }

// LogSummary writes the event counts to the log.
func (t *Tracker) LogSummary() {
	t.mu.Lock()
	defer t.mu.Unlock()
	logger.Info("metrics: shown=%d accepted=%d disposed=%d",
		t.counts[EventShown], t.counts[EventAccepted], t.counts[EventDisposed])
}

func (t *Tracker) record(rec *Record) {
	rec.DeviceID = t.deviceID
	rec.Time = time.Now().UTC().Format(time.RFC3339Nano)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[rec.EventType]++

	if t.out == nil {
		logger.Debug("metrics: %s (id=%s)", rec.EventType, rec.AutocompleteID)
		return
	}
	body, err := json.Marshal(rec)
	if err != nil {
		logger.Debug("metrics: marshal error: %v", err)
		return
	}
	if _, err := t.out.Write(append(body, '\n')); err != nil {
		logger.Debug("metrics: write error: %v", err)
		return
	}
	logger.Debug("metrics: recorded %s (id=%s)", rec.EventType, rec.AutocompleteID)
}

func loadOrCreateDeviceID(dataDir string) string {
	if dataDir == "" {
		return uuid.NewString()
	}

	idPath := filepath.Join(dataDir, "device_id")

	data, err := os.ReadFile(idPath)
	if err == nil {
		id := strings.TrimSpace(string(data))
		if _, err := uuid.Parse(id); err == nil {
			return id
		}
	}

	id := uuid.NewString()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		logger.Warn("metrics: could not create data dir %s: %v", dataDir, err)
		return id
	}
	if err := os.WriteFile(idPath, []byte(id), 0o644); err != nil {
		logger.Warn("metrics: could not write device_id: %v", err)
	}
	return id
}
