package types

import "time"

// CompletionRequest is everything the completion client needs for one
// suggestion. It is passed by value and never mutated after construction.
type CompletionRequest struct {
	Context           string
	CurrentLinePrefix string
	FileType          string
	// IsNewLine marks line-boundary triggers (newline inserted or deleted,
	// caret moved to another line) as opposed to edits within a line.
	IsNewLine bool
}

// Settings is the read side of the user-facing settings surface.
type Settings interface {
	Enabled() bool
	AutoSuggest() bool
	DebounceDelay() time.Duration
	MinChars() int
	MaxContextLength() int
}

// NotifyLevel mirrors vim.log.levels.
type NotifyLevel int

const (
	NotifyDebug NotifyLevel = 1
	NotifyInfo  NotifyLevel = 2
	NotifyWarn  NotifyLevel = 3
	NotifyError NotifyLevel = 4
)

// Notifier surfaces a message to the user. Implementations must not block
// the caller for long; callers invoke it from a goroutine anyway.
type Notifier interface {
	Notify(level NotifyLevel, message string)
}

// SyncResult reports what changed in an editor since its previous sync.
type SyncResult struct {
	TextChanged  bool
	ChangedLine  int // 0-indexed, valid when TextChanged
	LineBoundary bool
	CaretLine    int // 0-indexed
	CaretCol     int // byte column
	CaretMoved   bool
}
