package engine

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"predictivecoder/metrics"
	"predictivecoder/text"
	"predictivecoder/types"
)

// --- Mock implementations ---

// mockEditor keeps the "real" buffer the user edits and the snapshot the
// engine last synced, the way buffer.NvimBuffer does.
type mockEditor struct {
	mu       sync.Mutex
	lines    []string
	line     int
	col      int
	fileType string

	syncedLines []string
	syncedLine  int
	syncedCol   int

	// Track method calls
	syncCalls     int
	ghostText     string
	ghostOffset   int
	ghostVisible  bool
	showCalls     int
	clearCalls    int
	inserts       []string
	reformatCalls int

	syncPanic any
}

func newMockEditor(lines []string, line, col int) *mockEditor {
	e := &mockEditor{
		lines:    append([]string(nil), lines...),
		line:     line,
		col:      col,
		fileType: "go",
	}
	e.syncedLines = append([]string(nil), lines...)
	e.syncedLine, e.syncedCol = line, col
	return e
}

// typeText simulates the user typing s at the caret.
func (e *mockEditor) typeText(s string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	doc := text.NewDocument(e.lines)
	offset := doc.Offset(e.line, e.col)
	next := doc.Insert(offset, s)
	e.lines = next.Lines()
	e.line, e.col = next.Position(offset + len(s))
}

func (e *mockEditor) setSyncPanic(v any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.syncPanic = v
}

func (e *mockEditor) syncCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.syncCalls
}

// moveCaret simulates the user moving the caret.
func (e *mockEditor) moveCaret(line, col int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.line, e.col = line, col
}

func (e *mockEditor) Sync() (*types.SyncResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.syncCalls++
	if e.syncPanic != nil {
		panic(e.syncPanic)
	}

	res := &types.SyncResult{CaretLine: e.line, CaretCol: e.col}
	if change, ok := text.ClassifyChange(e.syncedLines, e.lines); ok {
		res.TextChanged = true
		res.ChangedLine = change.Line
		res.LineBoundary = change.LineBoundary
	}
	res.CaretMoved = e.line != e.syncedLine || e.col != e.syncedCol

	e.syncedLines = append([]string(nil), e.lines...)
	e.syncedLine, e.syncedCol = e.line, e.col
	return res, nil
}

func (e *mockEditor) Document() *text.Document {
	e.mu.Lock()
	defer e.mu.Unlock()
	return text.NewDocument(e.syncedLines)
}

func (e *mockEditor) CaretOffset() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return text.NewDocument(e.syncedLines).Offset(e.syncedLine, e.syncedCol)
}

func (e *mockEditor) FileType() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fileType
}

func (e *mockEditor) InsertText(offset int, s string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inserts = append(e.inserts, s)
	next := text.NewDocument(e.syncedLines).Insert(offset, s)
	e.lines = next.Lines()
	e.syncedLines = next.Lines()
	e.line, e.col = next.Position(offset + len(s))
	e.syncedLine, e.syncedCol = e.line, e.col
	return nil
}

func (e *mockEditor) Reformat(start, end int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reformatCalls++
	return nil
}

func (e *mockEditor) ShowGhostText(offset int, s string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.showCalls++
	e.ghostText = s
	e.ghostOffset = offset
	e.ghostVisible = true
	return nil
}

func (e *mockEditor) ClearGhostText() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clearCalls++
	e.ghostText = ""
	e.ghostVisible = false
	return nil
}

func (e *mockEditor) text() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return strings.Join(e.lines, "\n")
}

func (e *mockEditor) ghost() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ghostText, e.ghostVisible
}

// mockCompleter returns canned candidates. When gate is set, calls block
// until a value is sent on it.
type mockCompleter struct {
	mu         sync.Mutex
	candidates []string
	requests   []types.CompletionRequest
	gate       chan struct{}
	started    chan struct{}
	panicWith  any
}

func newMockCompleter(candidates ...string) *mockCompleter {
	return &mockCompleter{candidates: candidates, started: make(chan struct{}, 16)}
}

func (c *mockCompleter) GetSuggestions(ctx context.Context, req types.CompletionRequest) []string {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	gate := c.gate
	candidates := c.candidates
	panicWith := c.panicWith
	c.mu.Unlock()

	c.started <- struct{}{}
	if panicWith != nil {
		panic(panicWith)
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil
		}
	}
	return candidates
}

func (c *mockCompleter) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

func (c *mockCompleter) lastRequest() types.CompletionRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.requests) == 0 {
		return types.CompletionRequest{}
	}
	return c.requests[len(c.requests)-1]
}

type mockSettings struct {
	mu          sync.Mutex
	enabled     bool
	autoSuggest bool
	debounce    time.Duration
	minChars    int
	maxContext  int
}

func newMockSettings() *mockSettings {
	return &mockSettings{
		enabled:     true,
		autoSuggest: true,
		debounce:    100 * time.Millisecond,
		minChars:    3,
		maxContext:  1000,
	}
}

func (s *mockSettings) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

func (s *mockSettings) AutoSuggest() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoSuggest
}

func (s *mockSettings) DebounceDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.debounce
}

func (s *mockSettings) MinChars() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.minChars
}

func (s *mockSettings) MaxContextLength() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxContext
}

type mockTracker struct {
	mu       sync.Mutex
	shown    int
	accepted []metrics.CompletionMetrics
	disposed int
}

func (t *mockTracker) TrackShown(m *metrics.CompletionMetrics) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.shown++
}

func (t *mockTracker) TrackAccepted(m *metrics.CompletionMetrics) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.accepted = append(t.accepted, *m)
}

func (t *mockTracker) TrackDisposed(m *metrics.CompletionMetrics) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disposed++
}

type mockClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*mockTimer
}

func newMockClock() *mockClock {
	return &mockClock{
		now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (c *mockClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &mockTimer{
		fireTime: c.now.Add(d),
		f:        f,
	}
	c.timers = append(c.timers, t)
	return t
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	// Copy timers to avoid holding lock during callback
	var toFire, keep []*mockTimer
	for _, t := range c.timers {
		if !t.fireTime.After(c.now) {
			toFire = append(toFire, t)
		} else {
			keep = append(keep, t)
		}
	}
	c.timers = keep
	c.mu.Unlock()

	for _, t := range toFire {
		t.fire()
	}
}

type mockTimer struct {
	fireTime time.Time
	f        func()
	stopped  bool
	mu       sync.Mutex
}

func (t *mockTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	wasActive := !t.stopped
	t.stopped = true
	return wasActive
}

func (t *mockTimer) fire() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	f := t.f
	t.mu.Unlock()
	if f != nil {
		f()
	}
}

// --- Helper functions ---

// createTestEngine builds an engine whose dispatcher runs but whose event
// loop does not: tests feed events with handleEvent and pump.
func createTestEngine(t *testing.T, ed *mockEditor, comp *mockCompleter, settings *mockSettings) (*Engine, *mockClock) {
	t.Helper()
	clock := newMockClock()
	eng := NewEngine(ed, comp, settings, EngineConfig{
		LineBoundaryDebounce: 50 * time.Millisecond,
		CompletionTimeout:    2 * time.Second,
	}, clock, nil)

	ctx, cancel := context.WithCancel(context.Background())
	eng.mainCtx = ctx
	eng.mainCancel = cancel
	eng.dispatcher.Start(ctx)
	eng.lastLine = ed.line

	t.Cleanup(func() {
		comp.mu.Lock()
		if comp.gate != nil {
			close(comp.gate)
			comp.gate = nil
		}
		comp.mu.Unlock()
		eng.Stop()
		eng.dispatcher.Wait()
	})
	return eng, clock
}

// pump handles every event already queued.
func pump(eng *Engine) {
	for {
		select {
		case ev, ok := <-eng.eventChan:
			if !ok {
				return
			}
			eng.handleEvent(ev)
		default:
			return
		}
	}
}

// awaitEvent handles queued events until one of type typ was handled.
func awaitEvent(t *testing.T, eng *Engine, typ EventType) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-eng.eventChan:
			if !ok {
				t.Fatalf("event channel closed while waiting for %s", typ)
			}
			eng.handleEvent(ev)
			if ev.Type == typ {
				return
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", typ)
		}
	}
}

// awaitStarted waits until the completer received a call.
func awaitStarted(t *testing.T, comp *mockCompleter) {
	t.Helper()
	select {
	case <-comp.started:
	case <-time.After(2 * time.Second):
		t.Fatal("completer was not called")
	}
}
