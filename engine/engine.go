package engine

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"predictivecoder/logger"
	"predictivecoder/text"
	"predictivecoder/types"
)

// Engine coordinates suggestions for one editor buffer: it debounces edits,
// builds the request, hands it to the dispatcher and shows the result.
// All editor access happens on the event loop goroutine.
type Engine struct {
	editor     Editor
	settings   types.Settings
	clock      Clock
	config     EngineConfig
	presenter  *Presenter
	dispatcher *Dispatcher

	state     state
	mu        sync.RWMutex
	eventChan chan Event

	// Main context and cancel for the engine lifecycle
	mainCtx    context.Context
	mainCancel context.CancelFunc
	stopped    bool
	stopOnce   sync.Once
	restarts   atomic.Int32 // event loop panics recovered

	// Current cycle
	debounceTimer     Timer
	generation        uint64
	cycleLineBoundary bool
	cycleForced       bool
	pending           *Task

	lastLine int
}

// NewEngine creates an engine for editor. tracker and clock may be nil.
func NewEngine(editor Editor, completer Completer, settings types.Settings, config EngineConfig, clock Clock, tracker Tracker) *Engine {
	if clock == nil {
		clock = SystemClock
	}
	config = config.withDefaults()
	return &Engine{
		editor:     editor,
		settings:   settings,
		clock:      clock,
		config:     config,
		presenter:  NewPresenter(editor, tracker),
		dispatcher: NewDispatcher(completer, config.QueueSize, config.CompletionTimeout),
		state:      stateIdle,
		eventChan:  make(chan Event, 100),
		lastLine:   -1,
	}
}

func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}

	// Create main context for engine lifecycle
	e.mainCtx, e.mainCancel = context.WithCancel(ctx)
	if res, err := e.editor.Sync(); err == nil {
		e.lastLine = res.CaretLine
	}
	e.mu.Unlock()

	e.dispatcher.Start(e.mainCtx)
	go e.eventLoop(e.mainCtx)
	logger.Debug("engine started")
}

// Stop gracefully shuts down the engine and cleans up all resources. It is
// safe to call more than once and while a completion is in flight.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.mu.Lock()
		defer e.mu.Unlock()

		e.stopped = true
		e.stopDebounceTimer()
		e.dispatcher.Close()
		e.presenter.Clear()
		e.pending = nil
		e.state = stateIdle
		if e.mainCancel != nil {
			e.mainCancel()
		}
		close(e.eventChan)

		logger.Debug("engine stopped")
	})
}

func (e *Engine) autoSuggestActive() bool {
	return e.settings.Enabled() && e.settings.AutoSuggest()
}

// processChange syncs the editor and starts a cycle when the change
// qualifies. Edits that add or remove a line break, or caret motion to
// another line, are line-boundary triggers.
func (e *Engine) processChange() {
	res, err := e.editor.Sync()
	if err != nil {
		logger.Warn("sync failed: %v", err)
		return
	}
	if !e.autoSuggestActive() {
		e.lastLine = res.CaretLine
		return
	}

	switch {
	case res.TextChanged:
		lineBoundary := res.LineBoundary || res.CaretLine != e.lastLine
		e.lastLine = res.CaretLine
		e.startCycle(lineBoundary)
	case res.CaretMoved && res.CaretLine != e.lastLine:
		e.lastLine = res.CaretLine
		e.startCycle(true)
	}
}

// startCycle supersedes the current cycle and arms the debounce timer.
func (e *Engine) startCycle(lineBoundary bool) {
	e.cancelCycle()
	e.presenter.Clear()

	e.cycleLineBoundary = lineBoundary
	e.cycleForced = false

	delay := e.settings.DebounceDelay()
	if lineBoundary {
		delay = e.config.LineBoundaryDebounce
	}
	gen := e.generation
	e.debounceTimer = e.clock.AfterFunc(delay, func() {
		e.Send(Event{Type: EventDebounceTimeout, Data: gen})
	})
	e.state = stateDebouncing
}

// cancelCycle stops the timer and invalidates any result still on its way.
func (e *Engine) cancelCycle() {
	e.stopDebounceTimer()
	e.generation++
	e.pending = nil
	e.state = stateIdle
}

func (e *Engine) stopDebounceTimer() {
	if e.debounceTimer != nil {
		e.debounceTimer.Stop()
		e.debounceTimer = nil
	}
}

// requestCompletion snapshots the caret and enqueues a request, or returns
// to Idle when the position does not qualify.
func (e *Engine) requestCompletion() {
	e.state = stateIdle

	doc := e.editor.Document()
	if doc == nil {
		return
	}
	offset := e.editor.CaretOffset()
	line, col := doc.Position(offset)
	fileType := e.editor.FileType()
	current := doc.Line(line)

	if !e.cycleLineBoundary && !e.cycleForced && offset != doc.LineEndOffset(line) {
		logger.Debug("caret not at end of line, skipping")
		return
	}
	logger.Debug("caret %d:%d block=%s comment=%v string=%v", line+1, col,
		text.AnalyzeBlock(doc, line).Kind, text.IsInComment(current, col, fileType), text.IsInString(current, col, fileType))

	prefix := text.CurrentLinePrefix(doc, line, col)
	if !e.cycleLineBoundary && !e.cycleForced && len(strings.TrimSpace(prefix)) < e.settings.MinChars() {
		logger.Debug("prefix shorter than %d chars, skipping", e.settings.MinChars())
		return
	}

	opts := text.OptionsFor(fileType, e.cycleLineBoundary, e.settings.MaxContextLength())
	contextText := text.BuildContext(doc, line, col, opts)
	if strings.TrimSpace(contextText) == "" {
		return
	}

	task := &Task{
		Request: types.CompletionRequest{
			Context:           contextText,
			CurrentLinePrefix: prefix,
			FileType:          fileType,
			IsNewLine:         e.cycleLineBoundary,
		},
		Anchor: offset,
	}
	task.Done = func(suggestion string) {
		e.Send(Event{Type: EventCompletionReady, Data: &completionResult{task: task, suggestion: suggestion}})
	}

	e.presenter.Clear()
	if err := e.dispatcher.Enqueue(task); err != nil {
		logger.Warn("enqueue failed: %v", err)
		return
	}
	e.pending = task
	e.state = stateDispatched
}

func (e *Engine) handleCompletionReady(result *completionResult) {
	e.pending = nil
	e.state = stateIdle

	if e.editor.CaretOffset() != result.task.Anchor {
		logger.Debug("caret moved since request, dropping suggestion")
		return
	}
	e.presenter.Show(result.task.Anchor, result.suggestion, result.task.Request.CurrentLinePrefix)
}

// afterOwnWrite records the caret line reached by an accept so the write
// does not count as the user moving to another line.
func (e *Engine) afterOwnWrite() {
	if res, err := e.editor.Sync(); err == nil {
		e.lastLine = res.CaretLine
	}
}
