package engine

import (
	"predictivecoder/logger"
)

// String returns a human-readable name for the state
func (s state) String() string {
	switch s {
	case stateIdle:
		return "Idle"
	case stateDebouncing:
		return "Debouncing"
	case stateDispatched:
		return "Dispatched"
	default:
		return "Unknown"
	}
}

// Transition represents a valid state transition in the engine's state machine
type Transition struct {
	From   state
	Event  EventType
	Action func(*Engine, Event)
}

// transitions defines all valid state transitions in the engine.
//
// State Machine:
//
//	          TextChanged / CaretMoved (new line)
//	+------+  ---------------------------------->  +------------+
//	| Idle |                                       | Debouncing |<--+ TextChanged / CaretMoved
//	+------+  <----------------------------------  +------------+---+ (timer restarted)
//	   ^        DebounceTimeout, request rejected        |
//	   |                                                 | DebounceTimeout
//	   |                                                 v
//	   |       CompletionReady (same task)         +------------+
//	   +-------------------------------------------| Dispatched |
//	                                               +------------+
//
//	Clear (any -> Idle). Refresh (any -> Debouncing, forced).
//	TextChanged / CaretMoved in Dispatched start a new cycle; the old result is dropped.
var transitions = []Transition{
	// From stateIdle
	{stateIdle, EventTextChanged, (*Engine).doProcessChange},
	{stateIdle, EventCaretMoved, (*Engine).doProcessChange},
	{stateIdle, EventAcceptLine, (*Engine).doAcceptLine},
	{stateIdle, EventAcceptFull, (*Engine).doAcceptFull},
	{stateIdle, EventClear, (*Engine).doClear},
	{stateIdle, EventRefresh, (*Engine).doRefresh},

	// From stateDebouncing
	{stateDebouncing, EventTextChanged, (*Engine).doProcessChange},
	{stateDebouncing, EventCaretMoved, (*Engine).doProcessChange},
	{stateDebouncing, EventDebounceTimeout, (*Engine).doDebounceTimeout},
	{stateDebouncing, EventClear, (*Engine).doClear},
	{stateDebouncing, EventRefresh, (*Engine).doRefresh},

	// From stateDispatched
	{stateDispatched, EventTextChanged, (*Engine).doProcessChange},
	{stateDispatched, EventCaretMoved, (*Engine).doProcessChange},
	{stateDispatched, EventClear, (*Engine).doClear},
	{stateDispatched, EventRefresh, (*Engine).doRefresh},
}

// transitionMap provides O(1) lookup for transitions by (state, event) pair
var transitionMap map[transitionKey]*Transition

type transitionKey struct {
	from  state
	event EventType
}

// findTransition looks up a valid transition for the given state and event.
// Returns nil if no valid transition exists.
func findTransition(from state, event EventType) *Transition {
	return transitionMap[transitionKey{from: from, event: event}]
}

// dispatch finds and executes the appropriate transition for an event.
// Returns true if a transition was found and executed, false otherwise.
// The action function performs the state change itself.
func (e *Engine) dispatch(event Event) bool {
	t := findTransition(e.state, event.Type)
	if t == nil {
		logger.Debug("no handler: state=%s event=%s", e.state, event.Type)
		return false
	}
	if t.Action != nil {
		t.Action(e, event)
	}
	return true
}

// Action functions for state transitions

func (e *Engine) doProcessChange(event Event) {
	e.processChange()
}

func (e *Engine) doDebounceTimeout(event Event) {
	gen, ok := event.Data.(uint64)
	if !ok || gen != e.generation {
		logger.Debug("ignoring stale debounce timeout")
		return
	}
	e.debounceTimer = nil
	e.requestCompletion()
}

func (e *Engine) doAcceptLine(event Event) {
	e.presenter.AcceptLine()
	e.afterOwnWrite()
}

func (e *Engine) doAcceptFull(event Event) {
	e.presenter.AcceptFull()
	e.afterOwnWrite()
}

func (e *Engine) doClear(event Event) {
	e.cancelCycle()
	e.presenter.Clear()
	e.dispatcher.ClearCurrent()
}

func (e *Engine) doRefresh(event Event) {
	if !e.settings.Enabled() {
		return
	}
	e.cancelCycle()
	e.presenter.Clear()
	e.dispatcher.ClearCurrent()
	e.cycleLineBoundary = false
	e.cycleForced = true
	e.requestCompletion()
}
