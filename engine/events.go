package engine

import (
	"context"
	"runtime/debug"

	"predictivecoder/logger"
)

// EventType represents the type of event in the engine
type EventType string

// Event type constants
const (
	EventTextChanged     EventType = "text_changed"
	EventCaretMoved      EventType = "caret_moved"
	EventAcceptLine      EventType = "accept_line"
	EventAcceptFull      EventType = "accept_full"
	EventClear           EventType = "clear"
	EventRefresh         EventType = "refresh"
	EventDebounceTimeout EventType = "debounce_timeout"
	EventCompletionReady EventType = "completion_ready"
)

// Event represents an event in the engine
type Event struct {
	Type EventType
	Data any
}

// completionResult is the payload of EventCompletionReady.
type completionResult struct {
	task       *Task
	suggestion string
}

var eventTypeMap map[string]EventType

func init() {
	eventTypeMap = buildEventTypeMap()
	transitionMap = make(map[transitionKey]*Transition)
	for i := range transitions {
		t := &transitions[i]
		key := transitionKey{from: t.From, event: t.Event}
		transitionMap[key] = t
	}
}

func buildEventTypeMap() map[string]EventType {
	eventMap := make(map[string]EventType)

	// Internal events are not accepted from the editor.
	editorEventTypes := []EventType{
		EventTextChanged,
		EventCaretMoved,
		EventAcceptLine,
		EventAcceptFull,
		EventClear,
		EventRefresh,
	}

	for _, eventType := range editorEventTypes {
		eventMap[string(eventType)] = eventType
	}

	return eventMap
}

// EventTypeFromString converts a string to EventType
func EventTypeFromString(s string) EventType {
	if eventType, exists := eventTypeMap[s]; exists {
		return eventType
	}
	return ""
}

// Send queues an event for the event loop. Events sent after Stop, or while
// the queue is full, are dropped.
func (e *Engine) Send(event Event) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.stopped {
		return
	}
	select {
	case e.eventChan <- event:
	default:
		logger.Warn("event queue full, dropping %s", event.Type)
	}
}

const maxEventLoopRestarts = 3

func (e *Engine) eventLoop(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			restarts := e.restarts.Add(1)
			logger.Error("event loop panic [%d/%d]: %v\n%s",
				restarts, maxEventLoopRestarts, r, debug.Stack())

			if int(restarts) < maxEventLoopRestarts {
				e.eventLoop(ctx)
			} else {
				logger.Error("max event loop restarts reached, stopping engine")
				go e.Stop()
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-e.eventChan:
			if !ok {
				return
			}
			e.handleEvent(event)
		}
	}
}

func (e *Engine) handleEvent(event Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return
	}

	defer logger.Trace("engine.handleEvent")()
	logger.Debug("handle event: %v (state=%s)", event.Type, e.state)
	defer func() {
		logger.Debug("after event: %v (state=%s)", event.Type, e.state)
	}()

	// Background results first, then the transition table
	if e.handleBackgroundEvent(event) {
		return
	}
	e.dispatch(event)
}

// handleBackgroundEvent handles async completion results.
func (e *Engine) handleBackgroundEvent(event Event) bool {
	if event.Type != EventCompletionReady {
		return false
	}
	result, ok := event.Data.(*completionResult)
	if !ok || e.state != stateDispatched || result.task != e.pending {
		logger.Debug("dropping stale completion")
		return true
	}
	e.handleCompletionReady(result)
	return true
}
