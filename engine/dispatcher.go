package engine

import (
	"context"
	"errors"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"predictivecoder/logger"
	"predictivecoder/types"
)

var (
	ErrQueueClosed = errors.New("task queue closed")
	ErrQueueFull   = errors.New("task queue full")
)

// Task is one queued completion request. Done is called with the first
// candidate when the call yields one.
type Task struct {
	Request types.CompletionRequest
	Anchor  int
	Done    func(suggestion string)
}

// Dispatcher serializes completion requests for one session. A single
// consumer drains the queue in order; requests that repeat the previous
// line prefix are skipped, and requests arriving while a call is in flight
// are dropped.
type Dispatcher struct {
	completer Completer
	timeout   time.Duration
	queue     chan *Task

	inProgress atomic.Bool
	skipped    atomic.Int64
	dropped    atomic.Int64

	mu         sync.Mutex
	lastPrefix string
	hasLast    bool
	current    string

	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewDispatcher(completer Completer, queueSize int, timeout time.Duration) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if timeout <= 0 {
		timeout = DefaultCompletionTimeout
	}
	return &Dispatcher{
		completer: completer,
		timeout:   timeout,
		queue:     make(chan *Task, queueSize),
		closed:    make(chan struct{}),
	}
}

// Start runs the consumer until ctx is done or the dispatcher is closed.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.run(ctx)
	}()
}

// Enqueue adds a task without blocking.
func (d *Dispatcher) Enqueue(t *Task) error {
	select {
	case <-d.closed:
		return ErrQueueClosed
	default:
	}
	select {
	case d.queue <- t:
		return nil
	case <-d.closed:
		return ErrQueueClosed
	default:
		return ErrQueueFull
	}
}

// Close stops the consumer. Tasks still queued are discarded. Close is
// idempotent.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.closed)
	})
}

// Wait blocks until the consumer and any in-flight call have returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// CurrentSuggestion returns the last non-blank suggestion received.
func (d *Dispatcher) CurrentSuggestion() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// ClearCurrent forgets the current suggestion and the previous prefix, so
// the next request is never treated as a duplicate.
func (d *Dispatcher) ClearCurrent() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.current = ""
	d.lastPrefix = ""
	d.hasLast = false
}

// InProgress reports whether a completion call is running.
func (d *Dispatcher) InProgress() bool {
	return d.inProgress.Load()
}

// Stats returns how many tasks were skipped as duplicates and how many were
// dropped because a call was in flight.
func (d *Dispatcher) Stats() (skipped, dropped int64) {
	return d.skipped.Load(), d.dropped.Load()
}

func (d *Dispatcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.closed:
			return
		case t := <-d.queue:
			d.process(ctx, t)
		}
	}
}

func (d *Dispatcher) process(ctx context.Context, t *Task) {
	prefix := t.Request.CurrentLinePrefix

	d.mu.Lock()
	if d.hasLast && d.lastPrefix == prefix {
		d.mu.Unlock()
		d.skipped.Add(1)
		logger.Debug("dispatcher: skipping duplicate request for %q", prefix)
		return
	}
	d.lastPrefix = prefix
	d.hasLast = true
	d.mu.Unlock()

	if !d.inProgress.CompareAndSwap(false, true) {
		d.dropped.Add(1)
		logger.Debug("dispatcher: request in progress, dropping %q", prefix)
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.inProgress.Store(false)
		defer func() {
			if r := recover(); r != nil {
				logger.Error("dispatcher: completion panic: %v\n%s", r, debug.Stack())
			}
		}()
		d.call(ctx, t)
	}()
}

func (d *Dispatcher) call(ctx context.Context, t *Task) {
	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	candidates := d.completer.GetSuggestions(callCtx, t.Request)
	if len(candidates) == 0 || strings.TrimSpace(candidates[0]) == "" {
		logger.Debug("dispatcher: empty suggestion for %q", t.Request.CurrentLinePrefix)
		return
	}
	if ctx.Err() != nil || d.isClosed() {
		return
	}

	suggestion := candidates[0]
	d.mu.Lock()
	d.current = suggestion
	d.mu.Unlock()

	if t.Done != nil {
		t.Done(suggestion)
	}
}

func (d *Dispatcher) isClosed() bool {
	select {
	case <-d.closed:
		return true
	default:
		return false
	}
}
