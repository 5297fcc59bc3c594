package session

import (
	"context"
	"fmt"
	"sync"

	"predictivecoder/engine"
	"predictivecoder/logger"
	"predictivecoder/types"

	"github.com/neovim/go-client/nvim"
)

// HandlerName is the RPC notification the editor plugin sends.
const HandlerName = "predictivecoder_event"

// Session-level events handled by the manager itself.
const (
	EventBufEnter  = "buf_enter"
	EventBufUnload = "buf_unload"
	EventToggle    = "toggle"
)

// Settings is the settings surface the manager needs: the engine read side
// plus the auto-suggest toggle. Reload picks up edits other processes made
// to the settings file, such as the toggle command.
type Settings interface {
	types.Settings
	ToggleAutoSuggest() bool
	Reload() error
	Save() error
}

// EditorFactory returns the editor adapter for a buffer.
type EditorFactory func(bufnr int) engine.Editor

type Options struct {
	Settings  Settings
	Completer engine.Completer
	Tracker   engine.Tracker
	Notifier  types.Notifier
	NewEditor EditorFactory
	Engine    engine.EngineConfig
	Clock     engine.Clock
}

type session struct {
	bufnr  int
	engine *engine.Engine
}

// Manager owns one Engine per editor buffer for a single connection.
type Manager struct {
	opts Options
	ctx  context.Context

	mu       sync.Mutex
	sessions map[int]*session
	closed   bool
}

// NewManager creates a manager whose sessions live until ctx is done or
// Close is called.
func NewManager(ctx context.Context, opts Options) *Manager {
	return &Manager{
		opts:     opts,
		ctx:      ctx,
		sessions: make(map[int]*session),
	}
}

// Register installs the event handler on n.
func (m *Manager) Register(n *nvim.Nvim) error {
	return n.RegisterHandler(HandlerName, func(_ *nvim.Nvim, bufnr int, event string) {
		if err := m.HandleEvent(bufnr, event); err != nil {
			logger.Warn("event %q for buffer %d: %v", event, bufnr, err)
		}
	})
}

// HandleEvent routes one editor notification.
func (m *Manager) HandleEvent(bufnr int, event string) error {
	defer logger.Trace("session.HandleEvent")()
	logger.Debug("buffer %d: %s", bufnr, event)

	switch event {
	case EventBufEnter:
		m.reloadSettings()
		_, err := m.ensure(bufnr)
		return err
	case EventBufUnload:
		m.Dispose(bufnr)
		return nil
	case EventToggle:
		m.toggle()
		return nil
	}

	eventType := engine.EventTypeFromString(event)
	if eventType == "" {
		return fmt.Errorf("unknown event %q", event)
	}
	s, err := m.ensure(bufnr)
	if err != nil {
		return err
	}
	s.engine.Send(engine.Event{Type: eventType})
	return nil
}

func (m *Manager) ensure(bufnr int) (*session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, fmt.Errorf("session manager closed")
	}
	if s, ok := m.sessions[bufnr]; ok {
		return s, nil
	}

	editor := m.opts.NewEditor(bufnr)
	eng := engine.NewEngine(editor, m.opts.Completer, m.opts.Settings, m.opts.Engine, m.opts.Clock, m.opts.Tracker)
	eng.Start(m.ctx)

	s := &session{bufnr: bufnr, engine: eng}
	m.sessions[bufnr] = s
	logger.Info("session created for buffer %d, total sessions: %d", bufnr, len(m.sessions))
	return s, nil
}

// Dispose stops the session of bufnr, if any.
func (m *Manager) Dispose(bufnr int) {
	m.mu.Lock()
	s, ok := m.sessions[bufnr]
	delete(m.sessions, bufnr)
	m.mu.Unlock()

	if !ok {
		return
	}
	s.engine.Stop()
	logger.Info("session disposed for buffer %d", bufnr)
}

func (m *Manager) reloadSettings() {
	if err := m.opts.Settings.Reload(); err != nil {
		logger.Warn("reload settings: %v", err)
	}
}

func (m *Manager) toggle() {
	m.reloadSettings()
	on := m.opts.Settings.ToggleAutoSuggest()
	if err := m.opts.Settings.Save(); err != nil {
		logger.Warn("save settings: %v", err)
	}
	logger.Info("auto-suggest toggled: %v", on)

	if !on {
		m.mu.Lock()
		for _, s := range m.sessions {
			s.engine.Send(engine.Event{Type: engine.EventClear})
		}
		m.mu.Unlock()
	}

	if m.opts.Notifier != nil {
		state := "disabled"
		if on {
			state = "enabled"
		}
		go m.opts.Notifier.Notify(types.NotifyInfo, "predictivecoder: auto-suggest "+state)
	}
}

// Sessions returns the buffers that have a live session.
func (m *Manager) Sessions() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	bufs := make([]int, 0, len(m.sessions))
	for bufnr := range m.sessions {
		bufs = append(bufs, bufnr)
	}
	return bufs
}

// Close disposes every session. Later events are rejected.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	sessions := m.sessions
	m.sessions = make(map[int]*session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.engine.Stop()
	}
	logger.Debug("session manager closed, disposed %d sessions", len(sessions))
}
