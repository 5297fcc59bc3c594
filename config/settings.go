package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"

	"predictivecoder/types"
)

var _ types.Settings = (*Settings)(nil)

// SettingsState is the persisted form of the user-facing settings.
type SettingsState struct {
	Enabled          bool   `toml:"enabled"`
	AutoSuggest      bool   `toml:"auto_suggest"`
	DebounceDelayMs  int    `toml:"debounce_delay_ms"`
	MinChars         int    `toml:"min_chars"`
	MaxContextLength int    `toml:"max_context_length"`
	APIKey           string `toml:"api_key,omitempty"`
}

func DefaultSettings() SettingsState {
	return SettingsState{
		Enabled:          true,
		AutoSuggest:      true,
		DebounceDelayMs:  100,
		MinChars:         3,
		MaxContextLength: 1000,
	}
}

// Settings is the application-persisted settings store. Reads are cheap and
// safe from any goroutine.
type Settings struct {
	mu    sync.RWMutex
	state SettingsState
	path  string
}

// NewSettings returns an in-memory store; Save is a no-op.
func NewSettings(state SettingsState) *Settings {
	return &Settings{state: state}
}

// LoadSettings reads path on top of the defaults. A missing file yields the
// defaults.
func LoadSettings(path string) (*Settings, error) {
	state := DefaultSettings()
	if _, err := toml.DecodeFile(path, &state); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read settings %s: %w", path, err)
	}
	return &Settings{state: state, path: path}, nil
}

func (s *Settings) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Enabled
}

func (s *Settings) AutoSuggest() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.AutoSuggest
}

func (s *Settings) DebounceDelay() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Duration(s.state.DebounceDelayMs) * time.Millisecond
}

func (s *Settings) MinChars() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.MinChars
}

func (s *Settings) MaxContextLength() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.MaxContextLength
}

// APIKey is the persisted credential, one of the credential sources.
func (s *Settings) APIKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return strings.TrimSpace(s.state.APIKey)
}

// Snapshot returns a copy of the current state.
func (s *Settings) Snapshot() SettingsState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Update applies fn to the state under the write lock.
func (s *Settings) Update(fn func(*SettingsState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
}

func (s *Settings) SetEnabled(v bool) { s.Update(func(st *SettingsState) { st.Enabled = v }) }

func (s *Settings) SetAutoSuggest(v bool) { s.Update(func(st *SettingsState) { st.AutoSuggest = v }) }

// ToggleAutoSuggest flips auto-suggest and returns the new value.
func (s *Settings) ToggleAutoSuggest() bool {
	var now bool
	s.Update(func(st *SettingsState) {
		st.AutoSuggest = !st.AutoSuggest
		now = st.AutoSuggest
	})
	return now
}

// Reload re-reads the file the settings were loaded from, picking up writes
// made by another process. A missing file resets to the defaults.
func (s *Settings) Reload() error {
	if s.path == "" {
		return nil
	}
	state := DefaultSettings()
	if _, err := toml.DecodeFile(s.path, &state); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("read settings %s: %w", s.path, err)
	}
	s.Update(func(st *SettingsState) { *st = state })
	return nil
}

// Save writes the state back to the file it was loaded from.
func (s *Settings) Save() error {
	if s.path == "" {
		return nil
	}
	state := s.Snapshot()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".settings-*.toml")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := toml.NewEncoder(tmp).Encode(state); err != nil {
		tmp.Close()
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
