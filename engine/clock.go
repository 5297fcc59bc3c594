package engine

import "time"

// Clock abstracts timers so tests can drive debouncing deterministically.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
	Now() time.Time
}

// Timer is the subset of *time.Timer the engine uses.
type Timer interface {
	Stop() bool
}

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

type systemClock struct{}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

func (systemClock) Now() time.Time { return time.Now() }
