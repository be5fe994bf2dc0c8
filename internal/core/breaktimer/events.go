package breaktimer

import (
	"time"

	"focusguard/internal/core/model"
)

// State represents the current timer mode.
type State string

const (
	StateIdle    State = "idle"
	StateWorking State = "working"
	StatePaused  State = "paused"
	StateOnBreak State = "on_break"
)

// EventType defines the type of timer event.
type EventType string

const (
	EventStateChange EventType = "state_change"
	EventRecovered   EventType = "recovered"
)

// Event represents a timer update for observers.
type Event struct {
	Type        EventType
	State       State
	BreakType   model.BreakType
	CurrentWork time.Duration
	At          time.Time
}

// Status is a consistent snapshot of the timer taken under the lock.
type Status struct {
	State             State
	Started           bool
	WorkTimerActive   bool
	OnBreak           bool
	BreakType         model.BreakType
	CurrentWorkTime   time.Duration
	WorkTimeThreshold time.Duration
	ThresholdExceeded bool
	BreakRemaining    time.Duration
}
