// Package breaktimer implements the work/break timer state machine:
// accumulated work time across pause/resume cycles, break sessions,
// threshold detection, and state recovery after a process restart.
package breaktimer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"focusguard/internal/core/model"
	"focusguard/internal/storage"
)

// ErrOnBreak indicates an operation that requires the work timer while
// a break is in progress.
var ErrOnBreak = errors.New("break already in progress")

// Config contains runtime options for the Timer.
type Config struct {
	// WorkTimeThreshold is the accumulated work time after which a
	// break is recommended.
	WorkTimeThreshold time.Duration
	// InactivityThreshold is the longest gap since the last observed
	// activity that a recovered session may bridge while staying
	// active. Longer gaps restore the timer paused.
	InactivityThreshold time.Duration
}

// Timer tracks work/break session state. All mutations happen under a
// single lock and are written through to the store; the in-memory
// state stays authoritative when a write fails.
type Timer struct {
	mu    sync.Mutex
	store storage.Store
	log   *zap.Logger
	now   func() time.Time

	workThreshold       time.Duration
	inactivityThreshold time.Duration

	started       bool
	workActive    bool
	onBreak       bool
	breakType     model.BreakType
	workStart     time.Time
	totalWork     time.Duration
	lastActivity  time.Time
	breakStart    time.Time
	breakDuration time.Duration

	events []chan Event
}

// New creates a Timer with the provided configuration. The clock may
// be nil, in which case time.Now is used.
func New(store storage.Store, log *zap.Logger, config Config, clock func() time.Time) *Timer {
	if clock == nil {
		clock = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	if config.WorkTimeThreshold <= 0 {
		config.WorkTimeThreshold = 30 * time.Minute
	}
	if config.InactivityThreshold <= 0 {
		config.InactivityThreshold = 5 * time.Minute
	}
	return &Timer{
		store:               store,
		log:                 log,
		now:                 clock,
		workThreshold:       config.WorkTimeThreshold,
		inactivityThreshold: config.InactivityThreshold,
	}
}

// Subscribe registers a new observer channel.
func (timer *Timer) Subscribe(buffer int) <-chan Event {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Event, buffer)
	timer.mu.Lock()
	timer.events = append(timer.events, ch)
	timer.mu.Unlock()
	return ch
}

// Close closes all observer channels.
func (timer *Timer) Close() {
	timer.mu.Lock()
	events := timer.events
	timer.events = nil
	timer.mu.Unlock()
	for _, ch := range events {
		close(ch)
	}
}

// StartWorkTimer begins (or resumes) accumulating work time. Calling
// it while the timer is already running is a no-op. Valid from any
// state, including during a break, which it ends without resetting
// accumulated time.
func (timer *Timer) StartWorkTimer(ctx context.Context) {
	timer.mu.Lock()
	if timer.workActive {
		timer.mu.Unlock()
		return
	}
	now := timer.now()
	timer.started = true
	timer.workActive = true
	timer.onBreak = false
	timer.breakType = ""
	timer.breakStart = time.Time{}
	timer.breakDuration = 0
	timer.workStart = now
	timer.lastActivity = now
	_ = timer.persistLocked(ctx)
	timer.emitLocked(Event{
		Type:        EventStateChange,
		State:       StateWorking,
		CurrentWork: timer.currentWorkLocked(now),
		At:          now,
	})
	timer.mu.Unlock()
}

// PauseWorkTimer folds the open work interval into the accumulated
// total and stops accumulation. No-op unless the timer is running.
func (timer *Timer) PauseWorkTimer(ctx context.Context) {
	timer.mu.Lock()
	if !timer.workActive {
		timer.mu.Unlock()
		return
	}
	now := timer.now()
	timer.foldOpenIntervalLocked(now)
	timer.workActive = false
	_ = timer.persistLocked(ctx)
	timer.emitLocked(Event{
		Type:        EventStateChange,
		State:       StatePaused,
		CurrentWork: timer.totalWork,
		At:          now,
	})
	timer.mu.Unlock()
}

// StartBreak ends work accumulation and enters a break of the given
// type and duration. Rejected while another break is in progress or
// when the input is invalid; state is unchanged on rejection.
func (timer *Timer) StartBreak(ctx context.Context, breakType model.BreakType, duration time.Duration) error {
	if !model.KnownBreakType(breakType) {
		return fmt.Errorf("unknown break type %q", breakType)
	}
	if duration <= 0 {
		return fmt.Errorf("non-positive break duration %s", duration)
	}

	timer.mu.Lock()
	if timer.onBreak {
		timer.mu.Unlock()
		return ErrOnBreak
	}
	now := timer.now()
	timer.foldOpenIntervalLocked(now)
	timer.started = true
	timer.workActive = false
	timer.onBreak = true
	timer.breakType = breakType
	timer.breakStart = now
	timer.breakDuration = duration
	_ = timer.persistLocked(ctx)
	timer.emitLocked(Event{
		Type:        EventStateChange,
		State:       StateOnBreak,
		BreakType:   breakType,
		CurrentWork: timer.totalWork,
		At:          now,
	})
	timer.mu.Unlock()
	return nil
}

// Reset ends any break, zeroes accumulated work time, and restarts the
// work timer. This is both "break completed" and "clear history".
func (timer *Timer) Reset(ctx context.Context) {
	timer.mu.Lock()
	now := timer.now()
	timer.started = true
	timer.workActive = true
	timer.onBreak = false
	timer.breakType = ""
	timer.breakStart = time.Time{}
	timer.breakDuration = 0
	timer.totalWork = 0
	timer.workStart = now
	timer.lastActivity = now
	_ = timer.persistLocked(ctx)
	timer.emitLocked(Event{
		Type:  EventStateChange,
		State: StateWorking,
		At:    now,
	})
	timer.mu.Unlock()
}

// CancelBreak aborts the current break and resumes the work timer with
// accumulated time preserved. Reports whether a break was canceled.
func (timer *Timer) CancelBreak(ctx context.Context) bool {
	timer.mu.Lock()
	if !timer.onBreak {
		timer.mu.Unlock()
		return false
	}
	now := timer.now()
	timer.workActive = true
	timer.onBreak = false
	timer.breakType = ""
	timer.breakStart = time.Time{}
	timer.breakDuration = 0
	timer.workStart = now
	timer.lastActivity = now
	_ = timer.persistLocked(ctx)
	timer.emitLocked(Event{
		Type:        EventStateChange,
		State:       StateWorking,
		CurrentWork: timer.currentWorkLocked(now),
		At:          now,
	})
	timer.mu.Unlock()
	return true
}

// UpdateActivity records that user activity was just observed. It does
// not start or stop accumulation by itself.
func (timer *Timer) UpdateActivity(ctx context.Context) {
	timer.mu.Lock()
	timer.lastActivity = timer.now()
	_ = timer.persistLocked(ctx)
	timer.mu.Unlock()
}

// SetWorkTimeThreshold updates the break-recommendation threshold.
func (timer *Timer) SetWorkTimeThreshold(ctx context.Context, threshold time.Duration) {
	if threshold <= 0 {
		return
	}
	timer.mu.Lock()
	timer.workThreshold = threshold
	_ = timer.persistLocked(ctx)
	timer.mu.Unlock()
}

// CurrentWorkTime returns accumulated work time including the open
// interval.
func (timer *Timer) CurrentWorkTime() time.Duration {
	timer.mu.Lock()
	defer timer.mu.Unlock()
	return timer.currentWorkLocked(timer.now())
}

// ThresholdExceeded reports whether accumulated work time has reached
// the configured threshold.
func (timer *Timer) ThresholdExceeded() bool {
	timer.mu.Lock()
	defer timer.mu.Unlock()
	return timer.currentWorkLocked(timer.now()) >= timer.workThreshold
}

// Status returns a consistent snapshot of the timer.
func (timer *Timer) Status() Status {
	timer.mu.Lock()
	defer timer.mu.Unlock()

	now := timer.now()
	current := timer.currentWorkLocked(now)
	status := Status{
		State:             timer.stateLocked(),
		Started:           timer.started,
		WorkTimerActive:   timer.workActive,
		OnBreak:           timer.onBreak,
		BreakType:         timer.breakType,
		CurrentWorkTime:   current,
		WorkTimeThreshold: timer.workThreshold,
		ThresholdExceeded: current >= timer.workThreshold,
	}
	if timer.onBreak {
		remaining := timer.breakDuration - now.Sub(timer.breakStart)
		if remaining < 0 {
			remaining = 0
		}
		status.BreakRemaining = remaining
	}
	return status
}

// Flush persists the current state without mutating it.
func (timer *Timer) Flush(ctx context.Context) error {
	timer.mu.Lock()
	defer timer.mu.Unlock()
	if !timer.started {
		return nil
	}
	return timer.persistLocked(ctx)
}

// ResetAll clears all timer state, in memory and in the store.
func (timer *Timer) ResetAll(ctx context.Context) error {
	timer.mu.Lock()
	timer.started = false
	timer.workActive = false
	timer.onBreak = false
	timer.breakType = ""
	timer.workStart = time.Time{}
	timer.totalWork = 0
	timer.lastActivity = time.Time{}
	timer.breakStart = time.Time{}
	timer.breakDuration = 0
	timer.mu.Unlock()

	for _, key := range []string{TimerStateKey, SessionDataKey} {
		if err := timer.store.Remove(ctx, key); err != nil {
			return fmt.Errorf("remove %q: %w", key, err)
		}
	}
	return nil
}

// Recover reconstructs timer state from the store after a process
// restart. A session that was active within the inactivity threshold
// keeps running with its wall-clock gap counted as work; a longer gap
// restores the timer paused, with the open interval credited only up
// to the last observed activity. With no persisted state the timer
// stays idle.
func (timer *Timer) Recover(ctx context.Context) error {
	timer.mu.Lock()
	defer timer.mu.Unlock()

	state, session, err := timer.loadRecords(ctx)
	if err != nil {
		return fmt.Errorf("load persisted timer state: %w", err)
	}
	if state == nil {
		return nil
	}

	now := timer.now()
	timer.started = true

	// Clock skew: persisted timestamps from the future are clamped to
	// now so gaps never come out negative.
	lastActivity := timeFromMillis(state.LastActivityTime)
	if lastActivity.After(now) {
		lastActivity = now
	}
	timer.lastActivity = lastActivity

	if state.WorkTimeThreshold > 0 {
		timer.workThreshold = time.Duration(state.WorkTimeThreshold) * time.Millisecond
	}

	if session != nil {
		timer.totalWork = time.Duration(session.TotalWorkTime) * time.Millisecond
		timer.workStart = timeFromMillis(session.WorkStartTime)
		timer.breakStart = timeFromMillis(session.BreakStartTime)
		timer.breakDuration = time.Duration(session.BreakDuration) * time.Millisecond
	}
	if timer.totalWork < 0 {
		timer.totalWork = 0
	}
	if timer.workStart.After(now) {
		timer.workStart = now
	}

	switch {
	case state.IsOnBreak && model.KnownBreakType(model.BreakType(state.BreakType)):
		timer.onBreak = true
		timer.breakType = model.BreakType(state.BreakType)
		timer.workActive = false
		timer.workStart = time.Time{}
	case state.IsWorkTimerActive:
		timer.recoverActiveLocked(now, lastActivity)
	default:
		timer.workActive = false
		timer.workStart = time.Time{}
	}

	_ = timer.persistLocked(ctx)
	timer.emitLocked(Event{
		Type:        EventRecovered,
		State:       timer.stateLocked(),
		BreakType:   timer.breakType,
		CurrentWork: timer.currentWorkLocked(now),
		At:          now,
	})
	timer.log.Info("timer state recovered",
		zap.String("state", string(timer.stateLocked())),
		zap.Duration("total_work", timer.totalWork))
	return nil
}

// recoverActiveLocked handles the persisted-active case: either the
// gap since the last activity is short enough to bridge, or the open
// interval is folded up to the last activity and the timer pauses.
func (timer *Timer) recoverActiveLocked(now, lastActivity time.Time) {
	if timer.workStart.IsZero() {
		timer.workStart = now
	}
	gap := now.Sub(lastActivity)
	if !lastActivity.IsZero() && gap <= timer.inactivityThreshold {
		timer.workActive = true
		return
	}

	// Gone too long: credit the open interval only up to the last
	// observed activity, never double-counting already-folded time.
	credit := lastActivity.Sub(timer.workStart)
	if credit < 0 {
		credit = 0
	}
	timer.totalWork += credit
	timer.workActive = false
	timer.workStart = time.Time{}
}

func (timer *Timer) foldOpenIntervalLocked(now time.Time) {
	if !timer.workActive || timer.workStart.IsZero() {
		return
	}
	elapsed := now.Sub(timer.workStart)
	if elapsed > 0 {
		timer.totalWork += elapsed
	}
	timer.workStart = time.Time{}
}

func (timer *Timer) currentWorkLocked(now time.Time) time.Duration {
	current := timer.totalWork
	if timer.workActive && !timer.workStart.IsZero() {
		elapsed := now.Sub(timer.workStart)
		if elapsed > 0 {
			current += elapsed
		}
	}
	return current
}

func (timer *Timer) stateLocked() State {
	switch {
	case !timer.started:
		return StateIdle
	case timer.onBreak:
		return StateOnBreak
	case timer.workActive:
		return StateWorking
	default:
		return StatePaused
	}
}

func (timer *Timer) emitLocked(event Event) {
	events := append([]chan Event(nil), timer.events...)
	for _, ch := range events {
		select {
		case ch <- event:
		default:
		}
	}
}
