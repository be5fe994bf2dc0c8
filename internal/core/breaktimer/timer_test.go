package breaktimer_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focusguard/internal/core/breaktimer"
	"focusguard/internal/core/model"
	"focusguard/internal/storage"
)

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (clock *fakeClock) Now() time.Time {
	return clock.now
}

func (clock *fakeClock) Advance(delta time.Duration) {
	clock.now = clock.now.Add(delta)
}

// failingStore fails writes while broken is set; reads pass through.
type failingStore struct {
	*storage.MemoryStore
	broken bool
}

func (store *failingStore) Set(ctx context.Context, key string, value []byte) error {
	if store.broken {
		return errors.New("store unavailable")
	}
	return store.MemoryStore.Set(ctx, key, value)
}

func (store *failingStore) SetMultiple(ctx context.Context, values map[string][]byte) error {
	if store.broken {
		return errors.New("store unavailable")
	}
	return store.MemoryStore.SetMultiple(ctx, values)
}

func newTimer(t *testing.T, store storage.Store, threshold time.Duration) (*breaktimer.Timer, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	timer := breaktimer.New(store, nil, breaktimer.Config{
		WorkTimeThreshold:   threshold,
		InactivityThreshold: 5 * time.Minute,
	}, clock.Now)
	return timer, clock
}

func TestWorkTimeAccumulation(t *testing.T) {
	ctx := context.Background()
	timer, clock := newTimer(t, storage.NewMemoryStore(), 30*time.Minute)

	timer.StartWorkTimer(ctx)
	clock.Advance(10 * time.Minute)
	timer.PauseWorkTimer(ctx)
	assert.Equal(t, 10*time.Minute, timer.CurrentWorkTime())

	// Paused time does not count.
	clock.Advance(5 * time.Minute)
	assert.Equal(t, 10*time.Minute, timer.CurrentWorkTime())

	timer.StartWorkTimer(ctx)
	clock.Advance(5 * time.Minute)
	assert.Equal(t, 15*time.Minute, timer.CurrentWorkTime())
}

func TestWorkTimeMonotonicWhileActive(t *testing.T) {
	ctx := context.Background()
	timer, clock := newTimer(t, storage.NewMemoryStore(), 30*time.Minute)

	timer.StartWorkTimer(ctx)
	previous := timer.CurrentWorkTime()
	for i := 0; i < 10; i++ {
		clock.Advance(time.Duration(i) * time.Second)
		current := timer.CurrentWorkTime()
		assert.GreaterOrEqual(t, current, previous)
		previous = current
	}
}

func TestStartWorkTimerIdempotent(t *testing.T) {
	ctx := context.Background()
	timer, clock := newTimer(t, storage.NewMemoryStore(), 30*time.Minute)

	timer.StartWorkTimer(ctx)
	clock.Advance(3 * time.Minute)
	timer.StartWorkTimer(ctx)

	// The second call must not restart the open interval.
	assert.Equal(t, 3*time.Minute, timer.CurrentWorkTime())
	assert.Equal(t, breaktimer.StateWorking, timer.Status().State)
}

func TestMutualExclusion(t *testing.T) {
	ctx := context.Background()
	timer, clock := newTimer(t, storage.NewMemoryStore(), 30*time.Minute)

	check := func() {
		status := timer.Status()
		assert.False(t, status.WorkTimerActive && status.OnBreak,
			"work timer active during a break")
	}

	check()
	timer.StartWorkTimer(ctx)
	check()
	clock.Advance(time.Minute)
	require.NoError(t, timer.StartBreak(ctx, model.BreakShort, 5*time.Minute))
	check()
	timer.Reset(ctx)
	check()
	timer.PauseWorkTimer(ctx)
	check()
}

func TestThresholdBoundary(t *testing.T) {
	ctx := context.Background()
	threshold := 30 * time.Minute
	timer, clock := newTimer(t, storage.NewMemoryStore(), threshold)

	timer.StartWorkTimer(ctx)
	clock.Advance(threshold - time.Millisecond)
	assert.False(t, timer.ThresholdExceeded())

	clock.Advance(time.Millisecond)
	assert.True(t, timer.ThresholdExceeded())
}

func TestStartBreakValidation(t *testing.T) {
	ctx := context.Background()
	timer, clock := newTimer(t, storage.NewMemoryStore(), 30*time.Minute)

	timer.StartWorkTimer(ctx)
	clock.Advance(10 * time.Minute)

	require.Error(t, timer.StartBreak(ctx, model.BreakType("nap"), 5*time.Minute))
	require.Error(t, timer.StartBreak(ctx, model.BreakShort, 0))

	// Rejected operations leave the state unchanged.
	status := timer.Status()
	assert.True(t, status.WorkTimerActive)
	assert.Equal(t, 10*time.Minute, status.CurrentWorkTime)

	require.NoError(t, timer.StartBreak(ctx, model.BreakShort, 5*time.Minute))
	assert.ErrorIs(t, timer.StartBreak(ctx, model.BreakMedium, 15*time.Minute), breaktimer.ErrOnBreak)
	assert.Equal(t, model.BreakShort, timer.Status().BreakType)
}

func TestResetClearsAccumulatedTime(t *testing.T) {
	ctx := context.Background()
	timer, clock := newTimer(t, storage.NewMemoryStore(), 30*time.Minute)

	timer.StartWorkTimer(ctx)
	clock.Advance(20 * time.Minute)
	before := timer.CurrentWorkTime()
	require.Equal(t, 20*time.Minute, before)

	timer.Reset(ctx)
	status := timer.Status()
	assert.Less(t, status.CurrentWorkTime, before)
	assert.Equal(t, time.Duration(0), status.CurrentWorkTime)
	assert.True(t, status.WorkTimerActive)
	assert.False(t, status.OnBreak)
}

func TestCancelBreakPreservesAccumulatedTime(t *testing.T) {
	ctx := context.Background()
	timer, clock := newTimer(t, storage.NewMemoryStore(), 30*time.Minute)

	timer.StartWorkTimer(ctx)
	clock.Advance(10 * time.Minute)
	require.NoError(t, timer.StartBreak(ctx, model.BreakMedium, 15*time.Minute))
	clock.Advance(2 * time.Minute)

	require.True(t, timer.CancelBreak(ctx))
	status := timer.Status()
	assert.True(t, status.WorkTimerActive)
	assert.False(t, status.OnBreak)
	assert.Equal(t, 10*time.Minute, status.CurrentWorkTime)

	assert.False(t, timer.CancelBreak(ctx), "no break left to cancel")
}

func seedPersistedState(t *testing.T, store storage.Store, clock *fakeClock,
	active bool, workStart time.Time, totalWork time.Duration, lastActivity time.Time) {
	t.Helper()
	ctx := context.Background()

	state := fmt.Sprintf(
		`{"isWorkTimerActive":%t,"isOnBreak":false,"breakType":"","lastActivityTime":%d,"workTimeThreshold":%d}`,
		active, lastActivity.UnixMilli(), (30 * time.Minute).Milliseconds())
	session := fmt.Sprintf(
		`{"workStartTime":%d,"totalWorkTime":%d,"breakStartTime":0,"breakDuration":0}`,
		workStart.UnixMilli(), totalWork.Milliseconds())

	require.NoError(t, store.Set(ctx, breaktimer.TimerStateKey, []byte(state)))
	require.NoError(t, store.Set(ctx, breaktimer.SessionDataKey, []byte(session)))
}

func TestRecoveryContinuityWithinInactivityThreshold(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	timer, clock := newTimer(t, store, 30*time.Minute)

	seedPersistedState(t, store, clock, true,
		clock.Now().Add(-10*time.Minute), 5*time.Minute, clock.Now().Add(-2*time.Minute))
	require.NoError(t, timer.Recover(ctx))

	status := timer.Status()
	assert.True(t, status.WorkTimerActive)
	// The unload gap counts: 5 min folded plus the 10 min open interval.
	assert.GreaterOrEqual(t, status.CurrentWorkTime, 5*time.Minute)
	assert.Equal(t, 15*time.Minute, status.CurrentWorkTime)
}

func TestRecoveryPausesAfterLongGap(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	timer, clock := newTimer(t, store, 30*time.Minute)

	seedPersistedState(t, store, clock, true,
		clock.Now().Add(-10*time.Minute), 5*time.Minute, clock.Now().Add(-10*time.Minute))
	require.NoError(t, timer.Recover(ctx))

	status := timer.Status()
	assert.False(t, status.WorkTimerActive)
	assert.Equal(t, breaktimer.StatePaused, status.State)
	// Open interval credited only up to the last activity, which here
	// coincides with the interval start.
	assert.Equal(t, 5*time.Minute, status.CurrentWorkTime)
}

func TestRecoveryClampsFutureTimestamps(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	timer, clock := newTimer(t, store, 30*time.Minute)

	seedPersistedState(t, store, clock, true,
		clock.Now().Add(30*time.Minute), 5*time.Minute, clock.Now().Add(time.Hour))
	require.NoError(t, timer.Recover(ctx))

	status := timer.Status()
	assert.True(t, status.WorkTimerActive)
	assert.GreaterOrEqual(t, status.CurrentWorkTime, time.Duration(0))
	assert.Equal(t, 5*time.Minute, status.CurrentWorkTime)
}

func TestRecoveryWithoutPersistedState(t *testing.T) {
	ctx := context.Background()
	timer, _ := newTimer(t, storage.NewMemoryStore(), 30*time.Minute)

	require.NoError(t, timer.Recover(ctx))
	status := timer.Status()
	assert.Equal(t, breaktimer.StateIdle, status.State)
	assert.False(t, status.Started)
}

func TestRecoveryRestoresBreak(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	clock := newFakeClock()

	first := breaktimer.New(store, nil, breaktimer.Config{
		WorkTimeThreshold:   30 * time.Minute,
		InactivityThreshold: 5 * time.Minute,
	}, clock.Now)
	first.StartWorkTimer(ctx)
	clock.Advance(10 * time.Minute)
	require.NoError(t, first.StartBreak(ctx, model.BreakLong, 30*time.Minute))

	second := breaktimer.New(store, nil, breaktimer.Config{
		WorkTimeThreshold:   30 * time.Minute,
		InactivityThreshold: 5 * time.Minute,
	}, clock.Now)
	require.NoError(t, second.Recover(ctx))

	status := second.Status()
	assert.True(t, status.OnBreak)
	assert.Equal(t, model.BreakLong, status.BreakType)
	assert.False(t, status.WorkTimerActive)
	assert.Equal(t, 10*time.Minute, status.CurrentWorkTime)
}

func TestPersistenceFailureKeepsInMemoryState(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{MemoryStore: storage.NewMemoryStore(), broken: true}
	timer, clock := newTimer(t, store, 30*time.Minute)

	timer.StartWorkTimer(ctx)
	clock.Advance(10 * time.Minute)
	assert.Equal(t, 10*time.Minute, timer.CurrentWorkTime())
	assert.Equal(t, 0, store.Len(), "nothing should have been written")

	// Once the store recovers, the next write flushes the full state.
	store.broken = false
	timer.UpdateActivity(ctx)
	raw, err := store.Get(ctx, breaktimer.TimerStateKey)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"isWorkTimerActive":true`)
}

func TestResetAllClearsStore(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	timer, clock := newTimer(t, store, 30*time.Minute)

	timer.StartWorkTimer(ctx)
	clock.Advance(time.Minute)
	require.NoError(t, timer.ResetAll(ctx))

	assert.Equal(t, breaktimer.StateIdle, timer.Status().State)
	_, err := store.Get(ctx, breaktimer.TimerStateKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = store.Get(ctx, breaktimer.SessionDataKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
