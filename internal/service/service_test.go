package service_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focusguard/internal/core/breaktimer"
	"focusguard/internal/core/model"
	"focusguard/internal/core/observer"
	"focusguard/internal/service"
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

type discardNotifier struct{}

func (discardNotifier) Notify(_ context.Context, _, _ string) error {
	return nil
}

type fixture struct {
	clock   *fakeClock
	store   storage.Store
	timer   *breaktimer.Timer
	service *service.Service
}

func newFixture(t *testing.T, sessions *storage.SessionRepository) *fixture {
	t.Helper()
	clock := newFakeClock()
	store := storage.Store(storage.NewMemoryStore())
	timer := breaktimer.New(store, nil, breaktimer.Config{
		WorkTimeThreshold:   30 * time.Minute,
		InactivityThreshold: 5 * time.Minute,
	}, clock.Now)
	obs := observer.New(timer, discardNotifier{}, nil, observer.Config{
		NotificationsEnabled: true,
	}, clock.Now)
	return &fixture{
		clock:   clock,
		store:   store,
		timer:   timer,
		service: service.New(timer, obs, store, sessions, nil, clock.Now),
	}
}

func TestStartBreakUsesConfiguredDuration(t *testing.T) {
	ctx := context.Background()
	fix := newFixture(t, nil)

	fix.service.Dispatch(ctx, service.StartWorkTimer{})
	fix.clock.Advance(10 * time.Minute)

	response := fix.service.Dispatch(ctx, service.StartBreak{BreakType: model.BreakMedium})
	require.True(t, response.Success, response.Error)

	status := fix.timer.Status()
	assert.True(t, status.OnBreak)
	assert.Equal(t, model.BreakMedium, status.BreakType)
	// Default medium break is 15 minutes.
	assert.Equal(t, 15*time.Minute, status.BreakRemaining)
}

func TestStartBreakRejectsUnknownType(t *testing.T) {
	ctx := context.Background()
	fix := newFixture(t, nil)

	fix.service.Dispatch(ctx, service.StartWorkTimer{})
	response := fix.service.Dispatch(ctx, service.StartBreak{BreakType: "nap", DurationMinutes: 5})
	assert.False(t, response.Success)
	assert.NotEmpty(t, response.Error)
	assert.False(t, fix.timer.Status().OnBreak)
}

func TestCancelBreakReportsWhetherCanceled(t *testing.T) {
	ctx := context.Background()
	fix := newFixture(t, nil)

	assert.False(t, fix.service.Dispatch(ctx, service.CancelBreak{}).Success)

	fix.service.Dispatch(ctx, service.StartWorkTimer{})
	require.True(t, fix.service.Dispatch(ctx, service.StartBreak{BreakType: model.BreakShort}).Success)
	assert.True(t, fix.service.Dispatch(ctx, service.CancelBreak{}).Success)
}

func TestUpdateSettingsRejectsOutOfRangeThreshold(t *testing.T) {
	ctx := context.Background()
	fix := newFixture(t, nil)

	settings := model.DefaultBreakSettings()
	settings.WorkTimeThresholdMinutes = 2
	response := fix.service.Dispatch(ctx, service.UpdateSettings{Settings: settings})
	assert.False(t, response.Success)

	// The stored settings stay untouched.
	loaded := fix.service.Dispatch(ctx, service.GetSettings{})
	require.True(t, loaded.Success)
	assert.Equal(t, 30, loaded.Settings.WorkTimeThresholdMinutes)
}

func TestUpdateSettingsAppliesThreshold(t *testing.T) {
	ctx := context.Background()
	fix := newFixture(t, nil)

	fix.service.Dispatch(ctx, service.StartWorkTimer{})
	fix.clock.Advance(10 * time.Minute)

	settings := model.DefaultBreakSettings()
	settings.WorkTimeThresholdMinutes = 5
	require.True(t, fix.service.Dispatch(ctx, service.UpdateSettings{Settings: settings}).Success)

	status := fix.timer.Status()
	assert.Equal(t, 5*time.Minute, status.WorkTimeThreshold)
	assert.True(t, status.ThresholdExceeded)
}

func TestSessionHistoryRecordedOnBreak(t *testing.T) {
	ctx := context.Background()
	database, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer database.Close()

	fix := newFixture(t, database.Sessions())
	fix.service.Dispatch(ctx, service.StartWorkTimer{})
	fix.clock.Advance(10 * time.Minute)
	require.True(t, fix.service.Dispatch(ctx, service.StartBreak{BreakType: model.BreakMedium}).Success)

	response := fix.service.Dispatch(ctx, service.GetSessionHistory{Limit: 5})
	require.True(t, response.Success)
	require.Len(t, response.Sessions, 1)
	assert.Equal(t, 10*time.Minute, response.Sessions[0].WorkTime)
	assert.Equal(t, model.BreakMedium, response.Sessions[0].BreakType)
}

func TestResetAllData(t *testing.T) {
	ctx := context.Background()
	fix := newFixture(t, nil)

	fix.service.Dispatch(ctx, service.StartWorkTimer{})
	settings := model.DefaultBreakSettings()
	settings.WorkTimeThresholdMinutes = 45
	require.True(t, fix.service.Dispatch(ctx, service.UpdateSettings{Settings: settings}).Success)

	require.True(t, fix.service.Dispatch(ctx, service.ResetAllData{}).Success)

	assert.Equal(t, breaktimer.StateIdle, fix.timer.Status().State)
	_, err := fix.store.Get(ctx, storage.SettingsKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestHTTPMessageRoundTrip(t *testing.T) {
	fix := newFixture(t, nil)
	server := httptest.NewServer(fix.service.Handler())
	defer server.Close()

	post := func(body string) map[string]any {
		t.Helper()
		response, err := http.Post(server.URL+"/api/message", "application/json",
			bytes.NewBufferString(body))
		require.NoError(t, err)
		defer response.Body.Close()
		require.Equal(t, http.StatusOK, response.StatusCode)
		var decoded map[string]any
		require.NoError(t, json.NewDecoder(response.Body).Decode(&decoded))
		return decoded
	}

	require.True(t, post(`{"type":"START_WORK_TIMER"}`)["success"].(bool))
	fix.clock.Advance(10 * time.Minute)

	status := post(`{"type":"GET_BREAK_TIMER_STATUS"}`)
	require.True(t, status["success"].(bool))
	payload := status["status"].(map[string]any)
	assert.True(t, payload["isWorkTimerActive"].(bool))
	assert.Equal(t, float64((10 * time.Minute).Milliseconds()), payload["currentWorkTime"])

	require.True(t, post(`{"type":"START_BREAK","breakType":"short","durationMinutes":5}`)["success"].(bool))
	assert.True(t, fix.timer.Status().OnBreak)
}

func TestHTTPRejectsUnknownMessageType(t *testing.T) {
	fix := newFixture(t, nil)
	server := httptest.NewServer(fix.service.Handler())
	defer server.Close()

	response, err := http.Post(server.URL+"/api/message", "application/json",
		bytes.NewBufferString(`{"type":"PLAY_WHITE_NOISE"}`))
	require.NoError(t, err)
	defer response.Body.Close()
	assert.Equal(t, http.StatusBadRequest, response.StatusCode)
}
