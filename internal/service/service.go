// Package service exposes the timer operations as a closed set of
// typed requests, the way the popup talks to the background worker.
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"focusguard/internal/core/breaktimer"
	"focusguard/internal/core/model"
	"focusguard/internal/core/observer"
	"focusguard/internal/storage"
)

// Request is one of the operation variants below.
type Request interface {
	isRequest()
}

type (
	// GetStatus returns the timer status snapshot.
	GetStatus struct{}
	// StartWorkTimer starts or resumes work time accumulation.
	StartWorkTimer struct{}
	// ResetWorkTimer zeroes accumulated time and restarts the timer.
	ResetWorkTimer struct{}
	// StartBreak begins a break. A zero DurationMinutes falls back to
	// the configured duration for the break type.
	StartBreak struct {
		BreakType       model.BreakType
		DurationMinutes int
	}
	// EndBreak completes the current break and restarts work.
	EndBreak struct{}
	// CancelBreak aborts the current break, keeping accumulated time.
	CancelBreak struct{}
	// CheckBreakThreshold runs the cooldown-gated threshold check.
	CheckBreakThreshold struct{}
	// GetSettings returns the persisted break settings.
	GetSettings struct{}
	// UpdateSettings validates and persists new break settings.
	UpdateSettings struct {
		Settings model.BreakSettings
	}
	// SetFocusTab designates the focus tab by URL.
	SetFocusTab struct {
		URL string
	}
	// ClearFocusTab removes the focus tab designation.
	ClearFocusTab struct{}
	// ResetAllData wipes timer state, settings, and session history.
	ResetAllData struct{}
	// GetSessionHistory returns recent completed work sessions.
	GetSessionHistory struct {
		Limit int
	}
)

func (GetStatus) isRequest()           {}
func (StartWorkTimer) isRequest()      {}
func (ResetWorkTimer) isRequest()      {}
func (StartBreak) isRequest()          {}
func (EndBreak) isRequest()            {}
func (CancelBreak) isRequest()         {}
func (CheckBreakThreshold) isRequest() {}
func (GetSettings) isRequest()         {}
func (UpdateSettings) isRequest()      {}
func (SetFocusTab) isRequest()         {}
func (ClearFocusTab) isRequest()       {}
func (ResetAllData) isRequest()        {}
func (GetSessionHistory) isRequest()   {}

// Response carries the outcome of a dispatched request. Failed
// operations set Success false and Error; they never panic past the
// service boundary.
type Response struct {
	Success  bool
	Error    string
	Status   *breaktimer.Status
	Settings *model.BreakSettings
	Sessions []storage.WorkSession
	Notified bool
}

// Service wires the timer, observer, store, and session history
// behind the request surface.
type Service struct {
	timer    *breaktimer.Timer
	observer *observer.Observer
	store    storage.Store
	sessions *storage.SessionRepository
	log      *zap.Logger
	now      func() time.Time
}

// New creates a Service. The session repository may be nil when the
// durable store is unavailable; history operations then degrade to
// empty results. The clock may be nil, in which case time.Now is used.
func New(timer *breaktimer.Timer, obs *observer.Observer, store storage.Store,
	sessions *storage.SessionRepository, log *zap.Logger, clock func() time.Time) *Service {
	if clock == nil {
		clock = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		timer:    timer,
		observer: obs,
		store:    store,
		sessions: sessions,
		log:      log,
		now:      clock,
	}
}

// Dispatch handles one request to completion. Requests are expected to
// arrive serially; each handler finishes, including its persistence
// write, before the next begins.
func (service *Service) Dispatch(ctx context.Context, request Request) Response {
	switch request := request.(type) {
	case GetStatus:
		status := service.timer.Status()
		return Response{Success: true, Status: &status}
	case StartWorkTimer:
		service.timer.StartWorkTimer(ctx)
		return Response{Success: true}
	case ResetWorkTimer:
		before := service.timer.Status()
		service.timer.Reset(ctx)
		service.recordSession(ctx, before, "")
		return Response{Success: true}
	case StartBreak:
		return service.handleStartBreak(ctx, request)
	case EndBreak:
		service.timer.Reset(ctx)
		return Response{Success: true}
	case CancelBreak:
		return Response{Success: service.timer.CancelBreak(ctx)}
	case CheckBreakThreshold:
		return Response{Success: true, Notified: service.observer.CheckBreakTimerThreshold(ctx)}
	case GetSettings:
		settings, err := storage.LoadBreakSettings(ctx, service.store)
		if err != nil {
			service.log.Warn("settings load failed, serving defaults", zap.Error(err))
		}
		return Response{Success: true, Settings: &settings}
	case UpdateSettings:
		return service.handleUpdateSettings(ctx, request)
	case SetFocusTab:
		if err := service.observer.SetFocusTab(request.URL); err != nil {
			return failure(err)
		}
		return Response{Success: true}
	case ClearFocusTab:
		service.observer.ClearFocusTab()
		return Response{Success: true}
	case ResetAllData:
		return service.handleResetAllData(ctx)
	case GetSessionHistory:
		return service.handleSessionHistory(ctx, request.Limit)
	default:
		return Response{Error: "unsupported request"}
	}
}

func (service *Service) handleStartBreak(ctx context.Context, request StartBreak) Response {
	settings, err := storage.LoadBreakSettings(ctx, service.store)
	if err != nil {
		service.log.Warn("settings load failed, using defaults for break", zap.Error(err))
	}

	duration := time.Duration(request.DurationMinutes) * time.Minute
	if duration <= 0 {
		duration = settings.BreakDuration(request.BreakType)
	}

	before := service.timer.Status()
	if err := service.timer.StartBreak(ctx, request.BreakType, duration); err != nil {
		return failure(err)
	}
	service.recordSession(ctx, before, request.BreakType)
	return Response{Success: true}
}

func (service *Service) handleUpdateSettings(ctx context.Context, request UpdateSettings) Response {
	// Migration is for old persisted schemas; caller input must already
	// be in range.
	settings := request.Settings
	if err := settings.Validate(); err != nil {
		return failure(err)
	}
	settings.Migrate()
	if err := storage.SaveBreakSettings(ctx, service.store, settings); err != nil {
		return failure(err)
	}
	service.timer.SetWorkTimeThreshold(ctx, settings.WorkTimeThreshold())
	service.observer.SetNotificationsEnabled(settings.NotificationsEnabled)
	return Response{Success: true, Settings: &settings}
}

func (service *Service) handleResetAllData(ctx context.Context) Response {
	if err := service.timer.ResetAll(ctx); err != nil {
		return failure(err)
	}
	if err := service.store.Remove(ctx, storage.SettingsKey); err != nil {
		return failure(err)
	}
	if service.sessions != nil {
		if err := service.sessions.Clear(ctx); err != nil {
			return failure(err)
		}
	}
	return Response{Success: true}
}

func (service *Service) handleSessionHistory(ctx context.Context, limit int) Response {
	if service.sessions == nil {
		return Response{Success: true}
	}
	sessions, err := service.sessions.Recent(ctx, limit)
	if err != nil {
		return failure(err)
	}
	return Response{Success: true, Sessions: sessions}
}

// recordSession writes the work stretch captured in status (taken just
// before a reset or break) to the session history. Stretches with no
// accumulated time are not recorded.
func (service *Service) recordSession(ctx context.Context, status breaktimer.Status, breakType model.BreakType) {
	if service.sessions == nil {
		return
	}
	if !status.Started || status.OnBreak || status.CurrentWorkTime <= 0 {
		return
	}
	now := service.now()
	session := storage.WorkSession{
		StartedAt: now.Add(-status.CurrentWorkTime),
		EndedAt:   now,
		WorkTime:  status.CurrentWorkTime,
		BreakType: breakType,
	}
	if err := service.sessions.Insert(ctx, session); err != nil {
		service.log.Warn("work session not recorded", zap.Error(err))
	}
}

func failure(err error) Response {
	return Response{Error: err.Error()}
}
