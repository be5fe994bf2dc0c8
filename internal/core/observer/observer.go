// Package observer translates activity, focus, and tick signals into
// timer transitions and cooldown-gated notifications.
package observer

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"focusguard/internal/core/breaktimer"
)

// Notifier shows a system notification. A nil error means the
// notification was actually displayed.
type Notifier interface {
	Notify(ctx context.Context, title, message string) error
}

// Config contains cooldowns and grace periods for the observer.
type Config struct {
	// BreakCooldown is the minimum spacing between two break-reminder
	// notifications.
	BreakCooldown time.Duration
	// FocusCooldown is the minimum spacing between two focus-deviation
	// notifications.
	FocusCooldown time.Duration
	// FocusGrace is how long the user may stay away from the focus
	// tab's host before it counts as a deviation.
	FocusGrace time.Duration
	// UnfocusedPauseAfter is how long the browser may stay unfocused
	// before the work timer is paused.
	UnfocusedPauseAfter time.Duration
	// NotificationsEnabled gates all notification emission.
	NotificationsEnabled bool
}

// Observer owns the notification cooldown state and drives the timer
// from activity signals. Cooldowns are in-memory only; they reset to
// zero on restart by design.
type Observer struct {
	mu       sync.Mutex
	timer    *breaktimer.Timer
	notifier Notifier
	log      *zap.Logger
	now      func() time.Time
	config   Config

	focused        bool
	focusLostAt    time.Time
	lastBreakNotif time.Time
	lastFocusNotif time.Time

	focusHost   string
	currentHost string
	awaySince   time.Time
}

// New creates an Observer. The clock may be nil, in which case
// time.Now is used.
func New(timer *breaktimer.Timer, notifier Notifier, log *zap.Logger, config Config, clock func() time.Time) *Observer {
	if clock == nil {
		clock = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	if config.BreakCooldown <= 0 {
		config.BreakCooldown = 5 * time.Minute
	}
	if config.FocusCooldown <= 0 {
		config.FocusCooldown = 5 * time.Minute
	}
	if config.FocusGrace <= 0 {
		config.FocusGrace = 30 * time.Second
	}
	if config.UnfocusedPauseAfter <= 0 {
		config.UnfocusedPauseAfter = 5 * time.Minute
	}
	return &Observer{
		timer:    timer,
		notifier: notifier,
		log:      log,
		now:      clock,
		config:   config,
		focused:  true,
	}
}

// SetNotificationsEnabled toggles notification emission at runtime.
func (observer *Observer) SetNotificationsEnabled(enabled bool) {
	observer.mu.Lock()
	observer.config.NotificationsEnabled = enabled
	observer.mu.Unlock()
}

// HandleActivity forwards an observed user-activity signal to the
// timer while the browser is focused.
func (observer *Observer) HandleActivity(ctx context.Context) {
	observer.mu.Lock()
	focused := observer.focused
	observer.mu.Unlock()
	if focused {
		observer.timer.UpdateActivity(ctx)
	}
}

// HandleFocusGained resumes the work timer after the window regains
// focus. A session that was never started stays idle.
func (observer *Observer) HandleFocusGained(ctx context.Context) {
	observer.mu.Lock()
	observer.focused = true
	observer.focusLostAt = time.Time{}
	observer.mu.Unlock()

	status := observer.timer.Status()
	if status.Started && !status.OnBreak {
		observer.timer.StartWorkTimer(ctx)
		observer.timer.UpdateActivity(ctx)
	}
}

// HandleFocusLost marks the window unfocused. The actual pause happens
// on a later tick, once the unfocused grace period has elapsed.
func (observer *Observer) HandleFocusLost(_ context.Context) {
	observer.mu.Lock()
	if observer.focused {
		observer.focused = false
		observer.focusLostAt = observer.now()
	}
	observer.mu.Unlock()
}

// HandleNavigation records the host the user switched to and counts as
// an activity signal. Hosts equal to the focus tab's host are not a
// deviation.
func (observer *Observer) HandleNavigation(ctx context.Context, rawURL string) {
	host, err := hostOf(rawURL)
	if err != nil {
		observer.log.Debug("ignoring unparseable navigation target", zap.Error(err))
		return
	}

	observer.mu.Lock()
	observer.currentHost = host
	switch {
	case observer.focusHost == "" || host == observer.focusHost:
		observer.awaySince = time.Time{}
	case observer.awaySince.IsZero():
		observer.awaySince = observer.now()
	}
	observer.mu.Unlock()

	observer.HandleActivity(ctx)
}

// SetFocusTab designates the host of rawURL as the intended task
// context.
func (observer *Observer) SetFocusTab(rawURL string) error {
	host, err := hostOf(rawURL)
	if err != nil {
		return err
	}
	observer.mu.Lock()
	observer.focusHost = host
	observer.awaySince = time.Time{}
	observer.mu.Unlock()
	return nil
}

// ClearFocusTab removes the designated focus tab.
func (observer *Observer) ClearFocusTab() {
	observer.mu.Lock()
	observer.focusHost = ""
	observer.awaySince = time.Time{}
	observer.mu.Unlock()
}

// FocusHost returns the currently designated focus host, if any.
func (observer *Observer) FocusHost() string {
	observer.mu.Lock()
	defer observer.mu.Unlock()
	return observer.focusHost
}

// Tick is the periodic re-check. It tolerates missed or delayed ticks:
// every decision is made from timestamps, not tick counts.
func (observer *Observer) Tick(ctx context.Context) {
	now := observer.now()

	observer.mu.Lock()
	focused := observer.focused
	focusLostAt := observer.focusLostAt
	pauseAfter := observer.config.UnfocusedPauseAfter
	observer.mu.Unlock()

	if focused {
		observer.timer.UpdateActivity(ctx)
	} else if !focusLostAt.IsZero() && now.Sub(focusLostAt) >= pauseAfter {
		observer.timer.PauseWorkTimer(ctx)
	}

	observer.checkBreakExpiry(ctx)
	observer.CheckBreakTimerThreshold(ctx)
	observer.checkFocusDeviation(ctx)
}

// CheckBreakTimerThreshold emits a break-reminder notification when
// accumulated work time has crossed the threshold and no break is in
// progress. Emission is gated by the break cooldown, which advances
// only on a successful emission so a denied notification does not
// suppress a later granted attempt. Reports whether a notification was
// shown.
func (observer *Observer) CheckBreakTimerThreshold(ctx context.Context) bool {
	status := observer.timer.Status()
	if !status.ThresholdExceeded || status.OnBreak {
		return false
	}

	now := observer.now()
	observer.mu.Lock()
	enabled := observer.config.NotificationsEnabled
	onCooldown := !observer.lastBreakNotif.IsZero() &&
		now.Sub(observer.lastBreakNotif) < observer.config.BreakCooldown
	observer.mu.Unlock()
	if !enabled || onCooldown {
		return false
	}

	message := fmt.Sprintf("You have been working for %s. Time for a break?",
		formatWorkTime(status.CurrentWorkTime))
	if err := observer.notifier.Notify(ctx, "Break reminder", message); err != nil {
		observer.log.Warn("break reminder not shown", zap.Error(err))
		return false
	}

	observer.mu.Lock()
	observer.lastBreakNotif = now
	observer.mu.Unlock()
	return true
}

// checkBreakExpiry ends a break whose duration has elapsed, restarting
// the work timer, and tells the user the break is over.
func (observer *Observer) checkBreakExpiry(ctx context.Context) {
	status := observer.timer.Status()
	if !status.OnBreak || status.BreakRemaining > 0 {
		return
	}

	breakType := status.BreakType
	observer.timer.Reset(ctx)

	observer.mu.Lock()
	enabled := observer.config.NotificationsEnabled
	observer.mu.Unlock()
	if !enabled {
		return
	}
	if err := observer.notifier.Notify(ctx, "Break over",
		fmt.Sprintf("Your %s break has ended. Back to work!", breakType)); err != nil {
		observer.log.Warn("break-over notification not shown", zap.Error(err))
	}
}

// checkFocusDeviation notifies when the user has stayed away from the
// designated focus host for longer than the grace period, gated by its
// own cooldown.
func (observer *Observer) checkFocusDeviation(ctx context.Context) {
	now := observer.now()

	observer.mu.Lock()
	focusHost := observer.focusHost
	currentHost := observer.currentHost
	awaySince := observer.awaySince
	enabled := observer.config.NotificationsEnabled
	deviating := focusHost != "" && !awaySince.IsZero() &&
		now.Sub(awaySince) >= observer.config.FocusGrace
	onCooldown := !observer.lastFocusNotif.IsZero() &&
		now.Sub(observer.lastFocusNotif) < observer.config.FocusCooldown
	observer.mu.Unlock()

	if !deviating || !enabled || onCooldown {
		return
	}

	message := fmt.Sprintf("You drifted from %s to %s. Back to the task?",
		focusHost, currentHost)
	if err := observer.notifier.Notify(ctx, "Focus check", message); err != nil {
		observer.log.Warn("focus-deviation notification not shown", zap.Error(err))
		return
	}

	observer.mu.Lock()
	observer.lastFocusNotif = now
	observer.mu.Unlock()
}

func hostOf(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}
	return host, nil
}

func formatWorkTime(value time.Duration) string {
	minutes := int(value.Minutes())
	hours := minutes / 60
	minutes = minutes % 60
	if hours > 0 {
		return fmt.Sprintf("%dh %02dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
