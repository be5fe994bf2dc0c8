package platform

import (
	"context"
	"fmt"

	"github.com/gen2brain/beeep"
	"go.uber.org/zap"
)

// DesktopNotifier shows system notifications. A returned error means
// the notification was not displayed (for example, the desktop
// notification service denied or is absent); callers treat that as a
// degraded mode, not a failure.
type DesktopNotifier struct {
	appName string
	log     *zap.Logger
}

// NewDesktopNotifier creates a notifier labeled with appName.
func NewDesktopNotifier(appName string, log *zap.Logger) *DesktopNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	beeep.AppName = appName
	return &DesktopNotifier{appName: appName, log: log}
}

// Notify displays a system notification.
func (notifier *DesktopNotifier) Notify(_ context.Context, title, message string) error {
	if err := beeep.Notify(title, message, ""); err != nil {
		return fmt.Errorf("show notification: %w", err)
	}
	notifier.log.Debug("notification shown", zap.String("title", title))
	return nil
}

// LogNotifier writes notifications to the log instead of the desktop.
// Used when desktop notifications are unavailable.
type LogNotifier struct {
	log *zap.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(log *zap.Logger) *LogNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogNotifier{log: log}
}

// Notify logs the notification and reports success.
func (notifier *LogNotifier) Notify(_ context.Context, title, message string) error {
	notifier.log.Info("notification",
		zap.String("title", title),
		zap.String("message", message))
	return nil
}
