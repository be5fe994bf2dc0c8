package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"focusguard/internal/config"
	"focusguard/internal/core/breaktimer"
	"focusguard/internal/core/observer"
	"focusguard/internal/logging"
	"focusguard/internal/platform"
	"focusguard/internal/service"
	"focusguard/internal/storage"
)

const appName = "FocusGuard"

func main() {
	guard, err := platform.AcquireSingleInstance(appName)
	if err != nil {
		log.Printf("single instance: %v", err)
		return
	}
	defer func() {
		_ = guard.Release()
	}()

	cfg, err := config.Load(appName)
	if err != nil {
		log.Printf("config: %v", err)
		return
	}

	logger, err := logging.New(cfg.Development, cfg.LogFile)
	if err != nil {
		log.Printf("logging: %v", err)
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var (
		store    storage.Store
		sessions *storage.SessionRepository
	)
	database, err := storage.Open(cfg.DatabasePath())
	if err != nil {
		logger.Warn("durable store unavailable, falling back to in-memory state",
			zap.Error(err))
		store = storage.NewMemoryStore()
	} else {
		defer func() {
			_ = database.Close()
		}()
		store = database.Store()
		sessions = database.Sessions()
	}

	settings, err := storage.LoadBreakSettings(ctx, store)
	if err != nil {
		logger.Warn("break settings unavailable, using defaults", zap.Error(err))
	}

	timer := breaktimer.New(store, logger, breaktimer.Config{
		WorkTimeThreshold:   settings.WorkTimeThreshold(),
		InactivityThreshold: cfg.InactivityThreshold,
	}, nil)
	if err := timer.Recover(ctx); err != nil {
		logger.Warn("timer recovery failed, starting fresh", zap.Error(err))
	}
	defer timer.Close()

	notifier := platform.NewDesktopNotifier(appName, logger)
	obs := observer.New(timer, notifier, logger, observer.Config{
		BreakCooldown:        cfg.BreakCooldown,
		FocusCooldown:        cfg.FocusCooldown,
		FocusGrace:           cfg.FocusGrace,
		UnfocusedPauseAfter:  cfg.UnfocusedPauseAfter,
		NotificationsEnabled: settings.NotificationsEnabled,
	}, nil)
	if cfg.FocusTabURL != "" {
		if err := obs.SetFocusTab(cfg.FocusTabURL); err != nil {
			logger.Warn("ignoring invalid focus tab url", zap.Error(err))
		}
	}

	applyAutostart(cfg, logger)

	svc := service.New(timer, obs, store, sessions, logger, nil)
	server := &http.Server{Addr: cfg.ListenAddr, Handler: svc.Handler()}
	go func() {
		logger.Info("control endpoint listening", zap.String("addr", cfg.ListenAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("control endpoint failed", zap.Error(err))
		}
	}()

	events := timer.Subscribe(8)
	go func() {
		for event := range events {
			logger.Info("timer event",
				zap.String("type", string(event.Type)),
				zap.String("state", string(event.State)),
				zap.Duration("current_work", event.CurrentWork))
		}
	}()

	runTickLoop(ctx, cfg, timer, obs, logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)
	if err := timer.Flush(context.Background()); err != nil {
		logger.Warn("final state flush failed", zap.Error(err))
	}
	logger.Info("shut down")
}

// runTickLoop drives the observer from the OS idle counter. It stands
// in for the host alarm facility: a missed or delayed tick only delays
// the next re-check, it never loses accumulated time.
func runTickLoop(ctx context.Context, cfg config.Config, timer *breaktimer.Timer,
	obs *observer.Observer, logger *zap.Logger) {
	idleProvider := platform.NewIdleProvider()
	idleSupported := true

	ticker := time.NewTicker(cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if idleSupported {
				idleDuration, err := idleProvider.IdleDuration()
				switch {
				case errors.Is(err, platform.ErrIdleUnsupported):
					idleSupported = false
					logger.Info("idle detection unsupported, assuming continuous activity")
				case err != nil:
					logger.Debug("idle check failed", zap.Error(err))
				case idleDuration <= cfg.TickInterval:
					if !timer.Status().Started {
						timer.StartWorkTimer(ctx)
					}
					obs.HandleFocusGained(ctx)
					obs.HandleActivity(ctx)
				default:
					obs.HandleFocusLost(ctx)
				}
			} else {
				if !timer.Status().Started {
					timer.StartWorkTimer(ctx)
				}
				obs.HandleActivity(ctx)
			}
			obs.Tick(ctx)
		}
	}
}

func applyAutostart(cfg config.Config, logger *zap.Logger) {
	svc := platform.NewService()
	if cfg.Autostart {
		execPath, err := os.Executable()
		if err != nil {
			logger.Warn("autostart not enabled", zap.Error(err))
			return
		}
		if err := svc.EnableAutostart(appName, execPath); err != nil {
			logger.Warn("autostart not enabled", zap.Error(err))
		}
		return
	}
	if err := svc.DisableAutostart(appName); err != nil {
		logger.Debug("autostart not disabled", zap.Error(err))
	}
}
