package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dev-tams/sqlbackup/internal/config"
	"github.com/dev-tams/sqlbackup/internal/schedule"
)

// sleepUntil blocks until t and reports false if ctx ended first.
var sleepUntil = func(ctx context.Context, t time.Time) bool {
	timer := time.NewTimer(time.Until(t))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// RunDaemon runs a backup each time backup.schedule matches until ctx is
// canceled. A failed run is logged and notified; later runs still happen.
// runTimeout bounds each run when positive.
func RunDaemon(ctx context.Context, cfg *config.Config, opts Options, runTimeout time.Duration) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	expr := strings.TrimSpace(cfg.Backup.Schedule)
	if expr == "" {
		return fmt.Errorf("daemon: backup.schedule is required")
	}
	spec, err := schedule.Parse(expr)
	if err != nil {
		return fmt.Errorf("daemon: backup.schedule=%q: %w", expr, err)
	}

	log.WithFields(log.Fields{"db": cfg.Database.Database, "schedule": expr}).Info("daemon started")

	for {
		next := spec.Next(now())
		log.WithField("next", next.Format(time.RFC3339)).Debug("daemon waiting")

		if !sleepUntil(ctx, next) {
			log.Info("daemon shutdown requested")
			return nil
		}

		runCtx := ctx
		cancel := func() {}
		if runTimeout > 0 {
			runCtx, cancel = context.WithTimeout(ctx, runTimeout)
		}

		_, err := RunBackup(runCtx, cfg, opts)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				log.Info("daemon shutdown requested")
				return nil
			}
			// RunBackup already logged and notified the failure.
			log.WithField("scheduled", next.Format(time.RFC3339)).Warn("scheduled run failed, waiting for next slot")
		}
	}
}
