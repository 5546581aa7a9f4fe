package server

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// TempSweeper removes partially written uploads older than a cutoff.
type TempSweeper interface {
	RemoveStaleTemp(ctx context.Context, cutoff time.Time) (int, error)
}

// CleanupConfig holds configuration for the cleanup job
type CleanupConfig struct {
	Interval time.Duration
	MaxAge   time.Duration
	Sweeper  TempSweeper
	Logger   *zap.Logger
}

// StartCleanupJob periodically removes abandoned temporary upload files
// until ctx is cancelled. A zero Interval or nil Sweeper disables it.
func StartCleanupJob(ctx context.Context, cfg CleanupConfig) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("service", "cleanup"))

	if cfg.Interval <= 0 || cfg.Sweeper == nil {
		log.Info("disabled")
		return
	}

	log.Info("starting", zap.Duration("interval", cfg.Interval), zap.Duration("max_age", cfg.MaxAge))

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	runCleanup(ctx, cfg, log)
	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			return
		case <-ticker.C:
			runCleanup(ctx, cfg, log)
		}
	}
}

func runCleanup(ctx context.Context, cfg CleanupConfig, log *zap.Logger) {
	start := time.Now()
	removed, err := cfg.Sweeper.RemoveStaleTemp(ctx, start.Add(-cfg.MaxAge))
	if err != nil {
		log.Warn("cleanup run failed", zap.Int("removed", removed), zap.Error(err))
		return
	}
	log.Debug("cleanup complete",
		zap.Int("removed", removed),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
}
