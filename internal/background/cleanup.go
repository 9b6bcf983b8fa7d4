package background

import (
	"context"
	"log/slog"
	"time"
)

// SessionSweeper marks expired sessions inactive and drops terminal rows
type SessionSweeper interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// EventPruner enforces the per-account event log and login history caps
type EventPruner interface {
	Prune(ctx context.Context) (int64, error)
}

// CleanupManager periodically sweeps expired sessions and prunes the
// security log back under its caps. Both jobs also run lazily on write
// paths; the sweep catches accounts that went quiet.
type CleanupManager struct {
	sessions SessionSweeper
	events   EventPruner
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(
	sessions SessionSweeper,
	events EventPruner,
	logger *slog.Logger,
	interval time.Duration,
) *CleanupManager {
	return &CleanupManager{
		sessions: sessions,
		events:   events,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// runCleanup runs one sweep of both jobs. A failure in one never blocks the
// other.
func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cm.logger.Info("starting cleanup sweep")

	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	expired, err := cm.sessions.CleanupExpired(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to clean up expired sessions", slog.Any("error", err))
	} else if expired > 0 {
		cm.logger.Info("expired session cleanup completed", slog.Int64("sessions_expired", expired))
	}

	pruned, err := cm.events.Prune(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to prune security log", slog.Any("error", err))
	} else if pruned > 0 {
		cm.logger.Info("security log prune completed", slog.Int64("rows_pruned", pruned))
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
