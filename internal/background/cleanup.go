package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/BradenHooton/bastion/internal/repositories"
)

// terminatedRetention is how long terminated session rows are kept for audit
// before being deleted.
const terminatedRetention = 30 * 24 * time.Hour

// CleanupManager periodically terminates expired sessions and prunes old
// terminated rows. Lockouts need no sweeping: expiry is evaluated lazily at
// check time, and rate-limit counters expire via their store TTLs.
type CleanupManager struct {
	sessionRepo *repositories.SessionRepository
	logger      *slog.Logger
	interval    time.Duration
	stopCh      chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(sessionRepo *repositories.SessionRepository, logger *slog.Logger, interval time.Duration) *CleanupManager {
	return &CleanupManager{
		sessionRepo: sessionRepo,
		logger:      logger,
		interval:    interval,
		stopCh:      make(chan struct{}),
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

// Stop signals the cleanup loop to exit
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}

func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	expired, err := cm.sessionRepo.TerminateExpired(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to terminate expired sessions", slog.Any("error", err))
	} else if expired > 0 {
		cm.logger.Info("terminated expired sessions", slog.Int64("count", expired))
	}

	cutoff := time.Now().Add(-terminatedRetention)
	deleted, err := cm.sessionRepo.DeleteTerminatedBefore(cleanupCtx, cutoff)
	if err != nil {
		cm.logger.Error("failed to prune terminated sessions", slog.Any("error", err))
	} else if deleted > 0 {
		cm.logger.Info("pruned terminated sessions", slog.Int64("count", deleted))
	}
}
