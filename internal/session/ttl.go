package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/chgenberg/frejfund-site/internal/domain"
)

const (
	ttlWorkerInterval = 5 * time.Minute
	ledgerRetention   = 7 * 24 * time.Hour
)

// VisitorRepo is the slice of the store the sweeper needs.
type VisitorRepo interface {
	GetIdleVisitors(ctx context.Context, ttl time.Duration) ([]*domain.Visitor, error)
	MarkInactive(ctx context.Context, userID string) error
	CleanupGenerations(ctx context.Context, maxAge time.Duration) (int64, error)
}

// CleanupCallback is called for every visitor dropped by the sweeper.
type CleanupCallback func(userID string)

// StartTTLWorker periodically drops plan sessions of visitors idle longer than ttl.
func StartTTLWorker(ctx context.Context, repo VisitorRepo, reg *Registry, ttl time.Duration, onCleanup CleanupCallback) {
	ticker := time.NewTicker(ttlWorkerInterval)
	go func() {
		defer ticker.Stop()
		slog.Info("TTL worker started", "interval", ttlWorkerInterval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				SweepIdle(ctx, repo, reg, ttl, onCleanup)
			case <-ctx.Done():
				slog.Info("TTL worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

// SweepIdle runs one cleanup pass and returns the number of visitors dropped.
func SweepIdle(ctx context.Context, repo VisitorRepo, reg *Registry, ttl time.Duration, onCleanup CleanupCallback) int {
	dropped := make(map[string]struct{})

	idle, err := repo.GetIdleVisitors(ctx, ttl)
	if err != nil {
		slog.Error("TTL worker failed to get idle visitors", "error", err)
	}
	for _, v := range idle {
		reg.Drop(v.UserID)
		if err := repo.MarkInactive(ctx, v.UserID); err != nil {
			slog.Warn("TTL worker failed to mark visitor inactive", "error", err, "user_id", v.UserID)
		}
		dropped[v.UserID] = struct{}{}
	}

	// Sessions can outlive a visitor row when the database write failed.
	for _, userID := range reg.DropIdle(ttl) {
		dropped[userID] = struct{}{}
	}

	for userID := range dropped {
		if onCleanup != nil {
			onCleanup(userID)
		}
	}
	if len(dropped) > 0 {
		slog.Info("TTL worker cleanup completed", "cleaned", len(dropped))
	}

	if deleted, err := repo.CleanupGenerations(ctx, ledgerRetention); err != nil {
		slog.Error("TTL worker failed to cleanup generation ledger", "error", err)
	} else if deleted > 0 {
		slog.Info("TTL worker cleaned up generation ledger", "count", deleted)
	}
	return len(dropped)
}
