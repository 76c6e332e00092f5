// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/chgenberg/frejfund-site/internal/domain"
)

// Repository persists visitor identities and the generation ledger.
// Plan content itself is never stored here; it lives in session memory and save files.
type Repository interface {
	// GetVisitor retrieves a visitor by user ID. Returns nil, nil if absent.
	GetVisitor(ctx context.Context, userID string) (*domain.Visitor, error)

	// UpsertVisitor creates or updates a visitor record.
	UpsertVisitor(ctx context.Context, v *domain.Visitor) error

	// Touch marks the visitor active and updates last_seen_at.
	Touch(ctx context.Context, userID string, lastSeen time.Time) error

	// MarkInactive clears the active flag after the visitor's sessions were evicted.
	MarkInactive(ctx context.Context, userID string) error

	// GetIdleVisitors returns active visitors whose last activity is older than ttl.
	GetIdleVisitors(ctx context.Context, ttl time.Duration) ([]*domain.Visitor, error)

	// RecordGeneration appends a generation ledger entry.
	RecordGeneration(ctx context.Context, ev *domain.GenerationEvent) error

	// ListGenerations returns the most recent ledger entries for a user, newest first.
	ListGenerations(ctx context.Context, userID string, limit int) ([]*domain.GenerationEvent, error)

	// CleanupGenerations removes ledger entries older than maxAge.
	CleanupGenerations(ctx context.Context, maxAge time.Duration) (int64, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
