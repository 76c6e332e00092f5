// Package domain contains the core types of the business plan builder.
package domain

import (
	"time"
)

// Visitor is an anonymous browser identity that owns one or more plan sessions.
type Visitor struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Active      bool      `json:"active"`
	LastSeenAt  time.Time `json:"last_seen_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IdleFor returns how long the visitor has been inactive relative to now.
func (v *Visitor) IdleFor(now time.Time) time.Duration {
	if v.LastSeenAt.IsZero() {
		return 0
	}
	d := now.Sub(v.LastSeenAt)
	if d < 0 {
		return 0
	}
	return d
}

// SessionTTL returns the time until the visitor's live sessions expire.
// Returns 0 if they already expired or the visitor is inactive.
func (v *Visitor) SessionTTL(sessionDuration time.Duration) time.Duration {
	if !v.Active {
		return 0
	}
	ttl := time.Until(v.LastSeenAt.Add(sessionDuration))
	if ttl < 0 {
		return 0
	}
	return ttl
}

// GenerationEvent is one ledger entry for a call to an external generation service.
type GenerationEvent struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	SessionID  string    `json:"session_id"`
	Kind       string    `json:"kind"`
	Status     string    `json:"status"`
	DurationMS int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Generation event statuses.
const (
	GenerationOK       = "ok"
	GenerationFailed   = "failed"
	GenerationFallback = "fallback"
	GenerationSkipped  = "skipped"
)
