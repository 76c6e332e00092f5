package session

import (
	"log/slog"
	"sync"
	"time"
)

type entry struct {
	store    *Store
	lastSeen time.Time
}

// Registry maps visitors and their tab sessions to live stores.
type Registry struct {
	mu     sync.RWMutex
	active map[string]map[string]*entry
	now    func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		active: make(map[string]map[string]*entry),
		now:    time.Now,
	}
}

// Get returns the store for a user/session, creating it on first use.
func (r *Registry) Get(userID, sessionID string) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions, ok := r.active[userID]
	if !ok {
		sessions = make(map[string]*entry)
		r.active[userID] = sessions
	}
	e, ok := sessions[sessionID]
	if !ok {
		e = &entry{store: NewStore()}
		sessions[sessionID] = e
		slog.Info("Plan session created", "user_id", userID, "session_id", sessionID)
	}
	e.lastSeen = r.now()
	return e.store
}

// Lookup returns the store for a user/session without creating it.
func (r *Registry) Lookup(userID, sessionID string) *Store {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if sessions, ok := r.active[userID]; ok {
		if e, ok := sessions[sessionID]; ok {
			return e.store
		}
	}
	return nil
}

// Drop forgets every session of a user.
func (r *Registry) Drop(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.active[userID])
	delete(r.active, userID)
	if n > 0 {
		slog.Info("Plan sessions dropped", "user_id", userID, "count", n)
	}
	return n
}

// DropIdle forgets sessions that have not been touched within ttl and
// returns the affected user IDs.
func (r *Registry) DropIdle(ttl time.Duration) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-ttl)
	var users []string
	for userID, sessions := range r.active {
		for sid, e := range sessions {
			if e.lastSeen.Before(cutoff) {
				delete(sessions, sid)
				slog.Info("Idle plan session dropped", "user_id", userID, "session_id", sid)
			}
		}
		if len(sessions) == 0 {
			delete(r.active, userID)
			users = append(users, userID)
		}
	}
	return users
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, sessions := range r.active {
		n += len(sessions)
	}
	return n
}
