package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry owns every live session for the process lifetime. Sessions
// are created on first contact, kept in memory only, and removed when
// idle past the configured TTL. Creation is the single contended write
// path; lookups across different sessions run concurrently.
type Registry struct {
	ttl time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry. A non-positive ttl disables
// idle eviction.
func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		ttl:      ttl,
		sessions: make(map[string]*Session),
	}
}

// Resolve returns the session for the given id, creating one when the
// id is empty, unknown, or expired. A client-supplied unknown id is
// adopted as the new session's id so that concurrent first requests
// carrying the same id converge on a single session; an empty id gets
// a freshly generated one.
func (r *Registry) Resolve(sessionID string) (*Session, bool) {
	now := time.Now().UTC()

	if sessionID != "" {
		r.mu.RLock()
		existing, ok := r.sessions[sessionID]
		r.mu.RUnlock()
		if ok && !existing.expired(now, r.ttl) {
			existing.touch(now)
			return existing, false
		}
	}

	id := sessionID
	if id == "" {
		id = uuid.NewString()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Re-check under the write lock: another request may have created
	// the session between the read above and here.
	if existing, ok := r.sessions[id]; ok {
		if !existing.expired(now, r.ttl) {
			existing.touch(now)
			return existing, false
		}
		delete(r.sessions, id)
	}

	created := newSession(id, now)
	r.sessions[id] = created
	return created, true
}

// Get returns the session for the given id without creating one.
func (r *Registry) Get(sessionID string) (*Session, bool) {
	now := time.Now().UTC()

	r.mu.RLock()
	existing, ok := r.sessions[sessionID]
	r.mu.RUnlock()

	if !ok || existing.expired(now, r.ttl) {
		return nil, false
	}
	return existing, true
}

// Len reports the number of registered sessions, expired or not.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep removes every session idle past the TTL and reports how many
// were evicted.
func (r *Registry) Sweep(now time.Time) int {
	if r.ttl <= 0 {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id, s := range r.sessions {
		if s.expired(now, r.ttl) {
			delete(r.sessions, id)
			evicted++
		}
	}
	return evicted
}

// RunSweeper periodically evicts idle sessions until ctx is done. Run
// it in its own goroutine.
func (r *Registry) RunSweeper(ctx context.Context, interval time.Duration) {
	if r.ttl <= 0 || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := r.Sweep(now.UTC()); n > 0 {
				log.Printf("[session] evicted %d idle session(s)", n)
			}
		}
	}
}
