package session

import (
	"sync"
	"time"

	"github.com/driroane/llamachat/internal/model/chat"
)

// Session is a live registry entry: conversation metadata plus the
// transcript itself. The embedded mutex serialises Append and Snapshot
// so one request's read-then-append sequence cannot interleave with a
// concurrent request on the same session.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu         sync.Mutex
	lastActive time.Time
	turns      []chat.Turn
}

func newSession(id string, now time.Time) *Session {
	return &Session{
		ID:         id,
		CreatedAt:  now,
		lastActive: now,
		turns:      make([]chat.Turn, 0, 16),
	}
}

// Append records a turn at the end of the transcript.
func (s *Session) Append(role, text string) chat.Turn {
	turn := chat.Turn{
		Role:      role,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.turns = append(s.turns, turn)
	s.lastActive = turn.CreatedAt
	s.mu.Unlock()

	return turn
}

// Snapshot returns a copy of the transcript in arrival order. Turns
// appended after the snapshot is taken are not visible through it.
func (s *Session) Snapshot() []chat.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]chat.Turn, len(s.turns))
	copy(copied, s.turns)
	return copied
}

// Len reports the number of recorded turns.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// LastActiveAt reports the most recent activity timestamp.
func (s *Session) LastActiveAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	if now.After(s.lastActive) {
		s.lastActive = now
	}
	s.mu.Unlock()
}

func (s *Session) expired(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastActive) > ttl
}
