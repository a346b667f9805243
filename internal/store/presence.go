package store

import (
	"sync"

	"github.com/parley/chat-client/internal/protocol"
)

// PresenceStore holds the current user roster. The server's roster push is
// authoritative: every update fully replaces the local copy rather than
// merging field by field. Join/leave events never mutate the roster directly;
// the server is expected to follow them with a fresh user_list push.
type PresenceStore struct {
	mu    sync.RWMutex
	users []protocol.User
}

// NewPresenceStore creates an empty roster.
func NewPresenceStore() *PresenceStore {
	return &PresenceStore{}
}

// SetRoster replaces the known user list with the server's snapshot.
func (s *PresenceStore) SetRoster(users []protocol.User) {
	roster := make([]protocol.User, len(users))
	copy(roster, users)

	s.mu.Lock()
	s.users = roster
	s.mu.Unlock()
}

// Roster returns a snapshot of the current user list.
func (s *PresenceStore) Roster() []protocol.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]protocol.User, len(s.users))
	copy(out, s.users)
	return out
}
