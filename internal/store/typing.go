package store

import "sync"

// TypingStore holds the set of usernames currently composing a message. Every
// update replaces the set wholesale. There is no local expiry timer: if the
// server never sends a follow-up update, a user stays "typing" until the
// next push.
type TypingStore struct {
	mu    sync.RWMutex
	users []string
}

// NewTypingStore creates an empty typing set.
func NewTypingStore() *TypingStore {
	return &TypingStore{}
}

// Set replaces the typing set with the server's snapshot.
func (s *TypingStore) Set(users []string) {
	set := make([]string, len(users))
	copy(set, users)

	s.mu.Lock()
	s.users = set
	s.mu.Unlock()
}

// Users returns a snapshot of the usernames currently typing.
func (s *TypingStore) Users() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.users))
	copy(out, s.users)
	return out
}
