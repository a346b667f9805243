// Package store holds the client-side state reconciled from inbound server
// events: the global message feed, per-room feeds, the presence roster, the
// typing set, and the read-receipt index. All stores are goroutine-safe:
// mutations arrive from the single dispatch goroutine while the UI reads
// snapshots concurrently. Disconnects never clear store state; a
// reconnecting session resumes with whatever was locally retained.
package store

import (
	"sync"

	"github.com/parley/chat-client/internal/protocol"
)

// MessageStore is the append-only ordered feed for the global room. Ordering
// is arrival order, not timestamp order, and message IDs are not
// deduplicated; callers relying on idempotent delivery must dedup upstream.
type MessageStore struct {
	mu       sync.RWMutex
	messages []protocol.Message
}

// NewMessageStore creates an empty global feed.
func NewMessageStore() *MessageStore {
	return &MessageStore{}
}

// Append pushes a message to the end of the feed.
func (s *MessageStore) Append(msg protocol.Message) {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
}

// Messages returns a snapshot of the feed in arrival order.
func (s *MessageStore) Messages() []protocol.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]protocol.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Last returns the most recently appended message, if any.
func (s *MessageStore) Last() (protocol.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.messages) == 0 {
		return protocol.Message{}, false
	}
	return s.messages[len(s.messages)-1], true
}

// Len returns the current feed length.
func (s *MessageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}
