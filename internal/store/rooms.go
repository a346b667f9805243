package store

import (
	"sync"

	"github.com/parley/chat-client/internal/protocol"
)

// RoomStore maps room names to ordered message feeds. Two independent
// mutation paths write to the same keyed slot: incremental Append for live
// room messages and ReplaceHistory for full history snapshots.
type RoomStore struct {
	mu    sync.RWMutex
	rooms map[string][]protocol.Message
}

// NewRoomStore creates an empty room store.
func NewRoomStore() *RoomStore {
	return &RoomStore{rooms: make(map[string][]protocol.Message)}
}

// Append adds a message to the end of the room's feed, creating the feed if
// the room has none yet.
func (s *RoomStore) Append(room string, msg protocol.Message) {
	s.mu.Lock()
	s.rooms[room] = append(s.rooms[room], msg)
	s.mu.Unlock()
}

// ReplaceHistory unconditionally overwrites the room's feed with the given
// ordered sequence, discarding anything previously appended for that room.
//
// The split append/replace protocol has an inherent race: a room_message
// that arrives after the history snapshot was requested but before it is
// applied is not preserved by the replace. The server does not order the two
// event streams relative to each other, so this store applies them in
// arrival order and does not attempt to merge by message ID.
func (s *RoomStore) ReplaceHistory(room string, msgs []protocol.Message) {
	feed := make([]protocol.Message, len(msgs))
	copy(feed, msgs)

	s.mu.Lock()
	s.rooms[room] = feed
	s.mu.Unlock()
}

// Messages returns a snapshot of the room's feed in arrival order. Rooms
// with no feed yield a non-nil empty slice.
func (s *RoomStore) Messages(room string) []protocol.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]protocol.Message, len(s.rooms[room]))
	copy(out, s.rooms[room])
	return out
}

// Rooms returns the names of all rooms with a feed, in no particular order.
func (s *RoomStore) Rooms() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.rooms))
	for name := range s.rooms {
		names = append(names, name)
	}
	return names
}
