package store

import (
	"fmt"
	"sync"
	"testing"

	"github.com/parley/chat-client/internal/protocol"
)

func TestRoomStoreAppendCreatesFeed(t *testing.T) {
	s := NewRoomStore()

	s.Append("lobby", protocol.Message{ID: "1", Text: "hi", Room: "lobby"})

	msgs := s.Messages("lobby")
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Text != "hi" {
		t.Errorf("expected text %q, got %q", "hi", msgs[0].Text)
	}
}

func TestRoomStoreReplaceDiscardsPriorContent(t *testing.T) {
	s := NewRoomStore()

	s.Append("lobby", protocol.Message{ID: "stale-1", Text: "old"})
	s.Append("lobby", protocol.Message{ID: "stale-2", Text: "older"})

	history := []protocol.Message{
		{ID: "1", Text: "m1", Room: "lobby"},
		{ID: "2", Text: "m2", Room: "lobby"},
	}
	s.ReplaceHistory("lobby", history)

	msgs := s.Messages("lobby")
	if len(msgs) != 2 {
		t.Fatalf("expected exactly the history, got %d messages", len(msgs))
	}
	if msgs[0].ID != "1" || msgs[1].ID != "2" {
		t.Errorf("history not applied in order: %+v", msgs)
	}
}

func TestRoomStoreHistoryThenAppend(t *testing.T) {
	s := NewRoomStore()

	s.ReplaceHistory("lobby", []protocol.Message{
		{ID: "1", Text: "m1"},
		{ID: "2", Text: "m2"},
	})
	s.Append("lobby", protocol.Message{ID: "3", Text: "m3"})

	msgs := s.Messages("lobby")
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if msgs[2].ID != "3" {
		t.Errorf("expected append after history, got %+v", msgs)
	}
}

func TestRoomStoreReplaceDoesNotAliasCaller(t *testing.T) {
	s := NewRoomStore()

	history := []protocol.Message{{ID: "1", Text: "m1"}}
	s.ReplaceHistory("lobby", history)
	history[0].Text = "mutated"

	if got := s.Messages("lobby")[0].Text; got != "m1" {
		t.Errorf("caller mutation leaked into store: %q", got)
	}
}

func TestRoomStoreUnknownRoom(t *testing.T) {
	s := NewRoomStore()

	msgs := s.Messages("does-not-exist")
	if msgs == nil {
		t.Fatal("expected non-nil empty slice, got nil")
	}
	if len(msgs) != 0 {
		t.Fatalf("expected 0 messages, got %d", len(msgs))
	}
}

func TestRoomStoreIndependentRooms(t *testing.T) {
	s := NewRoomStore()

	s.Append("lobby", protocol.Message{ID: "1", Text: "lobby-msg"})
	s.Append("dev", protocol.Message{ID: "2", Text: "dev-msg"})
	s.ReplaceHistory("lobby", []protocol.Message{{ID: "3", Text: "replaced"}})

	if got := s.Messages("dev"); len(got) != 1 || got[0].Text != "dev-msg" {
		t.Errorf("replace on lobby affected dev: %+v", got)
	}
	if got := s.Messages("lobby"); len(got) != 1 || got[0].Text != "replaced" {
		t.Errorf("lobby not replaced: %+v", got)
	}

	rooms := s.Rooms()
	if len(rooms) != 2 {
		t.Errorf("expected 2 rooms, got %v", rooms)
	}
}

func TestRoomStoreConcurrentAccess(t *testing.T) {
	s := NewRoomStore()
	goroutines := 50

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func(id int) {
			defer wg.Done()
			room := fmt.Sprintf("room-%d", id%5)
			for m := 0; m < 20; m++ {
				s.Append(room, protocol.Message{ID: fmt.Sprintf("g%d-m%d", id, m)})
				if m%7 == 0 {
					s.ReplaceHistory(room, []protocol.Message{{ID: "h"}})
				}
				_ = s.Messages(room)
			}
		}(g)
	}
	wg.Wait()
	// No assertion beyond absence of races and panics; interleaving of
	// append and replace is arrival-order defined.
}
