package store

import (
	"fmt"
	"sync"
	"testing"
)

func TestReadReceiptIdempotence(t *testing.T) {
	s := NewReadReceiptIndex()

	s.Record("m1", "reader-1")
	s.Record("m1", "reader-1")

	readers := s.Readers("m1")
	if len(readers) != 1 {
		t.Fatalf("expected set of size 1 after duplicate record, got %d", len(readers))
	}
	if readers[0] != "reader-1" {
		t.Errorf("expected reader-1, got %q", readers[0])
	}
}

func TestReadReceiptUnion(t *testing.T) {
	s := NewReadReceiptIndex()

	s.Record("m1", "a")
	s.Record("m1", "b")
	s.Record("m2", "a")

	if got := len(s.Readers("m1")); got != 2 {
		t.Errorf("m1: expected 2 readers, got %d", got)
	}
	if got := len(s.Readers("m2")); got != 1 {
		t.Errorf("m2: expected 1 reader, got %d", got)
	}
	if !s.HasRead("m1", "b") {
		t.Error("expected HasRead(m1, b)")
	}
	if s.HasRead("m2", "b") {
		t.Error("did not expect HasRead(m2, b)")
	}
}

func TestReadReceiptUnknownMessage(t *testing.T) {
	s := NewReadReceiptIndex()

	readers := s.Readers("never-seen")
	if readers == nil {
		t.Fatal("expected non-nil empty slice, got nil")
	}
	if len(readers) != 0 {
		t.Fatalf("expected 0 readers, got %d", len(readers))
	}
}

func TestReadReceiptConcurrentAccess(t *testing.T) {
	s := NewReadReceiptIndex()
	goroutines := 50

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func(id int) {
			defer wg.Done()
			for m := 0; m < 20; m++ {
				s.Record(fmt.Sprintf("m-%d", m), fmt.Sprintf("reader-%d", id))
				_ = s.Readers(fmt.Sprintf("m-%d", m))
			}
		}(g)
	}
	wg.Wait()

	for m := 0; m < 20; m++ {
		if got := len(s.Readers(fmt.Sprintf("m-%d", m))); got != goroutines {
			t.Fatalf("m-%d: expected %d readers, got %d", m, goroutines, got)
		}
	}
}
