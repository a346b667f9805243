package store

import "sync"

// ReadReceiptIndex maps message IDs to the set of users who have acknowledged
// them. The index only ever grows: recording is a set union, redelivered
// acknowledgements are no-ops, and neither disconnects nor reconnects reset
// accumulated receipts.
type ReadReceiptIndex struct {
	mu       sync.RWMutex
	receipts map[string]map[string]struct{}
}

// NewReadReceiptIndex creates an empty receipt index.
func NewReadReceiptIndex() *ReadReceiptIndex {
	return &ReadReceiptIndex{receipts: make(map[string]map[string]struct{})}
}

// Record adds readerID to the set for messageID, creating the set if absent.
// Idempotent by construction.
func (s *ReadReceiptIndex) Record(messageID, readerID string) {
	s.mu.Lock()
	set, ok := s.receipts[messageID]
	if !ok {
		set = make(map[string]struct{})
		s.receipts[messageID] = set
	}
	set[readerID] = struct{}{}
	s.mu.Unlock()
}

// Readers returns the IDs of all users who have acknowledged the message, in
// no particular order. Unknown messages yield a non-nil empty slice.
func (s *ReadReceiptIndex) Readers(messageID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.receipts[messageID]))
	for reader := range s.receipts[messageID] {
		out = append(out, reader)
	}
	return out
}

// HasRead reports whether readerID has acknowledged messageID.
func (s *ReadReceiptIndex) HasRead(messageID, readerID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.receipts[messageID][readerID]
	return ok
}
