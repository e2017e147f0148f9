package sync

import "sync"

// ProcessedSet tracks the event identifiers already turned into canonical
// orders during the current process lifetime. It grows monotonically within a
// session, is reset only by process restart, and is never persisted. The
// local store remains the source of truth across restarts.
type ProcessedSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

// NewProcessedSet creates an empty processed set
func NewProcessedSet() *ProcessedSet {
	return &ProcessedSet{ids: make(map[string]struct{})}
}

// Mark records the identifier as processed
func (s *ProcessedSet) Mark(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[id] = struct{}{}
}

// MarkIfNew records the identifier and reports whether it was newly marked.
// The check and the insert are one atomic step so two near-simultaneous
// events for the same identifier cannot both observe it as new.
func (s *ProcessedSet) MarkIfNew(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.ids[id]; seen {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

// Seen reports whether the identifier has been processed this session
func (s *ProcessedSet) Seen(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, seen := s.ids[id]
	return seen
}

// Evict removes the identifier so a later re-creation under the same key is
// treated as new
func (s *ProcessedSet) Evict(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ids, id)
}

// Len returns the number of processed identifiers
func (s *ProcessedSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}
