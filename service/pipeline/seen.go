package pipeline

import "sync"

// SeenSet is a bounded FIFO set of processed keys. When full, the
// oldest entry is forgotten. A zero capacity disables it.
type SeenSet struct {
	mu       sync.Mutex
	capacity int
	order    []string
	next     int
	members  map[string]struct{}
}

// NewSeenSet creates a SeenSet holding at most capacity signatures.
func NewSeenSet(capacity int) *SeenSet {
	if capacity < 0 {
		capacity = 0
	}
	return &SeenSet{
		capacity: capacity,
		order:    make([]string, 0, capacity),
		members:  make(map[string]struct{}, capacity),
	}
}

// Add records sig and reports whether it was new.
func (s *SeenSet) Add(sig string) bool {
	if s == nil || s.capacity == 0 {
		return true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.members[sig]; ok {
		return false
	}
	if len(s.order) < s.capacity {
		s.order = append(s.order, sig)
	} else {
		if old := s.order[s.next]; old != "" {
			delete(s.members, old)
		}
		s.order[s.next] = sig
		s.next = (s.next + 1) % s.capacity
	}
	s.members[sig] = struct{}{}
	return true
}

// Remove forgets sig so a later Add accepts it again.
func (s *SeenSet) Remove(sig string) {
	if s == nil || s.capacity == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.members[sig]; !ok {
		return
	}
	delete(s.members, sig)
	// blank the ring slot so a re-added sig is not evicted through it
	for i, v := range s.order {
		if v == sig {
			s.order[i] = ""
			break
		}
	}
}

// Contains reports whether sig is remembered.
func (s *SeenSet) Contains(sig string) bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.members[sig]
	return ok
}

// Len returns the number of remembered signatures.
func (s *SeenSet) Len() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.members)
}
