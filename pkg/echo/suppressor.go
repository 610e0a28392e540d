package echo

import "sync"

// DefaultCapacity bounds the suppressor when no capacity is configured.
const DefaultCapacity = 4096

// Suppressor is a bounded set of remote message ids this bridge produced.
// The outbound dispatcher inserts ids on successful sends; the inbound
// translator drains matching ids to discard self-originated echoes. Ids
// whose echo never arrives are evicted oldest-first once the set is full.
type Suppressor struct {
	mu       sync.Mutex
	capacity int
	ids      map[string]struct{}
	order    []string
}

func NewSuppressor(capacity int) *Suppressor {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Suppressor{
		capacity: capacity,
		ids:      make(map[string]struct{}, capacity),
	}
}

// Add registers a message id, evicting the oldest live entry when full.
func (s *Suppressor) Add(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ids[id]; ok {
		return
	}
	for len(s.ids) >= s.capacity && len(s.order) > 0 {
		oldest := s.order[0]
		s.order = s.order[1:]
		// Entries drained by TakeIf leave stale order slots behind.
		if _, live := s.ids[oldest]; live {
			delete(s.ids, oldest)
		}
	}
	s.ids[id] = struct{}{}
	s.order = append(s.order, id)
}

// TakeIf removes the id if present and reports whether it was.
func (s *Suppressor) TakeIf(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ids[id]; !ok {
		return false
	}
	delete(s.ids, id)
	return true
}

func (s *Suppressor) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}
