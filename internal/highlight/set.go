package highlight

import (
	"sync"
	"time"
)

// DefaultTTL is the grace interval after which a highlighted id expires on
// its own.
const DefaultTTL = 5 * time.Second

// Set tracks "just arrived" entity ids for one-shot UI emphasis. Every id
// carries its own cancellable timer: re-adding an id restarts that timer
// without touching the others, so a burst of re-announcements never races
// two removals for the same id.
type Set struct {
	ttl time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func New(ttl time.Duration) *Set {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Set{ttl: ttl, timers: make(map[string]*time.Timer)}
}

// Add inserts id and (re)starts its expiry timer.
func (s *Set) Add(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[id]; ok {
		t.Stop()
	}
	// Stop cannot cancel a callback that has already fired and is waiting
	// on the lock, so expiry only removes the entry when the map still
	// holds the timer it belongs to. A superseded callback finds a newer
	// timer and leaves the entry alone.
	var t *time.Timer
	t = time.AfterFunc(s.ttl, func() { s.expire(id, t) })
	s.timers[id] = t
}

func (s *Set) expire(id string, owner *time.Timer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timers[id] == owner {
		delete(s.timers, id)
	}
}

// Remove drops id and cancels its timer; absent ids are a no-op.
func (s *Set) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
}

func (s *Set) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[id]
	return ok
}

func (s *Set) Ids() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.timers))
	for id := range s.timers {
		ids = append(ids, id)
	}
	return ids
}

func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels every pending timer, for shutdown.
func (s *Set) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}
