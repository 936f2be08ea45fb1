// Package connectivity tracks whether the widget host can reach the backend
// and triggers offline-queue draining when it comes back.
package connectivity

import "sync"

// Source is an observable online/offline flag.
type Source interface {
	Online() bool
	// Subscribe registers fn for change notifications and returns a func
	// that removes it.
	Subscribe(fn func(online bool)) (unsubscribe func())
}

// Signal is a Source driven by explicit Set calls.
type Signal struct {
	mu     sync.Mutex
	online bool
	nextID int
	subs   map[int]func(bool)
}

func NewSignal(online bool) *Signal {
	return &Signal{online: online, subs: make(map[int]func(bool))}
}

func (s *Signal) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

// Set updates the flag and notifies subscribers when it changed. Callbacks
// run on the caller's goroutine, outside the lock.
func (s *Signal) Set(online bool) {
	s.mu.Lock()
	if s.online == online {
		s.mu.Unlock()
		return
	}
	s.online = online
	fns := make([]func(bool), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(online)
	}
}

func (s *Signal) Subscribe(fn func(online bool)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Subscribers reports how many listeners are registered.
func (s *Signal) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}
