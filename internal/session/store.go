// Package session holds the process-wide signed-in identity.
package session

import (
	"sync"

	"github.com/lumeno-study/lumeno/internal/models"
)

// State is a consistent view of the store.
type State struct {
	Identity      models.Identity `json:"identity"`
	Authenticated bool            `json:"authenticated"`
	Checked       bool            `json:"checked"`
}

// Store holds at most one Identity plus the auth-check-complete flag.
//
// Observers run synchronously, in subscription order, before the mutating
// call returns. They must not mutate the store.
type Store struct {
	notifyMu sync.Mutex // serializes mutation + notification

	mu        sync.RWMutex
	state     State
	observers []*observer
}

type observer struct {
	fn func(State)
}

func NewStore() *Store {
	return &Store{}
}

// Get returns the current identity, if any.
func (s *Store) Get() (models.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Identity, s.state.Authenticated
}

// Checked reports whether the first provider notification was handled.
func (s *Store) Checked() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Checked
}

func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Set replaces the whole identity.
func (s *Store) Set(identity models.Identity) {
	s.update(func(st *State) {
		st.Identity = identity
		st.Authenticated = true
	})
}

// Clear removes the identity.
func (s *Store) Clear() {
	s.update(func(st *State) {
		st.Identity = models.Identity{}
		st.Authenticated = false
	})
}

// MarkChecked flips auth-check-complete to true. Repeated calls are harmless.
func (s *Store) MarkChecked() {
	s.update(func(st *State) {
		st.Checked = true
	})
}

// Subscribe registers fn for every change and returns a function that
// removes it.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	o := &observer{fn: fn}

	s.mu.Lock()
	s.observers = append(s.observers, o)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, cur := range s.observers {
				if cur == o {
					s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *Store) update(mutate func(*State)) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	mutate(&s.state)
	snapshot := s.state
	observers := make([]*observer, len(s.observers))
	copy(observers, s.observers)
	s.mu.Unlock()

	for _, o := range observers {
		o.fn(snapshot)
	}
}
