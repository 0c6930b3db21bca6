package process

import "sync"

// Slot holds the single guard currently installed for a role (e.g. "backend").
// Replace releases the old guard fully before starting the new one, so two
// children never run at the same time.
type Slot struct {
	mu      sync.Mutex
	current *Guard
}

// Replace closes the current guard (kill and reap) and installs the guard returned by spawn.
// If spawn fails the slot is left empty.
func (s *Slot) Replace(spawn func() (*Guard, error)) (*Guard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		_ = s.current.Close()
		s.current = nil
	}
	g, err := spawn()
	if err != nil {
		return nil, err
	}
	s.current = g
	return g, nil
}

// Current returns the installed guard, or nil.
func (s *Slot) Current() *Guard {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Release closes and removes the installed guard.
func (s *Slot) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		_ = s.current.Close()
		s.current = nil
	}
}
