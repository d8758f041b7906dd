package utils

import "sync"

// A broadcast wake-up signal.
//
// Waiters obtain the current channel with Wait() and block on it.
// Notify() closes that channel, waking every waiter at once, and
// installs a fresh channel for the next round. A waiter that grabbed
// the channel before a Notify() never misses it.
type Signal struct {
	mu sync.Mutex
	ch chan struct{}
}

func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{})}
}

// Wait returns a channel that is closed on the next Notify().
func (s *Signal) Wait() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ch
}

// Notify wakes all current waiters.
func (s *Signal) Notify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	close(s.ch)
	s.ch = make(chan struct{})
}
