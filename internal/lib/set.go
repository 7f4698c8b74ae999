package lib

import (
	"sync"
)

// Set is thread-safe and can be passed by value.
type Set struct {
	data map[string]struct{}
	mu   *sync.RWMutex
}

func NewSet() Set {
	return Set{
		data: map[string]struct{}{},
		mu:   &sync.RWMutex{},
	}
}

// AddNew adds elem and reports whether it was absent before the call.
func (s Set) AddNew(elem string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[elem]; exists {
		return false
	}
	s.data[elem] = struct{}{}
	return true
}

func (s Set) Contains(elem string) bool {
	if s.mu == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.data[elem]
	return exists
}
