package memory

import (
	"sync"

	"github.com/byuoitav/functions"
)

// Storage represents an instantiation of the in-memory client storage. Its
// contents vanish with the process.
type Storage struct {
	data map[string]string
	mu   sync.RWMutex
}

// NewStorage returns a new instantiation of in-memory storage
func NewStorage() *Storage {
	return &Storage{
		data: make(map[string]string),
	}
}

// Get returns the given key's value if it exists
func (s *Storage) Get(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if d, ok := s.data[key]; ok {
		return d, nil
	}

	return "", functions.ErrKeyDoesNotExist
}

// Set sets the given key to the given value
func (s *Storage) Set(key, val string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = val
	return nil
}

// Drop drops the given key if it exists. Dropping a missing key is not an error.
func (s *Storage) Drop(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

// Len returns the number of keys currently stored
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.data)
}
