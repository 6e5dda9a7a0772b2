package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/byuoitav/functions"
	"github.com/byuoitav/functions/log"
)

// ErrMissingUsername is returned when a session is established without a username
var ErrMissingUsername = errors.New("a username is required to establish a session")

// Store is the single source of truth for the client's session. One Store is
// created at startup and shared by every consumer; consumers that render
// session dependent output subscribe to it.
type Store struct {
	storage functions.Storage

	state State
	gen   uint64
	mu    sync.RWMutex

	subs   map[int]func(State)
	nextID int
	subMu  sync.Mutex
}

// NewStore returns a Store backed by the given persisted storage. The store
// starts anonymous until Initialize is called.
func NewStore(storage functions.Storage) *Store {
	return &Store{
		storage: storage,
		subs:    make(map[int]func(State)),
	}
}

// Initialize loads the session from persisted storage. The presence of a
// username decides whether the session is authenticated.
func (s *Store) Initialize() error {
	username, err := s.storage.Get(functions.KeyUsername)
	if err != nil && !errors.Is(err, functions.ErrKeyDoesNotExist) {
		return fmt.Errorf("unable to read username from storage: %w", err)
	}

	next := State{}
	if username != "" {
		next = State{Authenticated: true, Username: username}
	}

	s.mu.Lock()
	gen, changed := s.set(next)
	s.mu.Unlock()

	if changed {
		s.notify(gen)
	}

	log.L.Debugf("session initialized: authenticated=%t username=%q", next.Authenticated, next.Username)
	return nil
}

// SetAuthenticated persists username and marks the session as authenticated
func (s *Store) SetAuthenticated(username string) error {
	if username == "" {
		return ErrMissingUsername
	}

	s.mu.Lock()
	if err := s.storage.Set(functions.KeyUsername, username); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("unable to persist username: %w", err)
	}

	gen, changed := s.set(State{Authenticated: true, Username: username})
	s.mu.Unlock()

	if changed {
		s.notify(gen)
	}

	return nil
}

// Clear removes the persisted marker and resets the session to anonymous.
// Storage is always cleared; subscribers are only notified, and changed is
// only true, when the session was not already anonymous.
func (s *Store) Clear() (changed bool, err error) {
	s.mu.Lock()
	errDrop := s.storage.Drop(functions.KeyUsername)

	prev := s.state
	gen, changed := s.set(State{})
	s.mu.Unlock()

	if changed {
		log.L.Infof("session for %q cleared", prev.Username)
		s.notify(gen)
	}

	if errDrop != nil {
		return changed, fmt.Errorf("unable to drop username: %w", errDrop)
	}

	return changed, nil
}

// State returns a copy of the current session state
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state
}

// Subscribe registers fn to be called synchronously after every change of the
// session. The returned function removes the subscription.
func (s *Store) Subscribe(fn func(State)) func() {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// set replaces the state and returns the generation of the change. Callers
// must hold s.mu.
func (s *Store) set(next State) (uint64, bool) {
	if s.state == next {
		return s.gen, false
	}

	s.state = next
	s.gen++
	return s.gen, true
}

// notify delivers the change of generation gen. It runs with no store locks
// held so subscribers may call back into the store; once a subscriber has
// caused a newer change, the rest of this delivery is dropped because the
// newer one already reached every subscriber.
func (s *Store) notify(gen uint64) {
	s.subMu.Lock()
	fns := make([]func(State), 0, len(s.subs))
	for id := 0; id < s.nextID; id++ {
		if fn, ok := s.subs[id]; ok {
			fns = append(fns, fn)
		}
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		s.mu.RLock()
		current, st := s.gen == gen, s.state
		s.mu.RUnlock()

		if !current {
			return
		}

		fn(st)
	}
}
