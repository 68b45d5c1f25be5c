// Package session keeps one controller per browser session in memory.
package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/example/plantdoc/internal/controller"
)

// Factory builds the controller for a new session id.
type Factory func(id string) *controller.Controller

// Store is a bounded, expiring registry of session controllers. Entries
// live only in process memory; the least recently used session is evicted
// when the store is full.
type Store struct {
	sessions *expirable.LRU[string, *controller.Controller]
	factory  Factory
}

// NewStore creates a store holding at most capacity sessions for ttl each.
func NewStore(capacity int, ttl time.Duration, factory Factory) *Store {
	return &Store{
		sessions: expirable.NewLRU[string, *controller.Controller](capacity, nil, ttl),
		factory:  factory,
	}
}

// Get returns the controller of a live session.
func (s *Store) Get(id string) (*controller.Controller, bool) {
	if id == "" {
		return nil, false
	}
	return s.sessions.Get(id)
}

// Create starts a new session and returns its id.
func (s *Store) Create() (string, *controller.Controller) {
	id := uuid.NewString()
	c := s.factory(id)
	s.sessions.Add(id, c)
	return id, c
}

// GetOrCreate returns the session for id, creating a new one when it is unknown or expired.
// created reports whether a new id was issued.
func (s *Store) GetOrCreate(id string) (sessionID string, c *controller.Controller, created bool) {
	if c, ok := s.Get(id); ok {
		return id, c, false
	}
	sessionID, c = s.Create()
	return sessionID, c, true
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	return s.sessions.Len()
}
