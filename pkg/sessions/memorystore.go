package sessions

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

func NewInMemoryStore(logger *logrus.Logger) SessionStore {
	return &inMemoryStore{
		sessions: map[string]*State{},
		logger:   logger,
	}
}

type inMemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*State
	logger   *logrus.Logger
}

func (s *inMemoryStore) Create(endpoint string) *State {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	state := NewState(id, endpoint)
	s.sessions[id] = state
	s.logger.Debug("created session ", id, " for ", endpoint)
	return state
}

func (s *inMemoryStore) Get(id string) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.sessions[id]
	if state == nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return state, nil
}

func (s *inMemoryStore) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Any slot the session was streaming from is abandoned as-is,
	// cleaning up slot files is the worker's business.
	delete(s.sessions, id)
	s.logger.Debug("removed session ", id)
}

func (s *inMemoryStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
