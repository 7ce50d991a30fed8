package sessions

import "sync"

// State is the shared, concurrency-safe cell behind one client session.
//
// Every accessor is atomic on its own but no atomicity is provided across
// separate calls. Callers must not overlap a Begin with an in-flight
// NextToken on the same session.
type State struct {
	id       string
	endpoint string

	mu sync.RWMutex
	// The slot the session is currently streaming from,
	// only ever moves forward.
	nonce uint64
	// Bytes of nonce's response already delivered to the client.
	offset int
}

func NewState(id string, endpoint string) *State {
	return &State{
		id:       id,
		endpoint: endpoint,
	}
}

func (s *State) ID() string {
	return s.id
}

// Endpoint is the client's network identity, informational only.
func (s *State) Endpoint() string {
	return s.endpoint
}

func (s *State) Nonce() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nonce
}

// SetNonce moves the session to a new slot and resets the delivered
// offset, which is only meaningful relative to the slot it was read from.
// A nonce lower than the current one is ignored.
func (s *State) SetNonce(nonce uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if nonce < s.nonce {
		return
	}
	if nonce != s.nonce {
		s.offset = 0
	}
	s.nonce = nonce
}

func (s *State) Offset() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.offset
}

func (s *State) SetOffset(offset int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offset = offset
}
