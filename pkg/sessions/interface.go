package sessions

import "errors"

var ErrSessionNotFound = errors.New("session not found")

type SessionStore interface {
	// Creates a brand-new session for a connection, sessions are never
	// resumed so a reconnecting client always starts from a fresh state.
	Create(endpoint string) *State
	// Retrieves the live state of a session.
	Get(id string) (*State, error)
	// Discards a session once its connection has closed.
	Remove(id string)
	// The number of sessions currently held.
	Count() int
}
