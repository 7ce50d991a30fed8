package sessions

import (
	"errors"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
)

func Test_new_session_starts_on_slot_zero_with_nothing_delivered(t *testing.T) {
	store := NewInMemoryStore(createLogger())

	session := store.Create("127.0.0.1:4000")
	if session.ID() == "" {
		t.Error("expected session to have an id")
	}
	if session.Endpoint() != "127.0.0.1:4000" {
		t.Error("unexpected endpoint: ", session.Endpoint())
	}
	if session.Nonce() != 0 || session.Offset() != 0 {
		t.Errorf("expected fresh state, received nonce %d offset %d", session.Nonce(), session.Offset())
	}
}

func Test_reconnect_gets_a_brand_new_session(t *testing.T) {
	store := NewInMemoryStore(createLogger())

	first := store.Create("127.0.0.1:4000")
	first.SetNonce(5)
	store.Remove(first.ID())

	second := store.Create("127.0.0.1:4000")
	if second.ID() == first.ID() {
		t.Error("expected a new session id after reconnecting")
	}
	if second.Nonce() != 0 {
		t.Error("expected the new session to start from slot 0, received: ", second.Nonce())
	}
}

func Test_get_and_remove(t *testing.T) {
	store := NewInMemoryStore(createLogger())
	session := store.Create("")

	found, err := store.Get(session.ID())
	if err != nil {
		t.Error(err)
		t.FailNow()
	}
	if found != session {
		t.Error("expected Get to return the live session state")
	}
	if store.Count() != 1 {
		t.Error("expected 1 session, received: ", store.Count())
	}

	store.Remove(session.ID())
	_, err = store.Get(session.ID())
	if !errors.Is(err, ErrSessionNotFound) {
		t.Error("expected ErrSessionNotFound, received: ", err)
	}
	if store.Count() != 0 {
		t.Error("expected 0 sessions, received: ", store.Count())
	}
}

func Test_set_nonce_resets_offset_and_never_moves_backwards(t *testing.T) {
	state := NewState("s1", "")
	state.SetNonce(3)
	state.SetOffset(10)

	state.SetNonce(3)
	if state.Offset() != 10 {
		t.Error("expected offset to survive setting the same nonce, received: ", state.Offset())
	}

	state.SetNonce(1)
	if state.Nonce() != 3 || state.Offset() != 10 {
		t.Errorf("expected lower nonce to be ignored, received nonce %d offset %d", state.Nonce(), state.Offset())
	}

	state.SetNonce(4)
	if state.Nonce() != 4 || state.Offset() != 0 {
		t.Errorf("expected nonce 4 with offset 0, received nonce %d offset %d", state.Nonce(), state.Offset())
	}
}

func Test_state_is_safe_for_concurrent_use(t *testing.T) {
	state := NewState("s1", "")

	wg := &sync.WaitGroup{}
	for i := 0; i < 50; i += 1 {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			state.SetNonce(uint64(i))
			state.SetOffset(i)
		}(i)
		go func() {
			defer wg.Done()
			_ = state.Nonce()
			_ = state.Offset()
		}()
	}
	wg.Wait()

	if state.Nonce() != 49 {
		t.Error("expected the highest nonce to win, received: ", state.Nonce())
	}
}

func createLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)
	return logger
}
