package slots

import (
	"os"
	"testing"
	"time"
)

func TestNonceFromPath(t *testing.T) {
	tests := []struct {
		path      string
		wantNonce uint64
		wantOK    bool
	}{
		{"/work/0.json", 0, true},
		{"/work/12.txt", 12, true},
		{"/work/7.done", 7, true},
		{"/work/.request-123.tmp", 0, false},
		{"/work/notes.txt", 0, false},
		{"/work/3.log", 0, false},
		{"/work/3", 0, false},
		{"/work/-1.txt", 0, false},
	}

	for _, tt := range tests {
		nonce, ok := NonceFromPath(tt.path)
		if ok != tt.wantOK || nonce != tt.wantNonce {
			t.Errorf("NonceFromPath(%q) = (%d, %v), want (%d, %v)",
				tt.path, nonce, ok, tt.wantNonce, tt.wantOK)
		}
	}
}

func TestWatcher_NotifiesSubscriberOfItsSlot(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, createLogger())
	w, err := NewWatcher(dir, createLogger())
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	defer w.Close()

	wake, release := w.Subscribe(4)
	defer release()

	os.WriteFile(store.ResponsePath(4), []byte("Hi"), 0o644)

	select {
	case <-wake:
	case <-time.After(5 * time.Second):
		t.Fatal("expected a wake-up after the response file was written")
	}
}

func TestWatcher_IgnoresOtherSlots(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, createLogger())
	w, err := NewWatcher(dir, createLogger())
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	defer w.Close()

	wake, release := w.Subscribe(1)
	defer release()
	marker, releaseMarker := w.Subscribe(2)
	defer releaseMarker()

	os.WriteFile(store.ResponsePath(2), []byte("Hi"), 0o644)

	// Events are delivered in order, once slot 2 has been woken
	// slot 1 would have been too.
	select {
	case <-marker:
	case <-time.After(5 * time.Second):
		t.Fatal("expected a wake-up for slot 2")
	}
	select {
	case <-wake:
		t.Error("slot 1 subscriber woken by a slot 2 event")
	default:
	}
}

func TestWatcher_ReleaseDropsSubscription(t *testing.T) {
	w, err := NewWatcher(t.TempDir(), createLogger())
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	defer w.Close()

	_, release := w.Subscribe(9)
	release()

	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.subs) != 0 {
		t.Errorf("expected no subscriptions left, got %d", len(w.subs))
	}
}
