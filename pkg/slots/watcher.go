package slots

import (
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watcher turns filesystem events in the slot directory into wake-ups
// for whoever is polling a given slot.
// Wake-ups are coalesced, a subscriber sees at most one pending signal.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	logger    *logrus.Logger

	mu   sync.Mutex
	subs map[uint64]map[chan struct{}]struct{}

	closeOnce sync.Once
}

func NewWatcher(dir string, logger *logrus.Logger) (*Watcher, error) {
	fsW, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	err = fsW.Add(dir)
	if err != nil {
		fsW.Close()
		return nil, err
	}

	w := &Watcher{
		fsWatcher: fsW,
		logger:    logger,
		subs:      map[uint64]map[chan struct{}]struct{}{},
	}
	go w.watchLoop()
	return w, nil
}

// Subscribe registers interest in the files of one slot.
// The returned func must be called to release the subscription.
func (w *Watcher) Subscribe(nonce uint64) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	w.mu.Lock()
	if w.subs[nonce] == nil {
		w.subs[nonce] = map[chan struct{}]struct{}{}
	}
	w.subs[nonce][ch] = struct{}{}
	w.mu.Unlock()

	return ch, func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.subs[nonce], ch)
		if len(w.subs[nonce]) == 0 {
			delete(w.subs, nonce)
		}
	}
}

func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		err = w.fsWatcher.Close()
	})
	return err
}

func (w *Watcher) watchLoop() {
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			nonce, ok := NonceFromPath(event.Name)
			if !ok {
				continue
			}
			w.notify(nonce)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("slot watcher error: ", err)
		}
	}
}

func (w *Watcher) notify(nonce uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for ch := range w.subs[nonce] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// NonceFromPath extracts the slot nonce from a slot file path such as
// "/work/12.txt". Anything that is not a slot file is rejected.
func NonceFromPath(path string) (uint64, bool) {
	stem, ext, found := strings.Cut(filepath.Base(path), ".")
	if !found {
		return 0, false
	}
	switch "." + ext {
	case RequestExt, ResponseExt, DoneExt:
	default:
		return 0, false
	}
	nonce, err := strconv.ParseUint(stem, 10, 64)
	if err != nil {
		return 0, false
	}
	return nonce, true
}
