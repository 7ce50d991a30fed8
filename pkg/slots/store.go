package slots

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sirupsen/logrus"
)

const (
	RequestExt  = ".json"
	ResponseExt = ".txt"
	DoneExt     = ".done"
)

// ErrSlotTaken is returned when a request record already exists
// for the slot being claimed.
var ErrSlotTaken = errors.New("slot already holds a request record")

// Request is the record the worker consumes from {nonce}.json.
// Field order matters, workers and tests compare the raw bytes.
type Request struct {
	SystemPrompt string `json:"system_prompt"`
	UserPrompt   string `json:"user_prompt"`
}

// Store is the directory shared with the text generation worker.
// It holds no state of its own, every call goes to the filesystem.
//
// For a slot n the gateway writes n.json once, the worker appends to
// n.txt and finally creates n.done after the last byte of n.txt is durable.
type Store struct {
	dir    string
	logger *logrus.Logger
}

func NewStore(dir string, logger *logrus.Logger) *Store {
	return &Store{
		dir:    dir,
		logger: logger,
	}
}

func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) RequestPath(nonce uint64) string {
	return s.path(nonce, RequestExt)
}

func (s *Store) ResponsePath(nonce uint64) string {
	return s.path(nonce, ResponseExt)
}

func (s *Store) DonePath(nonce uint64) string {
	return s.path(nonce, DoneExt)
}

func (s *Store) path(nonce uint64, ext string) string {
	return filepath.Join(s.dir, strconv.FormatUint(nonce, 10)+ext)
}

func (s *Store) RequestExists(nonce uint64) (bool, error) {
	return exists(s.RequestPath(nonce))
}

func (s *Store) ResponseExists(nonce uint64) (bool, error) {
	return exists(s.ResponsePath(nonce))
}

// IsDone reports whether the worker has created the completion marker.
func (s *Store) IsDone(nonce uint64) (bool, error) {
	return exists(s.DonePath(nonce))
}

// ReadResponse returns the whole response stream as it currently is.
func (s *Store) ReadResponse(nonce uint64) ([]byte, error) {
	return os.ReadFile(s.ResponsePath(nonce))
}

func (s *Store) ReadRequest(nonce uint64) (*Request, error) {
	data, err := os.ReadFile(s.RequestPath(nonce))
	if err != nil {
		return nil, err
	}
	req := &Request{}
	err = json.Unmarshal(data, req)
	if err != nil {
		return nil, fmt.Errorf("decode request record for slot %d: %w", nonce, err)
	}
	return req, nil
}

// Submit writes req as the request record of the first free slot at or
// after from and returns that slot's nonce.
//
// The record is staged in a hidden temp file and hard linked into place,
// the link fails when the record already exists so two callers can never
// claim the same slot. Stale output for the chosen slot is removed before
// the record becomes visible to the worker.
func (s *Store) Submit(from uint64, req *Request) (uint64, error) {
	data, err := encodeRequest(req)
	if err != nil {
		return from, fmt.Errorf("encode request record: %w", err)
	}

	tmpPath, err := s.stage(data)
	if err != nil {
		return from, err
	}
	defer os.Remove(tmpPath)

	for nonce := from; ; nonce++ {
		err := s.claim(nonce, tmpPath)
		if errors.Is(err, ErrSlotTaken) {
			s.logger.Debug("slot taken, trying next: ", nonce)
			continue
		}
		return nonce, err
	}
}

func (s *Store) stage(data []byte) (string, error) {
	tmp, err := os.CreateTemp(s.dir, ".request-*.tmp")
	if err != nil {
		return "", fmt.Errorf("stage request record: %w", err)
	}
	tmpPath := tmp.Name()

	_, err = tmp.Write(data)
	if err == nil {
		err = tmp.Chmod(0o644)
	}
	if err == nil {
		err = tmp.Sync()
	}
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("stage request record: %w", err)
	}
	return tmpPath, nil
}

func (s *Store) claim(nonce uint64, tmpPath string) error {
	taken, err := s.RequestExists(nonce)
	if err != nil {
		return fmt.Errorf("check request record for slot %d: %w", nonce, err)
	}
	if taken {
		return ErrSlotTaken
	}

	removed, err := removeIfExists(s.ResponsePath(nonce))
	if err != nil {
		return fmt.Errorf("remove stale response for slot %d: %w", nonce, err)
	}
	if removed {
		s.logger.Warn("removed stale response for slot ", nonce)
	}
	removed, err = removeIfExists(s.DonePath(nonce))
	if err != nil {
		return fmt.Errorf("remove stale completion marker for slot %d: %w", nonce, err)
	}
	if removed {
		s.logger.Warn("removed stale completion marker for slot ", nonce)
	}

	err = os.Link(tmpPath, s.RequestPath(nonce))
	if errors.Is(err, fs.ErrExist) {
		return ErrSlotTaken
	}
	if err != nil {
		return fmt.Errorf("write request record for slot %d: %w", nonce, err)
	}
	return nil
}

func encodeRequest(req *Request) ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	// Prompts go to the worker verbatim, no < style escaping.
	enc.SetEscapeHTML(false)
	err := enc.Encode(req)
	if err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func removeIfExists(path string) (bool, error) {
	err := os.Remove(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}
