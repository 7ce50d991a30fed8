package slots

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func Test_slot_paths_follow_the_worker_file_contract(t *testing.T) {
	store := NewStore("/work", createLogger())

	if store.RequestPath(12) != filepath.Join("/work", "12.json") {
		t.Error("unexpected request path: ", store.RequestPath(12))
	}
	if store.ResponsePath(12) != filepath.Join("/work", "12.txt") {
		t.Error("unexpected response path: ", store.ResponsePath(12))
	}
	if store.DonePath(12) != filepath.Join("/work", "12.done") {
		t.Error("unexpected completion marker path: ", store.DonePath(12))
	}
}

func Test_submit_writes_prompts_verbatim(t *testing.T) {
	store := NewStore(t.TempDir(), createLogger())

	nonce, err := store.Submit(0, &Request{
		SystemPrompt: "Answer in <b>bold</b> & be brief.",
		UserPrompt:   "Say \"hi\"",
	})
	if err != nil {
		t.Error(err)
		t.FailNow()
	}

	data, err := os.ReadFile(store.RequestPath(nonce))
	if err != nil {
		t.Error(err)
		t.FailNow()
	}
	expected := `{"system_prompt":"Answer in <b>bold</b> & be brief.","user_prompt":"Say \"hi\""}`
	if string(data) != expected {
		t.Errorf("expected %s, received %s", expected, data)
	}
}

func Test_submit_starts_scan_at_the_given_nonce(t *testing.T) {
	store := NewStore(t.TempDir(), createLogger())

	nonce, err := store.Submit(5, &Request{UserPrompt: "hi"})
	if err != nil {
		t.Error(err)
		t.FailNow()
	}
	if nonce != 5 {
		t.Error("expected slot 5, received: ", nonce)
	}

	exists, err := store.RequestExists(0)
	if err != nil || exists {
		t.Error("expected slots before the starting nonce to be untouched")
	}
}

func Test_submit_does_not_leave_staging_files_behind(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, createLogger())

	for i := 0; i < 3; i += 1 {
		_, err := store.Submit(0, &Request{UserPrompt: "hi"})
		if err != nil {
			t.Error(err)
			t.FailNow()
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Error(err)
		t.FailNow()
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".request-") {
			t.Error("staging file left behind: ", entry.Name())
		}
	}
	if len(entries) != 3 {
		t.Error("expected exactly 3 request records, received: ", len(entries))
	}
}

func Test_claim_reports_taken_slot(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, createLogger())
	err := os.WriteFile(store.RequestPath(0), []byte("{}"), 0o644)
	if err != nil {
		t.Error(err)
		t.FailNow()
	}

	tmpPath, err := store.stage([]byte("{}"))
	if err != nil {
		t.Error(err)
		t.FailNow()
	}
	defer os.Remove(tmpPath)

	err = store.claim(0, tmpPath)
	if err != ErrSlotTaken {
		t.Error("expected ErrSlotTaken, received: ", err)
	}
}

func Test_read_request_returns_submitted_prompts(t *testing.T) {
	store := NewStore(t.TempDir(), createLogger())
	nonce, err := store.Submit(0, &Request{SystemPrompt: "You are terse.", UserPrompt: "Say hi"})
	if err != nil {
		t.Error(err)
		t.FailNow()
	}

	req, err := store.ReadRequest(nonce)
	if err != nil {
		t.Error(err)
		t.FailNow()
	}
	if req.SystemPrompt != "You are terse." || req.UserPrompt != "Say hi" {
		t.Error("unexpected request record: ", req)
	}
}

func Test_response_and_marker_presence(t *testing.T) {
	store := NewStore(t.TempDir(), createLogger())

	exists, err := store.ResponseExists(3)
	if err != nil || exists {
		t.Error("expected no response for a fresh slot")
	}
	done, err := store.IsDone(3)
	if err != nil || done {
		t.Error("expected no completion marker for a fresh slot")
	}

	os.WriteFile(store.ResponsePath(3), []byte("partial"), 0o644)
	os.WriteFile(store.DonePath(3), nil, 0o644)

	exists, _ = store.ResponseExists(3)
	done, _ = store.IsDone(3)
	if !exists || !done {
		t.Error("expected response and completion marker to be reported")
	}
	data, err := store.ReadResponse(3)
	if err != nil || string(data) != "partial" {
		t.Errorf("expected %q, received %q (%v)", "partial", data, err)
	}
}

func createLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)
	return logger
}
