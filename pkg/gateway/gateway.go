// Package gateway turns the slot directory shared with the text
// generation worker into a session oriented streaming API.
//
// A client submits prompts with Begin and then calls NextToken until it
// reports the end of the stream. The gateway never talks to the worker
// directly, it only writes request records and polls the response files
// the worker produces.
package gateway

import (
	"context"
	"time"

	"github.com/fr3shw3b/textgen-gateway/pkg/sessions"
	"github.com/fr3shw3b/textgen-gateway/pkg/slots"
	"github.com/sirupsen/logrus"
)

const (
	DefaultPollInterval   = 100 * time.Millisecond
	DefaultDrainPollLimit = 120
)

type Params struct {
	// Spacing between two polls of the slot directory.
	PollInterval time.Duration
	// How many poll intervals the drain phase waits for new output
	// before giving up on the stream.
	DrainPollLimit int
}

// Notifier wakes pollers early when a file of the slot they watch
// changes. Polling on PollInterval continues regardless.
type Notifier interface {
	Subscribe(nonce uint64) (<-chan struct{}, func())
}

// NonceCounter provides a starting point for the free slot scan.
type NonceCounter interface {
	Next(ctx context.Context) (uint64, error)
}

type Recorder interface {
	RecordBegin(accepted bool)
	RecordChunk(size int)
	RecordStreamEnd(reason string)
}

type Option func(*Gateway)

func WithNotifier(notifier Notifier) Option {
	return func(g *Gateway) {
		g.notifier = notifier
	}
}

func WithNonceCounter(counter NonceCounter) Option {
	return func(g *Gateway) {
		g.counter = counter
	}
}

func WithRecorder(recorder Recorder) Option {
	return func(g *Gateway) {
		g.recorder = recorder
	}
}

type Gateway struct {
	params   *Params
	store    *slots.Store
	notifier Notifier
	counter  NonceCounter
	recorder Recorder
	logger   *logrus.Logger
}

func NewGateway(params *Params, store *slots.Store, logger *logrus.Logger, opts ...Option) *Gateway {
	if params.PollInterval <= 0 {
		params.PollInterval = DefaultPollInterval
	}
	if params.DrainPollLimit <= 0 {
		params.DrainPollLimit = DefaultDrainPollLimit
	}

	g := &Gateway{
		params:   params,
		store:    store,
		recorder: noopRecorder{},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Begin submits a request for the session and returns immediately,
// without waiting for the worker to pick it up.
//
// It returns an empty string when the request was accepted, otherwise a
// diagnostic describing why it was not. On failure the session is left
// on its previous slot.
func (g *Gateway) Begin(ctx context.Context, session *sessions.State, systemPrompt string, userPrompt string) string {
	session.SetOffset(0)

	from := session.Nonce()
	if g.counter != nil {
		hint, err := g.counter.Next(ctx)
		if err != nil {
			g.logger.Warn("nonce counter unavailable, scanning from session nonce: ", err)
		} else if hint > from {
			from = hint
		}
	}

	nonce, err := g.store.Submit(from, &slots.Request{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
	})
	if err != nil {
		g.logger.Error("session ", session.ID(), " failed to submit request: ", err)
		g.recorder.RecordBegin(false)
		return err.Error()
	}

	session.SetNonce(nonce)
	session.SetOffset(0)
	g.recorder.RecordBegin(true)
	g.logger.Debug("session ", session.ID(), " submitted request to slot ", nonce)
	return ""
}

// NextToken blocks until the session's active response has grown and
// returns the new text. ok is false once the stream has ended, whether
// the worker completed it, the response shrank, the drain budget ran
// out or ctx was cancelled.
//
// While the worker has not created the response file yet NextToken
// waits for it without any time limit, only ctx ends that wait.
func (g *Gateway) NextToken(ctx context.Context, session *sessions.State) (string, bool) {
	result := g.next(ctx, session)
	if !result.ended() {
		g.recorder.RecordChunk(len(result.chunk))
		g.logger.Debug("session ", session.ID(), " received ", len(result.chunk), " bytes")
		return result.chunk, true
	}

	g.recorder.RecordStreamEnd(result.end.String())
	g.logger.Debug("session ", session.ID(), " stream ended: ", result.end)
	return "", false
}

type noopRecorder struct{}

func (noopRecorder) RecordBegin(bool) {}
func (noopRecorder) RecordChunk(int) {}
func (noopRecorder) RecordStreamEnd(string) {}
