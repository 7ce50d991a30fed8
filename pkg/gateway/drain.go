package gateway

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/fr3shw3b/textgen-gateway/pkg/sessions"
)

type endReason int

const (
	endNone endReason = iota
	endCompleted
	endTruncated
	endTimedOut
	endCancelled
)

func (r endReason) String() string {
	switch r {
	case endNone:
		return "none"
	case endCompleted:
		return "completed"
	case endTruncated:
		return "truncated"
	case endTimedOut:
		return "timed_out"
	case endCancelled:
		return "cancelled"
	}
	return "unknown"
}

// pollResult carries either a chunk or the reason the stream ended.
type pollResult struct {
	chunk string
	end   endReason
}

func (r pollResult) ended() bool {
	return r.end != endNone
}

func (g *Gateway) next(ctx context.Context, session *sessions.State) pollResult {
	nonce := session.Nonce()
	wake, release := g.subscribe(nonce)
	defer release()

	if !g.awaitResponse(ctx, nonce, wake) {
		return pollResult{end: endCancelled}
	}
	return g.drain(ctx, session, nonce, wake)
}

func (g *Gateway) subscribe(nonce uint64) (<-chan struct{}, func()) {
	if g.notifier == nil {
		return nil, func() {}
	}
	return g.notifier.Subscribe(nonce)
}

// awaitResponse waits for the worker to create the response file.
// It returns false only when ctx is done.
func (g *Gateway) awaitResponse(ctx context.Context, nonce uint64, wake <-chan struct{}) bool {
	ticker := time.NewTicker(g.params.PollInterval)
	defer ticker.Stop()

	for {
		exists, err := g.store.ResponseExists(nonce)
		if err != nil {
			g.logger.Debug("check response for slot ", nonce, ": ", err)
		}
		if exists {
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		case <-wake:
		}
	}
}

func (g *Gateway) drain(ctx context.Context, session *sessions.State, nonce uint64, wake <-chan struct{}) pollResult {
	ticker := time.NewTicker(g.params.PollInterval)
	defer ticker.Stop()

	// Only ticks count against the budget, wake-ups just poll sooner.
	remaining := g.params.DrainPollLimit
	for {
		// The marker only appears once the last byte is durable, so when it
		// is seen before the read, the read below holds the whole response.
		done, err := g.store.IsDone(nonce)
		if err != nil {
			g.logger.Debug("check completion marker for slot ", nonce, ": ", err)
		}

		offset := session.Offset()
		data, err := g.store.ReadResponse(nonce)
		if err != nil {
			g.logger.Debug("read response for slot ", nonce, ": ", err)
		} else {
			if len(data) < offset {
				g.logger.Warn("response for slot ", nonce, " shrank from ", offset, " to ", len(data), " bytes")
				return pollResult{end: endTruncated}
			}

			// A multi-byte character cut at the end of the file fails
			// validation, retry from the same offset once it is complete.
			fresh := data[offset:]
			if utf8.Valid(fresh) {
				session.SetOffset(len(data))
				if len(fresh) > 0 {
					return pollResult{chunk: string(fresh)}
				}
			}
		}

		if done {
			return pollResult{end: endCompleted}
		}
		if remaining < 1 {
			return pollResult{end: endTimedOut}
		}

		select {
		case <-ctx.Done():
			return pollResult{end: endCancelled}
		case <-ticker.C:
			remaining--
		case <-wake:
		}
	}
}
