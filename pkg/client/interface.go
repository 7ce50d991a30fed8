package client

import "context"

type Client interface {
	Connect() error
	Close() error
	// The id the server assigned to this connection's session,
	// empty until the server has announced it.
	SessionID() string
	// Submits prompts, the returned diagnostic is empty when the
	// server accepted the request.
	Begin(ctx context.Context, systemPrompt string, userPrompt string) (string, error)
	// Returns the next chunk of the active response, ok is false
	// once the server reports the end of the stream.
	NextToken(ctx context.Context) (token string, ok bool, err error)
	// Runs a whole request and returns the reply, onChunk (if not nil)
	// is called with every chunk as it arrives.
	Generate(ctx context.Context, systemPrompt string, userPrompt string, onChunk func(string)) (string, error)
}
