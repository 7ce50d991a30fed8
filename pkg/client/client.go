package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fr3shw3b/textgen-gateway/pkg/utils"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var (
	ErrNotConnected     = errors.New("client is not connected")
	ErrConnectionClosed = errors.New("connection closed")
)

type ClientParams struct {
	ServerHost           string
	ServerPort           int
	MaxReconnectAttempts int
	// Upper bound for a whole Generate call, zero means no bound.
	RequestTimeout time.Duration
}

type clientImpl struct {
	params   *ClientParams
	wsClient *websocket.Conn
	logger   *logrus.Logger

	writeMu sync.Mutex

	mu        sync.Mutex
	sessionID string
	pending   map[string]chan *utils.Message
	finalErr  error
	closed    chan struct{}
}

func NewDefaultClient(params *ClientParams, logger *logrus.Logger) Client {
	return &clientImpl{
		params:  params,
		logger:  logger,
		pending: map[string]chan *utils.Message{},
		closed:  make(chan struct{}),
	}
}

// Connect dials the server, retrying with exponential backoff.
// A connection is never resumed: the server treats every
// connection as a new session.
func (c *clientImpl) Connect() error {
	err := backoff.Retry(c.dial, backoff.WithMaxRetries(
		backoff.NewExponentialBackOff(),
		uint64(c.params.MaxReconnectAttempts),
	))
	if err != nil {
		return err
	}

	go c.handleMessages()
	return nil
}

func (c *clientImpl) dial() error {
	// todo: support TLS.
	url := fmt.Sprintf("ws://%s:%d/", c.params.ServerHost, c.params.ServerPort)

	wsClient, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		c.logger.Debug("dial failed: ", err)
		return err
	}
	wsClient.SetCloseHandler(c.closeHandler)
	c.wsClient = wsClient
	return nil
}

func (c *clientImpl) handleMessages() {
	for {
		_, data, err := c.wsClient.ReadMessage()
		if err != nil {
			c.logger.Debug("read message error: ", err)
			c.shutdown(err)
			return
		}

		msg, err := utils.DecodeMessage(data)
		if err != nil {
			c.logger.Error("failed to decode message from server: ", err)
			continue
		}
		c.handleMessage(msg)
	}
}

func (c *clientImpl) handleMessage(msg *utils.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if msg.Type == utils.MessageTypeSession {
		c.sessionID = msg.SessionID
		c.logger.Debug("server assigned session ", msg.SessionID)
		return
	}

	replyChan, exists := c.pending[msg.ID]
	if !exists {
		c.logger.Warn("dropping reply for unknown request ", msg.ID)
		return
	}
	delete(c.pending, msg.ID)
	replyChan <- msg
}

func (c *clientImpl) closeHandler(code int, text string) error {
	// Implement the default close handler behaviour and remember why
	// the server hung up so pending calls can report it.
	message := websocket.FormatCloseMessage(code, "")
	c.wsClient.WriteControl(websocket.CloseMessage, message, time.Now().Add(time.Second))

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finalErr == nil && utils.IsKnownClientErrorCode(code) {
		c.finalErr = fmt.Errorf(
			"client error: code[%s(%d)] reason: %s",
			utils.CloseCodeName(code),
			code,
			text,
		)
	}
	return nil
}

func (c *clientImpl) shutdown(cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.closed:
		return
	default:
	}
	if c.finalErr == nil {
		c.finalErr = cause
	}
	close(c.closed)
}

func (c *clientImpl) closedErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finalErr != nil {
		return fmt.Errorf("%w: %s", ErrConnectionClosed, c.finalErr)
	}
	return ErrConnectionClosed
}

func (c *clientImpl) call(ctx context.Context, msg *utils.Message) (*utils.Message, error) {
	if c.wsClient == nil {
		return nil, ErrNotConnected
	}

	msg.ID = uuid.New().String()
	replyChan := make(chan *utils.Message, 1)

	c.mu.Lock()
	c.pending[msg.ID] = replyChan
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, msg.ID)
		c.mu.Unlock()
	}()

	data, err := utils.EncodeMessage(msg)
	if err != nil {
		return nil, err
	}
	c.writeMu.Lock()
	err = c.wsClient.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		return nil, err
	}

	select {
	case reply := <-replyChan:
		return reply, nil
	case <-c.closed:
		return nil, c.closedErr()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *clientImpl) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *clientImpl) Begin(ctx context.Context, systemPrompt string, userPrompt string) (string, error) {
	reply, err := c.call(ctx, &utils.Message{
		Type:         utils.MessageTypeBegin,
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
	})
	if err != nil {
		return "", err
	}
	if reply.Type != utils.MessageTypeBeginResult {
		return "", fmt.Errorf("unexpected reply type %q to begin", reply.Type)
	}
	return reply.Diagnostic, nil
}

func (c *clientImpl) NextToken(ctx context.Context) (string, bool, error) {
	reply, err := c.call(ctx, &utils.Message{Type: utils.MessageTypeNextToken})
	if err != nil {
		return "", false, err
	}

	switch reply.Type {
	case utils.MessageTypeToken:
		return reply.Token, true, nil
	case utils.MessageTypeEnd:
		return "", false, nil
	}
	return "", false, fmt.Errorf("unexpected reply type %q to next_token", reply.Type)
}

func (c *clientImpl) Generate(ctx context.Context, systemPrompt string, userPrompt string, onChunk func(string)) (string, error) {
	if c.params.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.params.RequestTimeout)
		defer cancel()
	}

	diagnostic, err := c.Begin(ctx, systemPrompt, userPrompt)
	if err != nil {
		return "", err
	}
	if diagnostic != "" {
		return "", fmt.Errorf("request rejected by server: %s", diagnostic)
	}

	reply := &strings.Builder{}
	for {
		token, ok, err := c.NextToken(ctx)
		if err != nil {
			return reply.String(), err
		}
		if !ok {
			return reply.String(), nil
		}
		if onChunk != nil {
			onChunk(token)
		}
		reply.WriteString(token)
	}
}

func (c *clientImpl) Close() error {
	if c.wsClient == nil {
		return nil
	}
	c.writeMu.Lock()
	c.wsClient.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	c.writeMu.Unlock()
	return c.wsClient.Close()
}
