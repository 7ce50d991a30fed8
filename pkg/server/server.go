package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/fr3shw3b/textgen-gateway/pkg/gateway"
	"github.com/fr3shw3b/textgen-gateway/pkg/sessions"
	"github.com/fr3shw3b/textgen-gateway/pkg/utils"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

type ServerParams struct {
	// How long to wait for a close frame to be written when
	// dropping a misbehaving client.
	CloseDeadline time.Duration
}

// SessionObserver is told when connections come and go.
type SessionObserver interface {
	SessionOpened()
	SessionClosed()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// No need for strict CORS checking for this implementation.
		return true
	},
}

type serverImpl struct {
	params   *ServerParams
	gateway  *gateway.Gateway
	store    sessions.SessionStore
	observer SessionObserver
	logger   *logrus.Logger
}

// NewDefaultServer serves the gateway over WebSockets. Every connection
// gets its own session, each request message on a connection is handled
// in its own goroutine against that shared session.
// observer may be nil.
func NewDefaultServer(
	params *ServerParams,
	gw *gateway.Gateway,
	store sessions.SessionStore,
	observer SessionObserver,
	logger *logrus.Logger,
) http.Handler {
	if params.CloseDeadline <= 0 {
		params.CloseDeadline = 1 * time.Second
	}
	return &serverImpl{
		params,
		gw,
		store,
		observer,
		logger,
	}
}

func (s *serverImpl) ServeHTTP(w http.ResponseWriter, r *http.Request) {

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websockets upgrade error: ", err)
		return
	}

	conn := &connection{ws: ws, closeDeadline: s.params.CloseDeadline}
	session := s.store.Create(r.RemoteAddr)
	if s.observer != nil {
		s.observer.SessionOpened()
	}

	ctx, cancel := context.WithCancel(context.Background())
	wg := &sync.WaitGroup{}
	defer func() {
		// In-flight requests see the cancellation and give up
		// before the session goes away.
		cancel()
		wg.Wait()
		s.store.Remove(session.ID())
		if s.observer != nil {
			s.observer.SessionClosed()
		}
		ws.Close()
	}()

	err = conn.write(&utils.Message{Type: utils.MessageTypeSession, SessionID: session.ID()})
	if err != nil {
		s.logger.Error("failed to announce session: ", err)
		return
	}

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Error("read error: ", err)
			}
			return
		}

		msg, err := utils.DecodeMessage(data)
		if err != nil {
			s.logger.Error("failed to decode message: ", err)
			conn.close(utils.CloseCodeInvalidMessage, "invalid message")
			return
		}

		if msg.Type != utils.MessageTypeBegin && msg.Type != utils.MessageTypeNextToken {
			s.logger.Error("unknown message type: ", msg.Type)
			conn.close(
				utils.CloseCodeUnknownMessageType,
				fmt.Sprintf("unknown message type %q", msg.Type),
			)
			return
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleMessage(ctx, conn, session, msg)
		}()
	}
}

func (s *serverImpl) handleMessage(ctx context.Context, conn *connection, session *sessions.State, msg *utils.Message) {
	var reply *utils.Message

	switch msg.Type {
	case utils.MessageTypeBegin:
		diagnostic := s.gateway.Begin(ctx, session, msg.SystemPrompt, msg.UserPrompt)
		reply = &utils.Message{Type: utils.MessageTypeBeginResult, ID: msg.ID, Diagnostic: diagnostic}

	case utils.MessageTypeNextToken:
		token, ok := s.gateway.NextToken(ctx, session)
		if ok {
			reply = &utils.Message{Type: utils.MessageTypeToken, ID: msg.ID, Token: token}
		} else {
			reply = &utils.Message{Type: utils.MessageTypeEnd, ID: msg.ID}
		}
	}

	err := conn.write(reply)
	if err != nil {
		// Usually the client went away while we were waiting on the worker.
		s.logger.Debug("session ", session.ID(), " failed to write ", reply.Type, ": ", err)
	}
}

// connection serialises writes, gorilla allows one concurrent writer only.
type connection struct {
	mu            sync.Mutex
	ws            *websocket.Conn
	closeDeadline time.Duration
}

func (c *connection) write(msg *utils.Message) error {
	data, err := utils.EncodeMessage(msg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *connection) close(code int, reason string) {
	c.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(c.closeDeadline),
	)
}
