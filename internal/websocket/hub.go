package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/jbergloda1/swha-backend/internal/streaming"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio chunks

	// Frames queued for the worker while a transcription pass runs.
	inboxSize = 64

	// Time allowed to persist a finished transcript.
	persistTimeout = 5 * time.Second
)

// TranscriptSink persists the outcome of finished sessions
type TranscriptSink interface {
	SaveTranscript(ctx context.Context, userID string, summary streaming.Summary) error
}

// Option customises a Hub
type Option func(*Hub)

// WithAllowedOrigins restricts browser origins allowed to upgrade. An empty
// list or "*" allows any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(h *Hub) {
		h.allowedOrigins = make(map[string]struct{}, len(origins))
		for _, o := range origins {
			if o == "*" {
				h.allowedOrigins = nil
				return
			}
			h.allowedOrigins[o] = struct{}{}
		}
	}
}

// Hub maintains the set of active clients and routes expiry to them.
type Hub struct {
	// Registered clients keyed by connection ID.
	clients map[string]*Client

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	// Set by Shutdown; no client registers afterwards.
	closed bool

	manager  *streaming.Manager
	sink     TranscriptSink
	upgrader websocket.Upgrader

	allowedOrigins map[string]struct{}

	ctx     context.Context
	cancel  context.CancelFunc
	workers sync.WaitGroup

	logger *zap.Logger
}

// NewHub creates a new WebSocket hub. sink may be nil.
func NewHub(manager *streaming.Manager, sink TranscriptSink, logger *zap.Logger, opts ...Option) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		clients: make(map[string]*Client),
		manager: manager,
		sink:    sink,
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin:     h.checkOrigin,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if h.allowedOrigins == nil || origin == "" {
		return true
	}
	_, ok := h.allowedOrigins[origin]
	return ok
}

// add registers c and accounts for its worker. It reports false once the
// hub is shutting down.
func (h *Hub) add(c *Client) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	h.clients[c.connID] = c
	h.workers.Add(1)
	h.mu.Unlock()

	h.logger.Info("Client registered",
		zap.String("connectionID", c.connID),
		zap.String("userID", c.userID))
	return true
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	delete(h.clients, c.connID)
	h.mu.Unlock()
	h.logger.Info("Client unregistered", zap.String("connectionID", c.connID))
}

// Len returns the number of connected clients
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Expire asks the connection's worker to expire its session. It reports
// whether the connection is still live.
func (h *Hub) Expire(connID string) bool {
	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return false
	}

	select {
	case c.expire <- struct{}{}:
	default:
		// already pending
	}
	return true
}

// Shutdown cancels in-flight passes, closes every connection and waits for
// the workers to finish.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	h.cancel()
	for _, c := range h.clients {
		c.conn.Close()
	}
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Client is a middleman between the websocket connection and its session.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages. Closed by the worker.
	send chan WriteData

	// Inbound frames for the worker. Closed by the read pump.
	inbox chan streaming.Inbound

	// Expiry requests from the cleanup loop.
	expire chan struct{}

	// Closed when the worker exits.
	done chan struct{}

	// Closed when the write pump exits.
	writerDone chan struct{}

	connID string
	userID string

	// Owned by the worker goroutine.
	session *streaming.Session

	logger *zap.Logger
}

// HandleWebSocketWithAuth upgrades a request whose user has already been authenticated
func HandleWebSocketWithAuth(hub *Hub, c echo.Context, userID string, logger *zap.Logger) error {
	conn, err := hub.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	connID := uuid.NewString()
	session, err := hub.manager.Open(connID)
	if err != nil {
		logger.Error("Failed to open session", zap.String("connectionID", connID), zap.Error(err))
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "session unavailable"),
			time.Now().Add(writeWait))
		conn.Close()
		return nil
	}

	client := &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan WriteData, 256),
		inbox:      make(chan streaming.Inbound, inboxSize),
		expire:     make(chan struct{}, 1),
		done:       make(chan struct{}),
		writerDone: make(chan struct{}),
		connID:     connID,
		userID:     userID,
		session:    session,
		logger:     logger.With(zap.String("connectionID", connID), zap.String("userID", userID)),
	}

	if !hub.add(client) {
		hub.manager.Close(connID)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		return nil
	}
	client.enqueue(session.Connected())

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.work()
	go client.readPump()

	return nil
}

// readPump pumps frames from the websocket connection to the worker.
func (c *Client) readPump() {
	defer func() {
		close(c.inbox)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var in streaming.Inbound
		switch messageType {
		case websocket.TextMessage:
			in = streaming.TextFrame(string(message))
		case websocket.BinaryMessage:
			in = streaming.AudioFrame(message)
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
			continue
		}

		select {
		case c.inbox <- in:
		case <-c.done:
			return
		}
	}
}

// writePump pumps messages from the worker to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		close(c.writerDone)
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// work is the only goroutine that touches the client's session. Frames are
// handled one at a time, so chunks that arrive during a pass wait in the inbox.
func (c *Client) work() {
	defer func() {
		c.hub.manager.Close(c.connID)
		c.hub.remove(c)
		close(c.send)
		close(c.done)
		c.hub.workers.Done()
	}()

	for {
		select {
		case in, ok := <-c.inbox:
			if !ok {
				c.logger.Debug("Connection closed, aborting session",
					zap.String("sessionID", c.session.ID),
					zap.String("state", c.session.State().String()))
				return
			}
			for _, msg := range c.session.Handle(c.hub.ctx, in) {
				if !c.enqueue(msg) {
					return
				}
			}
			if c.session.State() == streaming.StateClosed && !c.rotate() {
				return
			}

		case <-c.expire:
			c.session.Expire(c.hub.ctx)
			c.persist()
			c.logger.Info("Closing idle connection", zap.String("sessionID", c.session.ID))
			return
		}
	}
}

// rotate persists a closed session and replaces it with a fresh IDLE one
func (c *Client) rotate() bool {
	c.persist()
	c.hub.manager.Close(c.connID)

	session, err := c.hub.manager.Open(c.connID)
	if err != nil {
		c.logger.Error("Failed to reopen session", zap.Error(err))
		return false
	}
	c.session = session
	return true
}

func (c *Client) persist() {
	if c.hub.sink == nil || !c.session.Recorded() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := c.hub.sink.SaveTranscript(ctx, c.userID, c.session.Summary()); err != nil {
		c.logger.Error("Failed to persist transcript",
			zap.String("sessionID", c.session.ID),
			zap.Error(err))
	}
}

// enqueue hands a message to the write pump. It reports false once the
// write pump has gone away.
func (c *Client) enqueue(msg streaming.Outbound) bool {
	data, err := encode(msg)
	if err != nil {
		c.logger.Error("Failed to encode message",
			zap.String("type", string(msg.MessageType())),
			zap.Error(err))
		return true
	}

	select {
	case c.send <- data:
		return true
	case <-c.writerDone:
		return false
	}
}
