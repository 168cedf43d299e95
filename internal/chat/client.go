package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait         = 10 * time.Second    // Time allowed to write a message to the peer.
	pongWait          = 60 * time.Second    // Time allowed to read the next pong message from the peer.
	pingPeriod        = (pongWait * 9) / 10 // Send pings to peer with this period. Must be less than pongWait.
	defaultMaxMsgSize = 512                 // Maximum message size allowed from peer.
	defaultSendBuffer = 256
)

// State is the session lifecycle. There is no transition out of
// StateClosed.
type State int

const (
	StateConnecting State = iota
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	default:
		return "closed"
	}
}

// Client is one live websocket session bound to exactly one room. It
// owns its connection and its outbound buffer; the registry only holds
// a membership reference, which Close always releases.
type Client struct {
	id     string
	room   string
	sender string

	conn        *websocket.Conn
	registry    *Registry
	broadcaster *Broadcaster
	log         *slog.Logger

	maxMessageSize int64
	send           chan []byte

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	state State
}

// ClientOptions carries everything a session needs. SendBuffer and
// MaxMessageSize fall back to the defaults above when zero.
type ClientOptions struct {
	Conn        *websocket.Conn
	Registry    *Registry
	Broadcaster *Broadcaster
	Log         *slog.Logger
	Room        string
	Sender      string

	SendBuffer     int
	MaxMessageSize int64
}

// NewClient validates the handshake and builds a session in
// StateConnecting. An empty room or sender refuses the connection with
// ErrInvalidHandshake before anything is registered.
func NewClient(opts ClientOptions) (*Client, error) {
	room := strings.TrimSpace(opts.Room)
	sender := strings.TrimSpace(opts.Sender)
	if room == "" || sender == "" {
		return nil, ErrInvalidHandshake
	}

	buffer := opts.SendBuffer
	if buffer <= 0 {
		buffer = defaultSendBuffer
	}
	maxSize := opts.MaxMessageSize
	if maxSize <= 0 {
		maxSize = defaultMaxMsgSize
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		id:             id,
		room:           room,
		sender:         sender,
		conn:           opts.Conn,
		registry:       opts.Registry,
		broadcaster:    opts.Broadcaster,
		log:            opts.Log.With("session", id, "room", room, "sender", sender),
		maxMessageSize: maxSize,
		send:           make(chan []byte, buffer),
		ctx:            ctx,
		cancel:         cancel,
		state:          StateConnecting,
	}, nil
}

func (c *Client) ID() string   { return c.id }
func (c *Client) Room() string { return c.room }

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start registers the session and begins the pumps. Start returns
// immediately; the pumps run until the connection dies.
func (c *Client) Start() {
	c.mu.Lock()
	if c.state != StateConnecting {
		c.mu.Unlock()
		return
	}
	c.state = StateActive
	c.mu.Unlock()

	c.registry.Join(c.room, c)

	go c.writePump()
	go c.readPump()
}

// Deliver queues a serialized frame for the peer. It never blocks: a
// closed session or a full buffer returns ErrSessionClosed and the
// caller decides what to do with the session. The actual transport
// write happens in writePump, outside every lock.
func (c *Client) Deliver(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateActive {
		return ErrSessionClosed
	}
	select {
	case c.send <- payload:
		return nil
	default:
		return ErrSessionClosed
	}
}

// Close transitions to StateClosed and deregisters, exactly once. It
// is safe from any goroutine and on any exit path: pump teardown,
// delivery failure, or server shutdown.
func (c *Client) Close() {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = StateClosed
	close(c.send)
	c.mu.Unlock()

	c.cancel()
	c.registry.Leave(c.room, c)
	if c.conn != nil {
		c.conn.Close()
	}
	c.log.Info("session closed")
}

// readPump pumps frames from the websocket to the broadcaster. One
// goroutine per session; teardown always runs Close.
func (c *Client) readPump() {
	defer c.Close()

	c.conn.SetReadLimit(c.maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("read error", "err", err)
			}
			return
		}
		c.handleFrame(raw)
	}
}

// handleFrame parses and publishes one inbound frame. Every failure
// here is local to the frame: the session stays open.
func (c *Client) handleFrame(raw []byte) {
	frame, err := DecodeInbound(raw)
	if err != nil {
		c.log.Warn("dropping malformed frame", "err", err)
		return
	}

	sender := strings.TrimSpace(frame.Sender)
	if sender == "" {
		sender = c.sender
	}
	// The handshake binding is canonical: a frame cannot publish into
	// a room this session never joined.
	if frame.RoomName != "" && frame.RoomName != c.room {
		c.log.Warn("frame addressed to foreign room, using bound room", "frame_room", frame.RoomName)
	}

	switch err := c.broadcaster.Publish(c.ctx, c.room, sender, frame.Body); {
	case err == nil:
	case errors.Is(err, ErrEmptyMessage):
		c.log.Warn("rejecting empty message")
	case errors.Is(err, ErrPersistenceFailure):
		// Surfaced to this sender only; everyone else never sees the
		// message because fan-out requires confirmed durability.
		c.log.Error("publish failed", "err", err)
		c.deliverError("message not saved, try again")
	default:
		c.log.Error("publish failed", "err", err)
	}
}

// deliverError pushes a server-side error frame to this session only.
func (c *Client) deliverError(reason string) {
	payload := []byte(`{"error":"` + reason + `"}`)
	if err := c.Deliver(payload); err != nil {
		c.log.Warn("could not surface error to session", "err", err)
	}
}

// writePump pumps queued frames to the websocket and keeps the
// connection alive with pings. A failed transport write closes this
// session only; a broken pipe to one client never touches the others.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(payload)

			// Drain whatever queued up behind this frame in one write.
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
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
