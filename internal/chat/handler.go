package chat

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all for now (Dev mode)
	},
}

// Handler owns the HTTP surface of the chat core: the websocket
// endpoint and the room history API. Room and sender arrive as path
// segments and are trusted as opaque strings beyond non-emptiness.
type Handler struct {
	registry    *Registry
	broadcaster *Broadcaster
	store       MessageStore
	history     HistoryCache // optional
	log         *slog.Logger

	historyLimit   int
	sendBuffer     int
	maxMessageSize int64
}

type HandlerOptions struct {
	Registry    *Registry
	Broadcaster *Broadcaster
	Store       MessageStore
	History     HistoryCache
	Log         *slog.Logger

	HistoryLimit   int
	SendBuffer     int
	MaxMessageSize int64
}

func NewHandler(opts HandlerOptions) *Handler {
	limit := opts.HistoryLimit
	if limit <= 0 {
		limit = 50
	}
	return &Handler{
		registry:       opts.Registry,
		broadcaster:    opts.Broadcaster,
		store:          opts.Store,
		history:        opts.History,
		log:            opts.Log,
		historyLimit:   limit,
		sendBuffer:     opts.SendBuffer,
		maxMessageSize: opts.MaxMessageSize,
	}
}

// Routes mounts the chat endpoints on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/ws/{room}/{sender}", h.ServeWs)
	r.Get("/api/rooms/{room}/messages", h.GetRoomMessages)
}

// ServeWs upgrades the connection and runs the session handshake. A
// missing room or sender refuses the session before it is registered
// anywhere.
func (h *Handler) ServeWs(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "room")
	sender := chi.URLParam(r, "sender")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade failed", "err", err)
		return
	}

	client, err := NewClient(ClientOptions{
		Conn:           conn,
		Registry:       h.registry,
		Broadcaster:    h.broadcaster,
		Log:            h.log,
		Room:           room,
		Sender:         sender,
		SendBuffer:     h.sendBuffer,
		MaxMessageSize: h.maxMessageSize,
	})
	if err != nil {
		h.log.Warn("handshake refused", "room", room, "sender", sender, "err", err)
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "room and sender are required"))
		conn.Close()
		return
	}

	client.Start()
	h.replayHistory(r, client)
}

// replayHistory pushes the room's recent messages to a freshly joined
// session, oldest first: cache when available, store otherwise. Best
// effort; a cold room just starts empty.
func (h *Handler) replayHistory(r *http.Request, c *Client) {
	ctx := r.Context()

	if h.history != nil {
		frames, err := h.history.Recent(ctx, c.Room())
		if err == nil && len(frames) > 0 {
			for _, frame := range frames {
				if c.Deliver(frame) != nil {
					return
				}
			}
			return
		}
		if err != nil {
			h.log.Warn("history cache read failed, falling back to store", "room", c.Room(), "err", err)
		}
	}

	msgs, err := h.store.RecentMessages(ctx, c.Room(), h.historyLimit)
	if err != nil {
		h.log.Warn("history replay failed", "room", c.Room(), "err", err)
		return
	}
	for _, msg := range msgs {
		payload, err := EncodeOutbound(msg)
		if err != nil {
			continue
		}
		if c.Deliver(payload) != nil {
			return
		}
	}
}

// GetRoomMessages returns a room's recent messages as JSON, oldest
// first. An unknown room is just an empty list.
func (h *Handler) GetRoomMessages(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "room")

	msgs, err := h.store.RecentMessages(r.Context(), room, h.historyLimit)
	if err != nil {
		h.log.Error("history query failed", "room", room, "err", err)
		http.Error(w, "could not load messages", http.StatusInternalServerError)
		return
	}
	if msgs == nil {
		msgs = []*Message{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(msgs)
}
