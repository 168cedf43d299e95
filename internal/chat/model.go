package chat

import (
	"bytes"
	"encoding/json"
	"time"
)

// ---------------------------------------------
// Database Models
// ---------------------------------------------

// Room is a named channel grouping senders and messages. Rooms are
// created lazily on first reference and never deleted by this core.
type Room struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Message belongs to exactly one room. Sender is a client-supplied
// opaque string; order within a room is the append order in the store.
type Message struct {
	ID        int       `json:"id"`
	RoomName  string    `json:"room_name"`
	Sender    string    `json:"sender"`
	Body      string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// ---------------------------------------------
// Wire Frames
// ---------------------------------------------

// InboundFrame is the JSON a client sends over the websocket.
// room_name and sender may be omitted; the session's handshake values
// are used instead (and always win over a foreign room_name).
type InboundFrame struct {
	Body     string `json:"message"`
	RoomName string `json:"room_name"`
	Sender   string `json:"sender"`
}

// OutboundFrame wraps every fanned-out message, including the echo
// back to the sender.
type OutboundFrame struct {
	Message OutboundBody `json:"message"`
}

type OutboundBody struct {
	Sender string `json:"sender"`
	Body   string `json:"message"`
}

// DecodeInbound parses a raw client frame. It fails closed: anything
// that is not a JSON object with string-typed fields is rejected with
// ErrMalformedMessage.
func DecodeInbound(raw []byte) (*InboundFrame, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	var frame InboundFrame
	if err := dec.Decode(&frame); err != nil {
		return nil, ErrMalformedMessage
	}
	return &frame, nil
}

// EncodeOutbound serializes the canonical persisted copy of a message
// into the frame every recipient sees.
func EncodeOutbound(msg *Message) ([]byte, error) {
	return json.Marshal(OutboundFrame{
		Message: OutboundBody{
			Sender: msg.Sender,
			Body:   msg.Body,
		},
	})
}
