package chat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeInbound(t *testing.T) {
	frame, err := DecodeInbound([]byte(`{"message":"hi","room_name":"lobby","sender":"alice"}`))
	require.NoError(t, err)
	require.Equal(t, "hi", frame.Body)
	require.Equal(t, "lobby", frame.RoomName)
	require.Equal(t, "alice", frame.Sender)
}

func TestDecodeInbound_OptionalFields(t *testing.T) {
	frame, err := DecodeInbound([]byte(`{"message":"hi"}`))
	require.NoError(t, err)
	require.Equal(t, "hi", frame.Body)
	require.Empty(t, frame.RoomName)
	require.Empty(t, frame.Sender)
}

func TestDecodeInbound_FailsClosed(t *testing.T) {
	cases := map[string]string{
		"not json":        `who needs braces`,
		"truncated":       `{"message":"hi"`,
		"wrong body type": `{"message":42}`,
		"wrong room type": `{"message":"hi","room_name":[]}`,
		"array":           `["message","hi"]`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeInbound([]byte(raw))
			require.ErrorIs(t, err, ErrMalformedMessage)
		})
	}
}

func TestEncodeOutbound_WireShape(t *testing.T) {
	payload, err := EncodeOutbound(&Message{Sender: "alice", Body: "hi"})
	require.NoError(t, err)
	require.JSONEq(t, `{"message":{"sender":"alice","message":"hi"}}`, string(payload))
}
