package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemory_CreateRoomIfAbsent(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	first, err := m.CreateRoomIfAbsent(ctx, "lobby")
	require.NoError(t, err)
	require.Equal(t, "lobby", first.Name)

	again, err := m.CreateRoomIfAbsent(ctx, "lobby")
	require.NoError(t, err)
	require.Equal(t, first.ID, again.ID)

	other, err := m.CreateRoomIfAbsent(ctx, "Lobby")
	require.NoError(t, err)
	require.NotEqual(t, first.ID, other.ID, "room names are case-sensitive")
}

func TestMemory_AppendKeepsPerRoomOrder(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := m.AppendMessage(ctx, "lobby", "alice", fmt.Sprintf("msg-%d", i))
		require.NoError(t, err)
	}
	_, err := m.AppendMessage(ctx, "other", "bob", "elsewhere")
	require.NoError(t, err)

	msgs, err := m.RecentMessages(ctx, "lobby", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 5)
	for i, msg := range msgs {
		require.Equal(t, fmt.Sprintf("msg-%d", i), msg.Body)
		require.Equal(t, "lobby", msg.RoomName)
	}
}

func TestMemory_RecentMessagesLimit(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := m.AppendMessage(ctx, "lobby", "alice", fmt.Sprintf("msg-%d", i))
		require.NoError(t, err)
	}

	msgs, err := m.RecentMessages(ctx, "lobby", 3)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	// The newest window, oldest first.
	require.Equal(t, "msg-7", msgs[0].Body)
	require.Equal(t, "msg-9", msgs[2].Body)
}

func TestMemory_UnknownRoomIsEmpty(t *testing.T) {
	m := NewMemory()
	msgs, err := m.RecentMessages(context.Background(), "ghost", 10)
	require.NoError(t, err)
	require.Empty(t, msgs)
}
