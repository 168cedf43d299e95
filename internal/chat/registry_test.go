package chat

import (
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, reg *Registry, room, sender string, buffer int) *Client {
	t.Helper()
	c, err := NewClient(ClientOptions{
		Registry:   reg,
		Log:        testLogger(),
		Room:       room,
		Sender:     sender,
		SendBuffer: buffer,
	})
	require.NoError(t, err)
	c.state = StateActive
	return c
}

func TestRegistry_JoinIsIdempotent(t *testing.T) {
	reg := NewRegistry(testLogger())
	c := newTestClient(t, reg, "lobby", "alice", 4)

	reg.Join("lobby", c)
	reg.Join("lobby", c)

	require.Equal(t, 1, reg.Count("lobby"))
	require.Len(t, reg.Snapshot("lobby"), 1)
}

func TestRegistry_LeaveAbsentIsNoop(t *testing.T) {
	reg := NewRegistry(testLogger())
	c := newTestClient(t, reg, "lobby", "alice", 4)

	reg.Leave("lobby", c)
	reg.Leave("never-seen", c)

	require.Equal(t, 0, reg.Count("lobby"))
}

func TestRegistry_RoomSurvivesLastLeave(t *testing.T) {
	reg := NewRegistry(testLogger())
	c := newTestClient(t, reg, "lobby", "alice", 4)

	reg.Join("lobby", c)
	reg.Leave("lobby", c)

	require.Equal(t, 0, reg.Count("lobby"))

	// The room is still there: a rejoin lands in the same set.
	reg.Join("lobby", c)
	require.Equal(t, 1, reg.Count("lobby"))
}

func TestRegistry_SnapshotReflectsCallTime(t *testing.T) {
	reg := NewRegistry(testLogger())
	a := newTestClient(t, reg, "lobby", "alice", 4)
	b := newTestClient(t, reg, "lobby", "bob", 4)

	reg.Join("lobby", a)
	snap := reg.Snapshot("lobby")
	reg.Join("lobby", b)

	require.Len(t, snap, 1)
	require.Same(t, a, snap[0])
	require.Len(t, reg.Snapshot("lobby"), 2)
}

func TestRegistry_SnapshotUnknownRoom(t *testing.T) {
	reg := NewRegistry(testLogger())
	require.Empty(t, reg.Snapshot("ghost"))
}

func TestRegistry_RoomsAreIndependent(t *testing.T) {
	reg := NewRegistry(testLogger())
	a := newTestClient(t, reg, "x", "alice", 4)
	b := newTestClient(t, reg, "y", "bob", 4)

	reg.Join("x", a)
	reg.Join("y", b)

	require.Len(t, reg.Snapshot("x"), 1)
	require.Len(t, reg.Snapshot("y"), 1)
	require.Same(t, a, reg.Snapshot("x")[0])
	require.Same(t, b, reg.Snapshot("y")[0])
}

func TestRegistry_ConcurrentChurn(t *testing.T) {
	reg := NewRegistry(testLogger())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := newTestClient(t, reg, "busy", "user", 4)
			for j := 0; j < 100; j++ {
				reg.Join("busy", c)
				reg.Snapshot("busy")
				reg.Leave("busy", c)
			}
		}()
	}
	// An unrelated room must stay reachable throughout the churn.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 100; j++ {
			reg.Snapshot("quiet")
		}
	}()
	wg.Wait()

	require.Equal(t, 0, reg.Count("busy"))
	require.Empty(t, reg.Snapshot("quiet"))
}
