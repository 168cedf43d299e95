package chat

import (
	"log/slog"
	"sync"
)

// Registry maps room names to the live set of sessions subscribed to
// them. It is the only shared mutable state between sessions, so the
// locking is partitioned: the registry lock guards only the room-map
// lookup, and each room carries its own lock for membership. A busy
// room never stalls joins or leaves elsewhere.
//
// The registry holds non-owning references. A session deregisters
// itself on every exit path, so an entry never outlives its connection.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*roomSet
	log   *slog.Logger
}

type roomSet struct {
	mu      sync.RWMutex
	members map[*Client]struct{}
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		rooms: make(map[string]*roomSet),
		log:   log,
	}
}

// room returns the set for name, creating it on first reference.
// Rooms are never removed, even at zero members.
func (r *Registry) room(name string) *roomSet {
	r.mu.RLock()
	set, ok := r.rooms[name]
	r.mu.RUnlock()
	if ok {
		return set
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if set, ok = r.rooms[name]; ok {
		return set
	}
	set = &roomSet{members: make(map[*Client]struct{})}
	r.rooms[name] = set
	return set
}

// Join adds a session to the room's set. Re-adding a present session
// is a no-op. Join never fails.
func (r *Registry) Join(roomName string, c *Client) {
	set := r.room(roomName)

	set.mu.Lock()
	_, present := set.members[c]
	set.members[c] = struct{}{}
	size := len(set.members)
	set.mu.Unlock()

	if !present {
		r.log.Info("session joined room", "room", roomName, "session", c.ID(), "members", size)
	}
}

// Leave removes a session from the room's set. A no-op if the session
// is absent or the room was never seen. A session mid-removal is either
// fully in or fully out of any concurrent Snapshot, never half-gone.
func (r *Registry) Leave(roomName string, c *Client) {
	r.mu.RLock()
	set, ok := r.rooms[roomName]
	r.mu.RUnlock()
	if !ok {
		return
	}

	set.mu.Lock()
	_, present := set.members[c]
	delete(set.members, c)
	size := len(set.members)
	set.mu.Unlock()

	if present {
		r.log.Info("session left room", "room", roomName, "session", c.ID(), "members", size)
	}
}

// Snapshot returns the room's membership at call time. The critical
// section covers only the copy; callers iterate the returned slice
// after the lock is released, so a slow delivery never blocks joins
// or leaves. Late joiners are not in the snapshot and leavers may
// still be; delivering to a closed session is a per-session failure,
// not the broadcaster's problem.
func (r *Registry) Snapshot(roomName string) []*Client {
	r.mu.RLock()
	set, ok := r.rooms[roomName]
	r.mu.RUnlock()
	if !ok {
		return nil
	}

	set.mu.RLock()
	defer set.mu.RUnlock()
	members := make([]*Client, 0, len(set.members))
	for c := range set.members {
		members = append(members, c)
	}
	return members
}

// Count reports the room's current membership size.
func (r *Registry) Count(roomName string) int {
	r.mu.RLock()
	set, ok := r.rooms[roomName]
	r.mu.RUnlock()
	if !ok {
		return 0
	}

	set.mu.RLock()
	defer set.mu.RUnlock()
	return len(set.members)
}

// CloseAll closes every registered session. Used during shutdown; each
// Close deregisters the session from its room.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	sets := make([]*roomSet, 0, len(r.rooms))
	for _, set := range r.rooms {
		sets = append(sets, set)
	}
	r.mu.RUnlock()

	for _, set := range sets {
		set.mu.RLock()
		members := make([]*Client, 0, len(set.members))
		for c := range set.members {
			members = append(members, c)
		}
		set.mu.RUnlock()

		for _, c := range members {
			c.Close()
		}
	}
}
