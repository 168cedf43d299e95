package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// MessageStore is what the coordinator needs from the durable layer.
// Keeping the interface here keeps the storage package loosely coupled.
type MessageStore interface {
	// CreateRoomIfAbsent resolves a room by name, creating it on first
	// reference.
	CreateRoomIfAbsent(ctx context.Context, name string) (*Room, error)
	// AppendMessage durably records a message and returns the
	// canonical persisted copy.
	AppendMessage(ctx context.Context, room, sender, body string) (*Message, error)
	// RecentMessages returns up to limit messages for a room,
	// oldest first.
	RecentMessages(ctx context.Context, room string, limit int) ([]*Message, error)
}

// HistoryCache keeps a capped window of already-encoded frames per
// room for fast replay on join. Strictly best effort: the store is the
// source of truth.
type HistoryCache interface {
	Append(ctx context.Context, room string, payload []byte) error
	Recent(ctx context.Context, room string) ([][]byte, error)
}

// Broadcaster persists inbound messages and fans them out to every
// session in the room, sender included, so the sender's UI reflects
// the persisted copy rather than a local echo.
//
// Publishes on the same room serialize on a per-room mutex, which
// gives each room a total order across persistence and delivery.
// Rooms share no lock, so one busy room never delays another. Deliver
// is a non-blocking buffer push, so the mutex is never held across
// transport I/O.
type Broadcaster struct {
	store    MessageStore
	history  HistoryCache // optional
	registry *Registry
	log      *slog.Logger

	mu        sync.Mutex
	roomLocks map[string]*sync.Mutex
}

func NewBroadcaster(store MessageStore, registry *Registry, history HistoryCache, log *slog.Logger) *Broadcaster {
	return &Broadcaster{
		store:     store,
		history:   history,
		registry:  registry,
		log:       log,
		roomLocks: make(map[string]*sync.Mutex),
	}
}

func (b *Broadcaster) roomLock(room string) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()
	lock, ok := b.roomLocks[room]
	if !ok {
		lock = &sync.Mutex{}
		b.roomLocks[room] = lock
	}
	return lock
}

// Publish persists one message and fans it out. Fan-out happens only
// after the append succeeds; a store failure means nobody, sender
// included, ever sees the message. Per-recipient delivery failures
// close that recipient and nothing else.
//
// There is no dedup: identical resubmits are distinct messages. The
// wire format carries no idempotency key to dedup on.
func (b *Broadcaster) Publish(ctx context.Context, room, sender, body string) error {
	body = strings.TrimSpace(body)
	if body == "" {
		return ErrEmptyMessage
	}

	lock := b.roomLock(room)
	lock.Lock()
	defer lock.Unlock()

	if _, err := b.store.CreateRoomIfAbsent(ctx, room); err != nil {
		return fmt.Errorf("%w: create room %q: %v", ErrPersistenceFailure, room, err)
	}
	msg, err := b.store.AppendMessage(ctx, room, sender, body)
	if err != nil {
		return fmt.Errorf("%w: append to %q: %v", ErrPersistenceFailure, room, err)
	}

	payload, err := EncodeOutbound(msg)
	if err != nil {
		return fmt.Errorf("encode outbound frame: %w", err)
	}

	if b.history != nil {
		if err := b.history.Append(ctx, room, payload); err != nil {
			b.log.Warn("history cache append failed", "room", room, "err", err)
		}
	}

	// Membership at broadcast time: the registry lock is released
	// before the first Deliver.
	for _, c := range b.registry.Snapshot(room) {
		if err := c.Deliver(payload); err != nil {
			b.log.Warn("delivery failed, closing session", "room", room, "session", c.ID(), "err", err)
			c.Close()
		}
	}
	return nil
}
