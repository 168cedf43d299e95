package store

import (
	"context"
	"sync"
	"time"

	"room-chat/internal/chat"
)

// Memory is an in-process message store with the same semantics as
// Postgres: lazy room creation, append-only per-room message logs.
// It backs tests and the no-database dev mode.
type Memory struct {
	mu       sync.Mutex
	rooms    map[string]*chat.Room
	messages map[string][]*chat.Message
	nextRoom int
	nextMsg  int
}

func NewMemory() *Memory {
	return &Memory{
		rooms:    make(map[string]*chat.Room),
		messages: make(map[string][]*chat.Message),
	}
}

func (m *Memory) CreateRoomIfAbsent(_ context.Context, name string) (*chat.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if room, ok := m.rooms[name]; ok {
		return room, nil
	}
	m.nextRoom++
	room := &chat.Room{ID: m.nextRoom, Name: name, CreatedAt: time.Now()}
	m.rooms[name] = room
	return room, nil
}

func (m *Memory) AppendMessage(_ context.Context, room, sender, body string) (*chat.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextMsg++
	msg := &chat.Message{
		ID:        m.nextMsg,
		RoomName:  room,
		Sender:    sender,
		Body:      body,
		CreatedAt: time.Now(),
	}
	m.messages[room] = append(m.messages[room], msg)
	return msg, nil
}

func (m *Memory) RecentMessages(_ context.Context, room string, limit int) ([]*chat.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	log := m.messages[room]
	if limit > 0 && len(log) > limit {
		log = log[len(log)-limit:]
	}
	out := make([]*chat.Message, len(log))
	copy(out, log)
	return out, nil
}
