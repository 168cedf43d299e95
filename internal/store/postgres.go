package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"room-chat/internal/chat"
)

// Postgres is the durable message store. Rooms are keyed by name and
// created lazily; messages are append-only, ordered per room by their
// serial id.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	return &Postgres{db: db}, nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

// Migrate creates the schema if it does not exist yet.
func (p *Postgres) Migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS rooms (
            id SERIAL PRIMARY KEY,
            name VARCHAR(255) UNIQUE NOT NULL,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )`,

		`CREATE TABLE IF NOT EXISTS messages (
            id SERIAL PRIMARY KEY,
            room_id INT REFERENCES rooms(id) ON DELETE CASCADE,
            sender VARCHAR(255) NOT NULL,
            body TEXT NOT NULL,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )`,

		`CREATE INDEX IF NOT EXISTS idx_messages_room ON messages (room_id, id)`,
	}

	for _, query := range queries {
		if _, err := p.db.Exec(query); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

func (p *Postgres) CreateRoomIfAbsent(ctx context.Context, name string) (*chat.Room, error) {
	// The no-op update makes RETURNING work on the conflict path too.
	query := `
		INSERT INTO rooms (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, name, created_at
	`
	room := &chat.Room{}
	err := p.db.QueryRowContext(ctx, query, name).Scan(&room.ID, &room.Name, &room.CreatedAt)
	if err != nil {
		return nil, err
	}
	return room, nil
}

func (p *Postgres) AppendMessage(ctx context.Context, room, sender, body string) (*chat.Message, error) {
	query := `
		INSERT INTO messages (room_id, sender, body)
		VALUES ((SELECT id FROM rooms WHERE name = $1), $2, $3)
		RETURNING id, created_at
	`
	msg := &chat.Message{RoomName: room, Sender: sender, Body: body}
	err := p.db.QueryRowContext(ctx, query, room, sender, body).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (p *Postgres) RecentMessages(ctx context.Context, room string, limit int) ([]*chat.Message, error) {
	query := `
		SELECT m.id, r.name, m.sender, m.body, m.created_at
		FROM messages m
		JOIN rooms r ON m.room_id = r.id
		WHERE r.name = $1
		ORDER BY m.id DESC
		LIMIT $2
	`
	rows, err := p.db.QueryContext(ctx, query, room, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*chat.Message
	for rows.Next() {
		msg := &chat.Message{}
		if err := rows.Scan(&msg.ID, &msg.RoomName, &msg.Sender, &msg.Body, &msg.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// The query walks newest-first for the LIMIT; callers want
	// chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
