// Package history keeps a capped per-room window of recently
// broadcast frames in Redis so a joining session can be caught up
// without hitting the durable store.
package history

import (
	"context"

	"github.com/redis/go-redis/v9"
)

type Redis struct {
	client *redis.Client
	limit  int64
}

// NewRedis wraps an existing client. limit caps how many frames are
// retained per room.
func NewRedis(client *redis.Client, limit int) *Redis {
	if limit <= 0 {
		limit = 50
	}
	return &Redis{client: client, limit: int64(limit)}
}

func key(room string) string {
	return "room:" + room + ":recent"
}

// Append records an already-encoded frame and trims the window.
func (r *Redis) Append(ctx context.Context, room string, payload []byte) error {
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, key(room), payload)
	pipe.LTrim(ctx, key(room), 0, r.limit-1)
	_, err := pipe.Exec(ctx)
	return err
}

// Recent returns the room's cached frames, oldest first.
func (r *Redis) Recent(ctx context.Context, room string) ([][]byte, error) {
	values, err := r.client.LRange(ctx, key(room), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	// LPUSH stores newest-first; replay wants chronological order.
	frames := make([][]byte, len(values))
	for i, v := range values {
		frames[len(values)-1-i] = []byte(v)
	}
	return frames, nil
}
