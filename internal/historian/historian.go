// internal/historian/historian.go
package historian

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultQueueName is the Redis list the historian consumer drains.
const DefaultQueueName = "playmat_actions"

// ActionRecord is one audit row describing an applied game action.
type ActionRecord struct {
	RoomCode   string    `json:"room_code"`
	Seat       int       `json:"seat"`
	PlayerID   uuid.UUID `json:"player_id"`
	ActionKind string    `json:"action_kind"`
	Timestamp  int64     `json:"timestamp"`
}

// Historian publishes applied actions to a Redis queue, best-effort. A nil
// Historian (or one built without a Redis address) discards everything, so
// callers never need to branch on whether auditing is enabled.
type Historian struct {
	rdb   *redis.Client
	queue string
	log   *logrus.Logger
}

// Connect builds a Historian against the given Redis address. An empty
// address disables auditing and returns (nil, nil).
func Connect(ctx context.Context, addr string, db int, queue string, log *logrus.Logger) (*Historian, error) {
	if addr == "" {
		return nil, nil
	}
	if queue == "" {
		queue = DefaultQueueName
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: db})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return &Historian{rdb: rdb, queue: queue, log: log}, nil
}

// Record pushes one audit row. Errors are logged and swallowed; the session
// must never stall or fail on the audit path.
func (h *Historian) Record(rec ActionRecord) {
	if h == nil || h.rdb == nil {
		return
	}
	if rec.Timestamp == 0 {
		rec.Timestamp = time.Now().UnixMilli()
	}
	go func() {
		data, err := json.Marshal(rec)
		if err != nil {
			h.log.Warnf("historian: failed to marshal action record: %v", err)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := h.rdb.RPush(ctx, h.queue, data).Err(); err != nil {
			h.log.Warnf("historian: failed to push action record: %v", err)
		}
	}()
}

// Close releases the underlying Redis client.
func (h *Historian) Close() error {
	if h == nil || h.rdb == nil {
		return nil
	}
	return h.rdb.Close()
}
