// Package outbox queues remote sheet writes for best-effort delivery.
// Callers never wait on delivery; the worker drains the queue and
// replays writes when the endpoint is reachable again.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrFull is returned by the in-memory queue when its buffer is
// exhausted. Remote writes are best-effort, so callers log and move on
// rather than block a request on a stalled consumer.
var ErrFull = errors.New("outbox full")

// Message is one pending remote write.
type Message struct {
	Action   string          `json:"action"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts"`
}

// Queue is the abstraction over different backends.
type Queue interface {
	Publish(ctx context.Context, msg Message) error
	Consume(ctx context.Context) (<-chan Message, error)
}

// InMemory is a minimal channel-backed queue for dev/testing.
type InMemory struct {
	ch chan Message
}

// NewInMemory creates a bounded in-memory queue.
func NewInMemory(size int) *InMemory {
	return &InMemory{ch: make(chan Message, size)}
}

// Publish enqueues a message without blocking: a full buffer drops the
// write with ErrFull instead of stalling the caller.
func (q *InMemory) Publish(ctx context.Context, msg Message) error {
	select {
	case q.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrFull
	}
}

// Consume returns a channel for workers.
func (q *InMemory) Consume(ctx context.Context) (<-chan Message, error) {
	out := make(chan Message)
	go func() {
		defer close(out)
		for {
			select {
			case msg := <-q.ch:
				out <- msg
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// RedisOutbox implements a redis list-backed queue. Pending writes
// survive process restarts.
type RedisOutbox struct {
	client *redis.Client
	key    string
}

// NewRedisOutbox builds a queue using LPUSH/BRPOP semantics.
func NewRedisOutbox(client *redis.Client, key string) *RedisOutbox {
	if key == "" {
		key = "prayerlog:outbox"
	}
	return &RedisOutbox{client: client, key: key}
}

// Publish enqueues a message.
func (q *RedisOutbox) Publish(ctx context.Context, msg Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.key, raw).Err()
}

// Consume streams messages using BRPOP.
func (q *RedisOutbox) Consume(ctx context.Context) (<-chan Message, error) {
	out := make(chan Message)
	go func() {
		defer close(out)
		for {
			res, err := q.client.BRPop(ctx, 5*time.Second, q.key).Result()
			if err != nil {
				if err == redis.Nil {
					continue
				}
				if ctx.Err() != nil {
					return
				}
				continue
			}
			if len(res) == 2 {
				var msg Message
				if err := json.Unmarshal([]byte(res[1]), &msg); err == nil {
					out <- msg
				}
			}
		}
	}()
	return out, nil
}
