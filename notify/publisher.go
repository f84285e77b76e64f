package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gigmatch/outbox"

	"github.com/redis/go-redis/v9"
)

const DefaultChannel = "gigmatch.events"

// PubSub is the part of the redis client the publisher uses.
type PubSub interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher republishes every outbox event on a Redis channel for
// live consumers.
type RedisPublisher struct {
	rdb     PubSub
	channel string
}

func NewRedisPublisher(rdb PubSub, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{rdb: rdb, channel: channel}
}

type event struct {
	ID        string          `json:"id"`
	Topic     string          `json:"topic"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

func (p *RedisPublisher) Handle(ctx context.Context, msg outbox.Message) error {
	payload := msg.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	body, err := json.Marshal(event{ID: msg.ID, Topic: msg.Topic, Payload: payload, CreatedAt: msg.CreatedAt})
	if err != nil {
		return fmt.Errorf("notify: marshal event: %w", err)
	}
	if err := p.rdb.Publish(ctx, p.channel, body).Err(); err != nil {
		return fmt.Errorf("notify: publish %s: %w", msg.Topic, err)
	}
	return nil
}
