package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"live-quiz-service/internal/domain"

	"github.com/redis/go-redis/v9"
)

// Publisher is a broadcast sink for viewers on other instances. Each event is
// published on quiz:session:{id}:events and the latest version is kept under
// quiz:session:{id}:version, refreshing the liveness TTL.
type Publisher struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPublisher(client *redis.Client, ttl time.Duration) *Publisher {
	return &Publisher{client: client, ttl: ttl}
}

func (p *Publisher) Deliver(ctx context.Context, event domain.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	pipe := p.client.Pipeline()
	pipe.Publish(ctx, eventsChannel(event.SessionID), data)
	pipe.Set(ctx, versionKey(event.SessionID), event.Version, p.ttl)
	if p.ttl > 0 {
		pipe.Expire(ctx, sessionKey(event.SessionID), p.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish event %s v%d: %w", event.Type, event.Version, err)
	}
	return nil
}
