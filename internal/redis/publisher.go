package redis

import (
	"context"
	"errors"
	"fmt"

	"payam-chat/internal/events"

	goredis "github.com/redis/go-redis/v9"
)

var _ events.Publisher = (*Publisher)(nil)

// Publisher writes event envelopes to redis pub/sub channels. The websocket
// bridge on every API instance picks them up with a channel:* pattern.
type Publisher struct {
	client *goredis.Client
}

func NewPublisher(client *goredis.Client) *Publisher {
	return &Publisher{client: client}
}

// Publish sends payload to channel. Having no subscribers is not an error.
func (p *Publisher) Publish(ctx context.Context, channel string, payload []byte) error {
	if p == nil || p.client == nil {
		return errors.New("redis publisher not initialized")
	}
	if channel == "" {
		return errors.New("publish channel is required")
	}
	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}
