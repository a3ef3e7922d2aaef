package websocket

import (
	"context"

	"payam-chat/internal/events"
)

// RedisBridge relays published events to the hub's subscribers.
type RedisBridge struct {
	subscriber events.Subscriber
	hub        *Hub
}

func NewRedisBridge(subscriber events.Subscriber, hub *Hub) *RedisBridge {
	return &RedisBridge{subscriber: subscriber, hub: hub}
}

// Run blocks until ctx is done or the subscription fails.
func (b *RedisBridge) Run(ctx context.Context) error {
	return b.subscriber.Subscribe(ctx, events.BridgePatterns, func(channel string, payload []byte) {
		b.hub.Broadcast(channel, payload)
	})
}
