package events

import "context"

type Subscriber interface {
	Subscribe(ctx context.Context, patterns []string, handler func(channel string, payload []byte)) error
}

type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}
