package messaging

import (
	"context"
)

// Broker defines the interface for message brokers
type Broker interface {
	// Publish JSON-encodes message and delivers it to current subscribers of
	// channel. Delivery is at-most-once.
	Publish(ctx context.Context, channel string, message interface{}) error
	// Subscribe returns a stream of raw payloads that is closed when ctx ends
	// or the broker closes.
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// Publisher is the publish half of a Broker.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) error
}
