package repository

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

// SessionChangesChannel is the Redis pub/sub channel the tracking
// endpoint publishes on whenever a session row changes.
const SessionChangesChannel = "sessions:changed"

// SessionChanges fans session-change notifications between the
// tracking write path and the dashboard feed via Redis pub/sub.
type SessionChanges struct {
	client *redis.Client
}

func NewSessionChanges(client *redis.Client) *SessionChanges {
	return &SessionChanges{client: client}
}

// Publish signals that the session collection changed. Payload-free:
// subscribers re-query rather than trusting a pushed document.
func (c *SessionChanges) Publish(ctx context.Context) error {
	return c.client.Publish(ctx, SessionChangesChannel, "1").Err()
}

// Subscribe returns a channel that receives a tick per change burst.
// The channel closes when the underlying subscription drops. The stop
// func releases the subscription; it is safe to call more than once.
func (c *SessionChanges) Subscribe(ctx context.Context) (<-chan struct{}, func(), error) {
	pubsub := c.client.Subscribe(ctx, SessionChangesChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, nil, err
	}

	ch := make(chan struct{}, 1)
	go func() {
		defer close(ch)
		for range pubsub.Channel() {
			// Collapse bursts: one pending tick is enough to trigger
			// a re-query.
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() { pubsub.Close() })
	}
	return ch, stop, nil
}
