package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/estatedesk/brokercycle/internal/domain"
)

// subscribeBuffer bounds how many undelivered payloads a slow subscriber may
// accumulate before messages are dropped by go-redis.
const subscribeBuffer = 128

// SignalBus implements domain.SignalBus over Redis Pub/Sub. Every cycle and
// property mutation is announced here so UI shells and sibling processes can
// re-fetch instead of polling.
type SignalBus struct {
	rdb *redis.Client
}

// NewSignalBus creates a SignalBus backed by the given Client.
func NewSignalBus(c *Client) *SignalBus {
	return &SignalBus{rdb: c.Underlying()}
}

// Publish broadcasts a raw payload on the named channel.
func (b *SignalBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := b.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe opens a subscription on the named channel and returns a read-only
// payload channel. Cancelling ctx tears the subscription down and closes the
// returned channel.
func (b *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	sub := b.rdb.Subscribe(ctx, channel)

	// Wait for the subscription confirmation so a publisher racing this call
	// cannot slip a message past us.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", channel, err)
	}

	out := make(chan []byte, subscribeBuffer)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Compile-time interface check.
var _ domain.SignalBus = (*SignalBus)(nil)
