package broadcast

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisChannel = "gamebox:broadcast"

// RedisBus relays messages through Redis pub/sub so sessions connected to
// other instances receive them too. Every instance, including the
// publisher, delivers what it reads from the channel to its local sessions.
type RedisBus struct {
	client *redis.Client
	local  *Local
	pubsub *redis.PubSub
	done   chan struct{}
}

func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:            addr,
		MaxRetries:      5,
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 512 * time.Millisecond,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    5 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to reach redis: %w", err)
	}
	return client, nil
}

// NewRedisBus subscribes to the relay channel and starts delivering.
func NewRedisBus(ctx context.Context, client *redis.Client) (*RedisBus, error) {
	pubsub := client.Subscribe(ctx, redisChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", redisChannel, err)
	}

	b := &RedisBus{client: client, local: NewLocal(), pubsub: pubsub, done: make(chan struct{})}
	go b.run()
	return b, nil
}

func (b *RedisBus) run() {
	defer close(b.done)
	for m := range b.pubsub.Channel() {
		msg, err := Decode([]byte(m.Payload))
		if err != nil {
			slog.Error("dropping undecodable broadcast", "error", err)
			continue
		}
		b.local.Deliver(msg)
	}
}

func (b *RedisBus) Publish(ctx context.Context, msg Message) error {
	payload, err := msg.Encode()
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, redisChannel, payload).Err()
}

func (b *RedisBus) Subscribe(userID uuid.UUID, sessionID string) *Subscription {
	return b.local.Subscribe(userID, sessionID)
}

func (b *RedisBus) Close() error {
	err := b.pubsub.Close()
	<-b.done
	b.local.Close()
	return err
}
