package realtime

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisChannel carries change signals between api instances
const RedisChannel = "swachhsnap:changes"

// RedisNotifier publishes through redis so every instance refreshes its
// views, not just the one that handled the write
type RedisNotifier struct {
	client *redis.Client
	local  *LocalNotifier
}

// NewRedisNotifier connects to url and checks the connection
func NewRedisNotifier(ctx context.Context, url string) (*RedisNotifier, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return &RedisNotifier{client: client, local: NewLocalNotifier()}, nil
}

// Publish sends the signal to every instance. If redis is down this
// instance is still notified.
func (n *RedisNotifier) Publish(ctx context.Context, collection string) error {
	if err := n.client.Publish(ctx, RedisChannel, collection).Err(); err != nil {
		_ = n.local.Publish(ctx, collection)
		return fmt.Errorf("failed to publish change for %s: %w", collection, err)
	}
	return nil
}

// Listen implements Notifier
func (n *RedisNotifier) Listen(collections ...string) (<-chan struct{}, func()) {
	return n.local.Listen(collections...)
}

// Run forwards redis messages to local listeners until ctx is done
func (n *RedisNotifier) Run(ctx context.Context) {
	pubsub := n.client.Subscribe(ctx, RedisChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	zap.S().Infow("listening for changes", "channel", RedisChannel)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_ = n.local.Publish(ctx, msg.Payload)
		}
	}
}

// Close releases the redis connection
func (n *RedisNotifier) Close() error {
	return n.client.Close()
}
