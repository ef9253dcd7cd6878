package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "arcade:changes:"

// RedisChannel fans changes out through Redis pub/sub so every server
// instance sees writes made by the others
type RedisChannel struct {
	client *redis.Client
}

// NewRedisChannel connects to a redis:// URL and checks the connection
func NewRedisChannel(ctx context.Context, url string) (*RedisChannel, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisChannel{client: client}, nil
}

func (r *RedisChannel) Publish(ctx context.Context, c Change) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, channelPrefix+c.Table, data).Err()
}

// Subscribe returns once Redis has confirmed the subscription
func (r *RedisChannel) Subscribe(table string, fn Handler) (*Subscription, error) {
	ctx := context.Background()
	ps := r.client.Subscribe(ctx, channelPrefix+table)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("redis subscribe failed: %w", err)
	}

	msgs := ps.Channel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range msgs {
			var c Change
			if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
				log.Printf("Realtime: dropping malformed change on %s: %v", msg.Channel, err)
				continue
			}
			fn(c)
		}
	}()

	return newSubscription(func() {
		if err := ps.Close(); err != nil {
			log.Printf("Realtime: unsubscribe failed: %v", err)
		}
		<-done
	}), nil
}

// Ping reports whether Redis is reachable
func (r *RedisChannel) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisChannel) Close() error {
	return r.client.Close()
}
