// Package pubsub fans transcript change notifications out to every process
// holding a live subscription for the same conversation.
package pubsub

import (
	"context"
	"fmt"

	redisv9 "github.com/redis/go-redis/v9"
)

type RedisNotifier struct {
	client *redisv9.Client
}

func NewRedisNotifier(client *redisv9.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

func channelName(userID uint, documentID string) string {
	return fmt.Sprintf("docchat:transcript:changed:%d:%s", userID, documentID)
}

func (n *RedisNotifier) Publish(ctx context.Context, userID uint, documentID string) error {
	if err := n.client.Publish(ctx, channelName(userID, documentID), "1").Err(); err != nil {
		return fmt.Errorf("redis publish transcript change failed: %w", err)
	}
	return nil
}

// Subscribe returns a channel that receives a signal after every change.
// Bursts coalesce into one pending signal. The channel closes when ctx ends.
func (n *RedisNotifier) Subscribe(ctx context.Context, userID uint, documentID string) (<-chan struct{}, error) {
	sub := n.client.Subscribe(ctx, channelName(userID, documentID))
	// Wait for the subscription to be confirmed so no publish after this
	// call returns is missed.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("redis subscribe transcript failed: %w", err)
	}

	out := make(chan struct{}, 1)
	msgs := sub.Channel()
	go func() {
		defer close(out)
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out, nil
}
