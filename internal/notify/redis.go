package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Shivanand-hulikatti/event-admission/internal/config"
)

// RedisSender pushes messages onto a list; consumers pop from the other end.
type RedisSender struct {
	client *redis.Client
	list   string
}

// NewRedisSender builds a client for cfg.Addr.
func NewRedisSender(cfg config.RedisConfig) *RedisSender {
	return &RedisSender{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		list: cfg.List,
	}
}

// Send pushes msg onto the configured list.
func (s *RedisSender) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := s.client.LPush(ctx, s.list, body).Err(); err != nil {
		return fmt.Errorf("push notification: %w", err)
	}
	return nil
}

// Close closes the client.
func (s *RedisSender) Close() error {
	return s.client.Close()
}
