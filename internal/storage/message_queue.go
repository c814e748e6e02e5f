// internal/storage/message_queue.go
package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"smartwheel/internal/config"
	"smartwheel/internal/model"
)

// MessageQueue publishes wheel events to a redis channel and keeps a
// bounded history list per wheel
type MessageQueue struct {
	client      *redis.Client
	channel     string
	historySize int64
	logger      *zap.Logger
}

func NewMessageQueue(ctx context.Context, cfg *config.RedisConfig, logger *zap.Logger) (*MessageQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	logger.Info("Connected to redis", zap.String("addr", cfg.Addr), zap.String("channel", cfg.Channel))

	return &MessageQueue{
		client:      client,
		channel:     cfg.Channel,
		historySize: cfg.HistorySize,
		logger:      logger,
	}, nil
}

// HistoryKey is the list holding the recent events of a wheel
func HistoryKey(wheelSlug string) string {
	return fmt.Sprintf("smartwheel:%s:messages", wheelSlug)
}

// Publish sends event on the channel and prepends it to the wheel history
func (mq *MessageQueue) Publish(ctx context.Context, wheelSlug string, event model.WheelEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	if err := mq.client.Publish(ctx, mq.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	key := HistoryKey(wheelSlug)
	pipe := mq.client.TxPipeline()
	pipe.LPush(ctx, key, data)
	if mq.historySize > 0 {
		pipe.LTrim(ctx, key, 0, mq.historySize-1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		mq.logger.Warn("Failed to store event history", zap.String("key", key), zap.Error(err))
	}

	return nil
}

// History returns up to limit recent events of a wheel, newest first
func (mq *MessageQueue) History(ctx context.Context, wheelSlug string, limit int64) ([]model.WheelEvent, error) {
	if limit <= 0 {
		limit = mq.historySize
	}
	raw, err := mq.client.LRange(ctx, HistoryKey(wheelSlug), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read event history: %w", err)
	}

	events := make([]model.WheelEvent, 0, len(raw))
	for _, item := range raw {
		var event model.WheelEvent
		if err := json.Unmarshal([]byte(item), &event); err != nil {
			mq.logger.Warn("Skipping malformed history entry", zap.Error(err))
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

func (mq *MessageQueue) Ping(ctx context.Context) error {
	return mq.client.Ping(ctx).Err()
}

// Close closes the redis client
func (mq *MessageQueue) Close() error {
	return mq.client.Close()
}
