// Package usage provides best-effort API key usage capture: a Redis
// stream of key-usage events feeding last_used updates and daily stats.
// Nothing in this package may block or fail request handling.
package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/parcelgrid/parcelgrid/internal/metrics"
)

const (
	// StreamKey is the Redis stream for key usage events.
	StreamKey = "stream:key_usage"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 100000

	// PublishTimeout is the max time to wait for Redis publish.
	PublishTimeout = 100 * time.Millisecond
)

// EventPayload is the compact event format for the Redis stream.
type EventPayload struct {
	KeyID  string `json:"k"`
	UserID string `json:"u"`
	UsedAt int64  `json:"t"` // Unix milliseconds
}

// Publisher enqueues key usage events to the Redis stream.
type Publisher struct {
	redis   *redis.Client
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewPublisher creates a new usage event publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger, recorder metrics.Recorder) *Publisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Publisher{
		redis:   client,
		logger:  logger.With("component", "usage.publisher"),
		metrics: recorder,
	}
}

// Publish adds a usage event to the stream synchronously.
func (p *Publisher) Publish(ctx context.Context, event EventPayload) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"payload": string(data),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd: %w", err)
	}

	return nil
}

// PublishAsync publishes without blocking the caller. Errors are logged
// and counted but never surfaced: losing a last_used update is
// acceptable, failing a request over one is not.
func (p *Publisher) PublishAsync(keyID, userID string) {
	event := EventPayload{
		KeyID:  keyID,
		UserID: userID,
		UsedAt: time.Now().UnixMilli(),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), PublishTimeout)
		defer cancel()

		if err := p.Publish(ctx, event); err != nil {
			p.metrics.IncUsageEventPublished(metrics.UsageDropped)
			p.logger.Warn("usage event dropped",
				slog.String("key_id", keyID),
				slog.String("error", err.Error()),
			)
			return
		}
		p.metrics.IncUsageEventPublished(metrics.UsagePublished)
	}()
}
