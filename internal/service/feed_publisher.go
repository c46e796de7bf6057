package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/escolahub/comms-api/internal/models"
)

// FeedChannelPrefix namespaces the changefeed Pub/Sub channels.
const FeedChannelPrefix = "feed:"

// FeedChannel returns the Pub/Sub channel name for a table's change events.
func FeedChannel(table string) string {
	return FeedChannelPrefix + table
}

// FeedPublisher emits change events onto the realtime feed after a write has
// been committed. Publishing is best-effort: a failed publish is logged and
// the write stands, consumers heal by refetching on refocus.
type FeedPublisher struct {
	client *redis.Client
	logger *zap.Logger
}

// NewFeedPublisher constructs the publisher. A nil client disables publishing.
func NewFeedPublisher(client *redis.Client, logger *zap.Logger) *FeedPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedPublisher{client: client, logger: logger}
}

// Publish emits one change event.
func (p *FeedPublisher) Publish(ctx context.Context, event models.FeedEvent) error {
	if p.client == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal feed event: %w", err)
	}
	if err := p.client.Publish(ctx, FeedChannel(event.Table), payload).Err(); err != nil {
		p.logger.Warn("feed publish failed",
			zap.String("table", event.Table),
			zap.String("row_id", event.Row.ID),
			zap.Error(err))
		return fmt.Errorf("publish feed event: %w", err)
	}
	return nil
}
