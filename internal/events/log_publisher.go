package events

import (
	"context"

	"minibank-core/internal/logger"
)

// LogPublisher writes events to the application log. Used when no broker
// is configured.
type LogPublisher struct{}

func NewLogPublisher() *LogPublisher {
	return &LogPublisher{}
}

func (p *LogPublisher) Publish(ctx context.Context, topic, key string, body []byte) error {
	logger.InfoContext(ctx, "Event published", "topic", topic, "key", key, "payload", string(body))
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}
