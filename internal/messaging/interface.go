package messaging

import (
	"context"

	"github.com/rs/zerolog"
)

// PublisherInterface defines the contract for event publishing
type PublisherInterface interface {
	Publish(ctx context.Context, routingKey string, eventData interface{}) error
	Close() error
}

var _ PublisherInterface = (*Publisher)(nil)

// Emit publishes event and logs a failure. Event delivery never fails the
// operation that produced it.
func Emit(ctx context.Context, pub PublisherInterface, logger zerolog.Logger, routingKey string, event interface{}) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, routingKey, event); err != nil {
		logger.Warn().Err(err).Str("routing_key", routingKey).Msg("failed to publish event")
	}
}
