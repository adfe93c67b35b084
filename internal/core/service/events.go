package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/englishadventure/user-service/internal/core/domain"
	"github.com/englishadventure/user-service/internal/core/ports"
)

// publishEvent hands event to the publisher. The state change is already
// persisted, so a publish failure is only logged.
func publishEvent(ctx context.Context, pub ports.EventPublisher, log zerolog.Logger, event domain.AccountEvent) {
	if err := pub.Publish(ctx, event); err != nil {
		log.Warn().Err(err).
			Str("event", string(event.Type)).
			Int64("account_id", event.AccountID).
			Msg("account event not published")
	}
}
