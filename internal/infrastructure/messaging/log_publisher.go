// Package messaging holds the account event publishers used when no broker
// is configured.
package messaging

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/englishadventure/user-service/internal/core/domain"
)

// LogPublisher writes account events to the structured log instead of a broker.
type LogPublisher struct {
	log zerolog.Logger
}

func NewLogPublisher(log zerolog.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, event domain.AccountEvent) error {
	p.log.Info().
		Str("event", string(event.Type)).
		Int64("account_id", event.AccountID).
		Str("username", event.Username).
		Int("level", event.Level).
		Int64("experience", event.Experience).
		Int64("coins", event.Coins).
		Time("occurred_at", event.OccurredAt).
		Msg("account event")
	return nil
}
