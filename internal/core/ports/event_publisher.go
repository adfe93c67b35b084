package ports

import (
	"context"

	"github.com/englishadventure/user-service/internal/core/domain"
)

// EventPublisher delivers account events to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.AccountEvent) error
}
