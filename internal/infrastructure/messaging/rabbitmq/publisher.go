// Package rabbitmq publishes account events to a durable RabbitMQ queue.
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/englishadventure/user-service/internal/core/domain"
)

const (
	publishTimeout = 5 * time.Second
	appID          = "user-service"
)

var ErrClosed = errors.New("rabbitmq connection closed")

// Config captures the broker URL and the queue account events are routed to.
type Config struct {
	URL   string
	Queue string
}

// Publisher sends account events through the default exchange to a durable queue.
type Publisher struct {
	conn  *amqp.Connection
	mu    sync.Mutex
	ch    *amqp.Channel
	queue string
	log   zerolog.Logger
}

// Dial connects to the broker, opens a channel and declares the queue.
func Dial(cfg Config, log zerolog.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	q, err := ch.QueueDeclare(
		cfg.Queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq declare queue %q: %w", cfg.Queue, err)
	}

	log.Info().Str("queue", q.Name).Int("messages", q.Messages).Msg("rabbitmq queue declared")
	return &Publisher{conn: conn, ch: ch, queue: q.Name, log: log}, nil
}

// Publish marshals event to JSON and publishes it as a persistent message.
func (p *Publisher) Publish(ctx context.Context, event domain.AccountEvent) error {
	msg, err := newPublishing(event)
	if err != nil {
		return err
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn.IsClosed() {
		return ErrClosed
	}
	if err := p.ch.PublishWithContext(publishCtx, "", p.queue, false, false, msg); err != nil {
		return fmt.Errorf("rabbitmq publish: %w", err)
	}

	p.log.Debug().Str("event", string(event.Type)).Int64("account_id", event.AccountID).Msg("event published")
	return nil
}

// Ping reports whether the broker connection is still open.
func (p *Publisher) Ping(context.Context) error {
	if p.conn.IsClosed() {
		return ErrClosed
	}
	return nil
}

// Close closes the channel and the connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	chErr := p.ch.Close()
	connErr := p.conn.Close()
	return errors.Join(chErr, connErr)
}

func newPublishing(event domain.AccountEvent) (amqp.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal event: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    event.OccurredAt.UTC(),
		Type:         string(event.Type),
		AppId:        appID,
		Body:         body,
	}, nil
}
