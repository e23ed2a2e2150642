package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/blackbird/internal/domain"
)

// Publisher announces solved attempts
type Publisher interface {
	PublishAttempt(ctx context.Context, a domain.Attempt) error
}

// Producer publishes attempt events to RabbitMQ
type Producer struct {
	conn *Connection
}

// NewProducer creates a new queue producer
func NewProducer(conn *Connection) *Producer {
	return &Producer{conn: conn}
}

// PublishAttempt publishes a solved attempt to AttemptQueueName
func (p *Producer) PublishAttempt(ctx context.Context, a domain.Attempt) error {
	event := NewAttemptEvent(a)

	if err := p.conn.PublishJSON(ctx, AttemptQueueName, event); err != nil {
		return fmt.Errorf("failed to publish attempt: %w", err)
	}

	slog.Info("published attempt event",
		"event_id", event.ID,
		"attempt_id", a.ID,
		"username", a.Username,
		"code", a.Code,
	)

	return nil
}

// NopPublisher discards events; used when events are disabled
type NopPublisher struct{}

// PublishAttempt does nothing
func (NopPublisher) PublishAttempt(context.Context, domain.Attempt) error {
	return nil
}

var (
	_ Publisher = (*Producer)(nil)
	_ Publisher = NopPublisher{}
)
