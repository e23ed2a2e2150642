package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/felixgeelhaar/blackbird/internal/domain"
)

// AttemptQueueName is the durable queue solved attempts are published to
const AttemptQueueName = "blackbird.attempts"

// EventAttemptSolved is the type of a solved-attempt event
const EventAttemptSolved = "attempt.solved"

// DefaultMessageTTL bounds how long an unconsumed event is kept
const DefaultMessageTTL = 24 * time.Hour

// AttemptEvent is the message body on AttemptQueueName
type AttemptEvent struct {
	ID          uuid.UUID      `json:"id"`
	Type        string         `json:"type"`
	Attempt     domain.Attempt `json:"attempt"`
	PublishedAt time.Time      `json:"published_at"`
}

// NewAttemptEvent wraps a solved attempt
func NewAttemptEvent(a domain.Attempt) *AttemptEvent {
	return &AttemptEvent{
		ID:          uuid.New(),
		Type:        EventAttemptSolved,
		Attempt:     a,
		PublishedAt: time.Now().UTC(),
	}
}

// Connection manages the RabbitMQ connection with automatic reconnection
type Connection struct {
	url        string
	ttl        time.Duration
	conn       *amqp.Connection
	channel    *amqp.Channel
	mu         sync.RWMutex
	closed     bool
	reconnects int
}

// NewConnection dials RabbitMQ and declares the attempt queue. A zero ttl
// uses DefaultMessageTTL.
func NewConnection(url string, ttl time.Duration) (*Connection, error) {
	if ttl <= 0 {
		ttl = DefaultMessageTTL
	}
	c := &Connection{
		url: url,
		ttl: ttl,
	}

	if err := c.connect(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Connection) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	c.conn, err = amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	c.channel, err = c.conn.Channel()
	if err != nil {
		c.conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if err := c.declareQueue(); err != nil {
		c.channel.Close()
		c.conn.Close()
		return err
	}

	go c.handleReconnect(c.conn)

	slog.Info("connected to RabbitMQ", "url", SanitizeURL(c.url))
	return nil
}

func (c *Connection) declareQueue() error {
	_, err := c.channel.QueueDeclare(
		AttemptQueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		amqp.Table{
			"x-message-ttl": int32(c.ttl / time.Millisecond),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to declare attempt queue: %w", err)
	}
	return nil
}

// handleReconnect waits for conn to drop and redials with backoff
func (c *Connection) handleReconnect(conn *amqp.Connection) {
	notifyClose := conn.NotifyClose(make(chan *amqp.Error, 1))

	err, ok := <-notifyClose
	if !ok || err == nil {
		return // normal close
	}

	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return
	}

	slog.Warn("RabbitMQ connection closed, attempting to reconnect",
		"error", err,
		"reconnects", c.reconnects,
	)

	for i := 0; i < 10; i++ {
		c.reconnects++
		time.Sleep(backoff(i))

		c.mu.RLock()
		closed := c.closed
		c.mu.RUnlock()
		if closed {
			return
		}

		if err := c.connect(); err != nil {
			slog.Error("reconnection failed", "error", err, "attempt", i+1)
			continue
		}

		slog.Info("reconnected to RabbitMQ", "attempts", i+1)
		return
	}

	slog.Error("failed to reconnect to RabbitMQ after 10 attempts")
}

// backoff returns the exponential reconnect delay, capped at 30s
func backoff(attempt int) time.Duration {
	if attempt > 5 {
		return 30 * time.Second
	}
	d := time.Duration(1<<attempt) * time.Second
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	return d
}

// Channel returns the current channel
func (c *Connection) Channel() *amqp.Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channel
}

// Close closes the connection and stops reconnecting
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true

	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected checks if the connection is active
func (c *Connection) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && !c.conn.IsClosed()
}

// PublishJSON publishes a persistent JSON message to a queue
func (c *Connection) PublishJSON(ctx context.Context, queue string, data any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	ch := c.Channel()
	if ch == nil {
		return fmt.Errorf("no open channel")
	}

	return ch.PublishWithContext(
		ctx,
		"",    // exchange
		queue, // routing key
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
}

// SanitizeURL drops credentials from an AMQP URL for logging and display
func SanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "amqp://(invalid)"
	}
	u.User = nil
	return u.String()
}
