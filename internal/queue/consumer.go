package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// EventHandler processes one attempt event. A returned error requeues the
// message once; a redelivered message that fails again is dropped.
type EventHandler func(ctx context.Context, event *AttemptEvent) error

// Consumer reads attempt events from the queue
type Consumer struct {
	conn           *Connection
	handler        EventHandler
	workers        int
	prefetch       int
	handlerTimeout time.Duration
	cancelFunc     context.CancelFunc
	wg             sync.WaitGroup
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	Workers        int           // Number of concurrent workers
	Prefetch       int           // Prefetch count per worker
	HandlerTimeout time.Duration // Upper bound for one handler call
}

// DefaultConsumerConfig returns sensible defaults
func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Workers:        1,
		Prefetch:       10,
		HandlerTimeout: 30 * time.Second,
	}
}

// NewConsumer creates a new queue consumer
func NewConsumer(conn *Connection, handler EventHandler, cfg ConsumerConfig) *Consumer {
	def := DefaultConsumerConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = def.Prefetch
	}
	if cfg.HandlerTimeout <= 0 {
		cfg.HandlerTimeout = def.HandlerTimeout
	}

	return &Consumer{
		conn:           conn,
		handler:        handler,
		workers:        cfg.Workers,
		prefetch:       cfg.Prefetch,
		handlerTimeout: cfg.HandlerTimeout,
	}
}

// Start begins consuming messages
func (c *Consumer) Start(ctx context.Context) error {
	ctx, c.cancelFunc = context.WithCancel(ctx)

	ch := c.conn.Channel()
	if ch == nil {
		return fmt.Errorf("no open channel")
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := ch.Consume(
		AttemptQueueName,
		"",    // consumer tag (auto-generated)
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	slog.Info("starting attempt consumer", "workers", c.workers, "prefetch", c.prefetch)

	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go c.worker(ctx, i, msgs)
	}

	return nil
}

// Consume runs the consumer until ctx is done
func (c *Consumer) Consume(ctx context.Context) error {
	if err := c.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	c.Stop()
	return nil
}

func (c *Consumer) worker(ctx context.Context, id int, msgs <-chan amqp.Delivery) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-msgs:
			if !ok {
				slog.Info("message channel closed", "worker_id", id)
				return
			}

			c.process(ctx, id, msg)
		}
	}
}

// process decodes and dispatches one delivery, then acknowledges it
func (c *Consumer) process(ctx context.Context, workerID int, msg amqp.Delivery) {
	var event AttemptEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		slog.Error("failed to unmarshal attempt event",
			"worker_id", workerID,
			"error", err,
		)
		_ = msg.Reject(false)
		return
	}

	hctx, cancel := context.WithTimeout(ctx, c.handlerTimeout)
	defer cancel()

	if err := c.handler(hctx, &event); err != nil {
		requeue := !msg.Redelivered
		slog.Error("attempt event handler failed",
			"worker_id", workerID,
			"event_id", event.ID,
			"requeue", requeue,
			"error", err,
		)
		_ = msg.Nack(false, requeue)
		return
	}

	if err := msg.Ack(false); err != nil {
		slog.Error("failed to ack message",
			"worker_id", workerID,
			"event_id", event.ID,
			"error", err,
		)
	}
}

// Stop gracefully stops the consumer
func (c *Consumer) Stop() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
	c.wg.Wait()
	slog.Info("consumer stopped")
}
