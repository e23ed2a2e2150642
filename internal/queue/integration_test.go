//go:build integration

package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"

	"github.com/felixgeelhaar/blackbird/internal/domain"
	"github.com/felixgeelhaar/blackbird/internal/queue"
)

// setupRabbitMQ creates a RabbitMQ container for testing
func setupRabbitMQ(t *testing.T) (string, func()) {
	ctx := context.Background()

	container, err := rabbitmq.Run(ctx, "rabbitmq:3.12-management")
	if err != nil {
		t.Fatalf("failed to start RabbitMQ container: %v", err)
	}

	amqpURL, err := container.AmqpURL(ctx)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("failed to get AMQP URL: %v", err)
	}

	cleanup := func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return amqpURL, cleanup
}

func TestIntegration_Connection_ConnectAndClose(t *testing.T) {
	amqpURL, cleanup := setupRabbitMQ(t)
	defer cleanup()

	conn, err := queue.NewConnection(amqpURL, 0)
	if err != nil {
		t.Fatalf("failed to create connection: %v", err)
	}

	if !conn.IsConnected() {
		t.Error("expected connection to be active")
	}

	if err := conn.Close(); err != nil {
		t.Errorf("failed to close connection: %v", err)
	}
}

func TestIntegration_Connection_InvalidURL(t *testing.T) {
	_, err := queue.NewConnection("amqp://invalid:5672", 0)
	if err == nil {
		t.Error("expected error for invalid URL")
	}
}

func TestIntegration_Producer_PublishAttempt(t *testing.T) {
	amqpURL, cleanup := setupRabbitMQ(t)
	defer cleanup()

	conn, err := queue.NewConnection(amqpURL, time.Hour)
	if err != nil {
		t.Fatalf("failed to create connection: %v", err)
	}
	defer conn.Close()

	producer := queue.NewProducer(conn)
	attempt := domain.NewAttempt("ada@example.com", "001", 1, 2, 30, 9)

	if err := producer.PublishAttempt(context.Background(), *attempt); err != nil {
		t.Fatalf("failed to publish attempt: %v", err)
	}

	q, err := conn.Channel().QueueInspect(queue.AttemptQueueName)
	if err != nil {
		t.Fatalf("failed to inspect queue: %v", err)
	}
	if q.Messages != 1 {
		t.Errorf("expected 1 message in queue, got %d", q.Messages)
	}
}

func TestIntegration_Consumer_ReceivesAttempts(t *testing.T) {
	amqpURL, cleanup := setupRabbitMQ(t)
	defer cleanup()

	conn, err := queue.NewConnection(amqpURL, time.Hour)
	if err != nil {
		t.Fatalf("failed to create connection: %v", err)
	}
	defer conn.Close()

	received := make(chan *queue.AttemptEvent, 4)
	consumer := queue.NewConsumer(conn, func(_ context.Context, e *queue.AttemptEvent) error {
		received <- e
		return nil
	}, queue.DefaultConsumerConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := consumer.Start(ctx); err != nil {
		t.Fatalf("failed to start consumer: %v", err)
	}
	defer consumer.Stop()

	producer := queue.NewProducer(conn)
	for _, code := range []string{"001", "002A"} {
		a := domain.NewAttempt("ada@example.com", code, 4, 1, 10, 10)
		if err := producer.PublishAttempt(ctx, *a); err != nil {
			t.Fatalf("failed to publish attempt: %v", err)
		}
	}

	var codes []string
	for len(codes) < 2 {
		select {
		case e := <-received:
			if e.Type != queue.EventAttemptSolved {
				t.Errorf("Type = %q; want %q", e.Type, queue.EventAttemptSolved)
			}
			codes = append(codes, e.Attempt.Code)
		case <-time.After(10 * time.Second):
			t.Fatalf("timed out waiting for events, got %v", codes)
		}
	}

	if codes[0] != "001" || codes[1] != "002A" {
		t.Errorf("codes = %v; want [001 002A]", codes)
	}
}
