package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/felixgeelhaar/blackbird/internal/domain"
)

type ackRecord struct {
	acked    bool
	nacked   bool
	rejected bool
	requeue  bool
}

type fakeAcker struct {
	mu  sync.Mutex
	rec ackRecord
}

func (a *fakeAcker) Ack(uint64, bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rec.acked = true
	return nil
}

func (a *fakeAcker) Nack(_ uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rec.nacked = true
	a.rec.requeue = requeue
	return nil
}

func (a *fakeAcker) Reject(_ uint64, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rec.rejected = true
	a.rec.requeue = requeue
	return nil
}

func delivery(t *testing.T, acker *fakeAcker, body any, redelivered bool) amqp.Delivery {
	t.Helper()
	var raw []byte
	switch b := body.(type) {
	case []byte:
		raw = b
	default:
		var err error
		raw, err = json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
	}
	return amqp.Delivery{Acknowledger: acker, Body: raw, Redelivered: redelivered, DeliveryTag: 1}
}

func testEvent() *AttemptEvent {
	return NewAttemptEvent(*domain.NewAttempt("ada", "001", 3, 2, 40, 9))
}

func TestConsumerProcessAcksHandledEvent(t *testing.T) {
	var got *AttemptEvent
	c := NewConsumer(nil, func(_ context.Context, e *AttemptEvent) error {
		got = e
		return nil
	}, ConsumerConfig{})

	acker := &fakeAcker{}
	want := testEvent()
	c.process(context.Background(), 0, delivery(t, acker, want, false))

	if !acker.rec.acked {
		t.Error("message not acked")
	}
	if got == nil || got.ID != want.ID || got.Attempt.Code != "001" || got.Attempt.Points != 9 {
		t.Errorf("handler got %+v; want %+v", got, want)
	}
}

func TestConsumerProcessRejectsMalformed(t *testing.T) {
	called := false
	c := NewConsumer(nil, func(context.Context, *AttemptEvent) error {
		called = true
		return nil
	}, ConsumerConfig{})

	acker := &fakeAcker{}
	c.process(context.Background(), 0, delivery(t, acker, []byte("{not json"), false))

	if called {
		t.Error("handler called for malformed body")
	}
	if !acker.rec.rejected || acker.rec.requeue {
		t.Errorf("ack record = %+v; want rejected without requeue", acker.rec)
	}
}

func TestConsumerProcessRequeuesOnce(t *testing.T) {
	c := NewConsumer(nil, func(context.Context, *AttemptEvent) error {
		return errors.New("boom")
	}, ConsumerConfig{})

	first := &fakeAcker{}
	c.process(context.Background(), 0, delivery(t, first, testEvent(), false))
	if !first.rec.nacked || !first.rec.requeue {
		t.Errorf("first failure = %+v; want nack with requeue", first.rec)
	}

	second := &fakeAcker{}
	c.process(context.Background(), 0, delivery(t, second, testEvent(), true))
	if !second.rec.nacked || second.rec.requeue {
		t.Errorf("redelivered failure = %+v; want nack without requeue", second.rec)
	}
}

func TestConsumerHandlerTimeout(t *testing.T) {
	c := NewConsumer(nil, func(ctx context.Context, _ *AttemptEvent) error {
		<-ctx.Done()
		return ctx.Err()
	}, ConsumerConfig{HandlerTimeout: 10 * time.Millisecond})

	acker := &fakeAcker{}
	done := make(chan struct{})
	go func() {
		c.process(context.Background(), 0, delivery(t, acker, testEvent(), false))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not bounded by HandlerTimeout")
	}
	if !acker.rec.nacked {
		t.Error("timed out message not nacked")
	}
}

func TestNewConsumerDefaults(t *testing.T) {
	c := NewConsumer(nil, nil, ConsumerConfig{})
	def := DefaultConsumerConfig()

	if c.workers != def.Workers || c.prefetch != def.Prefetch || c.handlerTimeout != def.HandlerTimeout {
		t.Errorf("consumer = {%d %d %v}; want defaults %+v", c.workers, c.prefetch, c.handlerTimeout, def)
	}

	c = NewConsumer(nil, nil, ConsumerConfig{Workers: 4, Prefetch: 2})
	if c.workers != 4 || c.prefetch != 2 {
		t.Errorf("custom config not kept: workers=%d prefetch=%d", c.workers, c.prefetch)
	}
}
