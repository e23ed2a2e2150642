package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/felixgeelhaar/blackbird/internal/queue"
)

// cmdEvents prints solved-attempt events until interrupted
func cmdEvents(args []string) error {
	fs := flag.NewFlagSet("events", flag.ContinueOnError)
	asJSON := fs.Bool("json", false, "print raw JSON events")
	workers := fs.Int("workers", 1, "concurrent consumers")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Events.AMQPURL == "" {
		return fmt.Errorf("no broker configured (set events.amqp_url or BLACKBIRD_AMQP_URL)")
	}

	conn, err := queue.NewConnection(cfg.Events.AMQPURL, cfg.Events.MessageTTL())
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(os.Stderr, "Listening on %s (%s), Ctrl-C to stop\n",
		queue.AttemptQueueName, queue.SanitizeURL(cfg.Events.AMQPURL))

	consumer := queue.NewConsumer(conn, printEvent(os.Stdout, *asJSON), queue.ConsumerConfig{
		Workers: *workers,
	})
	return consumer.Consume(ctx)
}

// printEvent returns a handler writing one line per event
func printEvent(w io.Writer, asJSON bool) queue.EventHandler {
	var mu sync.Mutex
	return func(_ context.Context, e *queue.AttemptEvent) error {
		mu.Lock()
		defer mu.Unlock()

		if asJSON {
			return json.NewEncoder(w).Encode(e)
		}

		a := e.Attempt
		_, err := fmt.Fprintf(w, "%s  %-24s %-6s difficulty %-2d %2d pts  %d attempts  %ds\n",
			e.PublishedAt.Local().Format("2006-01-02 15:04:05"),
			a.Username, a.Code, a.Difficulty, a.Points, a.Attempts, a.ElapsedSeconds)
		return err
	}
}
