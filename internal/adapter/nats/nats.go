// Package nats consumes wiki events from NATS JetStream.
package nats

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/wikirelay/wikirelay/internal/domain/event"
)

const (
	streamName    = "WIKIRELAY"
	subjectFilter = "wiki.events.>"
	consumerName  = "wikirelay-ingest"
)

// EventSink receives decoded events. *service.Relay satisfies it.
type EventSink interface {
	Handle(ctx context.Context, ev event.Event)
}

// Consumer pulls wiki events off a JetStream stream and feeds them to an
// EventSink. It is the queue-based alternative to the HTTP ingest endpoint.
type Consumer struct {
	nc   *nats.Conn
	js   jetstream.JetStream
	cons jetstream.ConsumeContext
	log  *slog.Logger
}

// Connect establishes a connection to NATS and ensures the event stream
// exists.
func Connect(ctx context.Context, url string, log *slog.Logger) (*Consumer, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{subjectFilter},
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}

	log.Info("nats connected", "url", url, "stream", streamName)
	return &Consumer{nc: nc, js: js, log: log}, nil
}

// Start begins consuming events. Malformed payloads are logged and acked:
// redelivery cannot fix a payload that does not decode, and a stuck message
// must never hold up the stream.
func (c *Consumer) Start(ctx context.Context, sink EventSink) error {
	consumer, err := c.js.CreateOrUpdateConsumer(ctx, streamName, jetstream.ConsumerConfig{
		Durable:       consumerName,
		FilterSubject: subjectFilter,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return fmt.Errorf("nats consumer create: %w", err)
	}

	cons, err := consumer.Consume(func(msg jetstream.Msg) {
		ev, err := event.Decode(msg.Data())
		if err != nil {
			c.log.Warn("dropping undecodable event", "subject", msg.Subject(), "error", err)
		} else {
			sink.Handle(context.Background(), ev)
		}
		if ackErr := msg.Ack(); ackErr != nil {
			c.log.Error("nats ack failed", "error", ackErr)
		}
	})
	if err != nil {
		return fmt.Errorf("nats consume: %w", err)
	}

	c.cons = cons
	return nil
}

// Publish sends an event payload to the stream. Used by tooling and tests;
// the wiki normally publishes directly.
func (c *Consumer) Publish(ctx context.Context, subject string, data []byte) error {
	_, err := c.js.Publish(ctx, subject, data)
	if err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return nil
}

// Close stops consuming and shuts down the connection.
func (c *Consumer) Close() error {
	if c.cons != nil {
		c.cons.Stop()
	}
	c.nc.Close()
	return nil
}
