package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flicky/qbcart/internal/broker"
	"github.com/flicky/qbcart/internal/metrics"
)

const idempotencyTTL = 24 * time.Hour

// Channel is the subset of *amqp.Channel a consumer needs.
type Channel interface {
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

// Deduper remembers message ids that were already handled.
type Deduper interface {
	Seen(ctx context.Context, id string) (bool, error)
	Mark(ctx context.Context, id string) error
}

type RedisDeduper struct {
	client redis.Cmdable
	prefix string
}

func NewRedisDeduper(client redis.Cmdable, prefix string) *RedisDeduper {
	return &RedisDeduper{client: client, prefix: prefix}
}

func (d *RedisDeduper) Seen(ctx context.Context, id string) (bool, error) {
	n, err := d.client.Exists(ctx, d.prefix+id).Result()
	if err != nil {
		return false, fmt.Errorf("check idempotency key: %w", err)
	}
	return n > 0, nil
}

func (d *RedisDeduper) Mark(ctx context.Context, id string) error {
	if err := d.client.Set(ctx, d.prefix+id, "1", idempotencyTTL).Err(); err != nil {
		return fmt.Errorf("set idempotency key: %w", err)
	}
	return nil
}

type handleFunc func(ctx context.Context, msg amqp.Delivery) error

// consumer drains one queue with prefetch 1. A message is acked only after
// handle succeeds; a failing message is dead-lettered.
type consumer struct {
	name    string
	channel Channel
	queue   string
	dedupe  Deduper
	handle  handleFunc
	log     *slog.Logger

	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

func newConsumer(name string, ch Channel, queue string, dedupe Deduper, handle handleFunc, log *slog.Logger) *consumer {
	return &consumer{
		name:    name,
		channel: ch,
		queue:   queue,
		dedupe:  dedupe,
		handle:  handle,
		log:     log.With("worker", name, "queue", queue),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

func (c *consumer) Start(ctx context.Context) error {
	if err := c.channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set QoS: %w", err)
	}
	msgs, err := c.channel.Consume(c.queue, c.name, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	go func() {
		defer close(c.stopped)
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					c.log.Warn("delivery channel closed")
					return
				}
				c.process(ctx, msg)
			case <-c.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	c.log.Info("worker started")
	return nil
}

// Stop ends the consume loop after the in-flight message and waits for it.
func (c *consumer) Stop() {
	c.stopOnce.Do(func() { close(c.done) })
	<-c.stopped
}

func (c *consumer) process(ctx context.Context, msg amqp.Delivery) {
	ctx = broker.ExtractTrace(ctx, msg.Headers)
	ctx, span := otel.Tracer("qbcart/worker").Start(ctx, "consume "+c.queue,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "rabbitmq"),
			attribute.String("messaging.destination.name", c.queue),
			attribute.String("messaging.message.id", msg.MessageId),
		))
	defer span.End()

	log := c.log.With("message_id", msg.MessageId)

	dedupe := c.dedupe != nil && msg.MessageId != ""
	if dedupe {
		seen, err := c.dedupe.Seen(ctx, msg.MessageId)
		switch {
		case err != nil:
			// Handle anyway; a duplicate is cheaper than a stalled queue.
			log.Warn("idempotency lookup failed", "error", err)
		case seen:
			log.Info("message already handled, skipping")
			_ = msg.Ack(false)
			metrics.RecordConsumed(c.queue, "duplicate")
			return
		}
	}

	if err := c.handle(ctx, msg); err != nil {
		log.Error("handle message failed", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		_ = msg.Nack(false, false) // → DLQ
		metrics.RecordConsumed(c.queue, "dead_lettered")
		return
	}

	if dedupe {
		if err := c.dedupe.Mark(ctx, msg.MessageId); err != nil {
			log.Error("mark message handled", "error", err)
		}
	}

	_ = msg.Ack(false)
	metrics.RecordConsumed(c.queue, "ok")
}
