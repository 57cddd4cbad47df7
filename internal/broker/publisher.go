package broker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/flicky/qbcart/internal/metrics"
)

// Channel is the publishing half of *amqp.Channel.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type envelope struct {
	queue   string
	body    []byte
	headers amqp.Table
}

// AsyncPublisher decouples callers from the broker. Publish copies the message
// into a bounded buffer and returns at once; a single goroutine drains the
// buffer in order. Messages that do not fit, or that the broker refuses, are
// logged and counted and otherwise lost.
type AsyncPublisher struct {
	ch      Channel
	log     *slog.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	buf    chan envelope
	done   chan struct{}
}

func NewAsyncPublisher(ch Channel, size int, log *slog.Logger) *AsyncPublisher {
	if size <= 0 {
		size = 1
	}
	p := &AsyncPublisher{
		ch:      ch,
		log:     log,
		timeout: 5 * time.Second,
		buf:     make(chan envelope, size),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

// Publish enqueues body for queue. It reports whether the message was buffered.
func (p *AsyncPublisher) Publish(ctx context.Context, queue string, body []byte) bool {
	env := envelope{queue: queue, body: body, headers: InjectTrace(ctx)}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.drop(env, "closed")
		return false
	}
	select {
	case p.buf <- env:
		return true
	default:
		p.drop(env, "buffer_full")
		return false
	}
}

func (p *AsyncPublisher) drop(env envelope, reason string) {
	metrics.RecordDropped(env.queue, reason)
	p.log.Warn("message dropped", "queue", env.queue, "reason", reason, "bytes", len(env.body))
}

func (p *AsyncPublisher) run() {
	defer close(p.done)
	for env := range p.buf {
		p.send(env)
	}
}

func (p *AsyncPublisher) send(env envelope) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now(),
		Headers:      env.headers,
		Body:         env.body,
	}
	if err := p.ch.PublishWithContext(ctx, "", env.queue, false, false, msg); err != nil {
		metrics.RecordDropped(env.queue, "publish_error")
		p.log.Error("publish message", "queue", env.queue, "message_id", msg.MessageId, "error", err)
		return
	}
	metrics.RecordPublished(env.queue)
}

// Close stops accepting messages and waits for the buffer to drain or ctx to end.
func (p *AsyncPublisher) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.buf)
	}
	p.mu.Unlock()

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
