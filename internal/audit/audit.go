// Package audit turns user actions into activity records on the log queue.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flicky/qbcart/internal/model"
)

var ErrInvalidEvent = errors.New("invalid audit event")

// Sink accepts encoded messages without blocking.
type Sink interface {
	Publish(ctx context.Context, queue string, body []byte) bool
}

// NewEvent copies the names it needs so the record survives later deletes.
func NewEvent(user *model.User, action model.Action, product, comments string, at time.Time) model.AuditEvent {
	return model.AuditEvent{
		User:     user.Username,
		Email:    user.Email,
		Action:   action,
		Product:  product,
		Comments: comments,
		DateTime: at.Local().Format(model.AuditTimeLayout),
	}
}

func Encode(e model.AuditEvent) ([]byte, error) {
	if !e.Action.Valid() {
		return nil, fmt.Errorf("%w: action %q", ErrInvalidEvent, e.Action)
	}
	return json.Marshal(e)
}

// Decode parses a queue message and rejects unknown actions or a missing user.
func Decode(body []byte) (model.AuditEvent, error) {
	var e model.AuditEvent
	if err := json.Unmarshal(body, &e); err != nil {
		return e, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if !e.Action.Valid() {
		return e, fmt.Errorf("%w: action %q", ErrInvalidEvent, e.Action)
	}
	if e.User == "" {
		return e, fmt.Errorf("%w: empty user", ErrInvalidEvent)
	}
	return e, nil
}

// Publisher records events on the activity queue. Record never fails the caller.
type Publisher struct {
	sink  Sink
	queue string
	log   *slog.Logger
	now   func() time.Time
}

func NewPublisher(sink Sink, queue string, log *slog.Logger) *Publisher {
	return &Publisher{sink: sink, queue: queue, log: log, now: time.Now}
}

func (p *Publisher) Record(ctx context.Context, user *model.User, action model.Action, product, comments string) {
	e := NewEvent(user, action, product, comments, p.now())
	body, err := Encode(e)
	if err != nil {
		p.log.Error("encode audit event", "action", action, "error", err)
		return
	}
	p.sink.Publish(ctx, p.queue, body)
}
