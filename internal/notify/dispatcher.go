// Package notify enqueues, schedules and delivers the storefront's emails.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/flicky/qbcart/internal/model"
)

var ErrInvalidTask = errors.New("invalid task")

// Sink accepts encoded messages without blocking.
type Sink interface {
	Publish(ctx context.Context, queue string, body []byte) bool
}

// Dispatcher puts notification tasks on the task queue. It is fire-and-forget:
// the caller's transaction is already committed when it runs.
type Dispatcher struct {
	sink  Sink
	queue string
	log   *slog.Logger
	now   func() time.Time
}

func NewDispatcher(sink Sink, queue string, log *slog.Logger) *Dispatcher {
	return &Dispatcher{sink: sink, queue: queue, log: log, now: time.Now}
}

func (d *Dispatcher) SendConfirmation(ctx context.Context, userID uuid.UUID, orderIDs []uuid.UUID) {
	d.enqueue(ctx, model.TaskMessage{Kind: model.TaskSendConfirmation, UserID: userID, OrderIDs: orderIDs})
}

func (d *Dispatcher) SendHourlyReport(ctx context.Context) {
	d.enqueue(ctx, model.TaskMessage{Kind: model.TaskSendHourlyReport})
}

func (d *Dispatcher) enqueue(ctx context.Context, task model.TaskMessage) {
	task.EnqueuedAt = d.now().UTC()
	body, err := json.Marshal(task)
	if err != nil {
		d.log.Error("encode task", "kind", task.Kind, "error", err)
		return
	}
	if d.sink.Publish(ctx, d.queue, body) {
		d.log.Debug("task enqueued", "kind", task.Kind, "orders", len(task.OrderIDs))
	}
}

func DecodeTask(body []byte) (model.TaskMessage, error) {
	var task model.TaskMessage
	if err := json.Unmarshal(body, &task); err != nil {
		return task, fmt.Errorf("%w: %v", ErrInvalidTask, err)
	}
	switch task.Kind {
	case model.TaskSendConfirmation, model.TaskSendHourlyReport:
		return task, nil
	default:
		return task, fmt.Errorf("%w: kind %q", ErrInvalidTask, task.Kind)
	}
}
