package worker

import (
	"context"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/flicky/qbcart/internal/model"
	"github.com/flicky/qbcart/internal/notify"
)

// TaskHandler is satisfied by *notify.Mailer.
type TaskHandler interface {
	Handle(ctx context.Context, task model.TaskMessage) error
}

type NotificationWorker struct {
	*consumer
	tasks TaskHandler
}

func NewNotificationWorker(ch Channel, queue string, tasks TaskHandler, dedupe Deduper, log *slog.Logger) *NotificationWorker {
	w := &NotificationWorker{tasks: tasks}
	w.consumer = newConsumer("notification", ch, queue, dedupe, w.run, log)
	return w
}

func (w *NotificationWorker) run(ctx context.Context, msg amqp.Delivery) error {
	task, err := notify.DecodeTask(msg.Body)
	if err != nil {
		return err
	}
	return w.tasks.Handle(ctx, task)
}
