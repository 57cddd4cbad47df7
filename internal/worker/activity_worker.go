package worker

import (
	"context"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/flicky/qbcart/internal/audit"
	"github.com/flicky/qbcart/internal/repository"
)

// ActivityWorker persists audit events from the activity queue into the
// activity log.
type ActivityWorker struct {
	*consumer
	activity repository.ActivityRepository
}

func NewActivityWorker(ch Channel, queue string, activity repository.ActivityRepository, dedupe Deduper, log *slog.Logger) *ActivityWorker {
	w := &ActivityWorker{activity: activity}
	w.consumer = newConsumer("activity", ch, queue, dedupe, w.persist, log)
	return w
}

func (w *ActivityWorker) persist(ctx context.Context, msg amqp.Delivery) error {
	event, err := audit.Decode(msg.Body)
	if err != nil {
		return err
	}
	if err := w.activity.Create(ctx, event.Entry()); err != nil {
		return fmt.Errorf("persist activity: %w", err)
	}
	w.log.Debug("activity persisted", "user", event.User, "action", event.Action)
	return nil
}
