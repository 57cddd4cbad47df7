package model

import (
	"time"

	"github.com/google/uuid"
)

// Action is the two-letter code stored with every activity log entry.
type Action string

const (
	ActionProductCreated  Action = "PC"
	ActionProductUpdated  Action = "PU"
	ActionProductDeleted  Action = "PD"
	ActionAddedToCart     Action = "AC"
	ActionRemovedFromCart Action = "RC"
	ActionMovedToWishlist Action = "MW"
	ActionUpdatedCart     Action = "UC"
	ActionOrderCreated    Action = "OR"
	ActionOrderPlaced     Action = "OP"
	ActionOrderCancelled  Action = "OC"
)

var actionLabels = map[Action]string{
	ActionProductCreated:  "Product Created",
	ActionProductUpdated:  "Product Updated",
	ActionProductDeleted:  "Product Deleted",
	ActionAddedToCart:     "Added to Cart",
	ActionUpdatedCart:     "Updated Cart",
	ActionRemovedFromCart: "Removed from Cart",
	ActionMovedToWishlist: "Moved to Wishlist",
	ActionOrderCreated:    "Order Created",
	ActionOrderPlaced:     "Order Placed",
	ActionOrderCancelled:  "Order Cancelled",
}

func (a Action) Valid() bool {
	_, ok := actionLabels[a]
	return ok
}

func (a Action) Label() string { return actionLabels[a] }

// AuditTimeLayout is the minute-precision timestamp carried on the wire.
const AuditTimeLayout = "2006-01-02 15:04"

// AuditEvent is the JSON record published onto the activity queue.
// It copies names instead of referencing rows so it outlives them.
type AuditEvent struct {
	User     string `json:"user"`
	Email    string `json:"email"`
	Action   Action `json:"action"`
	Product  string `json:"product"`
	Comments string `json:"comments"`
	DateTime string `json:"date_time"`
}

// ActivityLogEntry is a persisted AuditEvent.
type ActivityLogEntry struct {
	ID        uuid.UUID
	Username  string
	Email     string
	Action    Action
	Product   string
	Comments  string
	DateTime  string
	CreatedAt time.Time
}

func (e AuditEvent) Entry() *ActivityLogEntry {
	return &ActivityLogEntry{
		Username: e.User,
		Email:    e.Email,
		Action:   e.Action,
		Product:  e.Product,
		Comments: e.Comments,
		DateTime: e.DateTime,
	}
}

type TaskKind string

const (
	TaskSendConfirmation TaskKind = "send_confirmation"
	TaskSendHourlyReport TaskKind = "send_hourly_report"
)

// TaskMessage is a unit of work on the notification task queue.
type TaskMessage struct {
	Kind       TaskKind    `json:"kind"`
	UserID     uuid.UUID   `json:"user_id,omitempty"`
	OrderIDs   []uuid.UUID `json:"order_ids,omitempty"`
	EnqueuedAt time.Time   `json:"enqueued_at"`
}
