package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"github.com/flicky/qbcart/internal/metrics"
	"github.com/flicky/qbcart/internal/model"
	"github.com/flicky/qbcart/internal/repository"
)

var (
	ErrVersionConflict = errors.New("cart line was modified concurrently")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrForbidden       = errors.New("forbidden")
)

// Outcome is the result of a cart or order transition. NotFound means the
// entity was absent or already in the requested state and nothing changed.
type Outcome int

const (
	Applied Outcome = iota + 1
	NotFound
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case NotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Recorder is satisfied by *audit.Publisher.
type Recorder interface {
	Record(ctx context.Context, user *model.User, action model.Action, product, comments string)
}

// Notifier is satisfied by *notify.Dispatcher.
type Notifier interface {
	SendConfirmation(ctx context.Context, userID uuid.UUID, orderIDs []uuid.UUID)
}

type transition int

const (
	addedNewLine transition = iota
	readdedExistingLine
	movedToWishlist
	movedFromWishlist
	updatedQuantity
	removedFromCart
	createdOrder
	placedOrder
	cancelledOrder
	removedCancelledOrder
	deletedOrder
	createdProduct
	updatedProduct
	deletedProduct
)

// transitionAudit maps every transition to the action and comment it logs.
// The wishlist labels are inherited as-is: re-adding an existing line and
// both toggle directions are all logged as MW.
var transitionAudit = map[transition]struct {
	action  model.Action
	comment string
	withArg bool
}{
	addedNewLine:          {model.ActionAddedToCart, "added to cart", false},
	readdedExistingLine:   {model.ActionMovedToWishlist, "moved to cart", false},
	movedToWishlist:       {model.ActionMovedToWishlist, "moved to wishlist", false},
	movedFromWishlist:     {model.ActionMovedToWishlist, "moved from wishlist to cart", false},
	updatedQuantity:       {model.ActionUpdatedCart, "updated quantity = ", true},
	removedFromCart:       {model.ActionRemovedFromCart, "delete from cart", false},
	createdOrder:          {model.ActionOrderCreated, "order created quantity=", true},
	placedOrder:           {model.ActionOrderPlaced, "delivery initiated quantity=", true},
	cancelledOrder:        {model.ActionOrderCancelled, "order cancelled", false},
	removedCancelledOrder: {model.ActionOrderCancelled, "removed from orderslist", false},
	deletedOrder:          {model.ActionMovedToWishlist, "order deleted and moved to wishlist", false},
	createdProduct:        {model.ActionProductCreated, "cost=", true},
	updatedProduct:        {model.ActionProductUpdated, "NULL", false},
	deletedProduct:        {model.ActionProductDeleted, "product deleted", false},
}

type auditRecord struct {
	t       transition
	product string
	arg     string
}

// unit collects what a transaction wants to emit once it has committed.
type unit struct {
	user        *model.User
	audits      []auditRecord
	afterCommit []func(ctx context.Context)
}

func (u *unit) audit(t transition, product string) { u.audits = append(u.audits, auditRecord{t: t, product: product}) }

func (u *unit) auditN(t transition, product string, n int) {
	u.audits = append(u.audits, auditRecord{t: t, product: product, arg: strconv.Itoa(n)})
}

// owns reports whether the acting user may touch a row owned by ownerID.
func (u *unit) owns(ownerID uuid.UUID) bool { return u.user.IsAdmin || u.user.ID == ownerID }

// reconciler runs transitions in one transaction and emits side effects only
// after commit.
type reconciler struct {
	store    repository.Store
	recorder Recorder
	log      *slog.Logger
}

func (r *reconciler) run(ctx context.Context, op string, userID uuid.UUID, fn func(tx repository.Store, u *unit) (Outcome, error)) (Outcome, error) {
	var (
		u       *unit
		outcome Outcome
	)
	err := r.store.InTx(ctx, func(tx repository.Store) error {
		u = &unit{}
		user, err := tx.Users().GetByID(ctx, userID)
		if err != nil {
			return fmt.Errorf("load user: %w", err)
		}
		if user == nil {
			outcome = NotFound
			return nil
		}
		u.user = user
		outcome, err = fn(tx, u)
		return err
	})
	if err != nil {
		metrics.RecordOperation(op, "error")
		return 0, err
	}
	metrics.RecordOperation(op, outcome.String())

	if outcome == Applied {
		r.emit(ctx, u)
	}
	return outcome, nil
}

func (r *reconciler) emit(ctx context.Context, u *unit) {
	for _, a := range u.audits {
		entry := transitionAudit[a.t]
		comment := entry.comment
		if entry.withArg {
			comment += a.arg
		}
		r.recorder.Record(ctx, u.user, entry.action, a.product, comment)
	}
	for _, fn := range u.afterCommit {
		fn(ctx)
	}
}

func productName(ctx context.Context, tx repository.Store, id uuid.UUID) (string, error) {
	p, err := tx.Products().GetByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("load product: %w", err)
	}
	if p == nil {
		return "", nil
	}
	return p.Name, nil
}
