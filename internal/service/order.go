package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/flicky/qbcart/internal/dto"
	"github.com/flicky/qbcart/internal/model"
	"github.com/flicky/qbcart/internal/repository"
)

var ErrOrderNotFound = errors.New("order not found")

type OrderService struct {
	reconciler
	notifier Notifier
	now      func() time.Time
}

func NewOrderService(store repository.Store, recorder Recorder, notifier Notifier, log *slog.Logger) *OrderService {
	return &OrderService{
		reconciler: reconciler{store: store, recorder: recorder, log: log},
		notifier:   notifier,
		now:        time.Now,
	}
}

// Checkout turns every active cart line into the user's draft order for that
// product, creating the draft or overwriting its quantity and price.
func (s *OrderService) Checkout(ctx context.Context, userID uuid.UUID) (Outcome, []model.Order, error) {
	var orders []model.Order
	outcome, err := s.run(ctx, "checkout", userID, func(tx repository.Store, u *unit) (Outcome, error) {
		orders = nil
		lines, err := tx.Carts().LockByUserStatus(ctx, u.user.ID, model.CartInOrder)
		if err != nil {
			return 0, fmt.Errorf("lock cart lines: %w", err)
		}
		if len(lines) == 0 {
			return NotFound, nil
		}

		for _, line := range lines {
			product, err := tx.Products().GetByID(ctx, line.ProductID)
			if err != nil {
				return 0, fmt.Errorf("get product: %w", err)
			}
			if product == nil {
				continue
			}
			order := &model.Order{
				UserID:    u.user.ID,
				ProductID: product.ID,
				Quantity:  line.Quantity,
				Price:     model.PriceFor(product.Cost, line.Quantity),
			}
			created, err := tx.Orders().UpsertDraft(ctx, order)
			if err != nil {
				return 0, fmt.Errorf("upsert draft: %w", err)
			}
			if created {
				u.auditN(createdOrder, product.Name, order.Quantity)
			}
			orders = append(orders, *order)
		}
		return Applied, nil
	})
	return outcome, orders, err
}

// Deliver places every draft order, clears the active cart and, after commit,
// asks for the confirmation emails.
func (s *OrderService) Deliver(ctx context.Context, userID uuid.UUID) (Outcome, []uuid.UUID, error) {
	var ids []uuid.UUID
	outcome, err := s.run(ctx, "deliver", userID, func(tx repository.Store, u *unit) (Outcome, error) {
		ids = nil
		drafts, err := tx.Orders().LockByUserStatus(ctx, u.user.ID, model.OrderStatusNotPlaced)
		if err != nil {
			return 0, fmt.Errorf("lock draft orders: %w", err)
		}
		if len(drafts) == 0 {
			return NotFound, nil
		}

		for _, o := range drafts {
			ids = append(ids, o.ID)
			name, err := productName(ctx, tx, o.ProductID)
			if err != nil {
				return 0, err
			}
			u.auditN(placedOrder, name, o.Quantity)
		}
		if err := tx.Orders().MarkPlaced(ctx, ids, s.now()); err != nil {
			return 0, fmt.Errorf("place orders: %w", err)
		}
		if _, err := tx.Carts().DeleteByUserStatus(ctx, u.user.ID, model.CartInOrder); err != nil {
			return 0, fmt.Errorf("clear cart: %w", err)
		}

		buyer, placed := u.user.ID, append([]uuid.UUID(nil), ids...)
		u.afterCommit = append(u.afterCommit, func(ctx context.Context) {
			s.notifier.SendConfirmation(ctx, buyer, placed)
		})
		return Applied, nil
	})
	return outcome, ids, err
}

// Cancel moves a draft or placed order to Cancelled.
func (s *OrderService) Cancel(ctx context.Context, userID, orderID uuid.UUID) (Outcome, error) {
	return s.run(ctx, "cancel", userID, func(tx repository.Store, u *unit) (Outcome, error) {
		order, err := tx.Orders().LockByID(ctx, orderID)
		if err != nil {
			return 0, fmt.Errorf("lock order: %w", err)
		}
		if order == nil || !u.owns(order.UserID) || order.Status == model.OrderStatusCancelled {
			return NotFound, nil
		}
		if err := tx.Orders().SetStatus(ctx, orderID, model.OrderStatusCancelled); err != nil {
			return 0, fmt.Errorf("cancel order: %w", err)
		}
		name, err := productName(ctx, tx, order.ProductID)
		if err != nil {
			return 0, err
		}
		u.audit(cancelledOrder, name)
		return Applied, nil
	})
}

// RemoveCancelled deletes an order only once it is Cancelled.
func (s *OrderService) RemoveCancelled(ctx context.Context, userID, orderID uuid.UUID) (Outcome, error) {
	return s.run(ctx, "remove_cancelled", userID, func(tx repository.Store, u *unit) (Outcome, error) {
		order, err := tx.Orders().LockByID(ctx, orderID)
		if err != nil {
			return 0, fmt.Errorf("lock order: %w", err)
		}
		if order == nil || !u.owns(order.UserID) || order.Status != model.OrderStatusCancelled {
			return NotFound, nil
		}
		name, err := productName(ctx, tx, order.ProductID)
		if err != nil {
			return 0, err
		}
		if err := tx.Orders().Delete(ctx, orderID); err != nil {
			return 0, fmt.Errorf("delete order: %w", err)
		}
		u.audit(removedCancelledOrder, name)
		return Applied, nil
	})
}

// DeleteOrder deletes an order in any state and returns the product's cart
// lines to the wishlist.
func (s *OrderService) DeleteOrder(ctx context.Context, userID, orderID uuid.UUID) (Outcome, error) {
	return s.run(ctx, "delete_order", userID, func(tx repository.Store, u *unit) (Outcome, error) {
		order, err := tx.Orders().LockByID(ctx, orderID)
		if err != nil {
			return 0, fmt.Errorf("lock order: %w", err)
		}
		if order == nil || !u.owns(order.UserID) {
			return NotFound, nil
		}
		name, err := productName(ctx, tx, order.ProductID)
		if err != nil {
			return 0, err
		}
		if err := tx.Orders().Delete(ctx, orderID); err != nil {
			return 0, fmt.Errorf("delete order: %w", err)
		}
		if _, err := tx.Carts().SetStatusByUserProduct(ctx, order.UserID, order.ProductID, model.CartInCart); err != nil {
			return 0, fmt.Errorf("return to wishlist: %w", err)
		}
		u.audit(deletedOrder, name)
		return Applied, nil
	})
}

func (s *OrderService) GetByID(ctx context.Context, userID, orderID uuid.UUID, isAdmin bool) (*dto.OrderResponse, error) {
	order, err := s.store.Orders().GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil || (order.UserID != userID && !isAdmin) {
		return nil, ErrOrderNotFound
	}
	resp, err := s.toResponses(ctx, []model.Order{*order})
	if err != nil {
		return nil, err
	}
	return &resp[0], nil
}

// List returns the user's orders newest first.
func (s *OrderService) List(ctx context.Context, userID uuid.UUID) (*dto.OrderListResponse, error) {
	orders, err := s.store.Orders().ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	resp, err := s.toResponses(ctx, orders)
	if err != nil {
		return nil, err
	}
	return &dto.OrderListResponse{Orders: resp, Total: len(resp)}, nil
}

func (s *OrderService) ListDrafts(ctx context.Context, userID uuid.UUID) (*dto.OrderListResponse, error) {
	orders, err := s.store.Orders().ListByUserStatus(ctx, userID, model.OrderStatusNotPlaced)
	if err != nil {
		return nil, fmt.Errorf("list draft orders: %w", err)
	}
	resp, err := s.toResponses(ctx, orders)
	if err != nil {
		return nil, err
	}
	return &dto.OrderListResponse{Orders: resp, Total: len(resp)}, nil
}

// Describe renders orders with their product names.
func (s *OrderService) Describe(ctx context.Context, orders []model.Order) ([]dto.OrderResponse, error) {
	return s.toResponses(ctx, orders)
}

func (s *OrderService) toResponses(ctx context.Context, orders []model.Order) ([]dto.OrderResponse, error) {
	names := map[uuid.UUID]string{}
	out := make([]dto.OrderResponse, 0, len(orders))
	for _, o := range orders {
		name, ok := names[o.ProductID]
		if !ok {
			var err error
			if name, err = productName(ctx, s.store, o.ProductID); err != nil {
				return nil, err
			}
			names[o.ProductID] = name
		}
		out = append(out, ToOrderResponse(&o, name))
	}
	return out, nil
}

func ToOrderResponse(o *model.Order, name string) dto.OrderResponse {
	return dto.OrderResponse{
		ID: o.ID, ProductID: o.ProductID, ProductName: name,
		Status: o.Status, Quantity: o.Quantity, Price: o.Price,
		OrderDate: o.OrderDate, PlacedAt: o.PlacedAt,
	}
}
