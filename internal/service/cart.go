package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/flicky/qbcart/internal/dto"
	"github.com/flicky/qbcart/internal/model"
	"github.com/flicky/qbcart/internal/repository"
)

const maxProductKey = 101

type CartService struct {
	reconciler
}

func NewCartService(store repository.Store, recorder Recorder, log *slog.Logger) *CartService {
	return &CartService{reconciler{store: store, recorder: recorder, log: log}}
}

// AddToCart puts the product in the user's active cart. A line that already
// exists for the product, wishlisted or not, is moved back to the cart.
func (s *CartService) AddToCart(ctx context.Context, userID uuid.UUID, req dto.AddToCartRequest) (Outcome, *model.CartLine, error) {
	quantity := req.Quantity
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 1 {
		return 0, nil, ErrInvalidQuantity
	}
	key := rand.Intn(maxProductKey) + 1
	if req.Key != nil {
		key = *req.Key
	}

	var line *model.CartLine
	outcome, err := s.run(ctx, "add_to_cart", userID, func(tx repository.Store, u *unit) (Outcome, error) {
		product, err := tx.Products().GetByID(ctx, req.ProductID)
		if err != nil {
			return 0, fmt.Errorf("get product: %w", err)
		}
		if product == nil {
			return NotFound, nil
		}

		existing, err := tx.Carts().FindByUserProduct(ctx, u.user.ID, product.ID)
		if err != nil {
			return 0, fmt.Errorf("find cart line: %w", err)
		}
		if existing == nil {
			line = &model.CartLine{
				UserID: u.user.ID, ProductID: product.ID, Quantity: quantity,
				Status: model.CartInOrder, ProductKey: key,
			}
			if err := tx.Carts().Create(ctx, line); err != nil {
				return 0, fmt.Errorf("create cart line: %w", err)
			}
			u.audit(addedNewLine, product.Name)
			return Applied, nil
		}

		if _, err := tx.Carts().SetStatusByUserProduct(ctx, u.user.ID, product.ID, model.CartInOrder); err != nil {
			return 0, fmt.Errorf("move to cart: %w", err)
		}
		if line, err = tx.Carts().GetByID(ctx, existing.ID); err != nil {
			return 0, fmt.Errorf("reload cart line: %w", err)
		}
		u.audit(readdedExistingLine, product.Name)
		return Applied, nil
	})
	return outcome, line, err
}

// UpdateQuantity sets a line's quantity. A non-zero version must match the
// line's current version.
func (s *CartService) UpdateQuantity(ctx context.Context, userID, lineID uuid.UUID, quantity, version int) (Outcome, *model.CartLine, error) {
	if quantity < 1 {
		return 0, nil, ErrInvalidQuantity
	}

	var line *model.CartLine
	outcome, err := s.run(ctx, "update_quantity", userID, func(tx repository.Store, u *unit) (Outcome, error) {
		current, err := tx.Carts().LockByID(ctx, lineID)
		if err != nil {
			return 0, fmt.Errorf("lock cart line: %w", err)
		}
		if current == nil || !u.owns(current.UserID) {
			return NotFound, nil
		}

		line, err = tx.Carts().UpdateQuantity(ctx, lineID, quantity, version)
		switch {
		case errors.Is(err, repository.ErrVersionConflict):
			return 0, ErrVersionConflict
		case errors.Is(err, repository.ErrNotFound):
			return NotFound, nil
		case err != nil:
			return 0, fmt.Errorf("update quantity: %w", err)
		}

		name, err := productName(ctx, tx, line.ProductID)
		if err != nil {
			return 0, err
		}
		u.auditN(updatedQuantity, name, line.Quantity)
		return Applied, nil
	})
	return outcome, line, err
}

// ToggleStatus moves a line to the wishlist or back into the cart.
func (s *CartService) ToggleStatus(ctx context.Context, userID, lineID uuid.UUID, wishlist bool) (Outcome, *model.CartLine, error) {
	target, t := model.CartInOrder, movedFromWishlist
	if wishlist {
		target, t = model.CartInCart, movedToWishlist
	}

	var line *model.CartLine
	outcome, err := s.run(ctx, "toggle_status", userID, func(tx repository.Store, u *unit) (Outcome, error) {
		current, err := tx.Carts().LockByID(ctx, lineID)
		if err != nil {
			return 0, fmt.Errorf("lock cart line: %w", err)
		}
		if current == nil || !u.owns(current.UserID) || current.Status == target {
			return NotFound, nil
		}
		if err := tx.Carts().SetStatus(ctx, lineID, target); err != nil {
			return 0, fmt.Errorf("set cart status: %w", err)
		}
		if line, err = tx.Carts().GetByID(ctx, lineID); err != nil {
			return 0, fmt.Errorf("reload cart line: %w", err)
		}

		name, err := productName(ctx, tx, current.ProductID)
		if err != nil {
			return 0, err
		}
		u.audit(t, name)
		return Applied, nil
	})
	return outcome, line, err
}

func (s *CartService) RemoveFromCart(ctx context.Context, userID, lineID uuid.UUID) (Outcome, error) {
	return s.run(ctx, "remove_from_cart", userID, func(tx repository.Store, u *unit) (Outcome, error) {
		current, err := tx.Carts().LockByID(ctx, lineID)
		if err != nil {
			return 0, fmt.Errorf("lock cart line: %w", err)
		}
		if current == nil || !u.owns(current.UserID) {
			return NotFound, nil
		}
		name, err := productName(ctx, tx, current.ProductID)
		if err != nil {
			return 0, err
		}
		if err := tx.Carts().Delete(ctx, lineID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return NotFound, nil
			}
			return 0, fmt.Errorf("delete cart line: %w", err)
		}
		u.audit(removedFromCart, name)
		return Applied, nil
	})
}

// GetCart splits the user's lines into the active cart and the wishlist.
func (s *CartService) GetCart(ctx context.Context, userID uuid.UUID) (*dto.CartResponse, error) {
	lines, err := s.store.Carts().ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list cart: %w", err)
	}

	resp := &dto.CartResponse{
		Items:    []dto.CartLineResponse{},
		Wishlist: []dto.CartLineResponse{},
		Total:    decimal.Zero,
	}
	for _, l := range lines {
		product, err := s.store.Products().GetByID(ctx, l.ProductID)
		if err != nil {
			return nil, fmt.Errorf("get product: %w", err)
		}
		item := ToCartLineResponse(&l, product)
		if l.Status == model.CartInOrder {
			resp.Items = append(resp.Items, item)
			resp.Total = resp.Total.Add(item.Subtotal)
		} else {
			resp.Wishlist = append(resp.Wishlist, item)
		}
	}
	return resp, nil
}

func ToCartLineResponse(l *model.CartLine, p *model.Product) dto.CartLineResponse {
	resp := dto.CartLineResponse{
		ID: l.ID, ProductID: l.ProductID, Quantity: l.Quantity,
		Status: l.Status, Key: l.ProductKey, Version: l.Version,
		Cost: decimal.Zero, Subtotal: decimal.Zero,
	}
	if p != nil {
		resp.ProductName = p.Name
		resp.Cost = p.Cost
		resp.Subtotal = model.PriceFor(p.Cost, l.Quantity)
	}
	return resp
}
