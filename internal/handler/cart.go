package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flicky/qbcart/internal/dto"
	"github.com/flicky/qbcart/internal/middleware"
	"github.com/flicky/qbcart/internal/model"
	"github.com/flicky/qbcart/internal/repository"
	"github.com/flicky/qbcart/internal/service"
)

type CartHandler struct {
	svc      *service.CartService
	products repository.ProductRepository
}

func NewCartHandler(svc *service.CartService, products repository.ProductRepository) *CartHandler {
	return &CartHandler{svc: svc, products: products}
}

func (h *CartHandler) GetCart(c *gin.Context) {
	cart, err := h.svc.GetCart(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		serviceError(c, err)
		return
	}
	ok(c, http.StatusOK, cart)
}

func (h *CartHandler) lineResponse(ctx context.Context, line *model.CartLine) (*dto.CartLineResponse, error) {
	if line == nil {
		return nil, nil
	}
	product, err := h.products.GetByID(ctx, line.ProductID)
	if err != nil {
		return nil, err
	}
	resp := service.ToCartLineResponse(line, product)
	return &resp, nil
}

func (h *CartHandler) answer(c *gin.Context, o service.Outcome, line *model.CartLine) {
	resp, err := h.lineResponse(c.Request.Context(), line)
	if err != nil {
		serviceError(c, err)
		return
	}
	outcome(c, o, dto.OutcomeResponse{Line: resp})
}

func (h *CartHandler) Add(c *gin.Context) {
	var req dto.AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	o, line, err := h.svc.AddToCart(c.Request.Context(), middleware.GetUserID(c), req)
	if err != nil {
		serviceError(c, err)
		return
	}
	h.answer(c, o, line)
}

func (h *CartHandler) UpdateQuantity(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	var req dto.UpdateCartLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	o, line, err := h.svc.UpdateQuantity(c.Request.Context(), middleware.GetUserID(c), id, req.Quantity, req.Version)
	if err != nil {
		serviceError(c, err)
		return
	}
	h.answer(c, o, line)
}

func (h *CartHandler) ToggleStatus(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	var req dto.ToggleCartLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	o, line, err := h.svc.ToggleStatus(c.Request.Context(), middleware.GetUserID(c), id, *req.Wishlist)
	if err != nil {
		serviceError(c, err)
		return
	}
	h.answer(c, o, line)
}

func (h *CartHandler) Remove(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}

	o, err := h.svc.RemoveFromCart(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		serviceError(c, err)
		return
	}
	outcome(c, o, dto.OutcomeResponse{})
}
