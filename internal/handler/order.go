package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/flicky/qbcart/internal/dto"
	"github.com/flicky/qbcart/internal/middleware"
	"github.com/flicky/qbcart/internal/service"
)

type OrderHandler struct {
	orderService *service.OrderService
}

func NewOrderHandler(orderService *service.OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

func (h *OrderHandler) List(c *gin.Context) {
	resp, err := h.orderService.List(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		serviceError(c, err)
		return
	}
	ok(c, http.StatusOK, resp)
}

func (h *OrderHandler) Drafts(c *gin.Context) {
	resp, err := h.orderService.ListDrafts(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		serviceError(c, err)
		return
	}
	ok(c, http.StatusOK, resp)
}

func (h *OrderHandler) Get(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}

	resp, err := h.orderService.GetByID(c.Request.Context(), middleware.GetUserID(c), id, middleware.IsAdmin(c))
	if err != nil {
		serviceError(c, err)
		return
	}
	ok(c, http.StatusOK, resp)
}

func (h *OrderHandler) Checkout(c *gin.Context) {
	o, orders, err := h.orderService.Checkout(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		serviceError(c, err)
		return
	}

	described, err := h.orderService.Describe(c.Request.Context(), orders)
	if err != nil {
		serviceError(c, err)
		return
	}
	resp := dto.OutcomeResponse{Orders: described}
	for _, order := range orders {
		resp.OrderIDs = append(resp.OrderIDs, order.ID)
	}
	outcome(c, o, resp)
}

func (h *OrderHandler) Deliver(c *gin.Context) {
	o, ids, err := h.orderService.Deliver(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		serviceError(c, err)
		return
	}
	outcome(c, o, dto.OutcomeResponse{OrderIDs: ids})
}

// byID runs a single-order transition named by the :id path parameter.
func (h *OrderHandler) byID(c *gin.Context, fn func(context.Context, uuid.UUID, uuid.UUID) (service.Outcome, error)) {
	id, valid := pathID(c)
	if !valid {
		return
	}

	o, err := fn(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		serviceError(c, err)
		return
	}
	outcome(c, o, dto.OutcomeResponse{OrderIDs: []uuid.UUID{id}})
}

func (h *OrderHandler) Cancel(c *gin.Context) { h.byID(c, h.orderService.Cancel) }

func (h *OrderHandler) RemoveCancelled(c *gin.Context) { h.byID(c, h.orderService.RemoveCancelled) }

func (h *OrderHandler) Delete(c *gin.Context) { h.byID(c, h.orderService.DeleteOrder) }
