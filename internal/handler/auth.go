package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flicky/qbcart/internal/dto"
	"github.com/flicky/qbcart/internal/middleware"
	"github.com/flicky/qbcart/internal/service"
)

type AuthHandler struct {
	authService *service.AuthService
}

func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	resp, err := h.authService.Register(c.Request.Context(), req)
	if err != nil {
		serviceError(c, err)
		return
	}
	ok(c, http.StatusCreated, resp)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	resp, err := h.authService.Login(c.Request.Context(), req)
	if err != nil {
		serviceError(c, err)
		return
	}
	ok(c, http.StatusOK, resp)
}

func (h *AuthHandler) UpdateAddress(c *gin.Context) {
	var req dto.UpdateAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	resp, err := h.authService.UpdateAddress(c.Request.Context(), middleware.GetUserID(c), req.Address)
	if err != nil {
		serviceError(c, err)
		return
	}
	ok(c, http.StatusOK, resp)
}
