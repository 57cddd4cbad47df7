package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flicky/qbcart/internal/dto"
	"github.com/flicky/qbcart/internal/service"
)

type AdminHandler struct {
	svc *service.AdminService
}

func NewAdminHandler(svc *service.AdminService) *AdminHandler {
	return &AdminHandler{svc: svc}
}

func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.svc.ListUsers(c.Request.Context())
	if err != nil {
		serviceError(c, err)
		return
	}
	ok(c, http.StatusOK, users)
}

func (h *AdminHandler) UpdateUser(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	var req dto.AdminUpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	resp, err := h.svc.UpdateUser(c.Request.Context(), id, req)
	if err != nil {
		serviceError(c, err)
		return
	}
	ok(c, http.StatusOK, resp)
}

func (h *AdminHandler) DeleteUser(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	if err := h.svc.DeleteUser(c.Request.Context(), id); err != nil {
		serviceError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"id": id})
}

func (h *AdminHandler) ListActivity(c *gin.Context) {
	var req dto.ListActivityRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, err)
		return
	}

	resp, err := h.svc.ListActivity(c.Request.Context(), req)
	if err != nil {
		serviceError(c, err)
		return
	}
	ok(c, http.StatusOK, resp)
}

func (h *AdminHandler) DeleteActivity(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	if err := h.svc.DeleteActivity(c.Request.Context(), id); err != nil {
		serviceError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"id": id})
}

func (h *AdminHandler) ListSchedules(c *gin.Context) {
	resp, err := h.svc.ListSchedules(c.Request.Context())
	if err != nil {
		serviceError(c, err)
		return
	}
	ok(c, http.StatusOK, resp)
}

func (h *AdminHandler) UpdateSchedule(c *gin.Context) {
	var req dto.UpdateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	resp, err := h.svc.UpdateSchedule(c.Request.Context(), c.Param("name"), req)
	if err != nil {
		serviceError(c, err)
		return
	}
	ok(c, http.StatusOK, resp)
}
