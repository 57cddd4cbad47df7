package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flicky/qbcart/internal/dto"
	"github.com/flicky/qbcart/internal/middleware"
	"github.com/flicky/qbcart/internal/service"
)

type ProductHandler struct {
	productService *service.ProductService
}

func NewProductHandler(productService *service.ProductService) *ProductHandler {
	return &ProductHandler{productService: productService}
}

func (h *ProductHandler) Create(c *gin.Context) {
	var req dto.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	resp, err := h.productService.Create(c.Request.Context(), middleware.GetUserID(c), req)
	if err != nil {
		serviceError(c, err)
		return
	}
	ok(c, http.StatusCreated, resp)
}

func (h *ProductHandler) GetByID(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}

	resp, err := h.productService.GetByID(c.Request.Context(), id)
	if err != nil {
		serviceError(c, err)
		return
	}
	ok(c, http.StatusOK, resp)
}

func (h *ProductHandler) List(c *gin.Context) {
	var req dto.ListProductsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, err)
		return
	}

	resp, err := h.productService.List(c.Request.Context(), req)
	if err != nil {
		serviceError(c, err)
		return
	}
	ok(c, http.StatusOK, resp)
}

func (h *ProductHandler) Mine(c *gin.Context) {
	var req dto.ListProductsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, err)
		return
	}

	resp, err := h.productService.ListMine(c.Request.Context(), middleware.GetUserID(c), req)
	if err != nil {
		serviceError(c, err)
		return
	}
	ok(c, http.StatusOK, resp)
}

func (h *ProductHandler) Update(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}

	var req dto.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	resp, err := h.productService.Update(c.Request.Context(), middleware.GetUserID(c), id, req)
	if err != nil {
		serviceError(c, err)
		return
	}
	ok(c, http.StatusOK, resp)
}

func (h *ProductHandler) Delete(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}

	if err := h.productService.Delete(c.Request.Context(), middleware.GetUserID(c), id); err != nil {
		serviceError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"id": id})
}
