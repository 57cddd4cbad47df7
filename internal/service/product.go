package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/flicky/qbcart/internal/dto"
	"github.com/flicky/qbcart/internal/model"
	"github.com/flicky/qbcart/internal/repository"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidCost     = errors.New("cost must not be negative")
)

const productCacheTTL = 60 * time.Second

type ProductService struct {
	store       repository.Store
	redisClient *redis.Client
	recorder    Recorder
}

func NewProductService(store repository.Store, redisClient *redis.Client, recorder Recorder) *ProductService {
	return &ProductService{store: store, redisClient: redisClient, recorder: recorder}
}

func (s *ProductService) actor(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, ErrForbidden
	}
	return user, nil
}

// Create adds a product owned by the calling seller.
func (s *ProductService) Create(ctx context.Context, userID uuid.UUID, req dto.CreateProductRequest) (*dto.ProductResponse, error) {
	user, err := s.actor(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.CanSell() {
		return nil, ErrForbidden
	}
	if req.Cost.IsNegative() {
		return nil, ErrInvalidCost
	}

	product := &model.Product{
		Name:        req.Name,
		Description: req.Description,
		Cost:        req.Cost,
		Stock:       req.Stock,
		Category:    req.Category,
		OwnerID:     user.ID,
	}
	if err := s.store.Products().Create(ctx, product); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	entry := transitionAudit[createdProduct]
	s.recorder.Record(ctx, user, entry.action, product.Name, entry.comment+product.Cost.String())
	resp := ToProductResponse(product)
	return &resp, nil
}

func (s *ProductService) GetByID(ctx context.Context, id uuid.UUID) (*dto.ProductResponse, error) {
	cacheKey := "product:" + id.String()

	if s.redisClient != nil {
		if cached, err := s.redisClient.Get(ctx, cacheKey).Result(); err == nil {
			var resp dto.ProductResponse
			if json.Unmarshal([]byte(cached), &resp) == nil {
				return &resp, nil
			}
		}
	}

	product, err := s.store.Products().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	resp := ToProductResponse(product)

	if s.redisClient != nil {
		if data, err := json.Marshal(resp); err == nil {
			s.redisClient.Set(ctx, cacheKey, data, productCacheTTL)
		}
	}

	return &resp, nil
}

func (s *ProductService) List(ctx context.Context, req dto.ListProductsRequest) (*dto.ProductListResponse, error) {
	return s.list(ctx, req, uuid.Nil)
}

// ListMine lists the products owned by userID.
func (s *ProductService) ListMine(ctx context.Context, userID uuid.UUID, req dto.ListProductsRequest) (*dto.ProductListResponse, error) {
	return s.list(ctx, req, userID)
}

func (s *ProductService) list(ctx context.Context, req dto.ListProductsRequest, ownerID uuid.UUID) (*dto.ProductListResponse, error) {
	products, total, err := s.store.Products().List(ctx, repository.ProductFilter{
		Limit:    req.Limit,
		Offset:   (req.Page - 1) * req.Limit,
		Search:   req.Search,
		Sort:     req.Sort,
		Order:    req.Order,
		Category: model.Category(req.Category),
		OwnerID:  ownerID,
	})
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	items := make([]dto.ProductResponse, 0, len(products))
	for _, p := range products {
		items = append(items, ToProductResponse(&p))
	}

	return &dto.ProductListResponse{Products: items, Total: total, Page: req.Page, Limit: req.Limit}, nil
}

func (s *ProductService) editable(ctx context.Context, userID, id uuid.UUID) (*model.User, *model.Product, error) {
	user, err := s.actor(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	product, err := s.store.Products().GetByID(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, nil, ErrProductNotFound
	}
	if product.OwnerID != user.ID && !user.IsAdmin {
		return nil, nil, ErrForbidden
	}
	return user, product, nil
}

func (s *ProductService) Update(ctx context.Context, userID, id uuid.UUID, req dto.UpdateProductRequest) (*dto.ProductResponse, error) {
	user, product, err := s.editable(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		product.Name = *req.Name
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.Cost != nil {
		if req.Cost.IsNegative() {
			return nil, ErrInvalidCost
		}
		product.Cost = *req.Cost
	}
	if req.Stock != nil {
		product.Stock = *req.Stock
	}
	if req.Category != nil {
		product.Category = *req.Category
	}

	if err := s.store.Products().Update(ctx, product); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("update product: %w", err)
	}

	s.invalidateCache(ctx, id)
	entry := transitionAudit[updatedProduct]
	s.recorder.Record(ctx, user, entry.action, product.Name, entry.comment)
	resp := ToProductResponse(product)
	return &resp, nil
}

func (s *ProductService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	user, product, err := s.editable(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.store.Products().Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrProductNotFound
		}
		return fmt.Errorf("delete product: %w", err)
	}
	s.invalidateCache(ctx, id)
	entry := transitionAudit[deletedProduct]
	s.recorder.Record(ctx, user, entry.action, product.Name, entry.comment)
	return nil
}

func (s *ProductService) invalidateCache(ctx context.Context, id uuid.UUID) {
	if s.redisClient != nil {
		s.redisClient.Del(ctx, "product:"+id.String())
	}
}

func ToProductResponse(p *model.Product) dto.ProductResponse {
	return dto.ProductResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Cost:        p.Cost,
		Stock:       p.Stock,
		Category:    p.Category.String(),
		OwnerID:     p.OwnerID,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}
