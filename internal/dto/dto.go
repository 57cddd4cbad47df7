package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/flicky/qbcart/internal/model"
)

// --- Auth ---

type RegisterRequest struct {
	Username string     `json:"username" binding:"required,min=3,max=150,alphanum"`
	Email    string     `json:"email" binding:"omitempty,email"`
	Password string     `json:"password" binding:"required,min=8"`
	Role     model.Role `json:"role" binding:"omitempty,oneof=BY SL"`
	Address  string     `json:"address" binding:"max=500"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type UserResponse struct {
	ID       uuid.UUID  `json:"id"`
	Username string     `json:"username"`
	Email    string     `json:"email"`
	Role     model.Role `json:"role"`
	Address  string     `json:"address"`
	IsAdmin  bool       `json:"is_admin"`
}

type UpdateAddressRequest struct {
	Address string `json:"address" binding:"required,max=500"`
}

type AdminUpdateUserRequest struct {
	Email   *string     `json:"email" binding:"omitempty,email"`
	Role    *model.Role `json:"role" binding:"omitempty,oneof=BY SL"`
	Address *string     `json:"address" binding:"omitempty,max=500"`
	IsAdmin *bool       `json:"is_admin"`
}

// --- Product ---

type CreateProductRequest struct {
	Name        string          `json:"name" binding:"required,max=255"`
	Description string          `json:"description" binding:"max=5000"`
	Cost        decimal.Decimal `json:"cost"`
	Stock       int             `json:"stock" binding:"min=0"`
	Category    model.Category  `json:"category" binding:"required,min=1,max=5"`
}

type UpdateProductRequest struct {
	Name        *string          `json:"name" binding:"omitempty,min=1,max=255"`
	Description *string          `json:"description" binding:"omitempty,max=5000"`
	Cost        *decimal.Decimal `json:"cost"`
	Stock       *int             `json:"stock" binding:"omitempty,min=0"`
	Category    *model.Category  `json:"category" binding:"omitempty,min=1,max=5"`
}

type ListProductsRequest struct {
	Page     int    `form:"page,default=1" binding:"min=1"`
	Limit    int    `form:"limit,default=20" binding:"min=1,max=100"`
	Search   string `form:"search"`
	Sort     string `form:"sort,default=created_at" binding:"oneof=name cost created_at"`
	Order    string `form:"order,default=desc" binding:"oneof=asc desc"`
	Category int    `form:"category" binding:"min=0,max=5"`
}

type ProductResponse struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Cost        decimal.Decimal `json:"cost"`
	Stock       int             `json:"stock"`
	Category    string          `json:"category"`
	OwnerID     uuid.UUID       `json:"owner_id"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type ProductListResponse struct {
	Products []ProductResponse `json:"products"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	Limit    int               `json:"limit"`
}

// --- Cart ---

type AddToCartRequest struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	Quantity  int       `json:"quantity" binding:"omitempty,min=1,max=1000"`
	Key       *int      `json:"key" binding:"omitempty,min=1,max=101"`
}

type UpdateCartLineRequest struct {
	Quantity int `json:"quantity" binding:"required,min=1,max=1000"`
	Version  int `json:"version" binding:"min=0"`
}

type ToggleCartLineRequest struct {
	Wishlist *bool `json:"wishlist" binding:"required"`
}

type CartLineResponse struct {
	ID          uuid.UUID        `json:"id"`
	ProductID   uuid.UUID        `json:"product_id"`
	ProductName string           `json:"product_name"`
	Cost        decimal.Decimal  `json:"cost"`
	Quantity    int              `json:"quantity"`
	Subtotal    decimal.Decimal  `json:"subtotal"`
	Status      model.CartStatus `json:"status"`
	Key         int              `json:"key"`
	Version     int              `json:"version"`
}

type CartResponse struct {
	Items    []CartLineResponse `json:"items"`
	Wishlist []CartLineResponse `json:"wishlist"`
	Total    decimal.Decimal    `json:"total"`
}

// --- Order ---

type OrderResponse struct {
	ID          uuid.UUID         `json:"id"`
	ProductID   uuid.UUID         `json:"product_id"`
	ProductName string            `json:"product_name"`
	Status      model.OrderStatus `json:"status"`
	Quantity    int               `json:"quantity"`
	Price       decimal.Decimal   `json:"price"`
	OrderDate   time.Time         `json:"order_date"`
	PlacedAt    *time.Time        `json:"placed_at,omitempty"`
}

type OrderListResponse struct {
	Orders []OrderResponse `json:"orders"`
	Total  int             `json:"total"`
}

// OutcomeResponse answers every cart and order transition.
type OutcomeResponse struct {
	Outcome  string            `json:"outcome"`
	Line     *CartLineResponse `json:"line,omitempty"`
	Orders   []OrderResponse   `json:"orders,omitempty"`
	OrderIDs []uuid.UUID       `json:"order_ids,omitempty"`
}

// --- Admin ---

type ListActivityRequest struct {
	Page  int `form:"page,default=1" binding:"min=1"`
	Limit int `form:"limit,default=50" binding:"min=1,max=500"`
}

type ActivityResponse struct {
	ID       uuid.UUID    `json:"id"`
	Username string       `json:"username"`
	Email    string       `json:"email"`
	Action   model.Action `json:"action"`
	Label    string       `json:"label"`
	Product  string       `json:"product"`
	Comments string       `json:"comments"`
	DateTime string       `json:"date_time"`
}

type ActivityListResponse struct {
	Entries []ActivityResponse `json:"entries"`
	Total   int                `json:"total"`
	Page    int                `json:"page"`
	Limit   int                `json:"limit"`
}

type UpdateScheduleRequest struct {
	Minute      string `json:"minute" binding:"required,max=64"`
	Hour        string `json:"hour" binding:"required,max=64"`
	DayOfWeek   string `json:"day_of_week" binding:"required,max=64"`
	DayOfMonth  string `json:"day_of_month" binding:"required,max=64"`
	MonthOfYear string `json:"month_of_year" binding:"required,max=64"`
	Enabled     *bool  `json:"enabled"`
}

type ScheduleResponse struct {
	Name        string    `json:"name"`
	Task        string    `json:"task"`
	Minute      string    `json:"minute"`
	Hour        string    `json:"hour"`
	DayOfWeek   string    `json:"day_of_week"`
	DayOfMonth  string    `json:"day_of_month"`
	MonthOfYear string    `json:"month_of_year"`
	Enabled     bool      `json:"enabled"`
	Spec        string    `json:"spec"`
	UpdatedAt   time.Time `json:"updated_at"`
}
