package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleBuyer  Role = "BY"
	RoleSeller Role = "SL"
)

func (r Role) Valid() bool { return r == RoleBuyer || r == RoleSeller }

type User struct {
	ID        uuid.UUID
	Username  string
	Email     string
	Password  string
	Role      Role
	Address   string
	IsAdmin   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CanSell reports whether the user may own catalog products.
func (u *User) CanSell() bool { return u.Role == RoleSeller || u.IsAdmin }

type Category int

const (
	CategoryElectronics Category = iota + 1
	CategoryFashion
	CategoryHome
	CategoryToys
	CategoryBooks
)

var categoryNames = map[Category]string{
	CategoryElectronics: "Electronics",
	CategoryFashion:     "Fashion",
	CategoryHome:        "Home",
	CategoryToys:        "Toys",
	CategoryBooks:       "Books",
}

func (c Category) Valid() bool {
	_, ok := categoryNames[c]
	return ok
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "Unknown"
}

type Product struct {
	ID          uuid.UUID
	Name        string
	Description string
	Cost        decimal.Decimal
	Stock       int
	Category    Category
	OwnerID     uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type CartStatus string

const (
	CartInCart  CartStatus = "IC"
	CartInOrder CartStatus = "IO"
)

type CartLine struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	ProductID  uuid.UUID
	Quantity   int
	Status     CartStatus
	ProductKey int
	Version    int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type OrderStatus string

const (
	OrderStatusNotPlaced OrderStatus = "NP"
	OrderStatusPlaced    OrderStatus = "PL"
	OrderStatusCancelled OrderStatus = "CN"
)

type Order struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	ProductID uuid.UUID
	OrderDate time.Time
	PlacedAt  *time.Time
	Status    OrderStatus
	Quantity  int
	Price     decimal.Decimal
}

// PriceFor returns quantity × cost.
func PriceFor(cost decimal.Decimal, quantity int) decimal.Decimal {
	return cost.Mul(decimal.NewFromInt(int64(quantity)))
}

// Schedule is a stored crontab entry for a periodic task.
type Schedule struct {
	ID          uuid.UUID
	Name        string
	Task        string
	Minute      string
	Hour        string
	DayOfWeek   string
	DayOfMonth  string
	MonthOfYear string
	Enabled     bool
	UpdatedAt   time.Time
}

// CronSpec renders the schedule in standard five-field crontab order.
func (s *Schedule) CronSpec() string {
	return s.Minute + " " + s.Hour + " " + s.DayOfMonth + " " + s.MonthOfYear + " " + s.DayOfWeek
}
