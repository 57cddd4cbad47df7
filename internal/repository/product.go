package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/flicky/qbcart/internal/model"
)

// ProductFilter narrows List. Zero values mean "no constraint".
type ProductFilter struct {
	Limit    int
	Offset   int
	Search   string
	Sort     string
	Order    string
	Category model.Category
	OwnerID  uuid.UUID
}

type ProductRepository interface {
	Create(ctx context.Context, product *model.Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	List(ctx context.Context, f ProductFilter) ([]model.Product, int, error)
	Update(ctx context.Context, product *model.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type pgProductRepo struct{ db DBTX }

func NewProductRepository(db DBTX) ProductRepository {
	return &pgProductRepo{db: db}
}

const productColumns = `id, name, description, cost, stock, category, owner_id, created_at, updated_at`

func scanProduct(row scanner, p *model.Product) error {
	return row.Scan(&p.ID, &p.Name, &p.Description, &p.Cost, &p.Stock, &p.Category, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt)
}

func (r *pgProductRepo) Create(ctx context.Context, product *model.Product) error {
	product.ID = uuid.New()
	query := `INSERT INTO products (id, name, description, cost, stock, category, owner_id, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW()) RETURNING created_at, updated_at`
	err := r.db.QueryRow(ctx, query,
		product.ID, product.Name, product.Description, product.Cost, product.Stock, product.Category, product.OwnerID,
	).Scan(&product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

func (r *pgProductRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	p := &model.Product{}
	err := scanProduct(r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id), p)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func (r *pgProductRepo) List(ctx context.Context, f ProductFilter) ([]model.Product, int, error) {
	allowedSorts := map[string]bool{"name": true, "cost": true, "created_at": true}
	if !allowedSorts[f.Sort] {
		f.Sort = "created_at"
	}
	if f.Order != "asc" && f.Order != "desc" {
		f.Order = "desc"
	}
	if f.Limit <= 0 {
		f.Limit = 20
	}

	where := `WHERE ($1 = '' OR name ILIKE '%' || $1 || '%' OR description ILIKE '%' || $1 || '%')
		AND ($2 = 0 OR category = $2)
		AND ($3 = '00000000-0000-0000-0000-000000000000'::uuid OR owner_id = $3)`

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM products `+where, f.Search, f.Category, f.OwnerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM products %s ORDER BY %s %s LIMIT $4 OFFSET $5`,
		productColumns, where, f.Sort, f.Order)

	rows, err := r.db.Query(ctx, query, f.Search, f.Category, f.OwnerID, f.Limit, f.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		var p model.Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, 0, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

func (r *pgProductRepo) Update(ctx context.Context, product *model.Product) error {
	query := `UPDATE products SET name=$2, description=$3, cost=$4, stock=$5, category=$6, updated_at=NOW()
			  WHERE id=$1 RETURNING updated_at`
	err := r.db.QueryRow(ctx, query,
		product.ID, product.Name, product.Description, product.Cost, product.Stock, product.Category,
	).Scan(&product.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("update product: %w", err)
	}
	return nil
}

func (r *pgProductRepo) Delete(ctx context.Context, id uuid.UUID) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	return affected(ct, err, "delete product")
}
