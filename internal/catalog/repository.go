package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/domain"
)

const productColumns = `id, name, description, price, stock, category_id, image_url, created_at, updated_at`

// Postgres error codes the repository translates.
const (
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
	codeOutOfRange          = "22003"
)

type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	p := &domain.Product{}
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.CategoryID, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *ProductRepository) Get(ctx context.Context, id string) (*domain.Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound("Product")
		}
		return nil, fmt.Errorf("select product: %w", err)
	}
	return p, nil
}

// List returns one page of products, newest first, and the number of
// products matching the filter across all pages.
func (r *ProductRepository) List(ctx context.Context, f domain.ProductFilter) ([]domain.Product, int, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.Search != "" {
		add("name ILIKE $%d", "%"+f.Search+"%")
	}
	if f.CategoryID != "" {
		add("category_id = $%d", f.CategoryID)
	}
	if f.MinPrice != nil {
		add("price >= $%d", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		add("price <= $%d", *f.MaxPrice)
	}

	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}

	args = append(args, f.Limit, f.Offset())
	query := fmt.Sprintf(`
		SELECT %s, COUNT(*) OVER()
		FROM products
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, productColumns, where, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("select products: %w", err)
	}
	defer func() { _ = rows.Close() }()

	products := []domain.Product{}
	total := 0
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.CategoryID, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt, &total); err != nil {
			return nil, 0, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows: %w", err)
	}

	return products, total, nil
}

func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) error {
	p.ID = uuid.NewString()
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (id, name, description, price, stock, category_id, image_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	`, p.ID, p.Name, p.Description, p.Price, p.Stock, p.CategoryID, p.ImageURL, now)
	if err != nil {
		return translate(err, "insert product")
	}
	return nil
}

// ProductUpdate carries the fields an admin edit may change. Nil fields keep
// their stored value.
type ProductUpdate struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Stock       *int
}

func (r *ProductRepository) Update(ctx context.Context, id string, u ProductUpdate) (*domain.Product, error) {
	var price any
	if u.Price != nil {
		price = *u.Price
	}

	p, err := scanProduct(r.db.QueryRowContext(ctx, `
		UPDATE products
		SET name = COALESCE($2, name),
			description = COALESCE($3, description),
			price = COALESCE($4, price),
			stock = COALESCE($5, stock),
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+productColumns,
		id, u.Name, u.Description, price, u.Stock))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound("Product")
		}
		return nil, translate(err, "update product")
	}
	return p, nil
}

// DecrementStock removes quantity units from a product only if that many are
// on hand. Nothing is changed otherwise and a *domain.StockError is returned.
func (r *ProductRepository) DecrementStock(ctx context.Context, productID string, quantity int) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - $2, updated_at = NOW()
		WHERE id = $1 AND stock >= $2
	`, productID, quantity)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return &domain.StockError{ProductID: productID}
	}

	return nil
}

// RestoreStock puts quantity units back, undoing DecrementStock.
func (r *ProductRepository) RestoreStock(ctx context.Context, productID string, quantity int) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET stock = stock + $2, updated_at = NOW()
		WHERE id = $1
	`, productID, quantity)
	if err != nil {
		return fmt.Errorf("restore stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return domain.NotFound("Product")
	}

	return nil
}

func translate(err error, op string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeForeignKeyViolation:
			return domain.Invalid("Category not found")
		case codeCheckViolation:
			return domain.Invalid("Price and stock must not be negative")
		case codeOutOfRange:
			return domain.Invalid("Price or stock is out of range")
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
