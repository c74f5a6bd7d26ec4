package cart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/joao-fontenele/storefront/internal/domain"
)

const selectLinesWithProduct = `
	SELECT ci.id, ci.user_id, ci.product_id, ci.quantity, ci.price_at_addition, ci.created_at, ci.updated_at,
		p.id, p.name, p.description, p.price, p.stock, p.category_id, p.image_url, p.created_at, p.updated_at
	FROM cart_items ci
	JOIN products p ON p.id = ci.product_id
`

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLineWithProduct(row rowScanner) (*domain.CartLine, error) {
	line := &domain.CartLine{Product: &domain.Product{}}
	p := line.Product
	err := row.Scan(
		&line.ID, &line.UserID, &line.ProductID, &line.Quantity, &line.PriceAtAddition, &line.CreatedAt, &line.UpdatedAt,
		&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.CategoryID, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return line, nil
}

// ListByUser returns the user's cart lines joined with each product's
// current row, oldest line first.
func (r *Repository) ListByUser(ctx context.Context, userID string) ([]domain.CartLine, error) {
	rows, err := r.db.QueryContext(ctx, selectLinesWithProduct+`
		WHERE ci.user_id = $1
		ORDER BY ci.created_at, ci.id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("select cart items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	lines := []domain.CartLine{}
	for rows.Next() {
		line, err := scanLineWithProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		lines = append(lines, *line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	return lines, nil
}

// FindByProduct returns the user's line for productID, or nil if the
// product is not in the cart.
func (r *Repository) FindByProduct(ctx context.Context, userID, productID string) (*domain.CartLine, error) {
	line := &domain.CartLine{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, product_id, quantity, price_at_addition, created_at, updated_at
		FROM cart_items
		WHERE user_id = $1 AND product_id = $2
	`, userID, productID).Scan(&line.ID, &line.UserID, &line.ProductID, &line.Quantity, &line.PriceAtAddition, &line.CreatedAt, &line.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select cart item: %w", err)
	}
	return line, nil
}

// GetForUser loads a line with its product, visible only to its owner.
func (r *Repository) GetForUser(ctx context.Context, id, userID string) (*domain.CartLine, error) {
	line, err := scanLineWithProduct(r.db.QueryRowContext(ctx, selectLinesWithProduct+`
		WHERE ci.id = $1 AND ci.user_id = $2
	`, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound("Cart item")
		}
		return nil, fmt.Errorf("select cart item: %w", err)
	}
	return line, nil
}

// Upsert inserts line, or adds its quantity to the existing line for the
// same user and product. The price snapshot of an existing line is kept.
// It reports whether a new row was created and refreshes line from the
// stored row.
func (r *Repository) Upsert(ctx context.Context, line *domain.CartLine) (bool, error) {
	var created bool
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO cart_items (id, user_id, product_id, quantity, price_at_addition, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (user_id, product_id) DO UPDATE
		SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = NOW()
		RETURNING id, quantity, price_at_addition, created_at, updated_at, (xmax = 0)
	`, uuid.NewString(), line.UserID, line.ProductID, line.Quantity, line.PriceAtAddition).
		Scan(&line.ID, &line.Quantity, &line.PriceAtAddition, &line.CreatedAt, &line.UpdatedAt, &created)
	if err != nil {
		return false, fmt.Errorf("upsert cart item: %w", err)
	}
	return created, nil
}

func (r *Repository) UpdateQuantity(ctx context.Context, id, userID string, quantity int) (*domain.CartLine, error) {
	line := &domain.CartLine{}
	err := r.db.QueryRowContext(ctx, `
		UPDATE cart_items
		SET quantity = $3, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING id, user_id, product_id, quantity, price_at_addition, created_at, updated_at
	`, id, userID, quantity).Scan(&line.ID, &line.UserID, &line.ProductID, &line.Quantity, &line.PriceAtAddition, &line.CreatedAt, &line.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound("Cart item")
		}
		return nil, fmt.Errorf("update cart item: %w", err)
	}
	return line, nil
}

func (r *Repository) Delete(ctx context.Context, id, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE id = $1 AND user_id = $2`, id, userID); err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}
	return nil
}

func (r *Repository) Clear(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

// RemoveLines deletes exactly the given lines of userID's cart. If any of
// them is already gone, another checkout consumed the cart first and the
// delete is rolled back with a conflict.
func (r *Repository) RemoveLines(ctx context.Context, userID string, lineIDs []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM cart_items WHERE user_id = $1 AND id = ANY($2)`,
		userID, pq.Array(lineIDs))
	if err != nil {
		return fmt.Errorf("delete cart items: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n != int64(len(lineIDs)) {
		return domain.Conflict("Cart changed during checkout")
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
