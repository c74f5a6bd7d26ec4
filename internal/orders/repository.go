package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/joao-fontenele/storefront/internal/domain"
)

const orderColumns = `id, user_id, total_amount, status, created_at, updated_at`

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	o := &domain.Order{}
	if err := row.Scan(&o.ID, &o.UserID, &o.TotalAmount, &o.Status, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	return o, nil
}

// CreateHeader inserts the order row and assigns its id and timestamps.
func (r *OrderRepository) CreateHeader(ctx context.Context, order *domain.Order) error {
	order.ID = uuid.New().String()
	now := time.Now().UTC()
	order.CreatedAt, order.UpdatedAt = now, now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, total_amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
	`, order.ID, order.UserID, order.TotalAmount, order.Status, now)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// CreateLines inserts every line of an order or none of them.
func (r *OrderRepository) CreateLines(ctx context.Context, orderID string, lines []domain.OrderLine) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i := range lines {
		lines[i].ID = uuid.New().String()
		lines[i].OrderID = orderID
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, position, product_id, quantity, price_at_purchase)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, lines[i].ID, orderID, i, lines[i].ProductID, lines[i].Quantity, lines[i].PriceAtPurchase)
		if err != nil {
			return fmt.Errorf("insert order_item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Delete removes an order header; its lines go with it.
func (r *OrderRepository) Delete(ctx context.Context, orderID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, orderID); err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	return nil
}

// GetByID loads an order with its lines and product summaries. Orders
// outside scope are reported as not found.
func (r *OrderRepository) GetByID(ctx context.Context, id string, scope domain.Scope) (*domain.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1 AND ($2 OR user_id = $3)
	`, id, scope.All(), scope.UserID()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound("Order")
		}
		return nil, fmt.Errorf("select order: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT oi.id, oi.order_id, oi.product_id, oi.quantity, oi.price_at_purchase,
			p.id, p.name, p.description, p.image_url
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = $1
		ORDER BY oi.position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("select order_items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	order.Items = []domain.OrderLine{}
	for rows.Next() {
		line := domain.OrderLine{Product: &domain.ProductSummary{}}
		p := line.Product
		if err := rows.Scan(&line.ID, &line.OrderID, &line.ProductID, &line.Quantity, &line.PriceAtPurchase,
			&p.ID, &p.Name, &p.Description, &p.ImageURL); err != nil {
			return nil, fmt.Errorf("scan order_item: %w", err)
		}
		order.Items = append(order.Items, line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	return order, nil
}

// List returns the orders visible in scope, newest first, each with its lines.
func (r *OrderRepository) List(ctx context.Context, scope domain.Scope) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE $1 OR user_id = $2
		ORDER BY created_at DESC
	`, scope.All(), scope.UserID())
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[string]*domain.Order)
	var orderIDs []string

	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		order.Items = []domain.OrderLine{}
		orderMap[order.ID] = order
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	itemRows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, quantity, price_at_purchase
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, position
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, fmt.Errorf("select order_items: %w", err)
	}
	defer func() { _ = itemRows.Close() }()

	for itemRows.Next() {
		var line domain.OrderLine
		if err := itemRows.Scan(&line.ID, &line.OrderID, &line.ProductID, &line.Quantity, &line.PriceAtPurchase); err != nil {
			return nil, fmt.Errorf("scan order_item: %w", err)
		}
		if order, ok := orderMap[line.OrderID]; ok {
			order.Items = append(order.Items, line)
		}
	}

	if err := itemRows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	orders := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		orders = append(orders, *orderMap[id])
	}

	return orders, nil
}

// UpdateStatus moves the order from one status to another and refreshes
// updated_at. If the order no longer has status from, another update got
// there first and nothing is written.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus) (*domain.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
		RETURNING `+orderColumns,
		to, id, from))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.Conflict("Order status was changed by another request")
		}
		return nil, fmt.Errorf("update order status: %w", err)
	}
	return order, nil
}
