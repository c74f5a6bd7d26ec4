// Package checkout turns a user's cart into an order.
//
// CreateOrder runs as a saga over independent stores: every write that
// succeeds registers an undo, and the first failure undoes the completed
// writes in reverse order. Stock is decremented conditionally, so a
// concurrent checkout that took the last units is detected at write time
// and the order is rolled back with the cart left intact.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type CartStore interface {
	ListByUser(ctx context.Context, userID string) ([]domain.CartLine, error)
	// RemoveLines fails with a domain.ConflictError when any line is
	// already gone.
	RemoveLines(ctx context.Context, userID string, lineIDs []string) error
}

type StockStore interface {
	DecrementStock(ctx context.Context, productID string, quantity int) error
	RestoreStock(ctx context.Context, productID string, quantity int) error
}

type Ledger interface {
	CreateHeader(ctx context.Context, order *domain.Order) error
	CreateLines(ctx context.Context, orderID string, lines []domain.OrderLine) error
	Delete(ctx context.Context, orderID string) error
}

type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

const (
	outcomeCreated           = "created"
	outcomeEmptyCart         = "empty_cart"
	outcomeInsufficientStock = "insufficient_stock"
	outcomeConflict          = "conflict"
	outcomeFailed            = "failed"
)

type Engine struct {
	carts     CartStore
	stock     StockStore
	ledger    Ledger
	publisher Publisher
	logger    *slog.Logger
	tracer    trace.Tracer

	orders        metric.Int64Counter
	compensations metric.Int64Counter
	duration      metric.Float64Histogram
}

// NewEngine wires the checkout engine. publisher may be nil, in which case
// no order.created event is emitted.
func NewEngine(carts CartStore, stock StockStore, ledger Ledger, publisher Publisher, logger *slog.Logger) (*Engine, error) {
	meter := otel.Meter("storefront/checkout")

	orders, err := meter.Int64Counter("storefront.checkout.orders",
		metric.WithDescription("Checkout attempts by outcome"))
	if err != nil {
		return nil, fmt.Errorf("create orders counter: %w", err)
	}

	compensations, err := meter.Int64Counter("storefront.checkout.compensations",
		metric.WithDescription("Undo actions run after a failed checkout step"))
	if err != nil {
		return nil, fmt.Errorf("create compensations counter: %w", err)
	}

	duration, err := meter.Float64Histogram("storefront.checkout.duration",
		metric.WithDescription("Checkout duration"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("create duration histogram: %w", err)
	}

	return &Engine{
		carts:         carts,
		stock:         stock,
		ledger:        ledger,
		publisher:     publisher,
		logger:        logger,
		tracer:        otel.Tracer("storefront/checkout"),
		orders:        orders,
		compensations: compensations,
		duration:      duration,
	}, nil
}

// CreateOrder converts the buyer's cart into a pending order. On success
// the cart is empty and every ordered product's stock is reduced by the
// ordered quantity; on failure none of that has happened. The returned
// order carries the header only.
func (e *Engine) CreateOrder(ctx context.Context, buyer domain.Identity) (*domain.Order, error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "checkout.create_order",
		trace.WithAttributes(attribute.String("user.id", buyer.UserID)))
	defer span.End()

	order, err := e.createOrder(ctx, buyer)

	outcome := outcomeCreated
	switch {
	case err == nil:
		span.SetAttributes(attribute.String("order.id", order.ID))
	case errors.Is(err, domain.ErrEmptyCart):
		outcome = outcomeEmptyCart
	case errors.Is(err, domain.ErrInsufficientStock):
		outcome = outcomeInsufficientStock
	case errors.Is(err, domain.ErrConflict):
		outcome = outcomeConflict
	default:
		outcome = outcomeFailed
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	e.orders.Add(ctx, 1, attrs)
	e.duration.Record(ctx, time.Since(start).Seconds(), attrs)

	return order, err
}

func (e *Engine) createOrder(ctx context.Context, buyer domain.Identity) (*domain.Order, error) {
	cart, err := e.carts.ListByUser(ctx, buyer.UserID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if len(cart) == 0 {
		return nil, domain.ErrEmptyCart
	}

	if err := checkStock(cart); err != nil {
		return nil, err
	}

	items := domain.LinesFromCart("", cart)
	order := &domain.Order{
		UserID:      buyer.UserID,
		TotalAmount: domain.OrderTotal(items),
		Status:      domain.OrderStatusPending,
	}

	s := &saga{tracer: e.tracer, logger: e.logger}

	err = s.run(ctx, step{
		name: "create_header",
		do:   func(ctx context.Context) error { return e.ledger.CreateHeader(ctx, order) },
		undo: func(ctx context.Context) error { return e.ledger.Delete(ctx, order.ID) },
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrOrderCreationFailed, err)
	}

	// Lines need no undo of their own: deleting the header removes them.
	err = s.run(ctx, step{
		name: "create_lines",
		do:   func(ctx context.Context) error { return e.ledger.CreateLines(ctx, order.ID, items) },
	})
	if err != nil {
		e.abort(ctx, s, order, err)
		return nil, fmt.Errorf("%w: %w", domain.ErrOrderCreationFailed, err)
	}

	for _, item := range items {
		err = s.run(ctx, step{
			name: "decrement_stock",
			do: func(ctx context.Context) error {
				return e.stock.DecrementStock(ctx, item.ProductID, item.Quantity)
			},
			undo: func(ctx context.Context) error {
				return e.stock.RestoreStock(ctx, item.ProductID, item.Quantity)
			},
		})
		if err != nil {
			e.abort(ctx, s, order, err)
			if errors.Is(err, domain.ErrInsufficientStock) {
				return nil, err
			}
			return nil, fmt.Errorf("decrement stock for product %s: %w", item.ProductID, err)
		}
	}

	// Only the lines read above are removed. A concurrent checkout of the
	// same cart removes them first, and this one is rolled back.
	lineIDs := make([]string, len(cart))
	for i, line := range cart {
		lineIDs[i] = line.ID
	}
	err = s.run(ctx, step{
		name: "clear_cart",
		do:   func(ctx context.Context) error { return e.carts.RemoveLines(ctx, buyer.UserID, lineIDs) },
	})
	if err != nil {
		e.abort(ctx, s, order, err)
		return nil, fmt.Errorf("clear cart: %w", err)
	}

	e.logger.Info("order created", "order_id", order.ID, "user_id", order.UserID, "total_amount", order.TotalAmount, "lines", len(items))
	e.publish(ctx, buyer, order, items)

	return order, nil
}

// checkStock fails on the first line that asks for more than the product
// had on hand when the cart was read.
func checkStock(cart []domain.CartLine) error {
	for _, line := range cart {
		if line.Product == nil || line.Quantity > line.Product.Stock {
			return &domain.StockError{ProductID: line.ProductID}
		}
	}
	return nil
}

func (e *Engine) abort(ctx context.Context, s *saga, order *domain.Order, cause error) {
	ran, failed := s.compensate(ctx)
	e.compensations.Add(ctx, int64(ran))

	level := slog.LevelWarn
	if failed > 0 {
		level = slog.LevelError
	}
	e.logger.Log(ctx, level, "checkout rolled back",
		"order_id", order.ID, "user_id", order.UserID, "cause", cause,
		"compensations", ran, "compensations_failed", failed)
}

func (e *Engine) publish(ctx context.Context, buyer domain.Identity, order *domain.Order, items []domain.OrderLine) {
	if e.publisher == nil {
		return
	}

	event := domain.OrderCreatedEvent{
		OrderID:     order.ID,
		UserID:      order.UserID,
		Email:       buyer.Email,
		Items:       items,
		TotalAmount: order.TotalAmount,
		Timestamp:   order.CreatedAt,
	}
	if err := e.publisher.Publish(ctx, order.ID, event); err != nil {
		e.logger.Error("failed to publish order created event", "error", err, "order_id", order.ID)
	}
}
