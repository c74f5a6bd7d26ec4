package cart

import (
	"context"
	"log/slog"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type ProductReader interface {
	Get(ctx context.Context, id string) (*domain.Product, error)
}

type Store interface {
	ListByUser(ctx context.Context, userID string) ([]domain.CartLine, error)
	FindByProduct(ctx context.Context, userID, productID string) (*domain.CartLine, error)
	GetForUser(ctx context.Context, id, userID string) (*domain.CartLine, error)
	Upsert(ctx context.Context, line *domain.CartLine) (bool, error)
	UpdateQuantity(ctx context.Context, id, userID string, quantity int) (*domain.CartLine, error)
	Delete(ctx context.Context, id, userID string) error
	Clear(ctx context.Context, userID string) error
}

// Service applies the cart rules: positive quantities, one line per
// product, and an advisory stock check against the product read in the
// same call. Stock is not reserved.
type Service struct {
	store    Store
	products ProductReader
	logger   *slog.Logger
}

func NewService(store Store, products ProductReader, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		products: products,
		logger:   logger,
	}
}

func validQuantity(quantity int) error {
	if quantity < 1 {
		return domain.Invalid("Quantity must be at least 1")
	}
	return nil
}

// Add puts quantity units of a product in the user's cart. A new line
// snapshots the current product price; an existing line only grows. The
// boolean result is true when a new line was created.
func (s *Service) Add(ctx context.Context, userID, productID string, quantity int) (*domain.CartLine, bool, error) {
	if err := validQuantity(quantity); err != nil {
		return nil, false, err
	}

	product, err := s.products.Get(ctx, productID)
	if err != nil {
		return nil, false, err
	}

	if quantity > product.Stock {
		return nil, false, &domain.StockError{}
	}

	existing, err := s.store.FindByProduct(ctx, userID, productID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil && existing.Quantity+quantity > product.Stock {
		return nil, false, &domain.StockError{}
	}

	line := &domain.CartLine{
		UserID:          userID,
		ProductID:       productID,
		Quantity:        quantity,
		PriceAtAddition: product.Price,
	}
	created, err := s.store.Upsert(ctx, line)
	if err != nil {
		return nil, false, err
	}

	s.logger.Info("cart item saved", "user_id", userID, "product_id", productID, "quantity", line.Quantity, "created", created)
	return line, created, nil
}

// Update sets the quantity of one of the user's lines. Lines owned by
// someone else are reported as not found.
func (s *Service) Update(ctx context.Context, lineID, userID string, quantity int) (*domain.CartLine, error) {
	if err := validQuantity(quantity); err != nil {
		return nil, err
	}

	line, err := s.store.GetForUser(ctx, lineID, userID)
	if err != nil {
		return nil, err
	}

	if quantity > line.Product.Stock {
		return nil, &domain.StockError{}
	}

	return s.store.UpdateQuantity(ctx, lineID, userID, quantity)
}

func (s *Service) Remove(ctx context.Context, lineID, userID string) error {
	return s.store.Delete(ctx, lineID, userID)
}

func (s *Service) Clear(ctx context.Context, userID string) error {
	return s.store.Clear(ctx, userID)
}

func (s *Service) View(ctx context.Context, userID string) ([]domain.CartLine, domain.CartSummary, error) {
	lines, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, domain.CartSummary{}, err
	}
	return lines, domain.Summarize(lines), nil
}
