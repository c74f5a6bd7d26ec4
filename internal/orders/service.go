package orders

import (
	"context"
	"log/slog"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type Store interface {
	GetByID(ctx context.Context, id string, scope domain.Scope) (*domain.Order, error)
	List(ctx context.Context, scope domain.Scope) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus) (*domain.Order, error)
}

type Service struct {
	store  Store
	policy domain.TransitionPolicy
	logger *slog.Logger
}

// NewService builds the order read/status service. A nil policy accepts
// any transition between known statuses.
func NewService(store Store, policy domain.TransitionPolicy, logger *slog.Logger) *Service {
	if policy == nil {
		policy = domain.AnyTransition
	}
	return &Service{
		store:  store,
		policy: policy,
		logger: logger,
	}
}

func (s *Service) Get(ctx context.Context, id string, scope domain.Scope) (*domain.Order, error) {
	return s.store.GetByID(ctx, id, scope)
}

func (s *Service) List(ctx context.Context, scope domain.Scope) ([]domain.Order, error) {
	return s.store.List(ctx, scope)
}

// UpdateStatus moves an order to status. Only admins may call it; the
// status must be one of the known values and pass the transition policy.
func (s *Service) UpdateStatus(ctx context.Context, id, status string, caller domain.Identity) (*domain.Order, error) {
	if !caller.IsAdmin() {
		return nil, domain.ErrForbidden
	}

	next, err := domain.ParseOrderStatus(status)
	if err != nil {
		return nil, err
	}

	current, err := s.store.GetByID(ctx, id, domain.ScopeAll())
	if err != nil {
		return nil, err
	}

	if err := s.policy(current.Status, next); err != nil {
		return nil, err
	}

	order, err := s.store.UpdateStatus(ctx, id, current.Status, next)
	if err != nil {
		return nil, err
	}

	s.logger.Info("order status updated", "order_id", order.ID, "from", current.Status, "to", order.Status)
	return order, nil
}
