package orders

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/joao-fontenele/storefront/internal/auth"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/respond"
)

// Placer turns the caller's cart into an order.
type Placer interface {
	CreateOrder(ctx context.Context, buyer domain.Identity) (*domain.Order, error)
}

type Handler struct {
	placer  Placer
	service *Service
	logger  *slog.Logger
}

func NewHandler(placer Placer, service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		placer:  placer,
		service: service,
		logger:  logger,
	}
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	order, err := h.placer.CreateOrder(r.Context(), id)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	respond.JSON(w, h.logger, http.StatusCreated, map[string]any{
		"message": "Order placed successfully",
		"order":   order,
	})
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	orders, err := h.service.List(r.Context(), domain.ScopeFor(id))
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}

	h.logger.Info("orders listed", "user_id", id.UserID, "count", len(orders))
	respond.JSON(w, h.logger, http.StatusOK, map[string]any{"orders": orders})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	orderID, ok := h.orderID(w, r)
	if !ok {
		return
	}

	order, err := h.service.Get(r.Context(), orderID, domain.ScopeFor(id))
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	respond.JSON(w, h.logger, http.StatusOK, map[string]any{"order": order})
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	if !id.IsAdmin() {
		respond.Error(w, h.logger, domain.ErrForbidden)
		return
	}

	orderID, ok := h.orderID(w, r)
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Message(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.service.UpdateStatus(r.Context(), orderID, req.Status, id)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	respond.JSON(w, h.logger, http.StatusOK, map[string]any{
		"message": "Order status updated",
		"order":   order,
	})
}

func (h *Handler) identity(w http.ResponseWriter, r *http.Request) (domain.Identity, bool) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		respond.Error(w, h.logger, domain.ErrUnauthenticated)
	}
	return id, ok
}

func (h *Handler) orderID(w http.ResponseWriter, r *http.Request) (string, bool) {
	orderID := r.PathValue("id")
	if _, err := uuid.Parse(orderID); err != nil {
		respond.Error(w, h.logger, domain.NotFound("Order"))
		return "", false
	}
	return orderID, true
}
