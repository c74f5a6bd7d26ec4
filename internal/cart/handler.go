package cart

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/joao-fontenele/storefront/internal/auth"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/respond"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	lines, summary, err := h.service.View(r.Context(), id.UserID)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	respond.JSON(w, h.logger, http.StatusOK, map[string]any{
		"cartItems": lines,
		"summary":   summary,
	})
}

type addRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	var req addRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Message(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, err := uuid.Parse(req.ProductID); err != nil {
		respond.Error(w, h.logger, domain.Invalid("Valid product ID is required"))
		return
	}

	line, created, err := h.service.Add(r.Context(), id.UserID, req.ProductID, req.Quantity)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	if created {
		respond.JSON(w, h.logger, http.StatusCreated, map[string]any{
			"message":  "Product added to cart",
			"cartItem": line,
		})
		return
	}

	respond.JSON(w, h.logger, http.StatusOK, map[string]any{
		"message":  "Cart updated successfully",
		"cartItem": line,
	})
}

type updateRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	lineID, ok := h.lineID(w, r)
	if !ok {
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Message(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}

	line, err := h.service.Update(r.Context(), lineID, id.UserID, req.Quantity)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	respond.JSON(w, h.logger, http.StatusOK, map[string]any{
		"message":  "Cart item updated",
		"cartItem": line,
	})
}

func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	lineID, ok := h.lineID(w, r)
	if !ok {
		return
	}

	if err := h.service.Remove(r.Context(), lineID, id.UserID); err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	respond.JSON(w, h.logger, http.StatusOK, map[string]string{"message": "Item removed from cart"})
}

func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	if err := h.service.Clear(r.Context(), id.UserID); err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	h.logger.Info("cart cleared", "user_id", id.UserID)
	respond.JSON(w, h.logger, http.StatusOK, map[string]string{"message": "Cart cleared successfully"})
}

func (h *Handler) identity(w http.ResponseWriter, r *http.Request) (domain.Identity, bool) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		respond.Error(w, h.logger, domain.ErrUnauthenticated)
	}
	return id, ok
}

func (h *Handler) lineID(w http.ResponseWriter, r *http.Request) (string, bool) {
	lineID := r.PathValue("id")
	if _, err := uuid.Parse(lineID); err != nil {
		respond.Error(w, h.logger, domain.NotFound("Cart item"))
		return "", false
	}
	return lineID, true
}
