// Package respond writes JSON bodies and maps domain errors to HTTP statuses.
package respond

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/storefront/internal/domain"
)

func JSON(w http.ResponseWriter, logger *slog.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func Message(w http.ResponseWriter, logger *slog.Logger, status int, message string) {
	JSON(w, logger, status, map[string]string{"error": message})
}

// Error writes err as {"error": ...}. Errors outside the domain taxonomy are
// logged and reported without detail.
func Error(w http.ResponseWriter, logger *slog.Logger, err error) {
	status, message := Classify(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
	}
	Message(w, logger, status, message)
}

// Classify returns the status code and client-facing message for err.
func Classify(err error) (int, string) {
	var (
		notFound *domain.NotFoundError
		invalid  *domain.ValidationError
		stock    *domain.StockError
		conflict *domain.ConflictError
	)

	switch {
	case errors.As(err, &stock):
		return http.StatusBadRequest, stock.Error()
	case errors.As(err, &invalid):
		return http.StatusBadRequest, invalid.Error()
	case errors.As(err, &notFound):
		return http.StatusNotFound, notFound.Error()
	case errors.As(err, &conflict):
		return http.StatusConflict, conflict.Error()
	case errors.Is(err, domain.ErrEmptyCart):
		return http.StatusBadRequest, "Cart is empty"
	case errors.Is(err, domain.ErrInsufficientStock):
		return http.StatusBadRequest, "Insufficient stock"
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "Invalid request"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, "Authentication required"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "Insufficient permissions"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "Conflict"
	case errors.Is(err, domain.ErrOrderCreationFailed):
		return http.StatusInternalServerError, "Failed to create order"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
