// Package mail is a sink that accepts outgoing mail and acknowledges it.
// Delivery to a real provider is outside this service.
package mail

import (
	"encoding/json"
	"log/slog"
	"net/http"
	netmail "net/mail"
	"strings"

	"github.com/google/uuid"

	"github.com/joao-fontenele/storefront/internal/respond"
)

type Handler struct {
	logger *slog.Logger
}

func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{logger: logger}
}

type sendRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type sendResponse struct {
	Status string `json:"status"`
	ID     string `json:"id"`
}

func (req sendRequest) validate() string {
	if _, err := netmail.ParseAddress(req.To); err != nil {
		return "valid recipient address is required"
	}
	if strings.TrimSpace(req.Subject) == "" {
		return "subject is required"
	}
	return ""
}

func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Message(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}

	if msg := req.validate(); msg != "" {
		respond.Message(w, h.logger, http.StatusBadRequest, msg)
		return
	}

	id := uuid.New().String()
	h.logger.Info("mail queued", "id", id, "to", req.To, "subject", req.Subject)

	respond.JSON(w, h.logger, http.StatusAccepted, sendResponse{Status: "queued", ID: id})
}
