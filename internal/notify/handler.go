// Package notify turns order.created events into confirmation mails.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/messaging"
)

type Handler struct {
	mailerURL  string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewHandler(mailerURL string, client *http.Client, logger *slog.Logger) *Handler {
	return &Handler{
		mailerURL:  mailerURL,
		httpClient: client,
		logger:     logger,
	}
}

// Mail is the body accepted by the mailer's /send endpoint.
type Mail struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Handle processes one order.created payload. Undecodable payloads are
// discarded; events without a recipient are acknowledged without mail.
func (h *Handler) Handle(ctx context.Context, payload []byte) error {
	var event domain.OrderCreatedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("%w: unmarshal order created event: %w", messaging.ErrDiscard, err)
	}

	if event.Email == "" {
		h.logger.Info("no recipient for order, skipping confirmation", "order_id", event.OrderID, "user_id", event.UserID)
		return nil
	}

	if err := h.send(ctx, Confirmation(event)); err != nil {
		h.logger.Error("failed to send confirmation", "error", err, "order_id", event.OrderID)
		return fmt.Errorf("send confirmation for order %s: %w", event.OrderID, err)
	}

	h.logger.Info("order confirmation sent", "order_id", event.OrderID, "to", event.Email)
	return nil
}

// Confirmation renders the mail sent for a newly placed order.
func Confirmation(event domain.OrderCreatedEvent) Mail {
	var b strings.Builder
	fmt.Fprintf(&b, "Thank you for your order %s.\n\n", event.OrderID)
	for _, item := range event.Items {
		fmt.Fprintf(&b, "- %d x %s @ %s\n", item.Quantity, item.ProductID, item.PriceAtPurchase.StringFixed(2))
	}
	fmt.Fprintf(&b, "\nTotal: %s\n", event.TotalAmount.StringFixed(2))

	return Mail{
		To:      event.Email,
		Subject: "Order Confirmation: " + event.OrderID,
		Body:    b.String(),
	}
}

func (h *Handler) send(ctx context.Context, mail Mail) error {
	data, err := json.Marshal(mail)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.mailerURL+"/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("mailer returned status %d", resp.StatusCode)
	}

	return nil
}
