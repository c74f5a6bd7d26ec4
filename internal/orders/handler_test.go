package orders

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/auth"
	"github.com/joao-fontenele/storefront/internal/domain"
)

const (
	aliceOrderID = "3f1b2d9e-6a7c-4e1f-8b2a-5c4d3e2f1a00"
	bobOrderID   = "7c6d5e4f-3a2b-4c1d-9e8f-0a1b2c3d4e5f"
)

type stubPlacer struct {
	order *domain.Order
	err   error
	buyer domain.Identity
}

func (s *stubPlacer) CreateOrder(_ context.Context, buyer domain.Identity) (*domain.Order, error) {
	s.buyer = buyer
	return s.order, s.err
}

func newHandlerFixture(placer Placer) *Handler {
	ledger := newMemLedger(
		&domain.Order{ID: aliceOrderID, UserID: "alice", Status: domain.OrderStatusPending, TotalAmount: decimal.RequireFromString("200")},
		&domain.Order{ID: bobOrderID, UserID: "bob", Status: domain.OrderStatusPending},
	)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandler(placer, NewService(ledger, nil, logger), logger)
}

func withIdentity(req *http.Request, id domain.Identity) *http.Request {
	return req.WithContext(auth.WithIdentity(req.Context(), id))
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	var body map[string]json.RawMessage
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func TestHandleCreate(t *testing.T) {
	tests := []struct {
		name       string
		placer     *stubPlacer
		wantStatus int
		wantError  string
	}{
		{
			name:       "placed",
			placer:     &stubPlacer{order: &domain.Order{ID: "new", UserID: "alice", Status: domain.OrderStatusPending}},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "empty cart",
			placer:     &stubPlacer{err: domain.ErrEmptyCart},
			wantStatus: http.StatusBadRequest,
			wantError:  `"Cart is empty"`,
		},
		{
			name:       "insufficient stock",
			placer:     &stubPlacer{err: &domain.StockError{ProductID: "p1"}},
			wantStatus: http.StatusBadRequest,
			wantError:  `"Insufficient stock for product p1"`,
		},
		{
			name:       "creation failed",
			placer:     &stubPlacer{err: domain.ErrOrderCreationFailed},
			wantStatus: http.StatusInternalServerError,
			wantError:  `"Failed to create order"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHandlerFixture(tt.placer)
			req := withIdentity(httptest.NewRequest(http.MethodPost, "/api/orders", nil), alice)
			rec := httptest.NewRecorder()

			h.HandleCreate(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if tt.placer.buyer != alice {
				t.Errorf("expected buyer %+v, got %+v", alice, tt.placer.buyer)
			}

			body := decode(t, rec)
			if tt.wantError != "" {
				if string(body["error"]) != tt.wantError {
					t.Errorf("expected error %s, got %s", tt.wantError, body["error"])
				}
				return
			}
			if _, ok := body["order"]; !ok {
				t.Errorf("expected order in body, got %v", body)
			}
		})
	}
}

func TestHandleCreateRequiresIdentity(t *testing.T) {
	h := newHandlerFixture(&stubPlacer{})
	rec := httptest.NewRecorder()

	h.HandleCreate(rec, httptest.NewRequest(http.MethodPost, "/api/orders", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleGet(t *testing.T) {
	tests := []struct {
		name       string
		caller     domain.Identity
		id         string
		wantStatus int
	}{
		{"owner", alice, aliceOrderID, http.StatusOK},
		{"other customer", bob, aliceOrderID, http.StatusNotFound},
		{"admin", adminID, aliceOrderID, http.StatusOK},
		{"not a uuid", alice, "42", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHandlerFixture(&stubPlacer{})
			req := withIdentity(httptest.NewRequest(http.MethodGet, "/api/orders/"+tt.id, nil), tt.caller)
			req.SetPathValue("id", tt.id)
			rec := httptest.NewRecorder()

			h.HandleGet(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if tt.wantStatus == http.StatusNotFound {
				if got := string(decode(t, rec)["error"]); got != `"Order not found"` {
					t.Errorf("expected Order not found, got %s", got)
				}
			}
		})
	}
}

func TestHandleList(t *testing.T) {
	tests := []struct {
		name   string
		caller domain.Identity
		want   int
	}{
		{"customer sees own", alice, 1},
		{"admin sees all", adminID, 2},
		{"customer without orders", domain.Identity{UserID: "carol", Role: domain.RoleCustomer}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHandlerFixture(&stubPlacer{})
			req := withIdentity(httptest.NewRequest(http.MethodGet, "/api/orders", nil), tt.caller)
			rec := httptest.NewRecorder()

			h.HandleList(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rec.Code)
			}
			var orders []domain.Order
			if err := json.Unmarshal(decode(t, rec)["orders"], &orders); err != nil {
				t.Fatalf("decode orders: %v", err)
			}
			if len(orders) != tt.want {
				t.Errorf("expected %d orders, got %d", tt.want, len(orders))
			}
		})
	}
}

func TestHandleUpdateStatus(t *testing.T) {
	tests := []struct {
		name       string
		caller     domain.Identity
		body       string
		wantStatus int
		wantError  string
	}{
		{"admin updates", adminID, `{"status":"processing"}`, http.StatusOK, ""},
		{"customer forbidden", alice, `{"status":"processing"}`, http.StatusForbidden, `"Insufficient permissions"`},
		{"invalid status", adminID, `{"status":"shipped"}`, http.StatusBadRequest, `"Invalid status"`},
		{"bad body", adminID, `{`, http.StatusBadRequest, `"invalid request body"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHandlerFixture(&stubPlacer{})
			req := withIdentity(httptest.NewRequest(http.MethodPut, "/api/orders/"+aliceOrderID, strings.NewReader(tt.body)), tt.caller)
			req.SetPathValue("id", aliceOrderID)
			rec := httptest.NewRecorder()

			h.HandleUpdateStatus(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			body := decode(t, rec)
			if tt.wantError != "" {
				if string(body["error"]) != tt.wantError {
					t.Errorf("expected error %s, got %s", tt.wantError, body["error"])
				}
				return
			}

			var order domain.Order
			if err := json.Unmarshal(body["order"], &order); err != nil {
				t.Fatalf("decode order: %v", err)
			}
			if order.Status != domain.OrderStatusProcessing {
				t.Errorf("expected processing, got %s", order.Status)
			}
		})
	}
}
