//go:build integration

package test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/api"
	"github.com/joao-fontenele/storefront/internal/auth"
	"github.com/joao-fontenele/storefront/internal/cart"
	"github.com/joao-fontenele/storefront/internal/catalog"
	"github.com/joao-fontenele/storefront/internal/checkout"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/messaging"
	"github.com/joao-fontenele/storefront/internal/notify"
	"github.com/joao-fontenele/storefront/internal/orders"
)

var (
	admin = domain.Identity{UserID: "admin-1", Role: domain.RoleAdmin}
	alice = domain.Identity{UserID: "alice", Role: domain.RoleCustomer, Email: "alice@example.com"}
	bob   = domain.Identity{UserID: "bob", Role: domain.RoleCustomer, Email: "bob@example.com"}
)

type storefront struct {
	server   *httptest.Server
	products *catalog.ProductRepository
	ledger   *orders.OrderRepository
}

func newStorefront(t *testing.T, pg *PostgresSetup, publisher checkout.Publisher) *storefront {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db := pg.DB(t)

	products := catalog.NewProductRepository(db)
	carts := cart.NewRepository(db)
	ledger := orders.NewOrderRepository(db)

	engine, err := checkout.NewEngine(carts, products, ledger, publisher, logger)
	if err != nil {
		t.Fatalf("failed to create checkout engine: %v", err)
	}

	router := api.NewRouter(api.Handlers{
		Catalog: catalog.NewHandler(products, logger),
		Cart:    cart.NewHandler(cart.NewService(carts, products, logger), logger),
		Orders:  orders.NewHandler(engine, orders.NewService(ledger, nil, logger), logger),
	}, logger)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &storefront{server: server, products: products, ledger: ledger}
}

func (s *storefront) do(t *testing.T, method, path string, as domain.Identity, body any) (int, map[string]json.RawMessage) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, s.server.URL+path, reader)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(auth.HeaderUserID, as.UserID)
	req.Header.Set(auth.HeaderUserRole, string(as.Role))
	req.Header.Set(auth.HeaderUserEmail, as.Email)

	resp, err := s.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var out map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("failed to decode %s %s response: %v", method, path, err)
	}
	return resp.StatusCode, out
}

// checkout places an order without touching t, so it is safe to call from
// concurrent goroutines.
func (s *storefront) checkout(as domain.Identity) (int, error) {
	req, err := http.NewRequest(http.MethodPost, s.server.URL+"/api/orders", nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set(auth.HeaderUserID, as.UserID)
	req.Header.Set(auth.HeaderUserRole, string(as.Role))

	resp, err := s.server.Client().Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func decodeField[T any](t *testing.T, body map[string]json.RawMessage, key string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(body[key], &v); err != nil {
		t.Fatalf("failed to decode %q: %v", key, err)
	}
	return v
}

func (s *storefront) createProduct(t *testing.T, name, price string, stock int) domain.Product {
	t.Helper()
	status, body := s.do(t, http.MethodPost, "/api/products", admin, map[string]any{
		"name": name, "price": price, "stock": stock,
	})
	if status != http.StatusCreated {
		t.Fatalf("expected product created, got %d: %s", status, body["error"])
	}
	return decodeField[domain.Product](t, body, "product")
}

func (s *storefront) addToCart(t *testing.T, as domain.Identity, productID string, qty int) {
	t.Helper()
	status, body := s.do(t, http.MethodPost, "/api/cart", as, map[string]any{"productId": productID, "quantity": qty})
	if status != http.StatusCreated && status != http.StatusOK {
		t.Fatalf("expected item added, got %d: %s", status, body["error"])
	}
}

func (s *storefront) stock(t *testing.T, productID string) int {
	t.Helper()
	p, err := s.products.Get(context.Background(), productID)
	if err != nil {
		t.Fatalf("failed to read product: %v", err)
	}
	return p.Stock
}

func (s *storefront) cartSize(t *testing.T, as domain.Identity) int {
	t.Helper()
	status, body := s.do(t, http.MethodGet, "/api/cart", as, nil)
	if status != http.StatusOK {
		t.Fatalf("expected cart, got %d", status)
	}
	return len(decodeField[[]domain.CartLine](t, body, "cartItems"))
}

func (s *storefront) orderCount(t *testing.T) int {
	t.Helper()
	all, err := s.ledger.List(context.Background(), domain.ScopeAll())
	if err != nil {
		t.Fatalf("failed to list orders: %v", err)
	}
	return len(all)
}

func TestCheckoutFlow(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	s := newStorefront(t, pg, nil)
	mug := s.createProduct(t, "Mug", "50.00", 10)
	lamp := s.createProduct(t, "Lamp", "100.00", 5)

	s.addToCart(t, alice, mug.ID, 1)
	s.addToCart(t, alice, mug.ID, 1)
	s.addToCart(t, alice, lamp.ID, 1)

	// Later catalog price changes do not reach the cart snapshot.
	status, body := s.do(t, http.MethodPut, "/api/products/"+lamp.ID, admin, map[string]any{"price": "999.99"})
	if status != http.StatusOK {
		t.Fatalf("expected product updated, got %d: %s", status, body["error"])
	}

	status, body = s.do(t, http.MethodPost, "/api/orders", alice, nil)
	if status != http.StatusCreated {
		t.Fatalf("expected order created, got %d: %s", status, body["error"])
	}
	order := decodeField[domain.Order](t, body, "order")

	if !order.TotalAmount.Equal(decimal.RequireFromString("200.00")) {
		t.Fatalf("expected total 200.00, got %s", order.TotalAmount)
	}
	if order.Status != domain.OrderStatusPending {
		t.Fatalf("expected pending, got %s", order.Status)
	}

	if got := s.stock(t, mug.ID); got != 8 {
		t.Fatalf("expected mug stock 8, got %d", got)
	}
	if got := s.stock(t, lamp.ID); got != 4 {
		t.Fatalf("expected lamp stock 4, got %d", got)
	}
	if got := s.cartSize(t, alice); got != 0 {
		t.Fatalf("expected empty cart, got %d lines", got)
	}

	status, body = s.do(t, http.MethodGet, "/api/orders/"+order.ID, alice, nil)
	if status != http.StatusOK {
		t.Fatalf("expected order, got %d", status)
	}
	fetched := decodeField[domain.Order](t, body, "order")
	if len(fetched.Items) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(fetched.Items))
	}
	if fetched.Items[0].ProductID != mug.ID || fetched.Items[0].Quantity != 2 {
		t.Fatalf("unexpected first line %+v", fetched.Items[0])
	}
	if !fetched.Items[1].PriceAtPurchase.Equal(decimal.RequireFromString("100.00")) {
		t.Fatalf("expected snapshot price 100.00, got %s", fetched.Items[1].PriceAtPurchase)
	}
	if fetched.Items[1].Product == nil || fetched.Items[1].Product.Name != "Lamp" {
		t.Fatalf("expected product summary, got %+v", fetched.Items[1].Product)
	}
}

func TestCheckoutRejections(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	s := newStorefront(t, pg, nil)

	status, body := s.do(t, http.MethodPost, "/api/orders", alice, nil)
	if status != http.StatusBadRequest || string(body["error"]) != `"Cart is empty"` {
		t.Fatalf("expected empty cart rejection, got %d %s", status, body["error"])
	}

	chair := s.createProduct(t, "Chair", "80.00", 2)
	s.addToCart(t, alice, chair.ID, 2)

	status, _ = s.do(t, http.MethodPut, "/api/products/"+chair.ID, admin, map[string]any{"stock": 1})
	if status != http.StatusOK {
		t.Fatalf("expected stock update, got %d", status)
	}

	status, body = s.do(t, http.MethodPost, "/api/orders", alice, nil)
	want := `"Insufficient stock for product ` + chair.ID + `"`
	if status != http.StatusBadRequest || string(body["error"]) != want {
		t.Fatalf("expected %s, got %d %s", want, status, body["error"])
	}

	if got := s.stock(t, chair.ID); got != 1 {
		t.Fatalf("expected stock unchanged at 1, got %d", got)
	}
	if got := s.cartSize(t, alice); got != 1 {
		t.Fatalf("expected cart untouched, got %d lines", got)
	}
	if got := s.orderCount(t); got != 0 {
		t.Fatalf("expected no orders, got %d", got)
	}
}

func TestConcurrentCheckoutForLastUnit(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	s := newStorefront(t, pg, nil)
	vase := s.createProduct(t, "Vase", "30.00", 1)
	s.addToCart(t, alice, vase.ID, 1)
	s.addToCart(t, bob, vase.ID, 1)

	buyers := []domain.Identity{alice, bob}
	statuses := make([]int, len(buyers))
	errs := make([]error, len(buyers))

	var wg sync.WaitGroup
	for i, buyer := range buyers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			statuses[i], errs[i] = s.checkout(buyer)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			t.Fatalf("checkout request failed: %v", err)
		}
	}

	created, rejected := 0, 0
	for i, status := range statuses {
		switch status {
		case http.StatusCreated:
			created++
		case http.StatusBadRequest:
			rejected++
			if got := s.cartSize(t, buyers[i]); got != 1 {
				t.Fatalf("expected losing cart untouched, got %d lines", got)
			}
		default:
			t.Fatalf("unexpected status %d", status)
		}
	}

	if created != 1 || rejected != 1 {
		t.Fatalf("expected one winner and one loser, got %d created %d rejected", created, rejected)
	}
	if got := s.stock(t, vase.ID); got != 0 {
		t.Fatalf("expected stock 0, got %d", got)
	}
	if got := s.orderCount(t); got != 1 {
		t.Fatalf("expected exactly 1 order, got %d", got)
	}
}

func TestOrderVisibilityAndStatus(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	s := newStorefront(t, pg, nil)
	book := s.createProduct(t, "Book", "15.00", 3)
	s.addToCart(t, alice, book.ID, 1)

	status, body := s.do(t, http.MethodPost, "/api/orders", alice, nil)
	if status != http.StatusCreated {
		t.Fatalf("expected order created, got %d", status)
	}
	order := decodeField[domain.Order](t, body, "order")

	if status, _ := s.do(t, http.MethodGet, "/api/orders/"+order.ID, bob, nil); status != http.StatusNotFound {
		t.Fatalf("expected 404 for other customer, got %d", status)
	}
	if status, _ := s.do(t, http.MethodGet, "/api/orders/"+order.ID, admin, nil); status != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", status)
	}

	_, body = s.do(t, http.MethodGet, "/api/orders", bob, nil)
	if got := decodeField[[]domain.Order](t, body, "orders"); len(got) != 0 {
		t.Fatalf("expected bob to see no orders, got %d", len(got))
	}

	if status, _ := s.do(t, http.MethodPut, "/api/orders/"+order.ID, alice, map[string]string{"status": "completed"}); status != http.StatusForbidden {
		t.Fatalf("expected 403 for customer, got %d", status)
	}
	_, body = s.do(t, http.MethodGet, "/api/orders/"+order.ID, alice, nil)
	if got := decodeField[domain.Order](t, body, "order"); got.Status != domain.OrderStatusPending {
		t.Fatalf("expected status unchanged after 403, got %s", got.Status)
	}
	if status, _ := s.do(t, http.MethodPut, "/api/orders/"+order.ID, admin, map[string]string{"status": "shipped"}); status != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", status)
	}

	status, body = s.do(t, http.MethodPut, "/api/orders/"+order.ID, admin, map[string]string{"status": "completed"})
	if status != http.StatusOK {
		t.Fatalf("expected status updated, got %d", status)
	}
	updated := decodeField[domain.Order](t, body, "order")
	if updated.Status != domain.OrderStatusCompleted {
		t.Fatalf("expected completed, got %s", updated.Status)
	}
	if !updated.UpdatedAt.After(order.UpdatedAt) {
		t.Fatalf("expected updated_at to move past %s, got %s", order.UpdatedAt, updated.UpdatedAt)
	}
}

func TestConcurrentCheckoutOfSameCart(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	s := newStorefront(t, pg, nil)
	kettle := s.createProduct(t, "Kettle", "40.00", 10)
	s.addToCart(t, alice, kettle.ID, 2)

	const attempts = 2
	statuses := make([]int, attempts)
	errs := make([]error, attempts)

	var wg sync.WaitGroup
	for i := range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			statuses[i], errs[i] = s.checkout(alice)
		}()
	}
	wg.Wait()

	created := 0
	for i, status := range statuses {
		if errs[i] != nil {
			t.Fatalf("checkout request failed: %v", errs[i])
		}
		switch status {
		case http.StatusCreated:
			created++
		case http.StatusConflict, http.StatusBadRequest:
			// lost the race, or read the cart after it was emptied
		default:
			t.Fatalf("unexpected status %d", status)
		}
	}

	if created != 1 {
		t.Fatalf("expected the cart to be ordered once, got %d orders placed", created)
	}
	if got := s.orderCount(t); got != 1 {
		t.Fatalf("expected exactly 1 order, got %d", got)
	}
	if got := s.stock(t, kettle.ID); got != 8 {
		t.Fatalf("expected stock 8, got %d", got)
	}
	if got := s.cartSize(t, alice); got != 0 {
		t.Fatalf("expected empty cart, got %d lines", got)
	}
}

type mailCapture struct {
	mu    sync.Mutex
	mails []notify.Mail
}

func (m *mailCapture) handler(w http.ResponseWriter, r *http.Request) {
	var mail notify.Mail
	if err := json.NewDecoder(r.Body).Decode(&mail); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	m.mu.Lock()
	m.mails = append(m.mails, mail)
	m.mu.Unlock()
	w.WriteHeader(http.StatusAccepted)
}

func (m *mailCapture) received() []notify.Mail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]notify.Mail(nil), m.mails...)
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafka.Dial("tcp", broker)
	if err != nil {
		t.Fatalf("failed to dial kafka: %v", err)
	}
	defer func() { _ = conn.Close() }()

	controller, err := conn.Controller()
	if err != nil {
		t.Fatalf("failed to find kafka controller: %v", err)
	}

	ctrl, err := kafka.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		t.Fatalf("failed to dial kafka controller: %v", err)
	}
	defer func() { _ = ctrl.Close() }()

	if err := ctrl.CreateTopics(kafka.TopicConfig{Topic: topic, NumPartitions: 1, ReplicationFactor: 1}); err != nil {
		t.Fatalf("failed to create topic %s: %v", topic, err)
	}
}

func TestOrderCreatedNotification(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	brokers, cleanupKafka := SetupKafka(ctx, t)
	defer cleanupKafka()

	const topic = "order.created"
	createTopic(t, brokers[0], topic)

	producer := messaging.NewProducer(brokers, topic)
	defer func() { _ = producer.Close() }()

	s := newStorefront(t, pg, producer)
	pen := s.createProduct(t, "Pen", "2.50", 10)
	s.addToCart(t, alice, pen.ID, 4)

	status, body := s.do(t, http.MethodPost, "/api/orders", alice, nil)
	if status != http.StatusCreated {
		t.Fatalf("expected order created, got %d: %s", status, body["error"])
	}
	order := decodeField[domain.Order](t, body, "order")

	capture := &mailCapture{}
	mailer := httptest.NewServer(http.HandlerFunc(capture.handler))
	defer mailer.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := notify.NewHandler(mailer.URL, mailer.Client(), logger)
	consumer := messaging.NewConsumer(brokers, topic, "order-notifier-test", logger, messaging.WithStartOffset(kafka.FirstOffset))
	defer func() { _ = consumer.Close() }()

	consumeCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()
	go func() { _ = consumer.Consume(consumeCtx, handler.Handle) }()

	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		if mails := capture.received(); len(mails) > 0 {
			if mails[0].To != alice.Email {
				t.Fatalf("expected mail to %s, got %s", alice.Email, mails[0].To)
			}
			if mails[0].Subject != "Order Confirmation: "+order.ID {
				t.Fatalf("unexpected subject %q", mails[0].Subject)
			}
			return
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatal("timed out waiting for confirmation mail")
}
