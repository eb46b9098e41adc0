package shipping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"gamyacollections/internal/models"
)

// fakeShiprocket issues tokens tok-1, tok-2, ... and accepts only the tokens
// listed in valid.
type fakeShiprocket struct {
	logins       atomic.Int32
	creates      atomic.Int32
	loginDelay   time.Duration
	createStatus int

	mu    sync.Mutex
	valid map[string]bool
	last  createOrderRequest
}

func newFakeShiprocket() *fakeShiprocket {
	return &fakeShiprocket{valid: map[string]bool{}, createStatus: http.StatusOK}
}

func (f *fakeShiprocket) revokeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.valid = map[string]bool{}
}

func (f *fakeShiprocket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/auth/login":
		if f.loginDelay > 0 {
			time.Sleep(f.loginDelay)
		}
		n := f.logins.Add(1)
		token := fmt.Sprintf("tok-%d", n)
		f.mu.Lock()
		f.valid[token] = true
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]string{"token": token})
	case "/orders/create/adhoc":
		f.creates.Add(1)
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		f.mu.Lock()
		ok := f.valid[token]
		f.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Token has expired"}`))
			return
		}
		if f.createStatus != http.StatusOK {
			w.WriteHeader(f.createStatus)
			_, _ = w.Write([]byte(`{"message":"server error"}`))
			return
		}
		var req createOrderRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.last = req
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"order_id": 9001, "shipment_id": 7001, "status": "NEW", "awb_code": ""}`))
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, fake *fakeShiprocket) *Client {
	t.Helper()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)
	return New(Config{BaseURL: server.URL, Email: "ops@example.com", Password: "pw", PickupLocation: "Primary", Timeout: 5 * time.Second})
}

func testOrder() models.Order {
	return models.Order{
		OrderID:       "ORD1",
		UserEmail:     "buyer@example.com",
		TotalAmount:   1000,
		PaymentStatus: models.PaymentStatusPaid,
		Items: []models.OrderItem{
			{Product: primitive.NewObjectID(), Name: "Ring", Quantity: 2, Price: 500},
		},
		ShippingAddress: models.ShippingAddress{Name: "Asha Rao Kumar", Phone: "9999999999", Address: "1 MG Road", City: "Pune", State: "MH", Pincode: "411001"},
		CreatedAt:       time.Date(2026, 1, 2, 15, 4, 0, 0, time.UTC),
	}
}

func TestCreateOrderReusesCachedToken(t *testing.T) {
	fake := newFakeShiprocket()
	client := newTestClient(t, fake)

	for i := 0; i < 3; i++ {
		if _, err := client.CreateOrder(context.Background(), testOrder()); err != nil {
			t.Fatalf("CreateOrder returned error: %v", err)
		}
	}
	if got := fake.logins.Load(); got != 1 {
		t.Fatalf("expected one login, got %d", got)
	}
}

func TestCreateOrderMapsPayload(t *testing.T) {
	fake := newFakeShiprocket()
	client := newTestClient(t, fake)

	shipment, err := client.CreateOrder(context.Background(), testOrder())
	if err != nil {
		t.Fatalf("CreateOrder returned error: %v", err)
	}
	if shipment.OrderID != "9001" || shipment.ShipmentID != "7001" {
		t.Fatalf("unexpected shipment %+v", shipment)
	}

	fake.mu.Lock()
	req := fake.last
	fake.mu.Unlock()
	if req.BillingCustomerName != "Asha" || req.BillingLastName != "Rao Kumar" {
		t.Fatalf("unexpected name split %q/%q", req.BillingCustomerName, req.BillingLastName)
	}
	if req.PaymentMethod != "Prepaid" || req.OrderDate != "2026-01-02 15:04" || req.BillingCountry != "India" {
		t.Fatalf("unexpected payload %+v", req)
	}
	if len(req.OrderItems) != 1 || req.OrderItems[0].Units != 2 || req.OrderItems[0].SellingPrice != 500 {
		t.Fatalf("unexpected items %+v", req.OrderItems)
	}
}

func TestExpiredTokenIsRefreshedTransparently(t *testing.T) {
	fake := newFakeShiprocket()
	client := newTestClient(t, fake)

	if _, err := client.CreateOrder(context.Background(), testOrder()); err != nil {
		t.Fatalf("first CreateOrder returned error: %v", err)
	}

	// The gateway expires the token before our cached expiry does.
	fake.revokeAll()

	if _, err := client.CreateOrder(context.Background(), testOrder()); err != nil {
		t.Fatalf("CreateOrder after expiry returned error: %v", err)
	}
	if got := fake.logins.Load(); got != 2 {
		t.Fatalf("expected exactly one re-authentication, got %d logins", got)
	}
	if got := fake.creates.Load(); got != 3 {
		t.Fatalf("expected 3 create calls (ok, 401, retry), got %d", got)
	}
}

func TestSecondUnauthorizedIsFatal(t *testing.T) {
	fake := newFakeShiprocket()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/login" {
			fake.logins.Add(1)
			_, _ = w.Write([]byte(`{"token":"never-valid"}`))
			return
		}
		fake.creates.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()
	client := New(Config{BaseURL: server.URL, Email: "ops@example.com", Password: "pw"})

	_, err := client.CreateOrder(context.Background(), testOrder())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 APIError, got %v", err)
	}
	if got := fake.creates.Load(); got != 2 {
		t.Fatalf("expected exactly one retry, got %d calls", got)
	}
	if got := fake.logins.Load(); got != 2 {
		t.Fatalf("expected two logins, got %d", got)
	}
}

func TestServerErrorIsNotRetried(t *testing.T) {
	fake := newFakeShiprocket()
	fake.createStatus = http.StatusInternalServerError
	client := newTestClient(t, fake)

	_, err := client.CreateOrder(context.Background(), testOrder())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500 APIError, got %v", err)
	}
	if got := fake.creates.Load(); got != 1 {
		t.Fatalf("expected no retry on 500, got %d calls", got)
	}
}

func TestConcurrentCallersShareOneLogin(t *testing.T) {
	fake := newFakeShiprocket()
	fake.loginDelay = 50 * time.Millisecond
	client := newTestClient(t, fake)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := client.session.Token(context.Background()); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatalf("Token returned error: %v", err)
	}
	if got := fake.logins.Load(); got != 1 {
		t.Fatalf("expected a single login for concurrent callers, got %d", got)
	}
}

func TestSessionRefreshesAfterLocalExpiry(t *testing.T) {
	fake := newFakeShiprocket()
	client := newTestClient(t, fake)
	now := time.Now()
	client.session.now = func() time.Time { return now }

	first, err := client.session.Token(context.Background())
	if err != nil {
		t.Fatalf("Token returned error: %v", err)
	}

	now = now.Add(tokenLifetime)
	second, err := client.session.Token(context.Background())
	if err != nil {
		t.Fatalf("Token returned error: %v", err)
	}
	if first == second {
		t.Fatal("expected a new token after the cached expiry passed")
	}
}

func TestMissingCredentials(t *testing.T) {
	client := New(Config{BaseURL: "http://127.0.0.1:0"})
	if _, err := client.CreateOrder(context.Background(), testOrder()); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
