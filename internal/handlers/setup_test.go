package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"gamyacollections/internal/cart"
	"gamyacollections/internal/checkout"
	"gamyacollections/internal/mailer"
	"gamyacollections/internal/middleware"
	"gamyacollections/internal/models"
	"gamyacollections/internal/outbox"
	"gamyacollections/internal/payment"
	"gamyacollections/internal/shipping"
	"gamyacollections/internal/store"
)

const (
	testJWTSecret = "handler-secret"
	testKeySecret = "rzp_secret"
	testWebhook   = "whsec"
	testPassword  = "secret123"
)

type stubPayments struct{}

func (stubPayments) KeyID() string { return "rzp_test_key" }

func (stubPayments) CreateOrder(_ context.Context, amount decimal.Decimal, currency, receipt string) (*payment.GatewayOrder, error) {
	if currency == "" {
		currency = payment.DefaultCurrency
	}
	return &payment.GatewayOrder{ID: "order_stub", Amount: payment.ToMinorUnits(amount), Currency: currency, Receipt: receipt, Status: "created"}, nil
}

func (stubPayments) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	expected := payment.PaymentSignature(testKeySecret, orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}

type stubShipping struct{}

func (stubShipping) CreateOrder(_ context.Context, order models.Order) (*shipping.Shipment, error) {
	return &shipping.Shipment{OrderID: "sr_" + order.OrderID, ShipmentID: "sh_" + order.OrderID, AWBCode: "AWB9"}, nil
}

func (stubShipping) Track(_ context.Context, shipmentID string) (map[string]interface{}, error) {
	return map[string]interface{}{"shipment_id": shipmentID}, nil
}

func (stubShipping) CancelOrders(context.Context, []string) error { return nil }

type captureMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
}

func (m *captureMailer) Send(_ context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *captureMailer) last() (mailer.Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return mailer.Message{}, false
	}
	return m.sent[len(m.sent)-1], true
}

type testApp struct {
	router  *gin.Engine
	mem     *store.Memory
	mail    *captureMailer
	user    *models.User
	admin   *models.User
	product *models.Product
}

// newTestApp mounts the handlers on in-memory repositories with stubbed
// gateways, mirroring the production route table.
func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mem := store.NewMemory()
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := &models.User{Name: "Meera", Email: "meera@example.com", PasswordHash: string(hash), Role: models.RoleUser}
	admin := &models.User{Name: "Owner", Email: "owner@example.com", PasswordHash: string(hash), Role: models.RoleAdmin}
	for _, u := range []*models.User{user, admin} {
		if err := mem.Users().Create(ctx, u); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}

	product := &models.Product{Name: "Kundan Earrings", Price: 1200, DiscountPrice: 999, Stock: 4, Category: primitive.NewObjectID(), CreatedAt: time.Now()}
	if err := mem.Products().Create(ctx, product); err != nil {
		t.Fatalf("seed product: %v", err)
	}

	mail := &captureMailer{}
	orders := checkout.NewService(checkout.Deps{
		Products:   mem.Products(),
		Carts:      mem.Carts(),
		Orders:     mem.Orders(),
		Payments:   stubPayments{},
		Shipping:   stubShipping{},
		Mailer:     mail,
		Outbox:     outbox.NewDispatcher(mem.Outbox(), mem.Orders(), 3),
		AdminEmail: "shop@example.com",
	})
	carts := cart.NewService(mem.Carts(), mem.Products())
	verifier := payment.NewRazorpay(payment.Config{WebhookSecret: testWebhook})

	auth := middleware.Auth(testJWTSecret, mem.Users())
	adminOnly := middleware.AdminOnly()
	ttl := time.Hour

	r := gin.New()
	r.POST("/webhooks/razorpay", RazorpayWebhook(orders, verifier))

	api := r.Group("/api")
	api.POST("/auth/register", Register(mem.Users(), testJWTSecret, ttl))
	api.POST("/auth/login", Login(mem.Users(), testJWTSecret, ttl))
	api.POST("/auth/admin/login", AdminLogin(mem.Users(), testJWTSecret, ttl))
	api.POST("/auth/logout", Logout())
	api.GET("/auth/me", auth, Me())
	api.POST("/auth/forgot-password", ForgotPassword(mem.Users(), mail))
	api.POST("/auth/reset-password", ResetPassword(mem.Users()))

	api.GET("/products", GetProducts(mem.Products()))
	api.GET("/products/:id", GetProduct(mem.Products()))
	api.POST("/products", auth, adminOnly, CreateProduct(mem.Products()))
	api.PUT("/products/:id", auth, adminOnly, UpdateProduct(mem.Products()))
	api.DELETE("/products/:id", auth, adminOnly, DeleteProduct(mem.Products()))

	api.GET("/cart", auth, GetCart(carts))
	api.POST("/cart/add", auth, AddToCart(carts))
	api.PUT("/cart/update", auth, UpdateCartItem(carts))
	api.DELETE("/cart/remove/:productId", auth, RemoveFromCart(carts))
	api.DELETE("/cart/clear", auth, ClearCart(carts))

	api.POST("/razorpay/create-order", auth, CreateRazorpayOrder(orders, "rzp_test_key"))
	api.POST("/razorpay/verify-payment", auth, VerifyRazorpayPayment(orders))
	api.POST("/razorpay/payment-failed", auth, RazorpayPaymentFailed(orders))

	o := api.Group("/orders", auth)
	o.POST("/place", PlaceOrder(orders))
	o.GET("/myorders", GetMyOrders(orders))
	o.GET("/receipt/:orderId", DownloadReceipt(orders))
	o.GET("/export", adminOnly, ExportOrders(orders))
	o.GET("/:orderId", GetOrder(orders))
	o.GET("/:orderId/track", TrackOrder(orders))
	o.GET("", adminOnly, ListOrders(orders))
	o.PUT("/:orderId/status", adminOnly, UpdateOrderStatus(orders))
	o.PUT("/:orderId/seen", adminOnly, MarkOrderSeen(orders))
	o.DELETE("/:orderId", adminOnly, DeleteOrder(orders))

	return &testApp{router: r, mem: mem, mail: mail, user: user, admin: admin, product: product}
}

func (a *testApp) tokenFor(t *testing.T, user *models.User) string {
	t.Helper()
	token, err := issueUserToken(user, testJWTSecret, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

// do sends body as JSON; a nil user sends no credentials.
func (a *testApp) do(t *testing.T, method, path string, user *models.User, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != nil {
		req.Header.Set("Authorization", "Bearer "+a.tokenFor(t, user))
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, w.Code, w.Body.String())
	}
}

func orderData(productID primitive.ObjectID, qty int) map[string]interface{} {
	return map[string]interface{}{
		"items": []map[string]interface{}{{"product": productID.Hex(), "quantity": qty}},
		"shippingAddress": map[string]interface{}{
			"name": "Meera Iyer", "phone": "9876543210", "address": "12 Temple St",
			"city": "Chennai", "state": "TN", "pincode": "600004",
		},
	}
}

func httptestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

func serve(a *testApp, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}
