package checkout

import (
	"context"
	"crypto/hmac"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"gamyacollections/internal/apperr"
	"gamyacollections/internal/mailer"
	"gamyacollections/internal/models"
	"gamyacollections/internal/outbox"
	"gamyacollections/internal/payment"
	"gamyacollections/internal/shipping"
	"gamyacollections/internal/store"
)

const testSecret = "rzp_secret"

type fakePayments struct {
	lastAmount   decimal.Decimal
	lastCurrency string
	lastReceipt  string
}

func (f *fakePayments) KeyID() string { return "rzp_test_key" }

func (f *fakePayments) CreateOrder(_ context.Context, amount decimal.Decimal, currency, receipt string) (*payment.GatewayOrder, error) {
	f.lastAmount, f.lastCurrency, f.lastReceipt = amount, currency, receipt
	if currency == "" {
		currency = payment.DefaultCurrency
	}
	return &payment.GatewayOrder{ID: "order_test", Amount: payment.ToMinorUnits(amount), Currency: currency, Receipt: receipt, Status: "created"}, nil
}

func (f *fakePayments) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	expected := payment.PaymentSignature(testSecret, orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}

type fakeShipping struct {
	mu        sync.Mutex
	err       error
	delay     time.Duration
	created   int
	cancelled []string
}

func (f *fakeShipping) CreateOrder(ctx context.Context, order models.Order) (*shipping.Shipment, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.created++
	return &shipping.Shipment{OrderID: "sr_" + order.OrderID, ShipmentID: "sh_" + order.OrderID, AWBCode: "AWB1"}, nil
}

func (f *fakeShipping) Track(_ context.Context, shipmentID string) (map[string]interface{}, error) {
	return map[string]interface{}{"shipment_id": shipmentID, "current_status": "IN TRANSIT"}, nil
}

func (f *fakeShipping) CancelOrders(_ context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, ids...)
	return nil
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type fixture struct {
	mem      *store.Memory
	svc      *Service
	payments *fakePayments
	shipping *fakeShipping
	mailer   *recordingMailer
	user     *models.User
	admin    *models.User
	product  *models.Product
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := store.NewMemory()
	ctx := context.Background()

	user := &models.User{Name: "Priya", Email: "priya@example.com", Role: models.RoleUser}
	admin := &models.User{Name: "Admin", Email: "admin@example.com", Role: models.RoleAdmin}
	for _, u := range []*models.User{user, admin} {
		if err := mem.Users().Create(ctx, u); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}

	product := &models.Product{Name: "Silver Anklet", Price: 500, Stock: 5, Category: primitive.NewObjectID(), Images: models.StringList{"https://cdn.example.com/anklet.jpg"}}
	if err := mem.Products().Create(ctx, product); err != nil {
		t.Fatalf("seed product: %v", err)
	}

	f := &fixture{
		mem:      mem,
		payments: &fakePayments{},
		shipping: &fakeShipping{},
		mailer:   &recordingMailer{},
		user:     user,
		admin:    admin,
		product:  product,
	}
	f.svc = NewService(Deps{
		Products:   mem.Products(),
		Carts:      mem.Carts(),
		Orders:     mem.Orders(),
		Payments:   f.payments,
		Shipping:   f.shipping,
		Mailer:     f.mailer,
		Outbox:     outbox.NewDispatcher(mem.Outbox(), mem.Orders(), 5),
		AdminEmail: "owner@example.com",
	})

	cart := &models.Cart{User: user.ID, Items: []models.CartItem{{Product: product.ID, Quantity: 2}}}
	if err := mem.Carts().Save(ctx, cart); err != nil {
		t.Fatalf("seed cart: %v", err)
	}
	return f
}

func (f *fixture) orderData(qty int) OrderData {
	return OrderData{
		Items:           []ItemInput{{Product: f.product.ID.Hex(), Quantity: qty, Price: 500}},
		ShippingAddress: models.ShippingAddress{Name: "Priya", Phone: "9876543210", Address: "4 Lake Rd", City: "Chennai", State: "TN", Pincode: "600001"},
		TotalAmount:     float64(500 * qty),
	}
}

func (f *fixture) verifyRequest(gatewayOrderID string) VerifyRequest {
	return VerifyRequest{
		RazorpayOrderID:   gatewayOrderID,
		RazorpayPaymentID: "pay_1",
		RazorpaySignature: payment.PaymentSignature(testSecret, gatewayOrderID, "pay_1"),
		OrderData:         f.orderData(2),
	}
}

func (f *fixture) cartEmpty(t *testing.T) bool {
	t.Helper()
	_, err := f.mem.Carts().FindByUser(context.Background(), f.user.ID)
	return errors.Is(err, store.ErrNotFound)
}

func TestCreateGatewayOrder(t *testing.T) {
	f := newFixture(t)

	order, err := f.svc.CreateGatewayOrder(context.Background(), CreateOrderRequest{Amount: 1000})
	if err != nil {
		t.Fatalf("CreateGatewayOrder returned error: %v", err)
	}
	if order.Amount != 100000 || order.Currency != "INR" {
		t.Fatalf("expected 100000 INR, got %d %s", order.Amount, order.Currency)
	}
	if len(f.payments.lastReceipt) < 6 || f.payments.lastReceipt[:5] != "rcpt_" {
		t.Fatalf("expected generated receipt, got %q", f.payments.lastReceipt)
	}
	if f.mem.OrderCount() != 0 {
		t.Fatal("creating a gateway order must not persist anything")
	}
}

func TestCreateGatewayOrderRejectsNonPositiveAmount(t *testing.T) {
	f := newFixture(t)
	for _, amount := range []float64{0, -5} {
		_, err := f.svc.CreateGatewayOrder(context.Background(), CreateOrderRequest{Amount: amount})
		if apperr.KindOf(err) != apperr.KindValidation {
			t.Fatalf("amount %v: expected validation error, got %v", amount, err)
		}
	}
}

func TestVerifyPaymentCreatesPaidOrder(t *testing.T) {
	f := newFixture(t)

	order, err := f.svc.VerifyPayment(context.Background(), f.user, f.verifyRequest("order_abc"))
	if err != nil {
		t.Fatalf("VerifyPayment returned error: %v", err)
	}
	if order.PaymentStatus != models.PaymentStatusPaid || order.OrderStatus != models.OrderStatusProcessing {
		t.Fatalf("expected paid/processing, got %s/%s", order.PaymentStatus, order.OrderStatus)
	}
	if order.TotalAmount != 1000 || len(order.Items) != 1 || order.Items[0].Quantity != 2 || order.Items[0].Price != 500 {
		t.Fatalf("unexpected order contents %+v", order)
	}
	if order.ShiprocketOrderID == "" || order.TrackingNumber != "AWB1" {
		t.Fatalf("expected fulfillment ids on the order, got %+v", order)
	}
	if !order.UserEmailSent || !order.AdminEmailSent {
		t.Fatal("expected both notification flags to be set")
	}
	if !f.cartEmpty(t) {
		t.Fatal("cart should be empty after checkout")
	}

	mine, err := f.svc.MyOrders(context.Background(), f.user)
	if err != nil || len(mine) != 1 || mine[0].TotalAmount != 1000 || mine[0].PaymentStatus != models.PaymentStatusPaid {
		t.Fatalf("unexpected my orders %+v, %v", mine, err)
	}

	product, _ := f.mem.Products().FindByID(context.Background(), f.product.ID)
	if product.Stock != 3 {
		t.Fatalf("expected stock 3 after order, got %d", product.Stock)
	}
}

func TestVerifyPaymentRejectsTamperedSignature(t *testing.T) {
	f := newFixture(t)
	req := f.verifyRequest("order_abc")

	for i := range req.RazorpaySignature {
		tampered := []byte(req.RazorpaySignature)
		if tampered[i] == '0' {
			tampered[i] = '1'
		} else {
			tampered[i] = '0'
		}
		bad := req
		bad.RazorpaySignature = string(tampered)

		_, err := f.svc.VerifyPayment(context.Background(), f.user, bad)
		if apperr.KindOf(err) != apperr.KindInvalidSignature {
			t.Fatalf("byte %d: expected invalid_signature, got %v", i, err)
		}
		if apperr.HTTPStatus(apperr.KindOf(err)) != 400 {
			t.Fatal("invalid signature must map to 400")
		}
	}
	if f.mem.OrderCount() != 0 {
		t.Fatal("no order may be created for a bad signature")
	}
}

func TestVerifyPaymentReplayIsRejected(t *testing.T) {
	f := newFixture(t)
	req := f.verifyRequest("order_abc")

	if _, err := f.svc.VerifyPayment(context.Background(), f.user, req); err != nil {
		t.Fatalf("first VerifyPayment returned error: %v", err)
	}
	_, err := f.svc.VerifyPayment(context.Background(), f.user, req)
	if apperr.KindOf(err) != apperr.KindDuplicatePayment {
		t.Fatalf("expected duplicate_payment, got %v", err)
	}
	if f.mem.OrderCount() != 1 {
		t.Fatalf("replay must not create a second order, have %d", f.mem.OrderCount())
	}
}

func TestVerifyPaymentConcurrentReplayCreatesOneOrder(t *testing.T) {
	f := newFixture(t)
	req := f.verifyRequest("order_race")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.svc.VerifyPayment(context.Background(), f.user, req)
		}()
	}
	wg.Wait()

	if f.mem.OrderCount() != 1 {
		t.Fatalf("expected exactly one order, got %d", f.mem.OrderCount())
	}
}

func TestVerifyPaymentSurvivesShippingFailure(t *testing.T) {
	f := newFixture(t)
	f.shipping.err = &shipping.APIError{StatusCode: 500, Body: "boom"}
	f.mailer.err = errors.New("smtp unavailable")

	order, err := f.svc.VerifyPayment(context.Background(), f.user, f.verifyRequest("order_abc"))
	if err != nil {
		t.Fatalf("side-effect failures must not fail checkout: %v", err)
	}
	if order.PaymentStatus != models.PaymentStatusPaid || order.OrderStatus != models.OrderStatusProcessing {
		t.Fatalf("expected paid/processing, got %s/%s", order.PaymentStatus, order.OrderStatus)
	}
	if order.ShiprocketOrderID != "" {
		t.Fatalf("expected no fulfillment id, got %q", order.ShiprocketOrderID)
	}

	failed := 0
	for _, job := range f.mem.Jobs() {
		if job.Status == models.JobFailed {
			failed++
		}
	}
	if failed != 3 {
		t.Fatalf("expected all three jobs recorded as failed, got %d", failed)
	}
	if !f.cartEmpty(t) {
		t.Fatal("cart should be empty even when side effects fail")
	}
}

func TestVerifyPaymentUsesCatalogPrices(t *testing.T) {
	f := newFixture(t)
	req := f.verifyRequest("order_abc")
	req.OrderData.Items[0].Price = 1
	req.OrderData.TotalAmount = 2

	order, err := f.svc.VerifyPayment(context.Background(), f.user, req)
	if err != nil {
		t.Fatalf("VerifyPayment returned error: %v", err)
	}
	if order.Items[0].Price != 500 || order.TotalAmount != 1000 {
		t.Fatalf("expected catalog price to win, got %+v", order.Items[0])
	}
}

func TestVerifyPaymentPreconditions(t *testing.T) {
	f := newFixture(t)

	noItems := f.verifyRequest("order_a")
	noItems.OrderData.Items = nil
	if _, err := f.svc.VerifyPayment(context.Background(), f.user, noItems); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error for empty items, got %v", err)
	}

	noPhone := f.verifyRequest("order_b")
	noPhone.OrderData.ShippingAddress.Phone = ""
	if _, err := f.svc.VerifyPayment(context.Background(), f.user, noPhone); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error for missing phone, got %v", err)
	}
	if f.mem.OrderCount() != 0 {
		t.Fatal("no order may be created when preconditions fail")
	}
}

func TestPlaceCashOrder(t *testing.T) {
	f := newFixture(t)

	order, err := f.svc.PlaceCashOrder(context.Background(), f.user, f.orderData(2))
	if err != nil {
		t.Fatalf("PlaceCashOrder returned error: %v", err)
	}
	if order.PaymentStatus != models.PaymentStatusPending || order.OrderStatus != models.OrderStatusPending {
		t.Fatalf("expected pending/pending, got %s/%s", order.PaymentStatus, order.OrderStatus)
	}
	if order.PaymentMethod != models.PaymentMethodCash {
		t.Fatalf("expected CASH, got %s", order.PaymentMethod)
	}
	if len(order.OrderID) < 4 || order.OrderID[:3] != "ORD" {
		t.Fatalf("unexpected order id %q", order.OrderID)
	}
	if !f.cartEmpty(t) {
		t.Fatal("cart should be empty after checkout")
	}
}

func TestPlaceCashOrderInsufficientStockRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other := &models.Product{Name: "Nose Pin", Price: 200, Stock: 1, Category: primitive.NewObjectID()}
	if err := f.mem.Products().Create(ctx, other); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	data := f.orderData(2)
	data.Items = append(data.Items, ItemInput{ProductID: other.ID.Hex(), Quantity: 3})

	_, err := f.svc.PlaceCashOrder(ctx, f.user, data)
	if apperr.KindOf(err) != apperr.KindInsufficientStock {
		t.Fatalf("expected insufficient_stock, got %v", err)
	}
	product, _ := f.mem.Products().FindByID(ctx, f.product.ID)
	if product.Stock != 5 {
		t.Fatalf("reserved stock must be released, got %d", product.Stock)
	}
	if f.mem.OrderCount() != 0 {
		t.Fatal("no order may be created without stock")
	}
}

func TestPlaceCashOrderRejectsGatewayMethod(t *testing.T) {
	f := newFixture(t)
	data := f.orderData(1)
	data.PaymentMethod = models.PaymentMethodRazorpay
	if _, err := f.svc.PlaceCashOrder(context.Background(), f.user, data); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestWebhookPaymentFailedForUnknownOrder(t *testing.T) {
	f := newFixture(t)
	var event WebhookEvent
	event.Event = EventPaymentFailed
	event.Payload.Payment.Entity.OrderID = "order_missing"

	f.svc.HandleWebhook(context.Background(), event)

	if f.mem.OrderCount() != 0 {
		t.Fatal("webhook must not create orders")
	}
}

func TestWebhookPaymentFailedNeverRegressesPaid(t *testing.T) {
	f := newFixture(t)
	order, err := f.svc.VerifyPayment(context.Background(), f.user, f.verifyRequest("order_abc"))
	if err != nil {
		t.Fatalf("VerifyPayment returned error: %v", err)
	}

	var event WebhookEvent
	event.Event = EventPaymentFailed
	event.Payload.Payment.Entity.OrderID = "order_abc"
	f.svc.HandleWebhook(context.Background(), event)

	stored, _ := f.mem.Orders().FindByID(context.Background(), order.ID)
	if stored.PaymentStatus != models.PaymentStatusPaid {
		t.Fatalf("paid order regressed to %s", stored.PaymentStatus)
	}
}

func TestWebhookCapturedMarksPendingOrderPaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pending := &models.Order{
		OrderID:         "ORD1",
		User:            f.user.ID,
		PaymentMethod:   models.PaymentMethodRazorpay,
		PaymentStatus:   models.PaymentStatusPending,
		OrderStatus:     models.OrderStatusPending,
		RazorpayOrderID: "order_pending",
		CreatedAt:       time.Now(),
	}
	if err := f.mem.Orders().Create(ctx, pending); err != nil {
		t.Fatalf("seed order: %v", err)
	}

	var event WebhookEvent
	event.Event = EventPaymentCaptured
	event.Payload.Payment.Entity.ID = "pay_9"
	event.Payload.Payment.Entity.OrderID = "order_pending"
	f.svc.HandleWebhook(ctx, event)
	f.svc.HandleWebhook(ctx, event)

	stored, _ := f.mem.Orders().FindByID(ctx, pending.ID)
	if stored.PaymentStatus != models.PaymentStatusPaid || stored.OrderStatus != models.OrderStatusProcessing {
		t.Fatalf("expected paid/processing, got %s/%s", stored.PaymentStatus, stored.OrderStatus)
	}
	if stored.RazorpayPaymentID != "pay_9" || stored.ShiprocketOrderID == "" {
		t.Fatalf("unexpected order after webhook %+v", stored)
	}
	if f.shipping.created != 1 {
		t.Fatalf("duplicate delivery must not ship twice, shipped %d", f.shipping.created)
	}
}

func TestWebhookOrderPaidUsesOrderEntity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pending := &models.Order{OrderID: "ORD2", PaymentStatus: models.PaymentStatusPending, OrderStatus: models.OrderStatusPending, RazorpayOrderID: "order_x", CreatedAt: time.Now()}
	if err := f.mem.Orders().Create(ctx, pending); err != nil {
		t.Fatalf("seed order: %v", err)
	}

	var event WebhookEvent
	event.Event = EventOrderPaid
	event.Payload.Order.Entity.ID = "order_x"
	f.svc.HandleWebhook(ctx, event)

	stored, _ := f.mem.Orders().FindByID(ctx, pending.ID)
	if stored.PaymentStatus != models.PaymentStatusPaid {
		t.Fatalf("expected paid, got %s", stored.PaymentStatus)
	}
}

func TestGetOrderOwnership(t *testing.T) {
	f := newFixture(t)
	order, err := f.svc.PlaceCashOrder(context.Background(), f.user, f.orderData(1))
	if err != nil {
		t.Fatalf("PlaceCashOrder returned error: %v", err)
	}

	if _, err := f.svc.GetOrder(context.Background(), f.user, order.OrderID); err != nil {
		t.Fatalf("owner lookup by order id failed: %v", err)
	}
	if _, err := f.svc.GetOrder(context.Background(), f.admin, order.ID.Hex()); err != nil {
		t.Fatalf("admin lookup by storage id failed: %v", err)
	}
	stranger := &models.User{ID: primitive.NewObjectID(), Role: models.RoleUser}
	if _, err := f.svc.GetOrder(context.Background(), stranger, order.OrderID); apperr.KindOf(err) != apperr.KindForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := f.svc.GetOrder(context.Background(), f.user, "ORDnope"); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, err := f.svc.VerifyPayment(ctx, f.user, f.verifyRequest("order_abc"))
	if err != nil {
		t.Fatalf("VerifyPayment returned error: %v", err)
	}

	if _, err := f.svc.UpdateStatus(ctx, order.OrderID, StatusUpdate{Status: "lost"}); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, order.OrderID, StatusUpdate{PaymentStatus: models.PaymentStatusPending}); apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("paid must not regress to pending, got %v", err)
	}

	updated, err := f.svc.UpdateStatus(ctx, order.OrderID, StatusUpdate{Status: models.OrderStatusShipped})
	if err != nil || updated.OrderStatus != models.OrderStatusShipped {
		t.Fatalf("expected shipped, got %+v, %v", updated, err)
	}

	updated, err = f.svc.UpdateStatus(ctx, order.OrderID, StatusUpdate{Status: models.OrderStatusCancelled, PaymentStatus: models.PaymentStatusRefunded})
	if err != nil || updated.PaymentStatus != models.PaymentStatusRefunded {
		t.Fatalf("expected refunded, got %+v, %v", updated, err)
	}
	if len(f.shipping.cancelled) != 1 || f.shipping.cancelled[0] != order.ShiprocketOrderID {
		t.Fatalf("expected fulfillment to be cancelled, got %v", f.shipping.cancelled)
	}
}

func TestTrackRequiresShipment(t *testing.T) {
	f := newFixture(t)
	f.shipping.err = errors.New("down")
	order, err := f.svc.PlaceCashOrder(context.Background(), f.user, f.orderData(1))
	if err != nil {
		t.Fatalf("PlaceCashOrder returned error: %v", err)
	}
	if _, _, err := f.svc.Track(context.Background(), f.user, order.OrderID); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found without shipment, got %v", err)
	}
}

func TestListMarkSeenAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, err := f.svc.PlaceCashOrder(ctx, f.user, f.orderData(1))
	if err != nil {
		t.Fatalf("PlaceCashOrder returned error: %v", err)
	}

	unseen, total, err := f.svc.ListOrders(ctx, store.OrderFilter{Unseen: true})
	if err != nil || total != 1 || len(unseen) != 1 {
		t.Fatalf("expected one unseen order, got %d, %v", total, err)
	}
	if _, err := f.svc.MarkSeen(ctx, order.OrderID); err != nil {
		t.Fatalf("MarkSeen returned error: %v", err)
	}
	if _, total, _ = f.svc.ListOrders(ctx, store.OrderFilter{Unseen: true}); total != 0 {
		t.Fatalf("expected no unseen orders, got %d", total)
	}
	if _, _, err := f.svc.ListOrders(ctx, store.OrderFilter{OrderStatus: "bogus"}); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error for bad filter, got %v", err)
	}

	if err := f.svc.Delete(ctx, order.OrderID); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if f.mem.OrderCount() != 0 {
		t.Fatal("order should be deleted")
	}
}

// expiringOutbox refuses writes on a finished context, as the Mongo driver does.
type expiringOutbox struct {
	store.Outbox
}

func (o expiringOutbox) Insert(ctx context.Context, job *models.OutboxJob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return o.Outbox.Insert(ctx, job)
}

func (o expiringOutbox) MarkDone(ctx context.Context, id primitive.ObjectID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return o.Outbox.MarkDone(ctx, id)
}

func (o expiringOutbox) MarkFailed(ctx context.Context, id primitive.ObjectID, attempts int, lastError string, next time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return o.Outbox.MarkFailed(ctx, id, attempts, lastError, next)
}

func TestSideEffectsFinishAfterRequestDeadline(t *testing.T) {
	f := newFixture(t)
	f.shipping.delay = 80 * time.Millisecond
	svc := NewService(Deps{
		Products:   f.mem.Products(),
		Carts:      f.mem.Carts(),
		Orders:     f.mem.Orders(),
		Payments:   f.payments,
		Shipping:   f.shipping,
		Mailer:     f.mailer,
		Outbox:     outbox.NewDispatcher(expiringOutbox{f.mem.Outbox()}, f.mem.Orders(), 5),
		AdminEmail: "owner@example.com",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	order, err := svc.PlaceCashOrder(ctx, f.user, f.orderData(1))
	if err != nil {
		t.Fatalf("PlaceCashOrder returned error: %v", err)
	}
	if ctx.Err() == nil {
		t.Fatal("request context should have expired during the fan-out")
	}

	if order.ShiprocketOrderID == "" {
		t.Fatalf("fulfillment should complete after the request deadline, got %+v", order)
	}
	jobs := f.mem.Jobs()
	if len(jobs) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(jobs))
	}
	for _, job := range jobs {
		if job.Status != models.JobDone || job.Attempts != 1 {
			t.Fatalf("expected every job done, got %s status=%s attempts=%d", job.Kind, job.Status, job.Attempts)
		}
	}
	if !f.cartEmpty(t) {
		t.Fatal("cart should be cleared after the request deadline")
	}
}

func TestVerifyPaymentKeepsOrderWhenProductWasDeleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.mem.Products().Delete(ctx, f.product.ID); err != nil {
		t.Fatalf("delete product: %v", err)
	}

	req := f.verifyRequest("order_gone")
	req.OrderData.Items[0].Name = "Silver Anklet"
	order, err := f.svc.VerifyPayment(ctx, f.user, req)
	if err != nil {
		t.Fatalf("VerifyPayment returned error: %v", err)
	}
	if f.mem.OrderCount() != 1 {
		t.Fatalf("expected the paid order to be stored, have %d", f.mem.OrderCount())
	}
	if order.PaymentStatus != models.PaymentStatusPaid || order.RazorpayPaymentID != "pay_1" {
		t.Fatalf("unexpected payment fields %+v", order)
	}
	item := order.Items[0]
	if item.Product != f.product.ID || item.Name != "Silver Anklet" || item.Price != 500 || item.Quantity != 2 {
		t.Fatalf("expected the client line to be kept, got %+v", item)
	}
	if order.TotalAmount != 1000 {
		t.Fatalf("expected total 1000 from the client line, got %v", order.TotalAmount)
	}
}

func TestCashOrderStillRejectsDeletedProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.mem.Products().Delete(ctx, f.product.ID); err != nil {
		t.Fatalf("delete product: %v", err)
	}

	_, err := f.svc.PlaceCashOrder(ctx, f.user, f.orderData(1))
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if f.mem.OrderCount() != 0 {
		t.Fatal("no order should be stored")
	}
}
