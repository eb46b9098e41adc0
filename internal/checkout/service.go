// Package checkout is the order workflow: it turns a verified payment or a
// cash checkout into a durable order and fans out the side effects.
package checkout

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"gamyacollections/internal/apperr"
	"gamyacollections/internal/keylock"
	"gamyacollections/internal/mailer"
	"gamyacollections/internal/models"
	"gamyacollections/internal/outbox"
	"gamyacollections/internal/payment"
	"gamyacollections/internal/shipping"
	"gamyacollections/internal/store"
)

type PaymentGateway interface {
	KeyID() string
	CreateOrder(ctx context.Context, amount decimal.Decimal, currency, receipt string) (*payment.GatewayOrder, error)
	VerifyPaymentSignature(orderID, paymentID, signature string) bool
}

type ShippingGateway interface {
	CreateOrder(ctx context.Context, order models.Order) (*shipping.Shipment, error)
	Track(ctx context.Context, shipmentID string) (map[string]interface{}, error)
	CancelOrders(ctx context.Context, ids []string) error
}

type Deps struct {
	Products   store.Products
	Carts      store.Carts
	Orders     store.Orders
	Payments   PaymentGateway
	Shipping   ShippingGateway
	Mailer     mailer.Mailer
	Outbox     *outbox.Dispatcher
	AdminEmail string
}

type Service struct {
	products   store.Products
	carts      store.Carts
	orders     store.Orders
	payments   PaymentGateway
	shipping   ShippingGateway
	mailer     mailer.Mailer
	outbox     *outbox.Dispatcher
	adminEmail string

	locks *keylock.Mutex
	now   func() time.Time
}

// NewService wires the workflow and registers its side effects on the
// outbox dispatcher.
func NewService(d Deps) *Service {
	s := &Service{
		products:   d.Products,
		carts:      d.Carts,
		orders:     d.Orders,
		payments:   d.Payments,
		shipping:   d.Shipping,
		mailer:     d.Mailer,
		outbox:     d.Outbox,
		adminEmail: d.AdminEmail,
		locks:      keylock.New(),
		now:        time.Now,
	}
	if s.mailer == nil {
		s.mailer = mailer.Noop{}
	}

	s.outbox.Register(models.JobCustomerEmail, s.sendCustomerEmail)
	s.outbox.Register(models.JobAdminEmail, s.sendAdminEmail)
	s.outbox.Register(models.JobFulfillment, s.createFulfillment)
	return s
}

// resolve finds an order by storage id or by its human order id.
func (s *Service) resolve(ctx context.Context, ref string) (*models.Order, error) {
	if id, err := primitive.ObjectIDFromHex(ref); err == nil {
		order, err := s.orders.FindByID(ctx, id)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, apperr.Internal("failed to load order", err)
		}
	}

	order, err := s.orders.FindByOrderID(ctx, ref)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("Order not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load order", err)
	}
	return order, nil
}

func canView(user *models.User, order *models.Order) bool {
	return user.IsAdmin() || order.User == user.ID
}

// reload returns the freshest copy of an order, falling back to the given one.
func (s *Service) reload(ctx context.Context, order *models.Order) *models.Order {
	fresh, err := s.orders.FindByID(ctx, order.ID)
	if err != nil {
		log.Println("[ORDER] [WARN] failed to reload order:", order.OrderID, err)
		return order
	}
	return fresh
}
