// Package store holds the repositories used by the order workflow. Each
// repository has a Mongo implementation and an in-memory one for tests.
package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"gamyacollections/internal/models"
)

var (
	ErrNotFound  = errors.New("document not found")
	ErrDuplicate = errors.New("duplicate key")
)

// CollectionNames holds the deployment specific collection names.
type CollectionNames struct {
	Users         string
	Products      string
	Categories    string
	SubCategories string
	Carts         string
	Orders        string
	Outbox        string
}

func Collections(prefix string) CollectionNames {
	return CollectionNames{
		Users:         prefix + "users",
		Products:      prefix + "products",
		Categories:    prefix + "categories",
		SubCategories: prefix + "subcategories",
		Carts:         prefix + "carts",
		Orders:        prefix + "orders",
		Outbox:        prefix + "outbox",
	}
}

type Users interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	SetResetOTP(ctx context.Context, id primitive.ObjectID, otp string, expiry time.Time) error
	ResetPassword(ctx context.Context, id primitive.ObjectID, passwordHash string) error
}

type ProductFilter struct {
	Category    *primitive.ObjectID
	SubCategory *primitive.ObjectID
	Featured    *bool
	Bestseller  *bool
	Search      string
	Page        int64
	Limit       int64
}

// ProductUpdate carries only the fields to change.
type ProductUpdate struct {
	Name          *string
	Description   *string
	Price         *float64
	DiscountPrice *float64
	Category      *primitive.ObjectID
	SubCategory   *primitive.ObjectID
	Stock         *int
	Images        []string
	Featured      *bool
	Bestseller    *bool
	Sizes         []string
	Colors        []string
}

type Products interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	List(ctx context.Context, filter ProductFilter) ([]models.Product, int64, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, id primitive.ObjectID, update ProductUpdate) (*models.Product, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	// ReserveStock decrements stock only when at least qty units remain.
	ReserveStock(ctx context.Context, id primitive.ObjectID, qty int) (bool, error)
	ReleaseStock(ctx context.Context, id primitive.ObjectID, qty int) error
}

type Carts interface {
	FindByUser(ctx context.Context, user primitive.ObjectID) (*models.Cart, error)
	Save(ctx context.Context, cart *models.Cart) error
	DeleteByUser(ctx context.Context, user primitive.ObjectID) error
}

type OrderFilter struct {
	OrderStatus   models.OrderStatus
	PaymentStatus models.PaymentStatus
	Unseen        bool
	Page          int64
	Limit         int64
}

type Fulfillment struct {
	ShiprocketOrderID    string
	ShiprocketShipmentID string
	TrackingNumber       string
}

type Orders interface {
	// Create fails with ErrDuplicate when the orderId or razorpayOrderId is
	// already taken.
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	FindByOrderID(ctx context.Context, orderID string) (*models.Order, error)
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error)
	ListByUser(ctx context.Context, user primitive.ObjectID) ([]models.Order, error)
	List(ctx context.Context, filter OrderFilter) ([]models.Order, int64, error)
	// MarkPaid flips an order that is not yet paid to paid/processing.
	// changed is false when the order was already paid.
	MarkPaid(ctx context.Context, gatewayOrderID, paymentID string) (order *models.Order, changed bool, err error)
	// MarkFailed sets failed/cancelled unless the order is already paid.
	MarkFailed(ctx context.Context, gatewayOrderID string) (order *models.Order, changed bool, err error)
	UpdateStatus(ctx context.Context, id primitive.ObjectID, orderStatus models.OrderStatus, paymentStatus models.PaymentStatus) (*models.Order, error)
	SetFulfillment(ctx context.Context, id primitive.ObjectID, f Fulfillment) error
	MarkNotified(ctx context.Context, id primitive.ObjectID, kind models.JobKind) error
	MarkSeen(ctx context.Context, id primitive.ObjectID) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type Outbox interface {
	Insert(ctx context.Context, job *models.OutboxJob) error
	// Due returns failed jobs whose retry time has come plus pending jobs
	// untouched since staleBefore, oldest first.
	Due(ctx context.Context, now, staleBefore time.Time, maxAttempts int, limit int64) ([]models.OutboxJob, error)
	MarkDone(ctx context.Context, id primitive.ObjectID) error
	MarkFailed(ctx context.Context, id primitive.ObjectID, attempts int, lastError string, next time.Time) error
}
