package models

import (
	"encoding/json"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "CASH"
	PaymentMethodUPI      PaymentMethod = "UPI"
	PaymentMethodRazorpay PaymentMethod = "RAZORPAY"
)

func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodUPI, PaymentMethodRazorpay:
		return true
	default:
		return false
	}
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	default:
		return false
	}
}

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// OrderItem is a frozen copy of a cart line at checkout time.
type OrderItem struct {
	Product  primitive.ObjectID `bson:"product" json:"product"`
	Name     string             `bson:"name" json:"name"`
	Image    string             `bson:"image,omitempty" json:"image,omitempty"`
	Quantity int                `bson:"quantity" json:"quantity"`
	Price    float64            `bson:"price" json:"price"`
	Size     string             `bson:"size,omitempty" json:"size,omitempty"`
	Color    string             `bson:"color,omitempty" json:"color,omitempty"`
}

// ShippingAddress is stored by value on the order.
type ShippingAddress struct {
	Name    string `bson:"name" json:"name"`
	Phone   string `bson:"phone" json:"phone"`
	Email   string `bson:"email,omitempty" json:"email,omitempty"`
	Address string `bson:"address" json:"address"`
	City    string `bson:"city" json:"city"`
	State   string `bson:"state" json:"state"`
	Pincode string `bson:"pincode" json:"pincode"`
	Country string `bson:"country,omitempty" json:"country,omitempty"`
}

// Order defines the persisted order document.
type Order struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	OrderID         string             `bson:"orderId" json:"orderId"`
	User            primitive.ObjectID `bson:"user" json:"user"`
	UserName        string             `bson:"userName" json:"userName"`
	UserEmail       string             `bson:"userEmail" json:"userEmail"`
	Items           []OrderItem        `bson:"items" json:"items"`
	TotalAmount     float64            `bson:"totalAmount" json:"totalAmount"`
	PaymentMethod   PaymentMethod      `bson:"paymentMethod" json:"paymentMethod"`
	PaymentStatus   PaymentStatus      `bson:"paymentStatus" json:"paymentStatus"`
	OrderStatus     OrderStatus        `bson:"orderStatus" json:"orderStatus"`
	ShippingAddress ShippingAddress    `bson:"shippingAddress" json:"shippingAddress"`

	RazorpayOrderID   string `bson:"razorpayOrderId,omitempty" json:"razorpayOrderId,omitempty"`
	RazorpayPaymentID string `bson:"razorpayPaymentId,omitempty" json:"razorpayPaymentId,omitempty"`
	RazorpaySignature string `bson:"razorpaySignature,omitempty" json:"razorpaySignature,omitempty"`

	ShiprocketOrderID    string `bson:"shiprocketOrderId,omitempty" json:"shiprocketOrderId,omitempty"`
	ShiprocketShipmentID string `bson:"shiprocketShipmentId,omitempty" json:"shiprocketShipmentId,omitempty"`
	TrackingNumber       string `bson:"trackingNumber,omitempty" json:"trackingNumber,omitempty"`

	UserEmailSent  bool `bson:"userEmailSent" json:"userEmailSent"`
	AdminEmailSent bool `bson:"adminEmailSent" json:"adminEmailSent"`
	SeenByAdmin    bool `bson:"seenByAdmin" json:"seenByAdmin"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// MarshalJSON adds the legacy "status" field older clients still read.
func (o Order) MarshalJSON() ([]byte, error) {
	type order Order
	return json.Marshal(struct {
		order
		Status OrderStatus `json:"status"`
	}{order: order(o), Status: o.OrderStatus})
}
