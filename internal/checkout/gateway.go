package checkout

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"gamyacollections/internal/apperr"
	"gamyacollections/internal/models"
	"gamyacollections/internal/payment"
	"gamyacollections/internal/store"
)

type CreateOrderRequest struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Receipt  string  `json:"receipt"`
}

// CreateGatewayOrder registers the intended charge with the payment gateway.
// Nothing is stored until the payment is verified.
func (s *Service) CreateGatewayOrder(ctx context.Context, req CreateOrderRequest) (*payment.GatewayOrder, error) {
	if req.Amount <= 0 {
		return nil, apperr.Validation("Amount must be a positive number")
	}
	receipt := strings.TrimSpace(req.Receipt)
	if receipt == "" {
		receipt = "rcpt_" + uuid.NewString()
	}
	// The gateway caps receipts at 40 characters.
	if len(receipt) > 40 {
		receipt = receipt[:40]
	}

	order, err := s.payments.CreateOrder(ctx, decimal.NewFromFloat(req.Amount), strings.TrimSpace(req.Currency), receipt)
	if err != nil {
		return nil, err
	}
	log.Println("[RAZORPAY] [INFO] gateway order created:", order.ID, order.Amount, order.Currency)
	return order, nil
}

type VerifyRequest struct {
	RazorpayOrderID   string    `json:"razorpay_order_id"`
	RazorpayPaymentID string    `json:"razorpay_payment_id"`
	RazorpaySignature string    `json:"razorpay_signature"`
	OrderData         OrderData `json:"orderData"`
}

// VerifyPayment authenticates the checkout callback and materializes the
// order. Once the order is stored it stays stored whatever the side effects do.
func (s *Service) VerifyPayment(ctx context.Context, user *models.User, req VerifyRequest) (*models.Order, error) {
	if req.RazorpayOrderID == "" || req.RazorpayPaymentID == "" || req.RazorpaySignature == "" {
		return nil, apperr.Validation("Missing payment verification fields")
	}
	if !s.payments.VerifyPaymentSignature(req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature) {
		log.Println("[RAZORPAY] [WARN] invalid payment signature for", req.RazorpayOrderID, "user", user.ID.Hex())
		return nil, apperr.New(apperr.KindInvalidSignature, "Invalid payment signature")
	}
	if err := req.OrderData.validate(); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(user.ID.Hex())
	defer unlock()

	existing, err := s.orders.FindByGatewayOrderID(ctx, req.RazorpayOrderID)
	if err == nil {
		log.Println("[RAZORPAY] [WARN] replayed verification for", req.RazorpayOrderID, "order", existing.OrderID)
		return nil, apperr.New(apperr.KindDuplicatePayment, "Payment has already been processed")
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Internal("failed to check payment", err)
	}

	items, total, err := s.snapshot(ctx, req.OrderData, true)
	if err != nil {
		return nil, err
	}

	order := s.newOrder(user, req.OrderData, items, total)
	order.PaymentMethod = models.PaymentMethodRazorpay
	order.PaymentStatus = models.PaymentStatusPaid
	order.OrderStatus = models.OrderStatusProcessing
	order.RazorpayOrderID = req.RazorpayOrderID
	order.RazorpayPaymentID = req.RazorpayPaymentID
	order.RazorpaySignature = req.RazorpaySignature

	if err := s.insert(ctx, order); err != nil {
		return nil, err
	}
	log.Println("[ORDER] [INFO] paid order created:", order.OrderID, "gateway", order.RazorpayOrderID)

	// Payment is already captured, so a stock shortfall is logged for the
	// admins rather than refused.
	for _, item := range order.Items {
		ok, err := s.products.ReserveStock(ctx, item.Product, item.Quantity)
		if err != nil || !ok {
			log.Println("[ORDER] [WARN] stock not decremented:", order.OrderID, item.Product.Hex(), item.Quantity, err)
		}
	}

	return s.afterPlacement(ctx, order), nil
}

type PaymentFailure struct {
	Error     interface{} `json:"error"`
	OrderData OrderData   `json:"orderData"`
}

// RecordPaymentFailure logs a client-reported failed payment and returns the
// message to echo back. No order is written.
func (s *Service) RecordPaymentFailure(_ context.Context, user *models.User, f PaymentFailure) string {
	message := "Payment failed"
	if details, ok := f.Error.(map[string]interface{}); ok {
		if desc, ok := details["description"].(string); ok && desc != "" {
			message = desc
		}
	} else if text, ok := f.Error.(string); ok && text != "" {
		message = text
	}
	log.Println("[RAZORPAY] [WARN] payment failed for user", user.ID.Hex(), "items", len(f.OrderData.Items), ":", message)
	return message
}
