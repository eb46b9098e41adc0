// Package payment wraps the Razorpay gateway: order creation through the
// official SDK plus the HMAC checks for checkout callbacks and webhooks.
package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log"
	"strings"
	"time"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/shopspring/decimal"

	"gamyacollections/internal/apperr"
)

const DefaultCurrency = "INR"

var ErrNotConfigured = errors.New("razorpay key id or secret is not configured")

// GatewayOrder is the ephemeral gateway-side order the client pays against.
type GatewayOrder struct {
	ID       string `json:"id"`
	Entity   string `json:"entity"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// orderAPI is the subset of the SDK's order resource we call.
type orderAPI interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

type Config struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
	Timeout       time.Duration
}

type Razorpay struct {
	keyID         string
	keySecret     string
	webhookSecret string
	timeout       time.Duration
	orders        orderAPI
}

func NewRazorpay(cfg Config) *Razorpay {
	r := &Razorpay{
		keyID:         cfg.KeyID,
		keySecret:     cfg.KeySecret,
		webhookSecret: cfg.WebhookSecret,
		timeout:       cfg.Timeout,
	}
	if r.timeout <= 0 {
		r.timeout = 30 * time.Second
	}
	if cfg.KeyID != "" && cfg.KeySecret != "" {
		r.orders = razorpay.NewClient(cfg.KeyID, cfg.KeySecret).Order
	}
	if cfg.WebhookSecret == "" {
		log.Println("[RAZORPAY] [WARN] webhook secret not set, webhook signatures will not be verified")
	}
	return r
}

func (r *Razorpay) KeyID() string { return r.keyID }

// ToMinorUnits converts rupees to paise, rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// CreateOrder registers an intended charge with the gateway. Nothing is
// persisted locally.
func (r *Razorpay) CreateOrder(ctx context.Context, amount decimal.Decimal, currency, receipt string) (*GatewayOrder, error) {
	if r.orders == nil {
		return nil, apperr.Wrap(apperr.KindConfiguration, "payment gateway is not configured", ErrNotConfigured)
	}
	if currency == "" {
		currency = DefaultCurrency
	}

	data := map[string]interface{}{
		"amount":          ToMinorUnits(amount),
		"currency":        currency,
		"receipt":         receipt,
		"payment_capture": 1,
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type result struct {
		body map[string]interface{}
		err  error
	}
	done := make(chan result, 1)
	go func() {
		body, err := r.orders.Create(data, nil)
		done <- result{body: body, err: err}
	}()

	var res result
	select {
	case <-ctx.Done():
		return nil, apperr.Wrap(apperr.KindGatewayUnavailable, "payment gateway timed out", ctx.Err())
	case res = <-done:
	}

	if res.err != nil {
		return nil, classify(res.err)
	}
	return parseOrder(res.body, currency, receipt)
}

func classify(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "authentication") || strings.Contains(msg, "unauthorized") {
		log.Println("[RAZORPAY] [ERROR] authentication failed:", err)
		return apperr.Wrap(apperr.KindGatewayAuth, "payment gateway authentication failed", err)
	}
	log.Println("[RAZORPAY] [ERROR] order create rejected:", err)
	return apperr.Wrap(apperr.KindGatewayRejected, err.Error(), err)
}

func parseOrder(body map[string]interface{}, currency, receipt string) (*GatewayOrder, error) {
	id, _ := body["id"].(string)
	if id == "" {
		return nil, apperr.New(apperr.KindGatewayRejected, "payment gateway returned no order id")
	}

	order := &GatewayOrder{
		ID:       id,
		Entity:   stringField(body, "entity"),
		Currency: stringField(body, "currency"),
		Receipt:  stringField(body, "receipt"),
		Status:   stringField(body, "status"),
	}
	if order.Currency == "" {
		order.Currency = currency
	}
	if order.Receipt == "" {
		order.Receipt = receipt
	}
	switch v := body["amount"].(type) {
	case float64:
		order.Amount = int64(v)
	case int64:
		order.Amount = v
	case int:
		order.Amount = int64(v)
	}
	return order, nil
}

func stringField(body map[string]interface{}, key string) string {
	if v, ok := body[key].(string); ok {
		return v
	}
	return ""
}

// PaymentSignature is the hex HMAC-SHA256 of "orderID|paymentID".
func PaymentSignature(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// WebhookSignature is the hex HMAC-SHA256 of the raw webhook body.
func WebhookSignature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (r *Razorpay) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	if r.keySecret == "" || signature == "" {
		return false
	}
	expected := PaymentSignature(r.keySecret, orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (r *Razorpay) WebhookVerificationEnabled() bool {
	return r.webhookSecret != ""
}

func (r *Razorpay) VerifyWebhookSignature(body []byte, signature string) bool {
	if r.webhookSecret == "" || signature == "" {
		return false
	}
	expected := WebhookSignature(r.webhookSecret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}
