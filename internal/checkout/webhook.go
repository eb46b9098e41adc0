package checkout

import (
	"context"
	"errors"
	"log"

	"gamyacollections/internal/models"
	"gamyacollections/internal/store"
)

const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
	EventOrderPaid       = "order.paid"
)

type entityID struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// WebhookEvent is the subset of the gateway's webhook body we act on.
type WebhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity entityID `json:"entity"`
		} `json:"payment"`
		Order struct {
			Entity entityID `json:"entity"`
		} `json:"order"`
	} `json:"payload"`
}

func (e WebhookEvent) gatewayOrderID() string {
	if id := e.Payload.Payment.Entity.OrderID; id != "" {
		return id
	}
	return e.Payload.Order.Entity.ID
}

// HandleWebhook reconciles an order with a gateway event. It never fails:
// the gateway always gets an acknowledgement, problems are logged.
func (s *Service) HandleWebhook(ctx context.Context, event WebhookEvent) {
	defer func() {
		if r := recover(); r != nil {
			log.Println("[WEBHOOK] [ERROR] panic while handling", event.Event, r)
		}
	}()

	gatewayOrderID := event.gatewayOrderID()

	switch event.Event {
	case EventPaymentCaptured, EventOrderPaid:
		if gatewayOrderID == "" {
			log.Println("[WEBHOOK] [WARN] event without order id:", event.Event)
			return
		}
		order, changed, err := s.orders.MarkPaid(ctx, gatewayOrderID, event.Payload.Payment.Entity.ID)
		if errors.Is(err, store.ErrNotFound) {
			log.Println("[WEBHOOK] [WARN] no order for gateway order", gatewayOrderID)
			return
		}
		if err != nil {
			log.Println("[WEBHOOK] [ERROR] failed to mark paid:", gatewayOrderID, err)
			return
		}
		if !changed {
			log.Println("[WEBHOOK] [INFO] order already paid:", order.OrderID)
			return
		}
		log.Println("[WEBHOOK] [INFO] order marked paid:", order.OrderID)
		s.outbox.Enqueue(ctx, order, models.JobFulfillment)

	case EventPaymentFailed:
		if gatewayOrderID == "" {
			log.Println("[WEBHOOK] [WARN] event without order id:", event.Event)
			return
		}
		order, changed, err := s.orders.MarkFailed(ctx, gatewayOrderID)
		if errors.Is(err, store.ErrNotFound) {
			log.Println("[WEBHOOK] [WARN] no order for gateway order", gatewayOrderID)
			return
		}
		if err != nil {
			log.Println("[WEBHOOK] [ERROR] failed to mark failed:", gatewayOrderID, err)
			return
		}
		if !changed {
			log.Println("[WEBHOOK] [WARN] ignoring payment.failed for paid order:", order.OrderID)
			return
		}
		log.Println("[WEBHOOK] [INFO] order payment failed:", order.OrderID)

	default:
		log.Println("[WEBHOOK] [INFO] ignoring event:", event.Event)
	}
}
