package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"gamyacollections/internal/checkout"
)

const maxWebhookBody = 1 << 20

// WebhookVerifier checks the gateway signature over the raw body.
type WebhookVerifier interface {
	WebhookVerificationEnabled() bool
	VerifyWebhookSignature(body []byte, signature string) bool
}

// RazorpayWebhook acknowledges every event with 200 once the signature (when
// enabled) checks out. Reconciliation problems are only logged.
func RazorpayWebhook(orders *checkout.Service, verifier WebhookVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /webhooks/razorpay"
		defer handlePanic(c, route)

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "unreadable body")
			return
		}

		if verifier.WebhookVerificationEnabled() &&
			!verifier.VerifyWebhookSignature(body, c.GetHeader("X-Razorpay-Signature")) {
			log.Printf("[%s] [WARN] invalid webhook signature", route)
			respondWithError(c, http.StatusBadRequest, route, "invalid signature")
			return
		}

		var event checkout.WebhookEvent
		if err := json.Unmarshal(body, &event); err != nil {
			log.Printf("[%s] [WARN] undecodable webhook body: %v", route, err)
			c.JSON(http.StatusOK, gin.H{"received": true})
			return
		}

		log.Printf("[%s] event=%s", route, event.Event)
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		orders.HandleWebhook(ctx, event)

		c.JSON(http.StatusOK, gin.H{"received": true})
	}
}
