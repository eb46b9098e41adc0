package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gamyacollections/internal/checkout"
)

func CreateRazorpayOrder(orders *checkout.Service, keyID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/razorpay/create-order"
		defer handlePanic(c, route)

		var req checkout.CreateOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, route, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		order, err := orders.CreateGatewayOrder(ctx, req)
		if err != nil {
			respondError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "order": order, "key_id": keyID})
	}
}

func VerifyRazorpayPayment(orders *checkout.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/razorpay/verify-payment"
		defer handlePanic(c, route)

		user, ok := currentUser(c, route)
		if !ok {
			return
		}

		var req checkout.VerifyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, route, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		order, err := orders.VerifyPayment(ctx, user, req)
		if err != nil {
			respondError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success":   true,
			"message":   "Payment verified successfully",
			"order":     order,
			"orderId":   order.OrderID,
			"paymentId": req.RazorpayPaymentID,
		})
	}
}

// RazorpayPaymentFailed echoes a client-reported failure back with a 400.
func RazorpayPaymentFailed(orders *checkout.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/razorpay/payment-failed"
		defer handlePanic(c, route)

		user, ok := currentUser(c, route)
		if !ok {
			return
		}

		var req checkout.PaymentFailure
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, route, err)
			return
		}

		message := orders.RecordPaymentFailure(c.Request.Context(), user, req)
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": message, "error": req.Error})
	}
}
