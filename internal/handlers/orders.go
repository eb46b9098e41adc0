package handlers

import (
	"bytes"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"gamyacollections/internal/apperr"
	"gamyacollections/internal/checkout"
	"gamyacollections/internal/models"
	"gamyacollections/internal/receipt"
	"gamyacollections/internal/store"
)

// PlaceOrder creates a CASH or UPI order that is paid on delivery.
func PlaceOrder(orders *checkout.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/orders/place"
		defer handlePanic(c, route)

		user, ok := currentUser(c, route)
		if !ok {
			return
		}

		var req checkout.OrderData
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, route, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		order, err := orders.PlaceCashOrder(ctx, user, req)
		if err != nil {
			respondError(c, route, err)
			return
		}

		log.Printf("[%s] order placed %s", route, order.OrderID)
		c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Order placed successfully", "order": order})
	}
}

func GetMyOrders(orders *checkout.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/orders/myorders"
		defer handlePanic(c, route)

		user, ok := currentUser(c, route)
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		list, err := orders.MyOrders(ctx, user)
		if err != nil {
			respondError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "orders": list})
	}
}

func GetOrder(orders *checkout.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/orders/:orderId"
		defer handlePanic(c, route)

		user, ok := currentUser(c, route)
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		order, err := orders.GetOrder(ctx, user, c.Param("orderId"))
		if err != nil {
			respondError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "order": order})
	}
}

func TrackOrder(orders *checkout.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/orders/:orderId/track"
		defer handlePanic(c, route)

		user, ok := currentUser(c, route)
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		order, tracking, err := orders.Track(ctx, user, c.Param("orderId"))
		if err != nil {
			respondError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success":        true,
			"orderId":        order.OrderID,
			"trackingNumber": order.TrackingNumber,
			"tracking":       tracking,
		})
	}
}

func DownloadReceipt(orders *checkout.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/orders/receipt/:orderId"
		defer handlePanic(c, route)

		user, ok := currentUser(c, route)
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		order, err := orders.GetOrder(ctx, user, c.Param("orderId"))
		if err != nil {
			respondError(c, route, err)
			return
		}

		var buf bytes.Buffer
		if err := receipt.Render(&buf, *order); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "failed to render receipt")
			log.Printf("[%s] [ERROR] receipt render failed for %s: %v", route, order.OrderID, err)
			return
		}

		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=receipt-%s.pdf", order.OrderID))
		c.Data(http.StatusOK, "application/pdf", buf.Bytes())
	}
}

/*
GET /api/orders (admin)
- ?status= ?paymentStatus= ?unseen=true
- page + limit optional, defaults 1/20
*/
func ListOrders(orders *checkout.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/orders"
		defer handlePanic(c, route)

		filter, err := orderFilterFromQuery(c)
		if err != nil {
			respondError(c, route, err)
			return
		}
		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondError(c, route, err)
			return
		}
		filter.Page, filter.Limit = page, limit

		ctx, cancel := requestContext(c)
		defer cancel()

		list, total, err := orders.ListOrders(ctx, filter)
		if err != nil {
			respondError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success":    true,
			"orders":     list,
			"pagination": paginationMeta(page, limit, total),
		})
	}
}

func orderFilterFromQuery(c *gin.Context) (store.OrderFilter, error) {
	filter := store.OrderFilter{
		OrderStatus:   models.OrderStatus(strings.TrimSpace(c.Query("status"))),
		PaymentStatus: models.PaymentStatus(strings.TrimSpace(c.Query("paymentStatus"))),
	}
	if value := strings.TrimSpace(c.Query("unseen")); value != "" {
		unseen, err := parseBoolValue(value)
		if err != nil {
			return filter, apperr.Validation("unseen must be a boolean")
		}
		filter.Unseen = unseen
	}
	return filter, nil
}

func UpdateOrderStatus(orders *checkout.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /api/orders/:orderId/status"
		defer handlePanic(c, route)

		var req checkout.StatusUpdate
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, route, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		order, err := orders.UpdateStatus(ctx, c.Param("orderId"), req)
		if err != nil {
			respondError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "order": order})
	}
}

func MarkOrderSeen(orders *checkout.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /api/orders/:orderId/seen"
		defer handlePanic(c, route)

		ctx, cancel := requestContext(c)
		defer cancel()

		order, err := orders.MarkSeen(ctx, c.Param("orderId"))
		if err != nil {
			respondError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "order": order})
	}
}

func DeleteOrder(orders *checkout.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /api/orders/:orderId"
		defer handlePanic(c, route)

		ctx, cancel := requestContext(c)
		defer cancel()

		if err := orders.Delete(ctx, c.Param("orderId")); err != nil {
			respondError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Order deleted"})
	}
}
