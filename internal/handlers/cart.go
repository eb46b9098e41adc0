package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gamyacollections/internal/cart"
)

func GetCart(carts *cart.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/cart"
		defer handlePanic(c, route)

		user, ok := currentUser(c, route)
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		view, err := carts.Get(ctx, user.ID)
		if err != nil {
			respondError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "cart": view})
	}
}

func AddToCart(carts *cart.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/cart/add"
		defer handlePanic(c, route)

		user, ok := currentUser(c, route)
		if !ok {
			return
		}

		var req cart.ItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, route, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		view, err := carts.AddItem(ctx, user.ID, req)
		if err != nil {
			respondError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "cart": view})
	}
}

func UpdateCartItem(carts *cart.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /api/cart/update"
		defer handlePanic(c, route)

		user, ok := currentUser(c, route)
		if !ok {
			return
		}

		var req cart.ItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, route, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		view, err := carts.UpdateItem(ctx, user.ID, req)
		if err != nil {
			respondError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "cart": view})
	}
}

// RemoveFromCart takes optional ?size= and ?color= to drop a single variant.
func RemoveFromCart(carts *cart.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /api/cart/remove/:productId"
		defer handlePanic(c, route)

		user, ok := currentUser(c, route)
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		view, err := carts.RemoveItem(ctx, user.ID, c.Param("productId"), c.Query("size"), c.Query("color"))
		if err != nil {
			respondError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "cart": view})
	}
}

func ClearCart(carts *cart.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /api/cart/clear"
		defer handlePanic(c, route)

		user, ok := currentUser(c, route)
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		if err := carts.Clear(ctx, user.ID); err != nil {
			respondError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Cart cleared"})
	}
}
