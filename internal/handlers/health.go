package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
)

// Health reports whether the primary database answers a ping.
func Health(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /health"

		if err := ensureDBConnection(c.Request.Context(), db); err != nil {
			log.Printf("[%s] [ERROR] database ping failed: %v", route, err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "database": "unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "database": "up"})
	}
}
