package middleware

import (
	"github.com/gin-gonic/gin"

	"gamyacollections/internal/apperr"
	"gamyacollections/internal/models"
)

const userKey = "user"

// CurrentUser returns the user loaded by Auth.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	value, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	user, ok := value.(*models.User)
	return user, ok && user != nil
}

// AdminOnly must run after Auth.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			abort(c, apperr.Unauthorized("Not authorized"))
			return
		}
		if !user.IsAdmin() {
			abort(c, apperr.Forbidden("Admin access required"))
			return
		}
		c.Next()
	}
}

func abort(c *gin.Context, err *apperr.Error) {
	c.AbortWithStatusJSON(apperr.HTTPStatus(err.Kind), gin.H{
		"success": false,
		"message": err.Message,
		"kind":    err.Kind,
	})
}
