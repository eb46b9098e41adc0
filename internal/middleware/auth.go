package middleware

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"gamyacollections/internal/apperr"
	"gamyacollections/internal/store"
)

// TokenCookie is the HTTP-only cookie set at login.
const TokenCookie = "token"

// Auth validates the request's JWT and loads the user it names. The user is
// re-read on every request so role changes and deletions apply at once.
func Auth(secret string, users store.Users) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := tokenFromRequest(c)
		if raw == "" {
			abort(c, apperr.Unauthorized("Not authorized, no token"))
			return
		}

		token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			log.Println("[AUTH] [ERROR] token validation failed:", err)
			abort(c, apperr.Unauthorized("Not authorized, token failed"))
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			log.Println("[AUTH] [ERROR] token claims invalid")
			abort(c, apperr.Unauthorized("Not authorized, token failed"))
			return
		}

		userID, ok := userIDFromClaims(claims)
		if !ok {
			log.Println("[AUTH] [ERROR] user id claim missing")
			abort(c, apperr.Unauthorized("Not authorized, token failed"))
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		user, err := users.FindByID(ctx, userID)
		if errors.Is(err, store.ErrNotFound) {
			log.Println("[AUTH] [ERROR] token user no longer exists:", userID.Hex())
			abort(c, apperr.Unauthorized("User not found"))
			return
		}
		if err != nil {
			log.Println("[AUTH] [ERROR] user lookup failed:", err)
			abort(c, apperr.Internal("Authentication failed", err))
			return
		}

		c.Set(userKey, user)
		c.Next()
	}
}

// tokenFromRequest prefers the cookie, then the bearer header, then the
// legacy x-access-token header.
func tokenFromRequest(c *gin.Context) string {
	if cookie, err := c.Cookie(TokenCookie); err == nil && strings.TrimSpace(cookie) != "" {
		return strings.TrimSpace(cookie)
	}

	raw := strings.TrimSpace(c.GetHeader("Authorization"))
	if parts := strings.Fields(raw); len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1]
	}

	return strings.TrimSpace(c.GetHeader("x-access-token"))
}

func userIDFromClaims(claims jwt.MapClaims) (primitive.ObjectID, bool) {
	for _, key := range []string{"id", "userId", "_id", "sub"} {
		value, ok := claims[key].(string)
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		id, err := primitive.ObjectIDFromHex(value)
		if err != nil {
			continue
		}
		return id, true
	}
	return primitive.NilObjectID, false
}
