package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"gamyacollections/internal/apperr"
	"gamyacollections/internal/config"
	"gamyacollections/internal/middleware"
	"gamyacollections/internal/models"
	"gamyacollections/internal/store"
)

const requestTimeout = 10 * time.Second

func handlePanic(c *gin.Context, route string) {
	if r := recover(); r != nil {
		log.Printf("[%s] panic recovered: %v", route, r)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "internal server error",
			"kind":    apperr.KindInternal,
		})
	}
}

func ensureDBConnection(ctx context.Context, db *mongo.Database) error {
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return db.Client().Ping(checkCtx, readpref.Primary())
}

func requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), requestTimeout)
}

// respondError writes the failure envelope. The underlying cause is only
// exposed outside production.
func respondError(c *gin.Context, route string, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)
	message := apperr.MessageOf(err)

	if status >= http.StatusInternalServerError {
		log.Printf("[%s] [ERROR] %d %s: %v", route, status, kind, err)
	} else {
		log.Printf("[%s] returning error %d: %s", route, status, message)
	}

	body := gin.H{"success": false, "message": message, "kind": kind}
	if !config.AppEnv.IsProduction() {
		var appErr *apperr.Error
		switch {
		case !errors.As(err, &appErr):
			body["error"] = err.Error()
		case appErr.Err != nil:
			body["error"] = appErr.Err.Error()
		}
	}
	c.AbortWithStatusJSON(status, body)
}

func respondWithError(c *gin.Context, status int, route string, message string) {
	log.Printf("[%s] returning error %d: %s", route, status, message)
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": message})
}

func respondValidationError(c *gin.Context, route string, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		details := make([]string, 0, len(validationErrors))
		for _, fieldError := range validationErrors {
			field := lowerCamel(fieldError.Field())
			switch fieldError.Tag() {
			case "required":
				details = append(details, fmt.Sprintf("%s is required", field))
			case "email":
				details = append(details, fmt.Sprintf("%s must be a valid email", field))
			case "min":
				details = append(details, fmt.Sprintf("%s must be at least %s", field, fieldError.Param()))
			default:
				details = append(details, fmt.Sprintf("%s is invalid", field))
			}
		}
		log.Printf("[%s] validation failed: %s", route, strings.Join(details, "; "))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": strings.Join(details, ", "),
			"kind":    apperr.KindValidation,
			"details": details,
		})
		return
	}

	respondError(c, route, apperr.Wrap(apperr.KindValidation, "invalid body", err))
}

func lowerCamel(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}

// currentUser returns the authenticated user or writes a 401.
func currentUser(c *gin.Context, route string) (*models.User, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondError(c, route, apperr.Unauthorized("Not authorized"))
		return nil, false
	}
	return user, true
}

func objectIDParam(c *gin.Context, name string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(c.Param(name)))
	if err != nil {
		return primitive.NilObjectID, apperr.Validation("invalid " + name)
	}
	return id, nil
}

// storeError maps repository sentinels onto error kinds.
func storeError(err error, notFound string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apperr.NotFound(notFound)
	case errors.Is(err, store.ErrDuplicate):
		return apperr.Conflict("already exists")
	default:
		return apperr.Internal("db error", err)
	}
}
