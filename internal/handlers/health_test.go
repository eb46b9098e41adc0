package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestHealthReportsUnreachableDatabase(t *testing.T) {
	gin.SetMode(gin.TestMode)

	opts := options.Client().
		ApplyURI("mongodb://127.0.0.1:1").
		SetServerSelectionTimeout(100 * time.Millisecond)
	client, err := mongo.Connect(context.Background(), opts)
	if err != nil {
		t.Fatalf("mongo.Connect returned error: %v", err)
	}
	defer client.Disconnect(context.Background())

	r := gin.New()
	r.GET("/health", Health(client.Database("gamya_test")))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when the database is down, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode(t, w)
	if resp["ok"] != false {
		t.Fatalf("expected ok=false, got %v", resp)
	}
}
