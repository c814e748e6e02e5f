package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"smartwheel/internal/service"
)

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(context.Context) error {
	return p.err
}

func healthRouter(t *testing.T, store Pinger) *gin.Engine {
	t.Helper()
	logger := zaptest.NewLogger(t)
	cfg := testConfig(t)

	ws, err := service.NewWheelService(cfg, logger)
	if err != nil {
		t.Fatalf("NewWheelService() failed: %v", err)
	}
	t.Cleanup(ws.Shutdown)

	router := gin.New()
	NewHealthHandler(ws, store, cfg, logger).RegisterRoutes(router.Group(""))
	return router
}

func getHealth(t *testing.T, router http.Handler) (int, HealthResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	return rec.Code, resp
}

func TestHealthCheck(t *testing.T) {
	code, resp := getHealth(t, healthRouter(t, nil))
	if code != http.StatusOK || resp.Status != "healthy" {
		t.Fatalf("unexpected health: %d %+v", code, resp)
	}
	if resp.Checks["engine"].Status != "healthy" {
		t.Fatalf("engine check failed: %+v", resp.Checks["engine"])
	}
	if resp.Checks["wheel"].Message != "not-connected" {
		t.Fatalf("unexpected wheel check: %+v", resp.Checks["wheel"])
	}
	if _, ok := resp.Checks["message_store"]; ok {
		t.Fatal("message store checked without a store")
	}
}

func TestHealthCheckStoreDown(t *testing.T) {
	code, resp := getHealth(t, healthRouter(t, stubPinger{err: errors.New("connection refused")}))
	if code != http.StatusServiceUnavailable || resp.Status != "unhealthy" {
		t.Fatalf("unexpected health: %d %+v", code, resp)
	}
	if resp.Checks["message_store"].Message != "connection refused" {
		t.Fatalf("unexpected store check: %+v", resp.Checks["message_store"])
	}
}

func TestReadyAndLive(t *testing.T) {
	router := healthRouter(t, stubPinger{})

	for _, path := range []string{"/ready", "/live"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s: expected 200, got %d", path, rec.Code)
		}
	}
}
