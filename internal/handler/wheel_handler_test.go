package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.bug.st/serial/enumerator"
	"go.uber.org/zap/zaptest"

	"smartwheel/internal/comports"
	"smartwheel/internal/config"
	"smartwheel/internal/service"
	"smartwheel/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Engine: config.EngineConfig{
			UpdatePeriod: 20 * time.Millisecond,
			LoopInterval: time.Millisecond,
			ReadAttempts: 5,
		},
		Connection: config.ConnectionConfig{
			RecordPath: filepath.Join(t.TempDir(), "wheel.json"),
			Kind:       "mock",
			Name:       "Test Wheel",
		},
		App: config.AppConfig{Name: "smartwheel", Version: "test"},
	}
}

func newTestWheel(t *testing.T) (*service.WheelService, *gin.Engine) {
	t.Helper()
	logger := zaptest.NewLogger(t)

	ws, err := service.NewWheelService(testConfig(t), logger)
	if err != nil {
		t.Fatalf("NewWheelService() failed: %v", err)
	}
	t.Cleanup(ws.Shutdown)

	router := gin.New()
	scanner := comports.NewScannerWithLister(logger, func() ([]*enumerator.PortDetails, error) {
		return []*enumerator.PortDetails{{Name: "/dev/ttyUSB0", IsUSB: true, VID: "0403", PID: "6001"}}, nil
	})
	NewWheelHandler(ws, scanner, logger).RegisterRoutes(router.Group("/api/v1"))
	return ws, router
}

func doRequest(t *testing.T, router http.Handler, method, path, body string) (*httptest.ResponseRecorder, utils.APIResponse) {
	t.Helper()

	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var resp utils.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("%s %s: invalid json %q: %v", method, path, rec.Body.String(), err)
	}
	return rec, resp
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestCommandsRequireConnection(t *testing.T) {
	_, router := newTestWheel(t)

	tests := []struct {
		path string
		body string
	}{
		{"/api/v1/wheel/enable", ""},
		{"/api/v1/wheel/disable", ""},
		{"/api/v1/wheel/reset", ""},
		{"/api/v1/wheel/command", `{"command":"$15,1"}`},
		{"/api/v1/wheel/setpoints", `{"speed":10,"direction":0}`},
		{"/api/v1/wheel/adc/reset", ""},
		{"/api/v1/wheel/parameters/load", ""},
		{"/api/v1/wheel/parameters/store", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec, resp := doRequest(t, router, http.MethodPost, tt.path, tt.body)
			if rec.Code != http.StatusConflict {
				t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
			}
			if resp.Success || resp.Error == nil || resp.Error.Code != "NOT_CONNECTED" {
				t.Fatalf("unexpected response: %+v", resp)
			}
		})
	}
}

func TestInvalidBodies(t *testing.T) {
	_, router := newTestWheel(t)

	tests := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodPost, "/api/v1/wheel/command", `{}`},
		{http.MethodPost, "/api/v1/wheel/command", `{"command":"15"}`},
		{http.MethodPost, "/api/v1/wheel/setpoints", `{"speed":10}`},
		{http.MethodPut, "/api/v1/wheel/parameters/pid", `{"index":1}`},
		{http.MethodPut, "/api/v1/wheel/connection", `{"kind":"pigeon","name":"x"}`},
		{http.MethodPut, "/api/v1/wheel/connection", `not json`},
	}

	for _, tt := range tests {
		rec, _ := doRequest(t, router, tt.method, tt.path, tt.body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s %s %s: expected 400, got %d", tt.method, tt.path, tt.body, rec.Code)
		}
	}
}

func TestLookupsWithoutData(t *testing.T) {
	_, router := newTestWheel(t)

	for _, path := range []string{"/api/v1/wheel/responses/29", "/api/v1/wheel/adc/vbat"} {
		rec, _ := doRequest(t, router, http.MethodGet, path, "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("GET %s: expected 404, got %d", path, rec.Code)
		}
	}

	rec, _ := doRequest(t, router, http.MethodGet, "/api/v1/wheel/messages", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("GET /wheel/messages: expected 503 without a store, got %d", rec.Code)
	}

	rec, resp := doRequest(t, router, http.MethodGet, "/api/v1/wheel", "")
	if rec.Code != http.StatusOK || !resp.Success {
		t.Fatalf("GET /wheel failed: %d %s", rec.Code, rec.Body.String())
	}
	data := resp.Data.(map[string]interface{})
	if data["state"] != "not-connected" || data["connected"] != false {
		t.Fatalf("unexpected snapshot: %v", data)
	}
}

func TestConnectEnableFlow(t *testing.T) {
	ws, router := newTestWheel(t)

	rec, _ := doRequest(t, router, http.MethodPost, "/api/v1/wheel/connect", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("connect failed: %d %s", rec.Code, rec.Body.String())
	}

	rec, resp := doRequest(t, router, http.MethodPost, "/api/v1/wheel/enable", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("enable failed: %d %s", rec.Code, rec.Body.String())
	}
	if got := resp.Data.(map[string]interface{})["command"]; got != "$1" {
		t.Fatalf("unexpected command: %v", got)
	}

	waitFor(t, "enabled", func() bool { return ws.Snapshot().Enabled })
	waitFor(t, "adc", func() bool { return len(ws.ADCChannels()) > 0 })

	label := ws.ADCChannels()[0].Label
	rec, resp = doRequest(t, router, http.MethodGet, "/api/v1/wheel/adc/"+strings.ToUpper(label), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("adc lookup failed: %d %s", rec.Code, rec.Body.String())
	}
	if got := resp.Data.(map[string]interface{})["label"]; got != label {
		t.Fatalf("unexpected label: %v", got)
	}

	rec, _ = doRequest(t, router, http.MethodGet, "/api/v1/wheel/responses/29", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("firmware response lookup failed: %d", rec.Code)
	}

	rec, _ = doRequest(t, router, http.MethodPut, "/api/v1/wheel/connection", `{"kind":"mock","name":"Other"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 while connected, got %d", rec.Code)
	}

	rec, _ = doRequest(t, router, http.MethodPost, "/api/v1/wheel/disconnect", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("disconnect failed: %d", rec.Code)
	}

	rec, resp = doRequest(t, router, http.MethodPut, "/api/v1/wheel/connection", `{"kind":"ethernet","name":"Bench","ip_address":"10.0.0.2","ethernet_port":5000}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update connection failed: %d %s", rec.Code, rec.Body.String())
	}
	if got := ws.ConnectionConfig().IPAddress; got != "10.0.0.2" {
		t.Fatalf("config not applied: %q", got)
	}
}

func TestListComports(t *testing.T) {
	_, router := newTestWheel(t)

	rec, resp := doRequest(t, router, http.MethodGet, "/api/v1/wheel/comports", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	ports := resp.Data.([]interface{})
	if len(ports) != 1 || ports[0].(map[string]interface{})["name"] != "/dev/ttyUSB0" {
		t.Fatalf("unexpected ports: %v", ports)
	}
}
