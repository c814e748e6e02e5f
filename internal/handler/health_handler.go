// internal/handler/health_handler.go
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"smartwheel/internal/config"
	"smartwheel/internal/service"
	"smartwheel/internal/utils"
)

// Pinger is an optional backing store checked by the health endpoints
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check requests
type HealthHandler struct {
	wheelService *service.WheelService
	store        Pinger
	config       *config.Config
	logger       *utils.ServiceLogger
}

// NewHealthHandler creates a new health handler. store may be nil.
func NewHealthHandler(wheelService *service.WheelService, store Pinger, config *config.Config, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		wheelService: wheelService,
		store:        store,
		config:       config,
		logger:       utils.NewServiceLogger(logger, "health-handler"),
	}
}

// RegisterRoutes registers health check routes
func (h *HealthHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/health", h.HealthCheck)
	router.GET("/ready", h.ReadinessCheck)
	router.GET("/live", h.LivenessCheck)
}

// HealthCheck performs general health check
// @Summary Health check
// @Description Engine loop liveness, wheel connection and message store
// @Tags Health
// @Accept json
// @Produce json
// @Success 200 {object} HealthResponse "Service is healthy"
// @Failure 503 {object} HealthResponse "Service is unhealthy"
// @Router /health [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	health := &HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Service:   h.config.App.Name,
		Version:   h.config.App.Version,
		Uptime:    h.wheelService.Uptime().Round(time.Second).String(),
		Checks:    make(map[string]CheckResult),
	}

	e := h.wheelService.Engine()
	if h.wheelService.Alive(c.Request.Context(), h.wheelService.LivenessWindow()) {
		health.Checks["engine"] = CheckResult{
			Status:  "healthy",
			Message: "Read and write loops running",
			Data: map[string]interface{}{
				"read_heartbeat":  e.ReadHeartbeat(),
				"write_heartbeat": e.WriteHeartbeat(),
			},
		}
	} else {
		health.Status = "unhealthy"
		health.Checks["engine"] = CheckResult{
			Status:  "unhealthy",
			Message: "Engine loops stalled",
		}
	}

	// A disconnected wheel is a normal state, not a failure
	health.Checks["wheel"] = CheckResult{
		Status:  "healthy",
		Message: e.State(),
		Data: map[string]interface{}{
			"total_reads":  e.TotalReads(),
			"total_writes": e.TotalWrites(),
			"queue_length": e.QueueLength(),
		},
	}

	if h.store != nil {
		if err := h.store.Ping(c.Request.Context()); err != nil {
			health.Status = "unhealthy"
			health.Checks["message_store"] = CheckResult{
				Status:  "unhealthy",
				Message: err.Error(),
			}
		} else {
			health.Checks["message_store"] = CheckResult{
				Status:  "healthy",
				Message: "Message store connection OK",
			}
		}
	}

	statusCode := http.StatusOK
	if health.Status == "unhealthy" {
		h.logger.Warn("Health check failed", zap.Any("checks", health.Checks))
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, health)
}

// ReadinessCheck for Kubernetes readiness probe
// @Summary Readiness check
// @Description Check if service is ready to accept traffic
// @Tags Health
// @Accept json
// @Produce json
// @Success 200 {object} object{status=string,timestamp=string} "Service is ready"
// @Failure 503 {object} object{status=string,reason=string} "Service is not ready"
// @Router /ready [get]
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	if !h.wheelService.Alive(c.Request.Context(), h.wheelService.LivenessWindow()) {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "engine loops not running",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now(),
	})
}

// LivenessCheck for Kubernetes liveness probe
// @Summary Liveness check
// @Description Check if service is alive
// @Tags Health
// @Accept json
// @Produce json
// @Success 200 {object} object{status=string,timestamp=string} "Service is alive"
// @Router /live [get]
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now(),
	})
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Service   string                 `json:"service"`
	Version   string                 `json:"version"`
	Uptime    string                 `json:"uptime"`
	Checks    map[string]CheckResult `json:"checks"`
}

// CheckResult represents individual check result
type CheckResult struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}
