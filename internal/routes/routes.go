// internal/routes/routes.go
package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"smartwheel/internal/comports"
	"smartwheel/internal/config"
	"smartwheel/internal/handler"
	"smartwheel/internal/middleware"
	"smartwheel/internal/service"
	"smartwheel/internal/utils"
)

// Router holds all dependencies for routing
type Router struct {
	config       *config.Config
	logger       *zap.Logger
	wheelService *service.WheelService
	store        handler.Pinger
}

// NewRouter creates a new router instance. store may be nil when no
// message store is configured.
func NewRouter(
	config *config.Config,
	logger *zap.Logger,
	wheelService *service.WheelService,
	store handler.Pinger,
) *Router {
	return &Router{
		config:       config,
		logger:       logger,
		wheelService: wheelService,
		store:        store,
	}
}

// SetupRouter creates and configures the Gin router
func (r *Router) SetupRouter() *gin.Engine {
	if r.config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()

	r.addMiddleware(router)
	r.addRoutes(router)

	return router
}

// addMiddleware adds middleware to the router
func (r *Router) addMiddleware(router *gin.Engine) {
	router.Use(middleware.RecoveryMiddleware(r.logger))
	router.Use(middleware.RequestIDMiddleware())

	serviceLogger := utils.NewServiceLogger(r.logger, "http-server")
	router.Use(middleware.LoggingMiddleware(serviceLogger))

	router.Use(middleware.CORSMiddleware(&r.config.Security))

	r.logger.Info("Middleware configured")
}

// addRoutes sets up all application routes
func (r *Router) addRoutes(router *gin.Engine) {
	healthHandler := handler.NewHealthHandler(r.wheelService, r.store, r.config, r.logger)
	wheelHandler := handler.NewWheelHandler(r.wheelService, comports.NewScanner(r.logger), r.logger)
	wsHandler := handler.NewWebSocketHandler(r.wheelService, r.config.Security.AllowedOrigins, r.logger)

	healthHandler.RegisterRoutes(router.Group(""))

	apiV1 := router.Group("/api/v1")
	wheelHandler.RegisterRoutes(apiV1)

	wsHandler.RegisterRoutes(router.Group("/ws"))

	if r.config.Metrics.Enabled {
		router.GET(r.config.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	r.addDocumentationRoutes(router)

	r.logger.Info("All routes configured successfully")
}

// addDocumentationRoutes sets up documentation routes
func (r *Router) addDocumentationRoutes(router *gin.Engine) {
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))

	router.GET("/docs", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})
}
