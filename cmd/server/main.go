// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	_ "smartwheel/docs"
	"smartwheel/internal/config"
	"smartwheel/internal/handler"
	"smartwheel/internal/monitor"
	"smartwheel/internal/routes"
	"smartwheel/internal/service"
	"smartwheel/internal/storage"
	"smartwheel/internal/utils"
)

// Application represents the main application
type Application struct {
	config *config.Config
	logger *zap.Logger
	server *http.Server

	wheelService *service.WheelService
	messageQueue *storage.MessageQueue

	stopMonitor chan struct{}
}

// @title Smart Wheel API
// @version 1.0.0
// @description Control and telemetry service for a Smart Wheel Module
// @termsOfService http://swagger.io/terms/

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8084
// @BasePath /api/v1
func main() {
	app, err := NewApplication()
	if err != nil {
		fmt.Printf("Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	if err := app.Start(); err != nil {
		app.logger.Fatal("Failed to start application", zap.Error(err))
	}
}

// NewApplication creates a new application instance
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	serviceLogger := utils.NewServiceLogger(logger, "smartwheel")
	serviceLogger.LogServiceStart(cfg.App.Version, cfg)

	app := &Application{
		config:      cfg,
		logger:      logger,
		stopMonitor: make(chan struct{}),
	}

	if cfg.Metrics.Enabled {
		monitor.Register(prometheus.DefaultRegisterer)
	}

	app.initializeMessageQueue()

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initializeServer()

	return app, nil
}

// initializeMessageQueue connects to redis when enabled. The service runs
// without message history if redis is unreachable.
func (app *Application) initializeMessageQueue() {
	if !app.config.Redis.Enabled {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	mq, err := storage.NewMessageQueue(ctx, &app.config.Redis, app.logger)
	if err != nil {
		app.logger.Warn("Message queue unavailable, continuing without history", zap.Error(err))
		return
	}
	app.messageQueue = mq
}

// initializeServices creates the wheel service
func (app *Application) initializeServices() error {
	var opts []service.Option
	if app.messageQueue != nil {
		opts = append(opts, service.WithPublisher(app.messageQueue))
	}

	ws, err := service.NewWheelService(app.config, app.logger, opts...)
	if err != nil {
		return err
	}
	app.wheelService = ws

	app.logger.Info("Services initialized successfully")
	return nil
}

// initializeServer sets up HTTP server and routes
func (app *Application) initializeServer() {
	var store handler.Pinger
	if app.messageQueue != nil {
		store = app.messageQueue
	}

	routerManager := routes.NewRouter(app.config, app.logger, app.wheelService, store)
	router := routerManager.SetupRouter()

	app.server = &http.Server{
		Addr:         app.config.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  app.config.Server.ReadTimeout,
		WriteTimeout: app.config.Server.WriteTimeout,
		IdleTimeout:  app.config.Server.IdleTimeout,
	}

	app.logger.Info("HTTP server initialized",
		zap.String("address", app.config.GetServerAddr()),
	)
}

// startBackgroundServices starts background services
func (app *Application) startBackgroundServices() {
	if app.config.Metrics.Enabled {
		go monitor.StartRuntimeMonitor(15*time.Second, app.stopMonitor, app.logger)
	}

	if app.config.Engine.AutoConnect {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := app.wheelService.Connect(ctx); err != nil {
			app.logger.Warn("Auto connect failed", zap.Error(err))
		}
		cancel()
	}

	app.logger.Info("Background services started")
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown
func (app *Application) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	app.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	app.shutdown()
}

// shutdown performs graceful shutdown
func (app *Application) shutdown() {
	serviceLogger := utils.NewServiceLogger(app.logger, "smartwheel")
	serviceLogger.LogServiceStop("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		app.logger.Info("HTTP server stopped")
	}

	close(app.stopMonitor)
	app.wheelService.Shutdown()

	if app.messageQueue != nil {
		if err := app.messageQueue.Close(); err != nil {
			app.logger.Error("Message queue close error", zap.Error(err))
		}
	}

	app.logger.Info("Application shutdown completed")

	if err := utils.CloseLogger(app.logger); err != nil {
		fmt.Printf("Logger close error: %v\n", err)
	}
}

func (app *Application) Start() error {
	go func() {
		app.logger.Info("Starting HTTP server",
			zap.String("address", app.server.Addr),
		)

		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	app.startBackgroundServices()

	app.waitForShutdown()

	return nil
}
