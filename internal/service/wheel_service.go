// internal/service/wheel_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"smartwheel/internal/config"
	"smartwheel/internal/connection"
	"smartwheel/internal/model"
	"smartwheel/internal/monitor"
	"smartwheel/internal/protocol"
	"smartwheel/internal/storage"
	"smartwheel/internal/swm"
	"smartwheel/internal/utils"
)

const (
	eventBusBuffer    = 1000
	minLivenessWindow = 50 * time.Millisecond
)

var (
	// ErrInvalidRequest marks caller errors that map to 400
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNoHistory is returned when no message store keeps a history
	ErrNoHistory = errors.New("message history not configured")
)

// Publisher receives every wheel event outside the process
type Publisher interface {
	Publish(ctx context.Context, wheelSlug string, event model.WheelEvent) error
}

// HistoryStore is a Publisher that can also replay recent events
type HistoryStore interface {
	Publisher
	History(ctx context.Context, wheelSlug string, limit int64) ([]model.WheelEvent, error)
}

// WheelService hosts one engine and its persisted connection record
type WheelService struct {
	engine     *swm.Engine
	recordPath string
	events     *EventBus
	publisher  Publisher
	metrics    *monitor.WheelMetrics
	logger     *utils.ServiceLogger

	engineSub  uuid.UUID
	publishSub uuid.UUID
	startedAt  time.Time
}

// Option configures a WheelService
type Option func(*serviceOptions)

type serviceOptions struct {
	factory   protocol.Factory
	publisher Publisher
}

// WithTransportFactory overrides how transports are opened
func WithTransportFactory(f protocol.Factory) Option {
	return func(o *serviceOptions) {
		o.factory = f
	}
}

// WithPublisher forwards every wheel event to p
func WithPublisher(p Publisher) Option {
	return func(o *serviceOptions) {
		o.publisher = p
	}
}

// NewWheelService loads the connection record, falling back to the
// configured defaults, and starts the engine
func NewWheelService(cfg *config.Config, logger *zap.Logger, opts ...Option) (*WheelService, error) {
	var o serviceOptions
	for _, opt := range opts {
		opt(&o)
	}

	connCfg, err := loadConnection(&cfg.Connection, logger)
	if err != nil {
		return nil, err
	}

	wheelLogger := utils.NewWheelLogger(logger, connCfg.Name)

	var connOpts []connection.Option
	if o.factory != nil {
		connOpts = append(connOpts, connection.WithTransportFactory(o.factory))
	}
	conn := connection.NewConnection(connCfg, wheelLogger, connOpts...)

	var metrics *monitor.WheelMetrics
	if cfg.Metrics.Enabled {
		metrics = monitor.NewWheelMetrics(connCfg.Slug())
	}

	engine := swm.New(conn, wheelLogger,
		swm.WithUpdatePeriod(cfg.Engine.UpdatePeriod),
		swm.WithLoopInterval(cfg.Engine.LoopInterval),
		swm.WithReadAttempts(cfg.Engine.ReadAttempts),
		swm.WithPopulateIncoming(cfg.Engine.PopulateIncoming),
		swm.WithMetrics(metrics),
	)

	ws := &WheelService{
		engine:     engine,
		recordPath: cfg.Connection.RecordPath,
		events:     NewEventBus(eventBusBuffer, logger),
		publisher:  o.publisher,
		metrics:    metrics,
		logger:     utils.NewServiceLogger(logger, "wheel-service"),
		startedAt:  time.Now(),
	}
	go ws.events.Start()

	ws.engineSub = engine.Subscribe(ws.onMessage)
	if ws.publisher != nil {
		var ch <-chan model.WheelEvent
		ws.publishSub, ch = ws.events.Subscribe(eventBusBuffer)
		go ws.forward(ch)
	}

	ws.logger.Info("Wheel service created",
		zap.String("connection", connCfg.String()),
		zap.String("record_path", ws.recordPath),
	)
	return ws, nil
}

// loadConnection reads the record file or, when absent, builds the config
// from the defaults and persists it
func loadConnection(cfg *config.ConnectionConfig, logger *zap.Logger) (model.ConnectionConfig, error) {
	if cfg.RecordPath != "" {
		connCfg, err := connection.LoadRecord(cfg.RecordPath)
		if err == nil {
			logger.Info("Loaded connection record", zap.String("path", cfg.RecordPath))
			return connCfg, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return model.ConnectionConfig{}, fmt.Errorf("failed to load connection record: %w", err)
		}
	}

	connCfg, err := cfg.DefaultConnection()
	if err != nil {
		return model.ConnectionConfig{}, fmt.Errorf("invalid default connection: %w", err)
	}

	if cfg.RecordPath != "" {
		if err := connection.SaveRecord(cfg.RecordPath, connCfg); err != nil {
			logger.Warn("Failed to persist default connection record", zap.Error(err))
		}
	}
	return connCfg, nil
}

// onMessage runs on the engine loops; it only hands the message to the bus
func (ws *WheelService) onMessage(e *swm.Engine, message string) {
	ws.events.Publish(model.NewWheelEvent(model.EventWheelMessage, e.Slug(), message))
}

func (ws *WheelService) forward(events <-chan model.WheelEvent) {
	for event := range events {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := ws.publisher.Publish(ctx, event.Wheel, event); err != nil {
			ws.logger.Warn("Failed to forward wheel event", zap.Error(err))
		}
		cancel()
	}
}

func (ws *WheelService) Engine() *swm.Engine {
	return ws.engine
}

func (ws *WheelService) Events() *EventBus {
	return ws.events
}

func (ws *WheelService) publish(eventType model.EventType, message string) {
	ws.events.Publish(model.NewWheelEvent(eventType, ws.engine.Slug(), message))
}

// Connect opens the wheel connection
func (ws *WheelService) Connect(ctx context.Context) error {
	if err := ws.engine.Connect(ctx); err != nil {
		ws.logger.LogWheelAction("connect", "", err)
		return err
	}
	ws.logger.LogWheelAction("connect", "", nil)
	ws.publish(model.EventWheelConnected, ws.engine.Status())
	return nil
}

// Disconnect closes the wheel connection
func (ws *WheelService) Disconnect() error {
	err := ws.engine.Disconnect()
	ws.logger.LogWheelAction("disconnect", "", err)
	ws.publish(model.EventWheelDisconnected, ws.engine.Status())
	return err
}

func (ws *WheelService) do(action string, fn func() (string, error)) (string, error) {
	cmd, err := fn()
	ws.logger.LogWheelAction(action, cmd, err)
	return cmd, err
}

func (ws *WheelService) Enable() (string, error) {
	return ws.do("enable", ws.engine.Enable)
}

func (ws *WheelService) Disable() (string, error) {
	return ws.do("disable", ws.engine.Disable)
}

func (ws *WheelService) Reset() (string, error) {
	return ws.do("reset", ws.engine.Reset)
}

// Command queues a raw wire command
func (ws *WheelService) Command(cmd string) (string, error) {
	cmd = strings.TrimSpace(cmd)
	if !strings.HasPrefix(swm.CommandCode(cmd), "$") {
		return "", fmt.Errorf("%w: command must start with $", ErrInvalidRequest)
	}
	if strings.ContainsAny(cmd, "\r\n"+swm.RecordSeparator) {
		return "", fmt.Errorf("%w: command must be a single record", ErrInvalidRequest)
	}
	return ws.do("command", func() (string, error) { return ws.engine.Command(cmd) })
}

func (ws *WheelService) SetSetpoints(speed, direction int) (string, error) {
	return ws.do("setpoints", func() (string, error) { return ws.engine.SetSetpoints(speed, direction) })
}

func (ws *WheelService) ResetMinMax() (string, error) {
	return ws.do("reset_min_max", ws.engine.ResetMinMax)
}

func (ws *WheelService) LoadParameters() (string, error) {
	return ws.do("load_parameters", ws.engine.LoadParameters)
}

func (ws *WheelService) StoreParameters() (string, error) {
	return ws.do("store_parameters", ws.engine.StoreParameters)
}

func (ws *WheelService) SetPIDParameter(index, value int) (string, error) {
	if index < 0 {
		return "", fmt.Errorf("%w: pid index must not be negative", ErrInvalidRequest)
	}
	return ws.do("set_pid", func() (string, error) { return ws.engine.SetPIDParameter(index, value) })
}

// WheelSnapshot is the externally visible state of the wheel
type WheelSnapshot struct {
	Name          string          `json:"name"`
	Slug          string          `json:"slug"`
	Kind          string          `json:"kind"`
	Address       string          `json:"address"`
	State         string          `json:"state"`
	Connected     bool            `json:"connected"`
	Status        string          `json:"status"`
	Enabled       bool            `json:"enabled"`
	Firmware      string          `json:"firmware"`
	StatusFlags   map[string]bool `json:"status_flags"`
	ErrorFlags    map[string]bool `json:"error_flags"`
	Motion        *swm.Motion     `json:"motion,omitempty"`
	PID           []int           `json:"pid,omitempty"`
	ProcessTimes  []int           `json:"process_times,omitempty"`
	Counters      []int           `json:"counters,omitempty"`
	TotalReads    uint64          `json:"total_reads"`
	TotalWrites   uint64          `json:"total_writes"`
	QueueLength   int             `json:"queue_length"`
	ReadHeartbeat uint64          `json:"read_heartbeat"`
	WriteBeat     uint64          `json:"write_heartbeat"`
}

// Snapshot collects the current wheel state. Reading it drains pending
// connection errors into Status.
func (ws *WheelService) Snapshot() *WheelSnapshot {
	e := ws.engine
	cfg := e.Connection().Config()

	snap := &WheelSnapshot{
		Name:          cfg.Name,
		Slug:          cfg.Slug(),
		Kind:          string(cfg.Kind),
		Address:       cfg.Address(),
		State:         e.State(),
		Connected:     e.IsConnected(),
		Status:        e.Status(),
		Enabled:       e.Enabled(),
		Firmware:      e.Firmware(),
		StatusFlags:   e.StatusFlags(),
		ErrorFlags:    e.ErrorFlags(),
		TotalReads:    e.TotalReads(),
		TotalWrites:   e.TotalWrites(),
		QueueLength:   e.QueueLength(),
		ReadHeartbeat: e.ReadHeartbeat(),
		WriteBeat:     e.WriteHeartbeat(),
	}
	if m, err := e.Motion(); err == nil {
		snap.Motion = &m
	}
	snap.PID, _ = e.PIDParameters()
	snap.ProcessTimes, _ = e.ProcessTimes()
	snap.Counters, _ = e.Counters()
	return snap
}

// Responses returns the response cache keyed by command code
func (ws *WheelService) Responses() map[string]swm.Record {
	return ws.engine.Responses()
}

// Response returns the cached record for code
func (ws *WheelService) Response(code string) (swm.Record, error) {
	r, ok := ws.engine.Response(code)
	if !ok {
		return nil, fmt.Errorf("%w: %s", swm.ErrNoResponse, code)
	}
	return r, nil
}

func (ws *WheelService) ADC(label string) (swm.ADCReading, error) {
	return ws.engine.ADC(label)
}

func (ws *WheelService) ADCChannels() []swm.ADCReading {
	return ws.engine.ADCChannels()
}

// DrainIncoming returns the raw records received since the last call
func (ws *WheelService) DrainIncoming() []swm.Record {
	return ws.engine.DrainIncoming()
}

func (ws *WheelService) ConnectionConfig() model.ConnectionConfig {
	return ws.engine.Connection().Config()
}

// UpdateConnection replaces the connection config wholesale and persists it.
// The wheel must be disconnected.
func (ws *WheelService) UpdateConnection(cfg model.ConnectionConfig) error {
	old := ws.engine.Connection().Config()
	if err := ws.engine.Connection().SetConfig(cfg); err != nil {
		return err
	}

	if ws.recordPath != "" {
		if err := connection.SaveRecord(ws.recordPath, cfg); err != nil {
			ws.engine.Connection().SetConfig(old)
			return err
		}
	}

	ws.logger.Info("Connection config updated",
		zap.String("old", old.String()),
		zap.String("new", cfg.String()),
	)
	ws.publish(model.EventConfigUpdate, cfg.String())
	return nil
}

// History returns recent events of this wheel, newest first
func (ws *WheelService) History(ctx context.Context, limit int64) ([]model.WheelEvent, error) {
	store, ok := ws.publisher.(HistoryStore)
	if !ok {
		return nil, ErrNoHistory
	}
	return store.History(ctx, ws.engine.Slug(), limit)
}

// LivenessWindow is long enough for both loops to complete an iteration
// while the device stays silent, each read waiting out the transport timeout
func (ws *WheelService) LivenessWindow() time.Duration {
	timeout := ws.ConnectionConfig().Timeout
	if timeout <= 0 {
		timeout = model.DefaultTimeout
	}
	budget := ws.engine.ReadBudget(timeout)
	d := budget + budget/4 + 2*ws.engine.LoopInterval()
	if d < minLivenessWindow {
		d = minLivenessWindow
	}
	return d
}

// Alive reports whether both engine loops advanced within d
func (ws *WheelService) Alive(ctx context.Context, d time.Duration) bool {
	read, write := ws.engine.ReadHeartbeat(), ws.engine.WriteHeartbeat()
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
	}
	return ws.engine.ReadHeartbeat() != read && ws.engine.WriteHeartbeat() != write
}

func (ws *WheelService) Uptime() time.Duration {
	return time.Since(ws.startedAt)
}

// Shutdown stops the engine loops, closes the connection and the bus
func (ws *WheelService) Shutdown() {
	ws.logger.LogServiceStop("shutdown")
	ws.engine.Unsubscribe(ws.engineSub)
	ws.engine.ShutDown()
	ws.engine.Wait()
	if err := ws.engine.Disconnect(); err != nil {
		ws.logger.Warn("Disconnect on shutdown failed", zap.Error(err))
	}
	ws.events.Stop()
}

var _ HistoryStore = (*storage.MessageQueue)(nil)
