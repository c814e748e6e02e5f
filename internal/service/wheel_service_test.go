package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"smartwheel/internal/config"
	"smartwheel/internal/connection"
	"smartwheel/internal/model"
	"smartwheel/internal/protocol"
	"smartwheel/internal/swm"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.WheelEvent
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, event model.WheelEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
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
			RecordPath: filepath.Join(t.TempDir(), "wheel.yaml"),
			Kind:       "mock",
			Name:       "Test Wheel",
		},
	}
}

func newTestService(t *testing.T, opts ...Option) *WheelService {
	t.Helper()
	ws, err := NewWheelService(testConfig(t), zaptest.NewLogger(t), opts...)
	if err != nil {
		t.Fatalf("NewWheelService() failed: %v", err)
	}
	t.Cleanup(ws.Shutdown)
	return ws
}

// silentTransport never answers; every read waits out the timeout
type silentTransport struct {
	timeout time.Duration
}

func (s silentTransport) ReadLine() (string, error) {
	time.Sleep(s.timeout)
	return "", nil
}

func (silentTransport) WriteLine(string) error { return nil }
func (silentTransport) Disconnect() error      { return nil }
func (silentTransport) TakeLastError() string  { return "" }

func silentFactory(_ context.Context, cfg model.ConnectionConfig, _ *zap.Logger) (protocol.Transport, error) {
	return silentTransport{timeout: cfg.Timeout}, nil
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

func TestNewWheelServicePersistsDefaultRecord(t *testing.T) {
	cfg := testConfig(t)
	ws, err := NewWheelService(cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewWheelService() failed: %v", err)
	}
	defer ws.Shutdown()

	saved, err := connection.LoadRecord(cfg.Connection.RecordPath)
	if err != nil {
		t.Fatalf("LoadRecord() failed: %v", err)
	}
	if saved.Kind != model.ConnectionKindMock || saved.Name != "Test Wheel" {
		t.Fatalf("unexpected record: %+v", saved)
	}
	if ws.Snapshot().Slug != "test-wheel" {
		t.Fatalf("unexpected slug: %q", ws.Snapshot().Slug)
	}
}

func TestNewWheelServiceLoadsExistingRecord(t *testing.T) {
	cfg := testConfig(t)
	existing := model.DefaultConnectionConfig(model.ConnectionKindMock)
	existing.Name = "Stored"
	if err := connection.SaveRecord(cfg.Connection.RecordPath, existing); err != nil {
		t.Fatalf("SaveRecord() failed: %v", err)
	}

	ws, err := NewWheelService(cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewWheelService() failed: %v", err)
	}
	defer ws.Shutdown()

	if got := ws.ConnectionConfig().Name; got != "Stored" {
		t.Fatalf("expected stored name, got %q", got)
	}
}

func TestNewWheelServiceRejectsInvalidDefaults(t *testing.T) {
	cfg := testConfig(t)
	cfg.Connection.Kind = "carrier-pigeon"

	if _, err := NewWheelService(cfg, zaptest.NewLogger(t)); !errors.Is(err, model.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestWheelServiceCommandsRequireConnection(t *testing.T) {
	ws := newTestService(t)

	if _, err := ws.Enable(); !errors.Is(err, connection.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if _, err := ws.SetSetpoints(10, 0); !errors.Is(err, connection.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestWheelServiceCommandValidation(t *testing.T) {
	ws := newTestService(t)

	for _, cmd := range []string{"", "29", "$2,1|$3", "$2,1\n$3"} {
		if _, err := ws.Command(cmd); !errors.Is(err, ErrInvalidRequest) {
			t.Errorf("Command(%q): expected ErrInvalidRequest, got %v", cmd, err)
		}
	}
	if _, err := ws.SetPIDParameter(-1, 5); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestWheelServiceEnableAgainstSimulator(t *testing.T) {
	ws := newTestService(t)

	if err := ws.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() failed: %v", err)
	}
	waitFor(t, "firmware", func() bool { return ws.Snapshot().Firmware != "" })

	if _, err := ws.Enable(); err != nil {
		t.Fatalf("Enable() failed: %v", err)
	}
	waitFor(t, "enabled", func() bool { return ws.Snapshot().Enabled })

	snap := ws.Snapshot()
	if !snap.Connected || snap.State != swm.StateConnected {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if len(ws.ADCChannels()) == 0 {
		t.Fatal("expected adc channels")
	}
	if _, err := ws.Response(swm.CmdGetFirmware); err != nil {
		t.Fatalf("Response() failed: %v", err)
	}
	if _, err := ws.Response("$99"); !errors.Is(err, swm.ErrNoResponse) {
		t.Fatalf("expected ErrNoResponse, got %v", err)
	}

	if err := ws.Disconnect(); err != nil {
		t.Fatalf("Disconnect() failed: %v", err)
	}
	if len(ws.Responses()) != 0 {
		t.Fatal("expected empty cache after disconnect")
	}
}

func TestWheelServiceUpdateConnection(t *testing.T) {
	cfg := testConfig(t)
	ws, err := NewWheelService(cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewWheelService() failed: %v", err)
	}
	defer ws.Shutdown()

	_, events := ws.Events().Subscribe(16)

	next := model.DefaultConnectionConfig(model.ConnectionKindEthernet)
	next.Name = "Bench Wheel"
	next.EthernetPort = 6000

	if err := ws.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() failed: %v", err)
	}
	if err := ws.UpdateConnection(next); !errors.Is(err, connection.ErrConnected) {
		t.Fatalf("expected ErrConnected, got %v", err)
	}
	if err := ws.Disconnect(); err != nil {
		t.Fatalf("Disconnect() failed: %v", err)
	}
	if err := ws.UpdateConnection(next); err != nil {
		t.Fatalf("UpdateConnection() failed: %v", err)
	}

	saved, err := connection.LoadRecord(cfg.Connection.RecordPath)
	if err != nil {
		t.Fatalf("LoadRecord() failed: %v", err)
	}
	if saved != next {
		t.Fatalf("persisted %+v, want %+v", saved, next)
	}

	deadline := time.After(3 * time.Second)
	for {
		select {
		case event := <-events:
			if event.EventType == model.EventConfigUpdate {
				return
			}
		case <-deadline:
			t.Fatal("no config update event")
		}
	}
}

func TestWheelServiceForwardsEvents(t *testing.T) {
	pub := &recordingPublisher{}
	ws := newTestService(t, WithPublisher(pub))

	if _, err := ws.Enable(); err == nil {
		t.Fatal("expected enable to fail while disconnected")
	}
	waitFor(t, "forwarded events", func() bool { return pub.count() > 0 })
}

type historyPublisher struct {
	recordingPublisher
}

func (p *historyPublisher) History(_ context.Context, wheelSlug string, limit int64) ([]model.WheelEvent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []model.WheelEvent
	for i := len(p.events) - 1; i >= 0 && int64(len(out)) < limit; i-- {
		if p.events[i].Wheel == wheelSlug {
			out = append(out, p.events[i])
		}
	}
	return out, nil
}

func TestWheelServiceHistory(t *testing.T) {
	plain := newTestService(t, WithPublisher(&recordingPublisher{}))
	if _, err := plain.History(context.Background(), 10); !errors.Is(err, ErrNoHistory) {
		t.Fatalf("expected ErrNoHistory, got %v", err)
	}

	pub := &historyPublisher{}
	ws := newTestService(t, WithPublisher(pub))
	ws.Enable()
	ws.Disable()
	waitFor(t, "forwarded events", func() bool { return pub.count() >= 2 })

	events, err := ws.History(context.Background(), 1)
	if err != nil {
		t.Fatalf("History() failed: %v", err)
	}
	if len(events) != 1 || events[0].Wheel != "test-wheel" {
		t.Fatalf("unexpected history: %+v", events)
	}
}

func TestWheelServiceAliveWithSilentDevice(t *testing.T) {
	cfg := testConfig(t)
	cfg.Engine = config.EngineConfig{UpdatePeriod: time.Second}

	ws, err := NewWheelService(cfg, zaptest.NewLogger(t), WithTransportFactory(silentFactory))
	if err != nil {
		t.Fatalf("NewWheelService() failed: %v", err)
	}
	t.Cleanup(ws.Shutdown)

	if err := ws.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() failed: %v", err)
	}

	window := ws.LivenessWindow()
	if budget := swm.DefaultReadAttempts * model.DefaultTimeout; window <= budget {
		t.Fatalf("window %v does not cover a silent read of %v", window, budget)
	}
	if !ws.Alive(context.Background(), window) {
		t.Fatalf("engine reported stalled within %v while the device is silent", window)
	}
}
