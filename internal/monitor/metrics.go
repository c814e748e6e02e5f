// internal/monitor/metrics.go
package monitor

import (
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

var (
	// link metrics
	WheelConnected = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "smartwheel_connected",
		Help: "1 while the wheel module connection is open",
	}, []string{"wheel"})

	FramesReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "smartwheel_records_received_total",
		Help: "Records received from the wheel module by command code",
	}, []string{"wheel", "code"})

	CommandsWritten = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "smartwheel_commands_written_total",
		Help: "Commands written to the wheel module",
	}, []string{"wheel"})

	TransportErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "smartwheel_transport_errors_total",
		Help: "Transport failures seen by the read and write loops",
	}, []string{"wheel", "loop"})

	// scheduler metrics
	MissedPollSteps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "smartwheel_missed_poll_steps_total",
		Help: "Poll periods skipped because the write loop fell behind",
	}, []string{"wheel"})

	QueueLength = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "smartwheel_outbound_queue_length",
		Help: "Commands waiting in the outbound queue",
	}, []string{"wheel"})

	// api metrics
	HTTPRequests = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "smartwheel_http_request_duration_seconds",
		Help:    "HTTP API request latency by route and status",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "smartwheel_goroutines",
		Help: "Current number of goroutines",
	})
)

var registerOnce sync.Once

// Register adds all collectors to reg. Only the first call has effect.
func Register(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		reg.MustRegister(
			WheelConnected,
			FramesReceived,
			CommandsWritten,
			TransportErrors,
			MissedPollSteps,
			QueueLength,
			HTTPRequests,
			GoroutineCount,
		)
	})
}

// WheelMetrics binds the collectors to one wheel. A nil *WheelMetrics is
// valid and records nothing.
type WheelMetrics struct {
	wheel string
}

func NewWheelMetrics(wheel string) *WheelMetrics {
	return &WheelMetrics{wheel: wheel}
}

func (m *WheelMetrics) RecordReceived(code string) {
	if m == nil {
		return
	}
	FramesReceived.WithLabelValues(m.wheel, code).Inc()
}

func (m *WheelMetrics) CommandWritten() {
	if m == nil {
		return
	}
	CommandsWritten.WithLabelValues(m.wheel).Inc()
}

func (m *WheelMetrics) TransportError(loop string) {
	if m == nil {
		return
	}
	TransportErrors.WithLabelValues(m.wheel, loop).Inc()
}

func (m *WheelMetrics) MissedPollSteps(n int) {
	if m == nil || n <= 0 {
		return
	}
	MissedPollSteps.WithLabelValues(m.wheel).Add(float64(n))
}

func (m *WheelMetrics) QueueLength(n int) {
	if m == nil {
		return
	}
	QueueLength.WithLabelValues(m.wheel).Set(float64(n))
}

func (m *WheelMetrics) SetConnected(connected bool) {
	if m == nil {
		return
	}
	v := 0.0
	if connected {
		v = 1
	}
	WheelConnected.WithLabelValues(m.wheel).Set(v)
}

// StartRuntimeMonitor samples runtime gauges every interval until stop is closed
func StartRuntimeMonitor(interval time.Duration, stop <-chan struct{}, logger *zap.Logger) {
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				n := runtime.NumGoroutine()
				GoroutineCount.Set(float64(n))

				var memStats runtime.MemStats
				runtime.ReadMemStats(&memStats)
				logger.Debug("Runtime stats",
					zap.Int("goroutines", n),
					zap.Float64("alloc_mb", float64(memStats.Alloc)/1024/1024),
				)
			}
		}
	}()
}
