// internal/protocol/simulated_transport.go
package protocol

import (
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SimulatedTransport imitates a wheel module in process. Every written
// command immediately produces its response; a background loop advances the
// simulated motors and analog channels.
type SimulatedTransport struct {
	config *SimulatedConfig
	logger *zap.Logger

	mu       sync.Mutex
	device   *simDevice
	rng      *rand.Rand
	outgoing []string
	closed   bool

	notify    chan struct{}
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	lastErr   lastError
}

// NewSimulatedTransport creates the simulator and starts its update loop
// unless config.TickInterval is zero.
func NewSimulatedTransport(config *SimulatedConfig, logger *zap.Logger) *SimulatedTransport {
	seed := config.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	st := &SimulatedTransport{
		config: config,
		logger: logger.With(zap.String("transport", "mock")),
		device: newSimDevice(),
		rng:    rand.New(rand.NewPCG(seed, seed>>1)),
		notify: make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}

	if config.TickInterval > 0 {
		go st.run()
	} else {
		close(st.done)
	}

	return st
}

func (st *SimulatedTransport) run() {
	defer close(st.done)

	ticker := time.NewTicker(st.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-st.stop:
			return
		case <-ticker.C:
			st.Step()
		}
	}
}

// Step advances the simulation by one tick
func (st *SimulatedTransport) Step() {
	st.mu.Lock()
	st.device.step(st.rng)
	st.mu.Unlock()
}

// ReadLine pops the oldest pending response. When none is pending it waits
// up to the configured timeout for one.
func (st *SimulatedTransport) ReadLine() (string, error) {
	if line, ok, err := st.pop(); ok || err != nil {
		return line, err
	}
	if st.config.Timeout <= 0 {
		return "", nil
	}

	timer := time.NewTimer(st.config.Timeout)
	defer timer.Stop()

	select {
	case <-st.notify:
	case <-timer.C:
	case <-st.stop:
	}

	line, _, err := st.pop()
	return line, err
}

func (st *SimulatedTransport) pop() (string, bool, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.closed {
		st.lastErr.set(ErrTransportClosed)
		return "", false, ErrTransportClosed
	}
	if len(st.outgoing) == 0 {
		return "", false, nil
	}
	line := st.outgoing[0]
	st.outgoing = st.outgoing[1:]
	return line, true, nil
}

// WriteLine executes the command on the simulated device and queues its
// response for ReadLine
func (st *SimulatedTransport) WriteLine(line string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.closed {
		st.lastErr.set(ErrTransportClosed)
		return ErrTransportClosed
	}

	st.logger.Debug("Simulated device received", zap.String("line", line))

	response, err := st.device.handle(strings.TrimSpace(line))
	if err != nil {
		st.lastErr.set(err)
		st.logger.Warn("Simulated device rejected command", zap.String("line", line), zap.Error(err))
		return err
	}
	if response == nil {
		st.logger.Debug("No response generated", zap.String("line", line))
		return nil
	}

	st.outgoing = append(st.outgoing, strings.Join(response, ","))
	select {
	case st.notify <- struct{}{}:
	default:
	}
	return nil
}

// Disconnect stops the update loop and drops pending responses
func (st *SimulatedTransport) Disconnect() error {
	st.closeOnce.Do(func() {
		st.mu.Lock()
		st.closed = true
		st.outgoing = nil
		st.mu.Unlock()

		close(st.stop)
		<-st.done
		st.logger.Info("Simulated transport closed")
	})
	return nil
}

// TakeLastError returns and clears the last recorded failure
func (st *SimulatedTransport) TakeLastError() string {
	return st.lastErr.take()
}
