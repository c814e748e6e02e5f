// internal/swm/engine.go
package swm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"smartwheel/internal/connection"
	"smartwheel/internal/model"
	"smartwheel/internal/monitor"
	"smartwheel/internal/protocol"
)

// Engine states
const (
	StateConnected    = "connected"
	StateNotConnected = "not-connected"
)

const (
	DefaultUpdatePeriod = 100 * time.Millisecond
	DefaultLoopInterval = 10 * time.Millisecond
	DefaultReadAttempts = 100
)

type options struct {
	updatePeriod     time.Duration
	loopInterval     time.Duration
	readAttempts     int
	pollCommands     []PollCommand
	populateIncoming bool
	clock            func() time.Time
	metrics          *monitor.WheelMetrics
}

// Option configures an Engine
type Option func(*options)

// WithUpdatePeriod sets the target poll period
func WithUpdatePeriod(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.updatePeriod = d
		}
	}
}

// WithLoopInterval sets the sleep between loop iterations
func WithLoopInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.loopInterval = d
		}
	}
}

// WithReadAttempts sets how many transport reads the read loop spends on
// assembling one line
func WithReadAttempts(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.readAttempts = n
		}
	}
}

func WithPollCommands(cmds []PollCommand) Option {
	return func(o *options) {
		o.pollCommands = append([]PollCommand(nil), cmds...)
	}
}

// WithPopulateIncoming keeps every received record for DrainIncoming
func WithPopulateIncoming(enabled bool) Option {
	return func(o *options) {
		o.populateIncoming = enabled
	}
}

func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		o.clock = clock
	}
}

func WithMetrics(m *monitor.WheelMetrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// Engine drives one wheel module: a read loop fills the response cache, a
// write loop drains the outbound queue and polls the module periodically.
// An Engine cannot be restarted after ShutDown.
type Engine struct {
	id     uuid.UUID
	conn   *connection.Connection
	logger *zap.Logger
	opts   options

	queue       *commandQueue
	cache       *ResponseCache
	subscribers subscriberList
	scheduler   *pollScheduler

	incomingMu sync.Mutex
	incoming   []Record

	alive          atomic.Bool
	state          atomic.String
	readHeartbeat  atomic.Uint64
	writeHeartbeat atomic.Uint64
	totalReads     atomic.Uint64
	totalWrites    atomic.Uint64

	wg sync.WaitGroup
}

// New creates an engine for conn and starts its read and write loops
func New(conn *connection.Connection, logger *zap.Logger, opts ...Option) *Engine {
	e := newEngine(conn, logger, opts...)
	e.start()
	return e
}

func newEngine(conn *connection.Connection, logger *zap.Logger, opts ...Option) *Engine {
	o := options{
		updatePeriod: DefaultUpdatePeriod,
		loopInterval: DefaultLoopInterval,
		readAttempts: DefaultReadAttempts,
		pollCommands: DefaultPollCommands,
		clock:        time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	e := &Engine{
		id:     uuid.New(),
		conn:   conn,
		logger: logger,
		opts:   o,
		queue:  &commandQueue{},
		cache:  NewResponseCache(),
	}
	e.scheduler = newPollScheduler(o.updatePeriod, o.clock())
	e.alive.Store(true)
	e.updateState()

	logger.Info("New wheel engine",
		zap.String("engine_id", e.id.String()),
		zap.String("connection", conn.Config().String()),
		zap.Duration("update_period", o.updatePeriod),
		zap.Bool("populate_incoming", o.populateIncoming),
	)
	return e
}

func (e *Engine) start() {
	e.wg.Add(2)
	go e.readLoop()
	go e.writeLoop()
}

func (e *Engine) ID() uuid.UUID {
	return e.id
}

// Name is the display name of the connection config
func (e *Engine) Name() string {
	return e.conn.Config().Name
}

func (e *Engine) Slug() string {
	return model.Slugify(e.Name())
}

func (e *Engine) String() string {
	return fmt.Sprintf("%s [%s]", e.Name(), e.Slug())
}

// Connection returns the connection the engine drives
func (e *Engine) Connection() *connection.Connection {
	return e.conn
}

// message logs msg and hands it to every subscriber
func (e *Engine) message(msg string) {
	e.logMessage(msg)
	text := fmt.Sprintf("[%s] %s", e, msg)
	for _, s := range e.subscribers.snapshot() {
		s.fn(e, text)
	}
}

func (e *Engine) logMessage(msg string) {
	e.logger.Debug(msg, zap.String("engine_id", e.id.String()))
}

// Connect opens the connection. The outbound queue and the response cache
// start empty.
func (e *Engine) Connect(ctx context.Context) error {
	if e.conn.IsConnected() {
		return nil
	}
	e.message("connect")
	e.queue.Clear()
	e.cache.Clear()

	err := e.conn.Connect(ctx)
	e.updateState()
	if err != nil {
		e.message(fmt.Sprintf("connect failed: %v", err))
		return err
	}
	return nil
}

// Disconnect closes the connection and drops queued commands and cached
// responses
func (e *Engine) Disconnect() error {
	e.message("disconnect")
	err := e.conn.Disconnect()
	e.queue.Clear()
	e.cache.Clear()
	e.updateState()
	return err
}

func (e *Engine) IsConnected() bool {
	return e.conn.IsConnected()
}

// Status describes the connection and drains pending errors
func (e *Engine) Status() string {
	return e.conn.Status()
}

// State is StateConnected or StateNotConnected as of the last loop iteration
func (e *Engine) State() string {
	return e.state.Load()
}

func (e *Engine) updateState() {
	connected := e.conn.IsConnected()
	if connected {
		e.state.Store(StateConnected)
	} else {
		e.state.Store(StateNotConnected)
	}
	e.opts.metrics.SetConnected(connected)
}

// submit enqueues cmd for a live connection and returns it
func (e *Engine) submit(cmd, event string, followUp ...string) (string, error) {
	return e.submitAt(e.queue.Generation(), cmd, event, followUp...)
}

// submitAt queues cmd and followUp together, or nothing if the queue was
// cleared since gen
func (e *Engine) submitAt(gen uint64, cmd, event string, followUp ...string) (string, error) {
	if !e.conn.IsConnected() || !e.queue.PushAt(gen, append([]string{cmd}, followUp...)...) {
		e.message("you're not connected. try connecting first.")
		return "", connection.ErrNotConnected
	}
	e.message(event)
	return cmd, nil
}

func (e *Engine) Enable() (string, error) {
	return e.submit(CmdEnable, "enable")
}

func (e *Engine) Disable() (string, error) {
	return e.submit(CmdDisable, "disable")
}

func (e *Engine) Reset() (string, error) {
	return e.submit(CmdReset, "reset")
}

// Command queues a raw command line such as "$2,100,900"
func (e *Engine) Command(cmd string) (string, error) {
	return e.submit(cmd, "command: "+cmd)
}

// SetSetpoints sends the speed and direction setpoints
func (e *Engine) SetSetpoints(speed, direction int) (string, error) {
	cmd := formatCommand(CmdSetpoints, speed, direction)
	return e.submit(cmd, "setpoints: "+cmd)
}

func (e *Engine) ResetMinMax() (string, error) {
	return e.submit(CmdResetMinMaxADC, "reset adc min/max")
}

// LoadParameters reloads the PID parameters from the module's persistent
// memory and requests them again
func (e *Engine) LoadParameters() (string, error) {
	return e.submit(CmdLoadParameters, "load parameters from controller", CmdGetPID)
}

func (e *Engine) StoreParameters() (string, error) {
	return e.submit(CmdStoreParameters, "store parameters in controller")
}

// SetPIDParameter sets PID parameter index to value and requests the
// parameters again
func (e *Engine) SetPIDParameter(index, value int) (string, error) {
	cmd := formatCommand(CmdSetPID, index, value)
	return e.submit(cmd, "set pid parameter: "+cmd, CmdGetPID)
}

// ShutDown lets both loops exit at their next iteration
func (e *Engine) ShutDown() {
	if e.alive.Swap(false) {
		e.message("shut down issued")
	}
}

// Wait blocks until both loops have exited
func (e *Engine) Wait() {
	e.wg.Wait()
}

// ReadBudget is the longest a single read loop iteration may spend waiting
// on a silent transport with the given per-read timeout
func (e *Engine) ReadBudget(timeout time.Duration) time.Duration {
	return time.Duration(e.opts.readAttempts)*timeout + e.opts.loopInterval
}

func (e *Engine) LoopInterval() time.Duration { return e.opts.loopInterval }

func (e *Engine) ReadHeartbeat() uint64  { return e.readHeartbeat.Load() }
func (e *Engine) WriteHeartbeat() uint64 { return e.writeHeartbeat.Load() }
func (e *Engine) TotalReads() uint64     { return e.totalReads.Load() }
func (e *Engine) TotalWrites() uint64    { return e.totalWrites.Load() }

// CommandCount is how many records with code were received
func (e *Engine) CommandCount(code string) uint64 {
	return e.cache.Count(code)
}

// QueueLength is the number of commands waiting to be written
func (e *Engine) QueueLength() int {
	return e.queue.Len()
}

// DrainIncoming returns and clears the records kept with
// WithPopulateIncoming, oldest first
func (e *Engine) DrainIncoming() []Record {
	e.incomingMu.Lock()
	defer e.incomingMu.Unlock()
	records := e.incoming
	e.incoming = nil
	return records
}

func (e *Engine) sleep() {
	time.Sleep(e.opts.loopInterval)
}

func (e *Engine) readLoop() {
	defer e.wg.Done()
	for e.alive.Load() {
		e.readOnce()
		e.updateState()
		e.sleep()
		e.readHeartbeat.Inc()
	}
	e.logger.Debug("Read loop stopped", zap.String("engine_id", e.id.String()))
}

// readOnce assembles at most one line from the transport and stores its
// records
func (e *Engine) readOnce() {
	t, err := e.conn.Transport()
	if err != nil {
		return
	}
	gen := e.cache.Generation()

	var line string
	for attempt := 0; line == "" && attempt < e.opts.readAttempts; attempt++ {
		line, err = t.ReadLine()
		if err != nil {
			e.transportError(t, "read")
			return
		}
	}
	if line == "" {
		return
	}

	e.logger.Debug("Read", zap.String("line", line))

	for _, record := range parseFrame(line) {
		if !e.cache.StoreAt(gen, record) {
			return
		}
		e.totalReads.Inc()
		e.opts.metrics.RecordReceived(record.Code())
		if e.opts.populateIncoming {
			e.incomingMu.Lock()
			e.incoming = append(e.incoming, record)
			e.incomingMu.Unlock()
		}
	}
}

func (e *Engine) writeLoop() {
	defer e.wg.Done()
	for e.alive.Load() {
		e.writeOnce()
		if e.conn.IsConnected() {
			e.poll(e.opts.clock())
		}
		e.sleep()
		e.writeHeartbeat.Inc()
	}
	e.logger.Debug("Write loop stopped", zap.String("engine_id", e.id.String()))
}

// writeOnce drains the outbound queue. A failed write drops the command.
func (e *Engine) writeOnce() {
	t, err := e.conn.Transport()
	if err != nil {
		return
	}

	for {
		cmd, ok := e.queue.Pop()
		if !ok {
			break
		}
		if err := t.WriteLine(cmd); err != nil {
			e.transportError(t, "write")
			break
		}
		e.totalWrites.Inc()
		e.opts.metrics.CommandWritten()
	}
	e.opts.metrics.QueueLength(e.queue.Len())
}

// transportError surfaces the transport's last error to subscribers. Errors
// of a transport that was disconnected meanwhile are ignored.
func (e *Engine) transportError(t protocol.Transport, loop string) {
	if !e.conn.IsConnected() {
		return
	}
	e.opts.metrics.TransportError(loop)
	if msg := t.TakeLastError(); msg != "" {
		e.logger.Warn("Transport error", zap.String("loop", loop), zap.String("error", msg))
		e.message(fmt.Sprintf("ERROR in %s loop from connection: %s", loop, msg))
	}
}

// poll runs the scheduler and queues the poll set when a period elapsed
func (e *Engine) poll(now time.Time) {
	due, missed := e.scheduler.tick(now)
	if missed > 0 {
		e.logger.Info("Missed update steps", zap.Int("missed", missed))
		e.opts.metrics.MissedPollSteps(missed)
	}
	if !due {
		return
	}
	e.enqueuePoll()
}

// enqueuePoll queues every poll command once. Once commands are skipped
// while their code is cached.
func (e *Engine) enqueuePoll() {
	gen := e.queue.Generation()
	cmds := make([]string, 0, len(e.opts.pollCommands))
	for _, pc := range e.opts.pollCommands {
		if pc.Once && e.cache.Has(CommandCode(pc.Command)) {
			continue
		}
		e.logMessage("command: " + pc.Command)
		cmds = append(cmds, pc.Command)
	}
	if len(cmds) > 0 {
		e.queue.PushAt(gen, cmds...)
	}
}
