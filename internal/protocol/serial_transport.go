// internal/protocol/serial_transport.go
package protocol

import (
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

type serialPort interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	SetReadTimeout(timeout time.Duration) error
	Close() error
}

// overridden in tests
var openPort = func(name string, mode *serial.Mode) (serialPort, error) {
	return serial.Open(name, mode)
}

// SerialTransport implements Transport over a serial line.
//
// ReadLine reads a single byte per call so that a pending write never waits
// behind a long blocking read.
type SerialTransport struct {
	config *SerialConfig
	port   serialPort
	logger *zap.Logger

	readMu  sync.Mutex
	buf     []byte
	oneByte [1]byte

	writeMu sync.Mutex

	closed    atomic.Bool
	closeOnce sync.Once
	lastErr   lastError
}

// OpenSerial opens the serial port described by config
func OpenSerial(config *SerialConfig, logger *zap.Logger) (*SerialTransport, error) {
	if config.Port == "" {
		return nil, fmt.Errorf("serial port is required")
	}

	logger = logger.With(
		zap.String("transport", "serial"),
		zap.String("port", config.Port),
	)

	mode := &serial.Mode{
		BaudRate: config.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := openPort(config.Port, mode)
	if err != nil {
		logger.Error("Failed to open serial port", zap.Error(err))
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}

	if err := port.SetReadTimeout(config.Timeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}

	logger.Info("Serial port opened successfully", zap.Int("baud_rate", config.BaudRate))

	return &SerialTransport{
		config: config,
		port:   port,
		logger: logger,
		buf:    make([]byte, 0, 128),
	}, nil
}

// ReadLine reads at most one byte. It returns the accumulated line once a
// CR or LF arrives and an empty string otherwise.
func (st *SerialTransport) ReadLine() (string, error) {
	if st.closed.Load() {
		st.lastErr.set(ErrTransportClosed)
		return "", ErrTransportClosed
	}

	st.readMu.Lock()
	defer st.readMu.Unlock()

	n, err := st.port.Read(st.oneByte[:])
	if err != nil {
		err = fmt.Errorf("failed to read from serial port: %w", err)
		st.lastErr.set(err)
		return "", err
	}
	if n == 0 {
		return "", nil
	}

	c := st.oneByte[0]
	if c == '\r' || c == '\n' {
		if len(st.buf) == 0 {
			return "", nil
		}
		line := string(st.buf)
		st.buf = st.buf[:0]
		return line, nil
	}

	st.buf = append(st.buf, c)
	return "", nil
}

// WriteLine writes line followed by the line terminator
func (st *SerialTransport) WriteLine(line string) error {
	if st.closed.Load() {
		st.lastErr.set(ErrTransportClosed)
		return ErrTransportClosed
	}

	st.writeMu.Lock()
	defer st.writeMu.Unlock()

	data := []byte(line + LineTerminator)
	n, err := st.port.Write(data)
	if err != nil {
		err = fmt.Errorf("failed to write to serial port: %w", err)
		st.lastErr.set(err)
		st.logger.Error("Serial write failed", zap.Error(err))
		return err
	}
	if n != len(data) {
		err = fmt.Errorf("incomplete write: wrote %d of %d bytes", n, len(data))
		st.lastErr.set(err)
		return err
	}

	st.logger.Debug("Serial write completed", zap.String("line", line))
	return nil
}

// Disconnect closes the port. Only the first call has an effect.
func (st *SerialTransport) Disconnect() error {
	var err error
	st.closeOnce.Do(func() {
		st.closed.Store(true)
		if cerr := st.port.Close(); cerr != nil {
			err = fmt.Errorf("failed to close serial port: %w", cerr)
			st.logger.Error("Failed to close serial port", zap.Error(cerr))
			return
		}
		st.logger.Info("Serial port closed successfully")
	})
	return err
}

// TakeLastError returns and clears the last recorded failure
func (st *SerialTransport) TakeLastError() string {
	return st.lastErr.take()
}
