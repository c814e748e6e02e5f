// internal/protocol/socket_transport.go
package protocol

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"syscall"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

const socketReadChunk = 1024

// SocketTransport implements Transport over a CRLF framed stream socket
type SocketTransport struct {
	config *SocketConfig
	conn   net.Conn
	logger *zap.Logger

	readMu  sync.Mutex
	pending []byte
	chunk   []byte

	writeMu sync.Mutex

	closed    atomic.Bool
	closeOnce sync.Once
	lastErr   lastError
}

// DialSocket connects to config.Host:config.Port. A refused connection is
// reported as ErrConnectionRefused.
func DialSocket(ctx context.Context, config *SocketConfig, logger *zap.Logger) (*SocketTransport, error) {
	address := net.JoinHostPort(config.Host, fmt.Sprint(config.Port))

	dialer := &net.Dialer{
		Timeout: config.DialTimeout,
	}
	if config.KeepAlive {
		dialer.KeepAlive = 30 * time.Second
	}

	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		logger.Error("Failed to open socket", zap.String("address", address), zap.Error(err))
		if errors.Is(err, syscall.ECONNREFUSED) {
			return nil, fmt.Errorf("%w: %s", ErrConnectionRefused, address)
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", address, err)
	}

	return NewSocketTransport(conn, config, logger), nil
}

// NewSocketTransport wraps an already connected stream
func NewSocketTransport(conn net.Conn, config *SocketConfig, logger *zap.Logger) *SocketTransport {
	st := &SocketTransport{
		config: config,
		conn:   conn,
		logger: logger.With(
			zap.String("transport", "socket"),
			zap.String("remote", conn.RemoteAddr().String()),
		),
		chunk: make([]byte, socketReadChunk),
	}
	st.logger.Info("Socket connection opened successfully")
	return st
}

// ReadLine performs at most one receive and returns the next complete line
func (st *SocketTransport) ReadLine() (string, error) {
	if st.closed.Load() {
		st.lastErr.set(ErrTransportClosed)
		return "", ErrTransportClosed
	}

	st.readMu.Lock()
	defer st.readMu.Unlock()

	if line, ok := st.popLine(); ok {
		return line, nil
	}

	if st.config.ReadTimeout > 0 {
		st.conn.SetReadDeadline(time.Now().Add(st.config.ReadTimeout))
	}

	n, err := st.conn.Read(st.chunk)
	if n > 0 {
		st.pending = append(st.pending, st.chunk[:n]...)
	}
	if err != nil {
		var netErr net.Error
		if !errors.As(err, &netErr) || !netErr.Timeout() {
			err = fmt.Errorf("failed to read from socket: %w", err)
			st.lastErr.set(err)
			return "", err
		}
	}

	line, _ := st.popLine()
	return line, nil
}

// popLine removes the first non-empty CR/LF terminated line from pending
func (st *SocketTransport) popLine() (string, bool) {
	for {
		idx := bytes.IndexAny(st.pending, "\r\n")
		if idx < 0 {
			return "", false
		}
		line := st.pending[:idx]
		st.pending = st.pending[idx+1:]
		if len(line) > 0 {
			return string(line), true
		}
	}
}

// WriteLine writes line followed by the line terminator
func (st *SocketTransport) WriteLine(line string) error {
	if st.closed.Load() {
		st.lastErr.set(ErrTransportClosed)
		return ErrTransportClosed
	}

	st.writeMu.Lock()
	defer st.writeMu.Unlock()

	if st.config.WriteTimeout > 0 {
		st.conn.SetWriteDeadline(time.Now().Add(st.config.WriteTimeout))
	}

	data := []byte(line + LineTerminator)
	n, err := st.conn.Write(data)
	if err != nil {
		err = fmt.Errorf("failed to write to socket: %w", err)
		st.lastErr.set(err)
		st.logger.Error("Socket write failed", zap.Error(err))
		return err
	}
	if n != len(data) {
		err = fmt.Errorf("incomplete write: wrote %d of %d bytes", n, len(data))
		st.lastErr.set(err)
		return err
	}

	st.logger.Debug("Socket write completed", zap.String("line", line))
	return nil
}

// Disconnect shuts down the write side, then closes the socket
func (st *SocketTransport) Disconnect() error {
	var err error
	st.closeOnce.Do(func() {
		st.closed.Store(true)
		if tcpConn, ok := st.conn.(*net.TCPConn); ok {
			tcpConn.CloseWrite()
		}
		if cerr := st.conn.Close(); cerr != nil {
			err = fmt.Errorf("failed to close socket: %w", cerr)
			st.logger.Error("Failed to close socket", zap.Error(cerr))
			return
		}
		st.logger.Info("Socket connection closed successfully")
	})
	return err
}

// TakeLastError returns and clears the last recorded failure
func (st *SocketTransport) TakeLastError() string {
	return st.lastErr.take()
}
