// internal/connection/connection.go
package connection

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"smartwheel/internal/model"
	"smartwheel/internal/protocol"
)

// ErrNotConnected is returned when an operation needs a live transport
var ErrNotConnected = errors.New("not connected")

// ErrConnected is returned when the config is replaced on a live connection
var ErrConnected = errors.New("connection is active")

// Connection owns one ConnectionConfig and, while connected, the transport
// opened for it. transport == nil iff not connected.
type Connection struct {
	mu        sync.RWMutex
	config    model.ConnectionConfig
	transport protocol.Transport
	lastErr   string

	factory protocol.Factory
	logger  *zap.Logger
}

// Option configures a Connection
type Option func(*Connection)

// WithTransportFactory replaces the factory used by Connect
func WithTransportFactory(f protocol.Factory) Option {
	return func(c *Connection) {
		c.factory = f
	}
}

// NewConnection creates a disconnected Connection for config
func NewConnection(config model.ConnectionConfig, logger *zap.Logger, opts ...Option) *Connection {
	c := &Connection{
		config:  config,
		factory: protocol.CreateTransport,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect opens the transport matching the config kind. Calling Connect on
// a live connection is a no-op.
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.transport != nil {
		return nil
	}

	if err := c.config.Validate(); err != nil {
		c.lastErr = err.Error()
		return err
	}

	c.logger.Info("Connecting", zap.String("connection", c.config.String()))

	t, err := c.factory(ctx, c.config, c.logger)
	if err != nil {
		c.lastErr = err.Error()
		c.logger.Error("Connect failed", zap.String("connection", c.config.String()), zap.Error(err))
		return fmt.Errorf("connect %s: %w", c.config.Address(), err)
	}

	c.transport = t
	c.lastErr = ""
	c.logger.Info("Connected", zap.String("connection", c.config.String()))
	return nil
}

// Disconnect detaches the transport and then closes it, so concurrent users
// see "not connected" before the resource goes away.
func (c *Connection) Disconnect() error {
	c.mu.Lock()
	t := c.transport
	c.transport = nil
	c.mu.Unlock()

	if t == nil {
		return nil
	}

	if err := t.Disconnect(); err != nil {
		c.mu.Lock()
		c.lastErr = err.Error()
		c.mu.Unlock()
		c.logger.Warn("Transport disconnect failed", zap.Error(err))
		return err
	}

	c.logger.Info("Disconnected", zap.String("connection", c.config.String()))
	return nil
}

func (c *Connection) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.transport != nil
}

// Transport returns the live transport or ErrNotConnected
func (c *Connection) Transport() (protocol.Transport, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.transport == nil {
		return nil, ErrNotConnected
	}
	return c.transport, nil
}

func (c *Connection) Config() model.ConnectionConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.config
}

// SetConfig replaces the config wholesale. Only allowed while disconnected.
func (c *Connection) SetConfig(config model.ConnectionConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transport != nil {
		return ErrConnected
	}
	c.config = config
	return nil
}

// LastError returns the last connect or disconnect failure
func (c *Connection) LastError() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// Status describes the connection state followed by any pending connection
// and transport errors. Transport errors are drained.
func (c *Connection) Status() string {
	c.mu.RLock()
	t := c.transport
	connErr := c.lastErr
	c.mu.RUnlock()

	parts := []string{"not connected"}
	if t != nil {
		parts[0] = "connected"
	}
	if connErr != "" {
		parts = append(parts, connErr)
	}
	if t != nil {
		if tErr := t.TakeLastError(); tErr != "" {
			parts = append(parts, tErr)
		}
	}
	return strings.Join(parts, ", ")
}
