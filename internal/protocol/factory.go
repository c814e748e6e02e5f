// internal/protocol/factory.go
package protocol

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"smartwheel/internal/model"
)

// Factory opens a transport for a connection config
type Factory func(ctx context.Context, cfg model.ConnectionConfig, logger *zap.Logger) (Transport, error)

// CreateTransport opens the transport matching cfg.Kind
func CreateTransport(ctx context.Context, cfg model.ConnectionConfig, logger *zap.Logger) (Transport, error) {
	switch cfg.Kind {
	case model.ConnectionKindSerial:
		return createSerialTransport(cfg, logger)
	case model.ConnectionKindEthernet:
		return createSocketTransport(ctx, cfg, logger)
	case model.ConnectionKindMock:
		return createSimulatedTransport(cfg, logger)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, cfg.Kind)
	}
}

func createSerialTransport(cfg model.ConnectionConfig, logger *zap.Logger) (Transport, error) {
	serialConfig := &SerialConfig{
		Port:     cfg.Comport,
		BaudRate: cfg.Baudrate,
		Timeout:  cfg.Timeout,
	}

	logger.Info("Creating serial transport",
		zap.String("port", serialConfig.Port),
		zap.Int("baud_rate", serialConfig.BaudRate),
		zap.Duration("timeout", serialConfig.Timeout),
	)

	t, err := OpenSerial(serialConfig, logger)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func createSocketTransport(ctx context.Context, cfg model.ConnectionConfig, logger *zap.Logger) (Transport, error) {
	socketConfig := &SocketConfig{
		Host:         cfg.IPAddress,
		Port:         cfg.EthernetPort,
		DialTimeout:  DefaultDialTimeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: DefaultWriteTimeout,
		KeepAlive:    true,
	}

	logger.Info("Creating socket transport",
		zap.String("host", socketConfig.Host),
		zap.Int("port", socketConfig.Port),
	)

	t, err := DialSocket(ctx, socketConfig, logger)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func createSimulatedTransport(cfg model.ConnectionConfig, logger *zap.Logger) (Transport, error) {
	logger.Info("Creating simulated transport", zap.Duration("timeout", cfg.Timeout))

	return NewSimulatedTransport(&SimulatedConfig{
		Timeout:      cfg.Timeout,
		TickInterval: DefaultTickInterval,
	}, logger), nil
}
