// internal/comports/scanner.go
package comports

import (
	"context"
	"fmt"
	"sort"

	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"
)

// Comport is a serial port the wheel module may be attached to
type Comport struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	HardwareID  string `json:"hardware_id"`
	IsUSB       bool   `json:"is_usb"`
}

// PortLister enumerates the serial ports of the host
type PortLister func() ([]*enumerator.PortDetails, error)

// Scanner lists the serial ports available for a serial connection
type Scanner struct {
	logger *zap.Logger
	list   PortLister
}

// NewScanner creates a scanner backed by the OS port enumerator
func NewScanner(logger *zap.Logger) *Scanner {
	return NewScannerWithLister(logger, enumerator.GetDetailedPortsList)
}

func NewScannerWithLister(logger *zap.Logger, list PortLister) *Scanner {
	return &Scanner{
		logger: logger.With(zap.String("scanner", "serial")),
		list:   list,
	}
}

// Scan returns the ports sorted by name
func (s *Scanner) Scan(ctx context.Context) ([]Comport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	details, err := s.list()
	if err != nil {
		return nil, fmt.Errorf("failed to get serial ports: %w", err)
	}

	ports := make([]Comport, 0, len(details))
	for _, d := range details {
		if d == nil || d.Name == "" {
			continue
		}
		ports = append(ports, newComport(d))
	}
	sort.Slice(ports, func(i, j int) bool { return ports[i].Name < ports[j].Name })

	s.logger.Debug("Serial port scan completed", zap.Int("ports_found", len(ports)))
	return ports, nil
}

func newComport(d *enumerator.PortDetails) Comport {
	port := Comport{
		Name:        d.Name,
		Description: d.Product,
		IsUSB:       d.IsUSB,
	}
	if port.Description == "" {
		port.Description = "n/a"
	}

	if d.IsUSB {
		port.HardwareID = fmt.Sprintf("USB VID:PID=%s:%s", d.VID, d.PID)
		if d.SerialNumber != "" {
			port.HardwareID += " SER=" + d.SerialNumber
		}
	} else {
		port.HardwareID = "n/a"
	}
	return port
}
