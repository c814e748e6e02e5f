// internal/model/connection.go
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ConnectionKind represents how the wheel module is reached
type ConnectionKind string

const (
	ConnectionKindSerial   ConnectionKind = "serial"
	ConnectionKindMock     ConnectionKind = "mock"
	ConnectionKindEthernet ConnectionKind = "ethernet"
)

// Baudrates lists the line speeds the wheel module firmware accepts
var Baudrates = []int{9600, 19200, 38400, 57600, 115200, 230400, 250000}

// Defaults used when a config is created from scratch
const (
	DefaultName         = "wheel"
	DefaultComport      = "/dev/ttyUSB0"
	DefaultBaudrate     = 115200
	DefaultTimeout      = 10 * time.Millisecond
	DefaultIPAddress    = "127.0.0.1"
	DefaultEthernetPort = 5000
)

// ErrInvalidConfig is returned when a connection config fails validation
var ErrInvalidConfig = errors.New("invalid connection config")

// ConnectionConfig describes one wheel module connection. Only the fields
// belonging to Kind are meaningful.
type ConnectionConfig struct {
	Kind         ConnectionKind
	Name         string
	ID           int
	Comport      string
	Baudrate     int
	Timeout      time.Duration
	IPAddress    string
	EthernetPort int
}

// ConnectionRecord is the persisted form of a ConnectionConfig.
// Timeout is stored in seconds.
type ConnectionRecord struct {
	Kind         ConnectionKind `json:"kind" yaml:"kind"`
	Name         string         `json:"name" yaml:"name"`
	ID           int            `json:"id" yaml:"id"`
	Comport      string         `json:"comport,omitempty" yaml:"comport,omitempty"`
	Baudrate     int            `json:"baudrate,omitempty" yaml:"baudrate,omitempty"`
	Timeout      float64        `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	IPAddress    string         `json:"ip_address,omitempty" yaml:"ip_address,omitempty"`
	EthernetPort int            `json:"ethernet_port,omitempty" yaml:"ethernet_port,omitempty"`
}

// ParseConnectionKind parses a kind name, case-insensitively
func ParseConnectionKind(s string) (ConnectionKind, error) {
	kind := ConnectionKind(strings.ToLower(strings.TrimSpace(s)))
	switch kind {
	case ConnectionKindSerial, ConnectionKindMock, ConnectionKindEthernet:
		return kind, nil
	default:
		return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidConfig, s)
	}
}

// DefaultConnectionConfig returns a fresh config for kind with only the
// fields of that kind populated. Changing the kind of a connection means
// replacing its config with one of these.
func DefaultConnectionConfig(kind ConnectionKind) ConnectionConfig {
	cfg := ConnectionConfig{
		Kind:    kind,
		Name:    DefaultName,
		Timeout: DefaultTimeout,
	}

	switch kind {
	case ConnectionKindSerial:
		cfg.Comport = DefaultComport
		cfg.Baudrate = DefaultBaudrate
	case ConnectionKindEthernet:
		cfg.IPAddress = DefaultIPAddress
		cfg.EthernetPort = DefaultEthernetPort
	}

	return cfg
}

// Validate checks the fields relevant to the config's kind
func (c ConnectionConfig) Validate() error {
	switch c.Kind {
	case ConnectionKindSerial:
		if c.Comport == "" {
			return fmt.Errorf("%w: comport is required", ErrInvalidConfig)
		}
		valid := false
		for _, rate := range Baudrates {
			if c.Baudrate == rate {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("%w: invalid baudrate: %d", ErrInvalidConfig, c.Baudrate)
		}
		if c.Timeout <= 0 {
			return fmt.Errorf("%w: timeout must be positive", ErrInvalidConfig)
		}
	case ConnectionKindEthernet:
		if c.IPAddress == "" {
			return fmt.Errorf("%w: ip address is required", ErrInvalidConfig)
		}
		if c.EthernetPort < 1 || c.EthernetPort > 65535 {
			return fmt.Errorf("%w: invalid port number: %d", ErrInvalidConfig, c.EthernetPort)
		}
	case ConnectionKindMock:
	default:
		return fmt.Errorf("%w: unsupported kind %q", ErrInvalidConfig, c.Kind)
	}
	return nil
}

// Address returns a display address for the active kind
func (c ConnectionConfig) Address() string {
	switch c.Kind {
	case ConnectionKindSerial:
		return fmt.Sprintf("%s@%d", c.Comport, c.Baudrate)
	case ConnectionKindEthernet:
		return fmt.Sprintf("%s:%d", c.IPAddress, c.EthernetPort)
	default:
		return string(c.Kind)
	}
}

// Slug returns the lower-case, dash separated form of the display name
func (c ConnectionConfig) Slug() string {
	return Slugify(c.Name)
}

func (c ConnectionConfig) String() string {
	return fmt.Sprintf("%s [%s] %s", c.Name, c.Kind, c.Address())
}

// Record converts the config into its persisted form. Fields that do not
// belong to the kind are left out.
func (c ConnectionConfig) Record() ConnectionRecord {
	rec := ConnectionRecord{
		Kind: c.Kind,
		Name: c.Name,
		ID:   c.ID,
	}

	switch c.Kind {
	case ConnectionKindSerial:
		rec.Comport = c.Comport
		rec.Baudrate = c.Baudrate
		rec.Timeout = c.Timeout.Seconds()
	case ConnectionKindEthernet:
		rec.IPAddress = c.IPAddress
		rec.EthernetPort = c.EthernetPort
	}

	return rec
}

// Config converts a record back into a validated ConnectionConfig
func (r ConnectionRecord) Config() (ConnectionConfig, error) {
	kind, err := ParseConnectionKind(string(r.Kind))
	if err != nil {
		return ConnectionConfig{}, err
	}

	cfg := ConnectionConfig{
		Kind:    kind,
		Name:    r.Name,
		ID:      r.ID,
		Timeout: DefaultTimeout,
	}

	switch kind {
	case ConnectionKindSerial:
		cfg.Comport = r.Comport
		cfg.Baudrate = r.Baudrate
		if r.Timeout > 0 {
			cfg.Timeout = time.Duration(math.Round(r.Timeout * float64(time.Second)))
		}
	case ConnectionKindEthernet:
		cfg.IPAddress = r.IPAddress
		cfg.EthernetPort = r.EthernetPort
	}

	if err := cfg.Validate(); err != nil {
		return ConnectionConfig{}, err
	}
	return cfg, nil
}

// MarshalJSON encodes the config as its record
func (c ConnectionConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Record())
}

// UnmarshalJSON decodes a record and validates it
func (c *ConnectionConfig) UnmarshalJSON(data []byte) error {
	var rec ConnectionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	cfg, err := rec.Config()
	if err != nil {
		return err
	}
	*c = cfg
	return nil
}

// MarshalYAML encodes the config as its record
func (c ConnectionConfig) MarshalYAML() (interface{}, error) {
	return c.Record(), nil
}

// UnmarshalYAML decodes a record and validates it
func (c *ConnectionConfig) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var rec ConnectionRecord
	if err := unmarshal(&rec); err != nil {
		return err
	}
	cfg, err := rec.Config()
	if err != nil {
		return err
	}
	*c = cfg
	return nil
}

// Slugify lower-cases s and replaces spaces with dashes
func Slugify(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), " ", "-")
}
