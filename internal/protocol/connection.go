// internal/protocol/connection.go
package protocol

import "time"

const (
	DefaultDialTimeout  = 5 * time.Second
	DefaultWriteTimeout = 2 * time.Second
	DefaultTickInterval = 50 * time.Millisecond
)

// SerialConfig represents serial transport configuration
type SerialConfig struct {
	Port     string        `json:"port"`
	BaudRate int           `json:"baud_rate"`
	Timeout  time.Duration `json:"timeout"` // per byte
}

// SocketConfig represents socket transport configuration
type SocketConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	DialTimeout  time.Duration `json:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	KeepAlive    bool          `json:"keep_alive"`
}

// SimulatedConfig represents simulated transport configuration
type SimulatedConfig struct {
	Timeout      time.Duration `json:"timeout"`
	TickInterval time.Duration `json:"tick_interval"`
	Seed         uint64        `json:"seed"`
}
