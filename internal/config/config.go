// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"smartwheel/internal/model"
)

// Config represents the application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Engine     EngineConfig     `mapstructure:"engine"`
	Connection ConnectionConfig `mapstructure:"connection"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Security   SecurityConfig   `mapstructure:"security"`
	App        AppConfig        `mapstructure:"app"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// EngineConfig tunes the read/write loops of the wheel engine
type EngineConfig struct {
	UpdatePeriod     time.Duration `mapstructure:"update_period"`
	LoopInterval     time.Duration `mapstructure:"loop_interval"`
	ReadAttempts     int           `mapstructure:"read_attempts"`
	PopulateIncoming bool          `mapstructure:"populate_incoming"`
	AutoConnect      bool          `mapstructure:"auto_connect"`
}

// ConnectionConfig points at the persisted connection record. The inline
// fields are used when the record file does not exist yet.
type ConnectionConfig struct {
	RecordPath   string        `mapstructure:"record_path"`
	Kind         string        `mapstructure:"kind"`
	Name         string        `mapstructure:"name"`
	ID           int           `mapstructure:"id"`
	Comport      string        `mapstructure:"comport"`
	Baudrate     int           `mapstructure:"baudrate"`
	Timeout      time.Duration `mapstructure:"timeout"`
	IPAddress    string        `mapstructure:"ip_address"`
	EthernetPort int           `mapstructure:"ethernet_port"`
}

// MetricsConfig represents prometheus configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// RedisConfig represents the message history store
type RedisConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Addr        string `mapstructure:"addr"`
	Password    string `mapstructure:"password"`
	DB          int    `mapstructure:"db"`
	PoolSize    int    `mapstructure:"pool_size"`
	Channel     string `mapstructure:"channel"`
	HistorySize int64  `mapstructure:"history_size"`
}

// SecurityConfig represents security configuration
type SecurityConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// AppConfig represents application metadata
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// Load loads configuration from file and environment variables. A missing
// config file is not an error.
func Load() (*Config, error) {
	v := viper.New()

	if path := os.Getenv("SWM_CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/smartwheel")
	}

	// Environment variable support
	v.SetEnvPrefix("SWM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8084")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)

	// Engine defaults
	v.SetDefault("engine.update_period", "100ms")
	v.SetDefault("engine.loop_interval", "10ms")
	v.SetDefault("engine.read_attempts", 100)
	v.SetDefault("engine.populate_incoming", false)
	v.SetDefault("engine.auto_connect", false)

	// Connection defaults
	v.SetDefault("connection.record_path", "./data/connection.json")
	v.SetDefault("connection.kind", string(model.ConnectionKindMock))
	v.SetDefault("connection.name", model.DefaultName)
	v.SetDefault("connection.id", 0)
	v.SetDefault("connection.comport", model.DefaultComport)
	v.SetDefault("connection.baudrate", model.DefaultBaudrate)
	v.SetDefault("connection.timeout", model.DefaultTimeout.String())
	v.SetDefault("connection.ip_address", model.DefaultIPAddress)
	v.SetDefault("connection.ethernet_port", model.DefaultEthernetPort)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.channel", "smartwheel.messages")
	v.SetDefault("redis.history_size", 1000)

	// Security defaults
	v.SetDefault("security.allowed_origins", []string{"*"})

	// App defaults
	v.SetDefault("app.name", "smartwheel")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Server.Host == "" {
		return fmt.Errorf("server.host is required")
	}
	if config.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if config.Engine.UpdatePeriod <= 0 {
		return fmt.Errorf("engine.update_period must be positive")
	}
	if config.Engine.LoopInterval <= 0 {
		return fmt.Errorf("engine.loop_interval must be positive")
	}
	if config.Engine.ReadAttempts <= 0 {
		return fmt.Errorf("engine.read_attempts must be positive")
	}
	if _, err := model.ParseConnectionKind(config.Connection.Kind); err != nil {
		return fmt.Errorf("connection.kind: %w", err)
	}

	// Validate environment
	validEnvs := []string{"development", "staging", "production", "test"}
	isValidEnv := false
	for _, env := range validEnvs {
		if config.App.Environment == env {
			isValidEnv = true
			break
		}
	}
	if !isValidEnv {
		return fmt.Errorf("app.environment must be one of: %v", validEnvs)
	}

	// Validate logging level
	validLevels := []string{"debug", "info", "warn", "error", "fatal"}
	isValidLevel := false
	for _, level := range validLevels {
		if config.Logging.Level == level {
			isValidLevel = true
			break
		}
	}
	if !isValidLevel {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}

	return nil
}

// DefaultConnection builds the connection config used when no record file
// exists. Only the fields of the configured kind are taken over.
func (c *ConnectionConfig) DefaultConnection() (model.ConnectionConfig, error) {
	kind, err := model.ParseConnectionKind(c.Kind)
	if err != nil {
		return model.ConnectionConfig{}, err
	}

	cfg := model.DefaultConnectionConfig(kind)
	cfg.Name = c.Name
	cfg.ID = c.ID
	if c.Timeout > 0 {
		cfg.Timeout = c.Timeout
	}
	switch kind {
	case model.ConnectionKindSerial:
		cfg.Comport = c.Comport
		cfg.Baudrate = c.Baudrate
	case model.ConnectionKindEthernet:
		cfg.IPAddress = c.IPAddress
		cfg.EthernetPort = c.EthernetPort
	}

	if err := cfg.Validate(); err != nil {
		return model.ConnectionConfig{}, err
	}
	return cfg, nil
}

// GetServerAddr returns the server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// IsProduction checks if the environment is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment checks if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsDebugEnabled checks if debug mode is enabled
func (c *Config) IsDebugEnabled() bool {
	return c.App.Debug || c.IsDevelopment()
}
