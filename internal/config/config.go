package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration. The ledger and the
// orchestrator binaries read the same file layout; each uses the sections
// it needs.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Store        StoreConfig        `yaml:"store"`
	LedgerClient LedgerClientConfig `yaml:"ledger_client"`
	Events       EventsConfig       `yaml:"events"`
	Counter      CounterConfig      `yaml:"counter"`
	Log          LogConfig          `yaml:"log"`
	Scheduler    SchedulerConfig    `yaml:"scheduler"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// InternalSecret guards the ledger routes (X-Internal-Secret). Empty disables the check.
	InternalSecret      string `yaml:"internal_secret"`
	ReadTimeoutSeconds  int    `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `yaml:"write_timeout_seconds"`
}

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
}

// StoreConfig selects the repository backend
type StoreConfig struct {
	Driver string `yaml:"driver"` // "postgres" or "memory"
}

// LedgerClientConfig configures the orchestrator's HTTP client to the ledger
type LedgerClientConfig struct {
	BaseURL        string        `yaml:"base_url"`
	TimeoutSeconds int           `yaml:"timeout_seconds"`
	InternalSecret string        `yaml:"internal_secret"`
	Breaker        BreakerConfig `yaml:"breaker"`
}

// BreakerConfig maps onto gobreaker.Settings
type BreakerConfig struct {
	MaxRequests         uint32 `yaml:"max_requests"`
	IntervalSeconds     int    `yaml:"interval_seconds"`
	TimeoutSeconds      int    `yaml:"timeout_seconds"`
	ConsecutiveFailures uint32 `yaml:"consecutive_failures"`
}

// EventsConfig configures the event sink
type EventsConfig struct {
	Driver    string `yaml:"driver"` // "rabbitmq" or "log"
	AMQPURL   string `yaml:"amqp_url"`
	Exchange  string `yaml:"exchange"`
	Workers   int    `yaml:"workers"`
	QueueSize int    `yaml:"queue_size"`
}

// CounterConfig contains counter deposit settings
type CounterConfig struct {
	PendingTTLHours int `yaml:"pending_ttl_hours"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// SchedulerConfig contains cron schedule settings
type SchedulerConfig struct {
	ReconcileStaffLoad         string `yaml:"reconcile_staff_load"`
	ExpireStaleCounterDeposits string `yaml:"expire_stale_counter_deposits"`
}

// Load reads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse builds a Config from YAML bytes, applies environment overrides and validates it.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override with environment variables if present
	cfg.overrideWithEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() {
	// Database
	if val := os.Getenv("DB_HOST"); val != "" {
		c.Database.Host = val
	}
	if val := os.Getenv("DB_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Database.Port)
	}
	if val := os.Getenv("DB_USER"); val != "" {
		c.Database.User = val
	}
	if val := os.Getenv("DB_PASSWORD"); val != "" {
		c.Database.Password = val
	}
	if val := os.Getenv("DB_NAME"); val != "" {
		c.Database.Database = val
	}
	if val := os.Getenv("DB_SSL_MODE"); val != "" {
		c.Database.SSLMode = val
	}
	if val := os.Getenv("STORE_DRIVER"); val != "" {
		c.Store.Driver = val
	}

	// Server
	if val := os.Getenv("SERVER_HOST"); val != "" {
		c.Server.Host = val
	}
	if val := os.Getenv("SERVER_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.Port)
	}
	if val := os.Getenv("INTERNAL_SECRET"); val != "" {
		c.Server.InternalSecret = val
		c.LedgerClient.InternalSecret = val
	}

	// Ledger client
	if val := os.Getenv("LEDGER_URL"); val != "" {
		c.LedgerClient.BaseURL = val
	}

	// Events
	if val := os.Getenv("EVENTS_DRIVER"); val != "" {
		c.Events.Driver = val
	}
	if val := os.Getenv("AMQP_URL"); val != "" {
		c.Events.AMQPURL = val
	}

	// Log
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}

	// Set defaults for log if not configured
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks if the configuration is valid and fills defaults
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeoutSeconds == 0 {
		c.Server.ReadTimeoutSeconds = 10
	}
	if c.Server.WriteTimeoutSeconds == 0 {
		c.Server.WriteTimeoutSeconds = 15
	}

	// Store validation
	switch c.Store.Driver {
	case "":
		c.Store.Driver = "postgres"
	case "postgres", "memory":
	default:
		return fmt.Errorf("unsupported store driver: %s", c.Store.Driver)
	}
	if c.Store.Driver == "postgres" {
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if c.Database.SSLMode == "" {
			c.Database.SSLMode = "disable"
		}
	}

	// Ledger client defaults
	if c.LedgerClient.TimeoutSeconds == 0 {
		c.LedgerClient.TimeoutSeconds = 5
	}
	if c.LedgerClient.Breaker.MaxRequests == 0 {
		c.LedgerClient.Breaker.MaxRequests = 3
	}
	if c.LedgerClient.Breaker.IntervalSeconds == 0 {
		c.LedgerClient.Breaker.IntervalSeconds = 120
	}
	if c.LedgerClient.Breaker.TimeoutSeconds == 0 {
		c.LedgerClient.Breaker.TimeoutSeconds = 10
	}
	if c.LedgerClient.Breaker.ConsecutiveFailures == 0 {
		c.LedgerClient.Breaker.ConsecutiveFailures = 5
	}

	// Events validation
	switch c.Events.Driver {
	case "":
		c.Events.Driver = "log"
	case "log":
	case "rabbitmq":
		if c.Events.AMQPURL == "" {
			return fmt.Errorf("amqp url is required for rabbitmq events")
		}
	default:
		return fmt.Errorf("unsupported events driver: %s", c.Events.Driver)
	}
	if c.Events.Exchange == "" {
		c.Events.Exchange = "minibank.events"
	}
	if c.Events.Workers <= 0 {
		c.Events.Workers = 2
	}
	if c.Events.QueueSize <= 0 {
		c.Events.QueueSize = 1024
	}

	// Counter defaults
	if c.Counter.PendingTTLHours == 0 {
		c.Counter.PendingTTLHours = 24
	}

	// Scheduler defaults
	if c.Scheduler.ReconcileStaffLoad == "" {
		c.Scheduler.ReconcileStaffLoad = "0 */5 * * * *" // every 5 minutes
	}
	if c.Scheduler.ExpireStaleCounterDeposits == "" {
		c.Scheduler.ExpireStaleCounterDeposits = "0 0 1 * * *" // 1 AM UTC
	}

	return nil
}

// ValidateOrchestrator checks the settings only the orchestrator needs
func (c *Config) ValidateOrchestrator() error {
	if c.LedgerClient.BaseURL == "" {
		return fmt.Errorf("ledger_client.base_url is required")
	}
	return nil
}

// GetDatabaseConnectionString returns a PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetServerAddress returns the HTTP listen address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// LedgerTimeout returns the fixed timeout for one ledger call
func (c *Config) LedgerTimeout() time.Duration {
	return time.Duration(c.LedgerClient.TimeoutSeconds) * time.Second
}

// PendingTTL returns how long a counter deposit may stay pending
func (c *Config) PendingTTL() time.Duration {
	return time.Duration(c.Counter.PendingTTLHours) * time.Hour
}
