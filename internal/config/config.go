package config

import (
	"fmt"
	"sort"
	"time"

	"github.com/jonesrussell/pricescout/internal/logger"
)

// Server defaults.
const (
	defaultServerPort         = 8080
	defaultServerReadTimeout  = 30 * time.Second
	defaultServerWriteTimeout = 30 * time.Second
	defaultServerIdleTimeout  = 60 * time.Second
)

// Search defaults.
const (
	defaultMaxResults        = 50
	defaultSearchTimeout     = 30 * time.Second
	defaultRetention         = 10 * time.Minute
	defaultClientBufferSize  = 256
	defaultHeartbeatInterval = 15 * time.Second
)

// Vendor defaults.
const (
	defaultVendorBaseDelay  = 1 * time.Second
	defaultVendorMaxRetries = 3
	defaultVendorTimeout    = 30 * time.Second
)

// Persistence defaults.
const (
	defaultPersistWorkers     = 2
	defaultPersistQueueSize   = 64
	defaultPersistSaveTimeout = 10 * time.Second
)

// Config is the root application configuration.
type Config struct {
	Logging     logger.Config           `yaml:"logging"`
	Server      ServerConfig            `yaml:"server"`
	Search      SearchConfig            `yaml:"search"`
	Database    DatabaseConfig          `yaml:"database"`
	Persistence PersistenceConfig       `yaml:"persistence"`
	Vendors     map[string]VendorConfig `yaml:"vendors"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           int           `yaml:"port" env:"SERVER_PORT"`
	AllowedOrigins []string      `yaml:"allowed_origins" env:"SERVER_ALLOWED_ORIGINS"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	Debug          bool          `yaml:"debug" env:"SERVER_DEBUG"`
}

// Address returns the listen address in :port form.
func (c ServerConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// SearchConfig holds orchestration and streaming configuration.
type SearchConfig struct {
	// DefaultMaxResults caps results per vendor when a request omits it.
	DefaultMaxResults int `yaml:"default_max_results"`
	// DefaultTimeout bounds a whole search when a request omits it.
	DefaultTimeout time.Duration `yaml:"default_timeout"`
	// Retention is how long terminal searches stay queryable.
	Retention time.Duration `yaml:"retention" env:"SEARCH_RETENTION"`
	// ClientBufferSize is the per-subscriber event buffer.
	ClientBufferSize int `yaml:"client_buffer_size"`
	// HeartbeatInterval is how often idle SSE streams receive a comment.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
}

// DatabaseConfig holds PostgreSQL configuration for background persistence.
type DatabaseConfig struct {
	Enabled  bool   `yaml:"enabled" env:"DB_ENABLED"`
	Host     string `yaml:"host" env:"DB_HOST"`
	Port     int    `yaml:"port" env:"DB_PORT"`
	User     string `yaml:"user" env:"DB_USER"`
	Password string `yaml:"password" env:"DB_PASSWORD"`
	Database string `yaml:"database" env:"DB_NAME"`
	SSLMode  string `yaml:"sslmode" env:"DB_SSLMODE"`
}

// DSN returns the PostgreSQL connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// PersistenceConfig sizes the background persistence worker pool.
type PersistenceConfig struct {
	Workers     int           `yaml:"workers"`
	QueueSize   int           `yaml:"queue_size"`
	SaveTimeout time.Duration `yaml:"save_timeout"`
}

// VendorConfig configures one vendor adapter and its fetch behavior.
type VendorConfig struct {
	Name       string        `yaml:"name"`
	BaseURL    string        `yaml:"base_url"`
	Enabled    bool          `yaml:"enabled"`
	BaseDelay  time.Duration `yaml:"base_delay"`
	MaxRetries int           `yaml:"max_retries"`
	Timeout    time.Duration `yaml:"timeout"`
}

// DefaultVendors returns configurations for the supported Guatemalan
// vendors. Used when the config file declares no vendors section.
func DefaultVendors() map[string]VendorConfig {
	return map[string]VendorConfig{
		"cemaco": {
			Name:    "Cemaco",
			BaseURL: "https://www.cemaco.com",
			Enabled: true,
		},
		"max": {
			Name:    "Max",
			BaseURL: "https://max.com.gt",
			Enabled: true,
		},
		"elektra": {
			Name:    "Elektra",
			BaseURL: "https://elektra.com.gt",
			Enabled: true,
		},
		"walmart": {
			Name:    "Walmart",
			BaseURL: "https://walmart.com.gt",
			Enabled: true,
		},
	}
}

// SetDefaults applies default values for every unset field.
func (c *Config) SetDefaults() {
	c.Logging.SetDefaults()

	if c.Server.Port == 0 {
		c.Server.Port = defaultServerPort
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = defaultServerReadTimeout
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = defaultServerWriteTimeout
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = defaultServerIdleTimeout
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}

	if c.Search.DefaultMaxResults == 0 {
		c.Search.DefaultMaxResults = defaultMaxResults
	}
	if c.Search.DefaultTimeout == 0 {
		c.Search.DefaultTimeout = defaultSearchTimeout
	}
	if c.Search.Retention == 0 {
		c.Search.Retention = defaultRetention
	}
	if c.Search.ClientBufferSize == 0 {
		c.Search.ClientBufferSize = defaultClientBufferSize
	}
	if c.Search.HeartbeatInterval == 0 {
		c.Search.HeartbeatInterval = defaultHeartbeatInterval
	}

	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}

	if c.Persistence.Workers == 0 {
		c.Persistence.Workers = defaultPersistWorkers
	}
	if c.Persistence.QueueSize == 0 {
		c.Persistence.QueueSize = defaultPersistQueueSize
	}
	if c.Persistence.SaveTimeout == 0 {
		c.Persistence.SaveTimeout = defaultPersistSaveTimeout
	}

	if len(c.Vendors) == 0 {
		c.Vendors = DefaultVendors()
	}
	for id, v := range c.Vendors {
		if v.Name == "" {
			v.Name = id
		}
		if v.BaseDelay == 0 {
			v.BaseDelay = defaultVendorBaseDelay
		}
		if v.MaxRetries == 0 {
			v.MaxRetries = defaultVendorMaxRetries
		}
		if v.Timeout == 0 {
			v.Timeout = defaultVendorTimeout
		}
		c.Vendors[id] = v
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port: must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Search.DefaultMaxResults < 1 {
		return fmt.Errorf("search.default_max_results: must be positive, got %d", c.Search.DefaultMaxResults)
	}
	if c.Search.Retention <= 0 {
		return fmt.Errorf("search.retention: must be positive, got %s", c.Search.Retention)
	}
	for id, v := range c.Vendors {
		if v.BaseURL == "" {
			return fmt.Errorf("vendors.%s.base_url: is required", id)
		}
		if v.MaxRetries < 0 {
			return fmt.Errorf("vendors.%s.max_retries: must not be negative", id)
		}
	}
	if c.Database.Enabled {
		if c.Database.Host == "" {
			return fmt.Errorf("database.host: is required when database is enabled")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database.database: is required when database is enabled")
		}
	}
	return nil
}

// EnabledVendorIDs returns the IDs of all enabled vendors, sorted for
// deterministic fan-out order.
func (c *Config) EnabledVendorIDs() []string {
	ids := make([]string, 0, len(c.Vendors))
	for id, v := range c.Vendors {
		if v.Enabled {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
