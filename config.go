package gpameta

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the configuration for scanning models and reaching the
// database they map to
type Config struct {
	// Connection details
	Driver        string `json:"driver" yaml:"driver"`
	ConnectionURL string `json:"connection_url" yaml:"connection_url"`
	Host          string `json:"host" yaml:"host"`
	Port          int    `json:"port" yaml:"port"`
	Database      string `json:"database" yaml:"database"`
	Username      string `json:"username" yaml:"username"`
	Password      string `json:"password" yaml:"password"`

	// Connection pool settings
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time" yaml:"conn_max_idle_time"`

	// Additional options, keyed by adapter ("gorm", "bun")
	Options map[string]interface{} `json:"options" yaml:"options"`

	// SSL/TLS configuration
	SSL SSLConfig `json:"ssl" yaml:"ssl"`

	// Mapping defaults applied while scanning
	Mapping MappingConfig `json:"mapping" yaml:"mapping"`
}

// SSLConfig represents SSL/TLS configuration
type SSLConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Mode     string `json:"mode" yaml:"mode"`
	CertFile string `json:"cert_file" yaml:"cert_file"`
	KeyFile  string `json:"key_file" yaml:"key_file"`
	CAFile   string `json:"ca_file" yaml:"ca_file"`
}

// MappingConfig holds scan-wide mapping defaults
type MappingConfig struct {
	DefaultBatchSize int    `json:"default_batch_size" yaml:"default_batch_size"`
	DefaultLazy      *bool  `json:"default_lazy" yaml:"default_lazy"`
	TablePrefix      string `json:"table_prefix" yaml:"table_prefix"`
	SingularTable    bool   `json:"singular_table" yaml:"singular_table"`
}

// Environment variables overriding file settings
const (
	EnvDriver    = "GPA_DRIVER"
	EnvDSN       = "GPA_DSN"
	EnvBatchSize = "GPA_DEFAULT_BATCH_SIZE"
)

// DefaultConfig returns a config for an in-memory sqlite database
func DefaultConfig() Config {
	cfg := Config{Driver: DialectSQLite, Database: ":memory:"}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig reads a YAML config file. A .env file next to it is loaded
// first when present, and GPA_* environment variables override the file.
// An empty path yields the defaults plus environment overrides.
func LoadConfig(path string) (Config, error) {
	var cfg Config

	if path != "" {
		envFile := filepath.Join(filepath.Dir(path), ".env")
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, NewErrorWithCause(ErrorTypeConfig, "failed to load "+envFile, err)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, NewErrorWithCause(ErrorTypeConfig, "failed to read config file", err)
		}
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
			return cfg, NewErrorWithCause(ErrorTypeConfig, "failed to parse config file", err)
		}
	}

	if v := os.Getenv(EnvDriver); v != "" {
		cfg.Driver = v
	}
	if v := os.Getenv(EnvDSN); v != "" {
		cfg.ConnectionURL = v
	}
	if v := os.Getenv(EnvBatchSize); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, NewErrorWithCause(ErrorTypeConfig, EnvBatchSize+" must be an integer", err)
		}
		cfg.Mapping.DefaultBatchSize = n
	}

	cfg.applyDefaults()
	if !IsDialectSupported(cfg.Driver) {
		return cfg, NewErrorf(ErrorTypeConfig, "unsupported driver %q", cfg.Driver)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Driver == "" {
		c.Driver = DialectSQLite
	}
	if c.Driver == DialectSQLite && c.Database == "" && c.ConnectionURL == "" {
		c.Database = ":memory:"
	}
	if c.Mapping.DefaultBatchSize == 0 {
		c.Mapping.DefaultBatchSize = -1
	}
	if c.Mapping.DefaultLazy == nil {
		lazy := true
		c.Mapping.DefaultLazy = &lazy
	}
}

// BindingContext returns the scan context for a model type read by the
// named adapter ("gorm", "bun", "bson")
func (c Config) BindingContext(kind string, t reflect.Type) LocalBindingContext {
	lazy := true
	if c.Mapping.DefaultLazy != nil {
		lazy = *c.Mapping.DefaultLazy
	}
	batch := c.Mapping.DefaultBatchSize
	if batch == 0 {
		batch = -1
	}
	return LocalBindingContext{
		Origin:           Origin{Kind: kind, Name: TypeName(t)},
		PackagePath:      indirect(t).PkgPath(),
		DefaultLazy:      lazy,
		DefaultBatchSize: batch,
	}
}

// Option returns a nested adapter option such as Option("gorm", "log_level")
func (c Config) Option(adapter, key string) (any, bool) {
	section, ok := c.Options[adapter].(map[string]interface{})
	if !ok {
		return nil, false
	}
	v, ok := section[key]
	return v, ok
}

// StringOption returns a nested adapter option as a string
func (c Config) StringOption(adapter, key string) string {
	v, ok := c.Option(adapter, key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
