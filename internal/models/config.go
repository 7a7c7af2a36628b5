// Package models - Service configuration and operational settings.
// This file defines the configuration structures for every component of the
// rate tracker service.
//
// Configuration Philosophy:
// - Hierarchical configuration with logical grouping (server, rate limit, storage, etc.)
// - Defaults that run a working service with no config file at all
// - Validation at load time so misconfigurations fail before the listener opens
// - Every field can be overridden from the environment with the RATETRACKER_ prefix,
//   e.g. RATETRACKER_RATE_LIMIT_REQUESTS or RATETRACKER_STORAGE_DATABASE_DSN
package models

import (
	"errors"
	"fmt"
	"math"
	"net"
	"slices"
	"time"
)

// Storage type constants
const (
	StorageTypeJSON     = "json"
	StorageTypeMemory   = "memory"
	StorageTypePostgres = "postgres"
	StorageTypeSQLite   = "sqlite"
)

// MaxRateLimitPeriod is the longest period, in seconds, whose window still
// fits in a time.Duration (about 292 years).
const MaxRateLimitPeriod = int64(math.MaxInt64 / int64(time.Second))

// Stats backend constants
const (
	StatsTypeMemory = "memory"
	StatsTypeRedis  = "redis"
)

// Config is the root configuration structure containing all service settings.
//
// Configuration Structure:
// - Server: HTTP server and network settings
// - RateLimit: The enforced rate and which clients and paths it applies to
// - Storage: Persistence of tracked clients
// - Stats: Decision statistics
// - Security: Admin API protection
// - Logging, Metrics, Observability: Operational visibility
type Config struct {
	Server        ServerConfig        `yaml:"server" json:"server"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit" json:"rate_limit" split_words:"true"`
	Storage       StorageConfig       `yaml:"storage" json:"storage"`
	Stats         StatsConfig         `yaml:"stats" json:"stats"`
	Security      SecurityConfig      `yaml:"security" json:"security"`
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`
	Metrics       MetricsConfig       `yaml:"metrics" json:"metrics"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

type ServerConfig struct {
	Port         int           `yaml:"port" json:"port"`
	Host         string        `yaml:"host" json:"host"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout" split_words:"true"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout" split_words:"true"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout" split_words:"true"`
	TLSEnabled   bool          `yaml:"tls_enabled" json:"tls_enabled" split_words:"true"`
	TLSCertFile  string        `yaml:"tls_cert_file" json:"tls_cert_file" split_words:"true"`
	TLSKeyFile   string        `yaml:"tls_key_file" json:"tls_key_file" split_words:"true"`
}

// RateLimitConfig holds the enforced rate. Requests and Period map directly
// onto ratelimit.RateConfig; Period is in whole seconds.
type RateLimitConfig struct {
	Requests          int      `yaml:"requests" json:"requests"`
	Period            int64    `yaml:"period" json:"period"`
	TrackedClients    []string `yaml:"tracked_clients" json:"tracked_clients" split_words:"true"`
	TrustProxyHeaders bool     `yaml:"trust_proxy_headers" json:"trust_proxy_headers" split_words:"true"`
	ProtectedPaths    []string `yaml:"protected_paths" json:"protected_paths" split_words:"true"`
}

type StorageConfig struct {
	Type           string         `yaml:"type" json:"type"`
	Path           string         `yaml:"path" json:"path"`
	Database       DatabaseConfig `yaml:"database" json:"database"`
	ConnectRetries int            `yaml:"connect_retries" json:"connect_retries" split_words:"true"`
}

type DatabaseConfig struct {
	DSN             string        `yaml:"dsn" json:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns" split_words:"true"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime" split_words:"true"`
}

type StatsConfig struct {
	Enabled bool          `yaml:"enabled" json:"enabled"`
	Type    string        `yaml:"type" json:"type"`
	Prefix  string        `yaml:"prefix" json:"prefix"`
	TTL     time.Duration `yaml:"ttl" json:"ttl"`
	Redis   RedisConfig   `yaml:"redis" json:"redis"`

	// PerClient keeps counters per client address. The set grows with every
	// distinct client and is never pruned.
	PerClient bool `yaml:"per_client" json:"per_client" split_words:"true"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
}

type SecurityConfig struct {
	// AdminToken guards the /api/v1 admin routes. Empty leaves them open.
	AdminToken string `yaml:"admin_token" json:"-" split_words:"true"`
}

type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"`
	Output   string `yaml:"output" json:"output"`
	FilePath string `yaml:"file_path" json:"file_path" split_words:"true"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
	Port    int    `yaml:"port" json:"port"`
}

type ObservabilityConfig struct {
	ServiceName string        `yaml:"service_name" json:"service_name" split_words:"true"`
	Tracing     TracingConfig `yaml:"tracing" json:"tracing"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	Exporter     string  `yaml:"exporter" json:"exporter"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" json:"otlp_endpoint" split_words:"true"`
	SampleRate   float64 `yaml:"sample_rate" json:"sample_rate" split_words:"true"`
}

// NewDefaultConfig creates a configuration that enforces 100 requests per hour
// per client on "/" with in-memory storage.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         9980,
			Host:         "0.0.0.0",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Requests:       100,
			Period:         3600,
			TrackedClients: []string{},
			ProtectedPaths: []string{"/"},
		},
		Storage: StorageConfig{
			Type: StorageTypeMemory,
			Path: "./data/clients.json",
			Database: DatabaseConfig{
				MaxOpenConns:    10,
				ConnMaxLifetime: 5 * time.Minute,
			},
			ConnectRetries: 5,
		},
		Stats: StatsConfig{
			Enabled: true,
			Type:    StatsTypeMemory,
			Prefix:  "ratetracker:stats",
			TTL:     24 * time.Hour,
			Redis: RedisConfig{
				Addr: "localhost:6379",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
			Port:    9090,
		},
		Observability: ObservabilityConfig{
			ServiceName: "ratetracker",
			Tracing: TracingConfig{
				Enabled:    false,
				Exporter:   "stdout",
				SampleRate: 1.0,
			},
		},
	}
}

func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}

	if err := c.RateLimit.Validate(); err != nil {
		return fmt.Errorf("invalid rate limit config: %w", err)
	}

	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("invalid storage config: %w", err)
	}

	if err := c.Stats.Validate(); err != nil {
		return fmt.Errorf("invalid stats config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("invalid metrics config: %w", err)
	}

	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("invalid observability config: %w", err)
	}

	if c.Metrics.Enabled && c.Metrics.Port == c.Server.Port {
		return errors.New("metrics port must differ from server port")
	}

	return nil
}

func (sc *ServerConfig) Validate() error {
	if sc.Port <= 0 || sc.Port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}

	if sc.Host == "" {
		return errors.New("host cannot be empty")
	}

	if sc.ReadTimeout < 0 {
		return errors.New("read timeout cannot be negative")
	}

	if sc.WriteTimeout < 0 {
		return errors.New("write timeout cannot be negative")
	}

	if sc.IdleTimeout < 0 {
		return errors.New("idle timeout cannot be negative")
	}

	if sc.TLSEnabled {
		if sc.TLSCertFile == "" {
			return errors.New("TLS cert file is required when TLS is enabled")
		}
		if sc.TLSKeyFile == "" {
			return errors.New("TLS key file is required when TLS is enabled")
		}
	}

	return nil
}

func (rc *RateLimitConfig) Validate() error {
	if rc.Requests <= 0 {
		return errors.New("requests must be positive")
	}

	if rc.Period <= 0 {
		return errors.New("period must be positive")
	}

	if rc.Period > MaxRateLimitPeriod {
		return fmt.Errorf("period must not exceed %d seconds", MaxRateLimitPeriod)
	}

	for _, addr := range rc.TrackedClients {
		if ip := net.ParseIP(addr); ip == nil || ip.To4() == nil {
			return fmt.Errorf("tracked client %q is not an IPv4 address", addr)
		}
	}

	for _, p := range rc.ProtectedPaths {
		if len(p) == 0 || p[0] != '/' {
			return fmt.Errorf("protected path %q must start with /", p)
		}
	}

	return nil
}

func (stc *StorageConfig) Validate() error {
	validTypes := []string{StorageTypeJSON, StorageTypeMemory, StorageTypePostgres, StorageTypeSQLite}
	if !slices.Contains(validTypes, stc.Type) {
		return fmt.Errorf("invalid storage type: %s", stc.Type)
	}

	if stc.Type == StorageTypeJSON && stc.Path == "" {
		return errors.New("path is required for JSON storage")
	}

	if (stc.Type == StorageTypePostgres || stc.Type == StorageTypeSQLite) && stc.Database.DSN == "" {
		return errors.New("database DSN is required for database storage")
	}

	if stc.ConnectRetries < 0 {
		return errors.New("connect retries cannot be negative")
	}

	return nil
}

func (st *StatsConfig) Validate() error {
	if !st.Enabled {
		return nil
	}

	if st.Type != StatsTypeMemory && st.Type != StatsTypeRedis {
		return fmt.Errorf("invalid stats type: %s", st.Type)
	}

	if st.TTL < 0 {
		return errors.New("stats TTL cannot be negative")
	}

	if st.Type == StatsTypeRedis && st.Redis.Addr == "" {
		return errors.New("Redis address is required when stats type is redis")
	}

	return nil
}

func (lc *LoggingConfig) Validate() error {
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, lc.Level) {
		return fmt.Errorf("invalid log level: %s", lc.Level)
	}

	if !slices.Contains([]string{"json", "text"}, lc.Format) {
		return fmt.Errorf("invalid log format: %s", lc.Format)
	}

	if !slices.Contains([]string{"stdout", "stderr", "file"}, lc.Output) {
		return fmt.Errorf("invalid log output: %s", lc.Output)
	}

	if lc.Output == "file" && lc.FilePath == "" {
		return errors.New("file path is required when output is file")
	}

	return nil
}

func (mc *MetricsConfig) Validate() error {
	if !mc.Enabled {
		return nil
	}

	if mc.Path == "" {
		return errors.New("metrics path cannot be empty")
	}

	if mc.Port <= 0 || mc.Port > 65535 {
		return errors.New("metrics port must be between 1 and 65535")
	}

	return nil
}

func (oc *ObservabilityConfig) Validate() error {
	if oc.ServiceName == "" {
		return errors.New("service name cannot be empty")
	}

	if !oc.Tracing.Enabled {
		return nil
	}

	switch oc.Tracing.Exporter {
	case "stdout":
	case "otlp":
		if oc.Tracing.OTLPEndpoint == "" {
			return errors.New("OTLP endpoint is required for the otlp exporter")
		}
	default:
		return fmt.Errorf("invalid tracing exporter: %s", oc.Tracing.Exporter)
	}

	if oc.Tracing.SampleRate < 0 || oc.Tracing.SampleRate > 1 {
		return errors.New("sample rate must be between 0 and 1")
	}

	return nil
}
