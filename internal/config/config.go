// Package config loads the service configuration from a YAML file,
// an optional .env file and process environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

type Config struct {
	Service    ServiceConfig    `yaml:"service"`
	Logging    LoggingConfig    `yaml:"logging"`
	GRPC       GRPCConfig       `yaml:"grpc"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Storage    StorageConfig    `yaml:"storage"`
	Pricing    PricingConfig    `yaml:"pricing"`
	Comparison ComparisonConfig `yaml:"comparison"`
	Offering   OfferingConfig   `yaml:"offering"`
	Reconcile  ReconcileConfig  `yaml:"reconcile"`
	Seed       SeedConfig       `yaml:"seed"`
}

type ServiceConfig struct {
	Name            string        `yaml:"name"`
	Environment     string        `yaml:"environment"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type GRPCConfig struct {
	Address    string `yaml:"address"`
	Reflection bool   `yaml:"reflection"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Path    string `yaml:"path"`
}

// StorageConfig selects the record store. DSN wins over the individual
// connection parts when both are set.
type StorageConfig struct {
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	Migrate         bool          `yaml:"migrate"`
}

type PricingConfig struct {
	DefaultCurrency    string  `yaml:"default_currency"`
	BatchRatePerSecond float64 `yaml:"batch_rate_per_second"`
	BatchBurst         int     `yaml:"batch_burst"`
}

type ComparisonConfig struct {
	MaxParallelLookups int `yaml:"max_parallel_lookups"`
}

type OfferingConfig struct {
	RejectDuplicates bool `yaml:"reject_duplicates"`
}

type ReconcileConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"`
}

type SeedConfig struct {
	FixturePath string `yaml:"fixture_path"`
}

// Default returns a configuration that runs the service in memory on
// localhost ports.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:            "smartbasket",
			Environment:     "development",
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
		GRPC:    GRPCConfig{Address: ":8080", Reflection: true},
		Metrics: MetricsConfig{Enabled: true, Address: ":9090", Path: "/metrics"},
		Storage: StorageConfig{
			Driver:          DriverMemory,
			Host:            "localhost",
			Port:            5432,
			User:            "postgres",
			Password:        "postgres",
			Database:        "smartbasket",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			Migrate:         true,
		},
		Pricing: PricingConfig{
			DefaultCurrency:    "JOD",
			BatchRatePerSecond: 0,
			BatchBurst:         1,
		},
		Comparison: ComparisonConfig{MaxParallelLookups: 8},
		Reconcile:  ReconcileConfig{Enabled: true, Schedule: "0 */15 * * * *"},
	}
}

// Load reads path (when non-empty) over the defaults, then applies
// environment overrides. A .env file in the working directory is loaded
// first if present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cannot read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("cannot parse YAML: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("DB_CONN_STR"); v != "" {
		c.Storage.DSN = v
	}
	if v := os.Getenv("DB_HOST"); v != "" {
		c.Storage.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid DB_PORT %q: %w", v, err)
		}
		c.Storage.Port = port
	}
	if v := os.Getenv("DB_USER"); v != "" {
		c.Storage.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.Storage.Password = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		c.Storage.Database = v
	}
	if v := os.Getenv("STORAGE_DRIVER"); v != "" {
		c.Storage.Driver = strings.ToLower(v)
	}
	if v := os.Getenv("GRPC_ADDR"); v != "" {
		c.GRPC.Address = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		c.Metrics.Address = v
	}
	if v := os.Getenv("DEFAULT_CURRENCY"); v != "" {
		c.Pricing.DefaultCurrency = strings.ToUpper(v)
	}
	return nil
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case DriverMemory, DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	if c.GRPC.Address == "" {
		errs = append(errs, errors.New("grpc.address is required"))
	}
	if c.Metrics.Enabled && c.Metrics.Address == "" {
		errs = append(errs, errors.New("metrics.address is required when metrics are enabled"))
	}
	if strings.TrimSpace(c.Pricing.DefaultCurrency) == "" {
		errs = append(errs, errors.New("pricing.default_currency is required"))
	}
	if c.Pricing.BatchRatePerSecond < 0 {
		errs = append(errs, errors.New("pricing.batch_rate_per_second cannot be negative"))
	}
	if c.Pricing.BatchRatePerSecond > 0 && c.Pricing.BatchBurst < 1 {
		errs = append(errs, errors.New("pricing.batch_burst must be at least 1"))
	}
	if c.Comparison.MaxParallelLookups < 1 {
		errs = append(errs, errors.New("comparison.max_parallel_lookups must be at least 1"))
	}
	if c.Reconcile.Enabled && c.Reconcile.Schedule == "" {
		errs = append(errs, errors.New("reconcile.schedule is required when reconcile is enabled"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// PostgresDSN returns the connection string for the postgres driver.
func (s StorageConfig) PostgresDSN() string {
	if s.DSN != "" {
		return s.DSN
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		s.Host, s.Port, s.User, s.Password, s.Database, s.SSLMode)
}
