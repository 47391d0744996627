package config

import (
	"alcyxob/workout-tracker/internal/domain"
	"alcyxob/workout-tracker/internal/reconcile"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage modes
const (
	StorageMongo  = "mongo"
	StorageMemory = "memory"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	S3        S3Config        `mapstructure:"s3"`
	Log       LogConfig       `mapstructure:"log"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
	Defaults  DefaultsConfig  `mapstructure:"defaults"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type DatabaseConfig struct {
	URI  string `mapstructure:"uri"`
	Name string `mapstructure:"name"`
}

// StorageConfig selects the repository backend.
type StorageConfig struct {
	Mode string `mapstructure:"mode"` // "mongo" or "memory"
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// SnapshotsEnabled is true when a bucket is configured.
func (c S3Config) SnapshotsEnabled() bool {
	return c.BucketName != ""
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "console"
}

// ReconcileConfig tunes duplicate detection.
type ReconcileConfig struct {
	BurstWindow       time.Duration `mapstructure:"burst_window"`
	CollapseSupersets bool          `mapstructure:"collapse_supersets"`
	// Timezone places sessions that carry only a timestamp. IANA name, empty for the host zone.
	Timezone string `mapstructure:"timezone"`
}

// Policy converts the config into a reconciliation policy.
func (c ReconcileConfig) Policy() reconcile.Policy {
	return reconcile.Policy{BurstWindow: c.BurstWindow, CollapseSupersets: c.CollapseSupersets}
}

// Location loads the configured timezone.
func (c ReconcileConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// TypeDefault seeds one workout type into newly created weeks.
// Types are a list rather than a map because Viper lower-cases map keys.
type TypeDefault struct {
	Name      string `mapstructure:"name"`
	Category  string `mapstructure:"category"`
	Benchmark int    `mapstructure:"benchmark"`
}

type DefaultsConfig struct {
	Types []TypeDefault `mapstructure:"types"`
}

// Settings converts the configured types into week settings.
func (d DefaultsConfig) Settings() domain.WeekSettings {
	s := domain.WeekSettings{
		Benchmarks:     map[string]int{},
		CustomTypes:    []string{},
		TypeCategories: map[string]string{},
	}
	for _, t := range d.Types {
		if t.Name == "" {
			continue
		}
		s.CustomTypes = append(s.CustomTypes, t.Name)
		if t.Category != "" {
			s.TypeCategories[t.Name] = t.Category
		}
		if t.Benchmark > 0 {
			s.Benchmarks[t.Name] = t.Benchmark
		}
	}
	return s
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LoadConfig reads configuration from file or environment variables.
// path is either a directory holding config.yaml or the path of a YAML file.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	if ext := filepath.Ext(path); ext == ".yaml" || ext == ".yml" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(path)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// server.address -> SERVER_ADDRESS, reconcile.burst_window -> RECONCILE_BURST_WINDOW
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	v.SetDefault("server.address", ":8080")
	v.SetDefault("database.uri", "mongodb://localhost:27017")
	v.SetDefault("database.name", "workout_tracker")
	v.SetDefault("storage.mode", StorageMongo)
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.access_key_id", "")
	v.SetDefault("s3.secret_access_key", "")
	v.SetDefault("s3.bucket_name", "")
	v.SetDefault("s3.use_ssl", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("reconcile.burst_window", reconcile.DefaultBurstWindow.String())
	v.SetDefault("reconcile.collapse_supersets", false)
	v.SetDefault("reconcile.timezone", "")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return config, fmt.Errorf("read config: %w", err)
		}
		// No file: defaults and env vars only.
		err = nil
	}

	if err = v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("unmarshal config: %w", err)
	}
	if err = config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

// Validate checks values Viper cannot check by type alone.
func (c *Config) Validate() error {
	switch c.Storage.Mode {
	case StorageMongo, StorageMemory:
	default:
		return fmt.Errorf("storage.mode must be %q or %q, got %q", StorageMongo, StorageMemory, c.Storage.Mode)
	}
	if _, err := c.Reconcile.Location(); err != nil {
		return fmt.Errorf("reconcile.timezone: %w", err)
	}
	return nil
}
