// Package config loads service configuration with viper. Values resolve in
// the order flags, environment, config file, defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. CICD_DEMO_STORE_DRIVER
// for store.driver.
const EnvPrefix = "CICD_DEMO"

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverPostgres = "postgres"
)

// Config is the complete service configuration.
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Server  ServerConfig  `mapstructure:"server"`
	Store   StoreConfig   `mapstructure:"store"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// AppConfig is reported by the health and info endpoints.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Description string `mapstructure:"description"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080". PORT overrides the port.
	Addr string `mapstructure:"addr"`
	// ShutdownTimeout bounds how long in-flight requests may run after a signal.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// CORSAllowedOrigins lists origins allowed on /api/tasks; "*" allows any.
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
}

// StoreConfig selects and locates the task store.
type StoreConfig struct {
	// Driver is one of "memory", "file", "postgres".
	Driver string `mapstructure:"driver"`
	// Path is the YAML document used by the file driver.
	Path string `mapstructure:"path"`
	// DatabaseURL is the PostgreSQL connection string. DATABASE_URL overrides it.
	DatabaseURL string `mapstructure:"database_url"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	// File redirects logs from stderr to a file.
	File string `mapstructure:"file"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:        "cicd-demo",
			Version:     "1.0.0",
			Description: "Demo application for CI/CD pipeline",
		},
		Server: ServerConfig{
			Addr:               ":8080",
			ShutdownTimeout:    10 * time.Second,
			CORSAllowedOrigins: []string{"*"},
		},
		Store: StoreConfig{
			Driver: DriverMemory,
			Path:   "data/tasks.yaml",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// SetDefaults registers Default() values on v and wires environment lookup.
func SetDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("app.name", defaults.App.Name)
	v.SetDefault("app.version", defaults.App.Version)
	v.SetDefault("app.description", defaults.App.Description)

	v.SetDefault("server.addr", defaults.Server.Addr)
	v.SetDefault("server.shutdown_timeout", defaults.Server.ShutdownTimeout)
	v.SetDefault("server.cors_allowed_origins", defaults.Server.CORSAllowedOrigins)

	v.SetDefault("store.driver", defaults.Store.Driver)
	v.SetDefault("store.path", defaults.Store.Path)
	v.SetDefault("store.database_url", defaults.Store.DatabaseURL)

	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.format", defaults.Logging.Format)
	v.SetDefault("logging.file", defaults.Logging.File)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// platform conventions: Heroku-style DATABASE_URL and PORT
	_ = v.BindEnv("store.database_url", EnvPrefix+"_STORE_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("port", "PORT")
}

// ReadFile reads the YAML config at path into v. An empty path is a no-op.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

// Load unmarshals v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if port := v.GetString("port"); port != "" {
		cfg.Server.Addr = ":" + port
	}
	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return &cfg, nil
}
