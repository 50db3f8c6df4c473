package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Supported database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Resolver ResolverConfig
	Registry RegistryConfig
	Log      LogConfig
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host      string
	Port      int
	AdminPort int // Port for the admin HTTP server (/healthz, /metrics, /v1/entities)
}

// CacheConfig represents field-list cache configuration
type CacheConfig struct {
	Enabled        bool
	MaxMemoryBytes int64  // Maximum memory usage of the in-memory store in bytes
	TTLMinutes     int    // Time-to-live for cached field lists in minutes, 0 = no expiry
	Dir            string // Directory of the file store; empty selects the in-memory store
	Metrics        bool
}

// TTL returns the cache TTL as a duration
func (c *CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Driver   string // postgres or sqlite
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	Path     string // SQLite database file (or a file: URI)
}

// ResolverConfig represents relation resolver configuration
type ResolverConfig struct {
	MaxDepth    int // Maximum relationship hops below the resolved entity
	Parallelism int // Sibling relationships resolved concurrently per row; 1 = sequential
}

// RegistryConfig represents entity registry configuration
type RegistryConfig struct {
	DefinitionsPath string // YAML entity definitions
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level string // debug, info, warn or error
}

// SlogLevel parses Level, falling back to info
func (c *LogConfig) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// findProjectRoot finds the project root directory by looking for go.mod
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	// Walk up the directory tree until we find go.mod
	for {
		goModPath := filepath.Join(dir, "go.mod")
		if _, err := os.Stat(goModPath); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found in any parent directory")
		}
		dir = parent
	}
}

// InitConfig initializes viper configuration
// env: environment name (dev, test, prod)
func InitConfig(env string) error {
	if env == "" {
		env = "dev"
	}

	viper.SetConfigName(fmt.Sprintf(".env.%s", env))
	viper.SetConfigType("env")

	viper.AddConfigPath(".")
	if projectRoot, err := findProjectRoot(); err == nil {
		viper.AddConfigPath(projectRoot)
	}

	// Read config file (optional, ignore error if not found)
	_ = viper.ReadInConfig()

	// Environment variables take precedence over config file
	viper.AutomaticEnv()

	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_PORT", 50051)
	viper.SetDefault("ADMIN_PORT", 9090)

	viper.SetDefault("DB_DRIVER", DriverPostgres)
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", 15432)
	viper.SetDefault("DB_USER", "modelchain")
	viper.SetDefault("DB_NAME", "modelchain_dev")
	viper.SetDefault("DB_SSLMODE", "disable")

	viper.SetDefault("CACHE_ENABLED", true)
	viper.SetDefault("CACHE_MAX_MEMORY_BYTES", 16*1024*1024) // 16MB
	viper.SetDefault("CACHE_TTL_MINUTES", 0)
	viper.SetDefault("CACHE_METRICS", true)

	viper.SetDefault("RESOLVER_MAX_DEPTH", 32)
	viper.SetDefault("RESOLVER_PARALLELISM", 1)

	viper.SetDefault("REGISTRY_DEFINITIONS", "definitions/entities.yaml")

	viper.SetDefault("LOG_LEVEL", "info")

	return nil
}

// Load loads configuration from viper
func Load() (*Config, error) {
	db := DatabaseConfig{
		Driver:   viper.GetString("DB_DRIVER"),
		Host:     viper.GetString("DB_HOST"),
		Port:     viper.GetInt("DB_PORT"),
		User:     viper.GetString("DB_USER"),
		Password: viper.GetString("DB_PASSWORD"),
		Database: viper.GetString("DB_NAME"),
		SSLMode:  viper.GetString("DB_SSLMODE"),
		Path:     viper.GetString("DB_PATH"),
	}
	if db.Driver == "" {
		db.Driver = DriverPostgres
	}
	if err := db.Validate(); err != nil {
		return nil, err
	}

	config := &Config{
		Server: ServerConfig{
			Host:      viper.GetString("SERVER_HOST"),
			Port:      viper.GetInt("SERVER_PORT"),
			AdminPort: viper.GetInt("ADMIN_PORT"),
		},
		Database: db,
		Cache: CacheConfig{
			Enabled:        viper.GetBool("CACHE_ENABLED"),
			MaxMemoryBytes: viper.GetInt64("CACHE_MAX_MEMORY_BYTES"),
			TTLMinutes:     viper.GetInt("CACHE_TTL_MINUTES"),
			Dir:            viper.GetString("CACHE_DIR"),
			Metrics:        viper.GetBool("CACHE_METRICS"),
		},
		Resolver: ResolverConfig{
			MaxDepth:    viper.GetInt("RESOLVER_MAX_DEPTH"),
			Parallelism: viper.GetInt("RESOLVER_PARALLELISM"),
		},
		Registry: RegistryConfig{
			DefinitionsPath: viper.GetString("REGISTRY_DEFINITIONS"),
		},
		Log: LogConfig{
			Level: viper.GetString("LOG_LEVEL"),
		},
	}

	return config, nil
}

// Validate checks the settings the selected driver needs
func (c *DatabaseConfig) Validate() error {
	switch c.Driver {
	case DriverPostgres:
		// DB_PASSWORD is required for security
		if c.Password == "" {
			return fmt.Errorf("DB_PASSWORD is required (set via environment variable or .env file)")
		}
	case DriverSQLite:
		if c.Path == "" {
			return fmt.Errorf("DB_PATH is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (want %s or %s)", c.Driver, DriverPostgres, DriverSQLite)
	}
	return nil
}

// ConnectionString returns PostgreSQL connection string
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Database,
		c.SSLMode,
	)
}
