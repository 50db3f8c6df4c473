package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/asakaida/modelchain/internal/infrastructure/config"
	"github.com/asakaida/modelchain/internal/repositories/sqlite"
	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// Database represents an open connection pool for one of the supported drivers
type Database struct {
	DB     *sql.DB
	Driver string
}

// Open connects to the database selected by cfg.Driver
func Open(cfg *config.DatabaseConfig) (*Database, error) {
	switch cfg.Driver {
	case config.DriverPostgres, "":
		return NewPostgres(cfg)
	case config.DriverSQLite:
		return NewSQLite(cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver: %q", cfg.Driver)
	}
}

// NewPostgres creates a new PostgreSQL connection
func NewPostgres(cfg *config.DatabaseConfig) (*Database, error) {
	db, err := sql.Open("postgres", cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)

	// Verify connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{DB: db, Driver: config.DriverPostgres}, nil
}

// NewSQLite opens the SQLite database at cfg.Path
func NewSQLite(cfg *config.DatabaseConfig) (*Database, error) {
	db, err := sqlite.Open(cfg.Path)
	if err != nil {
		return nil, err
	}
	return &Database{DB: db, Driver: config.DriverSQLite}, nil
}

// Migrator returns a golang-migrate instance bound to this database.
// An empty migrationsPath selects the sample schema migrations embedded in the binary.
func (d *Database) Migrator(migrationsPath string) (*migrate.Migrate, error) {
	var (
		driver migratedb.Driver
		err    error
	)
	switch d.Driver {
	case config.DriverPostgres:
		driver, err = postgres.WithInstance(d.DB, &postgres.Config{})
	case config.DriverSQLite:
		driver, err = migratesqlite.WithInstance(d.DB, &migratesqlite.Config{})
	default:
		return nil, fmt.Errorf("unsupported database driver: %q", d.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	if migrationsPath != "" {
		m, err := migrate.NewWithDatabaseInstance(fmt.Sprintf("file://%s", migrationsPath), d.Driver, driver)
		if err != nil {
			return nil, fmt.Errorf("failed to create migration instance: %w", err)
		}
		return m, nil
	}

	source, err := iofs.New(migrationsFS, "migrations/"+d.Driver)
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, d.Driver, driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration instance: %w", err)
	}
	return m, nil
}

// RunMigrations applies every pending up migration
func (d *Database) RunMigrations(migrationsPath string) error {
	m, err := d.Migrator(migrationsPath)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// HealthCheck checks if the database connection is healthy
func (d *Database) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := d.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	return nil
}

// Close closes the database connection
func (d *Database) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
