package main

import (
	"errors"
	"log"
	"strconv"

	"github.com/asakaida/modelchain/internal/infrastructure/config"
	"github.com/asakaida/modelchain/internal/infrastructure/database"
	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"
)

var (
	envFlag  string
	pathFlag string
	db       *database.Database
)

var rootCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Database migration tool for modelchain",
	Long: `Database migration tool for modelchain.
Creates the sample schema (users, posts, comments, tags, post_tags) on
PostgreSQL or SQLite using golang-migrate. The migrations are embedded in the
binary; --path points at a directory of migration files instead.`,
	PersistentPreRun:  setupDatabase,
	PersistentPostRun: closeDatabase,
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Long:  `Apply all pending migrations to the database.`,
	Run:   runUp,
}

var downCmd = &cobra.Command{
	Use:   "down [steps]",
	Short: "Rollback migrations",
	Long:  `Rollback the specified number of migrations (default: 1).`,
	Args:  cobra.MaximumNArgs(1),
	Run:   runDown,
}

var gotoCmd = &cobra.Command{
	Use:   "goto <version>",
	Short: "Migrate to a specific version",
	Long:  `Migrate to a specific version number.`,
	Args:  cobra.ExactArgs(1),
	Run:   runGoto,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show current migration version",
	Long:  `Display the current migration version of the database.`,
	Run:   runVersion,
}

var forceCmd = &cobra.Command{
	Use:   "force <version>",
	Short: "Force set migration version (use with caution)",
	Long:  `Force set the migration version without running migrations. Use with caution.`,
	Args:  cobra.ExactArgs(1),
	Run:   runForce,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&envFlag, "env", "e", "dev", "Environment to use (dev, test, prod)")
	rootCmd.PersistentFlags().StringVarP(&pathFlag, "path", "p", "", "Directory of migration files (default: embedded migrations)")

	rootCmd.AddCommand(upCmd)
	rootCmd.AddCommand(downCmd)
	rootCmd.AddCommand(gotoCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(forceCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Failed to execute command: %v", err)
	}
}

func setupDatabase(cmd *cobra.Command, args []string) {
	log.Printf("Using environment: %s", envFlag)

	// Initialize configuration from .env.{env} file
	if err := config.InitConfig(envFlag); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err = database.Open(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if cfg.Database.Driver == config.DriverSQLite {
		log.Printf("Connected to sqlite database: %s", cfg.Database.Path)
	} else {
		log.Printf("Connected to database: %s@%s:%d/%s",
			cfg.Database.User,
			cfg.Database.Host,
			cfg.Database.Port,
			cfg.Database.Database)
	}
}

func closeDatabase(cmd *cobra.Command, args []string) {
	if db != nil {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database connection: %v", err)
		}
	}
}

func newMigrate() *migrate.Migrate {
	if pathFlag != "" {
		log.Printf("Using migrations path: %s", pathFlag)
	}
	m, err := db.Migrator(pathFlag)
	if err != nil {
		log.Fatalf("Failed to create migrate instance: %v", err)
	}
	return m
}

func parseNumber(arg, what string) int {
	n, err := strconv.Atoi(arg)
	if err != nil {
		log.Fatalf("Invalid %s %q: %v", what, arg, err)
	}
	return n
}

func runUp(cmd *cobra.Command, args []string) {
	m := newMigrate()

	err := m.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		log.Println("No migrations to apply")
	case err != nil:
		log.Fatalf("Migration up failed: %v", err)
	default:
		log.Println("Migration up completed successfully")
	}
}

func runDown(cmd *cobra.Command, args []string) {
	steps := 1 // Default: rollback 1 migration
	if len(args) > 0 {
		steps = parseNumber(args[0], "step count")
	}

	m := newMigrate()

	err := m.Steps(-steps)
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		log.Println("No migrations to rollback")
	case err != nil:
		log.Fatalf("Migration down failed: %v", err)
	default:
		log.Printf("Migration down completed successfully (rolled back %d migration(s))", steps)
	}
}

func runGoto(cmd *cobra.Command, args []string) {
	version := parseNumber(args[0], "version")
	if version < 0 {
		log.Fatalf("Invalid version %d", version)
	}

	m := newMigrate()

	err := m.Migrate(uint(version))
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		log.Printf("Already at version %d", version)
	case err != nil:
		log.Fatalf("Migration goto failed: %v", err)
	default:
		log.Printf("Migration goto %d completed successfully", version)
	}
}

func runVersion(cmd *cobra.Command, args []string) {
	m := newMigrate()

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		log.Println("Current version: No migrations applied yet")
		return
	}
	if err != nil {
		log.Fatalf("Failed to get version: %v", err)
	}

	if dirty {
		log.Printf("Current version: %d (dirty - migration may have failed)", version)
	} else {
		log.Printf("Current version: %d", version)
	}
}

func runForce(cmd *cobra.Command, args []string) {
	version := parseNumber(args[0], "version")

	m := newMigrate()

	if err := m.Force(version); err != nil {
		log.Fatalf("Migration force failed: %v", err)
	}

	log.Printf("Migration forced to version %d", version)
}
