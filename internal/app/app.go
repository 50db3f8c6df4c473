// Package app wires configuration into a running relational core: database,
// entity registry, field-list cache, schema service, resolver and metrics.
// Both the gRPC server and the command line client start from here.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/asakaida/modelchain/internal/entities"
	"github.com/asakaida/modelchain/internal/infrastructure/config"
	"github.com/asakaida/modelchain/internal/infrastructure/database"
	"github.com/asakaida/modelchain/internal/infrastructure/metrics"
	"github.com/asakaida/modelchain/internal/repositories"
	"github.com/asakaida/modelchain/internal/repositories/postgres"
	"github.com/asakaida/modelchain/internal/repositories/sqlite"
	"github.com/asakaida/modelchain/internal/services"
	"github.com/asakaida/modelchain/internal/services/registry"
	"github.com/asakaida/modelchain/internal/services/resolver"
	"github.com/asakaida/modelchain/internal/services/sqlrender"
	"github.com/asakaida/modelchain/pkg/cache"
	"github.com/asakaida/modelchain/pkg/cache/filecache"
	"github.com/asakaida/modelchain/pkg/cache/memorycache"
	"github.com/prometheus/client_golang/prometheus"
)

// App holds the wired components
type App struct {
	Config    *config.Config
	Database  *database.Database
	Registry  *registry.Registry
	Store     cache.Cache // nil when the field-list cache is disabled
	Schema    *services.SchemaService
	Resolver  *resolver.Resolver
	Renderer  *sqlrender.Renderer
	Collector *metrics.Collector
	Exporter  *metrics.PrometheusExporter
}

// New opens the database and builds every component from cfg.
// reg receives the prometheus series; nil selects the default registerer.
func New(cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) (*App, error) {
	dialect, err := sqlrender.ParseDialect(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}

	definitions := registry.New()
	if err := definitions.LoadFile(cfg.Registry.DefinitionsPath); err != nil {
		return nil, err
	}

	db, err := database.Open(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store, err := newStore(&cfg.Cache)
	if err != nil {
		db.Close()
		return nil, err
	}

	collector := metrics.NewCollector()
	exporter := metrics.NewPrometheusExporter(collector, reg)
	if store != nil {
		collector.SetCache(store)
	}
	recorders := metrics.Recorders{collector, exporter}

	backend := newBackend(db)
	schema := services.NewSchemaService(definitions, backend, store,
		services.WithFieldCacheTTL(cfg.Cache.TTL()),
		services.WithFieldCacheRecorder(recorders),
		services.WithSchemaLogger(logger),
	)
	res := resolver.New(backend, schema,
		resolver.WithDialect(dialect),
		resolver.WithMaxDepth(cfg.Resolver.MaxDepth),
		resolver.WithParallelism(cfg.Resolver.Parallelism),
		resolver.WithLogger(logger),
		resolver.WithRecorder(recorders),
	)

	return &App{
		Config:    cfg,
		Database:  db,
		Registry:  definitions,
		Store:     store,
		Schema:    schema,
		Resolver:  res,
		Renderer:  sqlrender.New(dialect),
		Collector: collector,
		Exporter:  exporter,
	}, nil
}

// Warm loads the field list of every registered entity
func (a *App) Warm(ctx context.Context) error {
	return a.Schema.Warm(ctx, a.Registry.Names())
}

// Names lists the registered entity types
func (a *App) Names() []string {
	return a.Registry.Names()
}

// Lookup resolves name without touching the database
func (a *App) Lookup(name string) (*entities.EntityDescriptor, error) {
	return a.Schema.Lookup(name)
}

// Entity returns the loaded descriptor of name
func (a *App) Entity(ctx context.Context, name string) (*entities.EntityDescriptor, error) {
	return a.Schema.Entity(ctx, name)
}

// Close releases the cache store and the database
func (a *App) Close() error {
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			return fmt.Errorf("failed to close cache store: %w", err)
		}
	}
	return a.Database.Close()
}

func newBackend(db *database.Database) repositories.Backend {
	if db.Driver == config.DriverSQLite {
		return sqlite.NewBackend(db.DB)
	}
	return postgres.NewBackend(db.DB)
}

func newStore(cfg *config.CacheConfig) (cache.Cache, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	if cfg.Dir != "" {
		store, err := filecache.New(&filecache.Config{
			Dir:           cfg.Dir,
			DefaultTTL:    cfg.TTL(),
			NewValue:      func() interface{} { return new([]*entities.FieldMeta) },
			EnableMetrics: cfg.Metrics,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create file cache: %w", err)
		}
		return store, nil
	}

	store, err := memorycache.New(&memorycache.Config{
		MaxSizeBytes:  cfg.MaxMemoryBytes,
		DefaultTTL:    cfg.TTL(),
		Size:          fieldListSize,
		EnableMetrics: cfg.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}
	return store, nil
}

// fieldListSize estimates the memory held by one cached field list
func fieldListSize(key string, value interface{}) int64 {
	size := memorycache.DefaultSize(key, value)
	fields, ok := value.([]*entities.FieldMeta)
	if !ok {
		return size
	}
	for _, f := range fields {
		size += int64(48 + len(f.Name) + len(f.Type) + len(f.KeyRole))
	}
	return size
}
