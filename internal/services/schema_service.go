package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/asakaida/modelchain/internal/entities"
	"github.com/asakaida/modelchain/internal/repositories"
	"github.com/asakaida/modelchain/pkg/cache"
	"golang.org/x/sync/singleflight"
)

// EntityLookup resolves an entity type name without touching the database
type EntityLookup interface {
	Lookup(name string) (*entities.EntityDescriptor, error)
}

// FieldCacheRecorder is notified whether a field list came from the cache store
type FieldCacheRecorder interface {
	RecordFieldCache(entity string, hit bool)
}

// SchemaServiceInterface defines the entity metadata operations used by chain
// construction and the relation resolver
type SchemaServiceInterface interface {
	Lookup(name string) (*entities.EntityDescriptor, error)
	Entity(ctx context.Context, name string) (*entities.EntityDescriptor, error)
	Describe(ctx context.Context, desc *entities.EntityDescriptor) (*entities.EntityDescriptor, error)
}

// SchemaService loads entity field lists once per entity type: from the cache
// store when present, otherwise by introspecting the backing table and saving
// the result. Loaded descriptors are immutable for the life of the service.
type SchemaService struct {
	lookup       EntityLookup
	introspector repositories.SchemaIntrospector
	store        cache.Cache // optional
	ttl          time.Duration
	recorder     FieldCacheRecorder
	logger       *slog.Logger

	loaded sync.Map // entity name -> *entities.EntityDescriptor
	group  singleflight.Group
}

// SchemaOption configures a SchemaService
type SchemaOption func(*SchemaService)

// WithFieldCacheTTL sets the TTL used when saving field lists (zero = store default)
func WithFieldCacheTTL(ttl time.Duration) SchemaOption {
	return func(s *SchemaService) { s.ttl = ttl }
}

// WithFieldCacheRecorder attaches a metrics recorder
func WithFieldCacheRecorder(r FieldCacheRecorder) SchemaOption {
	return func(s *SchemaService) { s.recorder = r }
}

// WithSchemaLogger sets the logger
func WithSchemaLogger(logger *slog.Logger) SchemaOption {
	return func(s *SchemaService) { s.logger = logger }
}

// NewSchemaService creates a new SchemaService. store may be nil.
func NewSchemaService(lookup EntityLookup, introspector repositories.SchemaIntrospector, store cache.Cache, opts ...SchemaOption) *SchemaService {
	s := &SchemaService{
		lookup:       lookup,
		introspector: introspector,
		store:        store,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Lookup resolves an entity type name. No I/O is performed.
func (s *SchemaService) Lookup(name string) (*entities.EntityDescriptor, error) {
	return s.lookup.Lookup(name)
}

// Entity resolves name and returns its descriptor with fields and primary key loaded
func (s *SchemaService) Entity(ctx context.Context, name string) (*entities.EntityDescriptor, error) {
	desc, err := s.lookup.Lookup(name)
	if err != nil {
		return nil, err
	}
	return s.Describe(ctx, desc)
}

// Describe returns a copy of desc with Fields and PrimaryKey filled in.
// The first call per entity name does the work; later calls share its result.
func (s *SchemaService) Describe(ctx context.Context, desc *entities.EntityDescriptor) (*entities.EntityDescriptor, error) {
	if loaded, ok := s.loaded.Load(desc.Name); ok {
		return loaded.(*entities.EntityDescriptor), nil
	}

	v, err, _ := s.group.Do(desc.Name, func() (interface{}, error) {
		if loaded, ok := s.loaded.Load(desc.Name); ok {
			return loaded, nil
		}

		fields, err := s.loadFields(ctx, desc)
		if err != nil {
			return nil, err
		}

		out := desc.Clone()
		out.Fields = fields
		if err := resolvePrimaryKey(out); err != nil {
			return nil, err
		}

		s.loaded.Store(desc.Name, out)
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*entities.EntityDescriptor), nil
}

// Warm loads the field lists of every named entity, stopping at the first failure
func (s *SchemaService) Warm(ctx context.Context, names []string) error {
	for _, name := range names {
		if _, err := s.Entity(ctx, name); err != nil {
			return fmt.Errorf("failed to load entity %s: %w", name, err)
		}
	}
	return nil
}

func (s *SchemaService) loadFields(ctx context.Context, desc *entities.EntityDescriptor) ([]*entities.FieldMeta, error) {
	if s.store != nil {
		if cached, ok := s.store.Get(ctx, desc.Name); ok {
			if fields, ok := cached.([]*entities.FieldMeta); ok && len(fields) > 0 {
				s.record(desc.Name, true)
				return fields, nil
			}
		}
	}
	s.record(desc.Name, false)

	fields, err := s.introspector.Describe(ctx, desc.TableName)
	if err != nil {
		return nil, fmt.Errorf("failed to describe table %s for entity %s: %w", desc.TableName, desc.Name, err)
	}

	if s.store != nil {
		if err := s.store.Set(ctx, desc.Name, fields, s.ttl); err != nil {
			s.logger.Warn("failed to cache field list",
				"entity", desc.Name,
				"error", err,
			)
		}
	}

	s.logger.Debug("field list loaded",
		"entity", desc.Name,
		"table", desc.TableName,
		"fields", len(fields),
	)
	return fields, nil
}

func (s *SchemaService) record(entity string, hit bool) {
	if s.recorder != nil {
		s.recorder.RecordFieldCache(entity, hit)
	}
}

// resolvePrimaryKey keeps a declared primary key when it names a real column,
// otherwise derives it from the field key roles
func resolvePrimaryKey(desc *entities.EntityDescriptor) error {
	if desc.PrimaryKey != "" {
		if desc.GetField(desc.PrimaryKey) == nil {
			return fmt.Errorf("entity %s declares primary key %s which is not a column of %s", desc.Name, desc.PrimaryKey, desc.TableName)
		}
		return nil
	}
	return desc.ResolvePrimaryKey()
}

var _ SchemaServiceInterface = (*SchemaService)(nil)
