package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/asakaida/modelchain/internal/entities"
	"github.com/asakaida/modelchain/internal/services/registry"
	"github.com/asakaida/modelchain/pkg/cache/memorycache"
)

// Mock SchemaIntrospector
type mockIntrospector struct {
	mu     sync.Mutex
	tables map[string][]*entities.FieldMeta
	calls  map[string]int
	err    error
}

func newMockIntrospector() *mockIntrospector {
	return &mockIntrospector{
		tables: map[string][]*entities.FieldMeta{
			"users": {
				{Name: "id", Type: "integer", KeyRole: entities.KeyRolePrimary},
				{Name: "name", Type: "text"},
			},
			"posts": {
				{Name: "id", Type: "integer", KeyRole: entities.KeyRolePrimary},
				{Name: "user_id", Type: "integer"},
				{Name: "title", Type: "text"},
			},
			"keyless": {
				{Name: "value", Type: "text"},
			},
		},
		calls: make(map[string]int),
	}
}

func (m *mockIntrospector) Describe(ctx context.Context, tableName string) ([]*entities.FieldMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls[tableName]++
	if m.err != nil {
		return nil, m.err
	}
	fields, ok := m.tables[tableName]
	if !ok {
		return nil, errors.New("table not found: " + tableName)
	}
	return fields, nil
}

func (m *mockIntrospector) callCount(table string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[table]
}

// Mock FieldCacheRecorder
type mockRecorder struct {
	mu     sync.Mutex
	hits   int
	misses int
}

func (m *mockRecorder) RecordFieldCache(entity string, hit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hit {
		m.hits++
	} else {
		m.misses++
	}
}

func newTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New()
	for _, desc := range []*entities.EntityDescriptor{
		entities.NewEntityDescriptor("User", "users"),
		entities.NewEntityDescriptor("Post", "posts"),
		entities.NewEntityDescriptor("Keyless", "keyless"),
		entities.NewEntityDescriptor("Missing", "missing"),
	} {
		if err := reg.Register(desc); err != nil {
			t.Fatalf("failed to register %s: %v", desc.Name, err)
		}
	}
	return reg
}

func newTestStore(t *testing.T) *memorycache.Cache {
	t.Helper()
	store, err := memorycache.New(&memorycache.Config{MaxSizeBytes: 1024 * 1024, EnableMetrics: true})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	return store
}

func TestSchemaService_Entity_IntrospectsOnce(t *testing.T) {
	introspector := newMockIntrospector()
	recorder := &mockRecorder{}
	service := NewSchemaService(newTestRegistry(t), introspector, newTestStore(t), WithFieldCacheRecorder(recorder))
	ctx := context.Background()

	first, err := service.Entity(ctx, "Post")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := service.Entity(ctx, "Post")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first != second {
		t.Error("expected the memoised descriptor to be returned")
	}
	if first.PrimaryKey != "id" {
		t.Errorf("expected primary key id, got %q", first.PrimaryKey)
	}
	if len(first.Fields) != 3 {
		t.Errorf("expected 3 fields, got %d", len(first.Fields))
	}
	if n := introspector.callCount("posts"); n != 1 {
		t.Errorf("expected 1 introspection, got %d", n)
	}
	if recorder.misses != 1 || recorder.hits != 0 {
		t.Errorf("expected 1 miss and 0 hits, got %d / %d", recorder.misses, recorder.hits)
	}
}

func TestSchemaService_Entity_UsesCacheStore(t *testing.T) {
	store := newTestStore(t)
	reg := newTestRegistry(t)
	ctx := context.Background()

	// a first service instance fills the shared store
	if _, err := NewSchemaService(reg, newMockIntrospector(), store).Entity(ctx, "User"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	introspector := newMockIntrospector()
	recorder := &mockRecorder{}
	service := NewSchemaService(reg, introspector, store, WithFieldCacheRecorder(recorder))

	user, err := service.Entity(ctx, "User")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.PrimaryKey != "id" {
		t.Errorf("expected primary key id, got %q", user.PrimaryKey)
	}
	if n := introspector.callCount("users"); n != 0 {
		t.Errorf("expected no introspection on cache hit, got %d", n)
	}
	if recorder.hits != 1 {
		t.Errorf("expected 1 cache hit, got %d", recorder.hits)
	}
}

func TestSchemaService_Entity_WithoutStore(t *testing.T) {
	introspector := newMockIntrospector()
	service := NewSchemaService(newTestRegistry(t), introspector, nil)

	if _, err := service.Entity(context.Background(), "User"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := introspector.callCount("users"); n != 1 {
		t.Errorf("expected 1 introspection, got %d", n)
	}
}

func TestSchemaService_Entity_Errors(t *testing.T) {
	tests := []struct {
		name      string
		entity    string
		wantErr   string
		wantTable string
	}{
		{"unknown entity", "Ghost", "unknown entity type", ""},
		{"missing table", "Missing", "failed to describe table missing", "missing"},
		{"no primary key", "Keyless", "has no primary key field", "keyless"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			introspector := newMockIntrospector()
			service := NewSchemaService(newTestRegistry(t), introspector, nil)

			_, err := service.Entity(context.Background(), tt.entity)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
			if tt.wantTable == "" && len(introspector.calls) != 0 {
				t.Errorf("unknown entity must not reach the database, got calls %v", introspector.calls)
			}
		})
	}
}

func TestSchemaService_Describe_DeclaredPrimaryKey(t *testing.T) {
	service := NewSchemaService(newTestRegistry(t), newMockIntrospector(), nil)
	ctx := context.Background()

	declared := entities.NewEntityDescriptor("Post", "posts")
	declared.PrimaryKey = "title"
	got, err := service.Describe(ctx, declared)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.PrimaryKey != "title" {
		t.Errorf("declared primary key must win, got %q", got.PrimaryKey)
	}
	if declared.Fields != nil {
		t.Error("the registered descriptor must not be mutated")
	}

	bogus := entities.NewEntityDescriptor("User", "users")
	bogus.PrimaryKey = "uuid"
	if _, err := service.Describe(ctx, bogus); err == nil || !strings.Contains(err.Error(), "not a column") {
		t.Errorf("expected undeclared column error, got %v", err)
	}
}

func TestSchemaService_Describe_Concurrent(t *testing.T) {
	introspector := newMockIntrospector()
	service := NewSchemaService(newTestRegistry(t), introspector, newTestStore(t))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := service.Entity(context.Background(), "Post"); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := introspector.callCount("posts"); n != 1 {
		t.Errorf("expected a single introspection under concurrency, got %d", n)
	}
}

func TestSchemaService_Warm(t *testing.T) {
	introspector := newMockIntrospector()
	service := NewSchemaService(newTestRegistry(t), introspector, nil)

	if err := service.Warm(context.Background(), []string{"User", "Post"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if introspector.callCount("users") != 1 || introspector.callCount("posts") != 1 {
		t.Errorf("expected one introspection per table, got %v", introspector.calls)
	}

	err := service.Warm(context.Background(), []string{"User", "Missing"})
	if err == nil || !strings.Contains(err.Error(), "failed to load entity Missing") {
		t.Errorf("expected Missing to fail, got %v", err)
	}
}
