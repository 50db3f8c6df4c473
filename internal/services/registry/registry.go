// Package registry maps entity type names to their static descriptors.
// Descriptors are registered once at process start and looked up by name
// whenever a chain level or a relationship target has to be resolved.
package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/asakaida/modelchain/internal/entities"
	"github.com/go-openapi/inflect"
)

// Registry is a static factory of entity descriptors keyed by type name
type Registry struct {
	mu       sync.RWMutex
	entities map[string]*entities.EntityDescriptor
}

// New creates an empty Registry
func New() *Registry {
	return &Registry{
		entities: make(map[string]*entities.EntityDescriptor),
	}
}

// DefaultTableName derives a table name from an entity type name
// Example: "BlogPost" -> "blog_posts"
func DefaultTableName(entityName string) string {
	return inflect.Pluralize(inflect.Underscore(entityName))
}

// Register adds desc under desc.Name. An empty TableName is derived from the name.
func (r *Registry) Register(desc *entities.EntityDescriptor) error {
	if desc == nil {
		return fmt.Errorf("entity descriptor is required")
	}
	if desc.Name == "" {
		return fmt.Errorf("entity name is required")
	}
	if desc.TableName == "" {
		desc.TableName = DefaultTableName(desc.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entities[desc.Name]; exists {
		return fmt.Errorf("entity %s is already registered", desc.Name)
	}
	r.entities[desc.Name] = desc
	return nil
}

// Lookup returns the descriptor registered under name
func (r *Registry) Lookup(name string) (*entities.EntityDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	desc, ok := r.entities[name]
	if !ok {
		return nil, &entities.UnknownEntityTypeError{Name: name}
	}
	return desc, nil
}

// Names returns every registered entity name, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entities))
	for name := range r.entities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks the registered graph: every relationship target must be
// registered and every relation spec must be complete for its kind.
// All problems are reported together.
func (r *Registry) Validate() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var problems []string
	for _, name := range r.sortedNamesLocked() {
		desc := r.entities[name]
		for _, rel := range desc.AllRelations() {
			if err := rel.Spec.Validate(rel.Kind); err != nil {
				problems = append(problems, fmt.Sprintf("entity %s: %s relation %s: %v", name, rel.Kind, rel.Alias, err))
				continue
			}
			if _, ok := r.entities[rel.Spec.TargetEntity]; !ok {
				problems = append(problems, fmt.Sprintf("entity %s: %s relation %s targets unknown entity %s", name, rel.Kind, rel.Alias, rel.Spec.TargetEntity))
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("registry validation errors:\n%s", strings.Join(problems, "\n"))
	}
	return nil
}

func (r *Registry) sortedNamesLocked() []string {
	names := make([]string, 0, len(r.entities))
	for name := range r.entities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
