package entities

import (
	"fmt"
	"sort"
)

// EntityDescriptor holds the static metadata of one entity type
// Example: User backed by table "users" with primary key "id" and a "posts" Has relation
type EntityDescriptor struct {
	Name          string                                   // Entity type name (e.g., "User")
	TableName     string                                   // Backing table name (e.g., "users")
	PrimaryKey    string                                   // Primary key column, resolved from Fields
	Fields        []*FieldMeta                             // Column list in table order
	Relationships map[RelationKind]map[string]*RelationSpec // kind -> alias -> spec
}

// NewEntityDescriptor creates an empty descriptor for the given name and table
func NewEntityDescriptor(name, tableName string) *EntityDescriptor {
	return &EntityDescriptor{
		Name:          name,
		TableName:     tableName,
		Relationships: make(map[RelationKind]map[string]*RelationSpec),
	}
}

// AddRelation declares a relationship under kind and alias.
// Aliases must be unique per kind.
func (e *EntityDescriptor) AddRelation(kind RelationKind, alias string, spec *RelationSpec) error {
	if alias == "" {
		return fmt.Errorf("relation alias is required")
	}
	if spec == nil {
		return fmt.Errorf("relation spec is required for alias %s", alias)
	}
	if err := spec.Validate(kind); err != nil {
		return fmt.Errorf("invalid %s relation %s.%s: %w", kind, e.Name, alias, err)
	}

	if e.Relationships == nil {
		e.Relationships = make(map[RelationKind]map[string]*RelationSpec)
	}
	byAlias, ok := e.Relationships[kind]
	if !ok {
		byAlias = make(map[string]*RelationSpec)
		e.Relationships[kind] = byAlias
	}
	if _, exists := byAlias[alias]; exists {
		return fmt.Errorf("duplicate %s relation alias %s on entity %s", kind, alias, e.Name)
	}
	byAlias[alias] = spec
	return nil
}

// GetRelation returns the relation declared under kind and alias, or nil
func (e *EntityDescriptor) GetRelation(kind RelationKind, alias string) *RelationSpec {
	byAlias, ok := e.Relationships[kind]
	if !ok {
		return nil
	}
	return byAlias[alias]
}

// Relations returns the relations of one kind ordered by alias
func (e *EntityDescriptor) Relations(kind RelationKind) []*Relationship {
	byAlias := e.Relationships[kind]
	if len(byAlias) == 0 {
		return nil
	}

	aliases := make([]string, 0, len(byAlias))
	for alias := range byAlias {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)

	out := make([]*Relationship, 0, len(aliases))
	for _, alias := range aliases {
		out = append(out, &Relationship{Kind: kind, Alias: alias, Spec: byAlias[alias]})
	}
	return out
}

// AllRelations returns every relation in traversal order: kinds in
// RelationKinds order, aliases sorted within a kind
func (e *EntityDescriptor) AllRelations() []*Relationship {
	var out []*Relationship
	for _, kind := range RelationKinds {
		out = append(out, e.Relations(kind)...)
	}
	return out
}

// RelationTo returns the first relation (in traversal order) whose target is entityName
func (e *EntityDescriptor) RelationTo(entityName string) *Relationship {
	for _, rel := range e.AllRelations() {
		if rel.Spec.TargetEntity == entityName {
			return rel
		}
	}
	return nil
}

// GetField returns the field by name, or nil
func (e *EntityDescriptor) GetField(name string) *FieldMeta {
	for _, f := range e.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// ResolvePrimaryKey sets PrimaryKey from the field whose key role is PRI.
// Exactly one such field must exist.
func (e *EntityDescriptor) ResolvePrimaryKey() error {
	var pk string
	for _, f := range e.Fields {
		if !f.IsPrimary() {
			continue
		}
		if pk != "" {
			return fmt.Errorf("entity %s has more than one primary key field (%s, %s)", e.Name, pk, f.Name)
		}
		pk = f.Name
	}
	if pk == "" {
		return fmt.Errorf("entity %s has no primary key field", e.Name)
	}
	e.PrimaryKey = pk
	return nil
}

// Clone returns a copy that shares RelationSpecs but owns its maps and field slice
func (e *EntityDescriptor) Clone() *EntityDescriptor {
	out := &EntityDescriptor{
		Name:          e.Name,
		TableName:     e.TableName,
		PrimaryKey:    e.PrimaryKey,
		Relationships: make(map[RelationKind]map[string]*RelationSpec, len(e.Relationships)),
	}
	if e.Fields != nil {
		out.Fields = make([]*FieldMeta, len(e.Fields))
		copy(out.Fields, e.Fields)
	}
	for kind, byAlias := range e.Relationships {
		m := make(map[string]*RelationSpec, len(byAlias))
		for alias, spec := range byAlias {
			m[alias] = spec
		}
		out.Relationships[kind] = m
	}
	return out
}
