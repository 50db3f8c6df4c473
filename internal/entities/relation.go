package entities

import "fmt"

// RelationKind is the cardinality of a declared relationship
type RelationKind string

const (
	// Has is a one-to-many relationship; the foreign key lives on the related entity
	Has RelationKind = "has"
	// BelongsTo is a many-to-one relationship; the foreign key lives on this entity
	BelongsTo RelationKind = "belongs_to"
	// HasAndBelongsToMany is a many-to-many relationship through a link table
	HasAndBelongsToMany RelationKind = "has_and_belongs_to_many"
)

// RelationKinds lists every kind in traversal order
var RelationKinds = []RelationKind{Has, BelongsTo, HasAndBelongsToMany}

// ParseRelationKind converts a definition key into a RelationKind.
// The camel-case spellings used by older definitions are accepted too.
func ParseRelationKind(s string) (RelationKind, error) {
	switch s {
	case "has":
		return Has, nil
	case "belongs_to", "belongsTo":
		return BelongsTo, nil
	case "has_and_belongs_to_many", "hasAndBelongsToMany", "habtm", "HABTM":
		return HasAndBelongsToMany, nil
	default:
		return "", fmt.Errorf("unknown relation kind: %q", s)
	}
}

// RelationSpec describes one declared relationship
// Example: posts: {TargetEntity: "Post", ForeignKey: "user_id"}
type RelationSpec struct {
	TargetEntity  string // Related entity type name (e.g., "Post")
	ForeignKey    string // Foreign key column; on the related table for Has, on this table for BelongsTo, on the link table for HABTM
	LinkTable     string // Link table name, HABTM only
	LinkRemoteKey string // Column of the link table pointing at the related entity, HABTM only
}

// Validate checks that the spec carries what its kind needs
func (r *RelationSpec) Validate(kind RelationKind) error {
	if r.TargetEntity == "" {
		return fmt.Errorf("target entity is required")
	}
	if r.ForeignKey == "" {
		return fmt.Errorf("foreign key is required")
	}

	switch kind {
	case Has, BelongsTo:
		if r.LinkTable != "" || r.LinkRemoteKey != "" {
			return fmt.Errorf("link table is only allowed for %s relations", HasAndBelongsToMany)
		}
	case HasAndBelongsToMany:
		if r.LinkTable == "" {
			return fmt.Errorf("link table is required for %s relations", kind)
		}
		if r.LinkRemoteKey == "" {
			return fmt.Errorf("link remote key is required for %s relations", kind)
		}
	default:
		return fmt.Errorf("unknown relation kind: %q", kind)
	}

	return nil
}

// Relationship is a RelationSpec together with the kind and alias it is declared under
type Relationship struct {
	Kind  RelationKind
	Alias string
	Spec  *RelationSpec
}
