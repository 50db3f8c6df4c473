package registry

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/asakaida/modelchain/internal/entities"
	"gopkg.in/yaml.v3"
)

// Definitions is the YAML document describing every entity type
//
//	entities:
//	  - name: Post
//	    table: posts
//	    relationships:
//	      belongs_to:
//	        author: {entity: User, foreign_key: user_id}
//	      has_and_belongs_to_many:
//	        tags: {entity: Tag, foreign_key: post_id, link_table: post_tags, link_remote_key: tag_id}
type Definitions struct {
	Entities []EntityDefinition `yaml:"entities"`
}

// EntityDefinition is one entity of a Definitions document
type EntityDefinition struct {
	Name          string                                   `yaml:"name"`
	Table         string                                   `yaml:"table"`
	PrimaryKey    string                                   `yaml:"primary_key"`
	Relationships map[string]map[string]RelationDefinition `yaml:"relationships"`
}

// RelationDefinition is one aliased relationship of an EntityDefinition
type RelationDefinition struct {
	Entity        string `yaml:"entity"`
	ForeignKey    string `yaml:"foreign_key"`
	LinkTable     string `yaml:"link_table"`
	LinkRemoteKey string `yaml:"link_remote_key"`
}

// LoadFile reads a definitions file and registers every entity it declares
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read entity definitions: %w", err)
	}
	return r.Load(bytes.NewReader(data))
}

// Load parses a definitions document, registers every entity and validates
// the resulting graph. Unknown YAML fields are rejected.
func (r *Registry) Load(src io.Reader) error {
	var defs Definitions
	decoder := yaml.NewDecoder(src)
	decoder.KnownFields(true)
	if err := decoder.Decode(&defs); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse entity definitions: %w", err)
	}

	for i := range defs.Entities {
		desc, err := defs.Entities[i].Descriptor()
		if err != nil {
			return err
		}
		if err := r.Register(desc); err != nil {
			return err
		}
	}

	return r.Validate()
}

// Descriptor converts the definition into an EntityDescriptor
func (d *EntityDefinition) Descriptor() (*entities.EntityDescriptor, error) {
	if d.Name == "" {
		return nil, fmt.Errorf("entity name is required")
	}

	desc := entities.NewEntityDescriptor(d.Name, d.Table)
	desc.PrimaryKey = d.PrimaryKey

	kinds := make([]string, 0, len(d.Relationships))
	for kind := range d.Relationships {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	for _, rawKind := range kinds {
		kind, err := entities.ParseRelationKind(rawKind)
		if err != nil {
			return nil, fmt.Errorf("entity %s: %w", d.Name, err)
		}
		for alias, rel := range d.Relationships[rawKind] {
			spec := &entities.RelationSpec{
				TargetEntity:  rel.Entity,
				ForeignKey:    rel.ForeignKey,
				LinkTable:     rel.LinkTable,
				LinkRemoteKey: rel.LinkRemoteKey,
			}
			if err := desc.AddRelation(kind, alias, spec); err != nil {
				return nil, err
			}
		}
	}

	return desc, nil
}
