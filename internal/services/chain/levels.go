package chain

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Level is one entry of a chain request: an entity type name and the
// request parameters scoped to it
type Level struct {
	Entity string                 `json:"entity" yaml:"entity"`
	Params map[string]interface{} `json:"params,omitempty" yaml:"params,omitempty"`
}

// Levels is the ordered chain input, root first
type Levels []Level

// Names returns the entity names in chain order
func (ls Levels) Names() []string {
	out := make([]string, len(ls))
	for i, l := range ls {
		out[i] = l.Entity
	}
	return out
}

// ParseLevels decodes a chain request from YAML or JSON. Two shapes are accepted:
//
//	User: {id: 1}          # ordered mapping, one key per level
//	Post: {}
//
//	- entity: User         # sequence of levels
//	  params: {id: 1}
//	- entity: Post
//
// Mapping order is preserved, so the first key is the chain root.
func ParseLevels(data []byte) (Levels, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse chain: %w", err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return Levels{}, nil
	}

	root := doc.Content[0]
	switch root.Kind {
	case yaml.MappingNode:
		return levelsFromMapping(root)
	case yaml.SequenceNode:
		var levels Levels
		if err := root.Decode(&levels); err != nil {
			return nil, fmt.Errorf("failed to parse chain: %w", err)
		}
		for i, l := range levels {
			if l.Entity == "" {
				return nil, fmt.Errorf("chain level %d: entity is required", i)
			}
		}
		return levels, nil
	case yaml.ScalarNode:
		if root.Tag == "!!null" {
			return Levels{}, nil
		}
	}
	return nil, fmt.Errorf("failed to parse chain: expected a mapping or a sequence at line %d", root.Line)
}

func levelsFromMapping(node *yaml.Node) (Levels, error) {
	levels := make(Levels, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]

		var params map[string]interface{}
		if value.Tag != "!!null" {
			if err := value.Decode(&params); err != nil {
				return nil, fmt.Errorf("chain level %s: params must be a mapping: %w", key.Value, err)
			}
		}
		levels = append(levels, Level{Entity: key.Value, Params: params})
	}
	return levels, nil
}

// LevelsFromValues converts a generic decoded list (e.g. from JSON or a
// protobuf Struct) of {"entity": name, "params": {...}} objects into Levels
func LevelsFromValues(values []interface{}) (Levels, error) {
	levels := make(Levels, 0, len(values))
	for i, v := range values {
		m, ok := v.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("chain level %d: expected an object, got %T", i, v)
		}
		name, _ := m["entity"].(string)
		if name == "" {
			return nil, fmt.Errorf("chain level %d: entity is required", i)
		}

		level := Level{Entity: name}
		switch p := m["params"].(type) {
		case nil:
		case map[string]interface{}:
			level.Params = p
		default:
			return nil, fmt.Errorf("chain level %d: params must be an object, got %T", i, p)
		}
		levels = append(levels, level)
	}
	return levels, nil
}
