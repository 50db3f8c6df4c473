// Package chain builds entity chains: singly linked lists of live entity
// nodes, one per level of a chain request. Each node owns its child and
// keeps a non-owning pointer to its parent.
package chain

import (
	"context"
	"fmt"

	"github.com/asakaida/modelchain/internal/entities"
)

// EntitySource resolves entity type names into loaded descriptors
type EntitySource interface {
	// Lookup resolves a name without I/O
	Lookup(name string) (*entities.EntityDescriptor, error)
	// Entity returns the descriptor with fields and primary key loaded
	Entity(ctx context.Context, name string) (*entities.EntityDescriptor, error)
}

// Node is one live entity instance of a chain
type Node struct {
	entity *entities.EntityDescriptor
	params map[string]interface{}
	parent *Node
	child  *Node
}

// Build constructs a chain from levels and returns its root.
// Every entity name is resolved before any field list is loaded, so an
// unknown name fails with UnknownEntityTypeError without database I/O.
func Build(ctx context.Context, src EntitySource, levels Levels) (*Node, error) {
	if len(levels) == 0 {
		return nil, entities.ErrEmptyChain
	}

	for _, level := range levels {
		if _, err := src.Lookup(level.Entity); err != nil {
			return nil, err
		}
	}

	var root, prev *Node
	for i, level := range levels {
		desc, err := src.Entity(ctx, level.Entity)
		if err != nil {
			return nil, fmt.Errorf("failed to build chain level %d (%s): %w", i, level.Entity, err)
		}

		node := &Node{
			entity: desc,
			params: copyParams(level.Params),
			parent: prev,
		}
		if prev == nil {
			root = node
		} else {
			prev.child = node
		}
		prev = node
	}

	return root, nil
}

// Entity returns the node's entity descriptor
func (n *Node) Entity() *entities.EntityDescriptor {
	return n.entity
}

// Params returns the request parameters scoped to this node
func (n *Node) Params() map[string]interface{} {
	return n.params
}

// Param returns one request parameter
func (n *Node) Param(key string) (interface{}, bool) {
	v, ok := n.params[key]
	return v, ok
}

// ID returns the node's "id" parameter when it is set and not null
func (n *Node) ID() (interface{}, bool) {
	v, ok := n.params["id"]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// WithParams returns the node parameters overridden by params, leaving the node untouched
func (n *Node) WithParams(params map[string]interface{}) map[string]interface{} {
	merged := copyParams(n.params)
	for k, v := range params {
		merged[k] = v
	}
	return merged
}

// Parent returns the previous node, or nil at the root
func (n *Node) Parent() *Node {
	return n.parent
}

// Child returns the next node, or nil at the terminal
func (n *Node) Child() *Node {
	return n.child
}

// Root walks parent links to the chain head
func (n *Node) Root() *Node {
	root := n
	for root.parent != nil {
		root = root.parent
	}
	return root
}

// Terminal walks child links to the chain tail
func (n *Node) Terminal() *Node {
	last := n
	for last.child != nil {
		last = last.child
	}
	return last
}

// Depth returns the number of nodes above this one
func (n *Node) Depth() int {
	depth := 0
	for p := n.parent; p != nil; p = p.parent {
		depth++
	}
	return depth
}

// Nodes returns every node of the chain, root first
func (n *Node) Nodes() []*Node {
	var out []*Node
	for cur := n.Root(); cur != nil; cur = cur.child {
		out = append(out, cur)
	}
	return out
}

// ParamsForChain returns the parameters of every level, root to terminal
func (n *Node) ParamsForChain() Levels {
	var out Levels
	for _, node := range n.Nodes() {
		out = append(out, Level{Entity: node.entity.Name, Params: copyParams(node.params)})
	}
	return out
}

func copyParams(params map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}
