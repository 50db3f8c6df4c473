// Package querybuilder accumulates one flat query description over an entity
// chain. Each node contributes its fields, an id predicate when requested and
// the join to its child; the terminal node supplies the FROM table.
package querybuilder

import (
	"github.com/asakaida/modelchain/internal/entities"
	"github.com/asakaida/modelchain/internal/services/chain"
)

// Plan accumulates the whole chain that node belongs to, starting at its root
func Plan(node *chain.Node) *entities.QueryComponents {
	return Accumulate(node.Root(), nil)
}

// Accumulate walks from node to the chain terminal, appending to a copy of
// seed. seed is never modified and may be nil. Running it twice over the same
// chain yields equal descriptors.
func Accumulate(node *chain.Node, seed *entities.QueryComponents) *entities.QueryComponents {
	q := seed.Clone()

	for cur := node; cur != nil; cur = cur.Child() {
		desc := cur.Entity()

		for _, f := range desc.Fields {
			q.Fields = append(q.Fields, entities.SelectField{
				Table: desc.TableName,
				Field: f.Name,
				Alias: desc.TableName + "." + f.Name,
			})
		}

		if id, ok := cur.ID(); ok {
			q.Where = append(q.Where, entities.Predicate{
				Column: desc.TableName + "." + desc.PrimaryKey,
				Value:  id,
			})
		}

		if child := cur.Child(); child != nil {
			q.Joins = append(q.Joins, Joins(desc, child.Entity())...)
		} else {
			q.From = desc.TableName
		}
	}

	return q
}

// Joins describes how node's table joins onto the query of its child.
// The relation node declares toward the child is used; otherwise the inverse
// of the relation the child declares toward node. Unrelated entities get no join.
func Joins(node, child *entities.EntityDescriptor) []entities.JoinSpec {
	if rel := node.RelationTo(child.Name); rel != nil {
		return forward(node, child, rel)
	}
	if rel := child.RelationTo(node.Name); rel != nil {
		return inverse(node, child, rel)
	}
	return nil
}

// forward handles a relation declared on node
func forward(node, child *entities.EntityDescriptor, rel *entities.Relationship) []entities.JoinSpec {
	spec := rel.Spec
	switch rel.Kind {
	case entities.Has:
		return []entities.JoinSpec{join(node.TableName, col(child.TableName, spec.ForeignKey), col(node.TableName, node.PrimaryKey))}
	case entities.BelongsTo:
		return []entities.JoinSpec{join(node.TableName, col(node.TableName, spec.ForeignKey), col(child.TableName, child.PrimaryKey))}
	case entities.HasAndBelongsToMany:
		return []entities.JoinSpec{
			join(spec.LinkTable, col(spec.LinkTable, spec.LinkRemoteKey), col(child.TableName, child.PrimaryKey)),
			join(node.TableName, col(node.TableName, node.PrimaryKey), col(spec.LinkTable, spec.ForeignKey)),
		}
	}
	return nil
}

// inverse handles a relation declared on child pointing back at node
func inverse(node, child *entities.EntityDescriptor, rel *entities.Relationship) []entities.JoinSpec {
	spec := rel.Spec
	switch rel.Kind {
	case entities.Has:
		return []entities.JoinSpec{join(node.TableName, col(node.TableName, spec.ForeignKey), col(child.TableName, child.PrimaryKey))}
	case entities.BelongsTo:
		return []entities.JoinSpec{join(node.TableName, col(child.TableName, spec.ForeignKey), col(node.TableName, node.PrimaryKey))}
	case entities.HasAndBelongsToMany:
		return []entities.JoinSpec{
			join(spec.LinkTable, col(spec.LinkTable, spec.ForeignKey), col(child.TableName, child.PrimaryKey)),
			join(node.TableName, col(node.TableName, node.PrimaryKey), col(spec.LinkTable, spec.LinkRemoteKey)),
		}
	}
	return nil
}

func join(table, left, right string) entities.JoinSpec {
	return entities.JoinSpec{
		Kind:  entities.InnerJoin,
		Table: table,
		On:    []entities.Predicate{{Column: left, RefColumn: right}},
	}
}

func col(table, field string) string {
	return table + "." + field
}
