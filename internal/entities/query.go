package entities

import (
	"fmt"
	"reflect"
)

// JoinKind is the SQL join flavour of a JoinSpec
type JoinKind string

const (
	InnerJoin JoinKind = "INNER"
	LeftJoin  JoinKind = "LEFT"
)

// SelectField is one selected column: table.field AS "alias"
type SelectField struct {
	Table string // Table (or table alias) the column belongs to
	Field string // Column name
	Alias string // Result column label, "table.field" by convention
}

// Predicate is an equality condition on a qualified column.
// It compares against RefColumn when set, otherwise against the bound Value.
type Predicate struct {
	Column    string      // Qualified column (e.g., "users.id")
	Value     interface{} // Bound value, used when RefColumn is empty
	RefColumn string      // Qualified column on the right-hand side (e.g., "post_tags.tag_id")
}

// String returns the predicate in its logical SQL form
// Example: "users.id = 1" or "tags.id = post_tags.tag_id"
func (p Predicate) String() string {
	if p.RefColumn != "" {
		return fmt.Sprintf("%s = %s", p.Column, p.RefColumn)
	}
	return fmt.Sprintf("%s = %v", p.Column, p.Value)
}

// JoinSpec describes one join between two tables
type JoinSpec struct {
	Kind  JoinKind    // INNER or LEFT
	Table string      // Joined table
	Alias string      // Alias of the joined table (the table name when empty)
	On    []Predicate // Join conditions, all column-to-column
}

// OrderTerm is one ORDER BY entry
type OrderTerm struct {
	Column string
	Desc   bool
}

// QueryComponents is the order-independent description of one flat SELECT
// accumulated over an entity chain
//
//	fields: [ table.field AS 'table.field', ... ]
//	from:   terminal table
//	joins:  [ join spec, ... ]
//	where:  [ predicate, ... ]
//	order:  [ term, ... ]
//	limit:  [ limit ] or [ limit, offset ]
type QueryComponents struct {
	Fields []SelectField
	Joins  []JoinSpec
	Where  []Predicate
	Order  []OrderTerm
	Limit  []int
	From   string
}

// NewQueryComponents returns a descriptor with every list empty (not nil)
func NewQueryComponents() *QueryComponents {
	return &QueryComponents{
		Fields: []SelectField{},
		Joins:  []JoinSpec{},
		Where:  []Predicate{},
		Order:  []OrderTerm{},
		Limit:  []int{},
	}
}

// Clone returns a deep copy of the descriptor lists
func (q *QueryComponents) Clone() *QueryComponents {
	out := NewQueryComponents()
	if q == nil {
		return out
	}
	out.Fields = append(out.Fields, q.Fields...)
	for _, j := range q.Joins {
		j.On = append([]Predicate(nil), j.On...)
		out.Joins = append(out.Joins, j)
	}
	out.Where = append(out.Where, q.Where...)
	out.Order = append(out.Order, q.Order...)
	out.Limit = append(out.Limit, q.Limit...)
	out.From = q.From
	return out
}

// WhereStrings returns the where predicates in their logical SQL form
func (q *QueryComponents) WhereStrings() []string {
	out := make([]string, 0, len(q.Where))
	for _, p := range q.Where {
		out = append(out, p.String())
	}
	return out
}

// Equal reports whether two descriptors are identical, order included
func (q *QueryComponents) Equal(other *QueryComponents) bool {
	if q == nil || other == nil {
		return q == other
	}
	return q.From == other.From &&
		reflect.DeepEqual(q.Fields, other.Fields) &&
		reflect.DeepEqual(q.Joins, other.Joins) &&
		reflect.DeepEqual(q.Where, other.Where) &&
		reflect.DeepEqual(q.Order, other.Order) &&
		reflect.DeepEqual(q.Limit, other.Limit)
}

// SelectQuery is the single-table fetch issued by the relation resolver:
// every column of Table (aliased as Alias), optionally joined, filtered by Where
type SelectQuery struct {
	Table     string
	Alias     string
	Joins     []JoinSpec
	Where     []Predicate
	Order     []OrderTerm
	Limit     []int
	CountOnly bool // SELECT COUNT(*) instead of the alias columns
}
