// Package sqlrender turns structured query descriptions into parameterized
// SQL. Identifiers are always quoted and values are always bound, never
// interpolated into the query text.
package sqlrender

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/asakaida/modelchain/internal/entities"
)

// ErrOutOfScope is returned when a query references a table that its FROM
// clause and joins do not bring into scope exactly once
var ErrOutOfScope = errors.New("table not in query scope")

// Dialect selects placeholder syntax
type Dialect string

const (
	// Postgres uses numbered placeholders ($1, $2, ...)
	Postgres Dialect = "postgres"
	// SQLite uses positional placeholders (?)
	SQLite Dialect = "sqlite"
)

// ParseDialect maps a database driver name to its dialect
func ParseDialect(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "postgres", "postgresql", "pq":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return "", fmt.Errorf("unsupported dialect: %q", driver)
	}
}

// Renderer renders queries for one dialect
type Renderer struct {
	Dialect Dialect
}

// New creates a Renderer for dialect
func New(dialect Dialect) *Renderer {
	return &Renderer{Dialect: dialect}
}

// builder accumulates query text and bound arguments
type builder struct {
	dialect Dialect
	sb      strings.Builder
	args    []interface{}
}

func (b *builder) write(parts ...string) {
	for _, p := range parts {
		b.sb.WriteString(p)
	}
}

func (b *builder) bind(v interface{}) {
	b.args = append(b.args, v)
	if b.dialect == Postgres {
		b.sb.WriteString("$" + strconv.Itoa(len(b.args)))
		return
	}
	b.sb.WriteString("?")
}

// RenderSelect renders a single-table fetch:
//
//	SELECT "alias".* FROM "table" AS "alias" [JOIN ...] [WHERE ...] [ORDER BY ...] [LIMIT ...]
func (r *Renderer) RenderSelect(q *entities.SelectQuery) (string, []interface{}, error) {
	if q == nil || q.Table == "" {
		return "", nil, fmt.Errorf("cannot render query without a table")
	}
	alias := q.Alias
	if alias == "" {
		alias = q.Table
	}

	b := &builder{dialect: r.Dialect}
	if q.CountOnly {
		b.write(`SELECT COUNT(*) AS "count" FROM `)
	} else {
		b.write("SELECT ", QuoteIdent(alias), ".* FROM ")
	}
	b.write(tableRef(q.Table, alias))

	if _, err := r.renderTail(b, alias, q.Joins, q.Where, q.Order, q.Limit); err != nil {
		return "", nil, err
	}
	return b.sb.String(), b.args, nil
}

// RenderComponents renders an accumulated query description:
//
//	SELECT "t"."f" AS "t.f", ... FROM "from" [JOIN ...] [WHERE ...] [ORDER BY ...] [LIMIT ...]
//
// Every selected, filtered or ordered column must belong to the FROM table or
// a joined table, otherwise ErrOutOfScope is returned.
func (r *Renderer) RenderComponents(q *entities.QueryComponents) (string, []interface{}, error) {
	if q == nil || q.From == "" {
		return "", nil, fmt.Errorf("cannot render query components without a from table")
	}

	b := &builder{dialect: r.Dialect}
	b.write("SELECT ")
	if len(q.Fields) == 0 {
		b.write("*")
	}
	for i, f := range q.Fields {
		if i > 0 {
			b.write(", ")
		}
		b.write(QuoteIdent(f.Table + "." + f.Field))
		if f.Alias != "" {
			b.write(" AS ", quoteName(f.Alias))
		}
	}
	b.write(" FROM ", QuoteIdent(q.From))

	scope, err := r.renderTail(b, q.From, q.Joins, q.Where, q.Order, q.Limit)
	if err != nil {
		return "", nil, err
	}

	columns := make([]string, 0, len(q.Fields)+len(q.Where)+len(q.Order))
	for _, f := range q.Fields {
		columns = append(columns, f.Table+"."+f.Field)
	}
	for _, p := range q.Where {
		columns = append(columns, p.Column, p.RefColumn)
	}
	for _, o := range q.Order {
		columns = append(columns, o.Column)
	}
	if err := checkScope(columns, scope); err != nil {
		return "", nil, err
	}
	return b.sb.String(), b.args, nil
}

// checkScope fails on the first qualified column whose table is not in scope
func checkScope(columns []string, scope map[string]bool) error {
	for _, col := range columns {
		table, _, qualified := strings.Cut(col, ".")
		if qualified && !scope[table] {
			return fmt.Errorf("%w: column %s references table %q, which is not joined", ErrOutOfScope, col, table)
		}
	}
	return nil
}

// renderTail writes the joins, predicates, ordering and limit, and returns the
// names in scope after the joins
func (r *Renderer) renderTail(b *builder, from string, joins []entities.JoinSpec, where []entities.Predicate, order []entities.OrderTerm, limit []int) (map[string]bool, error) {
	ordered, scope, err := orderJoins(from, joins)
	if err != nil {
		return nil, err
	}
	for _, j := range ordered {
		kind := j.Kind
		if kind == "" {
			kind = entities.InnerJoin
		}
		b.write(" ", string(kind), " JOIN ", tableRef(j.Table, joinAlias(j)), " ON ")
		renderPredicates(b, j.On)
	}

	if len(where) > 0 {
		b.write(" WHERE ")
		renderPredicates(b, where)
	}

	for i, o := range order {
		if i == 0 {
			b.write(" ORDER BY ")
		} else {
			b.write(", ")
		}
		b.write(QuoteIdent(o.Column))
		if o.Desc {
			b.write(" DESC")
		}
	}

	switch len(limit) {
	case 0:
	case 1, 2:
		b.write(" LIMIT ")
		b.bind(limit[0])
		if len(limit) == 2 {
			b.write(" OFFSET ")
			b.bind(limit[1])
		}
	default:
		return nil, fmt.Errorf("limit takes [limit] or [limit, offset], got %d values", len(limit))
	}
	return scope, nil
}

// orderJoins returns joins in an order where every join condition only
// references tables already in scope: from, earlier joins, or the join itself.
// Joins that are already valid keep their relative order. The returned set
// holds every name in scope. A name brought into scope twice is an error,
// since its columns would be ambiguous.
func orderJoins(from string, joins []entities.JoinSpec) ([]entities.JoinSpec, map[string]bool, error) {
	inScope := map[string]bool{from: true}
	for _, j := range joins {
		if j.Table == "" || len(j.On) == 0 {
			return nil, nil, fmt.Errorf("join on %q needs a table and at least one condition", j.Table)
		}
		if inScope[joinAlias(j)] {
			return nil, nil, fmt.Errorf("%w: %q is joined more than once without a distinct alias", ErrOutOfScope, joinAlias(j))
		}
		inScope[joinAlias(j)] = true
	}

	inScope = map[string]bool{from: true}
	pending := append([]entities.JoinSpec(nil), joins...)
	out := make([]entities.JoinSpec, 0, len(joins))

	for len(pending) > 0 {
		placed := -1
		for i, j := range pending {
			if joinInScope(j, inScope) {
				placed = i
				break
			}
		}
		if placed < 0 {
			return nil, nil, fmt.Errorf("%w: join on %q references a table that is never joined", ErrOutOfScope, pending[0].Table)
		}
		j := pending[placed]
		inScope[joinAlias(j)] = true
		out = append(out, j)
		pending = append(pending[:placed], pending[placed+1:]...)
	}
	return out, inScope, nil
}

func joinInScope(j entities.JoinSpec, inScope map[string]bool) bool {
	self := joinAlias(j)
	for _, p := range j.On {
		for _, col := range []string{p.Column, p.RefColumn} {
			table, _, qualified := strings.Cut(col, ".")
			if qualified && table != self && !inScope[table] {
				return false
			}
		}
	}
	return true
}

func joinAlias(j entities.JoinSpec) string {
	if j.Alias != "" {
		return j.Alias
	}
	return j.Table
}

func renderPredicates(b *builder, preds []entities.Predicate) {
	for i, p := range preds {
		if i > 0 {
			b.write(" AND ")
		}
		b.write(QuoteIdent(p.Column))
		switch {
		case p.RefColumn != "":
			b.write(" = ", QuoteIdent(p.RefColumn))
		case p.Value == nil:
			b.write(" IS NULL")
		default:
			b.write(" = ")
			b.bind(p.Value)
		}
	}
}

func tableRef(table, alias string) string {
	if alias == "" || alias == table {
		return QuoteIdent(table)
	}
	return QuoteIdent(table) + " AS " + quoteName(alias)
}

// QuoteIdent quotes a possibly qualified identifier
// Example: users.id -> "users"."id"
func QuoteIdent(ident string) string {
	parts := strings.Split(ident, ".")
	for i, p := range parts {
		parts[i] = quoteName(p)
	}
	return strings.Join(parts, ".")
}

// quoteName quotes one name verbatim, dots included
func quoteName(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
