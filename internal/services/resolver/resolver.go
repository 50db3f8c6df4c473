// Package resolver turns an entity and its declared relationships into a
// nested result tree, issuing one flat query per entity and one per
// relationship of every fetched row.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/asakaida/modelchain/internal/entities"
	"github.com/asakaida/modelchain/internal/repositories"
	"github.com/asakaida/modelchain/internal/services/chain"
	"github.com/asakaida/modelchain/internal/services/sqlrender"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxDepth bounds relationship recursion when no limit is configured
const DefaultMaxDepth = 32

// ErrDepthExceeded is returned when relationship recursion goes deeper than the configured limit
var ErrDepthExceeded = errors.New("relationship depth limit exceeded")

// EntityLoader returns loaded descriptors (fields and primary key) by name
type EntityLoader interface {
	Entity(ctx context.Context, name string) (*entities.EntityDescriptor, error)
}

// QueryRecorder is notified about every executed query
type QueryRecorder interface {
	RecordQuery(table string, durationSeconds float64, failed bool)
}

// Resolver resolves chain nodes into result trees
type Resolver struct {
	exec        repositories.QueryExecutor
	loader      EntityLoader
	renderer    *sqlrender.Renderer
	maxDepth    int
	parallelism int
	logger      *slog.Logger
	recorder    QueryRecorder
}

// Option configures a Resolver
type Option func(*Resolver)

// WithMaxDepth bounds the number of relationship hops below the resolved entity
func WithMaxDepth(depth int) Option {
	return func(r *Resolver) {
		if depth > 0 {
			r.maxDepth = depth
		}
	}
}

// WithParallelism resolves up to n sibling relationships of a row concurrently.
// n <= 1 keeps resolution strictly sequential and depth-first.
func WithParallelism(n int) Option {
	return func(r *Resolver) { r.parallelism = n }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

// WithDialect selects the SQL placeholder syntax of the executor
func WithDialect(d sqlrender.Dialect) Option {
	return func(r *Resolver) { r.renderer = sqlrender.New(d) }
}

// WithRecorder attaches a query metrics recorder
func WithRecorder(rec QueryRecorder) Option {
	return func(r *Resolver) { r.recorder = rec }
}

// New creates a Resolver. The executor is shared by every query and owned by the caller.
func New(exec repositories.QueryExecutor, loader EntityLoader, opts ...Option) *Resolver {
	r := &Resolver{
		exec:        exec,
		loader:      loader,
		renderer:    sqlrender.New(sqlrender.Postgres),
		maxDepth:    DefaultMaxDepth,
		parallelism: 1,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// filter is the WHERE field = value predicate of one fetch
type filter struct {
	field string
	value interface{}
}

// linkJoin wires a HABTM link table into one fetch
type linkJoin struct {
	table       string
	remoteField string
}

// GetAll resolves every row of the node's entity, fully nested
func (r *Resolver) GetAll(ctx context.Context, node *chain.Node) (entities.ResultTree, error) {
	desc := node.Entity()
	rows, err := r.resolve(ctx, desc, nil, desc.Name, nil, nil)
	if err != nil {
		return nil, err
	}
	return entities.ResultTree{desc.Name: rows}, nil
}

// GetOne resolves the row whose primary key equals the single argument.
// A non-matching id yields zero rows, not an error.
func (r *Resolver) GetOne(ctx context.Context, node *chain.Node, args ...interface{}) (entities.ResultTree, error) {
	desc := node.Entity()
	if len(args) != 1 {
		return nil, &entities.BadArgumentCountError{Op: desc.Name + ".GetOne", Expected: "exactly 1", Got: len(args)}
	}

	f := &filter{field: desc.Name + "." + desc.PrimaryKey, value: args[0]}
	rows, err := r.resolve(ctx, desc, f, desc.Name, nil, nil)
	if err != nil {
		return nil, err
	}
	return entities.ResultTree{desc.Name: rows}, nil
}

// Count returns the number of rows of the node's entity, or of rows matching
// the primary key when one argument is given
func (r *Resolver) Count(ctx context.Context, node *chain.Node, args ...interface{}) (int64, error) {
	desc := node.Entity()
	if len(args) > 1 {
		return 0, &entities.BadArgumentCountError{Op: desc.Name + ".Count", Expected: "at most 1", Got: len(args)}
	}

	q := &entities.SelectQuery{Table: desc.TableName, Alias: desc.Name, CountOnly: true}
	if len(args) == 1 {
		q.Where = []entities.Predicate{{Column: desc.Name + "." + desc.PrimaryKey, Value: args[0]}}
	}

	rows, err := r.execute(ctx, q)
	if err != nil {
		return 0, err
	}
	if len(rows) != 1 {
		return 0, fmt.Errorf("count query returned %d rows", len(rows))
	}
	return toInt64(rows[0]["count"])
}

// resolve fetches the rows of desc (aliased as alias), optionally filtered and
// joined to a link table, then attaches every declared relationship of each row
// under its alias. path holds the relationship edges walked so far.
func (r *Resolver) resolve(ctx context.Context, desc *entities.EntityDescriptor, f *filter, alias string, link *linkJoin, path []string) ([]entities.Row, error) {
	q := &entities.SelectQuery{Table: desc.TableName, Alias: alias}
	if link != nil {
		q.Joins = []entities.JoinSpec{{
			Kind:  entities.InnerJoin,
			Table: link.table,
			On:    []entities.Predicate{{Column: alias + "." + desc.PrimaryKey, RefColumn: link.remoteField}},
		}}
	}
	if f != nil {
		q.Where = []entities.Predicate{{Column: f.field, Value: f.value}}
	}

	rows, err := r.execute(ctx, q)
	if err != nil {
		return nil, err
	}

	rels := desc.AllRelations()
	if len(rows) == 0 || len(rels) == 0 {
		return rows, nil
	}

	branches, err := r.prepareBranches(ctx, desc, rels, path)
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		if err := r.attach(ctx, desc, row, branches); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

// branch is one relationship of an entity, with its target loaded and the
// edge path its recursion continues with
type branch struct {
	rel    *entities.Relationship
	target *entities.EntityDescriptor
	path   []string
}

func (r *Resolver) prepareBranches(ctx context.Context, desc *entities.EntityDescriptor, rels []*entities.Relationship, path []string) ([]*branch, error) {
	if len(path) >= r.maxDepth {
		return nil, fmt.Errorf("%w: %d hops below %s", ErrDepthExceeded, r.maxDepth, path[0])
	}

	branches := make([]*branch, 0, len(rels))
	for _, rel := range rels {
		edge := fmt.Sprintf("%s.%s.%s", desc.Name, rel.Kind, rel.Alias)
		for _, visited := range path {
			if visited == edge {
				return nil, &entities.RelationshipCycleError{Path: append([]string(nil), path...), Edge: edge}
			}
		}

		target, err := r.loader.Entity(ctx, rel.Spec.TargetEntity)
		if err != nil {
			return nil, err
		}

		next := make([]string, len(path), len(path)+1)
		copy(next, path)
		branches = append(branches, &branch{rel: rel, target: target, path: append(next, edge)})
	}
	return branches, nil
}

// attach resolves every branch for one row and stores the results under the
// relationship aliases. Siblings run concurrently when parallelism allows;
// each writes only its own slot.
func (r *Resolver) attach(ctx context.Context, desc *entities.EntityDescriptor, row entities.Row, branches []*branch) error {
	results := make([][]entities.Row, len(branches))

	if r.parallelism <= 1 || len(branches) == 1 {
		for i, b := range branches {
			nested, err := r.follow(ctx, desc, row, b)
			if err != nil {
				return err
			}
			results[i] = nested
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.parallelism)
		for i, b := range branches {
			i, b := i, b
			g.Go(func() error {
				nested, err := r.follow(gctx, desc, row, b)
				if err != nil {
					return err
				}
				results[i] = nested
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}

	for i, b := range branches {
		row[b.rel.Alias] = results[i]
	}
	return nil
}

// follow recurses along one relationship of row. The three kinds differ only
// in where the joining key lives.
func (r *Resolver) follow(ctx context.Context, desc *entities.EntityDescriptor, row entities.Row, b *branch) ([]entities.Row, error) {
	spec := b.rel.Spec
	alias := b.rel.Alias

	var (
		f    *filter
		link *linkJoin
	)
	switch b.rel.Kind {
	case entities.Has:
		// foreign key on the related table
		f = &filter{field: alias + "." + spec.ForeignKey, value: row[desc.PrimaryKey]}
	case entities.BelongsTo:
		// foreign key on this row
		f = &filter{field: alias + "." + b.target.PrimaryKey, value: row[spec.ForeignKey]}
	case entities.HasAndBelongsToMany:
		// both keys in the link table
		f = &filter{field: spec.LinkTable + "." + spec.ForeignKey, value: row[desc.PrimaryKey]}
		link = &linkJoin{table: spec.LinkTable, remoteField: spec.LinkTable + "." + spec.LinkRemoteKey}
	default:
		return nil, fmt.Errorf("unknown relation kind %q on %s.%s", b.rel.Kind, desc.Name, alias)
	}

	if f.value == nil {
		return []entities.Row{}, nil
	}
	return r.resolve(ctx, b.target, f, alias, link, b.path)
}

// execute renders and runs one query. Executor failures become QueryExecutionErrors.
func (r *Resolver) execute(ctx context.Context, q *entities.SelectQuery) ([]entities.Row, error) {
	sql, args, err := r.renderer.RenderSelect(q)
	if err != nil {
		return nil, fmt.Errorf("failed to render query for %s: %w", q.Table, err)
	}

	start := time.Now()
	rows, err := r.exec.Query(ctx, sql, args...)
	elapsed := time.Since(start).Seconds()
	if r.recorder != nil {
		r.recorder.RecordQuery(q.Table, elapsed, err != nil)
	}

	if err != nil {
		r.logger.Error("query failed",
			"table", q.Table,
			"query", sql,
			"error", err,
		)
		return nil, &entities.QueryExecutionError{Query: sql, Err: err}
	}

	r.logger.Debug("query executed",
		"table", q.Table,
		"query", sql,
		"rows", len(rows),
		"seconds", elapsed,
	)
	return rows, nil
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case string:
		var out int64
		if _, err := fmt.Sscan(n, &out); err != nil {
			return 0, fmt.Errorf("invalid count value %q: %w", n, err)
		}
		return out, nil
	default:
		return 0, fmt.Errorf("invalid count value of type %T", v)
	}
}
