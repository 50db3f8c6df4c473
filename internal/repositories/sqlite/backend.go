// Package sqlite implements the schema introspection and query execution
// collaborators on top of the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/asakaida/modelchain/internal/entities"
	"github.com/asakaida/modelchain/internal/repositories"
	_ "modernc.org/sqlite"
)

// DriverName is the database/sql driver name registered by modernc.org/sqlite
const DriverName = "sqlite"

// Open opens a SQLite database. In-memory databases are pinned to a single
// connection so every query sees the same data.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if isMemory(path) {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	return db, nil
}

func isMemory(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory")
}

// Backend implements SchemaIntrospector and QueryExecutor for SQLite
type Backend struct {
	db *sql.DB
}

// NewBackend creates a SQLite backend
func NewBackend(db *sql.DB) repositories.Backend {
	return &Backend{db: db}
}

// Describe returns the columns of tableName using pragma_table_info
func (b *Backend) Describe(ctx context.Context, tableName string) ([]*entities.FieldMeta, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT name, type, pk FROM pragma_table_info(?) ORDER BY cid`, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to describe table %s: %w", tableName, err)
	}
	defer rows.Close()

	var fields []*entities.FieldMeta
	for rows.Next() {
		var (
			name, typ string
			pk        int
		)
		if err := rows.Scan(&name, &typ, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan column of %s: %w", tableName, err)
		}
		role := entities.KeyRoleNone
		if pk > 0 {
			role = entities.KeyRolePrimary
		}
		fields = append(fields, &entities.FieldMeta{Name: name, Type: strings.ToLower(typ), KeyRole: role})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns of %s: %w", tableName, err)
	}

	if len(fields) == 0 {
		return nil, fmt.Errorf("table not found: %s", tableName)
	}

	return fields, nil
}

// Query executes a ?-parameterized query and returns all rows
func (b *Backend) Query(ctx context.Context, query string, args ...interface{}) ([]entities.Row, error) {
	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	result, err := repositories.ScanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return result, nil
}
