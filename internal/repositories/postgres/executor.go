package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/asakaida/modelchain/internal/entities"
	"github.com/asakaida/modelchain/internal/repositories"
	"github.com/lib/pq"
)

// PostgresExecutor implements QueryExecutor using PostgreSQL
type PostgresExecutor struct {
	db *sql.DB
}

// NewPostgresExecutor creates a new PostgreSQL query executor
func NewPostgresExecutor(db *sql.DB) repositories.QueryExecutor {
	return &PostgresExecutor{db: db}
}

// Query executes a $n-parameterized query and returns all rows
func (r *PostgresExecutor) Query(ctx context.Context, query string, args ...interface{}) ([]entities.Row, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, describeError(err)
	}
	defer rows.Close()

	result, err := repositories.ScanRows(rows)
	if err != nil {
		return nil, describeError(err)
	}
	return result, nil
}

// Backend serves both collaborators from one *sql.DB
type Backend struct {
	repositories.SchemaIntrospector
	repositories.QueryExecutor
}

// NewBackend creates a PostgreSQL backend (introspector + executor)
func NewBackend(db *sql.DB) *Backend {
	return &Backend{
		SchemaIntrospector: NewPostgresIntrospector(db),
		QueryExecutor:      NewPostgresExecutor(db),
	}
}

// describeError adds the SQLSTATE to server-reported errors
func describeError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return fmt.Errorf("failed to execute query (SQLSTATE %s, %s): %w", pqErr.Code, pqErr.Code.Name(), err)
	}
	return fmt.Errorf("failed to execute query: %w", err)
}
