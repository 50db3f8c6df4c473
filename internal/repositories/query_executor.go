package repositories

import (
	"context"

	"github.com/asakaida/modelchain/internal/entities"
)

// QueryExecutor defines the interface for running rendered queries against the backend
type QueryExecutor interface {
	// Query executes a parameterized query and returns every row as a column -> value map,
	// in the backend's natural row order. An empty result is not an error.
	Query(ctx context.Context, query string, args ...interface{}) ([]entities.Row, error)
}

// Backend bundles both collaborators over a single connection
type Backend interface {
	SchemaIntrospector
	QueryExecutor
}
