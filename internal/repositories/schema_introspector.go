package repositories

import (
	"context"

	"github.com/asakaida/modelchain/internal/entities"
)

// SchemaIntrospector defines the interface for reading table metadata from the live schema
type SchemaIntrospector interface {
	// Describe returns the columns of tableName in table order, with their key roles.
	// Returns an error if the table does not exist.
	Describe(ctx context.Context, tableName string) ([]*entities.FieldMeta, error)
}
