package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/asakaida/modelchain/internal/entities"
	"github.com/asakaida/modelchain/internal/repositories"
)

const defaultSchema = "public"

// describeQuery lists the columns of one table in ordinal order and flags primary key columns
const describeQuery = `
	SELECT c.column_name,
	       c.data_type,
	       CASE WHEN pk.column_name IS NOT NULL THEN 'PRI' ELSE '' END AS key_role
	FROM information_schema.columns c
	LEFT JOIN (
		SELECT kcu.table_schema, kcu.table_name, kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name
		 AND tc.table_schema = kcu.table_schema
		 AND tc.table_name = kcu.table_name
		WHERE tc.constraint_type = 'PRIMARY KEY'
	) pk
	  ON pk.table_schema = c.table_schema
	 AND pk.table_name = c.table_name
	 AND pk.column_name = c.column_name
	WHERE c.table_schema = $1 AND c.table_name = $2
	ORDER BY c.ordinal_position
`

// PostgresIntrospector implements SchemaIntrospector using information_schema
type PostgresIntrospector struct {
	db *sql.DB
}

// NewPostgresIntrospector creates a new PostgreSQL schema introspector
func NewPostgresIntrospector(db *sql.DB) repositories.SchemaIntrospector {
	return &PostgresIntrospector{db: db}
}

// Describe returns the columns of tableName ("table" or "schema.table")
func (r *PostgresIntrospector) Describe(ctx context.Context, tableName string) ([]*entities.FieldMeta, error) {
	schema, table := splitTableName(tableName)

	rows, err := r.db.QueryContext(ctx, describeQuery, schema, table)
	if err != nil {
		return nil, fmt.Errorf("failed to describe table %s: %w", tableName, err)
	}
	defer rows.Close()

	var fields []*entities.FieldMeta
	for rows.Next() {
		var name, dataType, keyRole string
		if err := rows.Scan(&name, &dataType, &keyRole); err != nil {
			return nil, fmt.Errorf("failed to scan column of %s: %w", tableName, err)
		}
		fields = append(fields, &entities.FieldMeta{
			Name:    name,
			Type:    dataType,
			KeyRole: entities.KeyRole(keyRole),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns of %s: %w", tableName, err)
	}

	if len(fields) == 0 {
		return nil, fmt.Errorf("table not found: %s", tableName)
	}

	return fields, nil
}

func splitTableName(name string) (string, string) {
	if i := strings.IndexByte(name, '.'); i > 0 && i < len(name)-1 {
		return name[:i], name[i+1:]
	}
	return defaultSchema, name
}
