package repositories

import (
	"database/sql"
	"fmt"

	"github.com/asakaida/modelchain/internal/entities"
)

// ScanRows reads every remaining row of rows into column -> value maps.
// Byte slices are copied into strings since drivers reuse their buffers.
// The caller still owns rows and must close it.
func ScanRows(rows *sql.Rows) ([]entities.Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	result := make([]entities.Row, 0)
	for rows.Next() {
		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(entities.Row, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return result, nil
}
