package postgres

import (
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

// SetupMockDB creates a sqlmock-backed *sql.DB whose expectations are
// verified when the test finishes
func SetupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}

	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("Unmet sqlmock expectations: %v", err)
		}
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close database: %v", err)
		}
	})

	return db, mock
}
