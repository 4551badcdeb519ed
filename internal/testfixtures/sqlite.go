package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/charger-booking/internal/persistence/sqlite"
)

// NewTestPool opens a throwaway SQLite database in the test's temporary
// directory and applies all migrations. The pool is closed on cleanup.
func NewTestPool(t *testing.T) *sqlite.ConnectionPool {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "test.db")
	pool, err := sqlite.NewConnectionPool(dsn)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		if err := pool.Close(); err != nil {
			t.Errorf("failed to close test database: %v", err)
		}
	})

	if err := sqlite.Migrate(context.Background(), pool); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return pool
}
