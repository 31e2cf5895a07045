package sqlite

import (
	"context"
	"path/filepath"
	"testing"
)

func setupPool(t *testing.T) *ConnectionPool {
	t.Helper()

	path := filepath.Join(t.TempDir(), "payroll.db")
	pool, err := Open(path)
	if err != nil {
		t.Fatalf("Failed to open storage: %v", err)
	}
	t.Cleanup(func() { _ = pool.Close() })

	if err := pool.Migrate(context.Background()); err != nil {
		t.Fatalf("Failed to migrate storage: %v", err)
	}
	return pool
}
