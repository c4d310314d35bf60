// Package persistencetest opens throwaway databases for tests.
package persistencetest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/kalinanews/newsroom/persistence"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

// New opens a sqlite database in the test temp dir with every migration
// applied. It is closed when the test ends.
func New(t testing.TB) *bun.DB {
	t.Helper()

	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "newsroom_test.db")

	db, err := persistence.Open(ctx, persistence.Options{
		Driver: persistence.DriverSQLite,
		DSN:    dsn,
	})
	require.NoError(t, err)

	_, err = persistence.NewMigrator(db).Migrate(ctx)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}
