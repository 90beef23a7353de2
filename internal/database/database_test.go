package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "scrapeflow.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.InitSchema())
	return db
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, path, db.Path())

	var journalMode string
	require.NoError(t, db.Conn().QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var foreignKeys int
	require.NoError(t, db.Conn().QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys))
	assert.Equal(t, 1, foreignKeys)
}

func TestDB_Health(t *testing.T) {
	db := openTestDB(t)
	assert.NoError(t, db.Health(context.Background()))
}

func TestDB_WithTx_Commit(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO datasets (table_name, row_data) VALUES (?, ?)", "t", "{}")
		return err
	})
	require.NoError(t, err)

	var count int
	require.NoError(t, db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM datasets").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestDB_WithTx_Rollback(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO datasets (table_name, row_data) VALUES (?, ?)", "t", "{}"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int
	require.NoError(t, db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM datasets").Scan(&count))
	assert.Zero(t, count)
}

func TestMigrator_Migrate(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "migrate.db"))
	require.NoError(t, err)
	defer db.Close()

	m := NewMigrator(db)
	ctx := context.Background()

	version, err := m.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Zero(t, version)

	require.NoError(t, m.Migrate(ctx))

	version, err = m.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	applied, err := m.GetAppliedMigrations(ctx)
	require.NoError(t, err)
	require.Len(t, applied, 2)
	assert.Equal(t, "workflow_core", applied[0].Name)
	assert.Equal(t, "conversations_and_datasets", applied[1].Name)

	// Re-running is a no-op.
	require.NoError(t, m.Migrate(ctx))
	version, err = m.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, version)
}

func TestMigrator_Rollback(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "rollback.db"))
	require.NoError(t, err)
	defer db.Close()

	m := NewMigrator(db)
	ctx := context.Background()
	require.NoError(t, m.Migrate(ctx))

	require.NoError(t, m.Rollback(ctx, 1))

	version, err := m.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, version)

	// Conversations table is gone, workflows table survives.
	var count int
	err = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM conversations").Scan(&count)
	assert.Error(t, err)
	require.NoError(t, db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM workflows").Scan(&count))
}
