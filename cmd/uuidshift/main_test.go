package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testFieldConfig = `
fields:
  - table: channel_sets
    column: id
    primaryKey: true
`

// testEnv seeds a file-backed SQLite database and a field config, so every
// CLI invocation opens its own connection against shared state, like real
// operator runs would.
type testEnv struct {
	dsn    string
	config string
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	dsn := filepath.Join(dir, "app.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.Exec("CREATE TABLE channel_sets (id text PRIMARY KEY, name text)").Error)
	for i := 0; i < 3; i++ {
		require.NoError(t, db.Exec(
			"INSERT INTO channel_sets (id, name) VALUES (?, ?)",
			fmt.Sprintf("%032x", i+1), fmt.Sprintf("set %d", i+1),
		).Error)
	}
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	config := filepath.Join(dir, "fields.yaml")
	require.NoError(t, os.WriteFile(config, []byte(testFieldConfig), 0o600))

	return &testEnv{dsn: dsn, config: config}
}

func (e *testEnv) run(t *testing.T, args ...string) error {
	t.Helper()
	cmd := newRootCmd()
	cmd.SetArgs(append(args, "--db-type", "sqlite", "--db-dsn", e.dsn, "--config", e.config))
	return cmd.Execute()
}

func (e *testEnv) open(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(e.dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func TestLifecycle(t *testing.T) {
	env := setupEnv(t)

	require.NoError(t, env.run(t, "shadow"))
	require.NoError(t, env.run(t, "backfill"))
	require.NoError(t, env.run(t, "validate"))

	// Break one row after validation; cutover must refuse and leave the
	// schema alone.
	db := env.open(t)
	require.NoError(t, db.Exec(
		"UPDATE channel_sets SET id_uuid = NULL WHERE id = ?", fmt.Sprintf("%032x", 1),
	).Error)

	err := env.run(t, "cutover")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "integrity")
	assert.True(t, db.Migrator().HasColumn("channel_sets", "id_uuid"))
	assert.False(t, db.Migrator().HasColumn("channel_sets", "id_old"))

	require.NoError(t, db.Exec(
		"UPDATE channel_sets SET id_uuid = ? WHERE id = ?",
		"00000000-0000-0000-0000-000000000001", fmt.Sprintf("%032x", 1),
	).Error)

	require.NoError(t, env.run(t, "cutover"))
	assert.True(t, db.Migrator().HasColumn("channel_sets", "id_old"))

	var ids []string
	require.NoError(t, db.Table("channel_sets").Pluck("id", &ids).Error)
	for _, id := range ids {
		assert.True(t, strings.Contains(id, "-"), "expected UUID form, got %q", id)
	}

	// Out-of-order invocations are rejected before touching anything.
	err = env.run(t, "backfill")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot move")

	require.NoError(t, env.run(t, "revert"))
	require.NoError(t, db.Table("channel_sets").Pluck("id", &ids).Error)
	for _, id := range ids {
		assert.False(t, strings.Contains(id, "-"), "expected hex form, got %q", id)
	}

	require.NoError(t, env.run(t, "validate"))
	require.NoError(t, env.run(t, "cutover"))

	err = env.run(t, "cleanup")
	require.Error(t, err)
	assert.True(t, db.Migrator().HasColumn("channel_sets", "id_old"))

	require.NoError(t, env.run(t, "cleanup", "--yes"))
	assert.False(t, db.Migrator().HasColumn("channel_sets", "id_old"))

	// CLEANED_UP is terminal.
	err = env.run(t, "cutover")
	require.Error(t, err)
}

func TestUnknownTableArgument(t *testing.T) {
	env := setupEnv(t)
	err := env.run(t, "shadow", "bogus_table")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not in the field config")
}
