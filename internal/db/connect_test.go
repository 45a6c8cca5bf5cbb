package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectSQLite(t *testing.T) {
	gdb, err := Connect(Config{Type: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", gdb.Dialector.Name())
}

func TestConnectRejectsUnknownType(t *testing.T) {
	_, err := Connect(Config{Type: "oracle", DSN: "whatever"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database type")
}

func TestConnectRequiresDSN(t *testing.T) {
	t.Setenv("UUIDSHIFT_DB_DSN", "")
	_, err := Connect(Config{Type: "sqlite"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UUIDSHIFT_DB_DSN")
}

func TestConnectEnvFallback(t *testing.T) {
	t.Setenv("UUIDSHIFT_DB_DSN", ":memory:")
	t.Setenv("UUIDSHIFT_DB_TYPE", "sqlite")
	gdb, err := Connect(Config{})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", gdb.Dialector.Name())
}
