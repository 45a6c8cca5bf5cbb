package cutover

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialectFor(t *testing.T) {
	for name, want := range map[string]string{
		"postgres": "postgres",
		"mysql":    "mysql",
		"sqlite":   "sqlite",
		"sqlite3":  "sqlite",
	} {
		d, err := DialectFor(name)
		require.NoError(t, err)
		assert.Equal(t, want, d.Name())
	}

	_, err := DialectFor("oracle")
	require.Error(t, err)
}

func TestPostgresSQL(t *testing.T) {
	d, _ := DialectFor("postgres")
	assert.True(t, d.TransactionalDDL())
	assert.True(t, d.SupportsConstraintDDL())

	sql, err := d.RenameColumnSQL(RenameColumn{Table: "channel_sets", From: "id", To: "id_old"})
	require.NoError(t, err)
	assert.Equal(t, "ALTER TABLE channel_sets RENAME COLUMN id TO id_old", sql)

	sql, err = d.DropPrimaryKeySQL(DropPrimaryKey{Table: "channel_sets", Column: "id"})
	require.NoError(t, err)
	assert.Equal(t, "ALTER TABLE channel_sets DROP CONSTRAINT IF EXISTS channel_sets_pkey CASCADE", sql)

	// An unvalidated add avoids the table scan under an exclusive lock.
	sql, err = d.AddConstraintSQL(AddConstraint{FK: editorFK, Validated: false})
	require.NoError(t, err)
	assert.Equal(t,
		"ALTER TABLE channel_set_editors ADD CONSTRAINT channel_set_editors_channelset_id_fkey "+
			"FOREIGN KEY (channelset_id) REFERENCES channel_sets (id) NOT VALID", sql)

	sql, err = d.AddConstraintSQL(AddConstraint{FK: editorFK, Validated: true})
	require.NoError(t, err)
	assert.NotContains(t, sql, "NOT VALID")

	sql, err = d.ValidateConstraintSQL(ValidateConstraint{Table: "channel_set_editors", Name: editorFK.Name})
	require.NoError(t, err)
	assert.Equal(t, "ALTER TABLE channel_set_editors VALIDATE CONSTRAINT channel_set_editors_channelset_id_fkey", sql)
}

func TestMySQLSQL(t *testing.T) {
	d, _ := DialectFor("mysql")
	assert.False(t, d.TransactionalDDL())

	sql, err := d.DropConstraintSQL(DropConstraint{FK: editorFK})
	require.NoError(t, err)
	assert.Equal(t, "ALTER TABLE channel_set_editors DROP FOREIGN KEY channel_set_editors_channelset_id_fkey", sql)

	sql, err = d.DropPrimaryKeySQL(DropPrimaryKey{Table: "channel_sets", Column: "id"})
	require.NoError(t, err)
	assert.Equal(t, "ALTER TABLE channel_sets DROP PRIMARY KEY", sql)

	_, err = d.ValidateConstraintSQL(ValidateConstraint{Table: "t", Name: "c"})
	assert.True(t, errors.Is(err, ErrUnsupportedDDL))
}

func TestSQLiteSQL(t *testing.T) {
	d, _ := DialectFor("sqlite")
	assert.True(t, d.TransactionalDDL())
	assert.False(t, d.SupportsConstraintDDL())

	sql, err := d.RenameColumnSQL(RenameColumn{Table: "channel_sets", From: "id_uuid", To: "id"})
	require.NoError(t, err)
	assert.Equal(t, "ALTER TABLE channel_sets RENAME COLUMN id_uuid TO id", sql)

	_, err = d.AddConstraintSQL(AddConstraint{FK: editorFK})
	assert.True(t, errors.Is(err, ErrUnsupportedDDL))
}
