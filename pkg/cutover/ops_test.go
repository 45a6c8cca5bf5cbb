package cutover

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var editorFK = ForeignKeyDef{
	Name:      "channel_set_editors_channelset_id_fkey",
	Table:     "channel_set_editors",
	Column:    "channelset_id",
	RefTable:  "channel_sets",
	RefColumn: "id",
}

func TestPlanInvertReversesAndInverts(t *testing.T) {
	plan := Plan{Ops: []Op{
		DropConstraint{FK: editorFK},
		RenameColumn{Table: "channel_set_editors", From: "channelset_id", To: "channelset_id_old"},
		RenameColumn{Table: "channel_set_editors", From: "channelset_id_uuid", To: "channelset_id"},
		AddConstraint{FK: editorFK, Validated: false},
		ValidateConstraint{Table: "channel_set_editors", Name: editorFK.Name},
	}}

	reverse, err := plan.Invert()
	require.NoError(t, err)

	// ValidateConstraint has no reverse action; everything else is inverted
	// in reverse order, restoring the original two-column layout and the
	// original constraint.
	assert.Equal(t, []Op{
		DropConstraint{FK: editorFK},
		RenameColumn{Table: "channel_set_editors", From: "channelset_id", To: "channelset_id_uuid"},
		RenameColumn{Table: "channel_set_editors", From: "channelset_id_old", To: "channelset_id"},
		AddConstraint{FK: editorFK, Validated: true},
	}, reverse.Ops)
}

func TestPlanInvertIsSymmetric(t *testing.T) {
	plan := Plan{Ops: []Op{
		DropPrimaryKey{Table: "channel_sets", Column: "id"},
		RenameColumn{Table: "channel_sets", From: "id", To: "id_old"},
		RenameColumn{Table: "channel_sets", From: "id_uuid", To: "id"},
		AddPrimaryKey{Table: "channel_sets", Column: "id"},
	}}

	reverse, err := plan.Invert()
	require.NoError(t, err)
	again, err := reverse.Invert()
	require.NoError(t, err)
	assert.Equal(t, plan.Ops, again.Ops)
}

func TestPlanInvertRefusesDestructiveOps(t *testing.T) {
	plan := Plan{Ops: []Op{
		DropColumn{Table: "channel_sets", Column: "id_old"},
	}}
	_, err := plan.Invert()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIrreversible))
}

func TestIndexOpsInvertPairwise(t *testing.T) {
	create := CreateUniqueIndex{Table: "channel_sets", Column: "id_uuid", Name: "channel_sets_id_uuid_key"}
	drop, ok := create.Invert().(DropIndex)
	require.True(t, ok)
	assert.Equal(t, create, drop.Invert())
}
