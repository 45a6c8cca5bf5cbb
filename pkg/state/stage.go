// Package state durably records how far each table has progressed through the
// shadow-column migration, and serializes operator commands so that two
// processes cannot run conflicting operations against the same table.
package state

import "fmt"

// Stage is a table's position in the migration lifecycle. Stages are
// monotonic: no stage may be skipped forward, and the only allowed reversal
// is CUT_OVER back to BACKFILLED (a cutover rollback). CLEANED_UP is terminal
// because the legacy column is physically gone.
type Stage string

const (
	StageShadowAdded Stage = "SHADOW_ADDED"
	StageBackfilled  Stage = "BACKFILLED"
	StageValidated   Stage = "VALIDATED"
	StageCutOver     Stage = "CUT_OVER"
	StageCleanedUp   Stage = "CLEANED_UP"

	// StageNone is the zero value for a table that has not started.
	StageNone Stage = ""
)

var stageOrder = map[Stage]int{
	StageNone:        0,
	StageShadowAdded: 1,
	StageBackfilled:  2,
	StageValidated:   3,
	StageCutOver:     4,
	StageCleanedUp:   5,
}

// Known reports whether s is a recognized stage name.
func (s Stage) Known() bool {
	_, ok := stageOrder[s]
	return ok && s != StageNone
}

// StageViolationError reports a rejected stage transition. It is returned
// before any side effect occurs.
type StageViolationError struct {
	Table string
	From  Stage
	To    Stage
}

func (e *StageViolationError) Error() string {
	from := string(e.From)
	if e.From == StageNone {
		from = "(untracked)"
	}
	return fmt.Sprintf("state: table %s cannot move from %s to %s", e.Table, from, e.To)
}

// CheckTransition validates a requested stage move. Forward moves must be
// exactly one stage; the single allowed reversal is CUT_OVER -> BACKFILLED.
func CheckTransition(table string, from, to Stage) error {
	if !to.Known() {
		return &StageViolationError{Table: table, From: from, To: to}
	}
	if from == StageCutOver && to == StageBackfilled {
		return nil
	}
	if stageOrder[to] == stageOrder[from]+1 {
		return nil
	}
	return &StageViolationError{Table: table, From: from, To: to}
}
