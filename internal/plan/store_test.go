package plan

import (
	"testing"

	"github.com/sukanihq/sukani/model"
)

func TestStore_AddOperation_mutualExclusion(t *testing.T) {
	s := NewStore()
	s.AddOperation(model.OpAddBefore, "taskA")
	s.AddOperation(model.OpAddAfter, "taskA")

	ops := s.Operations()
	if len(ops) != 1 {
		t.Fatalf("len = %d, want exactly one entry for taskA", len(ops))
	}
	if ops[0].Kind != model.OpAddAfter {
		t.Errorf("Kind = %q, want the later add-after to win", ops[0].Kind)
	}
}

func TestStore_AddOperation_duplicateIsNoop(t *testing.T) {
	s := NewStore()
	s.AddOperation(model.OpCancel, "taskA")
	s.AddOperation(model.OpCancel, "taskA")
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
}

func TestStore_AddOperation_cancelAndAddCoexist(t *testing.T) {
	s := NewStore()
	s.AddOperation(model.OpCancel, "taskA")
	s.AddOperation(model.OpAddBefore, "taskA")
	if s.Len() != 2 {
		t.Errorf("Len = %d, want cancel and add-before to coexist", s.Len())
	}
}

func TestStore_AddOperation_rejectsMoveAndBlankID(t *testing.T) {
	s := NewStore()
	s.AddOperation(model.OpMove, "taskA")
	s.AddOperation(model.OpAddBefore, "")
	s.AddOperation("bogus", "taskA")
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0", s.Len())
	}
}

func TestStore_ToggleMoveSelection_gesture(t *testing.T) {
	s := NewStore()

	s.ToggleMoveSelection("taskA")
	if got := s.PendingMoveSource(); got != "taskA" {
		t.Fatalf("PendingMoveSource = %q, want taskA", got)
	}

	s.ToggleMoveSelection("taskB")
	if got := s.PendingMoveSource(); got != "" {
		t.Errorf("PendingMoveSource = %q, want cleared after commit", got)
	}
	ops := s.Operations()
	if len(ops) != 1 || ops[0].Kind != model.OpMove {
		t.Fatalf("ops = %+v, want a single move", ops)
	}
	if ops[0].FromActivityID != "taskA" || ops[0].ToActivityID != "taskB" {
		t.Errorf("move = %s→%s, want taskA→taskB", ops[0].FromActivityID, ops[0].ToActivityID)
	}
}

func TestStore_ToggleMoveSelection_sameNodeCancels(t *testing.T) {
	s := NewStore()
	s.ToggleMoveSelection("taskA")
	s.ToggleMoveSelection("taskA")
	if got := s.PendingMoveSource(); got != "" {
		t.Errorf("PendingMoveSource = %q, want cancelled", got)
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d, want no move committed", s.Len())
	}
}

func TestStore_AddMoveToMany_idempotent(t *testing.T) {
	s := NewStore()
	s.AddMoveToMany("taskB", []string{"taskA"})
	s.AddMoveToMany("taskB", []string{"taskA"})
	if s.Len() != 1 {
		t.Errorf("Len = %d, want exactly one move per (from,to) pair", s.Len())
	}

	s.AddMoveToMany("taskB", []string{"taskC", "taskD"})
	if s.Len() != 3 {
		t.Errorf("Len = %d, want 3 distinct moves", s.Len())
	}
}

func TestStore_UndoLast_stackDiscipline(t *testing.T) {
	s := NewStore()
	s.AddOperation(model.OpAddBefore, "taskA")
	s.AddOperation(model.OpCancel, "taskB")
	s.AddOperation(model.OpAddAfter, "taskC")

	s.UndoLast()
	ops := s.Operations()
	if len(ops) != 2 {
		t.Fatalf("len = %d, want 2", len(ops))
	}
	if ops[0].ActivityID != "taskA" || ops[1].ActivityID != "taskB" {
		t.Errorf("earlier entries changed: %+v", ops)
	}

	// Undo on an empty store is a no-op.
	s.UndoLast()
	s.UndoLast()
	s.UndoLast()
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0", s.Len())
	}
}

// Undo is a plain stack pop: it does not resurrect the add-before entry
// that the later add-after displaced via mutual exclusion.
func TestStore_UndoLast_doesNotReverseMutualExclusion(t *testing.T) {
	s := NewStore()
	s.AddOperation(model.OpAddBefore, "taskA")
	s.AddOperation(model.OpAddAfter, "taskA")
	s.UndoLast()
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0 (the displaced add-before stays gone)", s.Len())
	}
}

func TestStore_Remove_and_staleIndex(t *testing.T) {
	s := NewStore()
	s.AddOperation(model.OpAddBefore, "taskA")
	s.AddOperation(model.OpCancel, "taskB")

	s.Remove(0)
	ops := s.Operations()
	if len(ops) != 1 || ops[0].ActivityID != "taskB" {
		t.Fatalf("ops = %+v, want only the cancel left", ops)
	}

	s.Remove(5)
	s.Remove(-1)
	if s.Len() != 1 {
		t.Errorf("Len = %d, stale indices must be no-ops", s.Len())
	}
}

func TestStore_Reorder(t *testing.T) {
	s := NewStore()
	s.AddOperation(model.OpAddBefore, "taskA")
	s.AddOperation(model.OpAddAfter, "taskB")
	s.AddOperation(model.OpCancel, "taskC")

	s.Reorder(2, DirectionUp)
	ops := s.Operations()
	if ops[1].ActivityID != "taskC" || ops[2].ActivityID != "taskB" {
		t.Errorf("order after up = %v", ids(ops))
	}

	s.Reorder(0, DirectionUp)   // boundary no-op
	s.Reorder(2, DirectionDown) // boundary no-op
	s.Reorder(1, "sideways")    // unknown direction no-op
	if got := ids(s.Operations()); got[0] != "taskA" || got[1] != "taskC" || got[2] != "taskB" {
		t.Errorf("order changed by no-op reorders: %v", got)
	}
}

func TestStore_SetVariables(t *testing.T) {
	s := NewStore()
	s.AddOperation(model.OpAddBefore, "taskA")
	s.AddOperation(model.OpCancel, "taskB")

	vars := []model.PlanVariable{{Name: "amount", Type: model.VarTypeDouble, Value: "42.5"}}
	s.SetVariables(0, vars)
	if got := s.Operations()[0].Variables; len(got) != 1 || got[0].Name != "amount" {
		t.Errorf("Variables = %+v", got)
	}

	// Cancel entries never accept variables.
	s.SetVariables(1, vars)
	if got := s.Operations()[1].Variables; got != nil {
		t.Errorf("cancel entry got variables: %+v", got)
	}

	// Replacing with an empty list clears.
	s.SetVariables(0, nil)
	if got := s.Operations()[0].Variables; got != nil {
		t.Errorf("Variables = %+v, want cleared", got)
	}

	// Stale index is a no-op.
	s.SetVariables(9, vars)
}

func TestStore_Operations_isSnapshot(t *testing.T) {
	s := NewStore()
	s.AddOperation(model.OpAddBefore, "taskA")
	snap := s.Operations()

	s.AddOperation(model.OpCancel, "taskB")
	s.Remove(0)

	if len(snap) != 1 || snap[0].ActivityID != "taskA" {
		t.Errorf("snapshot mutated by later edits: %+v", snap)
	}
}

func TestStore_HasOperationFor(t *testing.T) {
	s := NewStore()
	s.AddMoveToMany("taskB", []string{"taskA"})
	for _, id := range []string{"taskA", "taskB"} {
		if !s.HasOperationFor(id) {
			t.Errorf("HasOperationFor(%s) = false", id)
		}
	}
	if s.HasOperationFor("taskZ") {
		t.Error("HasOperationFor(taskZ) = true")
	}
}

func ids(ops []model.Operation) []string {
	out := make([]string, len(ops))
	for i, op := range ops {
		out[i] = op.ActivityID
	}
	return out
}
