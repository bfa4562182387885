// Package plan holds the mutable ordered collection of planned operations
// for one instance-modification session.
package plan

import "github.com/sukanihq/sukani/model"

// Reorder directions.
const (
	DirectionUp   = "up"
	DirectionDown = "down"
)

// Store is the ordered list of planned operations plus the transient state
// of the two-step move gesture. A Store is owned by exactly one planning
// session; it is not safe for concurrent use on its own.
//
// Every mutation is a no-op when given a stale index or ID rather than an
// error: a stale reference from the UI must never corrupt planning state.
// Mutations are copy-on-write, so a slice returned by Operations remains a
// stable snapshot across later edits.
type Store struct {
	ops           []model.Operation
	pendingSource string
}

// NewStore creates an empty plan store.
func NewStore() *Store {
	return &Store{}
}

// Restore rebuilds a store from a previously persisted operation list, for
// resuming a saved draft. The move gesture is transient UI state and is not
// restored.
func Restore(ops []model.Operation) *Store {
	return &Store{ops: append([]model.Operation(nil), ops...)}
}

// Operations returns the current operation list. The returned slice is a
// snapshot: later mutations of the store do not affect it.
func (s *Store) Operations() []model.Operation {
	return s.ops
}

// Len returns the number of planned operations.
func (s *Store) Len() int {
	return len(s.ops)
}

// PendingMoveSource returns the activity currently armed as a move source by
// ToggleMoveSelection, or "" when no move is pending.
func (s *Store) PendingMoveSource() string {
	return s.pendingSource
}

// AddOperation appends an add-before, add-after, or cancel operation for the
// given activity. An identical entry already in the plan makes this a no-op.
// Add-before and add-after are mutually exclusive per activity: adding one
// removes the other first. Move (and any unknown kind) is rejected here;
// moves only enter the plan through the move gesture or AddMoveToMany.
func (s *Store) AddOperation(kind model.OperationKind, activityID string) {
	if activityID == "" {
		return
	}
	switch kind {
	case model.OpAddBefore, model.OpAddAfter, model.OpCancel:
	default:
		return
	}

	op := model.Operation{Kind: kind, ActivityID: activityID}
	if s.indexOf(op) >= 0 {
		return
	}

	next := s.ops
	if opposite, ok := oppositeAdd(kind); ok {
		if i := s.indexOf(model.Operation{Kind: opposite, ActivityID: activityID}); i >= 0 {
			next = removeAt(next, i)
		}
	}
	s.ops = appendOp(next, op)
}

// ToggleMoveSelection advances the two-step move gesture. The first call
// arms the given activity as the pending move source. A second call with a
// different activity commits Move{from: source, to: activityID} and clears
// the pending source; a second call with the same activity cancels the
// gesture.
func (s *Store) ToggleMoveSelection(activityID string) {
	if activityID == "" {
		return
	}
	switch {
	case s.pendingSource == "":
		s.pendingSource = activityID
	case s.pendingSource == activityID:
		s.pendingSource = ""
	default:
		s.addMove(s.pendingSource, activityID)
		s.pendingSource = ""
	}
}

// AddMoveToMany commits one move per source onto the given target. Pairs
// already planned are skipped, so replaying the same call is idempotent.
func (s *Store) AddMoveToMany(target string, sources []string) {
	if target == "" {
		return
	}
	for _, from := range sources {
		s.addMove(from, target)
	}
}

// addMove appends Move{from,to} unless the exact pair is already planned.
func (s *Store) addMove(from, to string) {
	if from == "" || to == "" {
		return
	}
	op := model.Operation{Kind: model.OpMove, FromActivityID: from, ToActivityID: to}
	if s.indexOf(op) >= 0 {
		return
	}
	s.ops = appendOp(s.ops, op)
}

// Remove deletes the operation at index. Out-of-range indices are no-ops.
func (s *Store) Remove(index int) {
	if index < 0 || index >= len(s.ops) {
		return
	}
	s.ops = removeAt(s.ops, index)
}

// Reorder swaps the operation at index with its neighbor in the given
// direction. Boundary moves and unknown directions are no-ops.
func (s *Store) Reorder(index int, direction string) {
	var j int
	switch direction {
	case DirectionUp:
		j = index - 1
	case DirectionDown:
		j = index + 1
	default:
		return
	}
	if index < 0 || index >= len(s.ops) || j < 0 || j >= len(s.ops) {
		return
	}
	next := make([]model.Operation, len(s.ops))
	copy(next, s.ops)
	next[index], next[j] = next[j], next[index]
	s.ops = next
}

// UndoLast removes the most recently appended operation. This is a plain
// stack pop: it does not reverse side effects of the append, so an opposite
// add-* entry removed by mutual exclusion is not reconstructed.
func (s *Store) UndoLast() {
	if len(s.ops) == 0 {
		return
	}
	s.ops = removeAt(s.ops, len(s.ops)-1)
}

// SetVariables replaces the variable list of the operation at index. Only
// add-before, add-after, and move operations accept variables; cancel
// entries and out-of-range indices are no-ops.
func (s *Store) SetVariables(index int, vars []model.PlanVariable) {
	if index < 0 || index >= len(s.ops) {
		return
	}
	if !s.ops[index].AcceptsVariables() {
		return
	}
	next := make([]model.Operation, len(s.ops))
	copy(next, s.ops)
	if len(vars) == 0 {
		next[index].Variables = nil
	} else {
		vcopy := make([]model.PlanVariable, len(vars))
		copy(vcopy, vars)
		next[index].Variables = vcopy
	}
	s.ops = next
}

// Clear discards every planned operation and any pending move source.
func (s *Store) Clear() {
	s.ops = nil
	s.pendingSource = ""
}

// HasOperationFor reports whether any planned operation touches the given
// activity, either as a direct target or as a move endpoint. Used for
// diagram badge placement.
func (s *Store) HasOperationFor(activityID string) bool {
	for _, op := range s.ops {
		if op.ActivityID == activityID || op.FromActivityID == activityID || op.ToActivityID == activityID {
			return true
		}
	}
	return false
}

// indexOf returns the position of the first structurally equal operation,
// or -1.
func (s *Store) indexOf(op model.Operation) int {
	for i, existing := range s.ops {
		if existing.Equal(op) {
			return i
		}
	}
	return -1
}

// oppositeAdd returns the mutually exclusive counterpart of an add kind.
func oppositeAdd(kind model.OperationKind) (model.OperationKind, bool) {
	switch kind {
	case model.OpAddBefore:
		return model.OpAddAfter, true
	case model.OpAddAfter:
		return model.OpAddBefore, true
	default:
		return "", false
	}
}

func appendOp(ops []model.Operation, op model.Operation) []model.Operation {
	next := make([]model.Operation, len(ops), len(ops)+1)
	copy(next, ops)
	return append(next, op)
}

func removeAt(ops []model.Operation, i int) []model.Operation {
	next := make([]model.Operation, 0, len(ops)-1)
	next = append(next, ops[:i]...)
	return append(next, ops[i+1:]...)
}
