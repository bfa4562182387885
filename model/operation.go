package model

// OperationKind discriminates the planned operation variants. The set is
// closed: the compiler and classifier switch exhaustively over it.
type OperationKind string

const (
	OpAddBefore OperationKind = "add-before"
	OpAddAfter  OperationKind = "add-after"
	OpCancel    OperationKind = "cancel"
	OpMove      OperationKind = "move"
)

// Operation is one planned structural edit against a running process
// instance. Exactly one shape is populated per kind:
//
//   - add-before / add-after / cancel use ActivityID
//   - move uses FromActivityID and ToActivityID
//
// Variables may be attached to add-before, add-after, and move operations;
// cancel never carries variables.
type Operation struct {
	Kind           OperationKind  `json:"kind"`
	ActivityID     string         `json:"activity_id,omitempty"`
	FromActivityID string         `json:"from_activity_id,omitempty"`
	ToActivityID   string         `json:"to_activity_id,omitempty"`
	Variables      []PlanVariable `json:"variables,omitempty"`
}

// AcceptsVariables reports whether this operation kind may carry variables.
func (o Operation) AcceptsVariables() bool {
	return o.Kind == OpAddBefore || o.Kind == OpAddAfter || o.Kind == OpMove
}

// Equal reports whether two operations target the same thing. Variables are
// deliberately excluded: duplicate detection in the plan store is about the
// structural edit, not its payload.
func (o Operation) Equal(other Operation) bool {
	return o.Kind == other.Kind &&
		o.ActivityID == other.ActivityID &&
		o.FromActivityID == other.FromActivityID &&
		o.ToActivityID == other.ToActivityID
}

// Variable type tags understood by the compiler. Values are always held as
// the operator-entered display string; parsing happens at compile/preview
// time only.
const (
	VarTypeString  = "String"
	VarTypeBoolean = "Boolean"
	VarTypeInteger = "Integer"
	VarTypeLong    = "Long"
	VarTypeDouble  = "Double"
	VarTypeObject  = "Object"
	VarTypeJSON    = "Json"
	VarTypeDate    = "Date"
)

// PlanVariable is a typed variable attached to a planned operation.
type PlanVariable struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value string `json:"value"`
}
