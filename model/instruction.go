package model

// Instruction type constants, matching the engine's modification API.
const (
	InstrStartBefore = "start-before"
	InstrStartAfter  = "start-after"
	InstrCancel      = "cancel"
)

// Instruction is one atomic engine directive produced by the compiler.
// Instructions apply sequentially on the engine side, so slice order is
// part of the contract.
type Instruction struct {
	Type       string `json:"type"`
	ActivityID string `json:"activityId"`

	// CancelCurrentActiveActivityInstances is only meaningful for cancel
	// instructions, where the compiler always sets it.
	CancelCurrentActiveActivityInstances bool `json:"cancelCurrentActiveActivityInstances,omitempty"`

	Variables map[string]VariableValue `json:"variables,omitempty"`
}

// VariableValue is the wire encoding of one typed variable.
type VariableValue struct {
	Value     string     `json:"value"`
	Type      string     `json:"type"`
	ValueInfo *ValueInfo `json:"valueInfo,omitempty"`
}

// ValueInfo carries serialization metadata for Object/Json variables.
type ValueInfo struct {
	SerializationDataFormat string `json:"serializationDataFormat"`
	ObjectTypeName          string `json:"objectTypeName"`
}

// ExecutionOptions are passed through to the engine alongside the compiled
// instruction list.
type ExecutionOptions struct {
	SkipCustomListeners bool   `json:"skipCustomListeners"`
	SkipIoMappings      bool   `json:"skipIoMappings"`
	Annotation          string `json:"annotation,omitempty"`
}

// InstructionSet is the compiler's output: the ordered instructions plus the
// options they should be executed with.
type InstructionSet struct {
	Instructions []Instruction    `json:"instructions"`
	Options      ExecutionOptions `json:"options"`
}

// InstructionReport holds the engine's dry-run findings for one instruction.
// A report with no failures and no warnings means the instruction is clean.
type InstructionReport struct {
	Failures []string `json:"failures,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// ValidationReport is the engine's dry-run result for a whole instruction
// set, index-aligned with the submitted instructions.
type ValidationReport struct {
	InstructionReports []InstructionReport `json:"instruction_reports"`
}

// HasFailures reports whether any instruction failed validation.
func (r ValidationReport) HasFailures() bool {
	for _, ir := range r.InstructionReports {
		if len(ir.Failures) > 0 {
			return true
		}
	}
	return false
}

// CommitResult acknowledges a successful execute call.
type CommitResult struct {
	BatchID    string `json:"batch_id,omitempty"`
	InstanceID string `json:"instance_id,omitempty"`
}
