// Package compiler turns planned operations and effective migration
// mappings into ordered, engine-safe instruction sets.
package compiler

import (
	"strings"

	"github.com/sukanihq/sukani/model"
)

// CompilePlan expands a plan's operations into engine instructions, in plan
// order. Expansion per operation:
//
//	add-before → start-before
//	add-after  → start-after
//	cancel     → cancel (cancelCurrentActiveActivityInstances=true)
//	move       → cancel(from), then start-before(to)
//
// The cancel of a move precedes its start so the engine never observes two
// concurrent tokens for the moved work.
func CompilePlan(ops []model.Operation, opts model.ExecutionOptions) model.InstructionSet {
	out := make([]model.Instruction, 0, len(ops))
	for _, op := range ops {
		switch op.Kind {
		case model.OpAddBefore:
			out = append(out, model.Instruction{
				Type:       model.InstrStartBefore,
				ActivityID: op.ActivityID,
				Variables:  SerializeVariables(op.Variables),
			})
		case model.OpAddAfter:
			out = append(out, model.Instruction{
				Type:       model.InstrStartAfter,
				ActivityID: op.ActivityID,
				Variables:  SerializeVariables(op.Variables),
			})
		case model.OpCancel:
			out = append(out, model.Instruction{
				Type:                                 model.InstrCancel,
				ActivityID:                           op.ActivityID,
				CancelCurrentActiveActivityInstances: true,
			})
		case model.OpMove:
			out = append(out,
				model.Instruction{
					Type:                                 model.InstrCancel,
					ActivityID:                           op.FromActivityID,
					CancelCurrentActiveActivityInstances: true,
				},
				model.Instruction{
					Type:       model.InstrStartBefore,
					ActivityID: op.ToActivityID,
					Variables:  SerializeVariables(op.Variables),
				},
			)
		}
	}
	return model.InstructionSet{Instructions: out, Options: opts}
}

// MigrationInstruction is one compiled migration-plan record.
type MigrationInstruction struct {
	SourceActivityIDs  []string `json:"sourceActivityIds"`
	TargetActivityID   string   `json:"targetActivityId"`
	UpdateEventTrigger *bool    `json:"updateEventTrigger,omitempty"`
}

// CompileMapping turns the effective mapping into the migration plan sent to
// the engine. Excluded rows and rows without an effective target are
// skipped; the operator confirms unmapped rows via the pre-commit summary
// instead.
func CompileMapping(entries []model.MappingEntry) []MigrationInstruction {
	out := make([]MigrationInstruction, 0, len(entries))
	for _, e := range entries {
		if e.Excluded {
			continue
		}
		target := e.EffectiveTarget()
		if target == "" {
			continue
		}
		out = append(out, MigrationInstruction{
			SourceActivityIDs:  append([]string(nil), e.SourceActivityIDs...),
			TargetActivityID:   target,
			UpdateEventTrigger: e.TriggerOverride,
		})
	}
	return out
}

// SerializeVariables encodes plan variables into the engine wire format.
// Variables whose name is empty after trimming are dropped. Object/Json
// values are sent as string-serialized JSON with serialization metadata
// attached; every other type passes its value through untouched with only
// the type tag, so a value the operator mistyped survives round-trips
// instead of being destroyed by a failed coercion.
func SerializeVariables(vars []model.PlanVariable) map[string]model.VariableValue {
	if len(vars) == 0 {
		return nil
	}
	out := make(map[string]model.VariableValue, len(vars))
	for _, v := range vars {
		name := strings.TrimSpace(v.Name)
		if name == "" {
			continue
		}
		vv := model.VariableValue{Value: v.Value, Type: v.Type}
		if v.Type == model.VarTypeObject || v.Type == model.VarTypeJSON {
			vv.ValueInfo = &model.ValueInfo{
				SerializationDataFormat: "application/json",
				ObjectTypeName:          "java.lang.Object",
			}
		}
		out[name] = vv
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
