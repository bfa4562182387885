// Package engine talks to the workflow engine's REST API: graph reads,
// suggestion generation, and the validate/execute pair for compiled plans.
package engine

import (
	"context"

	"github.com/sukanihq/sukani/internal/compiler"
	"github.com/sukanihq/sukani/model"
)

// MigrationPlan is the engine's migration-plan payload: the definition pair
// plus the compiled per-node instructions.
type MigrationPlan struct {
	SourceProcessDefinitionID string                          `json:"sourceProcessDefinitionId"`
	TargetProcessDefinitionID string                          `json:"targetProcessDefinitionId"`
	Instructions              []compiler.MigrationInstruction `json:"instructions"`
}

// Gateway is the engine-facing boundary of the planning core. Every call is
// a single-shot remote request: callers never see partial results and the
// gateway never retries on its own, because a repeated execute could apply
// the same structural change twice.
type Gateway interface {
	// ProcessNodes returns the addressable nodes of a deployed process
	// definition, in definition order.
	ProcessNodes(ctx context.Context, rctx *model.RequestContext, definitionID string) ([]model.ProcessNode, error)

	// ActiveActivityIDs returns the activity IDs currently holding tokens
	// in a running instance.
	ActiveActivityIDs(ctx context.Context, rctx *model.RequestContext, instanceID string) ([]string, error)

	// DefinitionActiveActivityIDs returns the activity IDs holding at least
	// one token across all running instances of a definition. Backs the
	// active-token signals on migration mapping rows.
	DefinitionActiveActivityIDs(ctx context.Context, rctx *model.RequestContext, definitionID string) ([]string, error)

	// GenerateMappings asks the engine for its default source-to-target
	// node mapping between two definition versions.
	GenerateMappings(ctx context.Context, rctx *model.RequestContext, sourceDefID, targetDefID string, updateEventTriggers bool) ([]model.MigrationSuggestion, error)

	// ValidateModification dry-runs a compiled instruction set against a
	// running instance.
	ValidateModification(ctx context.Context, rctx *model.RequestContext, instanceID string, set model.InstructionSet) (model.ValidationReport, error)

	// ExecuteModification applies a compiled instruction set to a running
	// instance.
	ExecuteModification(ctx context.Context, rctx *model.RequestContext, instanceID string, set model.InstructionSet) (model.CommitResult, error)

	// ValidateMigration dry-runs a migration plan.
	ValidateMigration(ctx context.Context, rctx *model.RequestContext, plan MigrationPlan) (model.ValidationReport, error)

	// ExecuteMigration starts an asynchronous batch migrating the given
	// instances under the plan.
	ExecuteMigration(ctx context.Context, rctx *model.RequestContext, plan MigrationPlan, instanceIDs []string, opts model.ExecutionOptions) (model.CommitResult, error)
}
