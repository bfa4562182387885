package session

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/sukanihq/sukani/internal/compiler"
	"github.com/sukanihq/sukani/internal/engine"
	"github.com/sukanihq/sukani/model"
)

// compiled is the payload prepared under the manager lock and shipped to
// the engine outside of it.
type compiled struct {
	kind        string
	instanceID  string
	set         model.InstructionSet
	plan        engine.MigrationPlan
	instanceIDs []string
	options     model.ExecutionOptions
}

func isSessionNotFound(err error) bool {
	var ee *model.ErrorEnvelope
	return errors.As(err, &ee) && ee.Code == model.ErrSessionNotFound
}

// beginCommit compiles the session's current plan and arms the commit gate.
// At most one validate or execute call may be outstanding per session.
func (m *Manager) beginCommit(rctx *model.RequestContext, sessionID string, opts model.ExecutionOptions, instanceIDs []string) (compiled, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, err := m.lookup(rctx, sessionID)
	if err != nil {
		return compiled{}, err
	}
	if sess.commitInFlight {
		return compiled{}, model.NewCommitInFlightError()
	}

	c := compiled{kind: sess.Kind, options: opts}
	switch sess.Kind {
	case KindModification:
		c.instanceID = sess.InstanceID
		c.set = compiler.CompilePlan(sess.Plan.Operations(), opts)
	case KindMigration:
		c.plan = engine.MigrationPlan{
			SourceProcessDefinitionID: sess.SourceDefinitionID,
			TargetProcessDefinitionID: sess.TargetDefinitionID,
			Instructions:              compiler.CompileMapping(sess.Mapping.Entries()),
		}
		c.instanceIDs = instanceIDs
	}

	sess.commitInFlight = true
	return c, nil
}

func (m *Manager) endCommit(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[sessionID]; ok {
		sess.commitInFlight = false
	}
}

// Validate compiles the session's plan and dry-runs it against the engine.
// Validation findings come back in the report; only transport-level
// problems surface as errors. The plan is never modified.
func (m *Manager) Validate(ctx context.Context, rctx *model.RequestContext, sessionID string, opts model.ExecutionOptions, instanceIDs []string) (model.ValidationReport, error) {
	c, err := m.beginCommit(rctx, sessionID, opts, instanceIDs)
	if err != nil {
		return model.ValidationReport{}, err
	}
	defer m.endCommit(sessionID)

	if err := m.saver.Flush(ctx, sessionID); err != nil {
		m.log.Warn("draft flush before validate failed",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}

	start := time.Now()
	var report model.ValidationReport
	switch c.kind {
	case KindModification:
		report, err = m.gateway.ValidateModification(ctx, rctx, c.instanceID, c.set)
	default:
		report, err = m.gateway.ValidateMigration(ctx, rctx, c.plan)
	}
	if m.metrics != nil {
		m.metrics.RecordValidation(c.kind, validationOutcome(report, err), time.Since(start))
	}
	return report, err
}

// validationOutcome labels a validate round trip: transport failures are
// errors, engine findings with failures count as findings, everything else
// is clean.
func validationOutcome(report model.ValidationReport, err error) string {
	if err != nil {
		return "error"
	}
	for _, ir := range report.InstructionReports {
		if len(ir.Failures) > 0 {
			return "findings"
		}
	}
	return "clean"
}

// Execute compiles the session's plan and applies it. A failed execute
// leaves the session and its draft untouched so the operator can edit and
// retry; a successful one discards both. When an idempotency key is given,
// a replay with the same compiled plan returns the original result and a
// replay with a different plan is rejected as a conflict.
func (m *Manager) Execute(ctx context.Context, rctx *model.RequestContext, sessionID string, opts model.ExecutionOptions, instanceIDs []string, idempotencyKey string) (model.CommitResult, error) {
	c, err := m.beginCommit(rctx, sessionID, opts, instanceIDs)
	if err != nil {
		// A success discards the session, so a keyed retry of an already
		// applied commit arrives at a closed session. Replay it from the
		// commit store instead of reporting the session missing.
		if idempotencyKey != "" && isSessionNotFound(err) {
			cached, found, gerr := m.commits.Get(ctx, FormatCommitKey(sessionID, idempotencyKey))
			if gerr == nil && found {
				if m.metrics != nil {
					m.metrics.RecordCommitReplay()
				}
				m.log.Info("execute replayed after session close",
					zap.String("session_id", sessionID),
				)
				return *cached, nil
			}
		}
		return model.CommitResult{}, err
	}
	defer m.endCommit(sessionID)

	var commitKey, planHash string
	if idempotencyKey != "" {
		planHash, err = HashPlan(struct {
			Kind        string                 `json:"kind"`
			InstanceID  string                 `json:"instance_id,omitempty"`
			Set         model.InstructionSet   `json:"set,omitempty"`
			Plan        engine.MigrationPlan   `json:"plan,omitempty"`
			InstanceIDs []string               `json:"instance_ids,omitempty"`
			Options     model.ExecutionOptions `json:"options"`
		}{c.kind, c.instanceID, c.set, c.plan, c.instanceIDs, c.options})
		if err != nil {
			return model.CommitResult{}, err
		}
		commitKey = FormatCommitKey(sessionID, idempotencyKey)

		cached, found, err := m.commits.Check(ctx, commitKey, planHash)
		if err != nil {
			return model.CommitResult{}, err
		}
		if found {
			if m.metrics != nil {
				m.metrics.RecordCommitReplay()
			}
			m.log.Info("execute replayed from idempotency store",
				zap.String("session_id", sessionID),
			)
			return *cached, nil
		}
	}

	if err := m.saver.Flush(ctx, sessionID); err != nil {
		m.log.Warn("draft flush before execute failed",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}

	instructions := len(c.set.Instructions)
	if c.kind == KindMigration {
		instructions = len(c.plan.Instructions)
	}

	start := time.Now()
	var result model.CommitResult
	switch c.kind {
	case KindModification:
		result, err = m.gateway.ExecuteModification(ctx, rctx, c.instanceID, c.set)
	default:
		result, err = m.gateway.ExecuteMigration(ctx, rctx, c.plan, c.instanceIDs, c.options)
	}
	if m.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		m.metrics.RecordExecution(c.kind, status, time.Since(start), instructions)
	}
	if err != nil {
		// The plan stays intact: the operator edits or retries.
		return model.CommitResult{}, err
	}

	if commitKey != "" {
		if serr := m.commits.Store(ctx, commitKey, planHash, result, m.commitTTL); serr != nil {
			m.log.Warn("failed to record commit result",
				zap.String("session_id", sessionID),
				zap.Error(serr),
			)
		}
	}

	if derr := m.Discard(ctx, rctx, sessionID); derr != nil {
		m.log.Warn("failed to discard session after execute",
			zap.String("session_id", sessionID),
			zap.Error(derr),
		)
	}

	m.log.Info("plan executed",
		zap.String("session_id", sessionID),
		zap.String("kind", c.kind),
		zap.String("batch_id", result.BatchID),
		zap.String("instance_id", result.InstanceID),
	)
	return result, nil
}
