package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sukanihq/sukani/internal/engine"
	"github.com/sukanihq/sukani/internal/graph"
	"github.com/sukanihq/sukani/internal/migration"
	"github.com/sukanihq/sukani/internal/observability"
	"github.com/sukanihq/sukani/internal/plan"
	"github.com/sukanihq/sukani/model"
)

const (
	defaultIdleTTL   = 30 * time.Minute
	defaultCommitTTL = 24 * time.Hour
	sweepInterval    = time.Minute
)

// Manager owns all live planning sessions. It serializes session access
// under one mutex: sessions are operator-interactive and every mutation is
// an in-memory list edit, so contention is not a concern. Remote engine
// calls happen outside the lock, guarded per session by the commit gate.
type Manager struct {
	gateway engine.Gateway
	drafts  DraftStore
	commits CommitStore
	saver   *Autosaver
	log     *zap.Logger
	metrics *observability.Metrics

	idleTTL   time.Duration
	commitTTL time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a session manager.
func NewManager(gw engine.Gateway, drafts DraftStore, commits CommitStore, saver *Autosaver, idleTTL time.Duration, log *zap.Logger) *Manager {
	if idleTTL <= 0 {
		idleTTL = defaultIdleTTL
	}
	return &Manager{
		gateway:   gw,
		drafts:    drafts,
		commits:   commits,
		saver:     saver,
		log:       log,
		idleTTL:   idleTTL,
		commitTTL: defaultCommitTTL,
		sessions:  make(map[string]*Session, 16),
	}
}

// SetMetrics attaches the metrics recorder. Optional; a nil recorder means
// no instrumentation, which is what every test wants.
func (m *Manager) SetMetrics(mx *observability.Metrics) {
	m.metrics = mx
}

// CreateModification starts a planning session for one running instance:
// it loads the definition's graph and the instance's active tokens, then
// opens an empty plan.
func (m *Manager) CreateModification(ctx context.Context, rctx *model.RequestContext, instanceID, definitionID string) (*Session, error) {
	nodes, err := m.gateway.ProcessNodes(ctx, rctx, definitionID)
	if err != nil {
		return nil, err
	}
	activeIDs, err := m.gateway.ActiveActivityIDs(ctx, rctx, instanceID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	sess := &Session{
		ID:           uuid.NewString(),
		TenantID:     rctx.TenantID,
		SubjectID:    rctx.SubjectID,
		Kind:         KindModification,
		InstanceID:   instanceID,
		DefinitionID: definitionID,
		Plan:         plan.NewStore(),
		Graph:        graph.NewIndex(nodes),
		ActiveIDs:    activeIDs,
		CreatedAt:    now,
		LastAccess:   now,
	}

	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.RecordSessionCreated(sess.Kind)
	}
	m.log.Info("modification session created",
		zap.String("session_id", sess.ID),
		zap.String("tenant_id", sess.TenantID),
		zap.String("instance_id", instanceID),
	)
	return sess, nil
}

// CreateMigration starts a planning session for migrating instances between
// two definition versions: it loads both graphs, asks the engine for its
// default mapping, and reconciles name-match fills on top.
func (m *Manager) CreateMigration(ctx context.Context, rctx *model.RequestContext, sourceDefID, targetDefID string, updateEventTriggers bool) (*Session, error) {
	sourceNodes, err := m.gateway.ProcessNodes(ctx, rctx, sourceDefID)
	if err != nil {
		return nil, err
	}
	targetNodes, err := m.gateway.ProcessNodes(ctx, rctx, targetDefID)
	if err != nil {
		return nil, err
	}
	suggestions, err := m.gateway.GenerateMappings(ctx, rctx, sourceDefID, targetDefID, updateEventTriggers)
	if err != nil {
		return nil, err
	}
	activeIDs, err := m.gateway.DefinitionActiveActivityIDs(ctx, rctx, sourceDefID)
	if err != nil {
		return nil, err
	}

	source := graph.NewIndex(sourceNodes)
	target := graph.NewIndex(targetNodes)
	table := migration.NewTable(suggestions, source)
	migration.Reconcile(table, source, target)

	now := time.Now().UTC()
	sess := &Session{
		ID:                 uuid.NewString(),
		TenantID:           rctx.TenantID,
		SubjectID:          rctx.SubjectID,
		Kind:               KindMigration,
		SourceDefinitionID: sourceDefID,
		TargetDefinitionID: targetDefID,
		Mapping:            table,
		SourceGraph:        source,
		TargetGraph:        target,
		ActiveIDs:          activeIDs,
		CreatedAt:          now,
		LastAccess:         now,
	}

	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.RecordSessionCreated(sess.Kind)
	}
	m.log.Info("migration session created",
		zap.String("session_id", sess.ID),
		zap.String("tenant_id", sess.TenantID),
		zap.String("source_definition_id", sourceDefID),
		zap.String("target_definition_id", targetDefID),
	)
	return sess, nil
}

// Resume returns a live session, falling back to rehydrating it from its
// persisted draft. Operator-entered state comes from the draft; graph and
// token state is re-fetched from the engine.
func (m *Manager) Resume(ctx context.Context, rctx *model.RequestContext, sessionID string) (*Session, error) {
	m.mu.Lock()
	sess, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if ok {
		if sess.TenantID != rctx.TenantID {
			return nil, model.NewSessionNotFoundError(sessionID)
		}
		return sess, nil
	}

	draft, err := m.drafts.Get(ctx, rctx.TenantID, sessionID)
	if err != nil {
		var env *model.ErrorEnvelope
		if errors.As(err, &env) && env.Code == model.ErrNotFound {
			return nil, model.NewSessionNotFoundError(sessionID)
		}
		return nil, err
	}
	return m.rehydrate(ctx, rctx, draft)
}

func (m *Manager) rehydrate(ctx context.Context, rctx *model.RequestContext, draft Draft) (*Session, error) {
	now := time.Now().UTC()
	sess := &Session{
		ID:         draft.SessionID,
		TenantID:   draft.TenantID,
		SubjectID:  draft.SubjectID,
		Kind:       draft.Kind,
		CreatedAt:  now,
		LastAccess: now,
	}

	switch draft.Kind {
	case KindModification:
		nodes, err := m.gateway.ProcessNodes(ctx, rctx, draft.DefinitionID)
		if err != nil {
			return nil, err
		}
		activeIDs, err := m.gateway.ActiveActivityIDs(ctx, rctx, draft.InstanceID)
		if err != nil {
			return nil, err
		}
		sess.InstanceID = draft.InstanceID
		sess.DefinitionID = draft.DefinitionID
		sess.Plan = plan.Restore(draft.Operations)
		sess.Graph = graph.NewIndex(nodes)
		sess.ActiveIDs = activeIDs

	case KindMigration:
		sourceNodes, err := m.gateway.ProcessNodes(ctx, rctx, draft.SourceDefinitionID)
		if err != nil {
			return nil, err
		}
		targetNodes, err := m.gateway.ProcessNodes(ctx, rctx, draft.TargetDefinitionID)
		if err != nil {
			return nil, err
		}
		activeIDs, err := m.gateway.DefinitionActiveActivityIDs(ctx, rctx, draft.SourceDefinitionID)
		if err != nil {
			return nil, err
		}
		sess.SourceDefinitionID = draft.SourceDefinitionID
		sess.TargetDefinitionID = draft.TargetDefinitionID
		sess.SourceGraph = graph.NewIndex(sourceNodes)
		sess.TargetGraph = graph.NewIndex(targetNodes)
		sess.Mapping = migration.Restore(draft.Mapping)
		sess.ActiveIDs = activeIDs
		migration.Reconcile(sess.Mapping, sess.SourceGraph, sess.TargetGraph)

	default:
		return nil, fmt.Errorf("session: unknown draft kind %q", draft.Kind)
	}

	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.RecordSessionResumed(sess.Kind)
	}
	m.log.Info("session rehydrated from draft",
		zap.String("session_id", sess.ID),
		zap.String("kind", sess.Kind),
	)
	return sess, nil
}

// Mutate runs fn against a session under the manager lock, then schedules a
// debounced draft save reflecting the mutation. The mutation name labels the
// edit in metrics. A session swept from memory whose draft survived is
// rehydrated first, so edits never require a prior GET. Plan edits stay
// allowed while a validate or execute call is in flight; only commits are
// gated.
func (m *Manager) Mutate(ctx context.Context, rctx *model.RequestContext, sessionID, mutation string, fn func(*Session) error) error {
	err := m.mutateLive(rctx, sessionID, mutation, fn)
	if err == nil || !isSessionNotFound(err) {
		return err
	}
	if _, rerr := m.Resume(ctx, rctx, sessionID); rerr != nil {
		return rerr
	}
	return m.mutateLive(rctx, sessionID, mutation, fn)
}

func (m *Manager) mutateLive(rctx *model.RequestContext, sessionID, mutation string, fn func(*Session) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, err := m.lookup(rctx, sessionID)
	if err != nil {
		return err
	}
	if err := fn(sess); err != nil {
		return err
	}
	sess.LastAccess = time.Now().UTC()
	if m.metrics != nil {
		m.metrics.RecordPlanMutation(sess.Kind, mutation)
	}
	m.saver.Schedule(sess.snapshot())
	return nil
}

// Read runs fn against a session under the manager lock without scheduling
// a save. Like Mutate, it rehydrates a swept session from its draft.
func (m *Manager) Read(ctx context.Context, rctx *model.RequestContext, sessionID string, fn func(*Session) error) error {
	err := m.readLive(rctx, sessionID, fn)
	if err == nil || !isSessionNotFound(err) {
		return err
	}
	if _, rerr := m.Resume(ctx, rctx, sessionID); rerr != nil {
		return rerr
	}
	return m.readLive(rctx, sessionID, fn)
}

func (m *Manager) readLive(rctx *model.RequestContext, sessionID string, fn func(*Session) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, err := m.lookup(rctx, sessionID)
	if err != nil {
		return err
	}
	sess.LastAccess = time.Now().UTC()
	return fn(sess)
}

// Discard drops a session and its persisted draft.
func (m *Manager) Discard(ctx context.Context, rctx *model.RequestContext, sessionID string) error {
	m.mu.Lock()
	sess, err := m.lookup(rctx, sessionID)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	m.saver.Cancel(sessionID)
	if m.metrics != nil {
		m.metrics.RecordSessionClosed(sess.Kind)
	}
	if err := m.drafts.Delete(ctx, rctx.TenantID, sessionID); err != nil {
		m.log.Warn("failed to delete draft on discard",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}
	m.log.Info("session discarded",
		zap.String("session_id", sessionID),
		zap.String("kind", sess.Kind),
	)
	return nil
}

// Run sweeps idle sessions until the context is cancelled. Expired sessions
// are dropped from memory and their drafts removed.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

func (m *Manager) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-m.idleTTL)

	m.mu.Lock()
	expired := make(map[string]string)
	for id, sess := range m.sessions {
		if sess.commitInFlight {
			continue
		}
		if sess.LastAccess.Before(cutoff) {
			expired[id] = sess.Kind
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for id, kind := range expired {
		m.saver.Cancel(id)
		if m.metrics != nil {
			m.metrics.RecordSessionExpired(kind)
		}
	}
	if len(expired) > 0 {
		m.log.Info("expired idle sessions", zap.Int("count", len(expired)))
	}

	removed, err := m.drafts.DeleteExpired(ctx, cutoff.Add(-m.idleTTL))
	if err != nil {
		m.log.Warn("draft expiry sweep failed", zap.Error(err))
		return
	}
	if removed > 0 {
		m.log.Info("expired stale drafts", zap.Int("count", removed))
	}
}

// lookup must be called with the manager lock held.
func (m *Manager) lookup(rctx *model.RequestContext, sessionID string) (*Session, error) {
	sess, ok := m.sessions[sessionID]
	if !ok || sess.TenantID != rctx.TenantID {
		return nil, model.NewSessionNotFoundError(sessionID)
	}
	return sess, nil
}
