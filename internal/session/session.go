package session

import (
	"time"

	"github.com/sukanihq/sukani/internal/graph"
	"github.com/sukanihq/sukani/internal/migration"
	"github.com/sukanihq/sukani/internal/plan"
)

// Session kinds.
const (
	KindModification = "modification"
	KindMigration    = "migration"
)

// Session is one operator's planning state for a single instance
// modification or a single migration run. A session is exclusively owned by
// the operator who created it; the manager serializes all access, so the
// contained plan store and mapping table never see concurrent mutation.
type Session struct {
	ID        string
	TenantID  string
	SubjectID string
	Kind      string

	// ActiveIDs holds the activity IDs with live tokens: the instance's own
	// tokens for a modification, tokens aggregated across all running
	// instances of the source definition for a migration. Engine-derived,
	// re-fetched on resume.
	ActiveIDs []string

	// Modification sessions.
	InstanceID   string
	DefinitionID string
	Plan         *plan.Store
	Graph        *graph.Index

	// Migration sessions.
	SourceDefinitionID string
	TargetDefinitionID string
	Mapping            *migration.Table
	SourceGraph        *graph.Index
	TargetGraph        *graph.Index

	CreatedAt  time.Time
	LastAccess time.Time

	// commitInFlight gates validate/execute: at most one outstanding remote
	// commit call per session. Plan edits stay allowed while it is set.
	commitInFlight bool
}

// snapshot builds the persistable draft for this session. Must be called
// with the session held by the manager.
func (s *Session) snapshot() Draft {
	d := Draft{
		SessionID: s.ID,
		TenantID:  s.TenantID,
		SubjectID: s.SubjectID,
		Kind:      s.Kind,
		UpdatedAt: time.Now().UTC(),
	}
	switch s.Kind {
	case KindModification:
		d.InstanceID = s.InstanceID
		d.DefinitionID = s.DefinitionID
		d.Operations = s.Plan.Operations()
	case KindMigration:
		d.SourceDefinitionID = s.SourceDefinitionID
		d.TargetDefinitionID = s.TargetDefinitionID
		d.Mapping = s.Mapping.Entries()
	}
	return d
}
