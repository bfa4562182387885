// Package session owns the lifecycle of planning sessions: creation,
// mutation, draft persistence, the single-in-flight commit gate, and idle
// expiry.
package session

import (
	"context"
	"time"

	"github.com/sukanihq/sukani/model"
)

// Draft is the persisted snapshot of a planning session. Everything the
// operator typed lives here; engine-derived state (graph indexes, active
// tokens) is re-fetched on resume.
type Draft struct {
	SessionID string `json:"session_id"`
	TenantID  string `json:"tenant_id"`
	SubjectID string `json:"subject_id"`
	Kind      string `json:"kind"`

	// Modification sessions.
	InstanceID   string            `json:"instance_id,omitempty"`
	DefinitionID string            `json:"definition_id,omitempty"`
	Operations   []model.Operation `json:"operations,omitempty"`

	// Migration sessions.
	SourceDefinitionID string               `json:"source_definition_id,omitempty"`
	TargetDefinitionID string               `json:"target_definition_id,omitempty"`
	Mapping            []model.MappingEntry `json:"mapping,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// DraftStore persists session drafts.
type DraftStore interface {
	// Save inserts or replaces a draft keyed by session ID.
	Save(ctx context.Context, draft Draft) error

	// Get retrieves a draft by session ID, scoped to a tenant. Returns
	// NOT_FOUND if the draft doesn't exist or belongs to a different tenant.
	Get(ctx context.Context, tenantID, sessionID string) (Draft, error)

	// Delete removes a draft. Deleting a missing draft is not an error.
	Delete(ctx context.Context, tenantID, sessionID string) error

	// DeleteExpired removes drafts not updated since the cutoff and returns
	// how many were removed.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int, error)
}
