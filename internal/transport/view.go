package transport

import (
	"time"

	"github.com/sukanihq/sukani/internal/session"
	"github.com/sukanihq/sukani/internal/status"
	"github.com/sukanihq/sukani/model"
)

// sessionView is the JSON projection of a planning session returned by all
// session and plan-mutation endpoints. Stale-reference mutations respond
// with the unchanged view rather than an error.
type sessionView struct {
	SessionID string    `json:"session_id"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"created_at"`

	// Modification sessions.
	InstanceID        string              `json:"instance_id,omitempty"`
	DefinitionID      string              `json:"definition_id,omitempty"`
	Nodes             []model.ProcessNode `json:"nodes,omitempty"`
	ActiveActivityIDs []string            `json:"active_activity_ids,omitempty"`
	Operations        []model.Operation   `json:"operations,omitempty"`
	PendingMoveSource string              `json:"pending_move_source,omitempty"`
	NodeStatuses      map[string]string   `json:"node_statuses,omitempty"`

	// Migration sessions.
	SourceDefinitionID string       `json:"source_definition_id,omitempty"`
	TargetDefinitionID string       `json:"target_definition_id,omitempty"`
	Mapping            []mappingRow `json:"mapping,omitempty"`
}

// mappingRow is one migration mapping entry together with its derived
// display state.
type mappingRow struct {
	model.MappingEntry
	Status            string `json:"status"`
	EffectiveTargetID string `json:"effective_target_id,omitempty"`
	HasActiveTokens   bool   `json:"has_active_tokens"`
	Incompatible      bool   `json:"incompatible"`
}

// newSessionView builds the response projection for a session. Must be
// called inside a manager Read or Mutate closure so the session is held.
func newSessionView(s *session.Session) sessionView {
	v := sessionView{
		SessionID: s.ID,
		Kind:      s.Kind,
		CreatedAt: s.CreatedAt,
	}
	switch s.Kind {
	case session.KindModification:
		v.InstanceID = s.InstanceID
		v.DefinitionID = s.DefinitionID
		v.Nodes = s.Graph.Nodes()
		v.ActiveActivityIDs = s.ActiveIDs
		v.Operations = s.Plan.Operations()
		v.PendingMoveSource = s.Plan.PendingMoveSource()
		v.NodeStatuses = nodeStatuses(s)
	case session.KindMigration:
		v.SourceDefinitionID = s.SourceDefinitionID
		v.TargetDefinitionID = s.TargetDefinitionID
		v.Mapping = mappingRows(s, status.Filters{})
	}
	return v
}

// nodeStatuses derives the per-node badge status for every node of a
// modification session's graph.
func nodeStatuses(s *session.Session) map[string]string {
	active := status.NewTokenSet(s.ActiveIDs)
	ops := s.Plan.Operations()
	nodes := s.Graph.Nodes()
	out := make(map[string]string, len(nodes))
	for _, n := range nodes {
		out[n.ID] = status.ClassifyNode(n.ID, ops, active)
	}
	return out
}

// mappingRows projects the session's mapping table through the given
// visibility filters.
func mappingRows(s *session.Session, f status.Filters) []mappingRow {
	active := status.NewTokenSet(s.ActiveIDs)
	entries := s.Mapping.Entries()
	rows := make([]mappingRow, 0, len(entries))
	for _, e := range entries {
		if !f.Visible(e, active, s.SourceGraph, s.TargetGraph) {
			continue
		}
		rows = append(rows, mappingRow{
			MappingEntry:      e,
			Status:            status.Classify(e),
			EffectiveTargetID: e.EffectiveTarget(),
			HasActiveTokens:   status.HasActiveTokens(e, active),
			Incompatible:      status.Incompatible(e, s.SourceGraph, s.TargetGraph),
		})
	}
	return rows
}
