package migration

import (
	"github.com/sukanihq/sukani/internal/graph"
	"github.com/sukanihq/sukani/model"
)

// Reconcile fills heuristic target suggestions into every eligible row of
// the table: rows that have no suggested target yet, no manual override, and
// are not excluded. The source node's display name is matched against the
// target graph's normalized-name index; a hit is recorded as the row's base
// target, so it classifies as Auto rather than Manual.
//
// Reconcile is safe to re-run at any time (target graph reloads, filter
// toggles): overrides and exclusions are sticky and are never touched, and a
// row that already has a base target keeps it.
func Reconcile(t *Table, source, target *graph.Index) {
	if t == nil || source == nil || target == nil {
		return
	}
	for i := range t.rows {
		autoMapRow(&t.rows[i], source, target)
	}
}

// AutoMap applies the heuristic to a single row, keyed by source activity
// ID. Same rule as Reconcile at row granularity.
func (t *Table) AutoMap(sourceID string, source, target *graph.Index) {
	i, ok := t.index[sourceID]
	if !ok || source == nil || target == nil {
		return
	}
	autoMapRow(&t.rows[i], source, target)
}

// AutoMapAll applies the heuristic to every currently-unsuggested row.
// Identical to Reconcile; exposed under the name the console action uses.
func (t *Table) AutoMapAll(source, target *graph.Index) {
	Reconcile(t, source, target)
}

func autoMapRow(row *model.MappingEntry, source, target *graph.Index) {
	if row.Excluded || row.OverrideTargetID != "" || row.BaseTargetID != "" {
		return
	}
	if len(row.SourceActivityIDs) == 0 {
		return
	}
	node, ok := source.Node(row.SourceActivityIDs[0])
	if !ok {
		return
	}
	if match := target.Match(node.DisplayName()); match != "" {
		row.BaseTargetID = match
	}
}
