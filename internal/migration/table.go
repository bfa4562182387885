// Package migration maintains the mapping table for one migration run and
// reconciles engine suggestions, heuristic name matches, and operator
// overrides into the effective mapping.
package migration

import (
	"github.com/sukanihq/sukani/internal/graph"
	"github.com/sukanihq/sukani/model"
)

// Table is the mapping table for one migration run: one row per planned
// instruction record, addressed by the row's first source activity ID. A
// Table is owned by exactly one planning session.
//
// Like the plan store, mutations against unknown row keys are silent no-ops:
// stale UI references must never corrupt the table.
type Table struct {
	rows  []model.MappingEntry
	index map[string]int // primary source activity ID → row position
}

// NewTable builds a table from the engine's default migration plan, then
// adds a bare row for every source node not covered by a suggestion so the
// operator sees unmapped activities instead of losing them.
func NewTable(suggestions []model.MigrationSuggestion, source *graph.Index) *Table {
	t := &Table{index: make(map[string]int)}

	for _, sug := range suggestions {
		if len(sug.SourceActivityIDs) == 0 {
			continue
		}
		t.appendRow(model.MappingEntry{
			SourceActivityIDs: append([]string(nil), sug.SourceActivityIDs...),
			BaseTargetID:      sug.TargetActivityID,
			TriggerOverride:   sug.UpdateEventTrigger,
		})
	}

	if source != nil {
		for _, n := range source.Nodes() {
			if t.covers(n.ID) {
				continue
			}
			t.appendRow(model.MappingEntry{SourceActivityIDs: []string{n.ID}})
		}
	}
	return t
}

// Restore rebuilds a table from previously persisted rows, for resuming a
// saved draft. Rows without source activity IDs are dropped.
func Restore(entries []model.MappingEntry) *Table {
	t := &Table{index: make(map[string]int)}
	for _, e := range entries {
		if len(e.SourceActivityIDs) == 0 {
			continue
		}
		e.SourceActivityIDs = append([]string(nil), e.SourceActivityIDs...)
		t.appendRow(e)
	}
	return t
}

// Entries returns a snapshot of the current rows. Later mutations of the
// table do not affect the returned slice.
func (t *Table) Entries() []model.MappingEntry {
	out := make([]model.MappingEntry, len(t.rows))
	copy(out, t.rows)
	return out
}

// Entry returns the row keyed by the given source activity ID.
func (t *Table) Entry(sourceID string) (model.MappingEntry, bool) {
	i, ok := t.index[sourceID]
	if !ok {
		return model.MappingEntry{}, false
	}
	return t.rows[i], true
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// SetOverride records a manual target choice for a row. Overrides are sticky:
// reconciliation never replaces them; only ClearOverride or another
// SetOverride does. Setting an override also un-excludes the row, since the
// operator has explicitly chosen a target for it.
func (t *Table) SetOverride(sourceID, targetID string) {
	i, ok := t.index[sourceID]
	if !ok || targetID == "" {
		return
	}
	t.rows[i].OverrideTargetID = targetID
	t.rows[i].Excluded = false
}

// ClearOverride removes a manual target choice, reverting the row to its
// base or heuristic suggestion.
func (t *Table) ClearOverride(sourceID string) {
	i, ok := t.index[sourceID]
	if !ok {
		return
	}
	t.rows[i].OverrideTargetID = ""
}

// SetExcluded marks or unmarks a row as excluded from compilation.
func (t *Table) SetExcluded(sourceID string, excluded bool) {
	i, ok := t.index[sourceID]
	if !ok {
		return
	}
	t.rows[i].Excluded = excluded
}

// SetTriggerOverride sets the update-event-trigger flag for a row. nil
// restores the engine default.
func (t *Table) SetTriggerOverride(sourceID string, value *bool) {
	i, ok := t.index[sourceID]
	if !ok {
		return
	}
	t.rows[i].TriggerOverride = value
}

// covers reports whether any existing row includes the given source activity.
func (t *Table) covers(sourceID string) bool {
	_, ok := t.index[sourceID]
	return ok
}

func (t *Table) appendRow(e model.MappingEntry) {
	pos := len(t.rows)
	t.rows = append(t.rows, e)
	for _, id := range e.SourceActivityIDs {
		if _, taken := t.index[id]; !taken {
			t.index[id] = pos
		}
	}
}
