// Package status derives per-row display status, action availability, and
// pre-commit summary counts from planning state. Everything here is a pure
// function over immutable inputs.
package status

import (
	"github.com/sukanihq/sukani/internal/graph"
	"github.com/sukanihq/sukani/model"
)

// TokenSet is the set of activity IDs currently holding an active token,
// as reported by the engine.
type TokenSet map[string]bool

// NewTokenSet builds a TokenSet from a list of activity IDs.
func NewTokenSet(ids []string) TokenSet {
	s := make(TokenSet, len(ids))
	for _, id := range ids {
		s[id] = true
	}
	return s
}

// Classify assigns exactly one status to a mapping entry. The order of the
// checks is the precedence rule: exclusion beats everything, a missing
// effective target beats the manual/auto distinction, and an override only
// counts as manual when it actually differs from the suggestion.
func Classify(e model.MappingEntry) string {
	switch {
	case e.Excluded:
		return model.MappingStatusExcluded
	case e.EffectiveTarget() == "":
		return model.MappingStatusUnmapped
	case e.OverrideTargetID != "" && e.OverrideTargetID != e.BaseTargetID:
		return model.MappingStatusManual
	default:
		return model.MappingStatusAuto
	}
}

// ClassifyNode assigns the diagram status of one node in a modification
// session, derived from the staged plan and the node's live tokens. It uses
// the same closed status set as mapping rows so the console renders both
// with one legend: a staged cancel marks the node excluded, any other staged
// reference marks it manual, live tokens with nothing staged show auto, and
// an untouched node without tokens is unmapped.
func ClassifyNode(id string, ops []model.Operation, active TokenSet) string {
	staged := false
	for _, op := range ops {
		switch op.Kind {
		case model.OpCancel:
			if op.ActivityID == id {
				return model.MappingStatusExcluded
			}
		case model.OpMove:
			if op.FromActivityID == id || op.ToActivityID == id {
				staged = true
			}
		default:
			if op.ActivityID == id {
				staged = true
			}
		}
	}
	switch {
	case staged:
		return model.MappingStatusManual
	case active[id]:
		return model.MappingStatusAuto
	default:
		return model.MappingStatusUnmapped
	}
}

// HasActiveTokens reports whether any of the entry's source activities holds
// an active token. Gates which actions (cancel, move-from) the console
// offers for the row.
func HasActiveTokens(e model.MappingEntry, active TokenSet) bool {
	for _, id := range e.SourceActivityIDs {
		if active[id] {
			return true
		}
	}
	return false
}

// Filters are the visibility toggles of the instruction list. Active filters
// compose with logical AND. MappedOnly and UnmappedOnly are not mutually
// exclusive here: keeping both on simply yields an empty view; the transport
// layer clears one when the other is selected.
type Filters struct {
	ActiveOnly       bool `json:"active_only"`
	MappedOnly       bool `json:"mapped_only"`
	UnmappedOnly     bool `json:"unmapped_only"`
	IncompatibleOnly bool `json:"incompatible_only"`
}

// Visible reports whether an entry passes every active filter. Source and
// target graph indexes are needed only for the incompatible-targets filter
// and may be nil when it is off.
func (f Filters) Visible(e model.MappingEntry, active TokenSet, source, target *graph.Index) bool {
	if f.ActiveOnly && !HasActiveTokens(e, active) {
		return false
	}
	st := Classify(e)
	if f.MappedOnly && (st == model.MappingStatusUnmapped || st == model.MappingStatusExcluded) {
		return false
	}
	if f.UnmappedOnly && st != model.MappingStatusUnmapped {
		return false
	}
	if f.IncompatibleOnly && !Incompatible(e, source, target) {
		return false
	}
	return true
}

// Incompatible reports whether the entry's effective target exists but has
// a different node type than its primary source activity. Unmapped and
// excluded rows are never incompatible.
func Incompatible(e model.MappingEntry, source, target *graph.Index) bool {
	if e.Excluded || source == nil || target == nil {
		return false
	}
	tgt := e.EffectiveTarget()
	if tgt == "" || len(e.SourceActivityIDs) == 0 {
		return false
	}
	src, okSrc := source.Node(e.SourceActivityIDs[0])
	dst, okDst := target.Node(tgt)
	if !okSrc || !okDst {
		return false
	}
	return src.Type != dst.Type
}

// Summary holds the pre-commit counts shown in the confirmation dialog.
// Excluded rows never count as mapped or unmapped.
type Summary struct {
	VisibleMapped         int `json:"visible_mapped"`
	VisibleUnmapped       int `json:"visible_unmapped"`
	VisibleUnmappedActive int `json:"visible_unmapped_active"`
}

// Summarize computes the summary counts over the entries that pass the
// active filters.
func Summarize(entries []model.MappingEntry, f Filters, active TokenSet, source, target *graph.Index) Summary {
	var s Summary
	for _, e := range entries {
		if !f.Visible(e, active, source, target) {
			continue
		}
		switch Classify(e) {
		case model.MappingStatusUnmapped:
			s.VisibleUnmapped++
			if HasActiveTokens(e, active) {
				s.VisibleUnmappedActive++
			}
		case model.MappingStatusAuto, model.MappingStatusManual:
			s.VisibleMapped++
		}
	}
	return s
}
