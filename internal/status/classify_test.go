package status

import (
	"testing"

	"github.com/sukanihq/sukani/internal/graph"
	"github.com/sukanihq/sukani/model"
)

func TestClassify_exhaustiveAndExclusive(t *testing.T) {
	tests := []struct {
		name  string
		entry model.MappingEntry
		want  string
	}{
		{"excluded beats everything", model.MappingEntry{BaseTargetID: "t", OverrideTargetID: "u", Excluded: true}, model.MappingStatusExcluded},
		{"no target at all", model.MappingEntry{}, model.MappingStatusUnmapped},
		{"engine suggestion", model.MappingEntry{BaseTargetID: "t"}, model.MappingStatusAuto},
		{"override differing from base", model.MappingEntry{BaseTargetID: "t", OverrideTargetID: "u"}, model.MappingStatusManual},
		{"override equal to base is auto", model.MappingEntry{BaseTargetID: "t", OverrideTargetID: "t"}, model.MappingStatusAuto},
		{"override with no base", model.MappingEntry{OverrideTargetID: "u"}, model.MappingStatusManual},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.entry); got != tt.want {
				t.Errorf("Classify() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClassifyNode(t *testing.T) {
	active := NewTokenSet([]string{"taskA", "taskB"})
	ops := []model.Operation{
		{Kind: model.OpCancel, ActivityID: "taskB"},
		{Kind: model.OpAddBefore, ActivityID: "taskC"},
		{Kind: model.OpMove, FromActivityID: "taskA", ToActivityID: "taskD"},
	}

	tests := []struct {
		name string
		id   string
		want string
	}{
		{"staged cancel wins", "taskB", model.MappingStatusExcluded},
		{"add target is manual", "taskC", model.MappingStatusManual},
		{"move origin is manual even with a token", "taskA", model.MappingStatusManual},
		{"move destination is manual", "taskD", model.MappingStatusManual},
		{"untouched without tokens", "taskE", model.MappingStatusUnmapped},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyNode(tt.id, ops, active); got != tt.want {
				t.Errorf("ClassifyNode(%q) = %q, want %q", tt.id, got, tt.want)
			}
		})
	}

	if got := ClassifyNode("taskA", nil, active); got != model.MappingStatusAuto {
		t.Errorf("token without staged ops = %q, want auto", got)
	}
}

func TestHasActiveTokens(t *testing.T) {
	active := NewTokenSet([]string{"taskA", "taskC"})
	e := model.MappingEntry{SourceActivityIDs: []string{"taskB", "taskC"}}
	if !HasActiveTokens(e, active) {
		t.Error("want true: taskC holds a token")
	}
	if HasActiveTokens(model.MappingEntry{SourceActivityIDs: []string{"taskB"}}, active) {
		t.Error("want false: no source holds a token")
	}
}

func TestFilters_composeWithAND(t *testing.T) {
	active := NewTokenSet([]string{"taskA"})
	mappedActive := model.MappingEntry{SourceActivityIDs: []string{"taskA"}, BaseTargetID: "t"}
	mappedIdle := model.MappingEntry{SourceActivityIDs: []string{"taskB"}, BaseTargetID: "t"}
	unmappedActive := model.MappingEntry{SourceActivityIDs: []string{"taskA"}}

	f := Filters{ActiveOnly: true, MappedOnly: true}
	if !f.Visible(mappedActive, active, nil, nil) {
		t.Error("mapped+active entry must pass both filters")
	}
	if f.Visible(mappedIdle, active, nil, nil) {
		t.Error("idle entry must fail active-only")
	}
	if f.Visible(unmappedActive, active, nil, nil) {
		t.Error("unmapped entry must fail mapped-only")
	}

	// Both exclusive filters on: nothing passes. The classifier does not
	// arbitrate; that is presentation policy.
	both := Filters{MappedOnly: true, UnmappedOnly: true}
	if both.Visible(mappedActive, active, nil, nil) || both.Visible(unmappedActive, active, nil, nil) {
		t.Error("mapped-only AND unmapped-only must yield an empty view")
	}
}

func TestFilters_excludedHiddenByEitherMappingFilter(t *testing.T) {
	excluded := model.MappingEntry{SourceActivityIDs: []string{"taskA"}, BaseTargetID: "t", Excluded: true}
	if (Filters{MappedOnly: true}).Visible(excluded, nil, nil, nil) {
		t.Error("excluded entry visible under mapped-only")
	}
	if (Filters{UnmappedOnly: true}).Visible(excluded, nil, nil, nil) {
		t.Error("excluded entry visible under unmapped-only")
	}
	// With no filters it stays visible (it still renders, as excluded).
	if !(Filters{}).Visible(excluded, nil, nil, nil) {
		t.Error("excluded entry must remain visible with no filters active")
	}
}

func TestIncompatible(t *testing.T) {
	source := graph.NewIndex([]model.ProcessNode{{ID: "s1", Name: "A", Type: "userTask"}})
	target := graph.NewIndex([]model.ProcessNode{
		{ID: "t1", Name: "A", Type: "userTask"},
		{ID: "t2", Name: "B", Type: "serviceTask"},
	})

	same := model.MappingEntry{SourceActivityIDs: []string{"s1"}, BaseTargetID: "t1"}
	diff := model.MappingEntry{SourceActivityIDs: []string{"s1"}, BaseTargetID: "t2"}
	unmapped := model.MappingEntry{SourceActivityIDs: []string{"s1"}}

	if Incompatible(same, source, target) {
		t.Error("same-type mapping flagged incompatible")
	}
	if !Incompatible(diff, source, target) {
		t.Error("cross-type mapping not flagged")
	}
	if Incompatible(unmapped, source, target) {
		t.Error("unmapped row can never be incompatible")
	}
}

func TestSummarize(t *testing.T) {
	active := NewTokenSet([]string{"taskA", "taskB"})
	entries := []model.MappingEntry{
		{SourceActivityIDs: []string{"taskA"}, BaseTargetID: "t1"},                 // mapped, active
		{SourceActivityIDs: []string{"taskB"}},                                     // unmapped, active
		{SourceActivityIDs: []string{"taskC"}},                                     // unmapped, idle
		{SourceActivityIDs: []string{"taskD"}, BaseTargetID: "t2", Excluded: true}, // excluded
	}

	s := Summarize(entries, Filters{}, active, nil, nil)
	if s.VisibleMapped != 1 {
		t.Errorf("VisibleMapped = %d, want 1", s.VisibleMapped)
	}
	if s.VisibleUnmapped != 2 {
		t.Errorf("VisibleUnmapped = %d, want 2", s.VisibleUnmapped)
	}
	if s.VisibleUnmappedActive != 1 {
		t.Errorf("VisibleUnmappedActive = %d, want 1", s.VisibleUnmappedActive)
	}

	// Excluded rows contribute to no count, under any filter combination.
	s = Summarize(entries, Filters{MappedOnly: true}, active, nil, nil)
	if s.VisibleMapped != 1 || s.VisibleUnmapped != 0 {
		t.Errorf("mapped-only summary = %+v", s)
	}
	s = Summarize(entries, Filters{UnmappedOnly: true}, active, nil, nil)
	if s.VisibleUnmapped != 2 || s.VisibleMapped != 0 {
		t.Errorf("unmapped-only summary = %+v", s)
	}
}
