package graph

import (
	"testing"

	"github.com/sukanihq/sukani/model"
)

func testNodes() []model.ProcessNode {
	return []model.ProcessNode{
		{ID: "taskA", Name: "Approve Invoice", Type: "userTask"},
		{ID: "taskB", Name: "Review", Type: "userTask"},
		{ID: "gw1", Name: "", Type: "exclusiveGateway"},
		{ID: "taskC", Name: "approve invoice", Type: "serviceTask"}, // duplicate normalized name
	}
}

func TestNewIndex_firstWins(t *testing.T) {
	idx := NewIndex(testNodes())

	if idx.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", idx.Len())
	}
	// "Approve Invoice" and "approve invoice" normalize identically; taskA
	// was indexed first.
	if got := idx.Match("Approve Invoice"); got != "taskA" {
		t.Errorf("Match(Approve Invoice) = %q, want taskA", got)
	}
}

func TestIndex_Match_normalization(t *testing.T) {
	idx := NewIndex(testNodes())

	tests := []struct {
		label string
		want  string
	}{
		{"Review", "taskB"},
		{"review", "taskB"},
		{"  Re-View!  ", "taskB"},
		{"Approve Invoice!", "taskA"},
		{"approve invoice", "taskA"},
		{"unknown label", ""},
		{"", ""},
		{"!!!", ""},
	}
	for _, tt := range tests {
		if got := idx.Match(tt.label); got != tt.want {
			t.Errorf("Match(%q) = %q, want %q", tt.label, got, tt.want)
		}
	}
}

func TestIndex_blankName_fallsBackToID(t *testing.T) {
	idx := NewIndex(testNodes())

	// gw1 has no name; its humanized ID is indexed instead.
	if got := idx.Match("gw 1"); got != "gw1" {
		t.Errorf("Match(gw 1) = %q, want gw1", got)
	}
}

func TestIndex_Nodes_preservesOrder(t *testing.T) {
	idx := NewIndex(testNodes())
	nodes := idx.Nodes()
	if len(nodes) != 4 {
		t.Fatalf("Nodes() length = %d, want 4", len(nodes))
	}
	wantOrder := []string{"taskA", "taskB", "gw1", "taskC"}
	for i, id := range wantOrder {
		if nodes[i].ID != id {
			t.Errorf("Nodes()[%d].ID = %q, want %q", i, nodes[i].ID, id)
		}
	}
}

func TestIndex_duplicateIDs_firstWins(t *testing.T) {
	idx := NewIndex([]model.ProcessNode{
		{ID: "taskA", Name: "First", Type: "userTask"},
		{ID: "taskA", Name: "Second", Type: "userTask"},
	})
	if idx.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", idx.Len())
	}
	n, ok := idx.Node("taskA")
	if !ok || n.Name != "First" {
		t.Errorf("Node(taskA) = %+v, want the first registration", n)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Approve Invoice!", "approveinvoice"},
		{"REVIEW", "review"},
		{"task 42", "task42"},
		{"---", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
