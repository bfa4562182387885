// Package graph builds queryable indexes over parsed process-definition
// graphs and performs heuristic name matching between two graph versions.
package graph

import (
	"strings"

	"github.com/sukanihq/sukani/model"
)

// Index is a read-only lookup structure over one process graph. It is built
// once per graph and shared by planning sessions; it is never mutated after
// construction.
type Index struct {
	byID   map[string]model.ProcessNode
	byName map[string]string // normalized display name → first node ID
	order  []string          // node IDs in input order
}

// NewIndex builds an Index from a node list in O(n). Duplicate normalized
// names degrade gracefully: the first node with a given name wins, later
// ones are only reachable by ID.
func NewIndex(nodes []model.ProcessNode) *Index {
	idx := &Index{
		byID:   make(map[string]model.ProcessNode, len(nodes)),
		byName: make(map[string]string, len(nodes)),
		order:  make([]string, 0, len(nodes)),
	}
	for _, n := range nodes {
		if _, exists := idx.byID[n.ID]; exists {
			continue
		}
		idx.byID[n.ID] = n
		idx.order = append(idx.order, n.ID)

		key := Normalize(n.DisplayName())
		if key == "" {
			continue
		}
		if _, taken := idx.byName[key]; !taken {
			idx.byName[key] = n.ID
		}
	}
	return idx
}

// Node returns the node with the given ID.
func (idx *Index) Node(id string) (model.ProcessNode, bool) {
	n, ok := idx.byID[id]
	return n, ok
}

// Has reports whether a node with the given ID exists in the graph.
func (idx *Index) Has(id string) bool {
	_, ok := idx.byID[id]
	return ok
}

// Nodes returns all nodes in their original input order.
func (idx *Index) Nodes() []model.ProcessNode {
	out := make([]model.ProcessNode, 0, len(idx.order))
	for _, id := range idx.order {
		out = append(out, idx.byID[id])
	}
	return out
}

// Len returns the number of indexed nodes.
func (idx *Index) Len() int {
	return len(idx.byID)
}

// Match returns the ID of the node whose normalized display name equals the
// normalization of label, or "" when no such node exists. Pure lookup; the
// caller decides whether to accept the suggestion.
func (idx *Index) Match(label string) string {
	key := Normalize(label)
	if key == "" {
		return ""
	}
	return idx.byName[key]
}

// Normalize lowercases a display name and strips every character outside
// [a-z0-9]. Both index construction and matching use this rule, which makes
// matching case- and punctuation-insensitive.
func Normalize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
