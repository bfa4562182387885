package model

import "strings"

// ProcessNode is one node of a parsed process-definition graph. Nodes are
// immutable inputs to planning; identity is the ID, the display name may be
// absent.
type ProcessNode struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Type string `json:"type"`
}

// DisplayName returns the node's name, falling back to a humanized form of
// the ID when no name was authored (e.g. "approveInvoice_1" → "approve
// Invoice 1").
func (n ProcessNode) DisplayName() string {
	if strings.TrimSpace(n.Name) != "" {
		return n.Name
	}
	return humanize(n.ID)
}

// humanize splits a technical identifier into words: camelCase boundaries
// become spaces, underscores and dashes become spaces.
func humanize(id string) string {
	var b strings.Builder
	b.Grow(len(id) + 4)
	var prev rune
	for _, r := range id {
		switch {
		case r == '_' || r == '-':
			r = ' '
		case prev != 0 && prev != ' ' && isLower(prev) && isUpper(r):
			b.WriteByte(' ')
		}
		b.WriteRune(r)
		prev = r
	}
	return strings.TrimSpace(b.String())
}

func isLower(r rune) bool { return r >= 'a' && r <= 'z' }
func isUpper(r rune) bool { return r >= 'A' && r <= 'Z' }
