// Package models defines data types for the graph canvas.
package models

import (
	"maps"
	"slices"
)

// Node represents a vertex on the canvas.
type Node struct {
	ID         string         `json:"id"`
	Labels     []string       `json:"labels"`
	Properties map[string]any `json:"properties"`
}

// Clone returns a deep-enough copy of the node: labels and the top-level
// property map are copied, property values are shared.
func (n Node) Clone() Node {
	return Node{
		ID:         n.ID,
		Labels:     slices.Clone(n.Labels),
		Properties: cloneProperties(n.Properties),
	}
}

// HasLabel reports whether the node carries the given label.
func (n Node) HasLabel(label string) bool {
	return slices.Contains(n.Labels, label)
}

// NormalizeLabels returns labels as a sorted set without duplicates or empty entries.
func NormalizeLabels(labels []string) []string {
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if l != "" {
			out = append(out, l)
		}
	}
	slices.Sort(out)

	return slices.Compact(out)
}

// ItemSpec describes the element a data collaborator is asked to create.
type ItemSpec struct {
	Type string `json:"type"`
}

// NodeItemSpec is the only creation request the canvas issues.
var NodeItemSpec = ItemSpec{Type: string(KindNode)}

func cloneProperties(p map[string]any) map[string]any {
	if p == nil {
		return map[string]any{}
	}

	return maps.Clone(p)
}
