package collab

import "time"

// Node is a Persistor knowledge graph node.
type Node struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Label      string         `json:"label"`
	Properties map[string]any `json:"properties"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Edge is a Persistor edge. Edges have no id of their own; they are keyed
// by source, target and relation.
type Edge struct {
	Source     string         `json:"source"`
	Target     string         `json:"target"`
	Relation   string         `json:"relation"`
	Properties map[string]any `json:"properties"`
	Weight     float64        `json:"weight"`
}

// Key returns the composite key of the edge.
func (e Edge) Key() EdgeKey {
	return EdgeKey{Source: e.Source, Target: e.Target, Relation: e.Relation}
}

// EdgeKey identifies an edge on the server.
type EdgeKey struct {
	Source   string
	Target   string
	Relation string
}

// CreateNodeRequest is the payload for creating a node.
type CreateNodeRequest struct {
	ID         string         `json:"id,omitempty"`
	Type       string         `json:"type"`
	Label      string         `json:"label"`
	Properties map[string]any `json:"properties,omitempty"`
}

// CreateEdgeRequest is the payload for creating an edge.
type CreateEdgeRequest struct {
	Source     string         `json:"source"`
	Target     string         `json:"target"`
	Relation   string         `json:"relation"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Subgraph is returned by the neighbour and traversal endpoints.
type Subgraph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}
