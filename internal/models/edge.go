package models

// Relationship represents a typed, directed edge between two nodes.
type Relationship struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	StartNodeID string         `json:"start_node_id"`
	EndNodeID   string         `json:"end_node_id"`
	Properties  map[string]any `json:"properties"`
}

// Clone returns a copy of the relationship with its own property map.
func (r Relationship) Clone() Relationship {
	r.Properties = cloneProperties(r.Properties)
	return r
}

// Touches reports whether the relationship starts or ends at the given node.
func (r Relationship) Touches(nodeID string) bool {
	return r.StartNodeID == nodeID || r.EndNodeID == nodeID
}

// Other returns the endpoint opposite to nodeID.
func (r Relationship) Other(nodeID string) string {
	if r.StartNodeID == nodeID {
		return r.EndNodeID
	}
	return r.StartNodeID
}
