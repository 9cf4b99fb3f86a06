package models

// PartialGraph is a small node/relationship set returned by a mutation request.
// It is merged into the canvas graph once and then discarded.
type PartialGraph struct {
	Nodes         []Node         `json:"nodes"`
	Relationships []Relationship `json:"relationships"`
}

// Empty reports whether the partial graph carries nothing to merge.
func (pg *PartialGraph) Empty() bool {
	return pg == nil || (len(pg.Nodes) == 0 && len(pg.Relationships) == 0)
}

// Stats summarises the current graph for the host.
type Stats struct {
	NodeCount         int      `json:"node_count"`
	RelationshipCount int      `json:"relationship_count"`
	Labels            []string `json:"labels"`
	RelationshipTypes []string `json:"relationship_types"`
}

// EntityUpdate replaces the properties of one node or relationship.
type EntityUpdate struct {
	ID         string         `json:"id"`
	Properties map[string]any `json:"properties"`
}

// GraphUpdate is an externally pushed property delta. It never changes
// identity or topology.
type GraphUpdate struct {
	Nodes         []EntityUpdate `json:"nodes,omitempty"`
	Relationships []EntityUpdate `json:"relationships,omitempty"`
}

// Empty reports whether the update carries no entity changes.
func (u GraphUpdate) Empty() bool {
	return len(u.Nodes) == 0 && len(u.Relationships) == 0
}

// ZoomLimits is returned by the layout engine after each zoom step.
type ZoomLimits struct {
	ZoomInLimit  bool `json:"zoom_in_limit"`
	ZoomOutLimit bool `json:"zoom_out_limit"`
}

// Size is a measured drawing surface size in pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Style is the theme descriptor handed to the layout engine. The canvas does
// not interpret it.
type Style map[string]any
