package models

// Mode is the interaction mode of a canvas.
type Mode string

// Interaction modes.
const (
	ModeIdle           Mode = "idle"
	ModeSelected       Mode = "selected"
	ModeAwaitingTarget Mode = "awaiting_connection_target"
)

// StateSnapshot is a read-only copy of the interaction state pushed to the
// host after every transition.
type StateSnapshot struct {
	Mode             Mode  `json:"mode"`
	Selected         Item  `json:"selected"`
	Source           *Node `json:"source,omitempty"`
	ZoomInSaturated  bool  `json:"zoom_in_saturated"`
	ZoomOutSaturated bool  `json:"zoom_out_saturated"`
	CanAdd           bool  `json:"can_add"`
	CanDelete        bool  `json:"can_delete"`
	CanConnect       bool  `json:"can_connect"`
	CanEdit          bool  `json:"can_edit"`
}

// Equal reports whether two snapshots describe the same interaction state.
// Selections are compared by element identity.
func (s StateSnapshot) Equal(o StateSnapshot) bool {
	sourceID := func(n *Node) string {
		if n == nil {
			return ""
		}
		return n.ID
	}

	return s.Mode == o.Mode &&
		s.Selected.Refers(o.Selected) &&
		sourceID(s.Source) == sourceID(o.Source) &&
		s.ZoomInSaturated == o.ZoomInSaturated &&
		s.ZoomOutSaturated == o.ZoomOutSaturated &&
		s.CanAdd == o.CanAdd && s.CanDelete == o.CanDelete &&
		s.CanConnect == o.CanConnect && s.CanEdit == o.CanEdit
}
