// Package interaction implements the canvas selection state machine.
//
// The machine has three modes: idle, an item selected, and awaiting the
// target of a connection whose source node is already chosen. Transitions are
// synchronous and pure; the caller dispatches any resulting request.
package interaction

import (
	"fmt"

	"github.com/persistorai/canvas/internal/models"
)

// ConnectRequest is produced when a target is selected while awaiting a
// connection. Both endpoints are snapshots taken at selection time.
type ConnectRequest struct {
	Source models.Node
	Target models.Node
}

// State is the interaction state of one canvas.
type State struct {
	selected models.Item
	source   *models.Node

	zoomInSaturated  bool
	zoomOutSaturated bool
	pendingResize    bool
}

// New returns a State with mount defaults.
func New() *State {
	s := &State{}
	s.Reset()
	return s
}

// Reset restores mount defaults. The layout engine starts at its maximum
// scale, so zooming in is saturated until the first zoom out.
func (s *State) Reset() {
	s.selected = models.Item{}
	s.source = nil
	s.zoomInSaturated = true
	s.zoomOutSaturated = false
	s.pendingResize = false
}

// Mode returns the current interaction mode.
func (s *State) Mode() models.Mode {
	switch {
	case s.source != nil:
		return models.ModeAwaitingTarget
	case s.selected.IsNone():
		return models.ModeIdle
	default:
		return models.ModeSelected
	}
}

// Selected returns the selected item.
func (s *State) Selected() models.Item { return s.selected }

// ConnectionSource returns the awaiting source node, if any.
func (s *State) ConnectionSource() (models.Node, bool) {
	if s.source == nil {
		return models.Node{}, false
	}
	return s.source.Clone(), true
}

// Awaiting reports whether a connection target is expected.
func (s *State) Awaiting() bool { return s.source != nil }

// Select moves to Selected(item). While awaiting a connection target a node
// selection yields a ConnectRequest; any other target ends the connection
// gesture without a request. The awaiting mode is cleared before return.
func (s *State) Select(item models.Item) *ConnectRequest {
	var req *ConnectRequest

	if s.source != nil && item.IsNode() {
		req = &ConnectRequest{Source: s.source.Clone(), Target: item.Node.Clone()}
	}

	s.source = nil
	s.selected = item

	return req
}

// ToggleConnect enters or leaves the awaiting-connection-target mode.
func (s *State) ToggleConnect() error {
	if s.source != nil {
		s.selected = models.NodeItem(*s.source)
		s.source = nil
		return nil
	}

	if !s.selected.IsNode() {
		return fmt.Errorf("%w: connect requires a selected node", models.ErrIllegalAction)
	}

	src := s.selected.Node.Clone()
	s.source = &src

	return nil
}

// CanDelete reports whether the selected item may be deleted.
func (s *State) CanDelete() bool {
	return s.source == nil && (s.selected.IsNode() || s.selected.IsRelationship())
}

// CanConnect reports whether a connection may be started.
func (s *State) CanConnect() bool {
	return s.source == nil && s.selected.IsNode()
}

// CanAdd reports whether a new node may be created.
func (s *State) CanAdd() bool {
	return s.source == nil && (s.selected.IsNone() || s.selected.Kind == models.KindCanvas)
}

// CanEdit reports whether the selected item's properties may be edited.
func (s *State) CanEdit() bool {
	return s.CanDelete()
}

// ItemRemoved reconciles the state after a deletion resolved. The selection
// resets to idle only if it still refers to a removed entity; an awaiting
// source that was removed ends the connection gesture.
func (s *State) ItemRemoved(d models.Deletion, removedRelIDs []string) {
	gone := func(it models.Item) bool {
		if it.Refers(d.Item) {
			return true
		}
		if it.IsRelationship() {
			for _, id := range removedRelIDs {
				if it.ID() == id {
					return true
				}
			}
		}
		return false
	}

	if gone(s.selected) {
		s.selected = models.Item{}
	}
	if s.source != nil && d.Item.IsNode() && s.source.ID == d.Item.ID() {
		s.source = nil
	}
}

// SetZoom stores the saturation flags reported by the layout engine. The two
// flags are independent.
func (s *State) SetZoom(l models.ZoomLimits) {
	s.zoomInSaturated = l.ZoomInLimit
	s.zoomOutSaturated = l.ZoomOutLimit
}

// ZoomLimits returns the current saturation flags.
func (s *State) ZoomLimits() models.ZoomLimits {
	return models.ZoomLimits{ZoomInLimit: s.zoomInSaturated, ZoomOutLimit: s.zoomOutSaturated}
}

// MarkResize requests a resize on the next render cycle.
func (s *State) MarkResize() { s.pendingResize = true }

// TakeResize reports and clears a pending resize.
func (s *State) TakeResize() bool {
	p := s.pendingResize
	s.pendingResize = false
	return p
}

// Snapshot returns a copy suitable for handing to the host.
func (s *State) Snapshot() models.StateSnapshot {
	snap := models.StateSnapshot{
		Mode:             s.Mode(),
		Selected:         s.selected,
		ZoomInSaturated:  s.zoomInSaturated,
		ZoomOutSaturated: s.zoomOutSaturated,
		CanAdd:           s.CanAdd(),
		CanDelete:        s.CanDelete(),
		CanConnect:       s.CanConnect(),
		CanEdit:          s.CanEdit(),
	}
	if s.source != nil {
		src := s.source.Clone()
		snap.Source = &src
	}
	return snap
}
