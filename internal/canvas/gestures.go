package canvas

import (
	"maps"

	"github.com/persistorai/canvas/internal/forms"
	"github.com/persistorai/canvas/internal/models"
	"github.com/persistorai/canvas/internal/view"
)

// Select handles a click on a canvas element. While a connection target is
// awaited, selecting a node issues the connect request.
func (c *Canvas) Select(item models.Item) error {
	return c.call(func() error { return c.res.view.PointerClick(item) })
}

func (c *Canvas) selectItem(item models.Item) error {
	resolved, err := c.resolve(item)
	if err != nil {
		return c.notFound(err, item.String())
	}

	req := c.res.state.Select(resolved)
	c.host.OnItemSelect(resolved)

	if req != nil {
		c.res.coord.ConnectItems(req.Source, req.Target)
	}

	return nil
}

// ToggleConnect starts or cancels a connection from the selected node.
func (c *Canvas) ToggleConnect() error {
	return c.call(c.res.state.ToggleConnect)
}

// DeleteSelected deletes the selected node or relationship.
func (c *Canvas) DeleteSelected() error {
	return c.call(func() error {
		st := c.res.state
		if !st.CanDelete() {
			return illegal("delete")
		}

		c.res.coord.DeleteItem(st.Selected(), st.ItemRemoved)

		return nil
	})
}

// AddNode creates a new node.
func (c *Canvas) AddNode() error {
	return c.call(func() error {
		if !c.res.state.CanAdd() {
			return illegal("add")
		}

		c.res.coord.CreateNode()

		return nil
	})
}

// ZoomIn steps the layout in and returns the new saturation flags.
func (c *Canvas) ZoomIn() (models.ZoomLimits, error) {
	return c.zoom(c.res.view.ZoomIn)
}

// ZoomOut steps the layout out and returns the new saturation flags.
func (c *Canvas) ZoomOut() (models.ZoomLimits, error) {
	return c.zoom(c.res.view.ZoomOut)
}

func (c *Canvas) zoom(step func() models.ZoomLimits) (models.ZoomLimits, error) {
	var l models.ZoomLimits
	err := c.call(func() error {
		l = step()
		c.res.state.SetZoom(l)
		return nil
	})
	return l, err
}

// Expand fetches the neighbourhood of a node, as a double click does.
func (c *Canvas) Expand(nodeID string) error {
	return c.call(func() error {
		n, err := c.res.graph.FindNode(nodeID)
		if err != nil {
			return c.notFound(err, nodeID)
		}
		return c.res.view.PointerDoubleClick(*n)
	})
}

func (c *Canvas) expandNode(n models.Node) error {
	c.res.coord.ExpandNeighbours(n)
	return nil
}

// PointerOver reports the element under the pointer.
func (c *Canvas) PointerOver(item models.Item) error {
	return c.call(func() error {
		resolved, err := c.resolve(item)
		if err != nil {
			return c.notFound(err, item.String())
		}
		c.res.view.PointerOver(resolved)
		return nil
	})
}

// PointerOut reports that the pointer left an element.
func (c *Canvas) PointerOut(item models.Item) error {
	return c.call(func() error {
		c.res.view.PointerOut(item)
		return nil
	})
}

// ReceiveProps applies new host props.
func (c *Canvas) ReceiveProps(p view.Props) error {
	return c.call(func() error {
		c.res.view.ReceiveProps(p)
		return nil
	})
}

// Resize applies new host props after the surface changed size. The layout
// resizes once at the end of the cycle.
func (c *Canvas) Resize(p view.Props) error {
	return c.call(func() error {
		c.res.view.ReceiveProps(p)
		c.res.view.SurfaceResized()
		return nil
	})
}

// Edit validates a form and applies it to the selected element.
func (c *Canvas) Edit(f forms.Form) error {
	return c.call(func() error {
		st := c.res.state
		if !st.CanEdit() {
			return illegal("edit")
		}

		sel, err := c.resolve(st.Selected())
		if err != nil {
			return c.notFound(err, st.Selected().String())
		}

		var applyErr error
		if err := forms.Submit(f, func(result map[string]string) {
			applyErr = c.applyEdit(sel, f.Kind(), result)
		}); err != nil {
			return err
		}

		return applyErr
	})
}

func (c *Canvas) applyEdit(sel models.Item, kind forms.Kind, result map[string]string) error {
	switch kind {
	case forms.KindProperty:
		var props map[string]any
		if sel.IsNode() {
			props = maps.Clone(sel.Node.Properties)
		} else {
			props = maps.Clone(sel.Relationship.Properties)
		}
		if props == nil {
			props = map[string]any{}
		}
		props[result["key"]] = result["value"]

		upd := models.EntityUpdate{ID: sel.ID(), Properties: props}
		var gu models.GraphUpdate
		if sel.IsNode() {
			gu.Nodes = []models.EntityUpdate{upd}
		} else {
			gu.Relationships = []models.EntityUpdate{upd}
		}
		c.res.coord.ApplyExternalUpdate(gu)
		return nil

	case forms.KindLabel:
		if !sel.IsNode() {
			return illegal("labels apply to nodes")
		}
		return c.res.coord.RelabelNode(sel.ID(), append(sel.Node.Labels, result["label"]))

	case forms.KindType:
		if !sel.IsRelationship() {
			return illegal("types apply to relationships")
		}
		return c.res.coord.RetypeRelationship(sel.ID(), result["type"])

	default:
		return illegal("unknown form " + string(kind))
	}
}

// ApplyExternalUpdate applies a property delta pushed from outside the
// canvas. It returns the number of entities changed.
func (c *Canvas) ApplyExternalUpdate(u models.GraphUpdate) (int, error) {
	var n int
	err := c.call(func() error {
		n = c.res.coord.ApplyExternalUpdate(u)
		return nil
	})
	return n, err
}

// AddInternalRelationships merges relationships found between nodes that
// are already on the canvas.
func (c *Canvas) AddInternalRelationships(rels []models.Relationship) error {
	return c.call(func() error { return c.res.coord.AddInternalRelationships(rels) })
}

// AutoCompleteCallback returns the function hosts use to merge relationships
// discovered by autocomplete.
func (c *Canvas) AutoCompleteCallback() func([]models.Relationship) error {
	return c.AddInternalRelationships
}

// State returns the current interaction state.
func (c *Canvas) State() (models.StateSnapshot, error) {
	var s models.StateSnapshot
	err := c.call(func() error {
		s = c.res.state.Snapshot()
		return nil
	})
	return s, err
}
