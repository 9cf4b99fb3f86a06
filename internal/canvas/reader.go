package canvas

import (
	"github.com/persistorai/canvas/internal/domain"
	"github.com/persistorai/canvas/internal/models"
)

// Graph returns a read-only view of the canvas graph that is safe to use
// from any goroutine. Reads are served by the canvas loop; after the canvas
// closes they return zero values or ErrClosed.
func (c *Canvas) Graph() domain.GraphReader {
	return reader{c}
}

type reader struct{ c *Canvas }

var _ domain.GraphReader = reader{}

func read[T any](c *Canvas, fn func() T) T {
	var v T
	_ = c.call(func() error {
		v = fn()
		return nil
	})
	return v
}

func (r reader) FindNode(id string) (*models.Node, error) {
	var n *models.Node
	var err error
	if cerr := r.c.call(func() error {
		n, err = r.c.res.graph.FindNode(id)
		return nil
	}); cerr != nil {
		return nil, cerr
	}
	return n, err
}

func (r reader) FindRelationship(id string) (*models.Relationship, error) {
	var rel *models.Relationship
	var err error
	if cerr := r.c.call(func() error {
		rel, err = r.c.res.graph.FindRelationship(id)
		return nil
	}); cerr != nil {
		return nil, cerr
	}
	return rel, err
}

func (r reader) NeighbourIDs(nodeID string) []string {
	return read(r.c, func() []string { return r.c.res.graph.NeighbourIDs(nodeID) })
}

func (r reader) Nodes() []models.Node {
	return read(r.c, r.c.res.graph.Nodes)
}

func (r reader) Relationships() []models.Relationship {
	return read(r.c, r.c.res.graph.Relationships)
}

func (r reader) Snapshot() models.PartialGraph {
	return read(r.c, r.c.res.graph.Snapshot)
}

func (r reader) Stats() models.Stats {
	return read(r.c, r.c.res.graph.Stats)
}
