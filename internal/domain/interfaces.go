// Package domain defines the boundaries of the canvas core: the data
// collaborator that performs mutations, the layout engine that draws the
// graph, and the host that is notified of user-visible changes. Adapters in
// collab, layout and session implement these; the core depends only on them.
package domain

import (
	"context"

	"github.com/persistorai/canvas/internal/models"
)

// DataCollaborator performs graph mutations against a backend. Every method
// may block and may fail; results are merged into the canvas graph by the
// mutation coordinator.
type DataCollaborator interface {
	AddItem(ctx context.Context, spec models.ItemSpec) (*models.PartialGraph, error)
	DeleteItem(ctx context.Context, item models.Item) (*models.Deletion, error)
	ConnectItems(ctx context.Context, source, target models.Node) (*models.PartialGraph, error)
	GetNodeNeighbours(ctx context.Context, node models.Node, currentNeighbourIDs []string) (*models.PartialGraph, error)
}

// GraphReader is the read-only view of the canvas graph handed to the view
// bridge and the layout engine.
type GraphReader interface {
	FindNode(id string) (*models.Node, error)
	FindRelationship(id string) (*models.Relationship, error)
	NeighbourIDs(nodeID string) []string
	Nodes() []models.Node
	Relationships() []models.Relationship
	Snapshot() models.PartialGraph
	Stats() models.Stats
}

// LayoutEngine positions and draws the graph.
type LayoutEngine interface {
	ZoomIn() models.ZoomLimits
	ZoomOut() models.ZoomLimits
	Resize()
	Update()
}

// Surface is the drawing target a layout engine renders into.
type Surface interface {
	Size() models.Size
	Emit(eventType string, data any) error
}

// LayoutFactory builds a layout engine once at mount.
type LayoutFactory func(surface Surface, measure func() models.Size, graph GraphReader, style models.Style) LayoutEngine

// Host receives user-visible notifications from the canvas.
type Host interface {
	OnItemSelect(item models.Item)
	OnItemMouseOver(item models.Item)
	OnItemMouseOut(item models.Item)
	OnGraphModelChange(stats models.Stats)
	OnMutationFailed(op string, err error)
	OnStateChange(state models.StateSnapshot)
}
