// Package view connects the canvas graph to its layout engine and host.
package view

import (
	"github.com/sirupsen/logrus"

	"github.com/persistorai/canvas/internal/domain"
	"github.com/persistorai/canvas/internal/metrics"
	"github.com/persistorai/canvas/internal/models"
)

// Frame chrome heights in pixels.
const (
	StatusbarHeight = 39
	TitlebarHeight  = 39
)

// Props are the host inputs that affect layout.
type Props struct {
	Style        models.Style `json:"style,omitempty"`
	StyleVersion int          `json:"style_version"`
	Fullscreen   bool         `json:"fullscreen"`
	FrameHeight  float64      `json:"frame_height"`
}

// VisualAreaHeight returns the drawable height for a frame. A zero frame
// height falls back to the surface height.
func VisualAreaHeight(fullscreen bool, frameHeight, surfaceHeight float64) float64 {
	if frameHeight > 0 && fullscreen {
		return frameHeight - (StatusbarHeight + TitlebarHeight*2)
	}
	if frameHeight > 0 && frameHeight != StatusbarHeight {
		return frameHeight - StatusbarHeight
	}
	return surfaceHeight
}

// Styler is implemented by layout engines that accept a new style after
// construction.
type Styler interface {
	SetStyle(style models.Style)
}

// Resizer tracks a resize deferred to the end of the current cycle.
type Resizer interface {
	MarkResize()
	TakeResize() bool
}

// Handlers are the canvas commands pointer gestures translate into.
type Handlers struct {
	Select func(item models.Item) error
	Expand func(node models.Node) error
}

// Bridge forwards graph changes to the layout engine and host, and pointer
// gestures from the layout engine back into canvas commands. It is owned by
// the canvas loop.
type Bridge struct {
	graph    domain.GraphReader
	host     domain.Host
	surface  domain.Surface
	resizer  Resizer
	handlers Handlers
	log      *logrus.Logger

	layout  domain.LayoutEngine
	props   Props
	hovered models.Item
}

// Config holds the collaborators of a Bridge.
type Config struct {
	Graph    domain.GraphReader
	Host     domain.Host
	Surface  domain.Surface
	Resizer  Resizer
	Handlers Handlers
	Layout   domain.LayoutFactory
	Props    Props
	Log      *logrus.Logger
}

// New builds a Bridge and its layout engine. The engine measures the surface
// through the bridge.
func New(cfg Config) *Bridge {
	b := &Bridge{
		graph:    cfg.Graph,
		host:     cfg.Host,
		surface:  cfg.Surface,
		resizer:  cfg.Resizer,
		handlers: cfg.Handlers,
		props:    cfg.Props,
		log:      cfg.Log,
	}
	b.layout = cfg.Layout(cfg.Surface, b.MeasureSize, cfg.Graph, cfg.Props.Style)
	return b
}

// Mount reports initial stats and lays the graph out once.
func (b *Bridge) Mount() {
	b.report()
	b.layout.Resize()
	b.layout.Update()
}

// Propagate pushes the graph to the layout engine and reports stats to the
// host. Call it once after every applied mutation.
func (b *Bridge) Propagate() {
	b.layout.Update()
	b.report()
}

func (b *Bridge) report() {
	stats := b.graph.Stats()
	metrics.NodeCount.Set(float64(stats.NodeCount))
	metrics.RelationshipCount.Set(float64(stats.RelationshipCount))
	b.host.OnGraphModelChange(stats)
}

// NodeClosed finishes the removal of a node and its incident relationships.
func (b *Bridge) NodeClosed(node models.Node, removed []models.Relationship) {
	if b.hoveredAmong(node, removed) {
		b.ClearHover()
	}
	b.Propagate()
}

// RelationshipClosed finishes the removal of a single relationship.
func (b *Bridge) RelationshipClosed(rel models.Relationship) {
	if b.hovered.IsRelationship() && b.hovered.ID() == rel.ID {
		b.ClearHover()
	}
	b.Propagate()
}

func (b *Bridge) hoveredAmong(node models.Node, removed []models.Relationship) bool {
	if b.hovered.IsNode() && b.hovered.ID() == node.ID {
		return true
	}
	if b.hovered.IsRelationship() {
		for i := range removed {
			if removed[i].ID == b.hovered.ID() {
				return true
			}
		}
	}
	return false
}

// PointerOver relays a hover to the host.
func (b *Bridge) PointerOver(item models.Item) {
	b.hovered = item
	b.host.OnItemMouseOver(item)
}

// PointerOut relays the end of a hover to the host.
func (b *Bridge) PointerOut(item models.Item) {
	if b.hovered.Refers(item) {
		b.hovered = models.Item{}
	}
	b.host.OnItemMouseOut(item)
}

// ClearHover ends any active hover.
func (b *Bridge) ClearHover() {
	if b.hovered.IsNone() {
		return
	}
	item := b.hovered
	b.hovered = models.Item{}
	b.host.OnItemMouseOut(item)
}

// Hovered returns the item under the pointer.
func (b *Bridge) Hovered() models.Item { return b.hovered }

// PointerClick turns a click into a selection command.
func (b *Bridge) PointerClick(item models.Item) error {
	if b.handlers.Select == nil {
		return nil
	}
	return b.handlers.Select(item)
}

// PointerDoubleClick on a node expands its neighbourhood.
func (b *Bridge) PointerDoubleClick(node models.Node) error {
	if b.handlers.Expand == nil {
		return nil
	}
	return b.handlers.Expand(node)
}

// ZoomIn steps the layout engine in.
func (b *Bridge) ZoomIn() models.ZoomLimits { return b.layout.ZoomIn() }

// ZoomOut steps the layout engine out.
func (b *Bridge) ZoomOut() models.ZoomLimits { return b.layout.ZoomOut() }

// ReceiveProps applies new host props. A style version change updates the
// layout immediately; a fullscreen or frame height change defers a resize to
// Flush.
func (b *Bridge) ReceiveProps(next Props) {
	prev := b.props
	b.props = next

	if next.StyleVersion != prev.StyleVersion {
		if s, ok := b.layout.(Styler); ok && next.Style != nil {
			s.SetStyle(next.Style)
		}
		b.layout.Update()
	}

	if next.Fullscreen != prev.Fullscreen || next.FrameHeight != prev.FrameHeight {
		b.resizer.MarkResize()
	}
}

// SurfaceResized defers a resize to Flush after the surface changed size.
func (b *Bridge) SurfaceResized() {
	b.resizer.MarkResize()
}

// Props returns the current host props.
func (b *Bridge) Props() Props { return b.props }

// Flush runs at the end of a loop cycle and performs a deferred resize.
func (b *Bridge) Flush() {
	if b.resizer.TakeResize() {
		b.layout.Resize()
	}
}

// MeasureSize returns the size of the visual area.
func (b *Bridge) MeasureSize() models.Size {
	s := b.surface.Size()
	return models.Size{
		Width:  s.Width,
		Height: VisualAreaHeight(b.props.Fullscreen, b.props.FrameHeight, s.Height),
	}
}
