// Package layout provides the layout engine used by canvas sessions. The
// engine keeps the zoom scale and pushes graph, resize and zoom events to a
// browser renderer that runs the force simulation and draws the graph.
package layout

import (
	"github.com/sirupsen/logrus"

	"github.com/persistorai/canvas/internal/domain"
	"github.com/persistorai/canvas/internal/models"
	"github.com/persistorai/canvas/internal/ws"
)

// Zoom scale extents. The renderer starts at MaxScale.
const (
	MinScale  = 0.1
	MaxScale  = 1.0
	ZoomStep  = 1.3
	scaleSlop = 1e-9
)

// GraphPayload is the body of a graph event.
type GraphPayload struct {
	Nodes         []models.Node         `json:"nodes"`
	Relationships []models.Relationship `json:"relationships"`
	Style         models.Style          `json:"style,omitempty"`
	Revision      uint64                `json:"revision"`
}

// ZoomPayload is the body of a zoom event.
type ZoomPayload struct {
	Scale float64 `json:"scale"`
	models.ZoomLimits
}

// Remote is a layout engine whose drawing happens on the far side of a
// Surface. It is not safe for concurrent use; the canvas loop owns it.
type Remote struct {
	surface  domain.Surface
	measure  func() models.Size
	graph    domain.GraphReader
	style    models.Style
	log      *logrus.Logger
	scale    float64
	revision uint64
}

// NewFactory returns a LayoutFactory producing Remote engines.
func NewFactory(log *logrus.Logger) domain.LayoutFactory {
	return func(surface domain.Surface, measure func() models.Size, graph domain.GraphReader, style models.Style) domain.LayoutEngine {
		return New(surface, measure, graph, style, log)
	}
}

// New creates a Remote engine at the maximum scale.
func New(surface domain.Surface, measure func() models.Size, graph domain.GraphReader, style models.Style, log *logrus.Logger) *Remote {
	return &Remote{
		surface: surface,
		measure: measure,
		graph:   graph,
		style:   style,
		log:     log,
		scale:   MaxScale,
	}
}

// Scale returns the current zoom scale.
func (r *Remote) Scale() float64 { return r.scale }

// ZoomIn scales up by one step, clamped to MaxScale.
func (r *Remote) ZoomIn() models.ZoomLimits {
	return r.zoomTo(r.scale * ZoomStep)
}

// ZoomOut scales down by one step, clamped to MinScale.
func (r *Remote) ZoomOut() models.ZoomLimits {
	return r.zoomTo(r.scale / ZoomStep)
}

func (r *Remote) zoomTo(scale float64) models.ZoomLimits {
	r.scale = min(max(scale, MinScale), MaxScale)
	limits := r.limits()
	r.emit(ws.EventZoom, ZoomPayload{Scale: r.scale, ZoomLimits: limits})
	return limits
}

func (r *Remote) limits() models.ZoomLimits {
	return models.ZoomLimits{
		ZoomInLimit:  r.scale >= MaxScale-scaleSlop,
		ZoomOutLimit: r.scale <= MinScale+scaleSlop,
	}
}

// Resize measures the visual area and tells the renderer its new size.
func (r *Remote) Resize() {
	r.emit(ws.EventResize, r.measure())
}

// Update pushes the current graph to the renderer.
func (r *Remote) Update() {
	r.revision++
	snap := r.graph.Snapshot()
	r.emit(ws.EventGraph, GraphPayload{
		Nodes:         snap.Nodes,
		Relationships: snap.Relationships,
		Style:         r.style,
		Revision:      r.revision,
	})
}

// SetStyle replaces the style sent with subsequent updates.
func (r *Remote) SetStyle(style models.Style) { r.style = style }

func (r *Remote) emit(eventType string, data any) {
	if err := r.surface.Emit(eventType, data); err != nil {
		r.log.WithError(err).WithField("event", eventType).Debug("layout event dropped")
	}
}
