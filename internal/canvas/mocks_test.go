package canvas

import (
	"context"
	"sync"

	"github.com/persistorai/canvas/internal/domain"
	"github.com/persistorai/canvas/internal/models"
)

// mockCollaborator returns configured responses. Calls run on runner
// goroutines, so the function fields may block.
type mockCollaborator struct {
	mu    sync.Mutex
	calls []string

	addItem           func(ctx context.Context, spec models.ItemSpec) (*models.PartialGraph, error)
	deleteItem        func(ctx context.Context, item models.Item) (*models.Deletion, error)
	connectItems      func(ctx context.Context, source, target models.Node) (*models.PartialGraph, error)
	getNodeNeighbours func(ctx context.Context, node models.Node, current []string) (*models.PartialGraph, error)
}

func (m *mockCollaborator) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, name)
}

func (m *mockCollaborator) called(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.calls {
		if c == name {
			return true
		}
	}
	return false
}

func (m *mockCollaborator) AddItem(ctx context.Context, spec models.ItemSpec) (*models.PartialGraph, error) {
	m.record("AddItem")
	return m.addItem(ctx, spec)
}

func (m *mockCollaborator) DeleteItem(ctx context.Context, item models.Item) (*models.Deletion, error) {
	m.record("DeleteItem")
	return m.deleteItem(ctx, item)
}

func (m *mockCollaborator) ConnectItems(ctx context.Context, source, target models.Node) (*models.PartialGraph, error) {
	m.record("ConnectItems")
	return m.connectItems(ctx, source, target)
}

func (m *mockCollaborator) GetNodeNeighbours(ctx context.Context, node models.Node, current []string) (*models.PartialGraph, error) {
	m.record("GetNodeNeighbours")
	return m.getNodeNeighbours(ctx, node, current)
}

// mockHost records host notifications from the canvas loop.
type mockHost struct {
	mu       sync.Mutex
	selected []models.Item
	stats    []models.Stats
	failed   []error
	states   []models.StateSnapshot
	out      []models.Item
}

func (h *mockHost) OnItemSelect(item models.Item) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.selected = append(h.selected, item)
}

func (h *mockHost) OnItemMouseOver(models.Item) {}

func (h *mockHost) OnItemMouseOut(item models.Item) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.out = append(h.out, item)
}

func (h *mockHost) OnGraphModelChange(stats models.Stats) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stats = append(h.stats, stats)
}

func (h *mockHost) OnMutationFailed(_ string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failed = append(h.failed, err)
}

func (h *mockHost) OnStateChange(s models.StateSnapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.states = append(h.states, s)
}

func (h *mockHost) lastStats() models.Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.stats) == 0 {
		return models.Stats{}
	}
	return h.stats[len(h.stats)-1]
}

func (h *mockHost) failures() []error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]error(nil), h.failed...)
}

// mockLayout records engine calls.
type mockLayout struct {
	mu    sync.Mutex
	calls []string
	scale int
}

func (l *mockLayout) record(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, name)
}

func (l *mockLayout) count(name string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, c := range l.calls {
		if c == name {
			n++
		}
	}
	return n
}

// The engine starts at its top step and has three steps.
func (l *mockLayout) ZoomIn() models.ZoomLimits {
	l.record("zoom_in")
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.scale < 0 {
		l.scale++
	}
	return models.ZoomLimits{ZoomInLimit: l.scale == 0, ZoomOutLimit: l.scale == -2}
}

func (l *mockLayout) ZoomOut() models.ZoomLimits {
	l.record("zoom_out")
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.scale > -2 {
		l.scale--
	}
	return models.ZoomLimits{ZoomInLimit: l.scale == 0, ZoomOutLimit: l.scale == -2}
}

func (l *mockLayout) Resize() { l.record("resize") }
func (l *mockLayout) Update() { l.record("update") }

func (l *mockLayout) factory() domain.LayoutFactory {
	return func(domain.Surface, func() models.Size, domain.GraphReader, models.Style) domain.LayoutEngine {
		return l
	}
}

type mockSurface struct{}

func (mockSurface) Size() models.Size      { return models.Size{Width: 800, Height: 600} }
func (mockSurface) Emit(string, any) error { return nil }
