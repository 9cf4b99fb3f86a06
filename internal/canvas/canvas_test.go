package canvas

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/canvas/internal/forms"
	"github.com/persistorai/canvas/internal/models"
	"github.com/persistorai/canvas/internal/view"
)

type fixture struct {
	canvas *Canvas
	collab *mockCollaborator
	host   *mockHost
	layout *mockLayout
}

func newFixture(t *testing.T, props Props) *fixture {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	f := &fixture{collab: &mockCollaborator{}, host: &mockHost{}, layout: &mockLayout{}}

	c, err := New(props, Deps{
		Collaborator: f.collab,
		Layout:       f.layout.factory(),
		Surface:      mockSurface{},
		Host:         f.host,
	}, log)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.canvas = c

	go c.Run(context.Background())
	t.Cleanup(c.Close)

	return f
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func nodeItem(id string) models.Item { return models.NodeItem(models.Node{ID: id}) }

func mustState(t *testing.T, c *Canvas) models.StateSnapshot {
	t.Helper()
	s, err := c.State()
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	return s
}

func TestNew_RejectsDanglingInitialGraph(t *testing.T) {
	_, err := New(Props{
		Nodes:         []models.Node{{ID: "A"}},
		Relationships: []models.Relationship{{ID: "R", StartNodeID: "A", EndNodeID: "B"}},
	}, Deps{}, logrus.New())
	if !errors.Is(err, models.ErrInvalidTopology) {
		t.Errorf("expected ErrInvalidTopology, got %v", err)
	}
}

func TestMount_ReportsStatsAndLaysOutOnce(t *testing.T) {
	f := newFixture(t, Props{Nodes: []models.Node{{ID: "A"}, {ID: "B"}}})

	waitFor(t, "mount", func() bool { return f.layout.count("update") == 1 })

	if got := f.layout.count("resize"); got != 1 {
		t.Errorf("resize calls = %d, want 1", got)
	}
	if f.host.lastStats().NodeCount != 2 {
		t.Errorf("stats = %+v", f.host.lastStats())
	}

	s := mustState(t, f.canvas)
	if s.Mode != models.ModeIdle || !s.ZoomInSaturated || s.ZoomOutSaturated {
		t.Errorf("mount state = %+v", s)
	}
}

func TestScenario_ConnectTwoNodes(t *testing.T) {
	release := make(chan struct{})
	f := newFixture(t, Props{Nodes: []models.Node{{ID: "A"}, {ID: "B"}}})
	f.collab.connectItems = func(_ context.Context, s, tg models.Node) (*models.PartialGraph, error) {
		<-release
		return &models.PartialGraph{
			Nodes:         []models.Node{s, tg},
			Relationships: []models.Relationship{{ID: "R", Type: "LINKS", StartNodeID: s.ID, EndNodeID: tg.ID}},
		}, nil
	}

	if err := f.canvas.Select(nodeItem("A")); err != nil {
		t.Fatalf("Select A: %v", err)
	}
	if err := f.canvas.ToggleConnect(); err != nil {
		t.Fatalf("ToggleConnect: %v", err)
	}
	s := mustState(t, f.canvas)
	if s.Mode != models.ModeAwaitingTarget || s.Source == nil || s.Source.ID != "A" {
		t.Fatalf("state = %+v", s)
	}

	if err := f.canvas.Select(nodeItem("B")); err != nil {
		t.Fatalf("Select B: %v", err)
	}

	// The request is in flight; the state has already moved on.
	waitFor(t, "connect request", func() bool { return f.collab.called("ConnectItems") })
	s = mustState(t, f.canvas)
	if s.Mode != models.ModeSelected || s.Selected.ID() != "B" {
		t.Fatalf("state before resolution = %+v", s)
	}
	if f.canvas.Graph().Stats().RelationshipCount != 0 {
		t.Fatal("relationship applied before resolution")
	}

	close(release)

	waitFor(t, "relationship merged", func() bool { return f.host.lastStats().RelationshipCount == 1 })

	rels := f.canvas.Graph().Relationships()
	if len(rels) != 1 || rels[0].StartNodeID != "A" || rels[0].EndNodeID != "B" {
		t.Errorf("relationships = %+v", rels)
	}
}

func TestScenario_DeleteOnlyRelationship(t *testing.T) {
	f := newFixture(t, Props{
		Nodes:         []models.Node{{ID: "A"}, {ID: "B"}},
		Relationships: []models.Relationship{{ID: "R", Type: "KNOWS", StartNodeID: "A", EndNodeID: "B"}},
	})
	f.collab.deleteItem = func(_ context.Context, item models.Item) (*models.Deletion, error) {
		return &models.Deletion{Kind: models.KindRelationship, Item: item}, nil
	}

	if err := f.canvas.Select(models.RelationshipItem(models.Relationship{ID: "R"})); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if err := f.canvas.DeleteSelected(); err != nil {
		t.Fatalf("DeleteSelected: %v", err)
	}

	waitFor(t, "deletion", func() bool { return f.host.lastStats().RelationshipCount == 0 })

	if got := f.canvas.Graph().Stats().NodeCount; got != 2 {
		t.Errorf("node count = %d", got)
	}
	if s := mustState(t, f.canvas); s.Mode != models.ModeIdle {
		t.Errorf("selection should reset, state = %+v", s)
	}
}

func TestFailedConnect_DoesNotRestoreAwaiting(t *testing.T) {
	f := newFixture(t, Props{Nodes: []models.Node{{ID: "A"}, {ID: "B"}}})
	f.collab.connectItems = func(context.Context, models.Node, models.Node) (*models.PartialGraph, error) {
		return nil, errors.New("conflict")
	}

	_ = f.canvas.Select(nodeItem("A"))
	_ = f.canvas.ToggleConnect()
	_ = f.canvas.Select(nodeItem("B"))

	waitFor(t, "failure", func() bool { return len(f.host.failures()) == 1 })

	if !errors.Is(f.host.failures()[0], models.ErrMutationRejected) {
		t.Errorf("failure = %v", f.host.failures()[0])
	}
	if f.canvas.Graph().Stats().RelationshipCount != 0 {
		t.Error("graph changed by failed connect")
	}
	if s := mustState(t, f.canvas); s.Mode != models.ModeSelected || s.Selected.ID() != "B" {
		t.Errorf("state = %+v", s)
	}
}

func TestGating(t *testing.T) {
	f := newFixture(t, Props{Nodes: []models.Node{{ID: "A"}}})

	if err := f.canvas.DeleteSelected(); !errors.Is(err, models.ErrIllegalAction) {
		t.Errorf("delete with nothing selected: %v", err)
	}
	if err := f.canvas.ToggleConnect(); !errors.Is(err, models.ErrIllegalAction) {
		t.Errorf("connect with nothing selected: %v", err)
	}

	_ = f.canvas.Select(nodeItem("A"))
	if err := f.canvas.AddNode(); !errors.Is(err, models.ErrIllegalAction) {
		t.Errorf("add with node selected: %v", err)
	}

	_ = f.canvas.ToggleConnect()
	if err := f.canvas.DeleteSelected(); !errors.Is(err, models.ErrIllegalAction) {
		t.Errorf("delete while awaiting: %v", err)
	}
	if err := f.canvas.Edit(forms.NewPropertyForm("name", "x")); !errors.Is(err, models.ErrIllegalAction) {
		t.Errorf("edit while awaiting: %v", err)
	}
}

func TestSelect_UnknownElement(t *testing.T) {
	f := newFixture(t, Props{Nodes: []models.Node{{ID: "A"}}})

	if err := f.canvas.Select(nodeItem("ghost")); !errors.Is(err, models.ErrNodeNotFound) {
		t.Errorf("expected ErrNodeNotFound, got %v", err)
	}
	if s := mustState(t, f.canvas); s.Mode != models.ModeIdle {
		t.Errorf("state changed: %+v", s)
	}
}

func TestAddNode(t *testing.T) {
	f := newFixture(t, Props{})
	f.collab.addItem = func(context.Context, models.ItemSpec) (*models.PartialGraph, error) {
		return &models.PartialGraph{Nodes: []models.Node{{ID: "N1", Labels: []string{"Thing"}}}}, nil
	}

	if err := f.canvas.Select(models.CanvasItem); err != nil {
		t.Fatalf("Select canvas: %v", err)
	}
	if err := f.canvas.AddNode(); err != nil {
		t.Fatalf("AddNode: %v", err)
	}

	waitFor(t, "node added", func() bool { return f.host.lastStats().NodeCount == 1 })
}

func TestZoom(t *testing.T) {
	f := newFixture(t, Props{})

	l, err := f.canvas.ZoomIn()
	if err != nil || !l.ZoomInLimit {
		t.Fatalf("ZoomIn at max = %+v, %v", l, err)
	}

	l, _ = f.canvas.ZoomOut()
	if l.ZoomInLimit {
		t.Error("zoom out should clear zoomInLimit")
	}
	l, _ = f.canvas.ZoomOut()
	if !l.ZoomOutLimit {
		t.Error("expected zoomOutLimit at minimum")
	}

	s := mustState(t, f.canvas)
	if s.ZoomInSaturated || !s.ZoomOutSaturated {
		t.Errorf("state flags = %+v", s)
	}
}

func TestReceiveProps_DefersResize(t *testing.T) {
	f := newFixture(t, Props{View: view.Props{FrameHeight: 500}})
	waitFor(t, "mount", func() bool { return f.layout.count("resize") == 1 })

	if err := f.canvas.ReceiveProps(view.Props{FrameHeight: 600}); err != nil {
		t.Fatalf("ReceiveProps: %v", err)
	}
	waitFor(t, "deferred resize", func() bool { return f.layout.count("resize") == 2 })

	// Unchanged props do not resize again.
	_ = f.canvas.ReceiveProps(view.Props{FrameHeight: 600})
	_, _ = f.canvas.State()
	if got := f.layout.count("resize"); got != 2 {
		t.Errorf("resize calls = %d, want 2", got)
	}
}

func TestResize_ResizesOnce(t *testing.T) {
	f := newFixture(t, Props{View: view.Props{FrameHeight: 500}})
	waitFor(t, "mount", func() bool { return f.layout.count("resize") == 1 })

	// Same props, new surface size.
	if err := f.canvas.Resize(view.Props{FrameHeight: 500}); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	waitFor(t, "surface resize", func() bool { return f.layout.count("resize") == 2 })

	// A props change in the same call still resizes only once.
	_ = f.canvas.Resize(view.Props{FrameHeight: 700})
	_, _ = f.canvas.State()
	if got := f.layout.count("resize"); got != 3 {
		t.Errorf("resize calls = %d, want 3", got)
	}
}

func TestEdit(t *testing.T) {
	f := newFixture(t, Props{
		Nodes:         []models.Node{{ID: "A", Properties: map[string]any{"age": 3}}, {ID: "B"}},
		Relationships: []models.Relationship{{ID: "R", Type: "KNOWS", StartNodeID: "A", EndNodeID: "B"}},
	})

	_ = f.canvas.Select(nodeItem("A"))
	if err := f.canvas.Edit(forms.NewPropertyForm("name", "Ann")); err != nil {
		t.Fatalf("Edit property: %v", err)
	}
	if err := f.canvas.Edit(forms.NewLabelForm("Person")); err != nil {
		t.Fatalf("Edit label: %v", err)
	}
	if err := f.canvas.Edit(forms.NewPropertyForm("1bad", "x")); !errors.Is(err, models.ErrValidationFailed) {
		t.Errorf("invalid form: %v", err)
	}
	if err := f.canvas.Edit(forms.NewTypeForm("LIKES")); !errors.Is(err, models.ErrIllegalAction) {
		t.Errorf("type form on node: %v", err)
	}

	n, err := f.canvas.Graph().FindNode("A")
	if err != nil {
		t.Fatalf("FindNode: %v", err)
	}
	if n.Properties["name"] != "Ann" || n.Properties["age"] != 3 {
		t.Errorf("properties = %v", n.Properties)
	}
	if _, bad := n.Properties["1bad"]; bad {
		t.Error("invalid form applied")
	}
	if len(n.Labels) != 1 || n.Labels[0] != "Person" {
		t.Errorf("labels = %v", n.Labels)
	}

	_ = f.canvas.Select(models.RelationshipItem(models.Relationship{ID: "R"}))
	if err := f.canvas.Edit(forms.NewTypeForm("LIKES")); err != nil {
		t.Fatalf("Edit type: %v", err)
	}
	r, _ := f.canvas.Graph().FindRelationship("R")
	if r.Type != "LIKES" {
		t.Errorf("type = %s", r.Type)
	}
}

func TestExpand(t *testing.T) {
	f := newFixture(t, Props{Nodes: []models.Node{{ID: "A"}}})
	f.collab.getNodeNeighbours = func(_ context.Context, n models.Node, _ []string) (*models.PartialGraph, error) {
		return &models.PartialGraph{
			Nodes:         []models.Node{{ID: "B"}},
			Relationships: []models.Relationship{{ID: "R", Type: "KNOWS", StartNodeID: n.ID, EndNodeID: "B"}},
		}, nil
	}

	if err := f.canvas.Expand("A"); err != nil {
		t.Fatalf("Expand: %v", err)
	}
	waitFor(t, "expansion", func() bool { return f.host.lastStats().RelationshipCount == 1 })

	if err := f.canvas.Expand("nope"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expand unknown: %v", err)
	}
}

func TestAutoCompleteCallback(t *testing.T) {
	f := newFixture(t, Props{Nodes: []models.Node{{ID: "A"}, {ID: "B"}}})
	cb := f.canvas.AutoCompleteCallback()

	if err := cb([]models.Relationship{{ID: "R", Type: "KNOWS", StartNodeID: "A", EndNodeID: "B"}}); err != nil {
		t.Fatalf("callback: %v", err)
	}
	if got := f.canvas.Graph().NeighbourIDs("A"); len(got) != 1 || got[0] != "B" {
		t.Errorf("neighbours = %v", got)
	}
}

func TestApplyExternalUpdate(t *testing.T) {
	f := newFixture(t, Props{Nodes: []models.Node{{ID: "A"}}})

	n, err := f.canvas.ApplyExternalUpdate(models.GraphUpdate{Nodes: []models.EntityUpdate{{ID: "A", Properties: map[string]any{"k": "v"}}}})
	if err != nil || n != 1 {
		t.Fatalf("ApplyExternalUpdate = %d, %v", n, err)
	}
}

func TestClosed(t *testing.T) {
	f := newFixture(t, Props{})
	f.canvas.Close()

	if err := f.canvas.Select(models.CanvasItem); !errors.Is(err, models.ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if _, err := f.canvas.Graph().FindNode("A"); !errors.Is(err, models.ErrClosed) {
		t.Errorf("expected ErrClosed from reader, got %v", err)
	}
}

func TestLateResultDroppedAfterClose(t *testing.T) {
	started := make(chan struct{})
	f := newFixture(t, Props{})
	f.collab.addItem = func(ctx context.Context, _ models.ItemSpec) (*models.PartialGraph, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}

	_ = f.canvas.AddNode()
	<-started
	f.canvas.Close()

	if len(f.host.failures()) != 0 {
		t.Errorf("cancelled request reported: %v", f.host.failures())
	}
}
