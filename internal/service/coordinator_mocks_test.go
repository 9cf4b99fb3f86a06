package service

import (
	"context"
	"sync"
	"testing"

	"github.com/persistorai/canvas/internal/models"
)

// mockCollaborator records calls and returns configured responses.
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

// mockView counts view pushes.
type mockView struct {
	propagated int
	closed     []string
	closedRels []string
	hoverClear int
}

func (v *mockView) Propagate() { v.propagated++ }

func (v *mockView) NodeClosed(node models.Node, _ []models.Relationship) {
	v.closed = append(v.closed, node.ID)
	v.propagated++
}

func (v *mockView) RelationshipClosed(rel models.Relationship) {
	v.closedRels = append(v.closedRels, rel.ID)
	v.propagated++
}

func (v *mockView) ClearHover() { v.hoverClear++ }

// mockReporter records failure notifications.
type mockReporter struct {
	ops  []string
	errs []error
}

func (r *mockReporter) OnMutationFailed(op string, err error) {
	r.ops = append(r.ops, op)
	r.errs = append(r.errs, err)
}

type pendingCall struct {
	op   string
	call func(ctx context.Context) func()
}

// manualRunner holds calls until the test resolves them, in any order.
type manualRunner struct {
	pending []pendingCall
}

func (r *manualRunner) Run(op string, call func(ctx context.Context) func()) {
	r.pending = append(r.pending, pendingCall{op: op, call: call})
}

// resolve runs the i-th pending call and its continuation.
func (r *manualRunner) resolve(t *testing.T, i int) {
	t.Helper()

	if i >= len(r.pending) {
		t.Fatalf("no pending call %d (have %d)", i, len(r.pending))
	}
	p := r.pending[i]
	r.pending = append(r.pending[:i], r.pending[i+1:]...)
	p.call(context.Background())()
}
