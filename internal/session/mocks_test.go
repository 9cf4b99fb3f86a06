package session

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/canvas/internal/models"
)

type recorded struct {
	Type string
	Data any
}

type mockEmitter struct {
	mu     sync.Mutex
	events []recorded
}

func (m *mockEmitter) Emit(eventType string, data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, recorded{Type: eventType, Data: data})
	return nil
}

func (m *mockEmitter) find(eventType string, match func(any) bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.Type == eventType && (match == nil || match(e.Data)) {
			return true
		}
	}
	return false
}

// waitEvent polls until an event of the given type matching match arrives.
func (m *mockEmitter) waitEvent(t *testing.T, eventType string, match func(any) bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.find(eventType, match) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no %s event arrived", eventType)
}

type mockCollaborator struct {
	addItemFn      func(ctx context.Context, spec models.ItemSpec) (*models.PartialGraph, error)
	deleteItemFn   func(ctx context.Context, item models.Item) (*models.Deletion, error)
	connectItemsFn func(ctx context.Context, source, target models.Node) (*models.PartialGraph, error)
	neighboursFn   func(ctx context.Context, node models.Node, current []string) (*models.PartialGraph, error)
}

func (m *mockCollaborator) AddItem(ctx context.Context, spec models.ItemSpec) (*models.PartialGraph, error) {
	return m.addItemFn(ctx, spec)
}

func (m *mockCollaborator) DeleteItem(ctx context.Context, item models.Item) (*models.Deletion, error) {
	return m.deleteItemFn(ctx, item)
}

func (m *mockCollaborator) ConnectItems(ctx context.Context, source, target models.Node) (*models.PartialGraph, error) {
	return m.connectItemsFn(ctx, source, target)
}

func (m *mockCollaborator) GetNodeNeighbours(ctx context.Context, node models.Node, current []string) (*models.PartialGraph, error) {
	return m.neighboursFn(ctx, node, current)
}

type mockSeeder struct {
	seedFn func(ctx context.Context, startID string, hops int) (models.PartialGraph, error)
}

func (m *mockSeeder) Seed(ctx context.Context, startID string, hops int) (models.PartialGraph, error) {
	return m.seedFn(ctx, startID, hops)
}

type mockUpdates struct {
	mu  sync.Mutex
	fns []func(models.GraphUpdate)
}

func (m *mockUpdates) Subscribe(fn func(models.GraphUpdate)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fns = append(m.fns, fn)
	return func() {
		m.mu.Lock()
		m.fns = nil
		m.mu.Unlock()
	}
}

func (m *mockUpdates) publish(u models.GraphUpdate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, fn := range m.fns {
		fn(u)
	}
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func command(t *testing.T, typ string, data any) []byte {
	t.Helper()
	if data == nil {
		return nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s: %v", typ, err)
	}
	return raw
}
