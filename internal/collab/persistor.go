package collab

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/persistorai/canvas/internal/models"
)

// nameProperty carries the Persistor node label into canvas properties.
const nameProperty = "name"

// Defaults are the values stamped on elements the canvas creates.
type Defaults struct {
	NodeType         string
	NodeLabel        string
	RelationshipType string
	NeighbourLimit   int
}

// Persistor is a domain.DataCollaborator backed by the Persistor REST API.
//
// Persistor edges are keyed by (source, target, relation). The canvas needs
// a single stable id per relationship, so ids are minted on first sight and
// remembered until the edge is deleted. Each canvas should work on its own
// Scoped copy so the id table lives and dies with it.
type Persistor struct {
	client   *Client
	defaults Defaults
	log      *logrus.Logger
	ids      *relTable
}

// NewPersistor creates a collaborator using client for all backend calls.
func NewPersistor(client *Client, defaults Defaults, log *logrus.Logger) *Persistor {
	return &Persistor{client: client, defaults: defaults, log: log, ids: newRelTable()}
}

// Scoped returns a collaborator sharing p's client with an empty id table.
func (p *Persistor) Scoped() *Persistor {
	return NewPersistor(p.client, p.defaults, p.log)
}

// Release drops every minted relationship id.
func (p *Persistor) Release() {
	p.ids.reset()
}

// TrackedRelationships returns the number of relationship ids held.
func (p *Persistor) TrackedRelationships() int {
	return p.ids.len()
}

// AddItem creates a new node with the configured type and label.
func (p *Persistor) AddItem(ctx context.Context, spec models.ItemSpec) (*models.PartialGraph, error) {
	if spec.Type != string(models.KindNode) {
		return nil, fmt.Errorf("%w: cannot create %q", models.ErrIllegalAction, spec.Type)
	}

	n, err := p.client.CreateNode(ctx, &CreateNodeRequest{
		ID:    uuid.NewString(),
		Type:  p.defaults.NodeType,
		Label: p.defaults.NodeLabel,
	})
	if err != nil {
		return nil, fmt.Errorf("creating node: %w", err)
	}

	return &models.PartialGraph{Nodes: []models.Node{toNode(*n)}}, nil
}

// DeleteItem removes a node or relationship. An element the server no
// longer has is reported as deleted.
func (p *Persistor) DeleteItem(ctx context.Context, item models.Item) (*models.Deletion, error) {
	switch {
	case item.IsNode():
		if err := p.client.DeleteNode(ctx, item.Node.ID); err != nil && !IsNotFound(err) {
			return nil, fmt.Errorf("deleting node %s: %w", item.Node.ID, err)
		}
		p.ids.forgetNode(item.Node.ID)

	case item.IsRelationship():
		key := p.ids.keyFor(*item.Relationship)
		if err := p.client.DeleteEdge(ctx, key); err != nil && !IsNotFound(err) {
			return nil, fmt.Errorf("deleting relationship %s: %w", item.Relationship.ID, err)
		}
		p.ids.forget(item.Relationship.ID)

	default:
		return nil, fmt.Errorf("%w: cannot delete %s", models.ErrIllegalAction, item)
	}

	return &models.Deletion{Kind: item.Kind, Item: item}, nil
}

// ConnectItems creates a relationship of the configured type and returns it
// together with fresh copies of both endpoints. Once the edge exists the
// call succeeds; an endpoint that cannot be re-read is returned as given.
func (p *Persistor) ConnectItems(ctx context.Context, source, target models.Node) (*models.PartialGraph, error) {
	edge, err := p.client.CreateEdge(ctx, &CreateEdgeRequest{
		Source:   source.ID,
		Target:   target.ID,
		Relation: p.defaults.RelationshipType,
	})
	if err != nil {
		return nil, fmt.Errorf("creating relationship %s -> %s: %w", source.ID, target.ID, err)
	}

	ends := []models.Node{source, target}
	var g errgroup.Group
	for i := range ends {
		id := ends[i].ID
		g.Go(func() error {
			n, err := p.client.GetNode(ctx, id)
			if err != nil {
				p.log.WithError(err).WithField("node_id", id).Warn("refreshing relationship endpoint failed, using canvas copy")
				return nil
			}
			ends[i] = toNode(*n)
			return nil
		})
	}
	_ = g.Wait()

	pg := &models.PartialGraph{
		Nodes:         ends[:1],
		Relationships: []models.Relationship{p.toRelationship(*edge)},
	}
	if source.ID != target.ID {
		pg.Nodes = ends
	}

	return pg, nil
}

// GetNodeNeighbours returns the neighbours of node that are not already on
// the canvas, with the relationships that connect them.
func (p *Persistor) GetNodeNeighbours(ctx context.Context, node models.Node, currentNeighbourIDs []string) (*models.PartialGraph, error) {
	sub, err := p.client.Neighbors(ctx, node.ID, p.defaults.NeighbourLimit)
	if err != nil {
		return nil, fmt.Errorf("fetching neighbours of %s: %w", node.ID, err)
	}

	known := make(map[string]struct{}, len(currentNeighbourIDs)+1)
	known[node.ID] = struct{}{}
	for _, id := range currentNeighbourIDs {
		known[id] = struct{}{}
	}

	pg := &models.PartialGraph{}
	fresh := make(map[string]struct{})
	for i := range sub.Nodes {
		if _, ok := known[sub.Nodes[i].ID]; ok {
			continue
		}
		pg.Nodes = append(pg.Nodes, toNode(sub.Nodes[i]))
		fresh[sub.Nodes[i].ID] = struct{}{}
	}

	// Edges among nodes already on the canvas are not re-sent.
	reachable := maps.Clone(known)
	maps.Copy(reachable, fresh)
	for _, r := range p.relationshipsWithin(sub.Edges, reachable) {
		_, s := fresh[r.StartNodeID]
		_, t := fresh[r.EndNodeID]
		if s || t {
			pg.Relationships = append(pg.Relationships, r)
		}
	}

	return pg, nil
}

// Seed loads the subgraph around a start node for an initial mount.
func (p *Persistor) Seed(ctx context.Context, startID string, hops int) (models.PartialGraph, error) {
	sub, err := p.client.Traverse(ctx, startID, hops)
	if err != nil {
		return models.PartialGraph{}, fmt.Errorf("loading seed %s: %w", startID, err)
	}

	pg := models.PartialGraph{Nodes: make([]models.Node, 0, len(sub.Nodes))}
	ids := make(map[string]struct{}, len(sub.Nodes))
	for i := range sub.Nodes {
		pg.Nodes = append(pg.Nodes, toNode(sub.Nodes[i]))
		ids[sub.Nodes[i].ID] = struct{}{}
	}
	pg.Relationships = p.relationshipsWithin(sub.Edges, ids)

	return pg, nil
}

// NodeUpdate fetches the current properties of a node as an external update.
func (p *Persistor) NodeUpdate(ctx context.Context, id string) (models.GraphUpdate, error) {
	n, err := p.client.GetNode(ctx, id)
	if err != nil {
		return models.GraphUpdate{}, fmt.Errorf("fetching node %s: %w", id, err)
	}
	return models.GraphUpdate{
		Nodes: []models.EntityUpdate{{ID: n.ID, Properties: toNode(*n).Properties}},
	}, nil
}

// relationshipsWithin converts edges whose endpoints both lie in ids.
func (p *Persistor) relationshipsWithin(edges []Edge, ids map[string]struct{}) []models.Relationship {
	var out []models.Relationship
	for i := range edges {
		_, okS := ids[edges[i].Source]
		_, okT := ids[edges[i].Target]
		if !okS || !okT {
			p.log.WithField("relation", edges[i].Relation).Debug("skipping edge to node outside result")
			continue
		}
		out = append(out, p.toRelationship(edges[i]))
	}
	return out
}

func (p *Persistor) toRelationship(e Edge) models.Relationship {
	return models.Relationship{
		ID:          p.ids.id(e.Key()),
		Type:        e.Relation,
		StartNodeID: e.Source,
		EndNodeID:   e.Target,
		Properties:  maps.Clone(e.Properties),
	}
}

// relTable maps server edge keys to canvas relationship ids.
type relTable struct {
	mu     sync.Mutex
	relIDs map[EdgeKey]string
	keys   map[string]EdgeKey
}

func newRelTable() *relTable {
	return &relTable{relIDs: make(map[EdgeKey]string), keys: make(map[string]EdgeKey)}
}

func (t *relTable) id(key EdgeKey) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if id, ok := t.relIDs[key]; ok {
		return id
	}
	id := uuid.NewString()
	t.relIDs[key] = id
	t.keys[id] = key
	return id
}

// keyFor resolves the server key of a canvas relationship. Relationships
// minted elsewhere fall back to their endpoints and type.
func (t *relTable) keyFor(r models.Relationship) EdgeKey {
	t.mu.Lock()
	defer t.mu.Unlock()

	if key, ok := t.keys[r.ID]; ok {
		return key
	}
	return EdgeKey{Source: r.StartNodeID, Target: r.EndNodeID, Relation: r.Type}
}

func (t *relTable) forget(relID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if key, ok := t.keys[relID]; ok {
		delete(t.relIDs, key)
		delete(t.keys, relID)
	}
}

func (t *relTable) forgetNode(nodeID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for key, id := range t.relIDs {
		if key.Source == nodeID || key.Target == nodeID {
			delete(t.relIDs, key)
			delete(t.keys, id)
		}
	}
}

func (t *relTable) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	clear(t.relIDs)
	clear(t.keys)
}

func (t *relTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.keys)
}

func toNode(n Node) models.Node {
	props := maps.Clone(n.Properties)
	if props == nil {
		props = map[string]any{}
	}
	if _, ok := props[nameProperty]; !ok && n.Label != "" {
		props[nameProperty] = n.Label
	}
	return models.Node{
		ID:         n.ID,
		Labels:     models.NormalizeLabels([]string{n.Type}),
		Properties: props,
	}
}
