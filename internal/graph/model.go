// Package graph holds the canonical in-memory property graph of a canvas.
//
// A Model is not safe for concurrent use. It is owned by the canvas loop and
// mutated only by the mutation coordinator; everything else reads it through
// the domain.GraphReader methods.
package graph

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"github.com/persistorai/canvas/internal/models"
)

// Model is the canonical node and relationship store.
type Model struct {
	nodes map[string]*models.Node
	rels  map[string]*models.Relationship

	// Node and relationship ids live in separate id-spaces.
	retiredNodes map[string]struct{}
	retiredRels  map[string]struct{}
}

// New returns an empty Model.
func New() *Model {
	return &Model{
		nodes:        make(map[string]*models.Node),
		rels:         make(map[string]*models.Relationship),
		retiredNodes: make(map[string]struct{}),
		retiredRels:  make(map[string]struct{}),
	}
}

// FromGraph builds a Model from an initial node and relationship list.
func FromGraph(nodes []models.Node, rels []models.Relationship) (*Model, error) {
	m := New()
	if err := m.Merge(models.PartialGraph{Nodes: nodes, Relationships: rels}); err != nil {
		return nil, fmt.Errorf("initial graph: %w", err)
	}
	return m, nil
}

// AddNodes upserts nodes by id. An existing node has its labels and
// properties replaced in place.
func (m *Model) AddNodes(nodes ...models.Node) error {
	if err := m.checkNodes(nodes); err != nil {
		return err
	}
	m.putNodes(nodes)
	return nil
}

// AddRelationships inserts relationships whose endpoints are already present.
// The whole batch is rejected with ErrInvalidTopology if any endpoint is missing.
func (m *Model) AddRelationships(rels ...models.Relationship) error {
	if err := m.checkRelationships(rels, nil); err != nil {
		return err
	}
	m.putRelationships(rels)
	return nil
}

// AddInternalRelationships inserts relationships discovered between nodes
// that are already on the canvas. It carries the same contract as
// AddRelationships; no node insert is implied.
func (m *Model) AddInternalRelationships(rels ...models.Relationship) error {
	return m.AddRelationships(rels...)
}

// Merge applies a partial graph as one step: nodes first, then relationships.
// Validation happens before anything is applied, so a rejected merge leaves
// the model untouched.
func (m *Model) Merge(pg models.PartialGraph) error {
	if err := m.checkNodes(pg.Nodes); err != nil {
		return err
	}

	incoming := make(map[string]struct{}, len(pg.Nodes))
	for i := range pg.Nodes {
		incoming[pg.Nodes[i].ID] = struct{}{}
	}

	if err := m.checkRelationships(pg.Relationships, incoming); err != nil {
		return err
	}

	m.putNodes(pg.Nodes)
	m.putRelationships(pg.Relationships)

	return nil
}

// RemoveRelationship deletes a relationship by id. Absent ids are a no-op.
func (m *Model) RemoveRelationship(id string) {
	if _, ok := m.rels[id]; !ok {
		return
	}
	delete(m.rels, id)
	m.retiredRels[id] = struct{}{}
}

// RemoveNode deletes a node together with its incident relationships and
// returns the relationships that were removed.
func (m *Model) RemoveNode(id string) ([]models.Relationship, error) {
	if _, ok := m.nodes[id]; !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrNodeNotFound, id)
	}

	var removed []models.Relationship
	for relID, r := range m.rels {
		if r.Touches(id) {
			removed = append(removed, r.Clone())
			delete(m.rels, relID)
			m.retiredRels[relID] = struct{}{}
		}
	}

	delete(m.nodes, id)
	m.retiredNodes[id] = struct{}{}

	slices.SortFunc(removed, func(a, b models.Relationship) int { return cmp.Compare(a.ID, b.ID) })

	return removed, nil
}

// FindNode returns a copy of the node with the given id.
func (m *Model) FindNode(id string) (*models.Node, error) {
	n, ok := m.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrNodeNotFound, id)
	}
	c := n.Clone()
	return &c, nil
}

// FindRelationship returns a copy of the relationship with the given id.
func (m *Model) FindRelationship(id string) (*models.Relationship, error) {
	r, ok := m.rels[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrRelationshipNotFound, id)
	}
	c := r.Clone()
	return &c, nil
}

// SetProperties routes an external update to the node or relationship
// collection by kind.
func (m *Model) SetProperties(kind models.ItemKind, u models.EntityUpdate) error {
	switch kind {
	case models.KindNode:
		return m.SetNodeProperties(u)
	case models.KindRelationship:
		return m.SetRelationshipProperties(u)
	default:
		return fmt.Errorf("%w: cannot set properties on %q", models.ErrIllegalAction, kind)
	}
}

// SetNodeProperties replaces a node's property map wholesale.
func (m *Model) SetNodeProperties(u models.EntityUpdate) error {
	n, ok := m.nodes[u.ID]
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrNodeNotFound, u.ID)
	}
	n.Properties = clone(u.Properties)
	return nil
}

// SetRelationshipProperties replaces a relationship's property map wholesale.
func (m *Model) SetRelationshipProperties(u models.EntityUpdate) error {
	r, ok := m.rels[u.ID]
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrRelationshipNotFound, u.ID)
	}
	r.Properties = clone(u.Properties)
	return nil
}

// SetNodeLabels replaces a node's label set.
func (m *Model) SetNodeLabels(id string, labels []string) error {
	n, ok := m.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrNodeNotFound, id)
	}
	n.Labels = models.NormalizeLabels(labels)
	return nil
}

// SetRelationshipType renames a relationship type. Endpoints are unchanged.
func (m *Model) SetRelationshipType(id, typ string) error {
	r, ok := m.rels[id]
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrRelationshipNotFound, id)
	}
	r.Type = typ
	return nil
}

// NeighbourIDs returns the sorted ids of nodes adjacent to nodeID.
func (m *Model) NeighbourIDs(nodeID string) []string {
	seen := make(map[string]struct{})
	for _, r := range m.rels {
		if r.Touches(nodeID) {
			if other := r.Other(nodeID); other != nodeID {
				seen[other] = struct{}{}
			}
		}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	return ids
}

// Nodes returns copies of all nodes ordered by id.
func (m *Model) Nodes() []models.Node {
	out := make([]models.Node, 0, len(m.nodes))
	for _, n := range m.nodes {
		out = append(out, n.Clone())
	}
	slices.SortFunc(out, func(a, b models.Node) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// Relationships returns copies of all relationships ordered by id.
func (m *Model) Relationships() []models.Relationship {
	out := make([]models.Relationship, 0, len(m.rels))
	for _, r := range m.rels {
		out = append(out, r.Clone())
	}
	slices.SortFunc(out, func(a, b models.Relationship) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// Snapshot returns a detached copy of the whole graph.
func (m *Model) Snapshot() models.PartialGraph {
	return models.PartialGraph{Nodes: m.Nodes(), Relationships: m.Relationships()}
}

// Stats returns aggregate counts and the distinct labels and relationship types.
func (m *Model) Stats() models.Stats {
	var labels, types []string
	for _, n := range m.nodes {
		labels = append(labels, n.Labels...)
	}
	for _, r := range m.rels {
		types = append(types, r.Type)
	}

	return models.Stats{
		NodeCount:         len(m.nodes),
		RelationshipCount: len(m.rels),
		Labels:            models.NormalizeLabels(labels),
		RelationshipTypes: models.NormalizeLabels(types),
	}
}

func (m *Model) checkNodes(nodes []models.Node) error {
	for i := range nodes {
		id := nodes[i].ID
		if id == "" {
			return fmt.Errorf("%w: node without id", models.ErrInvalidTopology)
		}
		if _, gone := m.retiredNodes[id]; gone {
			return fmt.Errorf("%w: node %s", models.ErrIDRetired, id)
		}
	}
	return nil
}

// checkRelationships verifies every endpoint exists in the model or in the
// optional set of nodes arriving in the same merge.
func (m *Model) checkRelationships(rels []models.Relationship, incoming map[string]struct{}) error {
	has := func(id string) bool {
		if _, ok := m.nodes[id]; ok {
			return true
		}
		_, ok := incoming[id]
		return ok
	}

	for i := range rels {
		r := &rels[i]
		if r.ID == "" {
			return fmt.Errorf("%w: relationship without id", models.ErrInvalidTopology)
		}
		if _, gone := m.retiredRels[r.ID]; gone {
			return fmt.Errorf("%w: relationship %s", models.ErrIDRetired, r.ID)
		}
		if !has(r.StartNodeID) || !has(r.EndNodeID) {
			return fmt.Errorf("%w: relationship %s references missing node (%s -> %s)",
				models.ErrInvalidTopology, r.ID, r.StartNodeID, r.EndNodeID)
		}
	}
	return nil
}

func (m *Model) putNodes(nodes []models.Node) {
	for i := range nodes {
		n := nodes[i].Clone()
		n.Labels = models.NormalizeLabels(n.Labels)
		m.nodes[n.ID] = &n
	}
}

func (m *Model) putRelationships(rels []models.Relationship) {
	for i := range rels {
		r := rels[i].Clone()
		m.rels[r.ID] = &r
	}
}

func clone(p map[string]any) map[string]any {
	if p == nil {
		return map[string]any{}
	}
	return maps.Clone(p)
}
