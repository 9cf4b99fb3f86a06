// Package service coordinates graph mutations between the canvas, its data
// collaborator and its view.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/canvas/internal/domain"
	"github.com/persistorai/canvas/internal/graph"
	"github.com/persistorai/canvas/internal/metrics"
	"github.com/persistorai/canvas/internal/models"
)

// Mutation operation names used in logs, metrics and failure reports.
const (
	OpCreate         = "create"
	OpDelete         = "delete"
	OpConnect        = "connect"
	OpExpand         = "expand"
	OpAutocomplete   = "autocomplete"
	OpExternalUpdate = "external_update"
	OpEdit           = "edit"
)

// Runner executes a blocking collaborator call off the canvas loop and runs
// the continuation it returns back on the loop. Continuations run in the
// order their calls finish.
type Runner interface {
	Run(op string, call func(ctx context.Context) func())
}

// View is the part of the view bridge the coordinator drives.
type View interface {
	Propagate()
	NodeClosed(node models.Node, removed []models.Relationship)
	RelationshipClosed(rel models.Relationship)
	ClearHover()
}

// FailureReporter is told about mutations that did not apply.
type FailureReporter interface {
	OnMutationFailed(op string, err error)
}

// MutationCoordinator is the only writer of the canvas graph. Every method
// must be called on the canvas loop.
type MutationCoordinator struct {
	collab   domain.DataCollaborator
	graph    *graph.Model
	view     View
	reporter FailureReporter
	runner   Runner
	log      *logrus.Logger
}

// NewMutationCoordinator creates a MutationCoordinator.
func NewMutationCoordinator(
	collab domain.DataCollaborator, g *graph.Model, view View, reporter FailureReporter, runner Runner, log *logrus.Logger,
) *MutationCoordinator {
	return &MutationCoordinator{collab: collab, graph: g, view: view, reporter: reporter, runner: runner, log: log}
}

// CreateNode asks the collaborator for a new node and merges the result.
func (c *MutationCoordinator) CreateNode() {
	c.runner.Run(OpCreate, func(ctx context.Context) func() {
		pg, err := c.collab.AddItem(ctx, models.NodeItemSpec)
		return func() {
			if err != nil {
				c.reject(OpCreate, err)
				return
			}
			c.merge(OpCreate, pg)
		}
	})
}

// ConnectItems asks the collaborator for a relationship between two nodes.
// The endpoints are snapshots taken when the gesture completed.
func (c *MutationCoordinator) ConnectItems(source, target models.Node) {
	c.runner.Run(OpConnect, func(ctx context.Context) func() {
		pg, err := c.collab.ConnectItems(ctx, source, target)
		return func() {
			if err != nil {
				c.reject(OpConnect, err)
				return
			}
			c.merge(OpConnect, pg)
		}
	})
}

// DeleteItem asks the collaborator to delete item. On resolution the element
// is removed from the graph; a node takes its incident relationships with it.
// done receives the deletion and the ids of every removed relationship.
func (c *MutationCoordinator) DeleteItem(item models.Item, done func(d models.Deletion, removedRelIDs []string)) {
	c.runner.Run(OpDelete, func(ctx context.Context) func() {
		d, err := c.collab.DeleteItem(ctx, item)
		return func() {
			if err != nil {
				c.reject(OpDelete, err)
				return
			}

			deletion := models.Deletion{Kind: item.Kind, Item: item}
			if d != nil && !d.Item.IsNone() {
				deletion = *d
			}

			removed, ok := c.remove(deletion)
			if !ok {
				return
			}

			c.record(OpDelete, "ok")
			if done != nil {
				done(deletion, removed)
			}
		}
	})
}

// remove applies a resolved deletion and pushes the view. It reports false
// when the element was already gone.
func (c *MutationCoordinator) remove(d models.Deletion) ([]string, bool) {
	switch {
	case d.Item.IsRelationship():
		id := d.Item.ID()
		found, err := c.graph.FindRelationship(id)
		if err != nil {
			c.log.WithField("relationship_id", id).Debug("deleted relationship already absent")
			return nil, false
		}
		rel := *found
		c.graph.RemoveRelationship(id)
		c.view.RelationshipClosed(rel)
		return []string{id}, true

	case d.Item.IsNode():
		removed, err := c.graph.RemoveNode(d.Item.ID())
		if err != nil {
			c.log.WithError(err).Debug("deleted node already absent")
			return nil, false
		}
		c.view.NodeClosed(*d.Item.Node, removed)

		ids := make([]string, len(removed))
		for i := range removed {
			ids[i] = removed[i].ID
		}
		return ids, true

	default:
		c.log.WithField("item", d.Item.String()).Warn("deletion of unsupported item ignored")
		return nil, false
	}
}

// ExpandNeighbours fetches the neighbourhood of node and merges it. The ids
// of neighbours already on the canvas are sent along so the collaborator can
// skip them.
func (c *MutationCoordinator) ExpandNeighbours(node models.Node) {
	current := c.graph.NeighbourIDs(node.ID)

	c.runner.Run(OpExpand, func(ctx context.Context) func() {
		pg, err := c.collab.GetNodeNeighbours(ctx, node, current)
		return func() {
			if err != nil {
				c.reject(OpExpand, err)
				return
			}
			if c.merge(OpExpand, pg) {
				c.view.ClearHover()
			}
		}
	})
}

// AddInternalRelationships merges relationships found between nodes already
// on the canvas.
func (c *MutationCoordinator) AddInternalRelationships(rels []models.Relationship) error {
	if len(rels) == 0 {
		return nil
	}
	if err := c.graph.AddInternalRelationships(rels...); err != nil {
		c.invalid(OpAutocomplete, err)
		return err
	}

	c.record(OpAutocomplete, "ok")
	c.view.Propagate()
	c.view.ClearHover()

	return nil
}

// ApplyExternalUpdate replaces the properties of every entity named in the
// update. Unknown ids are skipped. It returns the number of entities changed.
func (c *MutationCoordinator) ApplyExternalUpdate(u models.GraphUpdate) int {
	applied := 0
	apply := func(kind models.ItemKind, updates []models.EntityUpdate) {
		for _, eu := range updates {
			if err := c.graph.SetProperties(kind, eu); err != nil {
				c.log.WithError(err).WithField("id", eu.ID).Debug("external update skipped")
				continue
			}
			applied++
		}
	}

	apply(models.KindNode, u.Nodes)
	apply(models.KindRelationship, u.Relationships)

	if applied > 0 {
		c.record(OpExternalUpdate, "ok")
		c.view.Propagate()
	}

	return applied
}

// RelabelNode replaces the labels of a node.
func (c *MutationCoordinator) RelabelNode(id string, labels []string) error {
	if err := c.graph.SetNodeLabels(id, labels); err != nil {
		return fmt.Errorf("relabel: %w", err)
	}
	c.record(OpEdit, "ok")
	c.view.Propagate()
	return nil
}

// RetypeRelationship renames the type of a relationship.
func (c *MutationCoordinator) RetypeRelationship(id, typ string) error {
	if err := c.graph.SetRelationshipType(id, typ); err != nil {
		return fmt.Errorf("retype: %w", err)
	}
	c.record(OpEdit, "ok")
	c.view.Propagate()
	return nil
}

// merge applies a partial graph and pushes the view as one step. It reports
// whether anything was applied.
func (c *MutationCoordinator) merge(op string, pg *models.PartialGraph) bool {
	if pg.Empty() {
		c.record(op, "empty")
		return false
	}

	if err := c.graph.Merge(*pg); err != nil {
		c.invalid(op, err)
		return false
	}

	c.log.WithFields(logrus.Fields{
		"op":            op,
		"nodes":         len(pg.Nodes),
		"relationships": len(pg.Relationships),
	}).Debug("partial graph merged")

	c.record(op, "ok")
	c.view.Propagate()

	return true
}

func (c *MutationCoordinator) reject(op string, err error) {
	if errors.Is(err, context.Canceled) {
		c.log.WithField("op", op).Debug("mutation cancelled")
		return
	}

	c.log.WithError(err).WithField("op", op).Warn("mutation rejected")
	c.record(op, "rejected")
	metrics.ErrorsTotal.WithLabelValues("mutation_rejected").Inc()
	c.reporter.OnMutationFailed(op, fmt.Errorf("%w: %s: %w", models.ErrMutationRejected, op, err))
}

func (c *MutationCoordinator) invalid(op string, err error) {
	c.log.WithError(err).WithField("op", op).Warn("partial graph rejected")
	c.record(op, "invalid")
	metrics.ErrorsTotal.WithLabelValues("invalid_topology").Inc()
	c.reporter.OnMutationFailed(op, fmt.Errorf("%s: %w", op, err))
}

func (c *MutationCoordinator) record(op, result string) {
	metrics.MutationsTotal.WithLabelValues(op, result).Inc()
}
