// Package canvas runs one interactive graph canvas.
//
// A Canvas owns its graph, interaction state, view bridge and mutation
// coordinator. All of them are touched only by the goroutine in Run; public
// methods post work to that loop and wait for the synchronous part to finish.
// Collaborator calls run on their own goroutines and post their
// continuations back, so results apply in the order they resolve.
package canvas

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/canvas/internal/domain"
	"github.com/persistorai/canvas/internal/graph"
	"github.com/persistorai/canvas/internal/interaction"
	"github.com/persistorai/canvas/internal/metrics"
	"github.com/persistorai/canvas/internal/models"
	"github.com/persistorai/canvas/internal/service"
	"github.com/persistorai/canvas/internal/view"
)

const jobBuffer = 64

// Props are the host inputs at mount.
type Props struct {
	Nodes         []models.Node
	Relationships []models.Relationship
	View          view.Props
}

// Deps are the external collaborators of a canvas.
type Deps struct {
	Collaborator domain.DataCollaborator
	Layout       domain.LayoutFactory
	Surface      domain.Surface
	Host         domain.Host
}

// resources are created once at mount and threaded into every handler.
type resources struct {
	graph *graph.Model
	state *interaction.State
	view  *view.Bridge
	coord *service.MutationCoordinator
}

// Canvas is a single interactive graph canvas.
type Canvas struct {
	res  *resources
	host domain.Host
	log  *logrus.Logger

	jobs   chan func()
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	calls  sync.WaitGroup

	stateSent bool
	lastState models.StateSnapshot
}

// New mounts a canvas over an initial graph. The loop does not start until
// Run is called.
func New(props Props, deps Deps, log *logrus.Logger) (*Canvas, error) {
	g, err := graph.FromGraph(props.Nodes, props.Relationships)
	if err != nil {
		return nil, fmt.Errorf("mounting canvas: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Canvas{
		host:   deps.Host,
		log:    log,
		jobs:   make(chan func(), jobBuffer),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	state := interaction.New()
	bridge := view.New(view.Config{
		Graph:   g,
		Host:    deps.Host,
		Surface: deps.Surface,
		Resizer: state,
		Handlers: view.Handlers{
			Select: c.selectItem,
			Expand: c.expandNode,
		},
		Layout: deps.Layout,
		Props:  props.View,
		Log:    log,
	})

	c.res = &resources{
		graph: g,
		state: state,
		view:  bridge,
		coord: service.NewMutationCoordinator(deps.Collaborator, g, bridge, deps.Host, loopRunner{c}, log),
	}

	return c, nil
}

// Run mounts the view and processes events until ctx is cancelled or Close
// is called. In-flight collaborator calls observe the cancellation and their
// continuations are dropped.
func (c *Canvas) Run(ctx context.Context) {
	defer close(c.done)

	stop := context.AfterFunc(ctx, c.cancel)
	defer stop()

	c.res.view.Mount()
	c.afterEvent()

	for {
		select {
		case <-c.ctx.Done():
			c.calls.Wait()
			return
		case job := <-c.jobs:
			job()
			c.afterEvent()
		}
	}
}

// Close stops the loop and waits for it to exit.
func (c *Canvas) Close() {
	c.cancel()
	<-c.done
}

// Done is closed when the loop has exited.
func (c *Canvas) Done() <-chan struct{} { return c.done }

// afterEvent closes every loop cycle: a deferred resize runs and the host
// sees the interaction state if it changed.
func (c *Canvas) afterEvent() {
	c.res.view.Flush()

	snap := c.res.state.Snapshot()
	if c.stateSent && snap.Equal(c.lastState) {
		return
	}
	c.stateSent = true
	c.lastState = snap
	c.host.OnStateChange(snap)
}

// post queues a job for the loop. It reports false once the canvas is closed.
func (c *Canvas) post(job func()) bool {
	select {
	case c.jobs <- job:
		return true
	case <-c.ctx.Done():
		return false
	}
}

// call runs fn on the loop and waits for its result.
func (c *Canvas) call(fn func() error) error {
	result := make(chan error, 1)
	if !c.post(func() { result <- fn() }) {
		return models.ErrClosed
	}

	select {
	case err := <-result:
		return err
	case <-c.done:
		return models.ErrClosed
	}
}

// loopRunner executes collaborator calls off the loop and posts their
// continuations back.
type loopRunner struct{ c *Canvas }

func (r loopRunner) Run(op string, call func(ctx context.Context) func()) {
	c := r.c
	c.calls.Add(1)
	metrics.InFlightRequests.Inc()

	go func() {
		defer c.calls.Done()

		cont := call(c.ctx)
		metrics.InFlightRequests.Dec()

		if !c.post(cont) {
			c.log.WithField("op", op).Debug("canvas closed, dropping result")
		}
	}()
}

// resolve refreshes an item from the graph so selections always carry the
// current snapshot.
func (c *Canvas) resolve(item models.Item) (models.Item, error) {
	switch {
	case item.IsNode():
		n, err := c.res.graph.FindNode(item.ID())
		if err != nil {
			return models.Item{}, err
		}
		return models.NodeItem(*n), nil
	case item.IsRelationship():
		r, err := c.res.graph.FindRelationship(item.ID())
		if err != nil {
			return models.Item{}, err
		}
		return models.RelationshipItem(*r), nil
	case item.Kind == models.KindNode || item.Kind == models.KindRelationship:
		return models.Item{}, fmt.Errorf("%w: %s without element", models.ErrValidationFailed, item.Kind)
	default:
		return item, nil
	}
}

func illegal(action string) error {
	return fmt.Errorf("%w: %s", models.ErrIllegalAction, action)
}

// notFound logs a lookup failure and passes it through.
func (c *Canvas) notFound(err error, item string) error {
	if errors.Is(err, models.ErrNotFound) {
		c.log.WithField("item", item).Debug("gesture on unknown element ignored")
	}
	return err
}
