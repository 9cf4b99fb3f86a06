// Package session binds one websocket client to one canvas. It decodes
// client commands into canvas gestures and forwards canvas notifications
// back as events.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/canvas/internal/canvas"
	"github.com/persistorai/canvas/internal/domain"
	"github.com/persistorai/canvas/internal/forms"
	"github.com/persistorai/canvas/internal/models"
	"github.com/persistorai/canvas/internal/view"
	"github.com/persistorai/canvas/internal/ws"
)

// Client commands.
const (
	CmdMount        = "mount"
	CmdProps        = "props"
	CmdSelect       = "select"
	CmdConnect      = "connect"
	CmdDelete       = "delete"
	CmdAdd          = "add"
	CmdZoomIn       = "zoom_in"
	CmdZoomOut      = "zoom_out"
	CmdExpand       = "expand"
	CmdPointerOver  = "pointer_over"
	CmdPointerOut   = "pointer_out"
	CmdEdit         = "edit"
	CmdAutocomplete = "autocomplete"
	CmdUpdate       = "update"
	CmdState        = "state"
)

const (
	defaultSeedHops = 2
	updateBuffer    = 16
)

// Seeder loads an initial graph around a start node.
type Seeder interface {
	Seed(ctx context.Context, startID string, hops int) (models.PartialGraph, error)
}

// UpdateSource delivers externally pushed property changes.
type UpdateSource interface {
	Subscribe(fn func(models.GraphUpdate)) func()
}

// Scope opens a collaborator and seeder private to one canvas. release is
// called once when the session closes.
type Scope func() (collab domain.DataCollaborator, seeder Seeder, release func())

// Config holds the shared dependencies of every session. When Scope is set
// it replaces Collaborator and Seeder.
type Config struct {
	Collaborator domain.DataCollaborator
	Seeder       Seeder       // optional
	Scope        Scope        // optional
	Updates      UpdateSource // optional
	Layout       domain.LayoutFactory
	Log          *logrus.Logger
}

// Session is the server side of one connected canvas.
type Session struct {
	cfg     Config
	out     Emitter
	log     *logrus.Logger
	surface *surface

	mu          sync.Mutex
	canvas      *canvas.Canvas
	unsubscribe func()
	release     func()
	updates     chan models.GraphUpdate
}

// New creates a session emitting to out. No canvas exists until the client
// sends a mount command.
func New(cfg Config, out Emitter) *Session {
	return &Session{
		cfg:     cfg,
		out:     out,
		log:     cfg.Log,
		surface: &surface{out: out},
	}
}

// HandleCommand implements ws.Handler.
func (s *Session) HandleCommand(ctx context.Context, cmd ws.Command) {
	if err := s.dispatch(ctx, cmd); err != nil {
		code := errorCode(err)
		s.log.WithError(err).WithFields(logrus.Fields{
			"command": cmd.Type,
			"code":    code,
		}).Debug("command rejected")
		if emitErr := s.out.Emit(ws.EventError, ws.ErrorMsg{Command: cmd.Type, Code: code, Message: err.Error()}); emitErr != nil {
			s.log.WithError(emitErr).Debug("error event dropped")
		}
	}
}

func (s *Session) dispatch(ctx context.Context, cmd ws.Command) error {
	if cmd.Type == CmdMount {
		var m mountCmd
		if err := decode(cmd, &m); err != nil {
			return err
		}
		return s.mount(ctx, m)
	}

	cv, err := s.current()
	if err != nil {
		return err
	}

	switch cmd.Type {
	case CmdProps:
		var p propsCmd
		if err := decode(cmd, &p); err != nil {
			return err
		}
		if p.Size != nil && s.surface.setSize(*p.Size) {
			return cv.Resize(p.view())
		}
		return cv.ReceiveProps(p.view())

	case CmdSelect:
		item, err := decodeItem(cmd)
		if err != nil {
			return err
		}
		return cv.Select(item)

	case CmdConnect:
		return cv.ToggleConnect()

	case CmdDelete:
		return cv.DeleteSelected()

	case CmdAdd:
		return cv.AddNode()

	case CmdZoomIn:
		_, err := cv.ZoomIn()
		return err

	case CmdZoomOut:
		_, err := cv.ZoomOut()
		return err

	case CmdExpand:
		var ref itemRef
		if err := decode(cmd, &ref); err != nil {
			return err
		}
		return cv.Expand(ref.ID)

	case CmdPointerOver:
		item, err := decodeItem(cmd)
		if err != nil {
			return err
		}
		return cv.PointerOver(item)

	case CmdPointerOut:
		item, err := decodeItem(cmd)
		if err != nil {
			return err
		}
		return cv.PointerOut(item)

	case CmdEdit:
		var e editCmd
		if err := decode(cmd, &e); err != nil {
			return err
		}
		f, err := forms.New(forms.Kind(e.Form))
		if err != nil {
			return err
		}
		if err := forms.Fill(f, e.Values); err != nil {
			return err
		}
		return cv.Edit(f)

	case CmdAutocomplete:
		var a autocompleteCmd
		if err := decode(cmd, &a); err != nil {
			return err
		}
		return cv.AutoCompleteCallback()(a.Relationships)

	case CmdUpdate:
		var u models.GraphUpdate
		if err := decode(cmd, &u); err != nil {
			return err
		}
		_, err := cv.ApplyExternalUpdate(u)
		return err

	case CmdState:
		snap, err := cv.State()
		if err != nil {
			return err
		}
		return s.out.Emit(ws.EventState, snap)

	default:
		return fmt.Errorf("%w: %q", errUnknownCommand, cmd.Type)
	}
}

// mount creates and starts the canvas. The canvas runs until ctx ends or
// Close is called.
func (s *Session) mount(ctx context.Context, m mountCmd) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.canvas != nil {
		return errAlreadyMounted
	}

	collab, seeder, release := s.backend()
	mounted := false
	defer func() {
		if !mounted {
			release()
		}
	}()

	props := canvas.Props{Nodes: m.Nodes, Relationships: m.Relationships, View: m.view()}
	if m.Seed != "" {
		if seeder == nil {
			return fmt.Errorf("%w: seed loading is not configured", models.ErrIllegalAction)
		}
		hops := m.Hops
		if hops <= 0 {
			hops = defaultSeedHops
		}
		pg, err := seeder.Seed(ctx, m.Seed, hops)
		if err != nil {
			return err
		}
		props.Nodes = append(props.Nodes, pg.Nodes...)
		props.Relationships = append(props.Relationships, pg.Relationships...)
	}
	if m.Size != nil {
		s.surface.setSize(*m.Size)
	}

	cv, err := canvas.New(props, canvas.Deps{
		Collaborator: collab,
		Layout:       s.cfg.Layout,
		Surface:      s.surface,
		Host:         remoteHost{out: s.out, log: s.log},
	}, s.log)
	if err != nil {
		return err
	}

	go cv.Run(ctx)
	s.canvas = cv
	s.release = release
	mounted = true

	if s.cfg.Updates != nil {
		s.updates = make(chan models.GraphUpdate, updateBuffer)
		s.unsubscribe = s.cfg.Updates.Subscribe(s.queueUpdate)
		go s.applyUpdates(cv, s.updates)
	}

	s.log.WithFields(logrus.Fields{
		"nodes":         len(props.Nodes),
		"relationships": len(props.Relationships),
	}).Info("canvas mounted")

	return nil
}

// queueUpdate is called from the update source and never blocks it.
func (s *Session) queueUpdate(u models.GraphUpdate) {
	select {
	case s.updates <- u:
	default:
		s.log.Warn("canvas update queue full, dropping external update")
	}
}

func (s *Session) applyUpdates(cv *canvas.Canvas, updates <-chan models.GraphUpdate) {
	for {
		select {
		case <-cv.Done():
			return
		case u := <-updates:
			if n, err := cv.ApplyExternalUpdate(u); err == nil && n > 0 {
				s.log.WithField("applied", n).Debug("external update applied")
			}
		}
	}
}

func (s *Session) backend() (domain.DataCollaborator, Seeder, func()) {
	if s.cfg.Scope == nil {
		return s.cfg.Collaborator, s.cfg.Seeder, func() {}
	}
	return s.cfg.Scope()
}

func (s *Session) current() (*canvas.Canvas, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.canvas == nil {
		return nil, errNotMounted
	}
	return s.canvas, nil
}

// Close stops the canvas, detaches from the update source and releases the
// canvas's collaborator scope.
func (s *Session) Close() {
	s.mu.Lock()
	cv, unsubscribe, release := s.canvas, s.unsubscribe, s.release
	s.unsubscribe, s.release = nil, nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if cv != nil {
		cv.Close()
	}
	if release != nil {
		release()
	}
}

type mountCmd struct {
	Nodes         []models.Node         `json:"nodes"`
	Relationships []models.Relationship `json:"relationships"`
	Seed          string                `json:"seed"`
	Hops          int                   `json:"hops"`
	propsCmd
}

type propsCmd struct {
	Style        models.Style `json:"style"`
	StyleVersion int          `json:"style_version"`
	Fullscreen   bool         `json:"fullscreen"`
	FrameHeight  float64      `json:"frame_height"`
	Size         *models.Size `json:"size"`
}

func (p propsCmd) view() view.Props {
	return view.Props{
		Style:        p.Style,
		StyleVersion: p.StyleVersion,
		Fullscreen:   p.Fullscreen,
		FrameHeight:  p.FrameHeight,
	}
}

type itemRef struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

type editCmd struct {
	Form   string            `json:"form"`
	Values map[string]string `json:"values"`
}

type autocompleteCmd struct {
	Relationships []models.Relationship `json:"relationships"`
}

func decode(cmd ws.Command, v any) error {
	if len(cmd.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(cmd.Data, v); err != nil {
		return fmt.Errorf("%w: %s: %w", errBadRequest, cmd.Type, err)
	}
	return nil
}

// decodeItem turns a {kind, id} reference into an item. The canvas resolves
// the element snapshot from its own graph.
func decodeItem(cmd ws.Command) (models.Item, error) {
	var ref itemRef
	if err := decode(cmd, &ref); err != nil {
		return models.Item{}, err
	}

	kind, err := models.ParseItemKind(ref.Kind)
	if err != nil {
		return models.Item{}, fmt.Errorf("%w: %w", errBadRequest, err)
	}

	switch kind {
	case models.KindNode:
		return models.NodeItem(models.Node{ID: ref.ID}), nil
	case models.KindRelationship:
		return models.RelationshipItem(models.Relationship{ID: ref.ID}), nil
	default:
		return models.Item{Kind: kind}, nil
	}
}
