package session

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/canvas/internal/metrics"
	"github.com/persistorai/canvas/internal/models"
	"github.com/persistorai/canvas/internal/ws"
)

// Emitter queues typed events for a connected client. *ws.Client implements it.
type Emitter interface {
	Emit(eventType string, data any) error
}

// MutationFailure is the body of a mutation_failed event.
type MutationFailure struct {
	Op      string `json:"op"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// remoteHost forwards canvas notifications to the client.
type remoteHost struct {
	out Emitter
	log *logrus.Logger
}

func (h remoteHost) emit(eventType string, data any) {
	if err := h.out.Emit(eventType, data); err != nil && !errors.Is(err, ws.ErrClientClosed) {
		h.log.WithError(err).WithField("event", eventType).Warn("dropping canvas event")
	}
}

func (h remoteHost) OnItemSelect(item models.Item)     { h.emit(ws.EventItemSelect, item) }
func (h remoteHost) OnItemMouseOver(item models.Item)  { h.emit(ws.EventItemMouseOver, item) }
func (h remoteHost) OnItemMouseOut(item models.Item)   { h.emit(ws.EventItemMouseOut, item) }
func (h remoteHost) OnGraphModelChange(s models.Stats) { h.emit(ws.EventGraphStats, s) }

func (h remoteHost) OnStateChange(s models.StateSnapshot) { h.emit(ws.EventState, s) }

func (h remoteHost) OnMutationFailed(op string, err error) {
	code := errorCode(err)
	metrics.ErrorsTotal.WithLabelValues(code).Inc()
	h.log.WithError(err).WithField("op", op).Info("mutation failed")
	h.emit(ws.EventMutationFailed, MutationFailure{Op: op, Code: code, Message: err.Error()})
}

// surface is the client-side drawing area. Its size is reported by the
// client and read by the layout engine on the canvas loop.
type surface struct {
	out Emitter

	mu   sync.Mutex
	size models.Size
}

func (s *surface) Size() models.Size {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// setSize records the client's surface size and reports whether it changed.
func (s *surface) setSize(size models.Size) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := s.size != size
	s.size = size
	return changed
}

func (s *surface) Emit(eventType string, data any) error {
	return s.out.Emit(eventType, data)
}
