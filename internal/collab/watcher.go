package collab

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/canvas/internal/models"
)

const (
	initialBackoff    = 1 * time.Second
	maxBackoff        = 30 * time.Second
	backoffMultiplier = 2
)

// UpdateFetcher turns a changed node id into a property update.
type UpdateFetcher interface {
	NodeUpdate(ctx context.Context, id string) (models.GraphUpdate, error)
}

// remoteEvent is an event frame from the Persistor change stream.
type remoteEvent struct {
	Type string          `json:"type"`
	ID   uint64          `json:"id"`
	Data json.RawMessage `json:"data"`
}

type subscribeMsg struct {
	Type        string `json:"type"`
	LastEventID uint64 `json:"last_event_id"`
}

// Watcher follows the Persistor change stream and fans node property
// changes out to subscribed canvases. It resumes from the last seen event
// id after a reconnect.
type Watcher struct {
	url    string
	apiKey string
	fetch  UpdateFetcher
	log    *logrus.Logger

	lastEventID atomic.Uint64

	mu      sync.RWMutex
	nextSub uint64
	subs    map[uint64]func(models.GraphUpdate)
}

// NewWatcher creates a Watcher for the server at baseURL.
func NewWatcher(baseURL, apiKey string, fetch UpdateFetcher, log *logrus.Logger) (*Watcher, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing persistor url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("persistor url: unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/api/v1/ws"

	return &Watcher{
		url:    u.String(),
		apiKey: apiKey,
		fetch:  fetch,
		log:    log,
		subs:   make(map[uint64]func(models.GraphUpdate)),
	}, nil
}

// Subscribe registers fn for every node update. The returned func removes it.
// fn is called from the watcher goroutine and must not block.
func (w *Watcher) Subscribe(fn func(models.GraphUpdate)) func() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.nextSub++
	id := w.nextSub
	w.subs[id] = fn

	return func() {
		w.mu.Lock()
		delete(w.subs, id)
		w.mu.Unlock()
	}
}

// Start launches the stream loop in a background goroutine.
func (w *Watcher) Start(ctx context.Context) {
	go w.listen(ctx)
}

// listen connects, forwards events and reconnects with backoff until ctx ends.
func (w *Watcher) listen(ctx context.Context) {
	backoff := initialBackoff

	for {
		if ctx.Err() != nil {
			return
		}

		err := w.subscribeAndForward(ctx)
		if err == nil || ctx.Err() != nil {
			return
		}

		w.log.WithError(err).WithField("retry_in", backoff).
			Warn("persistor change stream lost, reconnecting")

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff = nextBackoff(backoff)
	}
}

func (w *Watcher) subscribeAndForward(ctx context.Context) error {
	opts := &websocket.DialOptions{}
	if w.apiKey != "" {
		opts.HTTPHeader = http.Header{"Authorization": []string{"Bearer " + w.apiKey}}
	}

	conn, _, err := websocket.Dial(ctx, w.url, opts)
	if err != nil {
		return fmt.Errorf("dialing change stream: %w", err)
	}
	defer conn.CloseNow() //nolint:errcheck // best-effort close on teardown

	if err := wsjson.Write(ctx, conn, subscribeMsg{Type: "subscribe", LastEventID: w.lastEventID.Load()}); err != nil {
		return fmt.Errorf("subscribing: %w", err)
	}

	w.log.WithField("url", w.url).Info("persistor change stream connected")

	for {
		var ev remoteEvent
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("reading change stream: %w", err)
		}
		w.handleEvent(ctx, ev)
	}
}

func (w *Watcher) handleEvent(ctx context.Context, ev remoteEvent) {
	if ev.Type == "reset" {
		w.log.Info("persistor change stream reset, older updates skipped")
		return
	}
	if ev.ID > 0 {
		w.lastEventID.Store(ev.ID)
	}

	var payload struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	}
	if err := json.Unmarshal(ev.Data, &payload); err != nil || payload.ID == "" {
		w.log.WithField("type", ev.Type).Debug("change without node id ignored")
		return
	}
	if strings.HasSuffix(ev.Type, ".deleted") || strings.HasPrefix(ev.Type, "edge.") {
		return
	}

	update, err := w.fetch.NodeUpdate(ctx, payload.ID)
	if err != nil {
		w.log.WithError(err).WithField("node_id", payload.ID).Debug("change fetch failed")
		return
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, fn := range w.subs {
		fn(update)
	}
}

// nextBackoff doubles the current backoff with ±25% jitter, capped at maxBackoff.
func nextBackoff(current time.Duration) time.Duration {
	next := min(current*backoffMultiplier, maxBackoff)
	jitter := float64(next) * (0.75 + rand.Float64()*0.5) //nolint:gosec // jitter doesn't need crypto rand.
	return time.Duration(jitter)
}
