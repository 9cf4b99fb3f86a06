package ws

import (
	"encoding/json"
	"time"
)

// Outbound event types.
const (
	EventGraph          = "graph"
	EventResize         = "resize"
	EventZoom           = "zoom"
	EventItemSelect     = "item_select"
	EventItemMouseOver  = "item_mouse_over"
	EventItemMouseOut   = "item_mouse_out"
	EventGraphStats     = "graph_stats"
	EventMutationFailed = "mutation_failed"
	EventState          = "state"
	EventError          = "error"
	EventShutdown       = "shutdown"
)

// Event is the structured message sent to WebSocket clients.
type Event struct {
	Type      string          `json:"type"`
	ID        uint64          `json:"id"`
	SessionID string          `json:"-"`
	Data      json.RawMessage `json:"data"`
	Time      time.Time       `json:"time"`
}

// Command is a message received from a WebSocket client. Data is decoded by
// the session according to Type.
type Command struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ErrorMsg is the body of an error event.
type ErrorMsg struct {
	Command string `json:"command,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
