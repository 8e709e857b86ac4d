package domain

// WebSocket message types from client.
const (
	MsgTypePing = "ping"
)

// WebSocket message types to client.
const (
	MsgTypeStreamStatus  = "stream_status"
	MsgTypeConnectionLog = "connection_log"
	MsgTypePong          = "pong"
)

// EventKind classifies a hub broadcast.
type EventKind string

const (
	// EventStatus is a liveness change.
	EventStatus EventKind = "status"
	// EventViewerCount is a viewer count change.
	EventViewerCount EventKind = "viewer_count"
	// EventKeyRotated is a key rotation. Only admins see it.
	EventKeyRotated EventKind = "key_rotated"
)

// AdminOnly reports whether viewers must not receive events of kind k.
func (k EventKind) AdminOnly() bool {
	return k == EventKeyRotated
}

// BaseMessage is the base structure for all WebSocket messages.
type BaseMessage struct {
	Type string `json:"type"`
}

// StatusMessage carries a stream status snapshot.
type StatusMessage struct {
	Type  string    `json:"type"`
	Event EventKind `json:"event,omitempty"`
	Data  Status    `json:"data"`
}

// ConnectionLogMessage carries a freshly appended log entry to admins.
type ConnectionLogMessage struct {
	Type string        `json:"type"`
	Data ConnectionLog `json:"data"`
}

// PongMessage answers a client ping.
type PongMessage struct {
	Type string `json:"type"`
}
