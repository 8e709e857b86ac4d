// Package events publishes stream lifecycle events to an external bus.
package events

import (
	"context"
	"time"
)

// Event types.
const (
	TypeStreamStarted   = "stream_started"
	TypeStreamStopped   = "stream_stopped"
	TypeKeyRotated      = "key_rotated"
	TypePublishRejected = "publish_rejected"
)

// Stop reasons.
const (
	ReasonUnpublish = "unpublish"
	ReasonAdmin     = "admin"
)

// Event is a lifecycle change. It never carries the stream key.
type Event struct {
	Type        string `json:"type"`
	StreamID    string `json:"stream_id"`
	Reason      string `json:"reason,omitempty"`
	IPAddress   string `json:"ip_address,omitempty"`
	ViewerCount int    `json:"viewer_count"`
	Timestamp   int64  `json:"timestamp"`
}

// NewEvent creates an event stamped with the current time.
func NewEvent(eventType, streamID string) *Event {
	return &Event{
		Type:      eventType,
		StreamID:  streamID,
		Timestamp: time.Now().Unix(),
	}
}

// Publisher delivers events to the bus.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}

// Noop discards every event.
type Noop struct{}

func (Noop) Publish(context.Context, *Event) error { return nil }
func (Noop) Close() error                          { return nil }

var _ Publisher = Noop{}
