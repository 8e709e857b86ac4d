package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// StreamKeyPrefix is prepended to every generated stream key.
const StreamKeyPrefix = "sk_live_"

// DefaultTitle is used when no title is configured.
const DefaultTitle = "Live Stream"

// StreamState is the lifecycle state of the singleton stream.
type StreamState string

const (
	StateOffline StreamState = "offline"
	StateLive    StreamState = "live"
)

// Stream is the singleton stream record.
//
// Invariants: IsLive implies StartedAt != nil, and !IsLive implies
// ViewerCount == 0.
type Stream struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	StreamKey   string     `json:"streamKey"`
	IsLive      bool       `json:"isLive"`
	ViewerCount int        `json:"viewerCount"`
	StartedAt   *time.Time `json:"startedAt"`
	EndedAt     *time.Time `json:"endedAt"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// NewStream creates an offline stream record. A blank key gets a generated one.
func NewStream(title, key string) *Stream {
	key = strings.TrimSpace(key)
	if key == "" {
		key = GenerateStreamKey()
	}
	if strings.TrimSpace(title) == "" {
		title = DefaultTitle
	}
	return &Stream{
		ID:        uuid.New().String(),
		Title:     title,
		StreamKey: key,
		CreatedAt: time.Now(),
	}
}

// GenerateStreamKey returns a fresh opaque stream key.
func GenerateStreamKey() string {
	return StreamKeyPrefix + strings.ReplaceAll(uuid.New().String(), "-", "")[:20]
}

// State reports the lifecycle state.
func (s *Stream) State() StreamState {
	if s.IsLive {
		return StateLive
	}
	return StateOffline
}

// Clone returns a deep copy safe to hand out of the owning lock.
func (s *Stream) Clone() Stream {
	c := *s
	if s.StartedAt != nil {
		t := *s.StartedAt
		c.StartedAt = &t
	}
	if s.EndedAt != nil {
		t := *s.EndedAt
		c.EndedAt = &t
	}
	return c
}

// Status returns the broadcastable snapshot of the record.
func (s *Stream) Status() Status {
	return Status{
		IsLive:      s.IsLive,
		ViewerCount: s.ViewerCount,
		Title:       s.Title,
		StreamKey:   s.StreamKey,
	}
}

// LiveURL is the public entry point of the live stream for key.
func LiveURL(key string) string {
	return "/api/stream/live/" + key
}

// Status is the authoritative live state pushed to subscribers.
// StreamKey is only ever sent to admin-scoped subscribers.
type Status struct {
	IsLive      bool   `json:"isLive"`
	ViewerCount int    `json:"viewerCount"`
	Title       string `json:"title"`
	StreamKey   string `json:"streamKey,omitempty"`
}

// Public strips fields viewers must not see.
func (s Status) Public() Status {
	s.StreamKey = ""
	return s
}

// StatusView is the public HTTP status payload.
type StatusView struct {
	IsLive      bool    `json:"isLive"`
	ViewerCount int     `json:"viewerCount"`
	Title       string  `json:"title"`
	StreamURL   *string `json:"streamUrl"`
}

// AdminView is the admin dashboard payload.
type AdminView struct {
	Stream  Stream          `json:"stream"`
	RTMPURL string          `json:"rtmpUrl"`
	Logs    []ConnectionLog `json:"logs"`
}
