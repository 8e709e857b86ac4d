package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zawrotmc/streamflow/internal/audit"
	"github.com/zawrotmc/streamflow/internal/connlog"
	"github.com/zawrotmc/streamflow/internal/domain"
	"github.com/zawrotmc/streamflow/internal/events"
	"github.com/zawrotmc/streamflow/internal/ingest"
	"github.com/zawrotmc/streamflow/internal/metrics"
	"github.com/zawrotmc/streamflow/internal/session"
	"github.com/zawrotmc/streamflow/pkg/log"
)

var (
	ErrInvalidMetadata    = errors.New("invalid ingest metadata")
	ErrKeyMismatch        = errors.New("stream key does not match")
	ErrStreamNotFound     = errors.New("stream not found or offline")
	ErrUnauthorized       = errors.New("not authenticated")
	ErrPasswordRequired   = errors.New("password is required")
	ErrInvalidCredentials = errors.New("invalid password")
)

// PlaylistFile is the HLS playlist whose fetch counts as a view.
const PlaylistFile = "index.m3u8"

// Options configures a Coordinator.
type Options struct {
	// AdminPasswordHash is the bcrypt hash of the admin password. Empty
	// rejects every login.
	AdminPasswordHash string
	RTMPURL       string
	AdminLogLimit int
}

// Coordinator owns the stream record. Every mutation happens under mu and
// is handed to the broadcaster and the stream gauges before mu is released,
// so subscribers and metrics see changes in the order they were applied.
type Coordinator struct {
	mu      sync.Mutex
	stream  *domain.Stream
	liveKey string // key the running session was accepted with

	logs     *connlog.Log
	sessions session.Store
	hub      Broadcaster
	events   events.Publisher
	metrics  *metrics.Metrics
	gate     *ingest.Gate

	opts Options
	now  func() time.Time
}

// NewCoordinator takes ownership of stream. events and m may be nil.
func NewCoordinator(stream *domain.Stream, logs *connlog.Log, sessions session.Store, hub Broadcaster, pub events.Publisher, m *metrics.Metrics, opts Options) *Coordinator {
	if pub == nil {
		pub = events.Noop{}
	}
	if opts.AdminLogLimit <= 0 {
		opts.AdminLogLimit = 20
	}
	c := &Coordinator{
		stream:   stream,
		logs:     logs,
		sessions: sessions,
		hub:      hub,
		events:   pub,
		metrics:  m,
		opts:     opts,
		now:      time.Now,
	}
	c.gate = ingest.NewGate(c, c)
	m.SetStream(stream.IsLive, stream.ViewerCount)
	return c
}

var _ StreamService = (*Coordinator)(nil)

// CurrentKey implements ingest.KeySource.
func (c *Coordinator) CurrentKey() (string, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream.ID, c.stream.StreamKey
}

// AppendLog implements ingest.LogAppender.
func (c *Coordinator) AppendLog(ctx context.Context, entry domain.ConnectionLog) {
	if entry.StreamID == "" {
		c.mu.Lock()
		entry.StreamID = c.stream.ID
		c.mu.Unlock()
	}
	c.hub.PublishLog(c.logs.Append(entry))
}

// appendLocked records an INFO entry. Callers hold mu.
func (c *Coordinator) appendLocked(msg, ip string) {
	if ip == "" {
		ip = ingest.UnknownIP
	}
	entry := c.logs.Append(domain.ConnectionLog{
		StreamID:  c.stream.ID,
		Level:     domain.LevelInfo,
		Message:   msg,
		IPAddress: ip,
	})
	c.hub.PublishLog(entry)
}

// OnPrePublish authorizes a publish attempt.
func (c *Coordinator) OnPrePublish(ctx context.Context, ev ingest.Event) ingest.Decision {
	d := c.gate.Authorize(ctx, ev)
	c.metrics.PublishDecision(d.Allow, string(d.Reason))
	if !d.Allow {
		e := events.NewEvent(events.TypePublishRejected, c.streamID())
		e.Reason = string(d.Reason)
		e.IPAddress = d.Metadata.IPAddress
		c.emit(ctx, e)
	}
	return d
}

// OnPostPublish moves the stream live once the engine confirms the publish.
func (c *Coordinator) OnPostPublish(ctx context.Context, ev ingest.Event) error {
	md, key, err := parseEvent(ev)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if key != c.stream.StreamKey {
		c.mu.Unlock()
		return ErrKeyMismatch
	}
	if c.stream.IsLive {
		c.mu.Unlock()
		return nil
	}

	now := c.now()
	c.stream.IsLive = true
	c.stream.StartedAt = &now
	c.stream.EndedAt = nil
	c.stream.ViewerCount = 0
	c.liveKey = key
	c.metrics.SetStream(true, 0)
	c.hub.Publish(c.stream.Status(), domain.EventStatus)
	c.appendLocked("Stream is now live", md.IPAddress)
	streamID := c.stream.ID
	c.mu.Unlock()

	e := events.NewEvent(events.TypeStreamStarted, streamID)
	e.IPAddress = md.IPAddress
	c.emit(ctx, e)

	l := log.Ctx(ctx)
	l.Info().Str(log.FieldStreamID, streamID).Str(log.FieldClientIP, md.IPAddress).Msg("stream is live")
	return nil
}

// OnUnpublish takes the stream offline when its publisher disconnects.
func (c *Coordinator) OnUnpublish(ctx context.Context, ev ingest.Event) error {
	md, key, err := parseEvent(ev)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if key != c.stream.StreamKey && (c.liveKey == "" || key != c.liveKey) {
		c.mu.Unlock()
		return ErrKeyMismatch
	}
	if !c.stream.IsLive {
		c.mu.Unlock()
		return nil
	}

	c.goOfflineLocked()
	c.hub.Publish(c.stream.Status(), domain.EventStatus)
	c.appendLocked("Stream ended", md.IPAddress)
	streamID := c.stream.ID
	c.mu.Unlock()

	e := events.NewEvent(events.TypeStreamStopped, streamID)
	e.Reason = events.ReasonUnpublish
	e.IPAddress = md.IPAddress
	c.emit(ctx, e)

	l := log.Ctx(ctx)
	l.Info().Str(log.FieldStreamID, streamID).Msg("stream ended")
	return nil
}

// Stop forces the stream offline. Stopping an offline stream succeeds.
func (c *Coordinator) Stop(ctx context.Context, ip string) error {
	c.mu.Lock()
	wasLive := c.stream.IsLive
	if wasLive {
		c.goOfflineLocked()
	}
	c.hub.Publish(c.stream.Status(), domain.EventStatus)
	c.appendLocked("Stream manually stopped by admin", ip)
	streamID := c.stream.ID
	c.mu.Unlock()

	detail := "offline"
	if wasLive {
		detail = "live"
	}
	audit.Record(ctx, audit.Entry{
		Action:    audit.ActionStop,
		SessionID: sessionIDFrom(ctx),
		StreamID:  streamID,
		Detail:    detail,
	}, "stream stopped by admin")
	if wasLive {
		e := events.NewEvent(events.TypeStreamStopped, streamID)
		e.Reason = events.ReasonAdmin
		e.IPAddress = ip
		c.emit(ctx, e)
	}
	return nil
}

// goOfflineLocked applies the Live to Offline transition. StartedAt is kept.
func (c *Coordinator) goOfflineLocked() {
	now := c.now()
	c.stream.IsLive = false
	c.stream.EndedAt = &now
	c.stream.ViewerCount = 0
	c.liveKey = ""
	c.metrics.SetStream(false, 0)
}

// RegenerateKey rotates the stream key without touching liveness.
func (c *Coordinator) RegenerateKey(ctx context.Context, ip string) (string, error) {
	c.mu.Lock()
	key := domain.GenerateStreamKey()
	c.stream.StreamKey = key
	c.hub.Publish(c.stream.Status(), domain.EventKeyRotated)
	c.appendLocked("Stream key regenerated", ip)
	streamID := c.stream.ID
	c.mu.Unlock()

	audit.Record(ctx, audit.Entry{
		Action:    audit.ActionRegenerateKey,
		SessionID: sessionIDFrom(ctx),
		StreamID:  streamID,
	}, "stream key regenerated")
	c.emit(ctx, events.NewEvent(events.TypeKeyRotated, streamID))
	return key, nil
}

// RecordView counts one viewer while live. Offline it only reports the record.
func (c *Coordinator) RecordView(ctx context.Context) (domain.Stream, error) {
	c.mu.Lock()
	c.recordViewLocked()
	s := c.stream.Clone()
	c.mu.Unlock()

	return s, nil
}

func (c *Coordinator) recordViewLocked() bool {
	if !c.stream.IsLive {
		return false
	}
	c.stream.ViewerCount++
	c.metrics.SetStream(true, c.stream.ViewerCount)
	c.hub.Publish(c.stream.Status(), domain.EventViewerCount)
	return true
}

// Playback validates a playback request for key. Fetching the playlist, or
// the live entry point when file is empty, counts as a view.
func (c *Coordinator) Playback(ctx context.Context, key, file string) (domain.Stream, error) {
	c.mu.Lock()
	if !c.stream.IsLive || key != c.stream.StreamKey {
		c.mu.Unlock()
		return domain.Stream{}, ErrStreamNotFound
	}
	if file == "" || file == PlaylistFile {
		c.recordViewLocked()
	}
	s := c.stream.Clone()
	c.mu.Unlock()

	return s, nil
}

// GetStatus returns the public status.
func (c *Coordinator) GetStatus(ctx context.Context) domain.StatusView {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := domain.StatusView{
		IsLive:      c.stream.IsLive,
		ViewerCount: c.stream.ViewerCount,
		Title:       c.stream.Title,
	}
	if c.stream.IsLive {
		u := domain.LiveURL(c.stream.StreamKey)
		v.StreamURL = &u
	}
	return v
}

// Snapshot returns the full status including the key.
func (c *Coordinator) Snapshot() domain.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream.Status()
}

func (c *Coordinator) streamID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream.ID
}

// emit publishes e on the event bus. Failures are logged only.
func (c *Coordinator) emit(ctx context.Context, e *events.Event) {
	if err := c.events.Publish(ctx, e); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str("event", e.Type).Msg("failed to publish stream event")
	}
}

func parseEvent(ev ingest.Event) (ingest.Metadata, string, error) {
	md := ev.Metadata()
	if md.StreamPath == "" {
		return md, "", ErrInvalidMetadata
	}
	key, err := ingest.ParseStreamKey(md.StreamPath)
	if err != nil {
		return md, "", fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}
	return md, key, nil
}
