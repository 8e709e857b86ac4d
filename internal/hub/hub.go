// Package hub fans stream status out to WebSocket subscribers.
package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/zawrotmc/streamflow/internal/domain"
	"github.com/zawrotmc/streamflow/internal/metrics"
	pkglog "github.com/zawrotmc/streamflow/pkg/log"
)

// Scope decides which events and fields a subscriber receives.
type Scope int

const (
	// ScopeViewer receives public status only.
	ScopeViewer Scope = iota
	// ScopeAdmin also receives the stream key, key rotations and connection logs.
	ScopeAdmin
)

func (s Scope) String() string {
	if s == ScopeAdmin {
		return "admin"
	}
	return "viewer"
}

// Config tunes connection handling.
type Config struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
	// SendTimeout bounds how long a broadcast waits on one subscriber.
	// Zero means never wait.
	SendTimeout time.Duration
	SendBuffer  int
}

// DefaultConfig returns the defaults used when a value is not configured.
func DefaultConfig() Config {
	return Config{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingInterval:   54 * time.Second,
		MaxMessageSize: 4096,
		SendTimeout:    100 * time.Millisecond,
		SendBuffer:     256,
	}
}

type outbound struct {
	viewer []byte // nil when viewers must not receive it
	admin  []byte
	status *domain.Status
	kind   string
	// revoke closes admin clients bound to this session instead of delivering.
	revoke string
}

type direct struct {
	client *Client
	data   []byte
}

// Hub tracks subscribers and delivers every status change to them in order.
// All subscriber sends happen on the Run goroutine.
type Hub struct {
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan *outbound
	direct     chan *direct
	done       chan struct{}

	mu     sync.RWMutex // guards clients for Count and status for Status
	status domain.Status

	config  Config
	metrics *metrics.Metrics
}

// New creates a hub whose cache starts at initial.
func New(cfg Config, initial domain.Status, m *metrics.Metrics) *Hub {
	def := DefaultConfig()
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = def.WriteWait
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = def.PongWait
	}
	if cfg.PingInterval <= 0 || cfg.PingInterval >= cfg.PongWait {
		cfg.PingInterval = cfg.PongWait * 9 / 10
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = def.SendBuffer
	}
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *outbound, 256),
		direct:     make(chan *direct, 64),
		done:       make(chan struct{}),
		status:     initial,
		config:     cfg,
		metrics:    m,
	}
}

// Run processes registrations and broadcasts until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	l := pkglog.L()
	defer func() {
		h.mu.Lock()
		for c := range h.clients {
			delete(h.clients, c)
			close(c.Send)
		}
		h.mu.Unlock()
		close(h.done)
		h.metrics.SetSubscribers(0)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			// Events published before this registration go out first so the
			// snapshot is never older than what was already broadcast.
			h.drain()

			h.mu.Lock()
			h.clients[c] = struct{}{}
			snapshot := h.status
			n := len(h.clients)
			h.mu.Unlock()
			h.metrics.SetSubscribers(n)

			data, err := h.encodeStatus(snapshot, domain.EventStatus, c.Scope)
			if err == nil {
				h.deliver(c, data)
			}
			l.Info().Str(pkglog.FieldClientID, c.ID).Str(pkglog.FieldScope, c.Scope.String()).Msg("client registered")

		case c := <-h.unregister:
			if h.remove(c) {
				l.Info().Str(pkglog.FieldClientID, c.ID).Msg("client unregistered")
			}

		case msg := <-h.broadcast:
			h.fanOut(msg)

		case d := <-h.direct:
			h.mu.RLock()
			_, ok := h.clients[d.client]
			h.mu.RUnlock()
			if ok {
				h.deliver(d.client, d.data)
			}
		}
	}
}

func (h *Hub) drain() {
	for {
		select {
		case msg := <-h.broadcast:
			h.fanOut(msg)
		default:
			return
		}
	}
}

// fanOut updates the cache and delivers msg. Only called from Run.
func (h *Hub) fanOut(msg *outbound) {
	if msg.revoke != "" {
		h.revokeSession(msg.revoke)
		return
	}
	if msg.status != nil {
		h.mu.Lock()
		h.status = *msg.status
		h.mu.Unlock()
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		data := msg.viewer
		if c.Scope == ScopeAdmin {
			data = msg.admin
		}
		if data == nil {
			continue
		}
		h.deliver(c, data)
	}
	h.metrics.Broadcast(msg.kind)
}

// deliver hands data to c or drops c. Only called from Run.
func (h *Hub) deliver(c *Client, data []byte) {
	select {
	case c.Send <- data:
		return
	default:
	}

	if h.config.SendTimeout > 0 {
		timer := time.NewTimer(h.config.SendTimeout)
		defer timer.Stop()
		select {
		case c.Send <- data:
			return
		case <-timer.C:
		}
	}

	if h.remove(c) {
		h.metrics.SubscriberDropped()
		l := pkglog.L()
		l.Warn().Str(pkglog.FieldClientID, c.ID).Msg("dropping slow subscriber")
	}
}

// revokeSession drops admin clients bound to sessionID. Only called from Run.
func (h *Hub) revokeSession(sessionID string) {
	h.mu.RLock()
	var targets []*Client
	for c := range h.clients {
		if c.Scope == ScopeAdmin && c.SessionID == sessionID {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	l := pkglog.L()
	for _, c := range targets {
		if h.remove(c) {
			l.Info().Str(pkglog.FieldClientID, c.ID).Msg("admin session ended, closing subscriber")
		}
	}
}

// remove deletes c and closes its send channel. Only called from Run.
func (h *Hub) remove(c *Client) bool {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.Send)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		h.metrics.SetSubscribers(n)
	}
	return ok
}

// Register adds a client. Its first message is the cached status.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		close(c.Send)
	}
}

// Unregister removes a client. Unknown clients are ignored.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish caches status and sends it to every subscriber. Viewers never see
// the stream key, and admin-only kinds skip them entirely.
func (h *Hub) Publish(status domain.Status, kind domain.EventKind) {
	admin, err := h.encodeStatus(status, kind, ScopeAdmin)
	if err != nil {
		l := pkglog.L()
		l.Error().Err(err).Msg("failed to encode status")
		return
	}
	msg := &outbound{admin: admin, status: &status, kind: string(kind)}
	if !kind.AdminOnly() {
		if msg.viewer, err = h.encodeStatus(status, kind, ScopeViewer); err != nil {
			l := pkglog.L()
			l.Error().Err(err).Msg("failed to encode status")
			return
		}
	}
	h.enqueue(msg)
}

// PublishLog sends a connection log entry to admin subscribers.
func (h *Hub) PublishLog(entry domain.ConnectionLog) {
	data, err := json.Marshal(domain.ConnectionLogMessage{
		Type: domain.MsgTypeConnectionLog,
		Data: entry,
	})
	if err != nil {
		l := pkglog.L()
		l.Error().Err(err).Msg("failed to encode connection log")
		return
	}
	h.enqueue(&outbound{admin: data, kind: domain.MsgTypeConnectionLog})
}

// DropSession closes every admin subscriber that authenticated with
// sessionID. Events published earlier are still delivered to them first.
func (h *Hub) DropSession(sessionID string) {
	if sessionID == "" {
		return
	}
	h.enqueue(&outbound{revoke: sessionID})
}

func (h *Hub) enqueue(msg *outbound) {
	select {
	case h.broadcast <- msg:
	case <-h.done:
	}
}

// reply queues data for a single client.
func (h *Hub) reply(c *Client, data []byte) {
	select {
	case h.direct <- &direct{client: c, data: data}:
	case <-h.done:
	}
}

// Count returns the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Status returns the most recently processed status.
func (h *Hub) Status() domain.Status {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}

func (h *Hub) encodeStatus(status domain.Status, kind domain.EventKind, scope Scope) ([]byte, error) {
	if scope != ScopeAdmin {
		status = status.Public()
	}
	return json.Marshal(domain.StatusMessage{
		Type:  domain.MsgTypeStreamStatus,
		Event: kind,
		Data:  status,
	})
}
