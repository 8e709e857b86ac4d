package ingest

import (
	"context"
	"crypto/subtle"
	"fmt"

	"github.com/zawrotmc/streamflow/internal/domain"
	"github.com/zawrotmc/streamflow/pkg/log"
)

// DenyReason explains a rejected publish attempt.
type DenyReason string

const (
	DenyNone          DenyReason = ""
	DenyMissingPath   DenyReason = "missing_path"
	DenyMalformedPath DenyReason = "malformed_path"
	DenyKeyMismatch   DenyReason = "key_mismatch"
)

// Event is one lifecycle callback from the ingest engine. The payload fields
// carry whatever the engine sent. Session may be nil.
type Event struct {
	ID         any
	StreamPath any
	Args       any
	Session    Terminable
}

// Metadata normalizes the event payload.
func (e Event) Metadata() Metadata {
	return Normalize(e.ID, e.StreamPath, e.Args)
}

// Decision is the outcome of Authorize.
type Decision struct {
	Allow    bool       `json:"allow"`
	Reason   DenyReason `json:"reason,omitempty"`
	Key      string     `json:"-"`
	Metadata Metadata   `json:"metadata"`
}

// KeySource reports the stream currently accepting publishers.
type KeySource interface {
	CurrentKey() (streamID, key string)
}

// LogAppender records connection log entries.
type LogAppender interface {
	AppendLog(ctx context.Context, entry domain.ConnectionLog)
}

// Gate authorizes publish attempts against the current stream key.
type Gate struct {
	keys KeySource
	logs LogAppender
}

// NewGate creates a gate.
func NewGate(keys KeySource, logs LogAppender) *Gate {
	return &Gate{keys: keys, logs: logs}
}

// Authorize decides whether ev may publish. Every rejection tries to
// terminate the publishing session; termination failures are only logged.
func (g *Gate) Authorize(ctx context.Context, ev Event) Decision {
	logger := log.Ctx(ctx)
	md := ev.Metadata()
	d := Decision{Metadata: md}

	if md.StreamPath == "" {
		d.Reason = DenyMissingPath
		logger.Warn().Str(log.FieldClientID, md.SessionID).Msg("publish rejected: no stream path")
		g.terminate(ctx, ev)
		return d
	}

	key, err := ParseStreamKey(md.StreamPath)
	if err != nil {
		d.Reason = DenyMalformedPath
		logger.Warn().Err(err).Str(log.FieldClientID, md.SessionID).Msg("publish rejected")
		g.terminate(ctx, ev)
		return d
	}
	d.Key = key

	streamID, current := g.keys.CurrentKey()
	if current == "" || subtle.ConstantTimeCompare([]byte(key), []byte(current)) != 1 {
		d.Reason = DenyKeyMismatch
		logger.Warn().
			Str(log.FieldClientID, md.SessionID).
			Str(log.FieldClientIP, md.IPAddress).
			Msg("publish rejected: invalid stream key")
		g.terminate(ctx, ev)
		return d
	}

	d.Allow = true
	g.logs.AppendLog(ctx, domain.ConnectionLog{
		StreamID:  streamID,
		Level:     domain.LevelInfo,
		Message:   "Stream started with key: " + key,
		IPAddress: md.IPAddress,
	})
	logger.Info().
		Str(log.FieldStreamID, streamID).
		Str(log.FieldClientID, md.SessionID).
		Str(log.FieldClientIP, md.IPAddress).
		Msg("publish authorized")
	return d
}

func (g *Gate) terminate(ctx context.Context, ev Event) {
	t := ev.Session
	if t == nil {
		t = noopSession{}
	}
	if err := safeTerminate(ctx, t); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Msg("could not reject session")
	}
}

func safeTerminate(ctx context.Context, t Terminable) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("terminate panicked: %v", r)
		}
	}()
	return t.Terminate(ctx)
}
