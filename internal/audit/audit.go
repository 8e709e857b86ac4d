// Package audit records admin actions as structured log entries.
package audit

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/zawrotmc/streamflow/pkg/log"
)

// Action names an audited admin action.
type Action string

const (
	ActionLogin         Action = "admin.login"
	ActionLoginFailed   Action = "admin.login_failed"
	ActionLogout        Action = "admin.logout"
	ActionStop          Action = "stream.stop"
	ActionRegenerateKey Action = "stream.regenerate_key"
)

// Failure reports whether the action records a refused attempt.
func (a Action) Failure() bool {
	return a == ActionLoginFailed
}

// Field names of audit entries.
const (
	FieldAction = "action"
	FieldDetail = "detail"
)

// Entry is one audited action. Empty fields are omitted.
type Entry struct {
	Action    Action
	SessionID string
	StreamID  string
	Detail    string
}

// Record writes e through the context logger, so request fields such as the
// client address ride along. Failures are logged at warn level.
func Record(ctx context.Context, e Entry, msg string) {
	l := log.Ctx(ctx)

	lvl := zerolog.InfoLevel
	if e.Action.Failure() {
		lvl = zerolog.WarnLevel
	}
	evt := l.WithLevel(lvl).
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, string(e.Action))
	if e.SessionID != "" {
		evt = evt.Str(log.FieldSessionID, e.SessionID)
	}
	if e.StreamID != "" {
		evt = evt.Str(log.FieldStreamID, e.StreamID)
	}
	if e.Detail != "" {
		evt = evt.Str(FieldDetail, e.Detail)
	}
	evt.Msg(msg)
}
