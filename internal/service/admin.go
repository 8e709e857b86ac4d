package service

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/zawrotmc/streamflow/internal/audit"
	"github.com/zawrotmc/streamflow/internal/domain"
	"github.com/zawrotmc/streamflow/internal/session"
	"github.com/zawrotmc/streamflow/pkg/log"
)

type sessionKey struct{}

// WithSessionID records the acting admin session for audit entries.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionKey{}, sessionID)
}

func sessionIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}

// HashPassword returns the bcrypt hash Login checks against. Surrounding
// whitespace is not part of the password.
func HashPassword(password string) (string, error) {
	password = strings.TrimSpace(password)
	if password == "" {
		return "", ErrPasswordRequired
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Login checks password and opens an admin session.
func (c *Coordinator) Login(ctx context.Context, password string) (*domain.AdminSession, error) {
	password = strings.TrimSpace(password)
	if password == "" {
		c.metrics.Login("rejected")
		return nil, ErrPasswordRequired
	}

	if err := bcrypt.CompareHashAndPassword([]byte(c.opts.AdminPasswordHash), []byte(password)); err != nil {
		c.metrics.Login("rejected")
		audit.Record(ctx, audit.Entry{Action: audit.ActionLoginFailed}, "admin login failed: wrong password")
		return nil, ErrInvalidCredentials
	}

	sess, err := c.sessions.Create(ctx)
	if err != nil {
		c.metrics.Login("error")
		return nil, err
	}

	c.metrics.Login("ok")
	audit.Record(ctx, audit.Entry{Action: audit.ActionLogin, SessionID: sess.ID}, "admin logged in")
	return sess, nil
}

// Logout closes a session. Unknown sessions are not an error.
func (c *Coordinator) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := c.sessions.Delete(ctx, sessionID); err != nil {
		return err
	}
	c.hub.DropSession(sessionID)
	audit.Record(ctx, audit.Entry{Action: audit.ActionLogout, SessionID: sessionID}, "admin logged out")
	return nil
}

// CheckAuth reports whether sessionID is an authenticated admin session.
func (c *Coordinator) CheckAuth(ctx context.Context, sessionID string) bool {
	if sessionID == "" {
		return false
	}
	sess, err := c.sessions.Get(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			l := log.Ctx(ctx)
			l.Warn().Err(err).Msg("session lookup failed")
		}
		return false
	}
	return sess.IsAuthenticated
}

// GetAdminView returns the full record with the most recent log entries.
func (c *Coordinator) GetAdminView(ctx context.Context, sessionID string) (*domain.AdminView, error) {
	if !c.CheckAuth(ctx, sessionID) {
		return nil, ErrUnauthorized
	}

	c.mu.Lock()
	s := c.stream.Clone()
	c.mu.Unlock()

	return &domain.AdminView{
		Stream:  s,
		RTMPURL: c.opts.RTMPURL,
		Logs:    c.logs.Recent(c.opts.AdminLogLimit),
	}, nil
}
