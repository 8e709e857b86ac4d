package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zawrotmc/streamflow/pkg/jwt"
	"github.com/zawrotmc/streamflow/pkg/log"
	"github.com/zawrotmc/streamflow/pkg/response"
)

// SessionIDKey is the gin context key holding the admin session id.
const SessionIDKey = log.FieldSessionID

// SessionChecker validates an opaque admin session id.
type SessionChecker interface {
	CheckAuth(ctx context.Context, sessionID string) bool
}

// CookieConfig describes the admin session cookie.
type CookieConfig struct {
	Name   string
	Path   string
	Secure bool
}

// AuthMiddleware authenticates admins by a signed session cookie.
type AuthMiddleware struct {
	tokens  *jwt.Manager
	checker SessionChecker
	cookie  CookieConfig
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(tokens *jwt.Manager, checker SessionChecker, cookie CookieConfig) *AuthMiddleware {
	if cookie.Name == "" {
		cookie.Name = "streamflow_session"
	}
	if cookie.Path == "" {
		cookie.Path = "/"
	}
	return &AuthMiddleware{tokens: tokens, checker: checker, cookie: cookie}
}

// SessionID returns the session id carried by the request cookie, or ""
// when the cookie is missing, forged or expired. It does not consult the
// session store.
func (m *AuthMiddleware) SessionID(c *gin.Context) string {
	token, err := c.Cookie(m.cookie.Name)
	if err != nil || token == "" {
		return ""
	}
	sid, err := m.tokens.Validate(token)
	if err != nil {
		return ""
	}
	return sid
}

// Authenticated returns the session id when the request belongs to a live
// admin session.
func (m *AuthMiddleware) Authenticated(c *gin.Context) (string, bool) {
	sid := m.SessionID(c)
	if sid == "" {
		return "", false
	}
	if !m.checker.CheckAuth(c.Request.Context(), sid) {
		return "", false
	}
	return sid, true
}

// RequireAdmin returns a Gin middleware that rejects requests without a
// valid admin session.
func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		sid, ok := m.Authenticated(c)
		if !ok {
			response.Abort(c, http.StatusUnauthorized, response.CodeUnauthorized, "Not authenticated")
			return
		}
		c.Set(SessionIDKey, sid)
		c.Next()
	}
}

// Issue sets the session cookie for sessionID.
func (m *AuthMiddleware) Issue(c *gin.Context, sessionID string) error {
	token, err := m.tokens.Sign(sessionID)
	if err != nil {
		return err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.cookie.Name, token, int(m.tokens.Lifetime()/time.Second), m.cookie.Path, "", m.cookie.Secure, true)
	return nil
}

// Clear removes the session cookie.
func (m *AuthMiddleware) Clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.cookie.Name, "", -1, m.cookie.Path, "", m.cookie.Secure, true)
}

// GetSessionID extracts the admin session id set by RequireAdmin.
func GetSessionID(c *gin.Context) string {
	if v, exists := c.Get(SessionIDKey); exists {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
