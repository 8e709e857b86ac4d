package handler

import (
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/zawrotmc/streamflow/internal/service"
	"github.com/zawrotmc/streamflow/pkg/log"
	"github.com/zawrotmc/streamflow/pkg/middleware"
	"github.com/zawrotmc/streamflow/pkg/response"
)

// Handler handles HTTP requests for the stream and the admin dashboard.
type Handler struct {
	streamService  service.StreamService
	authMiddleware *middleware.AuthMiddleware
	loginLimiter   *middleware.RateLimiter
	hlsOrigin      string
}

// NewHandler creates a new HTTP handler. loginLimiter may be nil.
func NewHandler(streamService service.StreamService, authMiddleware *middleware.AuthMiddleware, loginLimiter *middleware.RateLimiter, hlsOrigin string) *Handler {
	return &Handler{
		streamService:  streamService,
		authMiddleware: authMiddleware,
		loginLimiter:   loginLimiter,
		hlsOrigin:      strings.TrimRight(hlsOrigin, "/"),
	}
}

// RegisterRoutes registers all routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api")
	{
		stream := api.Group("/stream")
		{
			stream.GET("/status", h.GetStatus)
			stream.GET("/live/:streamKey", h.Live)
			stream.GET("/hls/:streamKey/:file", h.HLS)
		}

		admin := api.Group("/admin")
		{
			login := []gin.HandlerFunc{h.Login}
			if h.loginLimiter != nil {
				login = append([]gin.HandlerFunc{h.loginLimiter.Middleware(http.StatusUnauthorized)}, login...)
			}
			admin.POST("/login", login...)
			admin.POST("/logout", h.Logout)
			admin.GET("/auth", h.CheckAuth)

			// Protected routes
			admin.GET("/stream", h.authMiddleware.RequireAdmin(), h.GetAdminStream)
			admin.POST("/stream/regenerate-key", h.authMiddleware.RequireAdmin(), h.RegenerateKey)
			admin.POST("/stream/stop", h.authMiddleware.RequireAdmin(), h.Stop)
		}
	}
}

// GetStatus returns the public stream status.
func (h *Handler) GetStatus(c *gin.Context) {
	response.Success(c, h.streamService.GetStatus(c.Request.Context()))
}

// Live counts a viewer and redirects to the media server.
func (h *Handler) Live(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	key := c.Param("streamKey")
	if _, err := h.streamService.Playback(ctx, key, ""); err != nil {
		if errors.Is(err, service.ErrStreamNotFound) {
			response.NotFound(c, "Stream not found or offline")
			return
		}
		l.Error().Err(err).Msg("failed to start playback")
		response.InternalError(c, "failed to start playback")
		return
	}

	c.Redirect(http.StatusFound, h.hlsOrigin+"/live/"+url.PathEscape(key)+".flv")
}

// HLS proxies playlist and segment requests to the media server. Only the
// playlist counts as a view.
func (h *Handler) HLS(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	key := c.Param("streamKey")
	file := c.Param("file")
	if _, err := h.streamService.Playback(ctx, key, file); err != nil {
		if errors.Is(err, service.ErrStreamNotFound) {
			response.NotFound(c, "Stream not found or offline")
			return
		}
		l.Error().Err(err).Str("file", file).Msg("failed to serve hls request")
		response.InternalError(c, "failed to serve hls request")
		return
	}

	c.Header("Access-Control-Allow-Origin", "*")
	c.Redirect(http.StatusFound, h.hlsOrigin+"/live/"+url.PathEscape(key)+"/"+url.PathEscape(file))
}

type loginRequest struct {
	Password string `json:"password" form:"password"`
}

// Login opens an admin session and sets the session cookie.
func (h *Handler) Login(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		l.Warn().Err(err).Msg("failed to bind login request")
	}

	sess, err := h.streamService.Login(ctx, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPasswordRequired):
			response.BadRequest(c, "Password is required")
		case errors.Is(err, service.ErrInvalidCredentials):
			response.Unauthorized(c, "Invalid password")
		default:
			l.Error().Err(err).Msg("failed to create admin session")
			response.InternalError(c, "failed to create session")
		}
		return
	}

	if err := h.authMiddleware.Issue(c, sess.ID); err != nil {
		l.Error().Err(err).Msg("failed to sign session cookie")
		response.InternalError(c, "failed to create session")
		return
	}
	c.Set(middleware.SessionIDKey, sess.ID)

	response.Message(c, "Authentication successful")
}

// Logout closes the caller's session, if any.
func (h *Handler) Logout(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	sid := h.authMiddleware.SessionID(c)
	ctx = service.WithSessionID(ctx, sid)
	if err := h.streamService.Logout(ctx, sid); err != nil {
		l.Error().Err(err).Msg("failed to delete admin session")
		response.InternalError(c, "failed to log out")
		return
	}

	h.authMiddleware.Clear(c)
	response.Message(c, "Logout successful")
}

// CheckAuth reports whether the caller holds an admin session.
func (h *Handler) CheckAuth(c *gin.Context) {
	if _, ok := h.authMiddleware.Authenticated(c); !ok {
		response.Unauthorized(c, "Not authenticated")
		return
	}
	response.Message(c, "Authenticated")
}

// GetAdminStream returns the full stream record, the ingest URL and recent logs.
func (h *Handler) GetAdminStream(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	view, err := h.streamService.GetAdminView(ctx, middleware.GetSessionID(c))
	if err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			response.Unauthorized(c, "Not authenticated")
			return
		}
		l.Error().Err(err).Msg("failed to get admin view")
		response.InternalError(c, "failed to get stream")
		return
	}

	if view.RTMPURL == "" {
		view.RTMPURL = rtmpURLForHost(c.Request.Host)
	}
	response.Success(c, view)
}

// RegenerateKey rotates the stream key.
func (h *Handler) RegenerateKey(c *gin.Context) {
	ctx := service.WithSessionID(c.Request.Context(), middleware.GetSessionID(c))
	l := log.Ctx(ctx)

	key, err := h.streamService.RegenerateKey(ctx, c.ClientIP())
	if err != nil {
		l.Error().Err(err).Msg("failed to regenerate stream key")
		response.InternalError(c, "failed to regenerate stream key")
		return
	}

	response.Success(c, gin.H{"streamKey": key})
}

// Stop forces the stream offline.
func (h *Handler) Stop(c *gin.Context) {
	ctx := service.WithSessionID(c.Request.Context(), middleware.GetSessionID(c))
	l := log.Ctx(ctx)

	if err := h.streamService.Stop(ctx, c.ClientIP()); err != nil {
		l.Error().Err(err).Msg("failed to stop stream")
		response.InternalError(c, "failed to stop stream")
		return
	}

	response.Message(c, "Stream stopped")
}

// rtmpURLForHost derives the ingest URL from the host the dashboard was
// reached on.
func rtmpURLForHost(host string) string {
	if strings.Contains(host, "localhost") || strings.Contains(host, "127.0.0.1") || host == "" {
		return "rtmp://localhost:1935/live"
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if strings.Contains(host, ":") {
		host = "[" + strings.Trim(host, "[]") + "]"
	}
	return "rtmp://" + host + ":1935/live"
}
