package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/zawrotmc/streamflow/internal/hub"
	pkglog "github.com/zawrotmc/streamflow/pkg/log"
	"github.com/zawrotmc/streamflow/pkg/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler subscribes WebSocket clients to stream status updates.
type WSHandler struct {
	hub            *hub.Hub
	authMiddleware *middleware.AuthMiddleware
}

// NewWSHandler creates a new WebSocket handler.
func NewWSHandler(h *hub.Hub, authMiddleware *middleware.AuthMiddleware) *WSHandler {
	return &WSHandler{
		hub:            h,
		authMiddleware: authMiddleware,
	}
}

// RegisterRoutes registers all routes.
func (h *WSHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/ws", h.HandleWebSocket)
}

// HandleWebSocket upgrades the connection and registers a subscriber. A
// request carrying a valid admin session gets the admin scope.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	l := pkglog.Ctx(c.Request.Context())

	sid, ok := h.authMiddleware.Authenticated(c)
	if ok {
		c.Set(middleware.SessionIDKey, sid)
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(h.hub, conn, sid)
	l.Debug().Str(pkglog.FieldClientID, client.ID).Str(pkglog.FieldScope, client.Scope.String()).Msg("subscriber connected")

	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
