package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	pkglog "github.com/zawrotmc/streamflow/pkg/log"
)

// NewEngine builds the gin engine every route group registers on. Only
// trustedProxies may set X-Forwarded-For; with none, the client address is
// the socket peer.
func NewEngine(logger zerolog.Logger, trustedProxies []string) (*gin.Engine, error) {
	r := gin.New()
	if err := r.SetTrustedProxies(trustedProxies); err != nil {
		return nil, err
	}
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r, nil
}
