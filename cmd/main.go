package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/zawrotmc/streamflow/internal/config"
	"github.com/zawrotmc/streamflow/internal/connlog"
	"github.com/zawrotmc/streamflow/internal/domain"
	"github.com/zawrotmc/streamflow/internal/events"
	"github.com/zawrotmc/streamflow/internal/handler"
	"github.com/zawrotmc/streamflow/internal/hub"
	"github.com/zawrotmc/streamflow/internal/metrics"
	"github.com/zawrotmc/streamflow/internal/service"
	"github.com/zawrotmc/streamflow/internal/session"
	"github.com/zawrotmc/streamflow/pkg/jwt"
	pkglog "github.com/zawrotmc/streamflow/pkg/log"
	"github.com/zawrotmc/streamflow/pkg/middleware"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	// Initialize structured logger
	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Pretty || cfg.Log.Level == "debug",
		ServiceName: "streamflow",
	})
	logger := pkglog.L()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Admin sessions
	sessions := newSessionStore(ctx, cfg)
	defer sessions.Close()

	// Stream lifecycle events
	publisher, err := events.New(cfg.Events)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Events.Driver).Msg("failed to create event publisher")
	}
	defer publisher.Close()

	m := metrics.New()

	// Stream record, hub and coordinator
	stream := domain.NewStream(cfg.Stream.Title, cfg.Stream.Key)
	h := hub.New(hub.Config{
		WriteWait:      cfg.WebSocket.WriteWait,
		PongWait:       cfg.WebSocket.PongWait,
		PingInterval:   cfg.WebSocket.PingInterval,
		MaxMessageSize: cfg.WebSocket.MaxMessageSize,
		SendTimeout:    cfg.WebSocket.SendTimeout,
		SendBuffer:     cfg.WebSocket.SendBuffer,
	}, stream.Status(), m)

	passwordHash := cfg.Admin.PasswordHash
	if passwordHash == "" {
		passwordHash, err = service.HashPassword(cfg.Admin.Password)
		switch {
		case errors.Is(err, service.ErrPasswordRequired):
			logger.Warn().Msg("no admin password configured, admin login is disabled")
		case err != nil:
			logger.Fatal().Err(err).Msg("failed to hash admin password")
		}
	}

	coord := service.NewCoordinator(stream, connlog.New(cfg.Stream.LogRetention), sessions, h, publisher, m, service.Options{
		AdminPasswordHash: passwordHash,
		RTMPURL:           cfg.Stream.RTMPURL,
		AdminLogLimit:     cfg.Stream.AdminLogLimit,
	})

	// Initialize auth middleware
	tokens, err := jwt.NewManager(cfg.Admin.SessionSecret, cfg.Admin.SessionTTL, "streamflow")
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create session signer")
	}
	if cfg.Admin.SessionSecret == "" {
		logger.Warn().Msg("no session secret configured, admin sessions will not survive a restart")
	}
	authMiddleware := middleware.NewAuthMiddleware(tokens, coord, middleware.CookieConfig{
		Name:   cfg.Admin.CookieName,
		Secure: cfg.Admin.CookieSecure,
	})

	// Initialize handlers
	httpHandler := handler.NewHandler(coord, authMiddleware, middleware.NewRateLimiter(cfg.Admin.LoginRate, cfg.Admin.LoginBurst), cfg.Stream.HLSOrigin)
	ingestHandler := handler.NewIngestHandler(coord, cfg.Stream.ControlURL, &http.Client{Timeout: 5 * time.Second})
	wsHandler := handler.NewWSHandler(h, authMiddleware)

	// Setup Gin router
	r, err := handler.NewEngine(logger, cfg.Server.TrustedProxies)
	if err != nil {
		logger.Fatal().Err(err).Strs("trusted_proxies", cfg.Server.TrustedProxies).Msg("invalid trusted proxies")
	}
	r.GET("/metrics", gin.WrapH(m.Handler()))

	// Register routes
	httpHandler.RegisterRoutes(r)
	ingestHandler.RegisterRoutes(r)
	wsHandler.RegisterRoutes(r)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		h.Run(gctx)
		return nil
	})
	group.Go(func() error {
		logger.Info().
			Str("addr", addr).
			Str("session_driver", cfg.Session.Driver).
			Str("events_driver", cfg.Events.Driver).
			Str(pkglog.FieldStreamID, stream.ID).
			Msg("streamflow starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down streamflow")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Error().Err(err).Msg("server error")
		return
	}
	logger.Info().Msg("streamflow stopped")
}

// newSessionStore opens the configured session store. A Redis store that
// cannot be reached falls back to memory.
func newSessionStore(ctx context.Context, cfg *config.Config) session.Store {
	logger := pkglog.L()

	if cfg.Session.Driver != "redis" {
		return session.NewMemoryStore()
	}

	store, err := session.NewRedisStore(ctx, session.RedisConfig{
		Address:   cfg.Session.Redis.Address,
		Password:  cfg.Session.Redis.Password,
		DB:        cfg.Session.Redis.DB,
		KeyPrefix: cfg.Session.Redis.KeyPrefix,
		TTL:       cfg.Admin.SessionTTL,
	})
	if err != nil {
		logger.Warn().Err(err).Str("addr", cfg.Session.Redis.Address).Msg("redis unavailable, using in-memory sessions")
		return session.NewMemoryStore()
	}
	logger.Info().Str("addr", cfg.Session.Redis.Address).Msg("redis session store connected")
	return store
}
