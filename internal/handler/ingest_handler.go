package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/zawrotmc/streamflow/internal/ingest"
	"github.com/zawrotmc/streamflow/internal/service"
	"github.com/zawrotmc/streamflow/pkg/log"
	"github.com/zawrotmc/streamflow/pkg/response"
)

// maxCallbackBody bounds ingest callback bodies.
const maxCallbackBody = 64 << 10

// IngestHandler receives lifecycle callbacks from the media engine.
type IngestHandler struct {
	streamService service.StreamService
	controlURL    string
	httpClient    *http.Client
}

// NewIngestHandler creates a new ingest callback handler. controlURL is the
// engine's drop-publisher endpoint and may be empty.
func NewIngestHandler(streamService service.StreamService, controlURL string, httpClient *http.Client) *IngestHandler {
	return &IngestHandler{
		streamService: streamService,
		controlURL:    controlURL,
		httpClient:    httpClient,
	}
}

// RegisterRoutes registers all routes.
func (h *IngestHandler) RegisterRoutes(r *gin.Engine) {
	cb := r.Group("/ingest")
	{
		cb.POST("/pre_publish", h.PrePublish)
		cb.POST("/post_publish", h.PostPublish)
		cb.POST("/unpublish", h.Unpublish)
	}
}

// PrePublish answers 200 to accept a publisher and 403 to refuse it.
func (h *IngestHandler) PrePublish(c *gin.Context) {
	ctx := log.WithStr(c.Request.Context(), log.FieldIngestEvent, "pre_publish")
	l := log.Ctx(ctx)

	ev := h.event(c)
	d := h.streamService.OnPrePublish(ctx, ev)
	if !d.Allow {
		l.Info().Str("reason", string(d.Reason)).Str(log.FieldStreamPath, d.Metadata.StreamPath).Msg("publish refused")
		response.Forbidden(c, "publish rejected: "+string(d.Reason))
		return
	}

	response.Success(c, d)
}

// PostPublish marks the stream live. It always answers 200.
func (h *IngestHandler) PostPublish(c *gin.Context) {
	ctx := log.WithStr(c.Request.Context(), log.FieldIngestEvent, "post_publish")
	l := log.Ctx(ctx)

	if err := h.streamService.OnPostPublish(ctx, h.event(c)); err != nil {
		logCallbackError(&l, err)
	}
	response.Message(c, "ok")
}

// Unpublish marks the stream offline. It always answers 200.
func (h *IngestHandler) Unpublish(c *gin.Context) {
	ctx := log.WithStr(c.Request.Context(), log.FieldIngestEvent, "unpublish")
	l := log.Ctx(ctx)

	if err := h.streamService.OnUnpublish(ctx, h.event(c)); err != nil {
		logCallbackError(&l, err)
	}
	response.Message(c, "ok")
}

func logCallbackError(l *zerolog.Logger, err error) {
	if errors.Is(err, service.ErrInvalidMetadata) || errors.Is(err, service.ErrKeyMismatch) {
		l.Warn().Err(err).Msg("ingest callback ignored")
		return
	}
	l.Error().Err(err).Msg("ingest callback failed")
}

// event builds an ingest event from the callback body. JSON bodies shaped
// {id, streamPath, args} are unpacked; flat JSON and form bodies are treated
// as the session object itself; a bare string body is the stream path.
func (h *IngestHandler) event(c *gin.Context) ingest.Event {
	ev := eventFromPayload(decodePayload(c))
	ev.Session = ingest.NewControlTerminator(h.controlURL, h.httpClient, ev.Metadata())
	return ev
}

func decodePayload(c *gin.Context) any {
	l := log.Ctx(c.Request.Context())

	switch ct := c.ContentType(); {
	case strings.Contains(ct, "json"):
		var body any
		dec := json.NewDecoder(io.LimitReader(c.Request.Body, maxCallbackBody))
		dec.UseNumber()
		if err := dec.Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			l.Warn().Err(err).Msg("malformed ingest callback body")
		}
		if s, ok := body.(string); ok {
			return strings.TrimSpace(s)
		}
		payload, ok := body.(map[string]any)
		if !ok {
			payload = map[string]any{}
		}
		for k, v := range c.Request.URL.Query() {
			if _, ok := payload[k]; !ok && len(v) > 0 {
				payload[k] = v[0]
			}
		}
		return payload

	case ct == "text/plain":
		data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackBody))
		if err != nil {
			l.Warn().Err(err).Msg("unreadable ingest callback body")
		}
		if s := strings.TrimSpace(string(data)); s != "" {
			return s
		}
		return c.Request.URL.Query()
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxCallbackBody)
	if err := c.Request.ParseForm(); err != nil {
		l.Warn().Err(err).Msg("malformed ingest callback form")
	}
	return c.Request.Form
}

func eventFromPayload(payload any) ingest.Event {
	if s, ok := payload.(string); ok {
		return ingest.Event{ID: s, StreamPath: s}
	}
	obj, ok := payload.(map[string]any)
	if !ok {
		return ingest.Event{ID: payload, Args: payload}
	}
	_, hasPath := obj["streamPath"]
	_, hasArgs := obj["args"]
	_, nestedID := obj["id"].(map[string]any)
	if !hasPath && !hasArgs && !nestedID {
		return ingest.Event{ID: obj, Args: obj}
	}
	return ingest.Event{ID: obj["id"], StreamPath: obj["streamPath"], Args: obj["args"]}
}
