package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Terminable is a handle able to drop a publishing session.
type Terminable interface {
	Terminate(ctx context.Context) error
}

// TerminatorFunc adapts a function to Terminable.
type TerminatorFunc func(ctx context.Context) error

func (f TerminatorFunc) Terminate(ctx context.Context) error {
	return f(ctx)
}

var errNoSession = errors.New("nothing identifies the session to drop")

type noopSession struct{}

func (noopSession) Terminate(context.Context) error { return nil }

// ControlTerminator drops a publisher through the engine's HTTP control API,
// e.g. nginx-rtmp's /control/drop/publisher.
type ControlTerminator struct {
	baseURL    string
	httpClient *http.Client
	app        string
	name       string
	clientID   string
}

// NewControlTerminator builds a handle for the session described by md.
// It returns a no-op handle when no control URL is configured.
func NewControlTerminator(controlURL string, httpClient *http.Client, md Metadata) Terminable {
	if controlURL == "" {
		return noopSession{}
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	app, name := splitPath(md.StreamPath)
	return &ControlTerminator{
		baseURL:    controlURL,
		httpClient: httpClient,
		app:        app,
		name:       name,
		clientID:   md.SessionID,
	}
}

// Terminate asks the engine to drop the publisher.
func (t *ControlTerminator) Terminate(ctx context.Context) error {
	q := url.Values{}
	if t.app != "" {
		q.Set("app", t.app)
	}
	if t.name != "" {
		q.Set("name", t.name)
	}
	if t.clientID != "" {
		q.Set("clientid", t.clientID)
	}
	if len(q) == 0 {
		return errNoSession
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to drop publisher: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("control api returned status: %d", resp.StatusCode)
	}
	return nil
}
