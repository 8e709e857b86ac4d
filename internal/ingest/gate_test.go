package ingest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zawrotmc/streamflow/internal/domain"
)

type fakeStream struct {
	id, key string

	mu      sync.Mutex
	entries []domain.ConnectionLog
}

func (f *fakeStream) CurrentKey() (string, string) { return f.id, f.key }

func (f *fakeStream) AppendLog(_ context.Context, e domain.ConnectionLog) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
}

func (f *fakeStream) logs() []domain.ConnectionLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ConnectionLog(nil), f.entries...)
}

type countingSession struct {
	calls int
	err   error
}

func (s *countingSession) Terminate(context.Context) error {
	s.calls++
	return s.err
}

func TestAuthorizeAccepts(t *testing.T) {
	fs := &fakeStream{id: "stream-1", key: "sk_live_abc"}
	g := NewGate(fs, fs)
	sess := &countingSession{}

	d := g.Authorize(context.Background(), Event{
		ID:      map[string]any{"id": "c1", "streamPath": "/live/sk_live_abc", "ip": "10.1.1.1"},
		Session: sess,
	})

	assert.True(t, d.Allow)
	assert.Equal(t, DenyNone, d.Reason)
	assert.Equal(t, "sk_live_abc", d.Key)
	assert.Equal(t, 0, sess.calls)

	logs := fs.logs()
	require.Len(t, logs, 1)
	assert.Equal(t, domain.LevelInfo, logs[0].Level)
	assert.Equal(t, "Stream started with key: sk_live_abc", logs[0].Message)
	assert.Equal(t, "10.1.1.1", logs[0].IPAddress)
	assert.Equal(t, "stream-1", logs[0].StreamID)
}

func TestAuthorizeRejects(t *testing.T) {
	cases := []struct {
		name   string
		event  Event
		reason DenyReason
	}{
		{
			name:   "wrong key",
			event:  Event{ID: "/live/wrongkey"},
			reason: DenyKeyMismatch,
		},
		{
			name:   "key prefix only",
			event:  Event{ID: "/live/sk_live_ab"},
			reason: DenyKeyMismatch,
		},
		{
			name:   "key at wrong depth",
			event:  Event{ID: "/sk_live_abc"},
			reason: DenyMalformedPath,
		},
		{
			name:   "no path at all",
			event:  Event{ID: map[string]any{"id": "c1"}},
			reason: DenyMissingPath,
		},
		{
			name:   "relative path",
			event:  Event{ID: map[string]any{"path": "live/sk_live_abc"}},
			reason: DenyMalformedPath,
		},
		{
			name:   "empty key",
			event:  Event{ID: "/live/"},
			reason: DenyKeyMismatch,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			fs := &fakeStream{id: "stream-1", key: "sk_live_abc"}
			g := NewGate(fs, fs)
			sess := &countingSession{}
			c.event.Session = sess

			d := g.Authorize(context.Background(), c.event)

			assert.False(t, d.Allow)
			assert.Equal(t, c.reason, d.Reason)
			assert.Equal(t, 1, sess.calls, "rejection should try to terminate the session")
			assert.Empty(t, fs.logs(), "rejections must not write to the connection log")
		})
	}
}

func TestAuthorizeSwallowsTerminateFailures(t *testing.T) {
	fs := &fakeStream{id: "s", key: "k"}
	g := NewGate(fs, fs)

	cases := map[string]Terminable{
		"nil handle": nil,
		"error": TerminatorFunc(func(context.Context) error {
			return errors.New("already gone")
		}),
		"panic": TerminatorFunc(func(context.Context) error {
			panic("boom")
		}),
	}
	for name, sess := range cases {
		t.Run(name, func(t *testing.T) {
			var d Decision
			require.NotPanics(t, func() {
				d = g.Authorize(context.Background(), Event{ID: "/live/bad", Session: sess})
			})
			assert.False(t, d.Allow)
			assert.Equal(t, DenyKeyMismatch, d.Reason)
		})
	}
}

func TestAuthorizeFollowsRotation(t *testing.T) {
	fs := &fakeStream{id: "s", key: "old"}
	g := NewGate(fs, fs)

	assert.True(t, g.Authorize(context.Background(), Event{ID: "/live/old"}).Allow)

	fs.key = "new"
	assert.False(t, g.Authorize(context.Background(), Event{ID: "/live/old"}).Allow)
	assert.True(t, g.Authorize(context.Background(), Event{ID: "/live/new"}).Allow)
}

func TestControlTerminator(t *testing.T) {
	reqs := make(chan *http.Request, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqs <- r
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	term := NewControlTerminator(srv.URL+"/control/drop/publisher", srv.Client(), Metadata{
		StreamPath: "/live/badkey?x=1",
		SessionID:  "23",
	})
	require.NoError(t, term.Terminate(context.Background()))

	got := <-reqs
	assert.Equal(t, "/control/drop/publisher", got.URL.Path)
	assert.Equal(t, "live", got.URL.Query().Get("app"))
	assert.Equal(t, "badkey", got.URL.Query().Get("name"))
	assert.Equal(t, "23", got.URL.Query().Get("clientid"))
}

func TestControlTerminatorErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	term := NewControlTerminator(srv.URL, srv.Client(), Metadata{StreamPath: "/live/k"})
	assert.Error(t, term.Terminate(context.Background()))

	term = NewControlTerminator(srv.URL, srv.Client(), Metadata{})
	assert.ErrorIs(t, term.Terminate(context.Background()), errNoSession)

	term = NewControlTerminator("", nil, Metadata{StreamPath: "/live/k"})
	assert.NoError(t, term.Terminate(context.Background()))
}
