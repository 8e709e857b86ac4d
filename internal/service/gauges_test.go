package service

import (
	"context"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zawrotmc/streamflow/internal/connlog"
	"github.com/zawrotmc/streamflow/internal/domain"
	"github.com/zawrotmc/streamflow/internal/metrics"
	"github.com/zawrotmc/streamflow/internal/session"
)

func TestStreamGaugesFollowState(t *testing.T) {
	m := metrics.New()
	c := NewCoordinator(domain.NewStream("t", testKey), connlog.New(100), session.NewMemoryStore(), &fakeHub{}, nil, m, Options{})
	ctx := context.Background()

	assertGauges := func(t *testing.T) {
		t.Helper()
		s := c.Snapshot()
		live := 0.0
		if s.IsLive {
			live = 1
		}
		assert.Equal(t, live, testutil.ToFloat64(m.Live))
		assert.Equal(t, float64(s.ViewerCount), testutil.ToFloat64(m.Viewers))
	}

	assertGauges(t)

	for round := 0; round < 50; round++ {
		require.NoError(t, c.OnPostPublish(ctx, publishEvent("/live/"+testKey)))

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = c.RecordView(ctx)
			}()
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Playback(ctx, testKey, PlaylistFile)
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.Stop(ctx, "10.0.0.1"))
		}()
		wg.Wait()

		assertGauges(t)
		assert.Zero(t, testutil.ToFloat64(m.Live), "round %d ends offline", round)
	}

	require.NoError(t, c.OnPostPublish(ctx, publishEvent("/live/"+testKey)))
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.RecordView(ctx)
		}()
	}
	wg.Wait()
	assertGauges(t)
	assert.Equal(t, 20.0, testutil.ToFloat64(m.Viewers))
}
