package session

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testStore runs the behaviour every Store must share.
func testStore(t *testing.T, s Store) {
	ctx := context.Background()

	t.Run("create then get", func(t *testing.T) {
		sess, err := s.Create(ctx)
		require.NoError(t, err)
		require.NotEmpty(t, sess.ID)
		assert.True(t, sess.IsAuthenticated)

		got, err := s.Get(ctx, sess.ID)
		require.NoError(t, err)
		assert.Equal(t, sess.ID, got.ID)
		assert.True(t, got.IsAuthenticated)
		assert.WithinDuration(t, sess.CreatedAt, got.CreatedAt, time.Second)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := s.Get(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.Get(ctx, "")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		sess, err := s.Create(ctx)
		require.NoError(t, err)

		require.NoError(t, s.Delete(ctx, sess.ID))
		require.NoError(t, s.Delete(ctx, sess.ID))
		require.NoError(t, s.Delete(ctx, "never-existed"))

		_, err = s.Get(ctx, sess.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("distinct ids", func(t *testing.T) {
		a, err := s.Create(ctx)
		require.NoError(t, err)
		b, err := s.Create(ctx)
		require.NoError(t, err)
		assert.NotEqual(t, a.ID, b.ID)
	})
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestMemoryStoreCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	sess, err := s.Create(ctx)
	require.NoError(t, err)
	sess.IsAuthenticated = false

	got, err := s.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, got.IsAuthenticated)

	got.IsAuthenticated = false
	again, err := s.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, again.IsAuthenticated)
}

func TestMemoryStoreConcurrent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess, err := s.Create(ctx)
			if !assert.NoError(t, err) {
				return
			}
			_, err = s.Get(ctx, sess.ID)
			assert.NoError(t, err)
			assert.NoError(t, s.Delete(ctx, sess.ID))
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, s.Len())
}

// TestRedisStore needs a reachable server; set STREAMFLOW_TEST_REDIS to
// its address to run it.
func TestRedisStore(t *testing.T) {
	addr := os.Getenv("STREAMFLOW_TEST_REDIS")
	if addr == "" {
		t.Skip("STREAMFLOW_TEST_REDIS not set")
	}

	s, err := NewRedisStore(context.Background(), RedisConfig{
		Address:   addr,
		KeyPrefix: "streamflow:test:session:",
		TTL:       time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	testStore(t, s)
}
