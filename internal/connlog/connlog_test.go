package connlog

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zawrotmc/streamflow/internal/domain"
)

func info(msg string) domain.ConnectionLog {
	return domain.ConnectionLog{Level: domain.LevelInfo, Message: msg}
}

func TestAppendAssignsIdentity(t *testing.T) {
	l := New(10)
	e := l.Append(info("hello"))
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.Timestamp.IsZero())
	assert.Equal(t, domain.LevelInfo, e.Level)

	got := l.Recent(1)
	require.Len(t, got, 1)
	assert.Equal(t, e, got[0])
}

func TestAppendUnknownLevel(t *testing.T) {
	l := New(10)
	e := l.Append(domain.ConnectionLog{Level: "LOUD", Message: "x"})
	assert.Equal(t, domain.LevelInfo, e.Level)
}

func TestEviction(t *testing.T) {
	l := New(0)
	require.Equal(t, DefaultMax, l.Max())

	for i := 0; i < 101; i++ {
		l.Append(info(fmt.Sprint(i)))
	}
	assert.Equal(t, 100, l.Len())

	got := l.Recent(100)
	require.Len(t, got, 100)
	assert.Equal(t, "100", got[0].Message)
	assert.Equal(t, "1", got[99].Message)
	for _, e := range got {
		assert.NotEqual(t, "0", e.Message, "oldest entry should have been evicted")
	}
	for i := 1; i < len(got); i++ {
		assert.False(t, got[i].Timestamp.After(got[i-1].Timestamp), "entries out of order at %d", i)
	}
}

func TestRecentLimits(t *testing.T) {
	l := New(5)
	assert.Empty(t, l.Recent(10))

	for i := 0; i < 3; i++ {
		l.Append(info(fmt.Sprint(i)))
	}

	cases := []struct {
		name  string
		limit int
		want  []string
	}{
		{"larger than size", 50, []string{"2", "1", "0"}},
		{"exact", 3, []string{"2", "1", "0"}},
		{"smaller", 2, []string{"2", "1"}},
		{"zero", 0, []string{"2", "1", "0"}},
		{"negative", -1, []string{"2", "1", "0"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := l.Recent(c.limit)
			msgs := make([]string, len(got))
			for i, e := range got {
				msgs[i] = e.Message
			}
			assert.Equal(t, c.want, msgs)
		})
	}
}

func TestRecentReturnsCopy(t *testing.T) {
	l := New(5)
	l.Append(info("a"))
	got := l.Recent(1)
	got[0].Message = "mutated"
	assert.Equal(t, "a", l.Recent(1)[0].Message)
}

func TestTimestampsNonDecreasing(t *testing.T) {
	l := New(5)
	base := time.Now()
	times := []time.Time{base, base.Add(-time.Second), base.Add(time.Second)}
	i := 0
	l.now = func() time.Time {
		ts := times[i]
		i++
		return ts
	}

	a := l.Append(info("a"))
	b := l.Append(info("b"))
	c := l.Append(info("c"))
	assert.Equal(t, a.Timestamp, b.Timestamp)
	assert.True(t, c.Timestamp.After(b.Timestamp))
}

func TestConcurrentAppend(t *testing.T) {
	l := New(100)
	const goroutines = 20
	const each = 50

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func() {
			defer wg.Done()
			for j := 0; j < each; j++ {
				l.Append(info("x"))
				_ = l.Recent(10)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, l.Len())
	seen := make(map[string]bool)
	for _, e := range l.Recent(0) {
		assert.False(t, seen[e.ID], "duplicate id %s", e.ID)
		seen[e.ID] = true
	}
}
