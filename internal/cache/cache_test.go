package cache

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGetSet(t *testing.T) {
	c := New(10, time.Minute)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("k", "v")
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", got)
}

func TestGet_TTLExpiry(t *testing.T) {
	c := New(10, time.Minute)
	c.SetTTL("k", "v", 100*time.Millisecond)

	_, ok := c.Get("k")
	require.True(t, ok)

	time.Sleep(120 * time.Millisecond)

	_, ok = c.Get("k")
	assert.False(t, ok, "entry must be absent after its TTL with no explicit invalidation")
}

func TestSet_CapacityEvictsOldest(t *testing.T) {
	c := New(2, time.Minute)

	c.Set("first", 1)
	time.Sleep(5 * time.Millisecond)
	c.Set("second", 2)
	time.Sleep(5 * time.Millisecond)
	c.Set("third", 3)

	_, ok := c.Get("first")
	assert.False(t, ok, "oldest entry should have been evicted")
	_, ok = c.Get("second")
	assert.True(t, ok)
	_, ok = c.Get("third")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestSet_OverwriteDoesNotEvict(t *testing.T) {
	c := New(2, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("a", 10)

	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 10, got)
	_, ok = c.Get("b")
	assert.True(t, ok)
}

func TestInvalidate(t *testing.T) {
	c := New(10, time.Minute)
	c.Set("k", "v")

	c.Invalidate("k")

	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestInvalidateByPattern(t *testing.T) {
	c := New(10, time.Minute)
	c.Set("list:secret:alice", 1)
	c.Set("list:secret:bob", 2)
	c.Set("list:api_key:alice", 3)
	c.Set("search:secret:alice:db", 4)

	removed := c.InvalidateByPattern(regexp.MustCompile(`^(list|search):secret:alice`))
	assert.Equal(t, 2, removed)

	_, ok := c.Get("list:secret:alice")
	assert.False(t, ok)
	_, ok = c.Get("search:secret:alice:db")
	assert.False(t, ok)
	_, ok = c.Get("list:secret:bob")
	assert.True(t, ok)
	_, ok = c.Get("list:api_key:alice")
	assert.True(t, ok)
}

func TestSweep(t *testing.T) {
	c := New(10, time.Minute)
	c.SetTTL("short", 1, 10*time.Millisecond)
	c.Set("long", 2)

	time.Sleep(20 * time.Millisecond)

	removed := c.Sweep()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, c.Len())
}

func TestStartSweeper(t *testing.T) {
	c := New(10, time.Minute)
	c.SetTTL("short", 1, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.StartSweeper(ctx, 20*time.Millisecond, zap.NewNop())

	assert.Eventually(t, func() bool {
		return c.Len() == 0
	}, time.Second, 10*time.Millisecond, "sweeper should remove expired entries without reads")
}

func TestFetch_MissThenHit(t *testing.T) {
	c := New(10, time.Minute)
	calls := 0
	fn := func(context.Context) ([]string, error) {
		calls++
		return []string{"a", "b"}, nil
	}

	got, err := Fetch(context.Background(), c, "k", time.Minute, fn)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, 1, calls)

	got, err = Fetch(context.Background(), c, "k", time.Minute, fn)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, 1, calls, "second fetch must be served from cache")
}

func TestFetch_ErrorNotCached(t *testing.T) {
	c := New(10, time.Minute)
	wantErr := errors.New("backend down")
	calls := 0
	fn := func(context.Context) (int, error) {
		calls++
		return 0, wantErr
	}

	_, err := Fetch(context.Background(), c, "k", time.Minute, fn)
	assert.ErrorIs(t, err, wantErr)

	_, err = Fetch(context.Background(), c, "k", time.Minute, fn)
	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, 2, calls, "errors must not be cached")
}

func TestFetch_StalenessBound(t *testing.T) {
	c := New(10, time.Minute)
	calls := 0
	fn := func(context.Context) (int, error) {
		calls++
		return calls, nil
	}

	got, err := Fetch(context.Background(), c, "k", 20*time.Millisecond, fn)
	require.NoError(t, err)
	assert.Equal(t, 1, got)

	time.Sleep(30 * time.Millisecond)

	got, err = Fetch(context.Background(), c, "k", 20*time.Millisecond, fn)
	require.NoError(t, err)
	assert.Equal(t, 2, got, "after ttl the backing fn must run again")
}
