package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func testCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute), mr
}

func TestFetchLoadsOnceThenServesCached(t *testing.T) {
	c, _ := testCache(t)
	ctx := context.Background()

	loads := 0
	loader := func(ctx context.Context) (any, error) {
		loads++
		return map[string]int{"quantity": 7}, nil
	}

	raw, err := c.Fetch(ctx, "stock:1:COMPANY", loader)
	require.NoError(t, err)
	require.JSONEq(t, `{"quantity":7}`, string(raw))
	require.Equal(t, 1, loads)

	raw, err = c.Fetch(ctx, "stock:1:COMPANY", loader)
	require.NoError(t, err)
	require.JSONEq(t, `{"quantity":7}`, string(raw))
	require.Equal(t, 1, loads, "second fetch served from cache")
}

func TestFetchPropagatesLoaderError(t *testing.T) {
	c, _ := testCache(t)

	boom := errors.New("db unavailable")
	_, err := c.Fetch(context.Background(), "stock:2:COMPANY", func(ctx context.Context) (any, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)

	exists, err := c.Get(context.Background(), "stock:2:COMPANY", &map[string]any{})
	require.NoError(t, err)
	require.False(t, exists, "failed loads are not cached")
}

func TestDeleteInvalidates(t *testing.T) {
	c, _ := testCache(t)
	ctx := context.Background()

	loads := 0
	loader := func(ctx context.Context) (any, error) {
		loads++
		return loads, nil
	}

	_, err := c.Fetch(ctx, "stock:3:PRIVATE", loader)
	require.NoError(t, err)
	require.NoError(t, c.Delete(ctx, "stock:3:PRIVATE"))

	raw, err := c.Fetch(ctx, "stock:3:PRIVATE", loader)
	require.NoError(t, err)
	require.Equal(t, "2", string(raw), "invalidation forces a reload")
}

func TestSetRespectsTTL(t *testing.T) {
	c, mr := testCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "stock:4:COMPANY", 42))
	var value int
	exists, err := c.Get(ctx, "stock:4:COMPANY", &value)
	require.NoError(t, err)
	require.True(t, exists)
	require.Equal(t, 42, value)

	mr.FastForward(2 * time.Minute)
	exists, err = c.Get(ctx, "stock:4:COMPANY", &value)
	require.NoError(t, err)
	require.False(t, exists)
}

func TestNilCacheFallsThrough(t *testing.T) {
	var c *Cache
	raw, err := c.Fetch(context.Background(), "anything", func(ctx context.Context) (any, error) {
		return "direct", nil
	})
	require.NoError(t, err)
	require.Equal(t, `"direct"`, string(raw))
	require.NoError(t, c.Delete(context.Background(), "anything"))
}
