package cache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/bookstore/catalog/internal/metrics"
	"github.com/bookstore/catalog/internal/repo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubResolver struct {
	trees map[string][]string
	calls int
}

func (s *stubResolver) ResolveDescendantNames(_ context.Context, rootName string) ([]string, error) {
	s.calls++
	names, ok := s.trees[rootName]
	if !ok {
		return nil, &repo.NotFoundError{Kind: "category", Key: rootName}
	}
	return names, nil
}

func setupCache(t *testing.T, next *stubResolver) (*HierarchyCache, *miniredis.Miniredis, *metrics.Metrics) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	m := metrics.New(prometheus.NewRegistry())
	return NewHierarchyCache(client, next, time.Minute, m, zap.NewNop()), mr, m
}

func TestHierarchyCacheHit(t *testing.T) {
	next := &stubResolver{trees: map[string][]string{"Fiction": {"Fiction", "SciFi"}}}
	c, mr, m := setupCache(t, next)
	ctx := context.Background()

	names, err := c.ResolveDescendantNames(ctx, "Fiction")
	require.NoError(t, err)
	assert.Equal(t, []string{"Fiction", "SciFi"}, names)

	names, err = c.ResolveDescendantNames(ctx, "Fiction")
	require.NoError(t, err)
	assert.Equal(t, []string{"Fiction", "SciFi"}, names)
	assert.Equal(t, 1, next.calls)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HierarchyCache.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HierarchyCache.WithLabelValues("miss")))
	assert.True(t, mr.Exists("catalog:category:descendants:0:Fiction"))
	assert.Equal(t, time.Minute, mr.TTL("catalog:category:descendants:0:Fiction"))
}

func TestHierarchyCacheInvalidate(t *testing.T) {
	next := &stubResolver{trees: map[string][]string{"Fiction": {"Fiction"}}}
	c, _, _ := setupCache(t, next)
	ctx := context.Background()

	_, err := c.ResolveDescendantNames(ctx, "Fiction")
	require.NoError(t, err)

	next.trees["Fiction"] = []string{"Fiction", "Fantasy"}
	require.NoError(t, c.Invalidate(ctx))

	names, err := c.ResolveDescendantNames(ctx, "Fiction")
	require.NoError(t, err)
	assert.Equal(t, []string{"Fiction", "Fantasy"}, names)
	assert.Equal(t, 2, next.calls)
}

func TestHierarchyCacheDoesNotCacheErrors(t *testing.T) {
	next := &stubResolver{trees: map[string][]string{}}
	c, _, _ := setupCache(t, next)
	ctx := context.Background()

	_, err := c.ResolveDescendantNames(ctx, "Missing")
	assert.ErrorIs(t, err, repo.ErrNotFound)
	_, err = c.ResolveDescendantNames(ctx, "Missing")
	assert.ErrorIs(t, err, repo.ErrNotFound)
	assert.Equal(t, 2, next.calls)
}

func TestHierarchyCacheRedisDown(t *testing.T) {
	next := &stubResolver{trees: map[string][]string{"Fiction": {"Fiction"}}}
	c, mr, _ := setupCache(t, next)
	mr.Close()

	names, err := c.ResolveDescendantNames(context.Background(), "Fiction")
	require.NoError(t, err)
	assert.Equal(t, []string{"Fiction"}, names)

	assert.Error(t, c.Invalidate(context.Background()))
}

func TestNewClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewClient(context.Background(), mr.Addr())
	require.NoError(t, err)
	require.NoError(t, client.Close())

	mr.Close()
	_, err = NewClient(context.Background(), mr.Addr())
	assert.Error(t, err)
}
