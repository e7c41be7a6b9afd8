package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Babylonias/adminnexus-portal/internal/cache"
	"github.com/Babylonias/adminnexus-portal/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisKV(t *testing.T) (*miniredis.Miniredis, *cache.RedisKV) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, cache.NewRedisKV(client)
}

func TestSnapshotCache_SaveLoad(t *testing.T) {
	ctx := context.Background()
	c := cache.NewSnapshotCache[domain.Classroom](newFakeKV(), "classrooms", time.Hour)
	assert.Equal(t, "adminnexus:snapshot:classrooms", c.Key())

	_, err := c.Load(ctx)
	assert.True(t, errors.Is(err, cache.ErrMiss))

	items := []domain.Classroom{
		{ID: "c1", Name: "Amphi A", Status: domain.StatusActive, Equipment: []string{"Projector"}, Annexes: []string{}},
		{ID: "c2", Name: "Salle B", Status: domain.StatusDraft, Coordinate: &domain.Coordinate{Lat: 0, Lng: 2.35}, Equipment: []string{}, Annexes: []string{}},
	}
	require.NoError(t, c.Save(ctx, items))

	got, err := c.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, items, got)
}

func TestSnapshotCache_SaveNilAsEmpty(t *testing.T) {
	ctx := context.Background()
	kv := newFakeKV()
	c := cache.NewSnapshotCache[domain.University](kv, "universities", 0)

	require.NoError(t, c.Save(ctx, nil))
	raw, err := kv.Get(ctx, c.Key())
	require.NoError(t, err)
	assert.Equal(t, "[]", raw)

	got, err := c.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSnapshotCache_CorruptValue(t *testing.T) {
	ctx := context.Background()
	kv := newFakeKV()
	c := cache.NewSnapshotCache[domain.University](kv, "universities", time.Hour)
	require.NoError(t, kv.Set(ctx, c.Key(), "{not json", 0))

	_, err := c.Load(ctx)
	require.Error(t, err)
	assert.False(t, errors.Is(err, cache.ErrMiss))
}

func TestSnapshotCache_Redis_TTL(t *testing.T) {
	ctx := context.Background()
	mr, kv := setupRedisKV(t)
	c := cache.NewSnapshotCache[domain.University](kv, "universities", time.Minute)

	require.NoError(t, c.Save(ctx, []domain.University{{ID: "u1", Name: "Université Paris"}}))
	assert.Equal(t, time.Minute, mr.TTL(c.Key()))

	got, err := c.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Université Paris", got[0].Name)

	mr.FastForward(2 * time.Minute)
	_, err = c.Load(ctx)
	assert.True(t, errors.Is(err, cache.ErrMiss))
}

func TestPurge(t *testing.T) {
	ctx := context.Background()
	mr, kv := setupRedisKV(t)
	require.NoError(t, mr.Set("unrelated", "keep"))

	universities := cache.NewSnapshotCache[domain.University](kv, "universities", 0)
	classrooms := cache.NewSnapshotCache[domain.Classroom](kv, "classrooms", 0)
	require.NoError(t, universities.Save(ctx, []domain.University{{ID: "u1"}}))
	require.NoError(t, classrooms.Save(ctx, []domain.Classroom{{ID: "c1"}}))

	n, err := cache.Purge(ctx, kv)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.False(t, mr.Exists(universities.Key()))
	assert.False(t, mr.Exists(classrooms.Key()))
	assert.True(t, mr.Exists("unrelated"))

	n, err = cache.Purge(ctx, kv)
	require.NoError(t, err)
	assert.Zero(t, n)
}
