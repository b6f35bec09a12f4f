package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/free99/internal/model"
)

type fakeLoader struct {
	users map[string]*model.User
	calls [][]string
	err   error
}

func (f *fakeLoader) GetByIDs(_ context.Context, ids []string) ([]*model.User, error) {
	f.calls = append(f.calls, append([]string(nil), ids...))
	if f.err != nil {
		return nil, f.err
	}
	var out []*model.User
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func newLoader() *fakeLoader {
	return &fakeLoader{users: map[string]*model.User{
		"u1": {ID: "u1", FullName: "Ada", ResidenceHall: "North", PickupPreference: "lobby"},
		"u2": {ID: "u2", FullName: "Grace", ResidenceHall: "South", PickupPreference: "door"},
	}}
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestProfileCache_ReadThrough(t *testing.T) {
	mr, rdb := newRedis(t)
	loader := newLoader()
	c := NewProfileCache(loader, rdb, time.Minute)
	ctx := context.Background()

	got, err := c.Profiles(ctx, []string{"u1", "u2", "u1", "ghost"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, "Ada", got["u1"].FullName)
	_, ok := got["ghost"]
	assert.False(t, ok)
	require.Len(t, loader.calls, 1)
	assert.ElementsMatch(t, []string{"u1", "u2", "ghost"}, loader.calls[0])
	assert.True(t, mr.Exists("profile:u1"))
	assert.False(t, mr.Exists("profile:ghost"))

	c.ResetCounters()
	got, err = c.Profiles(ctx, []string{"u1", "u2"})
	require.NoError(t, err)
	assert.Equal(t, "South", got["u2"].ResidenceHall)
	assert.Len(t, loader.calls, 1, "second read served from redis")
	assert.Equal(t, Counters{Hits: 2}, c.Counters())

	mr.FastForward(2 * time.Minute)
	_, err = c.Profiles(ctx, []string{"u1"})
	require.NoError(t, err)
	assert.Len(t, loader.calls, 2, "expired entry reloads")
}

func TestProfileCache_RedisDownFallsBackToLoader(t *testing.T) {
	mr, rdb := newRedis(t)
	loader := newLoader()
	c := NewProfileCache(loader, rdb, time.Minute)
	mr.Close()

	got, err := c.Profiles(context.Background(), []string{"u1"})
	require.NoError(t, err)
	assert.Equal(t, "Ada", got["u1"].FullName)
	assert.Equal(t, int64(1), c.Counters().BulkLoads)
}

func TestProfileCache_NoRedis(t *testing.T) {
	loader := newLoader()
	c := NewProfileCache(loader, nil, 0)

	for i := 0; i < 2; i++ {
		got, err := c.Profiles(context.Background(), []string{"u2"})
		require.NoError(t, err)
		assert.Equal(t, "Grace", got["u2"].FullName)
	}
	assert.Len(t, loader.calls, 2)

	loader.err = errors.New("db down")
	_, err := c.Profiles(context.Background(), []string{"u1"})
	assert.Error(t, err)

	got, err := c.Profiles(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}
