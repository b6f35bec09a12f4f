package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/free99/internal/model"
	"github.com/d60-Lab/free99/pkg/logger"
)

// UserLoader is the bulk lookup the cache falls back to on a miss.
type UserLoader interface {
	GetByIDs(ctx context.Context, ids []string) ([]*model.User, error)
}

// ProfileCache is a read-through cache of user display fields keyed by user id.
// A nil redis client turns it into a plain pass-through to the loader.
type ProfileCache struct {
	loader UserLoader
	rdb    *redis.Client
	ttl    time.Duration

	hits      atomic.Int64
	misses    atomic.Int64
	bulkLoads atomic.Int64
}

func NewProfileCache(loader UserLoader, rdb *redis.Client, ttl time.Duration) *ProfileCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &ProfileCache{loader: loader, rdb: rdb, ttl: ttl}
}

func profileKey(id string) string {
	return fmt.Sprintf("profile:%s", id)
}

// Profiles resolves ids to profiles. Unknown users are simply absent from the
// result so callers can apply their own fallback.
func (c *ProfileCache) Profiles(ctx context.Context, ids []string) (map[string]model.UserProfile, error) {
	ids = uniq(ids)
	out := make(map[string]model.UserProfile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	if c.rdb != nil {
		keys := make([]string, len(ids))
		for i, id := range ids {
			keys[i] = profileKey(id)
		}
		vals, err := c.rdb.MGet(ctx, keys...).Result()
		if err != nil {
			// redis 不可用时直接回源
			logger.Warn("profile cache mget failed", zap.Error(err))
		} else {
			for i, v := range vals {
				str, ok := v.(string)
				if !ok {
					continue
				}
				var p model.UserProfile
				if uErr := json.Unmarshal([]byte(str), &p); uErr == nil {
					out[ids[i]] = p
				}
			}
		}
	}

	missing := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			missing = append(missing, id)
		}
	}
	c.hits.Add(int64(len(ids) - len(missing)))
	c.misses.Add(int64(len(missing)))
	if len(missing) == 0 {
		return out, nil
	}

	c.bulkLoads.Add(1)
	users, err := c.loader.GetByIDs(ctx, missing)
	if err != nil {
		return nil, err
	}
	var pipe redis.Pipeliner
	if c.rdb != nil {
		pipe = c.rdb.Pipeline()
	}
	for _, u := range users {
		p := u.Profile()
		out[u.ID] = p
		if pipe == nil {
			continue
		}
		if payload, err := json.Marshal(p); err == nil {
			pipe.Set(ctx, profileKey(u.ID), payload, c.ttl)
		}
	}
	if pipe != nil && len(users) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			logger.Warn("profile cache fill failed", zap.Error(err))
		}
	}
	return out, nil
}

// ResetCounters clears recorded hit/miss counters.
func (c *ProfileCache) ResetCounters() {
	c.hits.Store(0)
	c.misses.Store(0)
	c.bulkLoads.Store(0)
}

// Counters reports cache effectiveness since the last reset.
func (c *ProfileCache) Counters() Counters {
	return Counters{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		BulkLoads: c.bulkLoads.Load(),
	}
}

// Counters summarises cache traffic.
type Counters struct {
	Hits      int64
	Misses    int64
	BulkLoads int64
}

func uniq(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
