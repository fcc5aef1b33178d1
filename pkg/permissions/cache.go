package permissions

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/stchstepan/passbolt/pkg/model"
	"github.com/stchstepan/passbolt/pkg/observability"
)

// noAccess is the cached marker for "user holds no permission". Caching the
// absence avoids re-running the visibility join for every request that probes
// an invisible resource.
const noAccess = 0

// CachedIndex decorates a Reader with a Redis level cache and an in-process
// LRU for group memberships. Entries expire by TTL; the cache is a
// best-effort layer and every Redis failure falls back to the underlying
// reader.
type CachedIndex struct {
	reader  Reader
	redis   *redis.Client
	ttl     time.Duration
	groups  *expirable.LRU[string, []uuid.UUID]
	metrics *observability.Metrics
}

// NewCachedIndex creates a caching decorator. metrics may be nil.
func NewCachedIndex(reader Reader, client *redis.Client, ttl time.Duration, groupLRUSize int, metrics *observability.Metrics) *CachedIndex {
	if groupLRUSize <= 0 {
		groupLRUSize = 1024
	}
	return &CachedIndex{
		reader:  reader,
		redis:   client,
		ttl:     ttl,
		groups:  expirable.NewLRU[string, []uuid.UUID](groupLRUSize, nil, ttl),
		metrics: metrics,
	}
}

func levelKey(userID, resourceID uuid.UUID) string {
	return fmt.Sprintf("permission:level:%s:%s", userID, resourceID)
}

// LevelsFor serves levels from Redis where possible and falls through to the
// underlying reader for misses.
func (c *CachedIndex) LevelsFor(ctx context.Context, userID uuid.UUID, resourceIDs []uuid.UUID) (map[uuid.UUID]model.PermissionLevel, error) {
	if len(resourceIDs) == 0 {
		return map[uuid.UUID]model.PermissionLevel{}, nil
	}

	keys := make([]string, len(resourceIDs))
	for i, id := range resourceIDs {
		keys[i] = levelKey(userID, id)
	}

	levels := make(map[uuid.UUID]model.PermissionLevel, len(resourceIDs))
	missing := resourceIDs

	cached, err := c.redis.MGet(ctx, keys...).Result()
	if err == nil {
		missing = make([]uuid.UUID, 0)
		for i, raw := range cached {
			str, ok := raw.(string)
			if !ok {
				missing = append(missing, resourceIDs[i])
				continue
			}
			level, convErr := strconv.Atoi(str)
			if convErr != nil {
				missing = append(missing, resourceIDs[i])
				continue
			}
			c.hit("level")
			if level != noAccess {
				levels[resourceIDs[i]] = model.PermissionLevel(level)
			}
		}
	}

	if len(missing) == 0 {
		return levels, nil
	}
	for range missing {
		c.miss("level")
	}

	fresh, err := c.reader.LevelsFor(ctx, userID, missing)
	if err != nil {
		return nil, err
	}

	pipe := c.redis.Pipeline()
	for _, id := range missing {
		level, ok := fresh[id]
		if ok {
			levels[id] = level
		} else {
			level = noAccess
		}
		pipe.Set(ctx, levelKey(userID, id), strconv.Itoa(int(level)), c.ttl)
	}
	// Cache population is best effort.
	_, _ = pipe.Exec(ctx)

	return levels, nil
}

// VisibleResourceIDs is not cached: the page shape depends on offset and
// limit and the query is already index-backed.
func (c *CachedIndex) VisibleResourceIDs(ctx context.Context, userID uuid.UUID, offset, limit int) ([]uuid.UUID, error) {
	return c.reader.VisibleResourceIDs(ctx, userID, offset, limit)
}

// SharedWithGroup passes through to the underlying reader.
func (c *CachedIndex) SharedWithGroup(ctx context.Context, groupID uuid.UUID) (map[uuid.UUID]struct{}, error) {
	return c.reader.SharedWithGroup(ctx, groupID)
}

// SharedWithMe passes through to the underlying reader.
func (c *CachedIndex) SharedWithMe(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]struct{}, error) {
	return c.reader.SharedWithMe(ctx, userID)
}

// GroupIDsFor serves group memberships from the in-process LRU.
func (c *CachedIndex) GroupIDsFor(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	key := userID.String()
	if ids, ok := c.groups.Get(key); ok {
		c.hit("groups")
		return ids, nil
	}
	c.miss("groups")

	ids, err := c.reader.GroupIDsFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.groups.Add(key, ids)
	return ids, nil
}

// Invalidate drops every cached level for a user. Called when the user's
// memberships or permissions change.
func (c *CachedIndex) Invalidate(ctx context.Context, userID uuid.UUID) error {
	c.groups.Remove(userID.String())

	pattern := fmt.Sprintf("permission:level:%s:*", userID)
	iter := c.redis.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := c.redis.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to invalidate cache: %w", err)
		}
	}
	return iter.Err()
}

func (c *CachedIndex) hit(cache string) {
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.WithLabelValues(cache).Inc()
	}
}

func (c *CachedIndex) miss(cache string) {
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.WithLabelValues(cache).Inc()
	}
}
