package redis

import (
	"context"
	"encoding/json"
	"log"
	"math/rand/v2"
	"time"

	"einstein-dashboard/internal/domain"
	"einstein-dashboard/internal/infra/memory"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// LookupCache caches grade and section lookups in Redis so every dashboard
// instance shares them, and falls back to the loader on a miss.
// Values are stored as JSON: SET lookup:grades, SET lookup:sections:grade:{id}.
type LookupCache struct {
	client *redis.Client
	loader memory.LookupLoader
	ttl    time.Duration
	sf     singleflight.Group
}

func NewLookupCache(client *redis.Client, loader memory.LookupLoader, ttl time.Duration) *LookupCache {
	return &LookupCache{client: client, loader: loader, ttl: ttl}
}

func (c *LookupCache) Grades(ctx context.Context) ([]domain.Grade, error) {
	return cached(ctx, c, "grades", c.loader.ListGrades)
}

func (c *LookupCache) Sections(ctx context.Context) ([]domain.Section, error) {
	return cached(ctx, c, "sections", c.loader.ListSections)
}

func (c *LookupCache) SectionsByGrade(ctx context.Context, gradeID string) ([]domain.Section, error) {
	return cached(ctx, c, "sections:grade:"+gradeID, func(ctx context.Context) ([]domain.Section, error) {
		return c.loader.SectionsByGrade(ctx, gradeID)
	})
}

// Invalidate removes every cached lookup.
func (c *LookupCache) Invalidate(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, lookupKey("*"), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

func lookupKey(name string) string {
	return "lookup:" + name
}

func readCached[T any](ctx context.Context, c *LookupCache, key string) (T, bool) {
	var out T
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return out, false
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, false
	}
	return out, true
}

func cached[T any](ctx context.Context, c *LookupCache, name string, load func(context.Context) (T, error)) (T, error) {
	var zero T
	key := lookupKey(name)
	if v, ok := readCached[T](ctx, c, key); ok {
		return v, nil
	}

	// The shared load is detached from the caller that started it.
	ch := c.sf.DoChan(key, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), memory.LoadTimeout)
		defer cancel()

		// Re-check cache in case another goroutine filled it.
		if v, ok := readCached[T](loadCtx, c, key); ok {
			return v, nil
		}

		value, err := load(loadCtx)
		if err != nil {
			return nil, err
		}

		data, err := json.Marshal(value)
		if err == nil {
			err = c.client.Set(loadCtx, key, data, ttlWithJitter(c.ttl)).Err()
		}
		if err != nil {
			log.Printf("cache lookup %s: %v", name, err)
		}
		return value, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func ttlWithJitter(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	return ttl + time.Duration(rand.Int64N(int64(ttl)/10+1))
}
