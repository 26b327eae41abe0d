package memory

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"einstein-dashboard/internal/domain"
	"golang.org/x/sync/singleflight"
)

// LookupLoader fetches grades and sections from the school API.
type LookupLoader interface {
	ListGrades(ctx context.Context) ([]domain.Grade, error)
	ListSections(ctx context.Context) ([]domain.Section, error)
	SectionsByGrade(ctx context.Context, gradeID string) ([]domain.Section, error)
}

// LookupCache caches grade and section lookups with TTL so list screens
// opened together share one backend call. It implements app.Catalog.
type LookupCache struct {
	loader LookupLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu    sync.RWMutex
	cache map[string]cachedLookup
}

type cachedLookup struct {
	value     any
	expiresAt time.Time
}

func NewLookupCache(loader LookupLoader, ttl time.Duration) *LookupCache {
	return &LookupCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		cache:  make(map[string]cachedLookup),
	}
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

// Invalidate drops every cached lookup, e.g. after a section changed.
func (c *LookupCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.cache)
	return nil
}

func (c *LookupCache) get(key string, now time.Time) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[key]
	if !ok || !entry.expiresAt.After(now) {
		return nil, false
	}
	return entry.value, true
}

// LoadTimeout bounds a shared load once it no longer follows its callers'
// contexts.
const LoadTimeout = 30 * time.Second

// cached shares one load per key between concurrent callers. The load runs
// on a context detached from whichever caller started it; each caller
// stops waiting when its own context ends.
func cached[T any](ctx context.Context, c *LookupCache, key string, load func(context.Context) (T, error)) (T, error) {
	var zero T
	if v, ok := c.get(key, c.clock()); ok {
		return v.(T), nil
	}

	ch := c.sf.DoChan(key, func() (interface{}, error) {
		now := c.clock()
		if v, ok := c.get(key, now); ok {
			return v, nil
		}

		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), LoadTimeout)
		defer cancel()
		value, err := load(loadCtx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.cache[key] = cachedLookup{value: value, expiresAt: now.Add(ttlWithJitter(c.ttl))}
		c.mu.Unlock()
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

// ttlWithJitter adds up to 10% to spread expirations.
func ttlWithJitter(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	return ttl + time.Duration(rand.Int64N(int64(ttl)/10+1))
}
