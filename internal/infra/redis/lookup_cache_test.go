package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"einstein-dashboard/internal/domain"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestLookupCacheCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{}
	cache := NewLookupCache(newClient(mr), loader, time.Minute)

	grades, err := cache.Grades(context.Background())
	if err != nil {
		t.Fatalf("grades: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if !mr.Exists("lookup:grades") {
		t.Fatalf("expected lookup key in redis")
	}

	// Second call should hit cache, loader not incremented.
	again, _ := cache.Grades(context.Background())
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if len(again) != len(grades) || again[0].Name != "1ro" {
		t.Fatalf("cached grades differ: %+v", again)
	}
}

func TestLookupCacheInvalidate(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{}
	cache := NewLookupCache(newClient(mr), loader, time.Minute)
	ctx := context.Background()

	_, _ = cache.SectionsByGrade(ctx, "g1")
	if !mr.Exists("lookup:sections:grade:g1") {
		t.Fatalf("expected per-grade key")
	}
	if err := cache.Invalidate(ctx); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if mr.Exists("lookup:sections:grade:g1") {
		t.Fatalf("expected key removed")
	}
	_, _ = cache.SectionsByGrade(ctx, "g1")
	if loader.calls != 2 {
		t.Fatalf("expected reload after invalidate, got %d", loader.calls)
	}
}

type countingLoader struct {
	mu    sync.Mutex
	calls int
}

func (l *countingLoader) count() {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
}

func (l *countingLoader) ListGrades(context.Context) ([]domain.Grade, error) {
	l.count()
	return []domain.Grade{{ID: "g1", Name: "1ro"}}, nil
}

func (l *countingLoader) ListSections(context.Context) ([]domain.Section, error) {
	l.count()
	return []domain.Section{{ID: "s1", Name: "A", GradeID: "g1"}}, nil
}

func (l *countingLoader) SectionsByGrade(_ context.Context, gradeID string) ([]domain.Section, error) {
	l.count()
	return []domain.Section{{ID: "s1", Name: "A", GradeID: gradeID}}, nil
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}

func TestLookupCacheSharedLoadOutlivesCancelledCaller(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &gatedLoader{countingLoader: &countingLoader{}, entered: make(chan struct{}, 1), release: make(chan struct{})}
	cache := NewLookupCache(newClient(mr), loader, time.Minute)

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := cache.Grades(first)
		firstErr <- err
	}()
	<-loader.entered

	secondErr := make(chan error, 1)
	go func() {
		_, err := cache.Grades(context.Background())
		secondErr <- err
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancelled caller to stop waiting, got %v", err)
	}
	close(loader.release)
	if err := <-secondErr; err != nil {
		t.Fatalf("expected the other caller to get the shared result, got %v", err)
	}
	if !mr.Exists("lookup:grades") {
		t.Fatalf("expected the shared result stored in redis")
	}
	if loader.calls != 1 {
		t.Fatalf("expected one shared load, got %d", loader.calls)
	}
}

// gatedLoader blocks ListGrades until release is closed and fails when its
// context ends first.
type gatedLoader struct {
	*countingLoader
	entered chan struct{}
	release chan struct{}
}

func (l *gatedLoader) ListGrades(ctx context.Context) ([]domain.Grade, error) {
	l.entered <- struct{}{}
	select {
	case <-l.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return l.countingLoader.ListGrades(ctx)
}
