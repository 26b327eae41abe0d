package app_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"einstein-dashboard/internal/app"
	"einstein-dashboard/internal/domain"
)

// cachingCatalog counts invalidations the way a real cache would see them.
type cachingCatalog struct {
	*fakeBackend
	invalidations atomic.Int32
}

func (c *cachingCatalog) Invalidate(context.Context) error {
	c.invalidations.Add(1)
	return nil
}

func TestLoadLookupsFallsBackToIDs(t *testing.T) {
	backend := &fakeBackend{
		gradesErr: errors.New("boom"),
		sections:  []domain.Section{{ID: "sA", Name: "A", GradeID: "g5"}},
	}
	l, err := app.LoadLookups(context.Background(), backend)
	if err == nil {
		t.Fatalf("expected grades error")
	}
	if got := l.GradeName("g5"); got != "g5" {
		t.Fatalf("expected id fallback, got %q", got)
	}
}

func TestSectionChangesInvalidateCatalog(t *testing.T) {
	backend := &fakeBackend{
		grades:   []domain.Grade{{ID: "g1", Name: "1ro"}},
		sections: []domain.Section{{ID: "s1", Name: "A", GradeID: "g1", Active: true}},
	}
	catalog := &cachingCatalog{fakeBackend: backend}
	list := app.NewSectionList(backend, catalog)
	defer list.Close()
	ctx := context.Background()
	if err := list.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}

	_ = list.OpenActions(ctx, "s1", app.ModalEdit)
	_ = list.SetEditField(ctx, "nombre", "b")
	if err := list.SaveEdit(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}
	if n := catalog.invalidations.Load(); n != 1 {
		t.Fatalf("expected invalidation after update, got %d", n)
	}

	backend.deleteErr = errors.New("boom")
	_ = list.OpenActions(ctx, "s1", app.ModalDelete)
	_ = list.ConfirmDelete(ctx)
	if n := catalog.invalidations.Load(); n != 1 {
		t.Fatalf("failed delete must not invalidate, got %d", n)
	}

	backend.deleteErr = nil
	_ = list.OpenActions(ctx, "s1", app.ModalDelete)
	if err := list.ConfirmDelete(ctx); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n := catalog.invalidations.Load(); n != 2 {
		t.Fatalf("expected invalidation after delete, got %d", n)
	}
}
