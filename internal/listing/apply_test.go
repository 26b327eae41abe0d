package listing

import (
	"errors"
	"testing"
	"time"

	"einstein-dashboard/internal/domain"
)

type person struct {
	id      string
	name    string
	grades  []string
	status  string
	created string
}

func personSchema() Schema[person] {
	return Schema[person]{
		Search: func(p person) []string { return []string{p.name, p.id} },
		Filters: map[string]func(person) []string{
			"grado":  func(p person) []string { return p.grades },
			"estado": func(p person) []string { return []string{p.status} },
		},
		Sorts: map[string]func(person) SortValue{
			"nombre": func(p person) SortValue { return Text(p.name) },
			"fecha": func(p person) SortValue {
				t, _ := domain.ParseTimestamp(p.created)
				return Time(t)
			},
		},
	}
}

func samplePeople() []person {
	return []person{
		{id: "1", name: "Garcia", grades: []string{"5"}, status: "activo", created: "2024-03-01T00:00:00Z"},
		{id: "2", name: "GARCIA", grades: []string{"4", "5"}, status: "inactivo", created: "2024-01-01T00:00:00Z"},
		{id: "3", name: "Álvarez", grades: []string{"4"}, status: "activo", created: "2024-02-01T00:00:00Z"},
		{id: "4", name: "Zapata", grades: nil, status: "activo", created: "bad date"},
	}
}

func TestAccentAndCaseInsensitiveSearch(t *testing.T) {
	q := NewQuery("nombre")
	q.SetText("garcía")
	page := Apply(samplePeople(), personSchema(), q)
	if page.Total != 2 {
		t.Fatalf("expected both Garcia spellings, got %d", page.Total)
	}
	for _, p := range page.Items {
		if p.id != "1" && p.id != "2" {
			t.Fatalf("unexpected match %+v", p)
		}
	}

	q.SetText("alvarez")
	if got := Apply(samplePeople(), personSchema(), q).Total; got != 1 {
		t.Fatalf("expected Álvarez matched by alvarez, got %d", got)
	}
}

func TestMultiValuedFilterAndSubset(t *testing.T) {
	q := NewQuery("nombre")
	q.SetFilter("grado", "5")
	page := Apply(samplePeople(), personSchema(), q)
	if page.Total != 2 {
		t.Fatalf("expected two people in grade 5, got %d", page.Total)
	}

	q.SetFilter("estado", "activo")
	page = Apply(samplePeople(), personSchema(), q)
	if page.Total != 1 || page.Items[0].id != "1" {
		t.Fatalf("expected only id 1, got %+v", page.Items)
	}

	seen := map[string]bool{}
	for _, p := range page.Items {
		if seen[p.id] {
			t.Fatalf("duplicate record %s", p.id)
		}
		seen[p.id] = true
	}
}

func TestSortingIsStableAndIdempotent(t *testing.T) {
	items := samplePeople()
	schema := personSchema()
	s := Sort{Key: "nombre", Dir: Asc}

	first := Filter(items, schema, NewQuery("nombre"))
	SortStable(first, schema, s)
	// Garcia and GARCIA collate equal, so input order must be kept.
	if first[0].id != "3" || first[1].id != "1" || first[2].id != "2" || first[3].id != "4" {
		t.Fatalf("unexpected order %v", ids(first))
	}

	second := append([]person(nil), first...)
	SortStable(second, schema, s)
	for i := range first {
		if first[i].id != second[i].id {
			t.Fatalf("sorting twice changed order: %v vs %v", ids(first), ids(second))
		}
	}

	SortStable(second, schema, Sort{Key: "nombre", Dir: Desc})
	if second[0].id != "4" {
		t.Fatalf("expected Zapata first descending, got %v", ids(second))
	}
}

func TestDateSortTreatsUnparseableAsZero(t *testing.T) {
	items := Filter(samplePeople(), personSchema(), NewQuery("fecha"))
	SortStable(items, personSchema(), Sort{Key: "fecha", Dir: Asc})
	if got := ids(items); got != "4231" {
		t.Fatalf("unexpected date order %s", got)
	}
}

func TestNumericCollation(t *testing.T) {
	items := []person{{id: "a", name: "Grupo 10"}, {id: "b", name: "Grupo 9"}, {id: "c", name: "grupo 2"}}
	SortStable(items, personSchema(), Sort{Key: "nombre", Dir: Asc})
	if got := ids(items); got != "cba" {
		t.Fatalf("expected numeric-aware order, got %s", got)
	}
}

func TestPaginationBounds(t *testing.T) {
	items := make([]int, 23)
	for i := range items {
		items[i] = i
	}
	page := Paginate(items, 3, 10)
	if page.TotalPages != 3 || len(page.Items) != 3 || page.Items[0] != 20 {
		t.Fatalf("unexpected last page %+v", page)
	}
	page = Paginate(items, 99, 10)
	if page.Page != 3 {
		t.Fatalf("expected page clamped to 3, got %d", page.Page)
	}
	page = Paginate(items, 0, 10)
	if page.Page != 1 || len(page.Items) != 10 {
		t.Fatalf("expected first page, got %+v", page)
	}

	empty := Paginate([]int{}, 1, 10)
	if empty.TotalPages != 1 || len(empty.Items) != 0 || empty.Total != 0 {
		t.Fatalf("expected single empty page, got %+v", empty)
	}
}

func TestQueryMutationsResetPage(t *testing.T) {
	q := NewQuery("nombre")
	q.Goto(3, 5)
	q.SetFilter("grado", "4")
	if q.Page != 1 {
		t.Fatalf("filter change must reset page, got %d", q.Page)
	}
	q.Goto(2, 5)
	q.SetText("ana")
	if q.Page != 1 {
		t.Fatalf("search change must reset page, got %d", q.Page)
	}
	q.Goto(2, 5)
	q.ClearFilters()
	if q.Page != 1 || q.Text != "" || len(q.Filters) != 0 {
		t.Fatalf("clear must reset everything, got %+v", q)
	}
	if err := q.SetPageSize(25); err != nil || q.PageSize != 25 {
		t.Fatalf("expected page size 25, got %d (%v)", q.PageSize, err)
	}
	if err := q.SetPageSize(7); !errors.Is(err, domain.ErrInvalidPageSize) {
		t.Fatalf("expected invalid page size, got %v", err)
	}
}

func TestSortByToggles(t *testing.T) {
	q := NewQuery("apellido")
	q.SortBy("apellido")
	if q.Sort.Dir != Desc {
		t.Fatalf("expected toggle to desc")
	}
	q.SortBy("correo")
	if q.Sort.Key != "correo" || q.Sort.Dir != Asc {
		t.Fatalf("expected new key ascending, got %+v", q.Sort)
	}
}

func TestDistinct(t *testing.T) {
	got := Distinct(samplePeople(), func(p person) []string { return p.grades })
	if len(got) != 2 || got[0] != "4" || got[1] != "5" {
		t.Fatalf("unexpected distinct values %v", got)
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("  José   Pérez "); got != "jose perez" {
		t.Fatalf("unexpected normalization %q", got)
	}
}

func TestDebouncerRunsLastCallOnly(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	defer d.Stop()

	got := make(chan string, 4)
	for _, v := range []string{"g", "ga", "gar"} {
		v := v
		d.Do(func() { got <- v })
	}

	select {
	case v := <-got:
		if v != "gar" {
			t.Fatalf("expected last value, got %q", v)
		}
	case <-time.After(time.Second):
		t.Fatalf("debounced call never ran")
	}
	select {
	case v := <-got:
		t.Fatalf("unexpected extra call %q", v)
	case <-time.After(60 * time.Millisecond):
	}
}

func TestDebouncerStop(t *testing.T) {
	d := NewDebouncer(10 * time.Millisecond)
	ran := make(chan struct{}, 1)
	d.Do(func() { ran <- struct{}{} })
	d.Stop()
	d.Do(func() { ran <- struct{}{} })
	select {
	case <-ran:
		t.Fatalf("stopped debouncer must not run")
	case <-time.After(50 * time.Millisecond):
	}
}

func ids(items []person) string {
	out := ""
	for _, p := range items {
		out += p.id
	}
	return out
}

func TestPageSizeChoices(t *testing.T) {
	for _, size := range []int{10, 25, 50} {
		q := NewQuery("apellido")
		if err := q.SetPageSize(size); err != nil {
			t.Fatalf("expected %d to be selectable: %v", size, err)
		}
	}
	for _, size := range []int{0, 5, 20, 100} {
		q := NewQuery("apellido")
		if err := q.SetPageSize(size); !errors.Is(err, domain.ErrInvalidPageSize) {
			t.Fatalf("expected %d rejected, got %v", size, err)
		}
	}
	if q := NewQuery("apellido"); q.PageSize != DefaultPageSize || DefaultPageSize != PageSizes[0] {
		t.Fatalf("expected default page size %d, got %d", PageSizes[0], q.PageSize)
	}
}
