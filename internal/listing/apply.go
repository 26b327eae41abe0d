package listing

import (
	"cmp"
	"slices"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

type valueKind int

const (
	kindText valueKind = iota
	kindNumber
)

// SortValue is the comparable projection of a record for one sort key.
type SortValue struct {
	kind valueKind
	text string
	num  float64
}

// Text sorts with locale-aware, numeric-aware, accent-insensitive collation.
func Text(s string) SortValue { return SortValue{kind: kindText, text: Normalize(s)} }

func Number(n float64) SortValue { return SortValue{kind: kindNumber, num: n} }

// Time sorts by epoch milliseconds; the zero time sorts as 0.
func Time(t time.Time) SortValue {
	if t.IsZero() {
		return Number(0)
	}
	return Number(float64(t.UnixMilli()))
}

// Schema describes how a record type is searched, filtered and sorted.
type Schema[T any] struct {
	// Search returns the searchable text fields of a record.
	Search func(T) []string
	// Filters maps a filter field to the record's values for it. A record
	// matches when its values contain the filter value.
	Filters map[string]func(T) []string
	// Sorts maps a sort key to the record's comparable value.
	Sorts map[string]func(T) SortValue
}

// HasFilter reports whether field is a known filter of the schema.
func (s Schema[T]) HasFilter(field string) bool {
	_, ok := s.Filters[field]
	return ok
}

// HasSort reports whether key is a known sort key of the schema.
func (s Schema[T]) HasSort(key string) bool {
	_, ok := s.Sorts[key]
	return ok
}

// Page is one rendered page plus the metadata of the filtered set.
type Page[T any] struct {
	Items      []T `json:"items"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
}

// Apply derives the visible page from the full collection. It never
// mutates items.
func Apply[T any](items []T, schema Schema[T], q Query) Page[T] {
	filtered := Filter(items, schema, q)
	SortStable(filtered, schema, q.Sort)
	return Paginate(filtered, q.Page, q.PageSize)
}

// Filter returns a new slice with the records matching the search text and
// every active filter. Filters unknown to the schema are ignored.
func Filter[T any](items []T, schema Schema[T], q Query) []T {
	folded := Normalize(q.Text)
	out := make([]T, 0, len(items))
	for _, item := range items {
		if folded != "" && (schema.Search == nil || !matchesFolded(schema.Search(item), folded)) {
			continue
		}
		if !matchesFilters(item, schema, q.Filters) {
			continue
		}
		out = append(out, item)
	}
	return out
}

func matchesFilters[T any](item T, schema Schema[T], filters map[string]string) bool {
	for field, want := range filters {
		if want == "" {
			continue
		}
		values, ok := schema.Filters[field]
		if !ok {
			continue
		}
		if !slices.Contains(values(item), want) {
			return false
		}
	}
	return true
}

// SortStable sorts items in place by the given key. Unknown keys leave the
// order untouched.
func SortStable[T any](items []T, schema Schema[T], s Sort) {
	get, ok := schema.Sorts[s.Key]
	if !ok {
		return
	}
	coll := newCollator()
	slices.SortStableFunc(items, func(a, b T) int {
		c := compareValues(coll, get(a), get(b))
		if s.Dir == Desc {
			return -c
		}
		return c
	})
}

// Paginate slices out page p. The page is clamped to [1, TotalPages] and
// TotalPages is at least 1.
func Paginate[T any](items []T, p, size int) Page[T] {
	if size <= 0 {
		size = DefaultPageSize
	}
	total := len(items)
	totalPages := max(1, (total+size-1)/size)
	p = clamp(p, 1, totalPages)
	start := (p - 1) * size
	end := min(start+size, total)
	return Page[T]{
		Items:      items[start:end],
		Total:      total,
		TotalPages: totalPages,
		Page:       p,
		PageSize:   size,
	}
}

// Distinct collects the sorted, de-duplicated, non-empty values of a field
// across the collection (filter dropdown options).
func Distinct[T any](items []T, values func(T) []string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, item := range items {
		for _, v := range values(item) {
			if v == "" {
				continue
			}
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	coll := newCollator()
	slices.SortStableFunc(out, func(a, b string) int {
		return compareValues(coll, Text(a), Text(b))
	})
	return out
}

// newCollator builds a Spanish collator; collators are not safe for
// concurrent use, so each derivation gets its own.
func newCollator() *collate.Collator {
	return collate.New(language.Spanish, collate.IgnoreCase, collate.IgnoreDiacritics, collate.Numeric)
}

func compareValues(coll *collate.Collator, a, b SortValue) int {
	if a.kind != b.kind {
		return cmp.Compare(a.kind, b.kind)
	}
	if a.kind == kindText {
		return coll.CompareString(a.text, b.text)
	}
	return cmp.Compare(a.num, b.num)
}
