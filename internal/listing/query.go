package listing

import (
	"maps"

	"einstein-dashboard/internal/domain"
)

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// DefaultPageSize is the page size new queries start with.
const DefaultPageSize = 10

// PageSizes are the selectable page sizes.
var PageSizes = []int{10, 25, 50}

type Sort struct {
	Key string    `json:"key"`
	Dir Direction `json:"dir"`
}

// Query is the full query state of a list screen. Every mutation goes
// through a method so the page reset rules are applied in one place.
type Query struct {
	Text     string            `json:"text"`
	Filters  map[string]string `json:"filters,omitempty"`
	Sort     Sort              `json:"sort"`
	Page     int               `json:"page"`
	PageSize int               `json:"pageSize"`
}

func NewQuery(sortKey string) Query {
	return Query{
		Sort:     Sort{Key: sortKey, Dir: Asc},
		Page:     1,
		PageSize: DefaultPageSize,
	}
}

// Clone returns a copy that shares no state with q.
func (q Query) Clone() Query {
	q.Filters = maps.Clone(q.Filters)
	return q
}

// Filter returns the active value of a discrete filter ("" when unset).
func (q Query) Filter(field string) string {
	return q.Filters[field]
}

func (q *Query) SetText(text string) {
	q.Text = text
	q.Page = 1
}

// SetFilter sets an equality filter; an empty value removes the restriction.
func (q *Query) SetFilter(field, value string) {
	if value == "" {
		delete(q.Filters, field)
	} else {
		if q.Filters == nil {
			q.Filters = make(map[string]string)
		}
		q.Filters[field] = value
	}
	q.Page = 1
}

// ClearFilters drops every filter and the search text.
func (q *Query) ClearFilters() {
	q.Filters = nil
	q.Text = ""
	q.Page = 1
}

// SortBy toggles the direction when key is already active, otherwise it
// switches to key ascending.
func (q *Query) SortBy(key string) {
	if q.Sort.Key == key {
		if q.Sort.Dir == Asc {
			q.Sort.Dir = Desc
		} else {
			q.Sort.Dir = Asc
		}
		return
	}
	q.Sort = Sort{Key: key, Dir: Asc}
}

// Goto moves to page p clamped to [1, totalPages].
func (q *Query) Goto(p, totalPages int) {
	q.Page = clamp(p, 1, max(1, totalPages))
}

// Step moves delta pages forward or back, clamped.
func (q *Query) Step(delta, totalPages int) {
	q.Goto(q.Page+delta, totalPages)
}

func (q *Query) SetPageSize(size int) error {
	for _, allowed := range PageSizes {
		if size == allowed {
			q.PageSize = size
			q.Page = 1
			return nil
		}
	}
	return domain.ErrInvalidPageSize
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
