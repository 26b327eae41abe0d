package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"einstein-dashboard/internal/domain"
	"einstein-dashboard/internal/listing"
)

// ModalKind names the action modal open on a list screen.
type ModalKind string

const (
	ModalNone   ModalKind = ""
	ModalView   ModalKind = "view"
	ModalEdit   ModalKind = "edit"
	ModalDelete ModalKind = "delete"
)

// ParseModalKind accepts the three action kinds a row menu offers.
func ParseModalKind(raw string) (ModalKind, error) {
	switch k := ModalKind(raw); k {
	case ModalView, ModalEdit, ModalDelete:
		return k, nil
	}
	return ModalNone, fmt.Errorf("%w: action %q", domain.ErrUnknownField, raw)
}

type NoticeLevel string

const (
	NoticeSuccess NoticeLevel = "success"
	NoticeError   NoticeLevel = "error"
	NoticeWarning NoticeLevel = "warning"
	NoticeInfo    NoticeLevel = "info"
)

// Notice is a transient toast. Seq increases with every notice so clients
// can tell a repeated message from a new one.
type Notice struct {
	Seq     uint64      `json:"seq"`
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

// Messages are the user-facing texts of one list screen.
type Messages struct {
	Loaded       string // printf format, receives the row count
	LoadFailed   string
	Updated      string
	UpdateFailed string
	Deleted      string
	DeleteFailed string
	MissingID    string
	LookupFailed string
}

// EntitySource is the backend side of one list screen.
type EntitySource[T, E any] interface {
	List(ctx context.Context) ([]T, error)
	// RowID identifies a row within the loaded collection.
	RowID(row T) string
	// TargetID is the identifier update and delete calls use; "" when the
	// row lacks one.
	TargetID(row T) string
	// EditModel seeds the edit form from a row, password blank.
	EditModel(ctx context.Context, row T) (E, error)
	SetField(ctx context.Context, edit *E, field, value string) error
	Update(ctx context.Context, id string, edit E) error
	Delete(ctx context.Context, id string) error
}

// ListConfig wires a source to its schema and presentation.
type ListConfig[T any] struct {
	Entity      string
	DefaultSort string
	Messages    Messages
	// Catalog, when set, is loaded before the first fetch and feeds Lookups
	// into Schema and Present.
	Catalog Catalog
	Schema  func(Lookups) listing.Schema[T]
	// Present maps a row to what the view renders; nil renders the row.
	Present func(Lookups, T) any
}

// ListView is the serializable state of a list screen.
type ListView struct {
	Entity        string              `json:"entity"`
	Loading       bool                `json:"loading"`
	Error         string              `json:"error,omitempty"`
	Query         listing.Query       `json:"query"`
	Rows          []any               `json:"rows"`
	Total         int                 `json:"total"`
	TotalPages    int                 `json:"totalPages"`
	PageSizes     []int               `json:"pageSizes"`
	FilterOptions map[string][]string `json:"filterOptions,omitempty"`
	MenuRowID     string              `json:"menuRowId,omitempty"`
	Modal         ModalKind           `json:"modal,omitempty"`
	ActionRow     any                 `json:"actionRow,omitempty"`
	Edit          any                 `json:"edit,omitempty"`
	EditErrors    map[string]string   `json:"editErrors,omitempty"`
	Saving        bool                `json:"saving"`
	Deleting      bool                `json:"deleting"`
	Notice        *Notice             `json:"notice,omitempty"`
}

// ListScreen is the entity-agnostic surface transports drive.
type ListScreen interface {
	Load(ctx context.Context) error
	Fetch(ctx context.Context) error
	View() ListView
	Subscribe() (<-chan ListView, func())

	SetText(text string) error
	SetFilter(field, value string) error
	ClearFilters() error
	SortBy(key string) error
	Goto(page int) error
	Step(delta int) error
	SetPageSize(size int) error

	ToggleMenu(rowID string) error
	CloseMenu()
	OpenActions(ctx context.Context, rowID string, kind ModalKind) error
	SetEditField(ctx context.Context, field, value string) error
	SaveEdit(ctx context.Context) error
	ConfirmDelete(ctx context.Context) error
	CloseModals()

	Close()
}

// ListController owns the fetch lifecycle, query state and action modals
// of one list screen. All methods are safe for concurrent use.
type ListController[T, E any] struct {
	src  EntitySource[T, E]
	cfg  ListConfig[T]
	msgs Messages

	mu          sync.Mutex
	items       []T
	lookups     Lookups
	schema      listing.Schema[T]
	query       listing.Query
	loading     bool
	errMsg      string
	gen         uint64
	cancelFetch context.CancelFunc
	menu        string
	modal       ModalKind
	modalGen    uint64
	fieldMu     sync.Mutex
	actionRow   *T
	edit        *E
	editErrs    domain.ValidationErrors
	saving      bool
	deleting    bool
	notice      *Notice
	noticeSeq   uint64
	closed      bool
	subscribers map[chan ListView]struct{}
}

var _ ListScreen = (*ListController[domain.Admin, AdminEdit])(nil)

func NewListController[T, E any](src EntitySource[T, E], cfg ListConfig[T]) *ListController[T, E] {
	c := &ListController[T, E]{
		src:         src,
		cfg:         cfg,
		msgs:        cfg.Messages,
		query:       listing.NewQuery(cfg.DefaultSort),
		subscribers: make(map[chan ListView]struct{}),
	}
	c.schema = c.buildSchema()
	return c
}

func (c *ListController[T, E]) buildSchema() listing.Schema[T] {
	if c.cfg.Schema == nil {
		return listing.Schema[T]{}
	}
	return c.cfg.Schema(c.lookups)
}

// Load resolves the lookups, when the screen has any, then fetches. A
// lookup failure is reported but the list still loads.
func (c *ListController[T, E]) Load(ctx context.Context) error {
	if c.cfg.Catalog != nil {
		lookups, err := LoadLookups(ctx, c.cfg.Catalog)
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return domain.ErrClosed
		}
		c.lookups = lookups
		c.schema = c.buildSchema()
		if err != nil {
			log.Printf("%s: lookups failed: %v", c.cfg.Entity, err)
			c.noticeLocked(NoticeError, c.msgs.LookupFailed)
		}
		c.mu.Unlock()
	}
	return c.Fetch(ctx)
}

// Fetch reloads the whole collection. A newer Fetch cancels the previous
// one and any late result of the older call is dropped.
func (c *ListController[T, E]) Fetch(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrClosed
	}
	if c.cancelFetch != nil {
		c.cancelFetch()
	}
	c.gen++
	gen := c.gen
	fetchCtx, cancel := context.WithCancel(ctx)
	c.cancelFetch = cancel
	c.loading = true
	c.errMsg = ""
	c.broadcastLocked()
	c.mu.Unlock()

	items, err := c.src.List(fetchCtx)

	c.mu.Lock()
	defer c.mu.Unlock()
	cancel()
	if c.closed || gen != c.gen {
		return nil
	}
	c.cancelFetch = nil
	c.loading = false
	if err != nil {
		log.Printf("%s: fetch failed: %v", c.cfg.Entity, err)
		c.errMsg = userMessage(err, c.msgs.LoadFailed)
		c.noticeLocked(NoticeError, c.errMsg)
		c.broadcastLocked()
		return err
	}
	c.items = items
	c.clampPageLocked()
	if c.msgs.Loaded != "" {
		c.noticeLocked(NoticeSuccess, fmt.Sprintf(c.msgs.Loaded, len(items)))
	}
	c.broadcastLocked()
	return nil
}

// Items returns a copy of the loaded collection.
func (c *ListController[T, E]) Items() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]T(nil), c.items...)
}

// Page returns the visible page for the current query.
func (c *ListController[T, E]) Page() listing.Page[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return listing.Apply(c.items, c.schema, c.query)
}

// Edit returns the edit model while the edit modal is open.
func (c *ListController[T, E]) Edit() (E, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.edit == nil {
		var zero E
		return zero, false
	}
	return *c.edit, true
}

func (c *ListController[T, E]) View() ListView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

func (c *ListController[T, E]) viewLocked() ListView {
	page := listing.Apply(c.items, c.schema, c.query)
	q := c.query.Clone()
	q.Page = page.Page

	rows := make([]any, len(page.Items))
	for i, item := range page.Items {
		rows[i] = c.present(item)
	}
	var options map[string][]string
	if len(c.schema.Filters) > 0 {
		options = make(map[string][]string, len(c.schema.Filters))
		for field, values := range c.schema.Filters {
			options[field] = listing.Distinct(c.items, values)
		}
	}

	v := ListView{
		Entity:        c.cfg.Entity,
		Loading:       c.loading,
		Error:         c.errMsg,
		Query:         q,
		Rows:          rows,
		Total:         page.Total,
		TotalPages:    page.TotalPages,
		PageSizes:     listing.PageSizes,
		FilterOptions: options,
		MenuRowID:     c.menu,
		Modal:         c.modal,
		Saving:        c.saving,
		Deleting:      c.deleting,
	}
	if c.actionRow != nil {
		v.ActionRow = c.present(*c.actionRow)
	}
	if c.edit != nil {
		v.Edit = *c.edit
		v.EditErrors = c.editErrs
	}
	if c.notice != nil {
		n := *c.notice
		v.Notice = &n
	}
	return v
}

func (c *ListController[T, E]) present(item T) any {
	if c.cfg.Present == nil {
		return item
	}
	return c.cfg.Present(c.lookups, item)
}

// Subscribe returns a channel receiving a fresh view after every change.
// The caller must invoke the returned cancel function.
func (c *ListController[T, E]) Subscribe() (<-chan ListView, func()) {
	ch := make(chan ListView, 8)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	c.subscribers[ch] = struct{}{}
	ch <- c.viewLocked()
	c.mu.Unlock()

	cancel := func() {
		c.mu.Lock()
		if _, ok := c.subscribers[ch]; ok {
			delete(c.subscribers, ch)
			close(ch)
		}
		c.mu.Unlock()
	}
	return ch, cancel
}

func (c *ListController[T, E]) broadcastLocked() {
	if len(c.subscribers) == 0 {
		return
	}
	v := c.viewLocked()
	for ch := range c.subscribers {
		select {
		case ch <- v:
		default:
			// drop the stale view so a slow reader always gets the latest one
			select {
			case <-ch:
			default:
			}
			ch <- v
		}
	}
}

func (c *ListController[T, E]) noticeLocked(level NoticeLevel, msg string) {
	if msg == "" {
		return
	}
	c.noticeSeq++
	c.notice = &Notice{Seq: c.noticeSeq, Level: level, Message: msg}
}

// mutate applies a query change. Query changes are purely local, so they
// are allowed while a fetch is in flight.
func (c *ListController[T, E]) mutate(fn func(q *listing.Query, totalPages int) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return domain.ErrClosed
	}
	total := c.clampPageLocked()
	if err := fn(&c.query, total); err != nil {
		return err
	}
	c.broadcastLocked()
	return nil
}

// clampPageLocked keeps the stored page inside the current page count and
// returns that count.
func (c *ListController[T, E]) clampPageLocked() int {
	total := listing.Apply(c.items, c.schema, c.query).TotalPages
	c.query.Goto(c.query.Page, total)
	return total
}

func (c *ListController[T, E]) SetText(text string) error {
	return c.mutate(func(q *listing.Query, _ int) error {
		q.SetText(text)
		return nil
	})
}

func (c *ListController[T, E]) SetFilter(field, value string) error {
	return c.mutate(func(q *listing.Query, _ int) error {
		if !c.schema.HasFilter(field) {
			return fmt.Errorf("%w: filter %q", domain.ErrUnknownField, field)
		}
		q.SetFilter(field, value)
		return nil
	})
}

func (c *ListController[T, E]) ClearFilters() error {
	return c.mutate(func(q *listing.Query, _ int) error {
		q.ClearFilters()
		return nil
	})
}

func (c *ListController[T, E]) SortBy(key string) error {
	return c.mutate(func(q *listing.Query, _ int) error {
		if !c.schema.HasSort(key) {
			return fmt.Errorf("%w: sort %q", domain.ErrUnknownField, key)
		}
		q.SortBy(key)
		return nil
	})
}

func (c *ListController[T, E]) Goto(page int) error {
	return c.mutate(func(q *listing.Query, total int) error {
		q.Goto(page, total)
		return nil
	})
}

func (c *ListController[T, E]) Step(delta int) error {
	return c.mutate(func(q *listing.Query, total int) error {
		q.Step(delta, total)
		return nil
	})
}

func (c *ListController[T, E]) SetPageSize(size int) error {
	return c.mutate(func(q *listing.Query, _ int) error {
		return q.SetPageSize(size)
	})
}

// ToggleMenu opens the row menu of rowID, or closes it when it is already
// the open one. At most one menu is open.
func (c *ListController[T, E]) ToggleMenu(rowID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return domain.ErrClosed
	}
	if c.menu == rowID {
		c.menu = ""
	} else {
		if _, ok := c.findLocked(rowID); !ok {
			return domain.ErrRowNotFound
		}
		c.menu = rowID
	}
	c.broadcastLocked()
	return nil
}

// CloseMenu handles a click anywhere outside the open menu.
func (c *ListController[T, E]) CloseMenu() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.menu == "" {
		return
	}
	c.menu = ""
	c.broadcastLocked()
}

func (c *ListController[T, E]) findLocked(rowID string) (T, bool) {
	for _, item := range c.items {
		if c.src.RowID(item) == rowID {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// guardLocked gates interactive mutations on the fetch and busy flags.
func (c *ListController[T, E]) guardLocked() error {
	switch {
	case c.closed:
		return domain.ErrClosed
	case c.loading:
		return domain.ErrLoading
	case c.saving || c.deleting:
		return domain.ErrBusy
	}
	return nil
}

// OpenActions opens the view, edit or delete modal for a row. Opening one
// modal closes any other and the row menu. The edit model is seeded without
// holding the lock; a result that arrives after another modal change is
// dropped.
func (c *ListController[T, E]) OpenActions(ctx context.Context, rowID string, kind ModalKind) error {
	c.mu.Lock()
	if err := c.guardLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if _, err := ParseModalKind(string(kind)); err != nil {
		c.mu.Unlock()
		return err
	}
	row, ok := c.findLocked(rowID)
	if !ok {
		c.mu.Unlock()
		return domain.ErrRowNotFound
	}
	c.menu = ""
	c.closeModalsLocked()
	if kind != ModalEdit {
		c.actionRow = &row
		c.modal = kind
		c.broadcastLocked()
		c.mu.Unlock()
		return nil
	}
	gen := c.modalGen
	c.broadcastLocked()
	c.mu.Unlock()

	edit, err := c.src.EditModel(ctx, row)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return domain.ErrClosed
	}
	if gen != c.modalGen {
		return nil
	}
	if err != nil {
		log.Printf("%s: seed edit for %s failed: %v", c.cfg.Entity, rowID, err)
		c.noticeLocked(NoticeError, userMessage(err, c.msgs.UpdateFailed))
		c.broadcastLocked()
		return err
	}
	if _, ok := c.findLocked(rowID); !ok {
		return domain.ErrRowNotFound
	}
	c.edit = &edit
	c.actionRow = &row
	c.modal = kind
	c.broadcastLocked()
	return nil
}

// SetEditField is the single entry point for edit model changes. Field
// changes are applied one at a time, each on a copy that is stored only if
// the same edit modal is still open.
func (c *ListController[T, E]) SetEditField(ctx context.Context, field, value string) error {
	c.fieldMu.Lock()
	defer c.fieldMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrClosed
	}
	if c.saving {
		c.mu.Unlock()
		return domain.ErrBusy
	}
	if c.modal != ModalEdit || c.edit == nil {
		c.mu.Unlock()
		return domain.ErrNoEdit
	}
	edit, gen := *c.edit, c.modalGen
	c.mu.Unlock()

	err := c.src.SetField(ctx, &edit, field, value)

	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.closed:
		return domain.ErrClosed
	case gen != c.modalGen || c.edit == nil:
		return domain.ErrNoEdit
	case c.saving:
		return domain.ErrBusy
	}
	c.edit = &edit
	if err != nil && !errors.Is(err, domain.ErrUnknownField) {
		log.Printf("%s: set %s failed: %v", c.cfg.Entity, field, err)
		c.noticeLocked(NoticeError, userMessage(err, ""))
	}
	c.broadcastLocked()
	return err
}

// SaveEdit sends the edit model. On success the modal closes and the
// collection is refetched; on failure the modal stays open.
func (c *ListController[T, E]) SaveEdit(ctx context.Context) error {
	c.mu.Lock()
	if err := c.guardLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.modal != ModalEdit || c.edit == nil || c.actionRow == nil {
		c.mu.Unlock()
		return domain.ErrNoEdit
	}
	id := c.src.TargetID(*c.actionRow)
	if id == "" {
		c.noticeLocked(NoticeWarning, c.msgs.MissingID)
		c.broadcastLocked()
		c.mu.Unlock()
		return domain.ErrMissingIdentifier
	}
	edit := *c.edit
	c.saving = true
	c.broadcastLocked()
	c.mu.Unlock()

	err := c.src.Update(ctx, id, edit)

	c.mu.Lock()
	c.saving = false
	if c.closed {
		c.mu.Unlock()
		return domain.ErrClosed
	}
	if err != nil {
		log.Printf("%s: update %s failed: %v", c.cfg.Entity, id, err)
		var verrs domain.ValidationErrors
		if errors.As(err, &verrs) {
			c.editErrs = verrs
		}
		c.noticeLocked(NoticeError, userMessage(err, c.msgs.UpdateFailed))
		c.broadcastLocked()
		c.mu.Unlock()
		return err
	}
	c.closeModalsLocked()
	c.noticeLocked(NoticeSuccess, c.msgs.Updated)
	c.broadcastLocked()
	c.mu.Unlock()

	return c.Fetch(ctx)
}

// ConfirmDelete deletes the pending row and removes it locally by
// identifier. On failure the row and the modal stay.
func (c *ListController[T, E]) ConfirmDelete(ctx context.Context) error {
	c.mu.Lock()
	if err := c.guardLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.modal != ModalDelete || c.actionRow == nil {
		c.mu.Unlock()
		return domain.ErrInvalidState
	}
	id := c.src.TargetID(*c.actionRow)
	if id == "" {
		c.noticeLocked(NoticeWarning, c.msgs.MissingID)
		c.broadcastLocked()
		c.mu.Unlock()
		return domain.ErrMissingIdentifier
	}
	c.deleting = true
	c.broadcastLocked()
	c.mu.Unlock()

	err := c.src.Delete(ctx, id)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleting = false
	if c.closed {
		return domain.ErrClosed
	}
	if err != nil {
		log.Printf("%s: delete %s failed: %v", c.cfg.Entity, id, err)
		c.noticeLocked(NoticeError, userMessage(err, c.msgs.DeleteFailed))
		c.broadcastLocked()
		return err
	}
	kept := c.items[:0:0]
	for _, item := range c.items {
		if c.src.TargetID(item) != id {
			kept = append(kept, item)
		}
	}
	c.items = kept
	c.clampPageLocked()
	c.closeModalsLocked()
	c.noticeLocked(NoticeSuccess, c.msgs.Deleted)
	c.broadcastLocked()
	return nil
}

func (c *ListController[T, E]) CloseModals() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closeModalsLocked()
	c.broadcastLocked()
}

func (c *ListController[T, E]) closeModalsLocked() {
	c.modalGen++
	c.modal = ModalNone
	c.actionRow = nil
	c.edit = nil
	c.editErrs = nil
}

// Close tears the screen down: the in-flight fetch is cancelled,
// subscribers are released and no later callback changes state.
func (c *ListController[T, E]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.cancelFetch != nil {
		c.cancelFetch()
		c.cancelFetch = nil
	}
	for ch := range c.subscribers {
		delete(c.subscribers, ch)
		close(ch)
	}
}

// userMessage turns an error into the text shown to the user.
// ErrorMessage is the user-facing text for err, fallback when err carries
// nothing more specific.
func ErrorMessage(err error, fallback string) string {
	return userMessage(err, fallback)
}

func userMessage(err error, fallback string) string {
	var verrs domain.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		return "Revisa los campos marcados."
	case errors.Is(err, domain.ErrUnauthorized):
		return "Tu sesión expiró. Inicia sesión nuevamente."
	case errors.Is(err, context.Canceled):
		return fallback
	}
	if fallback == "" {
		return err.Error()
	}
	return fallback
}
