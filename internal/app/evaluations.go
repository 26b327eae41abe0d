package app

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"einstein-dashboard/internal/api"
	"einstein-dashboard/internal/domain"
	"einstein-dashboard/internal/listing"
)

type EvaluationLister interface {
	ListEvaluations(ctx context.Context, grade, section string) ([]domain.Evaluation, error)
}

type BoardBackend interface {
	EvaluationLister
	StartAttempt(ctx context.Context, req api.StartAttemptRequest) (api.StartAttemptResponse, error)
}

// Board status filters and sort orders.
const (
	StatusAll     = "all"
	StatusActive  = "activa"
	StatusOverdue = "vencida"

	SortCreatedDesc   = "creacion_desc"
	SortDueAsc        = "entrega_asc"
	SortQuestionsDesc = "preguntas_desc"
)

var boardSorts = map[string]listing.Sort{
	SortCreatedDesc:   {Key: "creacion", Dir: listing.Desc},
	SortDueAsc:        {Key: "entrega", Dir: listing.Asc},
	SortQuestionsDesc: {Key: "preguntas", Dir: listing.Desc},
}

// BoardScope is the class and student the board is shown for.
type BoardScope struct {
	Grade     string `json:"grado"`
	Section   string `json:"seccion"`
	StudentID string `json:"alumnoId"`
}

// BoardRow is one evaluation as a student sees it.
type BoardRow struct {
	Evaluation *domain.Evaluation `json:"evaluacion"`
	Status     string             `json:"estadoTexto"`
	Overdue    bool               `json:"vencida"`
	CanStart   bool               `json:"puedeIniciar"`
	Starting   bool               `json:"iniciando"`
}

type BoardSummary struct {
	Total        int     `json:"total"`
	Active       int     `json:"activas"`
	AvgQuestions float64 `json:"promedioPreguntas"`
}

type BoardView struct {
	Scope    BoardScope   `json:"scope"`
	Loading  bool         `json:"loading"`
	Error    string       `json:"error,omitempty"`
	Text     string       `json:"q"`
	Status   string       `json:"estado"`
	Sort     string       `json:"orden"`
	Rows     []BoardRow   `json:"rows"`
	Summary  BoardSummary `json:"summary"`
	Selected *BoardRow    `json:"selected,omitempty"`
}

// EvaluationBoard lists the evaluations of a student's class and starts
// attempts on them.
type EvaluationBoard struct {
	backend BoardBackend
	scope   BoardScope
	now     func() time.Time

	mu       sync.Mutex
	items    []domain.Evaluation
	text     string
	status   string
	sort     string
	loading  bool
	errMsg   string
	starting map[string]bool
	selected string
	gen      uint64
}

func NewEvaluationBoard(backend BoardBackend, scope BoardScope) *EvaluationBoard {
	return NewEvaluationBoardWithClock(backend, scope, time.Now)
}

// NewEvaluationBoardWithClock is used by tests to pin "now".
func NewEvaluationBoardWithClock(backend BoardBackend, scope BoardScope, now func() time.Time) *EvaluationBoard {
	return &EvaluationBoard{
		backend:  backend,
		scope:    scope,
		now:      now,
		status:   StatusAll,
		sort:     SortCreatedDesc,
		starting: make(map[string]bool),
	}
}

func (b *EvaluationBoard) Fetch(ctx context.Context) error {
	b.mu.Lock()
	b.gen++
	gen := b.gen
	b.loading = true
	b.errMsg = ""
	scope := b.scope
	b.mu.Unlock()

	items, err := b.backend.ListEvaluations(ctx, scope.Grade, scope.Section)

	b.mu.Lock()
	defer b.mu.Unlock()
	if gen != b.gen {
		return nil
	}
	b.loading = false
	if err != nil {
		log.Printf("evaluation board %s-%s: list failed: %v", scope.Grade, scope.Section, err)
		b.errMsg = userMessage(err, "No se pudo obtener la lista. Inténtalo nuevamente.")
		b.items = nil
		return err
	}
	b.items = items
	return nil
}

// Refresh resets search, filter and order, then reloads.
func (b *EvaluationBoard) Refresh(ctx context.Context) error {
	b.mu.Lock()
	b.text, b.status, b.sort = "", StatusAll, SortCreatedDesc
	b.mu.Unlock()
	return b.Fetch(ctx)
}

func (b *EvaluationBoard) SetText(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.text = text
}

func (b *EvaluationBoard) SetStatus(status string) error {
	switch status {
	case StatusAll, StatusActive, StatusOverdue:
	default:
		return fmt.Errorf("%w: status %q", domain.ErrUnknownField, status)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status = status
	return nil
}

func (b *EvaluationBoard) SetSort(order string) error {
	if _, ok := boardSorts[order]; !ok {
		return fmt.Errorf("%w: order %q", domain.ErrUnknownField, order)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sort = order
	return nil
}

// Select opens the details of an evaluation; "" closes them.
func (b *EvaluationBoard) Select(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if id != "" {
		if _, ok := b.findLocked(id); !ok {
			return domain.ErrRowNotFound
		}
	}
	b.selected = id
	return nil
}

func (b *EvaluationBoard) findLocked(id string) (domain.Evaluation, bool) {
	for _, e := range b.items {
		if e.ID == id {
			return e, true
		}
	}
	return domain.Evaluation{}, false
}

// CanStart reports whether an attempt may be started: the evaluation is
// active and not overdue.
func (b *EvaluationBoard) CanStart(e domain.Evaluation) bool {
	return canStart(e, b.now())
}

func canStart(e domain.Evaluation, now time.Time) bool {
	return strings.EqualFold(e.Status, domain.EvaluationActive) && !e.Overdue(now)
}

// boardStatus is the status a student sees: overdue wins over the stored
// status.
func boardStatus(e domain.Evaluation, now time.Time) string {
	if e.Overdue(now) {
		return StatusOverdue
	}
	return strings.ToLower(e.Status)
}

// boardSchema reads the clock on every filter pass.
func boardSchema(now func() time.Time) listing.Schema[domain.Evaluation] {
	return listing.Schema[domain.Evaluation]{
		Search: func(e domain.Evaluation) []string {
			return []string{e.Title, e.Subject, e.TeacherID}
		},
		Filters: map[string]func(domain.Evaluation) []string{
			"estado": func(e domain.Evaluation) []string { return []string{boardStatus(e, now())} },
		},
		Sorts: map[string]func(domain.Evaluation) listing.SortValue{
			"creacion": func(e domain.Evaluation) listing.SortValue {
				t, _ := domain.ParseTimestamp(e.CreatedAt)
				return listing.Time(t)
			},
			"entrega": func(e domain.Evaluation) listing.SortValue {
				if e.DueAt == nil {
					return listing.Time(time.Time{})
				}
				t, _ := domain.ParseTimestamp(*e.DueAt)
				return listing.Time(t)
			},
			"preguntas": func(e domain.Evaluation) listing.SortValue {
				return listing.Number(float64(len(e.Questions)))
			},
		},
	}
}

func (b *EvaluationBoard) View() BoardView {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()

	q := listing.NewQuery("")
	q.Text = b.text
	if b.status != StatusAll {
		q.SetFilter("estado", b.status)
	}
	schema := boardSchema(func() time.Time { return now })
	rows := listing.Filter(b.items, schema, q)
	listing.SortStable(rows, schema, boardSorts[b.sort])

	v := BoardView{
		Scope:   b.scope,
		Loading: b.loading,
		Error:   b.errMsg,
		Text:    b.text,
		Status:  b.status,
		Sort:    b.sort,
		Rows:    make([]BoardRow, len(rows)),
		Summary: summarize(b.items, now),
	}
	for i, e := range rows {
		v.Rows[i] = b.rowLocked(e, now)
	}
	if e, ok := b.findLocked(b.selected); ok && b.selected != "" {
		row := b.rowLocked(e, now)
		v.Selected = &row
	}
	return v
}

func (b *EvaluationBoard) rowLocked(e domain.Evaluation, now time.Time) BoardRow {
	return BoardRow{
		Evaluation: withoutAnswers(e),
		Status:     statusLabel(e, now),
		Overdue:    e.Overdue(now),
		CanStart:   canStart(e, now),
		Starting:   b.starting[e.ID],
	}
}

func statusLabel(e domain.Evaluation, now time.Time) string {
	switch s := boardStatus(e, now); s {
	case StatusOverdue:
		return "Vencida"
	case StatusActive:
		return "Activa"
	case "":
		return "—"
	default:
		return s
	}
}

// summarize counts all evaluations, the active ones that are not overdue
// and the average number of questions.
func summarize(items []domain.Evaluation, now time.Time) BoardSummary {
	s := BoardSummary{Total: len(items)}
	if len(items) == 0 {
		return s
	}
	questions := 0
	for _, e := range items {
		if canStart(e, now) {
			s.Active++
		}
		questions += len(e.Questions)
	}
	s.AvgQuestions = float64(questions) / float64(len(items))
	return s
}

// Start opens an attempt on an evaluation for the board's student. Only
// one start per evaluation may be in flight.
func (b *EvaluationBoard) Start(ctx context.Context, evaluationID string) (AttemptEntry, error) {
	b.mu.Lock()
	e, ok := b.findLocked(evaluationID)
	if !ok {
		b.mu.Unlock()
		return AttemptEntry{}, domain.ErrRowNotFound
	}
	if b.starting[evaluationID] {
		b.mu.Unlock()
		return AttemptEntry{}, domain.ErrBusy
	}
	if !canStart(e, b.now()) {
		b.mu.Unlock()
		return AttemptEntry{}, domain.ErrInvalidState
	}
	b.starting[evaluationID] = true
	studentID := b.scope.StudentID
	b.mu.Unlock()

	res, err := b.backend.StartAttempt(ctx, api.StartAttemptRequest{EvaluationID: e.ID, StudentID: studentID})

	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.starting, evaluationID)
	if err != nil {
		log.Printf("start attempt on %s failed: %v", evaluationID, err)
		b.errMsg = userMessage(err, "No se pudo iniciar el intento. Inténtalo nuevamente.")
		return AttemptEntry{}, err
	}
	return AttemptEntry{AttemptID: res.AttemptID, Evaluation: &e, EvaluationID: e.ID}, nil
}

type EvaluationBackend interface {
	EvaluationLister
	UpdateEvaluation(ctx context.Context, id string, req api.EvaluationUpdate) error
	DeleteEvaluation(ctx context.Context, id string) error
}

// EvaluationEdit is the teacher's edit form of an evaluation.
type EvaluationEdit struct {
	Title           string `json:"titulo"`
	Subject         string `json:"materia"`
	DueAt           string `json:"fecha_entrega"`
	AllowedAttempts int    `json:"intentos_permitidos"`
	Status          string `json:"estado"`
}

// EvaluationRow adds the derived fields a teacher list shows.
type EvaluationRow struct {
	domain.Evaluation
	QuestionCount int  `json:"numPreguntas"`
	Overdue       bool `json:"vencida"`
}

type evaluationSource struct {
	backend EvaluationBackend
	grade   string
	section string
}

// NewEvaluationList builds the teacher's list of the evaluations of one
// grade and section.
func NewEvaluationList(backend EvaluationBackend, grade, section string, now func() time.Time) *ListController[domain.Evaluation, EvaluationEdit] {
	if now == nil {
		now = time.Now
	}
	return NewListController[domain.Evaluation, EvaluationEdit](&evaluationSource{backend: backend, grade: grade, section: section}, ListConfig[domain.Evaluation]{
		Entity:      "evaluations",
		DefaultSort: "creacion",
		Messages: Messages{
			Loaded:       "Se cargaron %d evaluaciones correctamente.",
			LoadFailed:   "No se pudieron cargar las evaluaciones.",
			Updated:      "Evaluación actualizada correctamente.",
			UpdateFailed: "No se pudo actualizar la evaluación.",
			Deleted:      "Evaluación eliminada correctamente.",
			DeleteFailed: "No se pudo eliminar la evaluación.",
			MissingID:    "Falta el identificador de la evaluación.",
		},
		Schema: func(Lookups) listing.Schema[domain.Evaluation] {
			s := boardSchema(now)
			s.Search = func(e domain.Evaluation) []string {
				return []string{e.Title, e.Subject, e.TeacherID, e.PublicID}
			}
			s.Filters["materia"] = func(e domain.Evaluation) []string { return []string{e.Subject} }
			s.Sorts["titulo"] = func(e domain.Evaluation) listing.SortValue { return listing.Text(e.Title) }
			s.Sorts["materia"] = func(e domain.Evaluation) listing.SortValue { return listing.Text(e.Subject) }
			return s
		},
		Present: func(_ Lookups, e domain.Evaluation) any {
			return EvaluationRow{Evaluation: e, QuestionCount: len(e.Questions), Overdue: e.Overdue(now())}
		},
	})
}

func (s *evaluationSource) List(ctx context.Context) ([]domain.Evaluation, error) {
	return s.backend.ListEvaluations(ctx, s.grade, s.section)
}

func (s *evaluationSource) RowID(e domain.Evaluation) string    { return e.ID }
func (s *evaluationSource) TargetID(e domain.Evaluation) string { return e.ID }

func (s *evaluationSource) EditModel(_ context.Context, e domain.Evaluation) (EvaluationEdit, error) {
	edit := EvaluationEdit{Title: e.Title, Subject: e.Subject, AllowedAttempts: e.AllowedAttempts, Status: e.Status}
	if e.DueAt != nil {
		edit.DueAt = *e.DueAt
	}
	return edit, nil
}

func (s *evaluationSource) SetField(_ context.Context, e *EvaluationEdit, field, value string) error {
	switch field {
	case "titulo":
		e.Title = value
	case "materia":
		e.Subject = value
	case "fecha_entrega":
		e.DueAt = strings.TrimSpace(value)
	case "estado":
		e.Status = strings.ToLower(strings.TrimSpace(value))
	case "intentos_permitidos":
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return domain.ValidationErrors{"intentos_permitidos": "debe ser un número"}
		}
		e.AllowedAttempts = n
	default:
		return fmt.Errorf("%w: %q", domain.ErrUnknownField, field)
	}
	return nil
}

func (s *evaluationSource) Update(ctx context.Context, id string, e EvaluationEdit) error {
	verrs := domain.ValidationErrors{}
	if strings.TrimSpace(e.Title) == "" {
		verrs.Add("titulo", "este campo es obligatorio")
	}
	if e.AllowedAttempts < 1 {
		verrs.Add("intentos_permitidos", "debe ser al menos 1")
	}
	var due *string
	if e.DueAt != "" {
		t, ok := domain.ParseTimestamp(e.DueAt)
		if !ok {
			verrs.Add("fecha_entrega", "fecha de entrega inválida")
		} else {
			v := t.UTC().Format(time.RFC3339)
			due = &v
		}
	}
	if e.Status != "" && e.Status != domain.EvaluationActive && e.Status != domain.EvaluationInactive {
		verrs.Add("estado", "estado inválido")
	}
	if err := verrs.OrNil(); err != nil {
		return err
	}
	req := api.EvaluationUpdate{
		Title:           &e.Title,
		Subject:         &e.Subject,
		DueAt:           due,
		AllowedAttempts: &e.AllowedAttempts,
	}
	if e.Status != "" {
		req.Status = &e.Status
	}
	return s.backend.UpdateEvaluation(ctx, id, req)
}

func (s *evaluationSource) Delete(ctx context.Context, id string) error {
	return s.backend.DeleteEvaluation(ctx, id)
}
