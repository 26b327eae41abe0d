package app

import (
	"context"
	"fmt"
	"log"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"einstein-dashboard/internal/api"
	"einstein-dashboard/internal/domain"
	"einstein-dashboard/internal/validate"
)

// DueLayout is the local date-time format of the due date input.
const DueLayout = "2006-01-02T15:04"

type EvaluationCreator interface {
	CreateEvaluation(ctx context.Context, req api.EvaluationCreate) (api.Ack, error)
}

// QuestionDraft is one question being authored. Touched marks a correct
// answer that was cleared because its option disappeared.
type QuestionDraft struct {
	Kind    domain.QuestionKind `json:"tipo"`
	Prompt  string              `json:"enunciado" validate:"required"`
	Options []string            `json:"opciones"`
	Correct string              `json:"respuesta_correcta" validate:"required"`
	Touched bool                `json:"touched"`
}

type EvaluationDraft struct {
	Title           string          `json:"titulo" validate:"required"`
	Subject         string          `json:"materia" validate:"required"`
	Grade           string          `json:"grado" validate:"required"`
	Section         string          `json:"seccion" validate:"required"`
	TeacherID       string          `json:"docente_id" validate:"required"`
	DueLocal        string          `json:"fecha_entrega_local" validate:"required"`
	AllowedAttempts int             `json:"intentos_permitidos" validate:"min=1"`
	Questions       []QuestionDraft `json:"preguntas" validate:"min=1,dive"`
}

// FormView is the serializable state of the authoring form.
type FormView struct {
	Draft    EvaluationDraft   `json:"draft"`
	Errors   map[string]string `json:"errors,omitempty"`
	Busy     bool              `json:"busy"`
	Grades   []domain.Grade    `json:"grados"`
	Sections []domain.Section  `json:"secciones"`
	Notice   *Notice           `json:"notice,omitempty"`
}

// EvaluationForm assembles a new evaluation: a dynamic list of questions,
// each with its own options. Safe for concurrent use.
type EvaluationForm struct {
	creator  EvaluationCreator
	validate *validate.Validator
	loc      *time.Location
	now      func() time.Time

	mu        sync.Mutex
	draft     EvaluationDraft
	picker    *GradeSectionPicker
	errs      domain.ValidationErrors
	busy      bool
	notice    *Notice
	noticeSeq uint64
}

func NewEvaluationForm(creator EvaluationCreator, catalog Catalog, v *validate.Validator, loc *time.Location) *EvaluationForm {
	return NewEvaluationFormWithClock(creator, catalog, v, loc, time.Now)
}

// NewEvaluationFormWithClock is used by tests for deterministic dates.
func NewEvaluationFormWithClock(creator EvaluationCreator, catalog Catalog, v *validate.Validator, loc *time.Location, now func() time.Time) *EvaluationForm {
	if loc == nil {
		loc = time.UTC
	}
	f := &EvaluationForm{
		creator:  creator,
		validate: v,
		loc:      loc,
		now:      now,
		picker:   NewGradeSectionPicker(catalog),
	}
	f.resetLocked()
	return f
}

func (f *EvaluationForm) resetLocked() {
	teacher := f.draft.TeacherID
	f.draft = EvaluationDraft{
		TeacherID:       teacher,
		AllowedAttempts: 1,
		Questions:       []QuestionDraft{newQuestion(domain.MultipleChoice)},
	}
	f.picker.Reset()
	f.errs = nil
}

func newQuestion(kind domain.QuestionKind) QuestionDraft {
	if kind == domain.TrueFalse {
		return QuestionDraft{Kind: kind, Options: slices.Clone(domain.TrueFalseOptions)}
	}
	return QuestionDraft{Kind: domain.MultipleChoice, Options: []string{"", ""}}
}

// Load fills the grade options.
func (f *EvaluationForm) Load(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.picker.LoadGrades(ctx); err != nil {
		log.Printf("evaluation form: %v", err)
		f.noticeLocked(NoticeError, "Error al cargar grados.")
		return err
	}
	return nil
}

func (f *EvaluationForm) View() FormView {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := FormView{
		Draft:    f.cloneDraftLocked(),
		Errors:   f.errs,
		Busy:     f.busy,
		Grades:   f.picker.Grades,
		Sections: f.picker.Sections,
	}
	if f.notice != nil {
		n := *f.notice
		v.Notice = &n
	}
	return v
}

// Draft returns a copy of the current draft.
func (f *EvaluationForm) Draft() EvaluationDraft {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cloneDraftLocked()
}

func (f *EvaluationForm) cloneDraftLocked() EvaluationDraft {
	d := f.draft
	d.Questions = make([]QuestionDraft, len(f.draft.Questions))
	for i, q := range f.draft.Questions {
		q.Options = slices.Clone(q.Options)
		d.Questions[i] = q
	}
	return d
}

func (f *EvaluationForm) noticeLocked(level NoticeLevel, msg string) {
	f.noticeSeq++
	f.notice = &Notice{Seq: f.noticeSeq, Level: level, Message: msg}
}

func (f *EvaluationForm) edit(fn func() error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy {
		return domain.ErrBusy
	}
	return fn()
}

// SetField sets a top-level text field.
func (f *EvaluationForm) SetField(field, value string) error {
	return f.edit(func() error {
		switch field {
		case "titulo":
			f.draft.Title = value
		case "materia":
			f.draft.Subject = value
		case "docente_id":
			f.draft.TeacherID = strings.TrimSpace(value)
		case "fecha_entrega_local":
			f.draft.DueLocal = strings.TrimSpace(value)
		case "intentos_permitidos":
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return fmt.Errorf("%w: intentos_permitidos %q", domain.ErrUnknownField, value)
			}
			f.draft.AllowedAttempts = n
		case "grado", "seccion":
			return fmt.Errorf("%w: use the grade and section selectors", domain.ErrUnknownField)
		default:
			return fmt.Errorf("%w: %q", domain.ErrUnknownField, field)
		}
		return nil
	})
}

// SetTeacher presets the owning teacher, typically from the session.
func (f *EvaluationForm) SetTeacher(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.draft.TeacherID = id
}

// SetGrade selects the grade by id, clears the section and reloads the
// sections of the grade. The draft keeps the grade's display name.
func (f *EvaluationForm) SetGrade(ctx context.Context, gradeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy {
		return domain.ErrBusy
	}
	err := f.picker.SelectGrade(ctx, gradeID)
	f.draft.Grade = gradeLabel(f.picker.Grades, gradeID)
	f.draft.Section = ""
	if err != nil {
		log.Printf("evaluation form: %v", err)
		f.noticeLocked(NoticeError, "Error al cargar secciones.")
	}
	return err
}

// SetSection selects a section of the current grade by id or name.
func (f *EvaluationForm) SetSection(section string) error {
	return f.edit(func() error {
		if err := f.picker.SelectSection(section); err != nil {
			return err
		}
		f.draft.Section = sectionLabel(f.picker.Sections, section)
		return nil
	})
}

func gradeLabel(grades []domain.Grade, id string) string {
	for _, g := range grades {
		if g.ID == id {
			return g.Label()
		}
	}
	return id
}

func sectionLabel(sections []domain.Section, v string) string {
	for _, s := range sections {
		if s.ID == v {
			return s.Name
		}
	}
	return v
}

func (f *EvaluationForm) question(i int) (*QuestionDraft, error) {
	if i < 0 || i >= len(f.draft.Questions) {
		return nil, fmt.Errorf("%w: question %d", domain.ErrQuestionNotFound, i)
	}
	return &f.draft.Questions[i], nil
}

// AddQuestion appends a question. TrueFalse questions get their fixed
// options, MultipleChoice ones two empty slots.
func (f *EvaluationForm) AddQuestion(kind domain.QuestionKind) error {
	return f.edit(func() error {
		if kind != domain.MultipleChoice && kind != domain.TrueFalse {
			return fmt.Errorf("%w: unknown type %q", domain.ErrInvalidQuestion, kind)
		}
		f.draft.Questions = append(f.draft.Questions, newQuestion(kind))
		return nil
	})
}

func (f *EvaluationForm) RemoveQuestion(i int) error {
	return f.edit(func() error {
		if _, err := f.question(i); err != nil {
			return err
		}
		f.draft.Questions = slices.Delete(f.draft.Questions, i, i+1)
		return nil
	})
}

func (f *EvaluationForm) SetPrompt(i int, prompt string) error {
	return f.edit(func() error {
		q, err := f.question(i)
		if err != nil {
			return err
		}
		q.Prompt = prompt
		return nil
	})
}

// optionsOf returns the question for an option edit; TrueFalse options
// cannot be edited.
func (f *EvaluationForm) optionsOf(i int) (*QuestionDraft, error) {
	q, err := f.question(i)
	if err != nil {
		return nil, err
	}
	if q.Kind == domain.TrueFalse {
		return nil, fmt.Errorf("%w: true/false options are fixed", domain.ErrInvalidQuestion)
	}
	return q, nil
}

func (f *EvaluationForm) AddOption(i int) error {
	return f.edit(func() error {
		q, err := f.optionsOf(i)
		if err != nil {
			return err
		}
		q.Options = append(q.Options, "")
		syncCorrect(q)
		return nil
	})
}

func (f *EvaluationForm) SetOption(i, j int, value string) error {
	return f.edit(func() error {
		q, err := f.optionsOf(i)
		if err != nil {
			return err
		}
		if j < 0 || j >= len(q.Options) {
			return fmt.Errorf("%w: option %d", domain.ErrInvalidQuestion, j)
		}
		q.Options[j] = value
		syncCorrect(q)
		return nil
	})
}

// RemoveOption drops option j; the list is re-padded to two slots.
func (f *EvaluationForm) RemoveOption(i, j int) error {
	return f.edit(func() error {
		q, err := f.optionsOf(i)
		if err != nil {
			return err
		}
		if j < 0 || j >= len(q.Options) {
			return fmt.Errorf("%w: option %d", domain.ErrInvalidQuestion, j)
		}
		q.Options = slices.Delete(q.Options, j, j+1)
		for len(q.Options) < 2 {
			q.Options = append(q.Options, "")
		}
		syncCorrect(q)
		return nil
	})
}

// SetCorrect picks the correct answer among the non-empty options.
func (f *EvaluationForm) SetCorrect(i int, value string) error {
	return f.edit(func() error {
		q, err := f.question(i)
		if err != nil {
			return err
		}
		if value != "" && !slices.Contains(domain.NonEmptyOptions(q.Options), value) {
			return fmt.Errorf("%w: %q is not an option", domain.ErrInvalidQuestion, value)
		}
		q.Correct = value
		q.Touched = value == ""
		return nil
	})
}

// syncCorrect clears a correct answer that is no longer among the
// non-empty options and marks it for attention.
func syncCorrect(q *QuestionDraft) {
	if !slices.Contains(domain.NonEmptyOptions(q.Options), q.Correct) {
		q.Correct = ""
		q.Touched = true
	}
}

// Validate checks the draft without submitting it.
func (f *EvaluationForm) Validate() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, err := f.payloadLocked()
	f.errs = asValidation(err)
	return err
}

func asValidation(err error) domain.ValidationErrors {
	if verrs, ok := err.(domain.ValidationErrors); ok {
		return verrs
	}
	return nil
}

// payloadLocked validates the draft and converts it to the create request.
func (f *EvaluationForm) payloadLocked() (api.EvaluationCreate, error) {
	verrs := domain.ValidationErrors{}
	if err := f.validate.Struct(f.draft); err != nil {
		v, ok := err.(domain.ValidationErrors)
		if !ok {
			return api.EvaluationCreate{}, err
		}
		verrs = v
	}

	var due time.Time
	if f.draft.DueLocal != "" {
		t, err := time.ParseInLocation(DueLayout, f.draft.DueLocal, f.loc)
		if err != nil {
			verrs.Add("fecha_entrega_local", "fecha de entrega inválida")
		}
		due = t
	}

	questions := make([]api.QuestionPayload, 0, len(f.draft.Questions))
	for i, q := range f.draft.Questions {
		options := domain.NonEmptyOptions(q.Options)
		if q.Kind == domain.TrueFalse {
			options = slices.Clone(domain.TrueFalseOptions)
		}
		payload := domain.Question{Kind: q.Kind, Prompt: q.Prompt, Options: options, Correct: q.Correct}
		if q.Kind == domain.MultipleChoice && len(options) < 2 {
			verrs.Add(fmt.Sprintf("preguntas[%d].opciones", i), "se requieren al menos 2 opciones")
		} else if q.Correct != "" {
			if err := payload.Validate(); err != nil {
				verrs.Add(fmt.Sprintf("preguntas[%d].respuesta_correcta", i), "respuesta correcta inválida")
			}
		}
		questions = append(questions, api.QuestionPayload{
			Kind:    q.Kind,
			Prompt:  strings.TrimSpace(q.Prompt),
			Options: options,
			Correct: q.Correct,
		})
	}
	if err := verrs.OrNil(); err != nil {
		return api.EvaluationCreate{}, err
	}

	dueAt := due.UTC().Format(time.RFC3339)
	return api.EvaluationCreate{
		Title:           strings.TrimSpace(f.draft.Title),
		Subject:         strings.TrimSpace(f.draft.Subject),
		Grade:           f.draft.Grade,
		Section:         f.draft.Section,
		TeacherID:       f.draft.TeacherID,
		DueAt:           &dueAt,
		AllowedAttempts: f.draft.AllowedAttempts,
		Questions:       questions,
	}, nil
}

// Submit validates and posts the evaluation. On success the form resets
// to one blank MultipleChoice question; on failure everything is kept.
func (f *EvaluationForm) Submit(ctx context.Context) (Created, error) {
	f.mu.Lock()
	if f.busy {
		f.mu.Unlock()
		return Created{}, domain.ErrBusy
	}
	req, err := f.payloadLocked()
	f.errs = asValidation(err)
	if err != nil {
		f.mu.Unlock()
		return Created{}, err
	}
	f.busy = true
	f.mu.Unlock()

	ack, err := f.creator.CreateEvaluation(ctx, req)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.busy = false
	if err != nil {
		log.Printf("create evaluation failed: %v", err)
		f.noticeLocked(NoticeError, userMessage(err, "No se pudo crear la evaluación."))
		return Created{}, err
	}
	f.resetLocked()
	msg := ack.Message
	if msg == "" {
		msg = "Evaluación creada correctamente."
	}
	f.noticeLocked(NoticeSuccess, msg)
	return Created{ID: ack.ID, Message: msg}, nil
}
