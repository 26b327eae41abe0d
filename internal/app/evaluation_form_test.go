package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"einstein-dashboard/internal/app"
	"einstein-dashboard/internal/domain"
	"einstein-dashboard/internal/validate"
)

func newForm(t *testing.T, backend *fakeBackend) *app.EvaluationForm {
	t.Helper()
	lima, err := time.LoadLocation("America/Lima")
	if err != nil {
		lima = time.FixedZone("PET", -5*3600)
	}
	return app.NewEvaluationForm(backend, backend, validate.New(), lima)
}

func formBackend() *fakeBackend {
	return &fakeBackend{
		grades:   []domain.Grade{{ID: "g5", Name: "5to"}},
		sections: []domain.Section{{ID: "sA", Name: "A", GradeID: "g5"}},
	}
}

// fillValid completes the draft with one valid multiple choice question.
func fillValid(t *testing.T, f *app.EvaluationForm) {
	t.Helper()
	ctx := context.Background()
	steps := []error{
		f.Load(ctx),
		f.SetField("titulo", "Fracciones"),
		f.SetField("materia", "Matemática"),
		f.SetField("docente_id", "d-1"),
		f.SetField("fecha_entrega_local", "2025-06-10T23:59"),
		f.SetGrade(ctx, "g5"),
		f.SetSection("sA"),
		f.SetPrompt(0, "¿Cuánto es 1/2 + 1/2?"),
		f.SetOption(0, 0, "1"),
		f.SetOption(0, 1, "2"),
		f.SetCorrect(0, "1"),
	}
	for i, err := range steps {
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
}

func TestFormStartsWithOneMultipleChoiceQuestion(t *testing.T) {
	f := newForm(t, formBackend())
	d := f.Draft()
	if len(d.Questions) != 1 || d.Questions[0].Kind != domain.MultipleChoice || len(d.Questions[0].Options) != 2 {
		t.Fatalf("unexpected initial draft %+v", d.Questions)
	}
	if d.AllowedAttempts != 1 {
		t.Fatalf("expected one attempt by default, got %d", d.AllowedAttempts)
	}
}

func TestTrueFalseOptionsAreFixed(t *testing.T) {
	f := newForm(t, formBackend())
	if err := f.AddQuestion(domain.TrueFalse); err != nil {
		t.Fatalf("add: %v", err)
	}
	q := f.Draft().Questions[1]
	if len(q.Options) != 2 || q.Options[0] != "Verdadero" || q.Options[1] != "Falso" {
		t.Fatalf("unexpected true/false options %v", q.Options)
	}
	if err := f.SetOption(1, 0, "Sí"); !errors.Is(err, domain.ErrInvalidQuestion) {
		t.Fatalf("expected fixed options, got %v", err)
	}
}

func TestRemovingCorrectOptionClearsAnswer(t *testing.T) {
	f := newForm(t, formBackend())
	_ = f.SetOption(0, 0, "Lima")
	_ = f.SetOption(0, 1, "Cusco")
	_ = f.AddOption(0)
	_ = f.SetOption(0, 2, "Arequipa")
	if err := f.SetCorrect(0, "Cusco"); err != nil {
		t.Fatalf("set correct: %v", err)
	}
	if err := f.SetCorrect(0, "Tacna"); !errors.Is(err, domain.ErrInvalidQuestion) {
		t.Fatalf("expected non-option rejected, got %v", err)
	}

	if err := f.RemoveOption(0, 1); err != nil {
		t.Fatalf("remove: %v", err)
	}
	q := f.Draft().Questions[0]
	if q.Correct != "" || !q.Touched {
		t.Fatalf("expected correct answer cleared and touched, got %+v", q)
	}

	_ = f.RemoveOption(0, 0)
	_ = f.RemoveOption(0, 0)
	if q := f.Draft().Questions[0]; len(q.Options) != 2 {
		t.Fatalf("expected options re-padded to 2, got %v", q.Options)
	}
}

func TestRenamingCorrectOptionClearsAnswer(t *testing.T) {
	f := newForm(t, formBackend())
	_ = f.SetOption(0, 0, "Lima")
	_ = f.SetOption(0, 1, "Cusco")
	_ = f.SetCorrect(0, "Lima")
	_ = f.SetOption(0, 0, "Piura")
	if q := f.Draft().Questions[0]; q.Correct != "" {
		t.Fatalf("expected answer cleared after rename, got %q", q.Correct)
	}
}

func TestValidateReportsMissingFields(t *testing.T) {
	f := newForm(t, formBackend())
	err := f.Validate()
	var verrs domain.ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected validation errors, got %v", err)
	}
	for _, field := range []string{"titulo", "materia", "grado", "seccion", "fecha_entrega_local", "preguntas[0].enunciado", "preguntas[0].opciones"} {
		if verrs[field] == "" {
			t.Fatalf("expected error for %s, got %v", field, verrs)
		}
	}
	if f.View().Errors == nil {
		t.Fatalf("expected errors in view")
	}
}

func TestSubmitConvertsDueDateAndResets(t *testing.T) {
	backend := formBackend()
	f := newForm(t, backend)
	fillValid(t, f)
	_ = f.AddQuestion(domain.TrueFalse)
	_ = f.SetPrompt(1, "La tierra es plana")
	_ = f.SetCorrect(1, "Falso")

	created, err := f.Submit(context.Background())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if created.Message != "Evaluación creada correctamente." {
		t.Fatalf("unexpected message %q", created.Message)
	}
	if len(backend.created) != 1 {
		t.Fatalf("expected one create call")
	}
	req := backend.created[0]
	if req.DueAt == nil || *req.DueAt != "2025-06-11T04:59:00Z" {
		t.Fatalf("expected UTC due date, got %v", req.DueAt)
	}
	if req.Grade != "5to" || req.Section != "A" || req.TeacherID != "d-1" {
		t.Fatalf("unexpected class fields %+v", req)
	}
	if len(req.Questions) != 2 || req.Questions[1].Options[0] != "Verdadero" {
		t.Fatalf("unexpected questions %+v", req.Questions)
	}

	d := f.Draft()
	if d.Title != "" || len(d.Questions) != 1 || d.AllowedAttempts != 1 || d.Grade != "" {
		t.Fatalf("expected reset draft, got %+v", d)
	}
	if d.TeacherID != "d-1" {
		t.Fatalf("expected teacher kept, got %q", d.TeacherID)
	}
}

func TestSubmitDropsEmptyOptions(t *testing.T) {
	backend := formBackend()
	f := newForm(t, backend)
	fillValid(t, f)
	_ = f.AddOption(0)

	if _, err := f.Submit(context.Background()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if opts := backend.created[0].Questions[0].Options; len(opts) != 2 {
		t.Fatalf("expected empty option dropped, got %v", opts)
	}
}

func TestSubmitNeedsTwoOptions(t *testing.T) {
	backend := formBackend()
	f := newForm(t, backend)
	fillValid(t, f)
	_ = f.SetOption(0, 1, "")

	_, err := f.Submit(context.Background())
	var verrs domain.ValidationErrors
	if !errors.As(err, &verrs) || verrs["preguntas[0].opciones"] == "" {
		t.Fatalf("expected option count error, got %v", err)
	}
	if len(backend.created) != 0 {
		t.Fatalf("expected no backend call")
	}
}

func TestSubmitFailureKeepsDraft(t *testing.T) {
	backend := formBackend()
	backend.createErr = errors.New("boom")
	f := newForm(t, backend)
	fillValid(t, f)

	if _, err := f.Submit(context.Background()); err == nil {
		t.Fatalf("expected submit error")
	}
	view := f.View()
	if view.Draft.Title != "Fracciones" || view.Draft.Questions[0].Correct != "1" {
		t.Fatalf("expected draft kept, got %+v", view.Draft)
	}
	if view.Busy || view.Notice == nil || view.Notice.Message != "No se pudo crear la evaluación." {
		t.Fatalf("expected failure notice, got busy=%v notice=%+v", view.Busy, view.Notice)
	}
}

func TestGradeChangeClearsSection(t *testing.T) {
	f := newForm(t, formBackend())
	ctx := context.Background()
	_ = f.Load(ctx)
	_ = f.SetGrade(ctx, "g5")
	_ = f.SetSection("sA")
	if f.Draft().Section != "A" {
		t.Fatalf("expected section name in draft")
	}
	_ = f.SetGrade(ctx, "g5")
	if f.Draft().Section != "" {
		t.Fatalf("expected section cleared on grade change")
	}
	if err := f.SetSection("Z"); !errors.Is(err, domain.ErrUnknownField) {
		t.Fatalf("expected unknown section rejected, got %v", err)
	}
}
