package http

import (
	"fmt"
	"net/http"

	"einstein-dashboard/internal/app"
	"einstein-dashboard/internal/domain"
)

func (s *Server) workspace(r *http.Request) *app.Workspace {
	sess, _ := SessionFrom(r.Context())
	return s.workspaces.GetOrCreate(sess)
}

// formCommand is one edit of the authoring form.
type formCommand struct {
	Type     string              `json:"type"`
	Field    string              `json:"field"`
	Value    string              `json:"value"`
	Question int                 `json:"question"`
	Option   int                 `json:"option"`
	Kind     domain.QuestionKind `json:"kind"`
}

func (s *Server) handleFormView(w http.ResponseWriter, r *http.Request) {
	form := s.workspace(r).Form()
	if len(form.View().Grades) == 0 {
		_ = form.Load(r.Context())
	}
	respondJSON(w, http.StatusOK, form.View())
}

func (s *Server) handleFormCommand(w http.ResponseWriter, r *http.Request) {
	var cmd formCommand
	if err := decodeJSON(r, &cmd); err != nil {
		respondError(w, err, "Solicitud inválida.")
		return
	}
	form := s.workspace(r).Form()
	ctx := r.Context()

	var err error
	switch cmd.Type {
	case "load":
		err = form.Load(ctx)
	case "set_field":
		err = form.SetField(cmd.Field, cmd.Value)
	case "set_grade":
		err = form.SetGrade(ctx, cmd.Value)
	case "set_section":
		err = form.SetSection(cmd.Value)
	case "add_question":
		err = form.AddQuestion(cmd.Kind)
	case "remove_question":
		err = form.RemoveQuestion(cmd.Question)
	case "set_prompt":
		err = form.SetPrompt(cmd.Question, cmd.Value)
	case "add_option":
		err = form.AddOption(cmd.Question)
	case "set_option":
		err = form.SetOption(cmd.Question, cmd.Option, cmd.Value)
	case "remove_option":
		err = form.RemoveOption(cmd.Question, cmd.Option)
	case "set_correct":
		err = form.SetCorrect(cmd.Question, cmd.Value)
	case "validate":
		err = form.Validate()
	default:
		err = fmt.Errorf("%w: command %q", domain.ErrUnknownField, cmd.Type)
	}
	if err != nil {
		respondError(w, err, "No se pudo aplicar el cambio.")
		return
	}
	respondJSON(w, http.StatusOK, form.View())
}

func (s *Server) handleFormSubmit(w http.ResponseWriter, r *http.Request) {
	form := s.workspace(r).Form()
	created, err := form.Submit(r.Context())
	if err != nil {
		respondError(w, err, app.ErrorMessage(err, "No se pudo crear la evaluación."))
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

// handleBoardView (re)loads the evaluations of the student's class.
func (s *Server) handleBoardView(w http.ResponseWriter, r *http.Request) {
	board := s.workspace(r).Board()
	_ = board.Fetch(r.Context())
	respondJSON(w, http.StatusOK, board.View())
}

type boardCommand struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

func (s *Server) handleBoardCommand(w http.ResponseWriter, r *http.Request) {
	var cmd boardCommand
	if err := decodeJSON(r, &cmd); err != nil {
		respondError(w, err, "Solicitud inválida.")
		return
	}
	board := s.workspace(r).Board()

	var err error
	switch cmd.Type {
	case "fetch":
		err = board.Fetch(r.Context())
	case "refresh":
		err = board.Refresh(r.Context())
	case "set_text":
		board.SetText(cmd.Value)
	case "set_status":
		err = board.SetStatus(cmd.Value)
	case "set_sort":
		err = board.SetSort(cmd.Value)
	case "select":
		err = board.Select(cmd.Value)
	default:
		err = fmt.Errorf("%w: command %q", domain.ErrUnknownField, cmd.Type)
	}
	view := board.View()
	if err != nil {
		respondError(w, err, firstNonEmpty(view.Error, "No se pudo aplicar el cambio."))
		return
	}
	respondJSON(w, http.StatusOK, view)
}

type startRequest struct {
	EvaluationID string `json:"evaluacionId"`
}

// handleBoardStart starts an attempt and opens it in the session's
// workspace.
func (s *Server) handleBoardStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err, "Solicitud inválida.")
		return
	}
	ws := s.workspace(r)
	board := ws.Board()
	entry, err := board.Start(r.Context(), req.EvaluationID)
	if err != nil {
		respondError(w, err, firstNonEmpty(board.View().Error, "No se puede iniciar esta evaluación."))
		return
	}
	s.openAttempt(w, r, ws, entry, http.StatusCreated)
}

func (s *Server) openAttempt(w http.ResponseWriter, r *http.Request, ws *app.Workspace, entry app.AttemptEntry, status int) {
	attempt, err := ws.OpenAttempt(r.Context(), entry)
	view := attempt.View()
	if err != nil {
		respondError(w, err, view.Error)
		return
	}
	respondJSON(w, status, view)
}

func (s *Server) currentAttempt(w http.ResponseWriter, r *http.Request) (*app.AttemptController, bool) {
	attempt, ok := s.workspace(r).Attempt()
	if !ok {
		respondError(w, domain.ErrNotFound, "No hay un intento en curso.")
	}
	return attempt, ok
}

func (s *Server) handleAttemptView(w http.ResponseWriter, r *http.Request) {
	if attempt, ok := s.currentAttempt(w, r); ok {
		respondJSON(w, http.StatusOK, attempt.View())
	}
}

// handleAttemptOpen enters an attempt from navigation state: an attempt
// id plus the evaluation or its id.
func (s *Server) handleAttemptOpen(w http.ResponseWriter, r *http.Request) {
	var entry app.AttemptEntry
	if err := decodeJSON(r, &entry); err != nil {
		respondError(w, err, "Solicitud inválida.")
		return
	}
	s.openAttempt(w, r, s.workspace(r), entry, http.StatusOK)
}

type markRequest struct {
	QuestionID string `json:"preguntaId"`
	Option     string `json:"opcion"`
}

func (s *Server) handleAttemptMark(w http.ResponseWriter, r *http.Request) {
	var req markRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err, "Solicitud inválida.")
		return
	}
	attempt, ok := s.currentAttempt(w, r)
	if !ok {
		return
	}
	if err := attempt.Mark(req.QuestionID, req.Option); err != nil {
		respondError(w, err, "No se pudo registrar la respuesta.")
		return
	}
	respondJSON(w, http.StatusOK, attempt.View())
}

func (s *Server) handleAttemptSubmit(w http.ResponseWriter, r *http.Request) {
	attempt, ok := s.currentAttempt(w, r)
	if !ok {
		return
	}
	_, err := attempt.Submit(r.Context())
	view := attempt.View()
	if err != nil {
		respondError(w, err, firstNonEmpty(view.Error, "Selecciona al menos una respuesta."))
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleAttemptReport(w http.ResponseWriter, r *http.Request) {
	attempt, ok := s.currentAttempt(w, r)
	if !ok {
		return
	}
	report, err := attempt.Report(r.Context())
	if err != nil {
		respondError(w, err, "No se pudo obtener el reporte.")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(report)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
