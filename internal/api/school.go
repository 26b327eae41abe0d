package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"einstein-dashboard/internal/domain"
)

type SectionPayload struct {
	Name    string `json:"nombre"`
	GradeID string `json:"grado_id"`
}

func (c *Client) ListGrades(ctx context.Context) ([]domain.Grade, error) {
	var out []domain.Grade
	err := c.do(ctx, "list grades", http.MethodGet, "/grados", nil, nil, &out)
	return out, err
}

func (c *Client) ListSections(ctx context.Context) ([]domain.Section, error) {
	var out []domain.Section
	err := c.do(ctx, "list sections", http.MethodGet, "/secciones", nil, nil, &out)
	return out, err
}

func (c *Client) SectionsByGrade(ctx context.Context, gradeID string) ([]domain.Section, error) {
	var out []domain.Section
	err := c.do(ctx, "sections by grade", http.MethodGet, "/secciones/grado/"+escape(gradeID), nil, nil, &out)
	return out, err
}

func (c *Client) CreateSection(ctx context.Context, req SectionPayload) (Ack, error) {
	var out Ack
	err := c.do(ctx, "create section", http.MethodPost, "/secciones", nil, req, &out)
	return out, err
}

func (c *Client) UpdateSection(ctx context.Context, id string, req SectionPayload) error {
	return c.do(ctx, "update section", http.MethodPut, "/secciones/"+escape(id), nil, req, nil)
}

func (c *Client) DeleteSection(ctx context.Context, id string) error {
	return c.do(ctx, "delete section", http.MethodDelete, "/secciones/"+escape(id), nil, nil, nil)
}

// QuestionPayload is one question of an evaluation create request.
type QuestionPayload struct {
	Kind    domain.QuestionKind `json:"tipo"`
	Prompt  string              `json:"enunciado"`
	Options []string            `json:"opciones"`
	Correct string              `json:"respuesta_correcta"`
}

type EvaluationCreate struct {
	Title           string            `json:"titulo"`
	Subject         string            `json:"materia"`
	Grade           string            `json:"grado"`
	Section         string            `json:"seccion"`
	TeacherID       string            `json:"docente_id"`
	DueAt           *string           `json:"fecha_entrega"`
	AllowedAttempts int               `json:"intentos_permitidos"`
	Questions       []QuestionPayload `json:"preguntas"`
}

// EvaluationUpdate is a partial update; nil fields are left untouched.
type EvaluationUpdate struct {
	Title           *string           `json:"titulo,omitempty"`
	Subject         *string           `json:"materia,omitempty"`
	Grade           *string           `json:"grado,omitempty"`
	Section         *string           `json:"seccion,omitempty"`
	TeacherID       *string           `json:"docente_id,omitempty"`
	DueAt           *string           `json:"fecha_entrega,omitempty"`
	AllowedAttempts *int              `json:"intentos_permitidos,omitempty"`
	Status          *string           `json:"estado,omitempty"`
	Questions       []QuestionPayload `json:"preguntas,omitempty"`
}

func (c *Client) CreateEvaluation(ctx context.Context, req EvaluationCreate) (Ack, error) {
	var out Ack
	err := c.do(ctx, "create evaluation", http.MethodPost, "/evaluaciones/crear", nil, req, &out)
	return out, err
}

func (c *Client) ListEvaluations(ctx context.Context, grade, section string) ([]domain.Evaluation, error) {
	q := url.Values{}
	q.Set("grado", grade)
	q.Set("seccion", section)
	var out []domain.Evaluation
	err := c.do(ctx, "list evaluations", http.MethodGet, "/evaluaciones/listado", q, nil, &out)
	return out, err
}

func (c *Client) GetEvaluation(ctx context.Context, id string) (domain.Evaluation, error) {
	var out domain.Evaluation
	err := c.do(ctx, "get evaluation", http.MethodGet, "/evaluaciones/"+escape(id), nil, nil, &out)
	return out, err
}

func (c *Client) UpdateEvaluation(ctx context.Context, id string, req EvaluationUpdate) error {
	return c.do(ctx, "update evaluation", http.MethodPut, "/evaluaciones/"+escape(id), nil, req, nil)
}

func (c *Client) DeleteEvaluation(ctx context.Context, id string) error {
	return c.do(ctx, "delete evaluation", http.MethodDelete, "/evaluaciones/"+escape(id), nil, nil, nil)
}

type StartAttemptRequest struct {
	EvaluationID string `json:"evaluacion_id"`
	StudentID    string `json:"alumno_id"`
}

// StartAttemptResponse carries the new attempt id; the backend spells it
// intento_id, id or _id depending on version.
type StartAttemptResponse struct {
	AttemptID string
	Raw       json.RawMessage
}

func (r *StartAttemptResponse) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.AttemptID = firstString(raw, "intento_id", "id", "_id")
	r.Raw = append(json.RawMessage(nil), data...)
	return nil
}

type FinalizeRequest struct {
	Answers      []domain.Answer `json:"respuestas"`
	EvaluationID string          `json:"evaluacion_id"`
}

type FinalizeResult struct {
	Score    float64 `json:"calificacion"`
	Feedback string  `json:"feedback_alumno"`
	Message  string  `json:"msg"`
}

func (c *Client) StartAttempt(ctx context.Context, req StartAttemptRequest) (StartAttemptResponse, error) {
	var out StartAttemptResponse
	err := c.do(ctx, "start attempt", http.MethodPost, "/intentos", nil, req, &out)
	return out, err
}

func (c *Client) GetAttempt(ctx context.Context, id string) (domain.Attempt, error) {
	var out domain.Attempt
	err := c.do(ctx, "get attempt", http.MethodGet, "/intentos/"+escape(id), nil, nil, &out)
	return out, err
}

func (c *Client) FinalizeAttempt(ctx context.Context, id string, req FinalizeRequest) (FinalizeResult, error) {
	var out FinalizeResult
	err := c.do(ctx, "finalize attempt", http.MethodPut, "/intentos/"+escape(id)+"/finalizar", nil, req, &out)
	return out, err
}

// Report is the backend's per-attempt report, passed through untouched.
type Report = json.RawMessage

func (c *Client) CreateReport(ctx context.Context, attemptID string) (Report, error) {
	var out json.RawMessage
	body := map[string]string{"intento_id": attemptID}
	err := c.do(ctx, "create report", http.MethodPost, "/reportes/", nil, body, &out)
	return out, err
}

func (c *Client) ReportForAttempt(ctx context.Context, attemptID string) (Report, error) {
	var out json.RawMessage
	err := c.do(ctx, "get report", http.MethodGet, "/reportes/intento/"+escape(attemptID), nil, nil, &out)
	return out, err
}
