package app

import (
	"context"
	"errors"
	"log"
	"strconv"
	"strings"
	"sync"

	"einstein-dashboard/internal/api"
	"einstein-dashboard/internal/domain"
)

type AttemptState string

const (
	AttemptUninitialized AttemptState = "uninitialized"
	AttemptLoading       AttemptState = "loading"
	AttemptReady         AttemptState = "ready"
	AttemptSubmitting    AttemptState = "submitting"
	AttemptCompleted     AttemptState = "completed"
	AttemptErrored       AttemptState = "errored"
)

const (
	msgAttemptUnavailable = "No se pudo abrir el intento. Regresa y vuelve a iniciar."
	msgAttemptLoadFailed  = "No se pudo cargar el intento."
	msgEvaluationMissing  = "No se pudo cargar la evaluación del intento."
	msgFinalizeFailed     = "No se pudo finalizar el intento. Intenta nuevamente."
	msgFinalized          = "¡Intento finalizado correctamente!"
)

// AttemptEntry is what the evaluation list hands to the attempt screen.
type AttemptEntry struct {
	AttemptID    string             `json:"intentoId,omitempty"`
	Evaluation   *domain.Evaluation `json:"evaluacion,omitempty"`
	EvaluationID string             `json:"evaluacionId,omitempty"`
}

type AttemptBackend interface {
	GetEvaluation(ctx context.Context, id string) (domain.Evaluation, error)
	GetAttempt(ctx context.Context, id string) (domain.Attempt, error)
	FinalizeAttempt(ctx context.Context, id string, req api.FinalizeRequest) (api.FinalizeResult, error)
	CreateReport(ctx context.Context, attemptID string) (api.Report, error)
	ReportForAttempt(ctx context.Context, attemptID string) (api.Report, error)
}

// AttemptView is the serializable state of the attempt screen. Correct
// answers are never included.
type AttemptView struct {
	State      AttemptState       `json:"state"`
	AttemptID  string             `json:"intentoId,omitempty"`
	Evaluation *domain.Evaluation `json:"evaluacion,omitempty"`
	Answers    map[string]string  `json:"respuestas,omitempty"`
	Answered   int                `json:"respondidas"`
	CanSubmit  bool               `json:"puedeEnviar"`
	Error      string             `json:"error,omitempty"`
	Message    string             `json:"mensaje,omitempty"`
	Score      *float64           `json:"calificacion,omitempty"`
	ScoreMax   float64            `json:"calificacionMaxima"`
	Feedback   string             `json:"feedback,omitempty"`
}

// AttemptController drives one student's pass through an evaluation.
// Abandoning it needs no backend call.
type AttemptController struct {
	backend AttemptBackend

	mu         sync.Mutex
	state      AttemptState
	attemptID  string
	evalID     string
	evaluation *domain.Evaluation
	keys       []string
	answers    map[string]string
	errMsg     string
	message    string
	score      *float64
	feedback   string
	closed     bool
}

func NewAttemptController(backend AttemptBackend) *AttemptController {
	return &AttemptController{backend: backend, state: AttemptUninitialized}
}

// Open enters the attempt. A given evaluation is used as is; otherwise it
// is loaded by evaluation id, then through the attempt. Without any
// reference the controller ends in the errored state.
func (c *AttemptController) Open(ctx context.Context, entry AttemptEntry) error {
	c.mu.Lock()
	if c.state != AttemptUninitialized {
		c.mu.Unlock()
		return domain.ErrInvalidState
	}
	c.attemptID = strings.TrimSpace(entry.AttemptID)
	c.evalID = strings.TrimSpace(entry.EvaluationID)

	switch {
	case entry.Evaluation != nil:
		c.readyLocked(*entry.Evaluation)
		c.mu.Unlock()
		return nil
	case c.evalID == "" && c.attemptID == "":
		c.state = AttemptErrored
		c.errMsg = msgAttemptUnavailable
		c.mu.Unlock()
		return domain.ErrAttemptUnavailable
	}
	c.state = AttemptLoading
	evalID, attemptID := c.evalID, c.attemptID
	c.mu.Unlock()

	var (
		evaluation *domain.Evaluation
		err        error
		failMsg    = msgAttemptLoadFailed
	)
	if evalID != "" {
		var e domain.Evaluation
		e, err = c.backend.GetEvaluation(ctx, evalID)
		evaluation = &e
		failMsg = msgEvaluationMissing
	} else {
		var a domain.Attempt
		a, err = c.backend.GetAttempt(ctx, attemptID)
		evaluation = a.Evaluation
		if err == nil && evaluation == nil {
			failMsg = msgEvaluationMissing
			err = domain.ErrNotFound
		}
		if err == nil && evaluation.ID == "" {
			evaluation.ID = a.EvaluationID
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return domain.ErrClosed
	}
	if err != nil {
		log.Printf("attempt %s: load failed: %v", attemptID, err)
		c.state = AttemptErrored
		c.errMsg = failMsg
		return err
	}
	c.readyLocked(*evaluation)
	return nil
}

func (c *AttemptController) readyLocked(e domain.Evaluation) {
	c.evaluation = &e
	if c.evalID == "" {
		c.evalID = e.ID
	}
	c.keys = make([]string, len(e.Questions))
	c.answers = make(map[string]string, len(e.Questions))
	for i, q := range e.Questions {
		key := questionKey(i, q)
		c.keys[i] = key
		c.answers[key] = ""
	}
	c.state = AttemptReady
}

// questionKey is the question id, or its 1-based position when the
// backend sent none.
func questionKey(i int, q domain.Question) string {
	if q.ID != "" {
		return q.ID
	}
	return strconv.Itoa(i + 1)
}

// Mark overwrites the answer slot of a question.
func (c *AttemptController) Mark(questionID, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != AttemptReady {
		return domain.ErrInvalidState
	}
	if _, ok := c.answers[questionID]; !ok {
		return domain.ErrQuestionNotFound
	}
	c.answers[questionID] = value
	return nil
}

func (c *AttemptController) answeredLocked() []domain.Answer {
	out := make([]domain.Answer, 0, len(c.keys))
	for _, key := range c.keys {
		if v := c.answers[key]; strings.TrimSpace(v) != "" {
			out = append(out, domain.Answer{QuestionID: key, Selected: v})
		}
	}
	return out
}

// CanSubmit needs an attempt id, at least one answer and no submission in
// flight.
func (c *AttemptController) CanSubmit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canSubmitLocked() == nil
}

func (c *AttemptController) canSubmitLocked() error {
	switch {
	case c.state == AttemptSubmitting:
		return domain.ErrBusy
	case c.state != AttemptReady:
		return domain.ErrInvalidState
	case c.attemptID == "":
		return domain.ErrAttemptUnavailable
	case len(c.answeredLocked()) == 0:
		return domain.ErrNoAnswers
	}
	return nil
}

// Submit finalizes the attempt. On failure the controller returns to the
// ready state with every answer kept.
func (c *AttemptController) Submit(ctx context.Context) (api.FinalizeResult, error) {
	c.mu.Lock()
	if err := c.canSubmitLocked(); err != nil {
		c.mu.Unlock()
		return api.FinalizeResult{}, err
	}
	req := api.FinalizeRequest{Answers: c.answeredLocked(), EvaluationID: c.evalID}
	attemptID := c.attemptID
	c.state = AttemptSubmitting
	c.errMsg = ""
	c.message = ""
	c.mu.Unlock()

	res, err := c.backend.FinalizeAttempt(ctx, attemptID, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return res, domain.ErrClosed
	}
	if err != nil {
		log.Printf("attempt %s: finalize failed: %v", attemptID, err)
		c.state = AttemptReady
		c.errMsg = userMessage(err, msgFinalizeFailed)
		return api.FinalizeResult{}, err
	}
	score := res.Score
	c.state = AttemptCompleted
	c.score = &score
	c.feedback = res.Feedback
	c.message = msgFinalized
	return res, nil
}

// Report returns the report of a completed attempt, asking the backend to
// build it when none exists yet.
func (c *AttemptController) Report(ctx context.Context) (api.Report, error) {
	c.mu.Lock()
	state, attemptID := c.state, c.attemptID
	c.mu.Unlock()
	if state != AttemptCompleted {
		return nil, domain.ErrInvalidState
	}
	report, err := c.backend.ReportForAttempt(ctx, attemptID)
	if errors.Is(err, domain.ErrNotFound) {
		return c.backend.CreateReport(ctx, attemptID)
	}
	return report, err
}

func (c *AttemptController) State() AttemptState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Answers returns a copy of the answer slots.
func (c *AttemptController) Answers() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(c.answers))
	for k, v := range c.answers {
		out[k] = v
	}
	return out
}

func (c *AttemptController) View() AttemptView {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := AttemptView{
		State:     c.state,
		AttemptID: c.attemptID,
		Answered:  len(c.answeredLocked()),
		CanSubmit: c.canSubmitLocked() == nil,
		Error:     c.errMsg,
		Message:   c.message,
		Score:     c.score,
		ScoreMax:  domain.ScoreMax,
		Feedback:  c.feedback,
	}
	if c.evaluation != nil {
		v.Evaluation = withoutAnswers(*c.evaluation)
	}
	if c.answers != nil {
		v.Answers = make(map[string]string, len(c.answers))
		for k, val := range c.answers {
			v.Answers[k] = val
		}
	}
	return v
}

// Close detaches the controller; late results are ignored.
func (c *AttemptController) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func withoutAnswers(e domain.Evaluation) *domain.Evaluation {
	qs := make([]domain.Question, len(e.Questions))
	for i, q := range e.Questions {
		q.Correct = ""
		q.Options = append([]string(nil), q.Options...)
		if q.ID == "" {
			q.ID = questionKey(i, q)
		}
		qs[i] = q
	}
	e.Questions = qs
	return &e
}
