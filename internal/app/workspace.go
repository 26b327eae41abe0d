package app

import (
	"context"
	"sync"
	"time"

	"einstein-dashboard/internal/domain"
	"einstein-dashboard/internal/validate"
)

// Backend is everything the per-session screens need from the school API.
type Backend interface {
	EvaluationCreator
	BoardBackend
	AttemptBackend
}

// Controllers builds the screens of one session.
type Controllers struct {
	Backend  Backend
	Catalog  Catalog
	Validate *validate.Validator
	Location *time.Location
}

// Workspace holds the screens whose state outlives a single request: the
// authoring form, the evaluation board and the attempt in progress.
type Workspace struct {
	session  Session
	build    Controllers
	mu       sync.Mutex
	form     *EvaluationForm
	board    *EvaluationBoard
	attempt  *AttemptController
	lastUsed time.Time
}

// Form returns the session's authoring form, creating it on first use.
// Teachers author under their own id.
func (w *Workspace) Form() *EvaluationForm {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.form == nil {
		w.form = NewEvaluationForm(w.build.Backend, w.build.Catalog, w.build.Validate, w.build.Location)
		if w.session.Role == domain.RoleTeacher && w.session.UserID != "" {
			w.form.SetTeacher(w.session.UserID)
		}
	}
	return w.form
}

// Board returns the student's evaluation board for their grade and
// section.
func (w *Workspace) Board() *EvaluationBoard {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.board == nil {
		w.board = NewEvaluationBoard(w.build.Backend, BoardScope{
			Grade:     w.session.Grade,
			Section:   w.session.Section,
			StudentID: w.session.UserID,
		})
	}
	return w.board
}

// Attempt returns the attempt in progress, if any.
func (w *Workspace) Attempt() (*AttemptController, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.attempt, w.attempt != nil
}

// OpenAttempt replaces any attempt in progress with a new one and opens it.
// The previous one is abandoned without a backend call.
func (w *Workspace) OpenAttempt(ctx context.Context, entry AttemptEntry) (*AttemptController, error) {
	c := NewAttemptController(w.build.Backend)
	w.mu.Lock()
	if w.attempt != nil {
		w.attempt.Close()
	}
	w.attempt = c
	w.mu.Unlock()
	return c, c.Open(ctx, entry)
}

func (w *Workspace) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.attempt != nil {
		w.attempt.Close()
	}
}

// Workspaces keeps one Workspace per dashboard session in process memory.
type Workspaces struct {
	build Controllers
	idle  time.Duration
	now   func() time.Time

	mu    sync.Mutex
	items map[string]*Workspace
}

func NewWorkspaces(build Controllers, idle time.Duration) *Workspaces {
	return NewWorkspacesWithClock(build, idle, time.Now)
}

func NewWorkspacesWithClock(build Controllers, idle time.Duration, now func() time.Time) *Workspaces {
	return &Workspaces{build: build, idle: idle, now: now, items: make(map[string]*Workspace)}
}

func (ws *Workspaces) GetOrCreate(s Session) *Workspace {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	w, ok := ws.items[s.ID]
	if !ok {
		w = &Workspace{session: s, build: ws.build}
		ws.items[s.ID] = w
	}
	w.lastUsed = ws.now()
	return w
}

func (ws *Workspaces) Get(sessionID string) (*Workspace, bool) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	w, ok := ws.items[sessionID]
	return w, ok
}

// Drop forgets the workspace of a session, e.g. on logout.
func (ws *Workspaces) Drop(sessionID string) {
	ws.mu.Lock()
	w, ok := ws.items[sessionID]
	delete(ws.items, sessionID)
	ws.mu.Unlock()
	if ok {
		w.close()
	}
}

// Sweep drops workspaces unused for longer than the idle timeout and
// returns how many were dropped.
func (ws *Workspaces) Sweep() int {
	if ws.idle <= 0 {
		return 0
	}
	cutoff := ws.now().Add(-ws.idle)
	ws.mu.Lock()
	var stale []*Workspace
	for id, w := range ws.items {
		if w.lastUsed.Before(cutoff) {
			stale = append(stale, w)
			delete(ws.items, id)
		}
	}
	ws.mu.Unlock()
	for _, w := range stale {
		w.close()
	}
	return len(stale)
}

// Len is the number of live workspaces.
func (ws *Workspaces) Len() int {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return len(ws.items)
}
