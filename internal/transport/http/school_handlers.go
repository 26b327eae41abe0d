package http

import (
	"context"
	"net/http"

	"einstein-dashboard/internal/app"
	"einstein-dashboard/internal/domain"
)

func (s *Server) handleGrades(w http.ResponseWriter, r *http.Request) {
	grades, err := s.catalog.Grades(r.Context())
	if err != nil {
		respondError(w, err, "Error al cargar grados.")
		return
	}
	if grades == nil {
		grades = []domain.Grade{}
	}
	respondJSON(w, http.StatusOK, grades)
}

// handleSections lists every section, or those of one grade with ?grado=.
func (s *Server) handleSections(w http.ResponseWriter, r *http.Request) {
	var (
		sections []domain.Section
		err      error
	)
	if grade := r.URL.Query().Get("grado"); grade != "" {
		sections, err = s.catalog.SectionsByGrade(r.Context(), grade)
	} else {
		sections, err = s.catalog.Sections(r.Context())
	}
	if err != nil {
		respondError(w, err, "Error al cargar las secciones.")
		return
	}
	if sections == nil {
		sections = []domain.Section{}
	}
	respondJSON(w, http.StatusOK, sections)
}

// create decodes a draft, runs the create call and answers 201.
func create[D any](w http.ResponseWriter, r *http.Request, entity string, fn func(context.Context, D) (app.Created, error)) {
	var draft D
	if err := decodeJSON(r, &draft); err != nil {
		respondError(w, err, "Solicitud inválida.")
		return
	}
	created, err := fn(r.Context(), draft)
	if err != nil {
		respondError(w, err, app.CreateFailedMessage(err, entity))
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleCreateAdmin(w http.ResponseWriter, r *http.Request) {
	create(w, r, "el administrador", s.directory.CreateAdmin)
}

func (s *Server) handleCreateStudent(w http.ResponseWriter, r *http.Request) {
	create(w, r, "el alumno", s.directory.CreateStudent)
}

func (s *Server) handleCreateTeacher(w http.ResponseWriter, r *http.Request) {
	create(w, r, "el docente", s.directory.CreateTeacher)
}

func (s *Server) handleCreateSection(w http.ResponseWriter, r *http.Request) {
	create(w, r, "la sección", func(ctx context.Context, draft app.SectionDraft) (app.Created, error) {
		created, err := s.directory.CreateSection(ctx, draft)
		if err == nil {
			app.InvalidateCatalog(ctx, s.catalog)
		}
		return created, err
	})
}
