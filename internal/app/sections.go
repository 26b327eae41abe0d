package app

import (
	"context"
	"errors"

	"einstein-dashboard/internal/api"
	"einstein-dashboard/internal/domain"
	"einstein-dashboard/internal/listing"
)

type SectionBackend interface {
	ListSections(ctx context.Context) ([]domain.Section, error)
	UpdateSection(ctx context.Context, id string, req api.SectionPayload) error
	DeleteSection(ctx context.Context, id string) error
}

type SectionEdit struct {
	Name    string `json:"nombre"`
	GradeID string `json:"grado_id"`
}

// SectionRow is a section joined with its grade name.
type SectionRow struct {
	domain.Section
	GradeName string `json:"gradoNombre"`
	Status    string `json:"estadoTexto"`
}

type sectionSource struct {
	backend SectionBackend
	catalog Catalog
}

func NewSectionList(backend SectionBackend, catalog Catalog) *ListController[domain.Section, SectionEdit] {
	return NewListController[domain.Section, SectionEdit](&sectionSource{backend: backend, catalog: catalog}, ListConfig[domain.Section]{
		Entity:      "sections",
		DefaultSort: "grado",
		Catalog:     catalog,
		Messages: Messages{
			Loaded:       "Se cargaron %d secciones correctamente.",
			LoadFailed:   "Error al cargar las secciones.",
			Updated:      "Sección actualizada correctamente.",
			UpdateFailed: "No se pudo actualizar la sección.",
			Deleted:      "Sección eliminada correctamente.",
			DeleteFailed: "No se pudo eliminar la sección.",
			MissingID:    "Falta el identificador de la sección.",
			LookupFailed: "Error al cargar los grados.",
		},
		Schema: func(l Lookups) listing.Schema[domain.Section] {
			return listing.Schema[domain.Section]{
				Search: func(s domain.Section) []string {
					return []string{s.Name, l.GradeName(s.GradeID), "seccion " + s.Name}
				},
				Filters: map[string]func(domain.Section) []string{
					fieldGrade:  func(s domain.Section) []string { return []string{l.GradeName(s.GradeID)} },
					fieldStatus: func(s domain.Section) []string { return []string{s.StatusLabel()} },
				},
				Sorts: map[string]func(domain.Section) listing.SortValue{
					"nombre":    func(s domain.Section) listing.SortValue { return listing.Text(s.Name) },
					fieldGrade:  func(s domain.Section) listing.SortValue { return listing.Text(l.GradeName(s.GradeID)) },
					fieldStatus: func(s domain.Section) listing.SortValue { return listing.Text(s.StatusLabel()) },
				},
			}
		},
		Present: func(l Lookups, s domain.Section) any {
			return SectionRow{Section: s, GradeName: l.GradeName(s.GradeID), Status: s.StatusLabel()}
		},
	})
}

func (s *sectionSource) List(ctx context.Context) ([]domain.Section, error) {
	return s.backend.ListSections(ctx)
}

func (s *sectionSource) RowID(sec domain.Section) string    { return sec.ID }
func (s *sectionSource) TargetID(sec domain.Section) string { return sec.ID }

func (s *sectionSource) EditModel(_ context.Context, sec domain.Section) (SectionEdit, error) {
	return SectionEdit{Name: sec.Name, GradeID: sec.GradeID}, nil
}

func (s *sectionSource) SetField(_ context.Context, e *SectionEdit, field, value string) error {
	switch field {
	case "nombre":
		e.Name = value
	case "grado_id", fieldGrade:
		e.GradeID = value
	default:
		return domain.ErrUnknownField
	}
	return nil
}

func (s *sectionSource) Update(ctx context.Context, id string, e SectionEdit) error {
	payload, err := sectionPayload(e.Name, e.GradeID)
	if err != nil {
		return err
	}
	if err := s.backend.UpdateSection(ctx, id, payload); err != nil {
		return err
	}
	InvalidateCatalog(ctx, s.catalog)
	return nil
}

func (s *sectionSource) Delete(ctx context.Context, id string) error {
	if err := s.backend.DeleteSection(ctx, id); err != nil {
		return err
	}
	InvalidateCatalog(ctx, s.catalog)
	return nil
}

const (
	sectionNameMessage = "El nombre de la sección debe ser una sola letra (A-Z)."
	gradeMissingText   = "Selecciona un grado."
)

// sectionPayload normalizes the name to one upper-case letter and requires
// a grade.
func sectionPayload(name, gradeID string) (api.SectionPayload, error) {
	verrs := domain.ValidationErrors{}
	normalized, err := domain.NormalizeSectionName(name)
	if errors.Is(err, domain.ErrInvalidSectionName) {
		verrs.Add("nombre", sectionNameMessage)
	}
	if gradeID == "" {
		verrs.Add("grado_id", gradeMissingText)
	}
	if err := verrs.OrNil(); err != nil {
		return api.SectionPayload{}, err
	}
	return api.SectionPayload{Name: normalized, GradeID: gradeID}, nil
}
