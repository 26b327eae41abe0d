package app

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"einstein-dashboard/internal/domain"
)

// Catalog serves the grade and section lookups. Implementations usually
// cache what the backend returns.
type Catalog interface {
	Grades(ctx context.Context) ([]domain.Grade, error)
	Sections(ctx context.Context) ([]domain.Section, error)
	SectionsByGrade(ctx context.Context, gradeID string) ([]domain.Section, error)
}

// Invalidator is implemented by catalogs that cache.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// InvalidateCatalog drops cached lookups after a section changed.
func InvalidateCatalog(ctx context.Context, catalog Catalog) {
	inv, ok := catalog.(Invalidator)
	if !ok {
		return
	}
	if err := inv.Invalidate(ctx); err != nil {
		log.Printf("invalidate lookups: %v", err)
	}
}

// Lookups joins grade and section identifiers to display names.
type Lookups struct {
	grades   map[string]string
	sections map[string]string
}

// LoadLookups fetches grades and sections in parallel. On failure the
// returned Lookups is still usable and resolves every id to itself.
func LoadLookups(ctx context.Context, catalog Catalog) (Lookups, error) {
	var (
		grades   []domain.Grade
		sections []domain.Section
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		grades, err = catalog.Grades(gctx)
		if err != nil {
			return fmt.Errorf("load grades: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		sections, err = catalog.Sections(gctx)
		if err != nil {
			return fmt.Errorf("load sections: %w", err)
		}
		return nil
	})
	err := g.Wait()
	return NewLookups(grades, sections), err
}

func NewLookups(grades []domain.Grade, sections []domain.Section) Lookups {
	l := Lookups{
		grades:   make(map[string]string, len(grades)),
		sections: make(map[string]string, len(sections)),
	}
	for _, g := range grades {
		l.grades[g.ID] = g.Label()
	}
	for _, s := range sections {
		l.sections[s.ID] = s.Name
	}
	return l
}

// GradeName returns the display name of a grade, or id when unknown.
func (l Lookups) GradeName(id string) string {
	if name, ok := l.grades[id]; ok && name != "" {
		return name
	}
	return id
}

// SectionName returns the display name of a section, or id when unknown.
func (l Lookups) SectionName(id string) string {
	if name, ok := l.sections[id]; ok && name != "" {
		return name
	}
	return id
}

func (l Lookups) GradeNames(ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = l.GradeName(id)
	}
	return out
}

func (l Lookups) SectionNames(ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = l.SectionName(id)
	}
	return out
}

// GradeSectionPicker is the dependent grade/section selection used by
// forms: choosing a grade reloads its sections and clears the section.
// It is not safe for concurrent use; owners serialize access.
type GradeSectionPicker struct {
	catalog Catalog

	Grades   []domain.Grade   `json:"grados"`
	Sections []domain.Section `json:"secciones"`
	Grade    string           `json:"grado"`
	Section  string           `json:"seccion"`
}

func NewGradeSectionPicker(catalog Catalog) *GradeSectionPicker {
	return &GradeSectionPicker{catalog: catalog}
}

// LoadGrades fills the grade options.
func (p *GradeSectionPicker) LoadGrades(ctx context.Context) error {
	grades, err := p.catalog.Grades(ctx)
	if err != nil {
		return fmt.Errorf("load grades: %w", err)
	}
	p.Grades = grades
	return nil
}

// SelectGrade switches the grade, resets the section and reloads the
// sections available for the new grade.
func (p *GradeSectionPicker) SelectGrade(ctx context.Context, gradeID string) error {
	p.Grade = gradeID
	p.Section = ""
	p.Sections = nil
	if gradeID == "" {
		return nil
	}
	sections, err := p.catalog.SectionsByGrade(ctx, gradeID)
	if err != nil {
		return fmt.Errorf("load sections for grade %s: %w", gradeID, err)
	}
	p.Sections = sections
	return nil
}

// SelectSection picks a section. When the section options are loaded the
// value must be one of them, by id or by name.
func (p *GradeSectionPicker) SelectSection(section string) error {
	if section == "" || len(p.Sections) == 0 {
		p.Section = section
		return nil
	}
	for _, s := range p.Sections {
		if s.ID == section || s.Name == section {
			p.Section = section
			return nil
		}
	}
	return fmt.Errorf("%w: section %q not available for grade %q", domain.ErrUnknownField, section, p.Grade)
}

// Reset clears the selection but keeps the loaded grade options.
func (p *GradeSectionPicker) Reset() {
	p.Grade = ""
	p.Section = ""
	p.Sections = nil
}
