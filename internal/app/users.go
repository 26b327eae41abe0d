package app

import (
	"context"
	"fmt"
	"strings"

	"einstein-dashboard/internal/api"
	"einstein-dashboard/internal/domain"
	"einstein-dashboard/internal/listing"
	"einstein-dashboard/internal/validate"
)

type AdminBackend interface {
	ListAdmins(ctx context.Context) ([]domain.Admin, error)
	UpdateAdmin(ctx context.Context, id string, req api.AdminUpdate) error
	DeleteAdmin(ctx context.Context, id string) error
}

type StudentBackend interface {
	ListStudents(ctx context.Context) ([]domain.Student, error)
	UpdateStudent(ctx context.Context, id string, req api.StudentUpdate) error
	DeleteStudent(ctx context.Context, id string) error
}

type TeacherBackend interface {
	ListTeachers(ctx context.Context) ([]domain.Teacher, error)
	UpdateTeacher(ctx context.Context, id string, req api.TeacherUpdate) error
	DeleteTeacher(ctx context.Context, id string) error
}

// Edit fields shared by every user kind.
const (
	fieldName     = "nombre"
	fieldSurname  = "apellido"
	fieldEmail    = "correo"
	fieldPassword = "contraseña"
	fieldGrade    = "grado"
	fieldSection  = "seccion"
	fieldStatus   = "estado"
)

// AdminEdit is the edit form of an admin row. A blank password keeps the
// current one.
type AdminEdit struct {
	Name     string `json:"nombre" validate:"required,max=60"`
	Surname  string `json:"apellido" validate:"required,max=80"`
	Email    string `json:"correo" validate:"required,email"`
	Password string `json:"contraseña" validate:"omitempty,min=6"`
}

type StudentEdit struct {
	Name     string `json:"nombre" validate:"required,max=60"`
	Surname  string `json:"apellido" validate:"required,max=80"`
	Email    string `json:"correo" validate:"required,email"`
	Password string `json:"contraseña" validate:"omitempty,min=6"`
	Grade    string `json:"grado" validate:"required"`
	Section  string `json:"seccion" validate:"required"`
	// SectionOptions are the sections of the selected grade.
	SectionOptions []domain.Section `json:"seccionesDisponibles" validate:"-"`
}

// TeacherEdit holds grades and sections as comma separated text.
type TeacherEdit struct {
	Name        string `json:"nombre" validate:"required,max=60"`
	Surname     string `json:"apellido" validate:"required,max=80"`
	Email       string `json:"correo" validate:"required,email"`
	Password    string `json:"contraseña" validate:"omitempty,min=6"`
	GradesCSV   string `json:"gradoCsv"`
	SectionsCSV string `json:"seccionCsv"`
}

func setPersonField(field, value string, name, surname, email, password *string) error {
	switch field {
	case fieldName:
		*name = value
	case fieldSurname:
		*surname = value
	case fieldEmail:
		*email = strings.TrimSpace(value)
	case fieldPassword:
		*password = value
	default:
		return fmt.Errorf("%w: %q", domain.ErrUnknownField, field)
	}
	return nil
}

func personSearch(p domain.Person) []string {
	return []string{p.UserID.String(), p.Name, p.Surname, p.FullName(), p.Email, p.Role, p.Status}
}

func personSorts[T any](person func(T) domain.Person) map[string]func(T) listing.SortValue {
	return map[string]func(T) listing.SortValue{
		"_id":        func(t T) listing.SortValue { return listing.Text(person(t).ID) },
		"usuario_id": func(t T) listing.SortValue { return listing.Text(person(t).UserID.String()) },
		"nombre":     func(t T) listing.SortValue { return listing.Text(person(t).Name) },
		"apellido":   func(t T) listing.SortValue { return listing.Text(person(t).Surname) },
		"correo":     func(t T) listing.SortValue { return listing.Text(person(t).Email) },
		"rol":        func(t T) listing.SortValue { return listing.Text(person(t).Role) },
		"estado":     func(t T) listing.SortValue { return listing.Text(person(t).Status) },
		"fecha_creacion": func(t T) listing.SortValue {
			ts, _ := domain.ParseTimestamp(person(t).CreatedAt)
			return listing.Time(ts)
		},
	}
}

func statusValues(p domain.Person) []string {
	return []string{strings.ToLower(p.Status)}
}

type adminSource struct {
	backend  AdminBackend
	validate *validate.Validator
}

// NewAdminList builds the admins list screen.
func NewAdminList(backend AdminBackend, v *validate.Validator) *ListController[domain.Admin, AdminEdit] {
	return NewListController[domain.Admin, AdminEdit](&adminSource{backend: backend, validate: v}, ListConfig[domain.Admin]{
		Entity:      "admins",
		DefaultSort: "apellido",
		Messages: Messages{
			Loaded:       "Se cargaron %d administradores correctamente.",
			LoadFailed:   "No se pudieron cargar los administradores.",
			Updated:      "Administrador actualizado correctamente.",
			UpdateFailed: "No se pudo actualizar el administrador.",
			Deleted:      "Administrador eliminado correctamente.",
			DeleteFailed: "No se pudo eliminar el administrador.",
			MissingID:    "Falta usuario_id.",
		},
		Schema: func(Lookups) listing.Schema[domain.Admin] {
			person := func(a domain.Admin) domain.Person { return a.Person }
			return listing.Schema[domain.Admin]{
				Search: func(a domain.Admin) []string { return personSearch(a.Person) },
				Filters: map[string]func(domain.Admin) []string{
					fieldStatus: func(a domain.Admin) []string { return statusValues(a.Person) },
				},
				Sorts: personSorts(person),
			}
		},
	})
}

func (s *adminSource) List(ctx context.Context) ([]domain.Admin, error) {
	return s.backend.ListAdmins(ctx)
}

func (s *adminSource) RowID(a domain.Admin) string    { return a.ID }
func (s *adminSource) TargetID(a domain.Admin) string { return a.UserID.String() }

func (s *adminSource) EditModel(_ context.Context, a domain.Admin) (AdminEdit, error) {
	return AdminEdit{Name: a.Name, Surname: a.Surname, Email: a.Email}, nil
}

func (s *adminSource) SetField(_ context.Context, e *AdminEdit, field, value string) error {
	return setPersonField(field, value, &e.Name, &e.Surname, &e.Email, &e.Password)
}

func (s *adminSource) Update(ctx context.Context, id string, e AdminEdit) error {
	if err := s.validate.Struct(e); err != nil {
		return err
	}
	return s.backend.UpdateAdmin(ctx, id, api.AdminUpdate{
		Name:     e.Name,
		Surname:  e.Surname,
		Email:    e.Email,
		Password: api.PasswordInput(e.Password),
	})
}

func (s *adminSource) Delete(ctx context.Context, id string) error {
	return s.backend.DeleteAdmin(ctx, id)
}

// StudentRow is a student joined with its grade and section names.
type StudentRow struct {
	domain.Student
	GradeName   string `json:"gradoNombre"`
	SectionName string `json:"seccionNombre"`
}

type studentSource struct {
	backend  StudentBackend
	catalog  Catalog
	validate *validate.Validator
}

// NewStudentList builds the students list screen. Grade and section ids
// are shown by name once the lookups resolve.
func NewStudentList(backend StudentBackend, catalog Catalog, v *validate.Validator) *ListController[domain.Student, StudentEdit] {
	return NewListController[domain.Student, StudentEdit](&studentSource{backend: backend, catalog: catalog, validate: v}, ListConfig[domain.Student]{
		Entity:      "students",
		DefaultSort: "apellido",
		Catalog:     catalog,
		Messages: Messages{
			Loaded:       "Se cargaron %d alumnos correctamente.",
			LoadFailed:   "No se pudieron cargar los alumnos.",
			Updated:      "Alumno actualizado correctamente.",
			UpdateFailed: "No se pudo actualizar el alumno.",
			Deleted:      "Alumno eliminado correctamente.",
			DeleteFailed: "No se pudo eliminar el alumno.",
			MissingID:    "Falta usuario_id.",
			LookupFailed: "Error al cargar grados y secciones.",
		},
		Schema: studentSchema,
		Present: func(l Lookups, s domain.Student) any {
			return StudentRow{Student: s, GradeName: l.GradeName(s.Grade), SectionName: l.SectionName(s.Section)}
		},
	})
}

func studentSchema(l Lookups) listing.Schema[domain.Student] {
	sorts := personSorts(func(s domain.Student) domain.Person { return s.Person })
	sorts[fieldGrade] = func(s domain.Student) listing.SortValue { return listing.Text(l.GradeName(s.Grade)) }
	sorts[fieldSection] = func(s domain.Student) listing.SortValue { return listing.Text(l.SectionName(s.Section)) }
	return listing.Schema[domain.Student]{
		Search: func(s domain.Student) []string {
			grade, section := l.GradeName(s.Grade), l.SectionName(s.Section)
			return append(personSearch(s.Person), "grado "+grade, "seccion "+section, grade, section)
		},
		Filters: map[string]func(domain.Student) []string{
			fieldGrade:   func(s domain.Student) []string { return []string{l.GradeName(s.Grade)} },
			fieldSection: func(s domain.Student) []string { return []string{l.SectionName(s.Section)} },
			fieldStatus:  func(s domain.Student) []string { return statusValues(s.Person) },
		},
		Sorts: sorts,
	}
}

func (s *studentSource) List(ctx context.Context) ([]domain.Student, error) {
	return s.backend.ListStudents(ctx)
}

func (s *studentSource) RowID(st domain.Student) string    { return st.ID }
func (s *studentSource) TargetID(st domain.Student) string { return st.UserID.String() }

// EditModel seeds the form and loads the sections of the student's grade.
func (s *studentSource) EditModel(ctx context.Context, st domain.Student) (StudentEdit, error) {
	e := StudentEdit{Name: st.Name, Surname: st.Surname, Email: st.Email, Grade: st.Grade, Section: st.Section}
	if st.Grade != "" {
		sections, err := s.catalog.SectionsByGrade(ctx, st.Grade)
		if err != nil {
			return e, fmt.Errorf("load sections for grade %s: %w", st.Grade, err)
		}
		e.SectionOptions = sections
	}
	return e, nil
}

func (s *studentSource) SetField(ctx context.Context, e *StudentEdit, field, value string) error {
	switch field {
	case fieldGrade:
		picker := NewGradeSectionPicker(s.catalog)
		err := picker.SelectGrade(ctx, value)
		e.Grade, e.Section, e.SectionOptions = picker.Grade, picker.Section, picker.Sections
		return err
	case fieldSection:
		picker := &GradeSectionPicker{catalog: s.catalog, Grade: e.Grade, Sections: e.SectionOptions}
		if err := picker.SelectSection(value); err != nil {
			return err
		}
		e.Section = picker.Section
		return nil
	}
	return setPersonField(field, value, &e.Name, &e.Surname, &e.Email, &e.Password)
}

func (s *studentSource) Update(ctx context.Context, id string, e StudentEdit) error {
	if err := s.validate.Struct(e); err != nil {
		return err
	}
	return s.backend.UpdateStudent(ctx, id, api.StudentUpdate{
		Name:     e.Name,
		Surname:  e.Surname,
		Email:    e.Email,
		Grade:    e.Grade,
		Section:  e.Section,
		Password: api.PasswordInput(e.Password),
	})
}

func (s *studentSource) Delete(ctx context.Context, id string) error {
	return s.backend.DeleteStudent(ctx, id)
}

// TeacherRow is a teacher joined with grade and section names.
type TeacherRow struct {
	domain.Teacher
	GradeNames   []string `json:"gradoNombres"`
	SectionNames []string `json:"seccionNombres"`
}

type teacherSource struct {
	backend  TeacherBackend
	validate *validate.Validator
}

func NewTeacherList(backend TeacherBackend, catalog Catalog, v *validate.Validator) *ListController[domain.Teacher, TeacherEdit] {
	return NewListController[domain.Teacher, TeacherEdit](&teacherSource{backend: backend, validate: v}, ListConfig[domain.Teacher]{
		Entity:      "teachers",
		DefaultSort: "apellido",
		Catalog:     catalog,
		Messages: Messages{
			Loaded:       "Se cargaron %d docentes correctamente.",
			LoadFailed:   "No se pudieron cargar los docentes.",
			Updated:      "Docente actualizado correctamente.",
			UpdateFailed: "No se pudo actualizar el docente.",
			Deleted:      "Docente eliminado correctamente.",
			DeleteFailed: "No se pudo eliminar el docente.",
			MissingID:    "Falta usuario_id.",
			LookupFailed: "Error al cargar grados y secciones.",
		},
		Schema: teacherSchema,
		Present: func(l Lookups, t domain.Teacher) any {
			return TeacherRow{Teacher: t, GradeNames: l.GradeNames(t.Grades), SectionNames: l.SectionNames(t.Sections)}
		},
	})
}

func teacherSchema(l Lookups) listing.Schema[domain.Teacher] {
	sorts := personSorts(func(t domain.Teacher) domain.Person { return t.Person })
	// grade and section sort on the first assigned value
	sorts[fieldGrade] = func(t domain.Teacher) listing.SortValue { return listing.Text(first(l.GradeNames(t.Grades))) }
	sorts[fieldSection] = func(t domain.Teacher) listing.SortValue { return listing.Text(first(l.SectionNames(t.Sections))) }
	return listing.Schema[domain.Teacher]{
		Search: func(t domain.Teacher) []string {
			fields := personSearch(t.Person)
			for _, g := range l.GradeNames(t.Grades) {
				fields = append(fields, "grado "+g, g)
			}
			for _, s := range l.SectionNames(t.Sections) {
				fields = append(fields, "seccion "+s, s)
			}
			return fields
		},
		Filters: map[string]func(domain.Teacher) []string{
			fieldGrade:   func(t domain.Teacher) []string { return l.GradeNames(t.Grades) },
			fieldSection: func(t domain.Teacher) []string { return l.SectionNames(t.Sections) },
			fieldStatus:  func(t domain.Teacher) []string { return statusValues(t.Person) },
		},
		Sorts: sorts,
	}
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func (s *teacherSource) List(ctx context.Context) ([]domain.Teacher, error) {
	return s.backend.ListTeachers(ctx)
}

func (s *teacherSource) RowID(t domain.Teacher) string    { return t.ID }
func (s *teacherSource) TargetID(t domain.Teacher) string { return t.UserID.String() }

func (s *teacherSource) EditModel(_ context.Context, t domain.Teacher) (TeacherEdit, error) {
	return TeacherEdit{
		Name:        t.Name,
		Surname:     t.Surname,
		Email:       t.Email,
		GradesCSV:   strings.Join(t.Grades, ","),
		SectionsCSV: strings.Join(t.Sections, ","),
	}, nil
}

func (s *teacherSource) SetField(_ context.Context, e *TeacherEdit, field, value string) error {
	switch field {
	case "gradoCsv", fieldGrade:
		e.GradesCSV = value
		return nil
	case "seccionCsv", fieldSection:
		e.SectionsCSV = value
		return nil
	}
	return setPersonField(field, value, &e.Name, &e.Surname, &e.Email, &e.Password)
}

func (s *teacherSource) Update(ctx context.Context, id string, e TeacherEdit) error {
	if err := s.validate.Struct(e); err != nil {
		return err
	}
	return s.backend.UpdateTeacher(ctx, id, api.TeacherUpdate{
		Name:     e.Name,
		Surname:  e.Surname,
		Email:    e.Email,
		Grades:   SplitCSV(e.GradesCSV),
		Sections: SplitCSV(e.SectionsCSV),
		Password: api.PasswordInput(e.Password),
	})
}

func (s *teacherSource) Delete(ctx context.Context, id string) error {
	return s.backend.DeleteTeacher(ctx, id)
}

// SplitCSV splits comma separated text into trimmed, non-empty values.
func SplitCSV(csv string) []string {
	out := make([]string, 0)
	for _, part := range strings.Split(csv, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
