package app

import (
	"context"
	"fmt"
	"log"

	"einstein-dashboard/internal/api"
	"einstein-dashboard/internal/validate"
)

// DirectoryBackend creates users and sections.
type DirectoryBackend interface {
	CreateAdmin(ctx context.Context, req api.NewAdmin) (api.Ack, error)
	CreateStudent(ctx context.Context, req api.NewStudent) (api.Ack, error)
	CreateTeacher(ctx context.Context, req api.NewTeacher) (api.Ack, error)
	CreateSection(ctx context.Context, req api.SectionPayload) (api.Ack, error)
}

type AdminDraft struct {
	UserID   string `json:"usuario_id" validate:"required"`
	Name     string `json:"nombre" validate:"required,max=60"`
	Surname  string `json:"apellido" validate:"required,max=80"`
	Email    string `json:"correo" validate:"required,email"`
	Password string `json:"contraseña" validate:"required,min=6"`
}

type StudentDraft struct {
	Name     string `json:"nombre" validate:"required,max=60"`
	Surname  string `json:"apellido" validate:"required,max=80"`
	Email    string `json:"correo" validate:"required,email"`
	Password string `json:"contraseña" validate:"required,min=6"`
	Grade    string `json:"grado" validate:"required"`
	Section  string `json:"seccion" validate:"required"`
}

type TeacherDraft struct {
	Name     string   `json:"nombre" validate:"required,max=60"`
	Surname  string   `json:"apellido" validate:"required,max=80"`
	Email    string   `json:"correo" validate:"required,email"`
	Password string   `json:"contraseña" validate:"required,min=6"`
	Grades   []string `json:"grado" validate:"min=1,dive,required"`
	Sections []string `json:"seccion" validate:"min=1,dive,required"`
}

type SectionDraft struct {
	Name    string `json:"nombre"`
	GradeID string `json:"grado_id"`
}

// Created reports a successful create call.
type Created struct {
	ID      string `json:"id,omitempty"`
	Message string `json:"message"`
}

// Directory validates create forms before they reach the backend.
type Directory struct {
	backend  DirectoryBackend
	validate *validate.Validator
}

func NewDirectory(backend DirectoryBackend, v *validate.Validator) *Directory {
	return &Directory{backend: backend, validate: v}
}

const userCreated = "Usuario creado exitosamente"

func (d *Directory) CreateAdmin(ctx context.Context, draft AdminDraft) (Created, error) {
	if err := d.validate.Struct(draft); err != nil {
		return Created{}, err
	}
	ack, err := d.backend.CreateAdmin(ctx, api.NewAdmin(draft))
	return created(ack, err, "create admin", userCreated)
}

func (d *Directory) CreateStudent(ctx context.Context, draft StudentDraft) (Created, error) {
	if err := d.validate.Struct(draft); err != nil {
		return Created{}, err
	}
	ack, err := d.backend.CreateStudent(ctx, api.NewStudent(draft))
	return created(ack, err, "create student", userCreated)
}

func (d *Directory) CreateTeacher(ctx context.Context, draft TeacherDraft) (Created, error) {
	if err := d.validate.Struct(draft); err != nil {
		return Created{}, err
	}
	ack, err := d.backend.CreateTeacher(ctx, api.NewTeacher(draft))
	return created(ack, err, "create teacher", userCreated)
}

// CreateSection rejects anything but a single letter and upper-cases it
// before submission ("b" is sent as "B").
func (d *Directory) CreateSection(ctx context.Context, draft SectionDraft) (Created, error) {
	payload, err := sectionPayload(draft.Name, draft.GradeID)
	if err != nil {
		return Created{}, err
	}
	ack, err := d.backend.CreateSection(ctx, payload)
	return created(ack, err, "create section", fmt.Sprintf("Sección %q creada correctamente.", payload.Name))
}

func created(ack api.Ack, err error, op, fallback string) (Created, error) {
	if err != nil {
		log.Printf("%s failed: %v", op, err)
		return Created{}, err
	}
	msg := ack.Message
	if msg == "" {
		msg = fallback
	}
	return Created{ID: ack.ID, Message: msg}, nil
}

// CreateFailedMessage is the text shown when a create call fails.
func CreateFailedMessage(err error, entity string) string {
	return userMessage(err, "No se pudo crear "+entity+".")
}
