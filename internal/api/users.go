package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"einstein-dashboard/internal/domain"
)

// Password is the password part of an update: either keep the current one
// or change it. A kept password is omitted from the request body.
type Password struct {
	value string
	set   bool
}

func KeepPassword() Password { return Password{} }

func ChangePassword(v string) Password { return Password{value: v, set: true} }

// PasswordInput maps a form field to an update: blank means keep.
func PasswordInput(raw string) Password {
	if strings.TrimSpace(raw) == "" {
		return KeepPassword()
	}
	return ChangePassword(raw)
}

// IsZero makes omitzero drop kept passwords.
func (p Password) IsZero() bool { return !p.set }

// Value returns the new password and whether it changes.
func (p Password) Value() (string, bool) { return p.value, p.set }

func (p Password) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.value)
}

type LoginRequest struct {
	Email    string `json:"correo"`
	Password string `json:"contraseña"`
}

type LoginResponse struct {
	Role  string `json:"rol"`
	Token string `json:"token"`
}

type NewAdmin struct {
	UserID   string `json:"usuario_id"`
	Name     string `json:"nombre"`
	Surname  string `json:"apellido"`
	Email    string `json:"correo"`
	Password string `json:"contraseña"`
}

type NewStudent struct {
	Name     string `json:"nombre"`
	Surname  string `json:"apellido"`
	Email    string `json:"correo"`
	Password string `json:"contraseña"`
	Grade    string `json:"grado"`
	Section  string `json:"seccion"`
}

type NewTeacher struct {
	Name     string   `json:"nombre"`
	Surname  string   `json:"apellido"`
	Email    string   `json:"correo"`
	Password string   `json:"contraseña"`
	Grades   []string `json:"grado"`
	Sections []string `json:"seccion"`
}

type AdminUpdate struct {
	Name     string   `json:"nombre,omitempty"`
	Surname  string   `json:"apellido,omitempty"`
	Email    string   `json:"correo,omitempty"`
	Password Password `json:"contraseña,omitzero"`
}

type StudentUpdate struct {
	Name     string   `json:"nombre,omitempty"`
	Surname  string   `json:"apellido,omitempty"`
	Email    string   `json:"correo,omitempty"`
	Grade    string   `json:"grado,omitempty"`
	Section  string   `json:"seccion,omitempty"`
	Password Password `json:"contraseña,omitzero"`
}

type TeacherUpdate struct {
	Name     string   `json:"nombre,omitempty"`
	Surname  string   `json:"apellido,omitempty"`
	Email    string   `json:"correo,omitempty"`
	Grades   []string `json:"grado"`
	Sections []string `json:"seccion"`
	Password Password `json:"contraseña,omitzero"`
}

func (c *Client) Login(ctx context.Context, req LoginRequest) (LoginResponse, error) {
	var out LoginResponse
	err := c.do(ctx, "login", http.MethodPost, "/usuarios/login", nil, req, &out)
	return out, err
}

func (c *Client) ListAdmins(ctx context.Context) ([]domain.Admin, error) {
	var out []domain.Admin
	err := c.do(ctx, "list admins", http.MethodGet, "/usuarios/admins", nil, nil, &out)
	return out, err
}

func (c *Client) GetAdmin(ctx context.Context, id string) (domain.Admin, error) {
	var out domain.Admin
	err := c.do(ctx, "get admin", http.MethodGet, "/usuarios/admins/"+escape(id), nil, nil, &out)
	return out, err
}

func (c *Client) CreateAdmin(ctx context.Context, req NewAdmin) (Ack, error) {
	var out Ack
	err := c.do(ctx, "create admin", http.MethodPost, "/usuarios/crear/admin", nil, req, &out)
	return out, err
}

func (c *Client) UpdateAdmin(ctx context.Context, id string, req AdminUpdate) error {
	return c.do(ctx, "update admin", http.MethodPut, "/usuarios/admins/"+escape(id), nil, req, nil)
}

func (c *Client) DeleteAdmin(ctx context.Context, id string) error {
	return c.do(ctx, "delete admin", http.MethodDelete, "/usuarios/admins/"+escape(id), nil, nil, nil)
}

func (c *Client) ListStudents(ctx context.Context) ([]domain.Student, error) {
	var out []domain.Student
	err := c.do(ctx, "list students", http.MethodGet, "/usuarios/alumnos", nil, nil, &out)
	return out, err
}

func (c *Client) GetStudent(ctx context.Context, id string) (domain.Student, error) {
	var out domain.Student
	err := c.do(ctx, "get student", http.MethodGet, "/usuarios/alumnos/"+escape(id), nil, nil, &out)
	return out, err
}

func (c *Client) CreateStudent(ctx context.Context, req NewStudent) (Ack, error) {
	var out Ack
	err := c.do(ctx, "create student", http.MethodPost, "/usuarios/crear/alumno", nil, req, &out)
	return out, err
}

func (c *Client) UpdateStudent(ctx context.Context, id string, req StudentUpdate) error {
	return c.do(ctx, "update student", http.MethodPut, "/usuarios/alumnos/"+escape(id), nil, req, nil)
}

func (c *Client) DeleteStudent(ctx context.Context, id string) error {
	return c.do(ctx, "delete student", http.MethodDelete, "/usuarios/alumnos/"+escape(id), nil, nil, nil)
}

func (c *Client) ListTeachers(ctx context.Context) ([]domain.Teacher, error) {
	var out []domain.Teacher
	err := c.do(ctx, "list teachers", http.MethodGet, "/usuarios/docentes", nil, nil, &out)
	return out, err
}

func (c *Client) CreateTeacher(ctx context.Context, req NewTeacher) (Ack, error) {
	var out Ack
	err := c.do(ctx, "create teacher", http.MethodPost, "/usuarios/crear/docente", nil, req, &out)
	return out, err
}

func (c *Client) UpdateTeacher(ctx context.Context, id string, req TeacherUpdate) error {
	return c.do(ctx, "update teacher", http.MethodPut, "/usuarios/docentes/"+escape(id), nil, req, nil)
}

func (c *Client) DeleteTeacher(ctx context.Context, id string) error {
	return c.do(ctx, "delete teacher", http.MethodDelete, "/usuarios/docentes/"+escape(id), nil, nil, nil)
}
