package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Role is the session role string returned by the login endpoint.
type Role string

const (
	RoleAdmin   Role = "Admin"
	RoleTeacher Role = "Docente"
	RoleStudent Role = "Alumno"
)

// ParseRole maps the spellings the backend uses onto the three known roles.
func ParseRole(raw string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "admin", "administrador":
		return RoleAdmin, true
	case "docente":
		return RoleTeacher, true
	case "alumno":
		return RoleStudent, true
	}
	return "", false
}

// Status values used by users.
const (
	StatusActive   = "activo"
	StatusInactive = "inactivo"
)

// FlexString decodes a JSON string or number (usuario_id arrives as either).
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string { return string(f) }

// StringList decodes either a single string or an array of strings.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if data[0] == '[' {
		var raw []FlexString
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		out := make([]string, 0, len(raw))
		for _, v := range raw {
			out = append(out, string(v))
		}
		*l = out
		return nil
	}
	var single FlexString
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	if single == "" {
		*l = nil
		return nil
	}
	*l = StringList{string(single)}
	return nil
}

// Person holds the identity fields shared by every user kind. The password
// hash the backend returns is never decoded.
type Person struct {
	ID        string     `json:"_id"`
	UserID    FlexString `json:"usuario_id"`
	Name      string     `json:"nombre"`
	Surname   string     `json:"apellido"`
	Email     string     `json:"correo"`
	Role      string     `json:"rol"`
	Status    string     `json:"estado"`
	CreatedAt string     `json:"fecha_creacion"`
}

// FullName is the "surname, name" convenience string used for search.
func (p Person) FullName() string {
	return p.Surname + ", " + p.Name
}

type Admin struct {
	Person
}

// Student belongs to exactly one grade and section.
type Student struct {
	Person
	Grade   string `json:"grado"`
	Section string `json:"seccion"`
}

// Teacher teaches a set of grades and sections.
type Teacher struct {
	Person
	Grades   StringList `json:"grado"`
	Sections StringList `json:"seccion"`
}

type Grade struct {
	ID          string `json:"_id"`
	Name        string `json:"nombre"`
	Description string `json:"descripcion"`
	Active      bool   `json:"estado"`
}

// Label is the display name of a grade, falling back to its description.
func (g Grade) Label() string {
	if g.Name != "" {
		return g.Name
	}
	return g.Description
}

type Section struct {
	ID      string `json:"_id"`
	Name    string `json:"nombre"`
	GradeID string `json:"grado_id"`
	Active  bool   `json:"estado"`
}

// StatusLabel renders the boolean status the way user lists do.
func (s Section) StatusLabel() string {
	if s.Active {
		return StatusActive
	}
	return StatusInactive
}

// QuestionKind is the wire tag of a question type.
type QuestionKind string

const (
	MultipleChoice QuestionKind = "OM"
	TrueFalse      QuestionKind = "VF"
)

// TrueFalseOptions are the fixed options of every TrueFalse question.
var TrueFalseOptions = []string{"Verdadero", "Falso"}

type Question struct {
	ID      string       `json:"pregunta_id,omitempty"`
	Kind    QuestionKind `json:"tipo"`
	Prompt  string       `json:"enunciado"`
	Options []string     `json:"opciones"`
	Correct string       `json:"respuesta_correcta,omitempty"`
}

// Evaluation statuses.
const (
	EvaluationActive   = "activa"
	EvaluationInactive = "inactiva"
)

type Evaluation struct {
	ID              string     `json:"_id"`
	PublicID        string     `json:"uuid,omitempty"`
	Title           string     `json:"titulo"`
	Subject         string     `json:"materia"`
	Grade           FlexString `json:"grado"`
	Section         string     `json:"seccion"`
	TeacherID       string     `json:"docente_id"`
	DueAt           *string    `json:"fecha_entrega"`
	CreatedAt       string     `json:"fecha_creacion,omitempty"`
	AllowedAttempts int        `json:"intentos_permitidos"`
	Status          string     `json:"estado,omitempty"`
	Questions       []Question `json:"preguntas"`
}

// Answer is one submitted choice.
type Answer struct {
	QuestionID string `json:"pregunta_id"`
	Selected   string `json:"opcion_marcada"`
}

// UnmarshalJSON accepts numeric marked options ("4" may arrive as 4).
func (a *Answer) UnmarshalJSON(data []byte) error {
	var raw struct {
		QuestionID FlexString `json:"pregunta_id"`
		Selected   FlexString `json:"opcion_marcada"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	a.QuestionID = string(raw.QuestionID)
	a.Selected = string(raw.Selected)
	return nil
}

type Attempt struct {
	ID           string      `json:"_id"`
	EvaluationID string      `json:"evaluacion_id"`
	StudentID    FlexString  `json:"alumno_id"`
	Answers      []Answer    `json:"respuestas,omitempty"`
	Score        *float64    `json:"calificacion,omitempty"`
	Feedback     string      `json:"feedback_alumno,omitempty"`
	Evaluation   *Evaluation `json:"evaluacion,omitempty"`
}

// ScoreMax is the top of the grading scale.
const ScoreMax = 20.0

// FormatScore prints a score without trailing zeros.
func FormatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
