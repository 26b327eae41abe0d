package http

import (
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"einstein-dashboard/internal/api"
	"einstein-dashboard/internal/app"
	"einstein-dashboard/internal/infra/memory"
	"einstein-dashboard/internal/validate"

	"github.com/golang-jwt/jwt/v5"
)

// fakeSchool is an in-process stand-in for the school REST API.
type fakeSchool struct {
	t      *testing.T
	mu     sync.Mutex
	auth   []string
	bodies map[string][]map[string]any
}

func (f *fakeSchool) record(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auth = append(f.auth, r.Method+" "+r.URL.Path+" "+r.Header.Get("Authorization"))
	if r.Body == nil {
		return
	}
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
		f.bodies[r.Method+" "+r.URL.Path] = append(f.bodies[r.Method+" "+r.URL.Path], body)
	}
}

func (f *fakeSchool) body(key string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.bodies[key]) == 0 {
		return nil
	}
	return f.bodies[key][0]
}

func (f *fakeSchool) authFor(prefix string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.auth {
		if strings.HasPrefix(a, prefix) {
			return a
		}
	}
	return ""
}

func studentToken(t *testing.T) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":      "al-1",
		"grado":   "5",
		"seccion": "A",
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("school-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func newFakeSchool(t *testing.T) (*fakeSchool, *httptest.Server) {
	t.Helper()
	f := &fakeSchool{t: t, bodies: make(map[string][]map[string]any)}
	writeJSON := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
	due := time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /usuarios/login", func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in["contraseña"] != "secreto" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": "Credenciales inválidas"})
			return
		}
		switch {
		case strings.HasPrefix(in["correo"], "admin"):
			writeJSON(w, http.StatusOK, map[string]string{"rol": "Admin", "token": "admin-token"})
		case strings.HasPrefix(in["correo"], "alumno"):
			writeJSON(w, http.StatusOK, map[string]string{"rol": "Alumno", "token": studentToken(t)})
		default:
			writeJSON(w, http.StatusOK, map[string]string{"rol": "Docente", "token": "teacher-token"})
		}
	})
	mux.HandleFunc("GET /usuarios/admins", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		writeJSON(w, http.StatusOK, []map[string]any{
			{"_id": "a1", "usuario_id": 101, "nombre": "Ana", "apellido": "Torres", "correo": "ana@colegio.pe", "estado": "activo"},
			{"_id": "a2", "usuario_id": "102", "nombre": "Bruno", "apellido": "Vega", "correo": "bruno@colegio.pe", "estado": "activo"},
		})
	})
	mux.HandleFunc("PUT /usuarios/admins/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		writeJSON(w, http.StatusOK, map[string]string{"msg": "ok"})
	})
	mux.HandleFunc("POST /usuarios/crear/admin", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		writeJSON(w, http.StatusCreated, map[string]any{"_id": "a3"})
	})
	mux.HandleFunc("GET /grados", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		writeJSON(w, http.StatusOK, []map[string]any{{"_id": "g5", "nombre": "5to", "estado": true}})
	})
	mux.HandleFunc("GET /secciones", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]any{{"_id": "sA", "nombre": "A", "grado_id": "g5", "estado": true}})
	})
	mux.HandleFunc("GET /secciones/grado/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]any{{"_id": "sA", "nombre": "A", "grado_id": r.PathValue("id"), "estado": true}})
	})
	mux.HandleFunc("POST /evaluaciones/crear", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"msg": "fallo interno"})
	})
	mux.HandleFunc("GET /evaluaciones/listado", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		writeJSON(w, http.StatusOK, []map[string]any{{
			"_id": "ev-1", "titulo": "Suma", "materia": "Matemática", "estado": "activa",
			"fecha_entrega": due, "fecha_creacion": "2025-05-01T10:00:00Z", "intentos_permitidos": 1,
			"preguntas": []map[string]any{
				{"pregunta_id": "q1", "tipo": "OM", "enunciado": "2+2", "opciones": []string{"3", "4"}, "respuesta_correcta": "4"},
			},
		}})
	})
	mux.HandleFunc("POST /intentos", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		writeJSON(w, http.StatusCreated, map[string]string{"intento_id": "int-9"})
	})
	mux.HandleFunc("PUT /intentos/{id}/finalizar", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		writeJSON(w, http.StatusOK, map[string]any{"calificacion": 18, "feedback_alumno": "Muy bien", "msg": "ok"})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

// newDashboard wires a dashboard server against the fake school.
func newDashboard(t *testing.T) (*fakeSchool, *httptest.Server) {
	t.Helper()
	school, schoolSrv := newFakeSchool(t)
	client := api.New(schoolSrv.URL, 5*time.Second)
	v := validate.New()
	catalog := memory.NewLookupCache(client, time.Minute)
	auth := app.NewAuthService(client, memory.NewSessionStore(), v, 8*time.Hour, 24*time.Hour)
	workspaces := app.NewWorkspaces(app.Controllers{Backend: client, Catalog: catalog, Validate: v, Location: time.UTC}, time.Hour)

	server := NewServer(auth, client, catalog, v, workspaces, Options{SearchDebounce: 10 * time.Millisecond})
	srv := httptest.NewServer(server.Routes())
	t.Cleanup(srv.Close)
	return school, srv
}

func newBrowser(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &http.Client{Jar: jar, Timeout: 5 * time.Second}
}

// call sends a JSON request and decodes the JSON answer into out.
func call(t *testing.T, c *http.Client, method, url string, body any, out any) (int, string) {
	t.Helper()
	var reader *strings.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		reader = strings.NewReader(string(data))
	} else {
		reader = strings.NewReader("")
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := c.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer res.Body.Close()
	var raw json.RawMessage
	_ = json.NewDecoder(res.Body).Decode(&raw)
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
	}
	return res.StatusCode, string(raw)
}

func login(t *testing.T, c *http.Client, base, email string) {
	t.Helper()
	status, body := call(t, c, http.MethodPost, base+"/api/login", map[string]any{"correo": email, "contraseña": "secreto"}, nil)
	if status != http.StatusOK {
		t.Fatalf("login %s: %d %s", email, status, body)
	}
}
