package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"einstein-dashboard/internal/domain"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", 2*time.Second)
}

func TestClientSendsTokenAndDecodesLooseIDs(t *testing.T) {
	var auth, path string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		auth, path = r.Header.Get("Authorization"), r.URL.Path
		w.Write([]byte(`[{"_id":"a1","usuario_id":101,"nombre":"Ana"},{"_id":"a2","usuario_id":"102","nombre":"Bruno"}]`))
	})

	admins, err := c.ListAdmins(WithToken(context.Background(), "tok"))
	if err != nil {
		t.Fatalf("list admins: %v", err)
	}
	if auth != "Bearer tok" || path != "/usuarios/admins" {
		t.Fatalf("unexpected request auth=%q path=%q", auth, path)
	}
	if len(admins) != 2 || admins[0].UserID != "101" || admins[1].UserID != "102" {
		t.Fatalf("unexpected admins %+v", admins)
	}
}

func TestStatusErrorMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, domain.ErrUnauthorized},
		{http.StatusForbidden, domain.ErrUnauthorized},
		{http.StatusNotFound, domain.ErrNotFound},
	}
	for _, tc := range cases {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			w.Write([]byte(`{"msg":"nope"}`))
		})
		_, err := c.ListGrades(context.Background())
		if !errors.Is(err, tc.want) {
			t.Fatalf("status %d: expected %v, got %v", tc.status, tc.want, err)
		}
		var se *StatusError
		if !errors.As(err, &se) || se.Message != "nope" || se.Op != "list grades" {
			t.Fatalf("status %d: unexpected error %#v", tc.status, err)
		}
	}

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	err := c.DeleteSection(context.Background(), "s1")
	if !IsStatus(err, http.StatusInternalServerError) || errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected plain 500, got %v", err)
	}
}

func TestUpdateOmitsKeptPassword(t *testing.T) {
	var bodies []map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		bodies = append(bodies, body)
		w.Write([]byte(`{"msg":"ok"}`))
	})
	ctx := context.Background()

	if err := c.UpdateAdmin(ctx, "101", AdminUpdate{Name: "Ana", Password: PasswordInput("  ")}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := c.UpdateAdmin(ctx, "101", AdminUpdate{Name: "Ana", Password: PasswordInput("nueva123")}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, ok := bodies[0]["contraseña"]; ok {
		t.Fatalf("kept password must be omitted, got %v", bodies[0])
	}
	if bodies[1]["contraseña"] != "nueva123" {
		t.Fatalf("expected changed password, got %v", bodies[1])
	}
}

func TestAckAndAttemptIDSpellings(t *testing.T) {
	var ack Ack
	if err := json.Unmarshal([]byte(`{"_id":"x1","mensaje":"Creado"}`), &ack); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if ack.ID != "x1" || ack.Message != "Creado" {
		t.Fatalf("unexpected ack %+v", ack)
	}
	if err := json.Unmarshal([]byte(`"ok"`), &ack); err != nil {
		t.Fatalf("bare string ack should decode: %v", err)
	}

	for _, body := range []string{`{"intento_id":"i1"}`, `{"id":"i1"}`, `{"_id":"i1"}`} {
		var res StartAttemptResponse
		if err := json.Unmarshal([]byte(body), &res); err != nil {
			t.Fatalf("decode %s: %v", body, err)
		}
		if res.AttemptID != "i1" {
			t.Fatalf("decode %s: got %q", body, res.AttemptID)
		}
	}
}

func TestListEvaluationsQuery(t *testing.T) {
	var query string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		w.Write([]byte(`[]`))
	})
	if _, err := c.ListEvaluations(context.Background(), "5", "A"); err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(query, "grado=5") || !strings.Contains(query, "seccion=A") {
		t.Fatalf("unexpected query %q", query)
	}
}

func TestReportFallbackBody(t *testing.T) {
	var got string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		got = r.Method + " " + r.URL.Path + " " + string(data)
		w.Write([]byte(`{"intento_id":"int-1","puntaje":18}`))
	})
	report, err := c.CreateReport(context.Background(), "int-1")
	if err != nil {
		t.Fatalf("create report: %v", err)
	}
	if got != `POST /reportes/ {"intento_id":"int-1"}` {
		t.Fatalf("unexpected request %q", got)
	}
	if !strings.Contains(string(report), `"puntaje":18`) {
		t.Fatalf("report should pass through untouched, got %s", report)
	}
}

func TestPing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("any status means reachable: %v", err)
	}

	dead := New("http://127.0.0.1:1", time.Second)
	if err := dead.Ping(context.Background()); err == nil {
		t.Fatalf("expected transport error")
	}
}
