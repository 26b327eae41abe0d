package http

import (
	"net/http"
	"slices"
	"time"

	"einstein-dashboard/internal/app"
	"einstein-dashboard/internal/domain"
	"einstein-dashboard/internal/listing"
	"einstein-dashboard/internal/validate"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
)

// Backend is the part of the school API the dashboard drives.
type Backend interface {
	app.Backend
	app.AdminBackend
	app.StudentBackend
	app.TeacherBackend
	app.SectionBackend
	app.DirectoryBackend
	app.EvaluationBackend
}

type Options struct {
	CookieName     string
	CookieSecure   bool
	AllowedOrigins []string
	SearchDebounce time.Duration
	RequestTimeout time.Duration
}

// Server serves the dashboard view models over HTTP and WebSocket.
type Server struct {
	auth       *app.AuthService
	backend    Backend
	catalog    app.Catalog
	validate   *validate.Validator
	workspaces *app.Workspaces
	directory  *app.Directory

	cookieName   string
	cookieSecure bool
	origins      []string
	debounce     time.Duration
	timeout      time.Duration
	upgrader     websocket.Upgrader
}

func NewServer(auth *app.AuthService, backend Backend, catalog app.Catalog, v *validate.Validator, workspaces *app.Workspaces, opts Options) *Server {
	s := &Server{
		auth:         auth,
		backend:      backend,
		catalog:      catalog,
		validate:     v,
		workspaces:   workspaces,
		directory:    app.NewDirectory(backend, v),
		cookieName:   opts.CookieName,
		cookieSecure: opts.CookieSecure,
		origins:      opts.AllowedOrigins,
		debounce:     opts.SearchDebounce,
		timeout:      opts.RequestTimeout,
	}
	if s.cookieName == "" {
		s.cookieName = "dashboard_session"
	}
	if s.debounce <= 0 {
		s.debounce = listing.SearchDebounce
	}
	if s.timeout <= 0 {
		s.timeout = 30 * time.Second
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// checkOrigin accepts same-host requests and the configured origins.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.origins) == 0 || slices.Contains(s.origins, "*") {
		return true
	}
	return slices.Contains(s.origins, origin) || origin == "http://"+r.Host || origin == "https://"+r.Host
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)

	origins := s.origins
	if len(origins) == 0 {
		origins = []string{"http://localhost:4200"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(ar chi.Router) {
		ar.Use(middleware.Timeout(s.timeout))
		ar.Post("/login", s.handleLogin)
		ar.Get("/login/remembered", s.handleRemembered)
		ar.Post("/logout", s.handleLogout)

		ar.Group(func(pr chi.Router) {
			pr.Use(s.requireSession)
			pr.Get("/me", s.handleMe)
			pr.Get("/grades", s.handleGrades)
			pr.Get("/sections", s.handleSections)

			pr.Group(func(adm chi.Router) {
				adm.Use(RequireRole(domain.RoleAdmin))
				adm.Post("/admins", s.handleCreateAdmin)
				adm.Post("/students", s.handleCreateStudent)
				adm.Post("/teachers", s.handleCreateTeacher)
				adm.Post("/sections", s.handleCreateSection)
			})

			pr.Group(func(tr chi.Router) {
				tr.Use(RequireRole(domain.RoleAdmin, domain.RoleTeacher))
				tr.Get("/evaluations/form", s.handleFormView)
				tr.Post("/evaluations/form", s.handleFormCommand)
				tr.Post("/evaluations/form/submit", s.handleFormSubmit)
			})

			pr.Group(func(st chi.Router) {
				st.Use(RequireRole(domain.RoleStudent))
				st.Get("/board", s.handleBoardView)
				st.Post("/board", s.handleBoardCommand)
				st.Post("/board/start", s.handleBoardStart)
				st.Get("/attempt", s.handleAttemptView)
				st.Post("/attempt", s.handleAttemptOpen)
				st.Post("/attempt/answers", s.handleAttemptMark)
				st.Post("/attempt/submit", s.handleAttemptSubmit)
				st.Get("/attempt/report", s.handleAttemptReport)
			})
		})
	})

	r.Group(func(wr chi.Router) {
		wr.Use(s.requireSession)
		wr.Get("/ws/views/{entity}", s.ServeListView)
	})
	return r
}
