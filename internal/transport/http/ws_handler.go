package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"

	"einstein-dashboard/internal/app"
	"einstein-dashboard/internal/domain"
	"einstein-dashboard/internal/listing"

	"github.com/go-chi/chi/v5"
)

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// commandPayload carries the arguments of every list command; each
// command reads the fields it needs.
type commandPayload struct {
	Text   string `json:"text"`
	Field  string `json:"field"`
	Value  string `json:"value"`
	Key    string `json:"key"`
	Page   int    `json:"page"`
	Delta  int    `json:"delta"`
	Size   int    `json:"size"`
	RowID  string `json:"rowId"`
	Action string `json:"action"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// newListScreen builds the list screen of an entity for a session, or
// reports why the session may not open it.
func (s *Server) newListScreen(r *http.Request, entity string, sess app.Session) (app.ListScreen, error) {
	admin := sess.Allows(domain.RoleAdmin)
	switch entity {
	case "admins":
		if admin {
			return app.NewAdminList(s.backend, s.validate), nil
		}
	case "students":
		if admin {
			return app.NewStudentList(s.backend, s.catalog, s.validate), nil
		}
	case "teachers":
		if admin {
			return app.NewTeacherList(s.backend, s.catalog, s.validate), nil
		}
	case "sections":
		if admin {
			return app.NewSectionList(s.backend, s.catalog), nil
		}
	case "evaluations":
		if sess.Allows(domain.RoleAdmin, domain.RoleTeacher) {
			q := r.URL.Query()
			return app.NewEvaluationList(s.backend, q.Get("grado"), q.Get("seccion"), nil), nil
		}
	default:
		return nil, fmt.Errorf("%w: entity %q", domain.ErrNotFound, entity)
	}
	return nil, domain.ErrUnauthorized
}

// ServeListView upgrades to a websocket that streams one list screen. The
// screen lives as long as the connection; commands mutate it and every
// change is pushed back as a "view" message.
func (s *Server) ServeListView(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFrom(r.Context())
	screen, err := s.newListScreen(r, chi.URLParam(r, "entity"), sess)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			respondJSON(w, http.StatusForbidden, errorBody{Error: "No tienes permiso para acceder a esta sección."})
			return
		}
		respondError(w, err, "Pantalla desconocida.")
		return
	}
	defer screen.Close()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	updates, unsubscribe := screen.Subscribe()
	defer unsubscribe()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})
	var workers sync.WaitGroup

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case view, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "view", Payload: view}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	reply := func(err error) {
		if err == nil {
			return
		}
		select {
		case send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: commandMessage(err)}}:
		case <-closeSignals:
		}
	}
	// background runs backend-bound commands off the read loop so the
	// screen keeps answering queries while they are in flight.
	background := func(fn func() error) {
		workers.Add(1)
		go func() {
			defer workers.Done()
			reply(fn())
		}()
	}

	search := listing.NewDebouncer(s.debounce)
	background(func() error {
		// load failures already surface in the view
		_ = screen.Load(ctx)
		return nil
	})

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		var p commandPayload
		if len(inbound.Payload) > 0 {
			if err := json.Unmarshal(inbound.Payload, &p); err != nil {
				reply(fmt.Errorf("%w: invalid payload", domain.ErrUnknownField))
				continue
			}
		}

		switch inbound.Type {
		case "search":
			text := p.Text
			search.Do(func() {
				if err := screen.SetText(text); err != nil && !errors.Is(err, domain.ErrClosed) {
					log.Printf("ws search: %v", err)
				}
			})
		case "filter":
			reply(screen.SetFilter(p.Field, p.Value))
		case "clear_filters":
			reply(screen.ClearFilters())
		case "sort":
			reply(screen.SortBy(p.Key))
		case "goto":
			reply(screen.Goto(p.Page))
		case "step":
			reply(screen.Step(p.Delta))
		case "page_size":
			reply(screen.SetPageSize(p.Size))
		case "menu":
			reply(screen.ToggleMenu(p.RowID))
		case "close_menu":
			screen.CloseMenu()
		case "open":
			rowID, kind := p.RowID, app.ModalKind(p.Action)
			background(func() error { return screen.OpenActions(ctx, rowID, kind) })
		case "edit_field":
			field, value := p.Field, p.Value
			background(func() error { return screen.SetEditField(ctx, field, value) })
		case "save":
			background(func() error { return screen.SaveEdit(ctx) })
		case "delete":
			background(func() error { return screen.ConfirmDelete(ctx) })
		case "close_modals":
			screen.CloseModals()
		case "refresh":
			background(func() error { return screen.Fetch(ctx) })
		default:
			reply(fmt.Errorf("%w: message type %q", domain.ErrUnknownField, inbound.Type))
		}
	}

	search.Stop()
	close(closeSignals)
	cancel()
	screen.Close()
	workers.Wait()
	<-updatesDone
	close(send)
	<-writerDone
}

// commandMessage is the text of an error frame. Failures the screen
// already reports through its notice get a short generic text.
func commandMessage(err error) string {
	var verrs domain.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		return "Revisa los campos marcados."
	case errors.Is(err, domain.ErrLoading):
		return "Espera a que termine la carga."
	case errors.Is(err, domain.ErrBusy):
		return "Hay una operación en curso."
	case errors.Is(err, domain.ErrRowNotFound):
		return "El registro ya no existe."
	case errors.Is(err, domain.ErrInvalidPageSize):
		return "Tamaño de página no permitido."
	case errors.Is(err, domain.ErrUnknownField):
		return "Comando no reconocido."
	case errors.Is(err, domain.ErrClosed):
		return "La pantalla se cerró."
	}
	return "La operación no se pudo completar."
}
