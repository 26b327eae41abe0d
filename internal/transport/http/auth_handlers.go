package http

import (
	"log"
	"net/http"

	"einstein-dashboard/internal/app"
)

type loginResponse struct {
	Message string      `json:"message"`
	Session sessionInfo `json:"session"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in app.LoginInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, err, "Solicitud inválida.")
		return
	}
	in.DeviceID = s.deviceID(w, r)

	sess, err := s.auth.Login(r.Context(), in)
	if err != nil {
		log.Printf("login for %s failed: %v", in.Email, err)
		respondError(w, err, app.LoginMessage(err))
		return
	}
	s.workspaces.GetOrCreate(sess)
	s.setSessionCookie(w, sess)
	respondJSON(w, http.StatusOK, loginResponse{Message: app.LoginMessage(nil), Session: infoOf(sess)})
}

// handleRemembered prefills the sign-in form for this browser.
func (s *Server) handleRemembered(w http.ResponseWriter, r *http.Request) {
	email := s.auth.RememberedEmail(r.Context(), s.deviceID(w, r))
	respondJSON(w, http.StatusOK, map[string]string{"correo": email})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(s.cookieName); err == nil && c.Value != "" {
		if err := s.auth.Logout(r.Context(), c.Value); err != nil {
			log.Printf("logout %s: %v", c.Value, err)
		}
		s.workspaces.Drop(c.Value)
	}
	s.clearSessionCookie(w)
	respondJSON(w, http.StatusOK, map[string]string{"message": "Sesión cerrada."})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFrom(r.Context())
	respondJSON(w, http.StatusOK, infoOf(sess))
}
