package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"einstein-dashboard/internal/domain"
)

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// respondError maps domain errors onto status codes. msg is the text shown
// to the user; the error itself never reaches the body.
func respondError(w http.ResponseWriter, err error, msg string) {
	status := errorStatus(err)
	body := errorBody{Error: msg}
	var verrs domain.ValidationErrors
	if errors.As(err, &verrs) {
		body.Fields = verrs
	}
	if body.Error == "" {
		body.Error = http.StatusText(status)
	}
	respondJSON(w, status, body)
}

func errorStatus(err error) int {
	var verrs domain.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrRowNotFound), errors.Is(err, domain.ErrQuestionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrBusy), errors.Is(err, domain.ErrLoading), errors.Is(err, domain.ErrInvalidState), errors.Is(err, domain.ErrClosed):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnknownField),
		errors.Is(err, domain.ErrInvalidPageSize),
		errors.Is(err, domain.ErrInvalidSectionName),
		errors.Is(err, domain.ErrInvalidQuestion),
		errors.Is(err, domain.ErrNoAnswers),
		errors.Is(err, domain.ErrAttemptUnavailable),
		errors.Is(err, domain.ErrMissingIdentifier),
		errors.Is(err, domain.ErrNoEdit):
		return http.StatusBadRequest
	}
	return http.StatusBadGateway
}

// decodeJSON reads a request body into v; an empty body leaves v unchanged.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("%w: invalid json body: %v", domain.ErrUnknownField, err)
}
