package domain

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrSessionNotFound is returned when a dashboard session is unknown or expired.
	ErrSessionNotFound = errors.New("session not found")
	// ErrUnauthorized is returned when the backend rejects the bearer token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound is returned when the backend reports a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrMissingIdentifier indicates a row without the identifier needed for mutations.
	ErrMissingIdentifier = errors.New("missing identifier")
	// ErrRowNotFound indicates an action targeted a row not in the loaded collection.
	ErrRowNotFound = errors.New("row not found")
	// ErrBusy is returned when a save, delete or submit is already in flight.
	ErrBusy = errors.New("operation already in progress")
	// ErrLoading is returned when a mutation is attempted while the list is loading.
	ErrLoading = errors.New("list is loading")
	// ErrClosed is returned once a view has been torn down.
	ErrClosed = errors.New("view closed")
	// ErrNoEdit is returned when an edit operation runs without an open edit modal.
	ErrNoEdit = errors.New("no edit in progress")
	// ErrUnknownField indicates an unsupported filter, sort or edit field.
	ErrUnknownField = errors.New("unknown field")
	// ErrInvalidPageSize indicates a page size outside the allowed set.
	ErrInvalidPageSize = errors.New("invalid page size")
	// ErrInvalidSectionName indicates a section name that is not a single letter.
	ErrInvalidSectionName = errors.New("section name must be a single letter A-Z")
	// ErrInvalidQuestion indicates a question that breaks its option invariants.
	ErrInvalidQuestion = errors.New("invalid question")
	// ErrQuestionNotFound indicates an answer for a question the evaluation lacks.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrNoAnswers is returned when an attempt is submitted without any answer.
	ErrNoAnswers = errors.New("no answers marked")
	// ErrAttemptUnavailable is returned when the attempt flow was entered without identifiers.
	ErrAttemptUnavailable = errors.New("attempt unavailable")
	// ErrInvalidState is returned when an operation does not apply to the current state.
	ErrInvalidState = errors.New("invalid state")
)

// ValidationErrors maps a field path to a user-facing message. Validation
// failures are caught before any backend call.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+v[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records a message for field unless one is already present.
func (v ValidationErrors) Add(field, msg string) {
	if _, ok := v[field]; !ok {
		v[field] = msg
	}
}

// OrNil returns nil for an empty set so callers can return it as an error.
func (v ValidationErrors) OrNil() error {
	if len(v) == 0 {
		return nil
	}
	return v
}
