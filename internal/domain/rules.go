package domain

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// NormalizeSectionName trims and upper-cases a section name, rejecting
// anything but a single ASCII letter.
func NormalizeSectionName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if len(name) != 1 {
		return "", ErrInvalidSectionName
	}
	c := name[0]
	if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') {
		return "", ErrInvalidSectionName
	}
	return strings.ToUpper(name), nil
}

// NonEmptyOptions returns the trimmed, non-empty option values in order.
func NonEmptyOptions(options []string) []string {
	out := make([]string, 0, len(options))
	for _, o := range options {
		if strings.TrimSpace(o) != "" {
			out = append(out, o)
		}
	}
	return out
}

// Validate checks the option invariants of a question.
func (q Question) Validate() error {
	switch q.Kind {
	case MultipleChoice:
		opts := NonEmptyOptions(q.Options)
		if len(opts) != len(q.Options) {
			return fmt.Errorf("%w: empty option", ErrInvalidQuestion)
		}
		if len(opts) < 2 {
			return fmt.Errorf("%w: multiple choice needs at least 2 options", ErrInvalidQuestion)
		}
		seen := make(map[string]struct{}, len(opts))
		for _, o := range opts {
			if _, dup := seen[o]; dup {
				return fmt.Errorf("%w: duplicated option %q", ErrInvalidQuestion, o)
			}
			seen[o] = struct{}{}
		}
		if _, ok := seen[q.Correct]; !ok {
			return fmt.Errorf("%w: correct answer %q is not an option", ErrInvalidQuestion, q.Correct)
		}
	case TrueFalse:
		if len(q.Options) != 2 || q.Options[0] != TrueFalseOptions[0] || q.Options[1] != TrueFalseOptions[1] {
			return fmt.Errorf("%w: true/false options are fixed", ErrInvalidQuestion)
		}
		if q.Correct != TrueFalseOptions[0] && q.Correct != TrueFalseOptions[1] {
			return fmt.Errorf("%w: correct answer must be Verdadero or Falso", ErrInvalidQuestion)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidQuestion, q.Kind)
	}
	return nil
}

// Validate checks the structural invariants of an evaluation.
func (e Evaluation) Validate() error {
	if len(e.Questions) == 0 {
		return fmt.Errorf("%w: evaluation needs at least one question", ErrInvalidQuestion)
	}
	if e.AllowedAttempts < 1 {
		return fmt.Errorf("%w: allowed attempts must be at least 1", ErrInvalidQuestion)
	}
	for i, q := range e.Questions {
		if err := q.Validate(); err != nil {
			return fmt.Errorf("question %d: %w", i+1, err)
		}
	}
	return nil
}

// Overdue reports whether the due date is before now. Evaluations without a
// parseable due date never expire.
func (e Evaluation) Overdue(now time.Time) bool {
	if e.DueAt == nil {
		return false
	}
	due, ok := ParseTimestamp(*e.DueAt)
	return ok && due.Before(now)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	http.TimeFormat,
	time.RFC1123,
	time.RFC1123Z,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp accepts the timestamp spellings the backend emits (ISO 8601
// and the RFC 1123 "GMT" form).
func ParseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
