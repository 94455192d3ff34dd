// Package validator provides input validation for document writes. It
// enforces ID and text constraints and returns per-field error details.
package validator

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/internal/ingestion"
)

const (
	maxIDLength = 255
	// DefaultMaxTextLength applies when the configured limit is not positive.
	DefaultMaxTextLength = 1048576
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s:%s", field, msg))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

// ValidateID checks a document ID taken from the request path.
func ValidateID(id string) error {
	if msg := idProblem(id); msg != "" {
		return &ValidationError{Fields: map[string]string{"id": msg}}
	}
	return nil
}

// ValidateUpsert checks the ID and body of a document write. maxTextLength
// is in bytes.
func ValidateUpsert(id string, req *ingestion.UpsertRequest, maxTextLength int) error {
	if maxTextLength <= 0 {
		maxTextLength = DefaultMaxTextLength
	}
	errs := make(map[string]string)
	if msg := idProblem(id); msg != "" {
		errs["id"] = msg
	}
	switch {
	case strings.TrimSpace(req.Text) == "":
		errs["text"] = "text is required and must not be blank"
	case len(req.Text) > maxTextLength:
		errs["text"] = fmt.Sprintf("text must be at most %d bytes", maxTextLength)
	case !utf8.ValidString(req.Text):
		errs["text"] = "text must be valid UTF-8"
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

func idProblem(id string) string {
	switch {
	case strings.TrimSpace(id) == "":
		return "id is required"
	case len(id) > maxIDLength:
		return fmt.Sprintf("id must be at most %d characters", maxIDLength)
	case strings.IndexFunc(id, unicode.IsControl) >= 0:
		return "id must not contain control characters"
	}
	return ""
}
