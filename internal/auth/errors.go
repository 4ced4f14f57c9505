package auth

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrNotFound           = errors.New("auth: not found")
	ErrDuplicateEmail     = errors.New("auth: duplicate email")
	ErrInvalidRole        = errors.New("auth: invalid role")
	ErrInvalidCredentials = errors.New("auth: invalid email or password")
	ErrValidation         = errors.New("auth: validation failed")
	ErrInternal           = errors.New("auth: internal error")
)

// ValidationError describes client-correctable input problems.
// Fields maps the offending field name to a human readable message.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return e.Message + " (" + strings.Join(parts, "; ") + ")"
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
