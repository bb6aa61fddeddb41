package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidNesting  = errors.New("invalid nesting")
	ErrCyclicMove      = errors.New("cyclic move")
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrValidation      = errors.New("validation error")
	ErrUnknownVariant  = errors.New("unknown variant")
	ErrConflict        = errors.New("conflict")
	ErrAgentFailure    = errors.New("agent failure")
	ErrDragActive      = errors.New("drag session already active")
	ErrInvalidStatus   = errors.New("invalid comment status")
)

// FieldError names one offending props field.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError lists every field of a rejected props patch.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = fmt.Sprintf("%s: %s", f.Field, f.Reason)
	}
	return "validation error: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Kind maps err to the name of its error kind, or "Internal" for anything
// that is not one of the editor's declared failures.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAgentFailure):
		return "AgentFailure"
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrInvalidNesting):
		return "InvalidNesting"
	case errors.Is(err, ErrCyclicMove):
		return "CyclicMove"
	case errors.Is(err, ErrIndexOutOfRange):
		return "IndexOutOfRange"
	case errors.Is(err, ErrValidation):
		return "ValidationError"
	case errors.Is(err, ErrUnknownVariant):
		return "UnknownVariant"
	case errors.Is(err, ErrConflict):
		return "Conflict"
	case errors.Is(err, ErrDragActive):
		return "DragActive"
	case errors.Is(err, ErrInvalidStatus):
		return "InvalidStatus"
	default:
		return "Internal"
	}
}
