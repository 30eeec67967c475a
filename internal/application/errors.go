package application

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/joaosantosg/reserva-salas-uni/internal/scheduler"
)

var (
	// ErrUnauthorized is returned when no valid principal accompanies the call.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrForbidden is returned when the principal is neither the owner nor an administrator.
	ErrForbidden = errors.New("application: forbidden")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when a unique attribute is taken.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrConflict is returned when a booking overlaps an active rule or reservation.
	ErrConflict = errors.New("application: conflict")
	// ErrBusinessRule is returned when a domain policy rejects the operation.
	ErrBusinessRule = errors.New("application: business rule violated")
)

// Validation codes shared by the services. Recurrence-specific codes come
// from the recurrence validator.
const (
	CodeRequired      = "Required"
	CodeInvalidFormat = "InvalidFormat"
	CodeInvalidValue  = "InvalidValue"
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
	FieldCodes  map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// Code returns the code recorded for field.
func (v *ValidationError) Code(field string) string {
	if v == nil {
		return ""
	}
	return v.FieldCodes[field]
}

// add records a field level validation error. The first issue per field wins.
func (v *ValidationError) add(field, code, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if v.FieldCodes == nil {
		v.FieldCodes = make(map[string]string)
	}
	if _, exists := v.FieldErrors[field]; exists {
		return
	}
	v.FieldErrors[field] = message
	v.FieldCodes[field] = code
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, other.FieldCodes[field], msg)
	}
}

// ConflictError lists the rules or reservations a candidate overlaps.
type ConflictError struct {
	Subject   string
	Conflicts []scheduler.Conflict
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	ids := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		ids = append(ids, fmt.Sprintf("%s %s", c.Type, c.WithID))
	}
	return fmt.Sprintf("%s: %s overlaps %s", ErrConflict, e.Subject, strings.Join(ids, ", "))
}

// Is matches ErrConflict.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// GenerationError reports an occurrence batch that could not be written.
// Batches committed before the failure stay persisted.
type GenerationError struct {
	RuleID    string
	Persisted int
	Err       error
}

// Error implements the error interface.
func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s: occurrence generation for rule %s stopped after %d occurrences: %v",
		ErrBusinessRule, e.RuleID, e.Persisted, e.Err)
}

// Unwrap returns the underlying failure.
func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Is matches ErrBusinessRule.
func (e *GenerationError) Is(target error) bool {
	return target == ErrBusinessRule
}

func businessError(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrBusinessRule}, args...)...)
}

func notFoundError(kind, id string) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
}
