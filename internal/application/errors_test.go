package application

import (
	"errors"
	"fmt"
	"testing"

	"github.com/joaosantosg/reserva-salas-uni/internal/scheduler"
)

func TestValidationError_Error(t *testing.T) {
	t.Parallel()

	var err *ValidationError
	if err.Error() != "" {
		t.Fatalf("expected empty string for nil error, got %q", err.Error())
	}

	empty := &ValidationError{}
	if got := empty.Error(); got != "validation failed" {
		t.Fatalf("expected generic message for empty error, got %q", got)
	}

	withFields := &ValidationError{}
	withFields.add("start_time", CodeInvalidFormat, "bad")
	withFields.add("end_date", CodeRequired, "missing")
	if got := withFields.Error(); got != "validation failed: end_date, start_time" {
		t.Fatalf("expected message naming the fields, got %q", got)
	}
}

func TestValidationError_HasErrors(t *testing.T) {
	t.Parallel()

	if err := (&ValidationError{}).HasErrors(); err {
		t.Fatalf("expected HasErrors to report false for empty error")
	}

	if err := (&ValidationError{FieldErrors: map[string]string{"field": "bad"}}).HasErrors(); !err {
		t.Fatalf("expected HasErrors to report true when fields are present")
	}
}

func TestValidationError_AddAndMerge(t *testing.T) {
	t.Parallel()

	base := &ValidationError{}
	base.add("first", CodeRequired, "value")
	if got := base.FieldErrors["first"]; got != "value" {
		t.Fatalf("expected add to populate map, got %q", got)
	}
	if got := base.Code("first"); got != CodeRequired {
		t.Fatalf("expected add to record code, got %q", got)
	}

	base.add("first", CodeInvalidValue, "ignored")
	if got := base.FieldErrors["first"]; got != "value" {
		t.Fatalf("expected first issue per field to win, got %q", got)
	}

	other := &ValidationError{}
	other.add("second", CodeInvalidFormat, "another")
	base.merge(other)
	if got := base.FieldErrors["second"]; got != "another" {
		t.Fatalf("expected merge to copy field, got %q", got)
	}
	if got := base.Code("second"); got != CodeInvalidFormat {
		t.Fatalf("expected merge to copy code, got %q", got)
	}

	base.merge(nil)
	if len(base.FieldErrors) != 2 {
		t.Fatalf("expected merge with nil to leave fields unchanged")
	}
}

func TestConflictError(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("create: %w", &ConflictError{
		Subject:   "rule WEEKLY-B101-08H",
		Conflicts: []scheduler.Conflict{{WithID: "rule-1", Type: scheduler.ConflictTypeSeries}},
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ConflictError to match ErrConflict")
	}
	want := "application: conflict: rule WEEKLY-B101-08H overlaps series rule-1"
	var cErr *ConflictError
	if !errors.As(err, &cErr) || cErr.Error() != want {
		t.Fatalf("unexpected message %q", cErr.Error())
	}
}

func TestGenerationError(t *testing.T) {
	t.Parallel()

	cause := errors.New("disk full")
	err := &GenerationError{RuleID: "rule-1", Persisted: 500, Err: cause}
	if !errors.Is(err, ErrBusinessRule) {
		t.Fatalf("expected GenerationError to match ErrBusinessRule")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected GenerationError to unwrap to its cause")
	}
	if ErrorKind(err) != "business_rule" {
		t.Fatalf("expected business_rule kind, got %q", ErrorKind(err))
	}
}
