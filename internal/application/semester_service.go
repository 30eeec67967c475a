package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/joaosantosg/reserva-salas-uni/internal/persistence"
	"github.com/joaosantosg/reserva-salas-uni/internal/recurrence"
)

var semesterIdentifierPattern = regexp.MustCompile(`^\d{4}\.[1-9]$`)

// SemesterRepository captures the persistence operations needed for semesters.
type SemesterRepository interface {
	CreateSemester(ctx context.Context, semester Semester) (Semester, error)
	GetSemesterByIdentifier(ctx context.Context, identifier string) (Semester, error)
	ListSemesters(ctx context.Context) ([]Semester, error)
}

// SemesterInput captures caller provided semester fields.
type SemesterInput struct {
	Identifier string
	StartDate  time.Time
	EndDate    time.Time
	Active     bool
}

// SemesterService manages academic periods.
type SemesterService struct {
	semesters   SemesterRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewSemesterService constructs a semester service.
func NewSemesterService(semesters SemesterRepository, idGenerator func() string, now func() time.Time) *SemesterService {
	return NewSemesterServiceWithLogger(semesters, idGenerator, now, nil)
}

// NewSemesterServiceWithLogger constructs a semester service with a specified logger.
func NewSemesterServiceWithLogger(semesters SemesterRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *SemesterService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &SemesterService{semesters: semesters, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

// CreateSemester registers a semester for administrators.
func (s *SemesterService) CreateSemester(ctx context.Context, principal Principal, input SemesterInput) (semester Semester, err error) {
	if s == nil || s.semesters == nil {
		err = fmt.Errorf("SemesterService is not configured")
		return
	}

	logger := serviceLogger(ctx, s.logger, "SemesterService", "CreateSemester",
		"principal_id", principal.UserID,
		"identifier", input.Identifier,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create semester", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "semester created")
	}()

	if !principal.IsAdmin {
		err = ErrForbidden
		return
	}

	input.Identifier = strings.TrimSpace(input.Identifier)
	vErr := &ValidationError{}
	if !semesterIdentifierPattern.MatchString(input.Identifier) {
		vErr.add("identifier", CodeInvalidFormat, "identifier must look like 2025.1")
	}
	switch {
	case input.StartDate.IsZero() || input.EndDate.IsZero():
		vErr.add("start_date", string(recurrence.CodeMissingDates), "start_date and end_date are required")
	case input.EndDate.Before(input.StartDate):
		vErr.add("end_date", string(recurrence.CodeInvalidDateRange), "end_date must not be before start_date")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now()
	semester, err = s.semesters.CreateSemester(ctx, Semester{
		ID:         s.idGenerator(),
		Identifier: input.Identifier,
		StartDate:  recurrence.DateOf(input.StartDate),
		EndDate:    recurrence.DateOf(input.EndDate),
		Active:     input.Active,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	err = mapSemesterRepoError(err)
	return
}

// GetSemesterByIdentifier returns the semester named identifier. It also
// satisfies SemesterCatalog.
func (s *SemesterService) GetSemesterByIdentifier(ctx context.Context, identifier string) (Semester, error) {
	if s == nil || s.semesters == nil {
		return Semester{}, fmt.Errorf("SemesterService is not configured")
	}
	semester, err := s.semesters.GetSemesterByIdentifier(ctx, strings.TrimSpace(identifier))
	if err != nil {
		return Semester{}, mapSemesterRepoError(err)
	}
	return semester, nil
}

// ListSemesters returns every semester, newest first.
func (s *SemesterService) ListSemesters(ctx context.Context) ([]Semester, error) {
	if s == nil || s.semesters == nil {
		return nil, fmt.Errorf("SemesterService is not configured")
	}
	semesters, err := s.semesters.ListSemesters(ctx)
	if err != nil {
		return nil, mapSemesterRepoError(err)
	}
	sort.Slice(semesters, func(i, j int) bool { return semesters[i].StartDate.After(semesters[j].StartDate) })
	return semesters, nil
}

func mapSemesterRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound) {
		return fmt.Errorf("%w: semester", ErrNotFound)
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		return fmt.Errorf("%w: semester identifier is taken", ErrAlreadyExists)
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		return businessError("semester rejected by storage constraints")
	}
	return err
}
