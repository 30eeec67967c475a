package sqlstore

import (
	"context"

	"github.com/joaosantosg/reserva-salas-uni/internal/persistence"
)

// SemesterRepository implements persistence.SemesterRepository.
type SemesterRepository struct {
	store *Store
}

// NewSemesterRepository creates a semester repository on store.
func NewSemesterRepository(store *Store) *SemesterRepository {
	return &SemesterRepository{store: store}
}

var _ persistence.SemesterRepository = (*SemesterRepository)(nil)

type semesterRow struct {
	ID         string `db:"id"`
	Identifier string `db:"identifier"`
	StartDate  string `db:"start_date"`
	EndDate    string `db:"end_date"`
	Active     bool   `db:"active"`
	CreatedAt  string `db:"created_at"`
	UpdatedAt  string `db:"updated_at"`
}

const semesterColumns = `id, identifier, start_date, end_date, active, created_at, updated_at`

func (r semesterRow) model() (persistence.Semester, error) {
	semester := persistence.Semester{ID: r.ID, Identifier: r.Identifier, Active: r.Active}
	var err error
	if semester.StartDate, err = parseDate("start_date", r.StartDate); err != nil {
		return persistence.Semester{}, err
	}
	if semester.EndDate, err = parseDate("end_date", r.EndDate); err != nil {
		return persistence.Semester{}, err
	}
	if semester.CreatedAt, err = parseTimestamp("created_at", r.CreatedAt); err != nil {
		return persistence.Semester{}, err
	}
	if semester.UpdatedAt, err = parseTimestamp("updated_at", r.UpdatedAt); err != nil {
		return persistence.Semester{}, err
	}
	return semester, nil
}

// CreateSemester stores a new semester.
func (r *SemesterRepository) CreateSemester(ctx context.Context, semester persistence.Semester) error {
	_, err := r.store.db.NamedExecContext(ctx,
		`INSERT INTO semesters (`+semesterColumns+`) VALUES (:id, :identifier, :start_date, :end_date, :active, :created_at, :updated_at)`,
		semesterRow{
			ID:         semester.ID,
			Identifier: semester.Identifier,
			StartDate:  formatDate(semester.StartDate),
			EndDate:    formatDate(semester.EndDate),
			Active:     semester.Active,
			CreatedAt:  formatTimestamp(semester.CreatedAt),
			UpdatedAt:  formatTimestamp(semester.UpdatedAt),
		})
	return r.store.mapper.MapError(err)
}

// GetSemesterByIdentifier retrieves a semester by its code, e.g. "2025.1".
func (r *SemesterRepository) GetSemesterByIdentifier(ctx context.Context, identifier string) (persistence.Semester, error) {
	var row semesterRow
	if err := r.store.db.GetContext(ctx, &row, r.store.db.Rebind(`SELECT `+semesterColumns+` FROM semesters WHERE identifier = ?`), identifier); err != nil {
		return persistence.Semester{}, r.store.mapper.MapError(err)
	}
	return row.model()
}

// ListSemesters returns semesters, most recent first.
func (r *SemesterRepository) ListSemesters(ctx context.Context) ([]persistence.Semester, error) {
	var rows []semesterRow
	if err := r.store.db.SelectContext(ctx, &rows, `SELECT `+semesterColumns+` FROM semesters ORDER BY start_date DESC`); err != nil {
		return nil, r.store.mapper.MapError(err)
	}
	semesters := make([]persistence.Semester, 0, len(rows))
	for _, row := range rows {
		semester, err := row.model()
		if err != nil {
			return nil, err
		}
		semesters = append(semesters, semester)
	}
	return semesters, nil
}
