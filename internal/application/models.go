package application

import (
	"time"

	"github.com/samber/mo"

	"github.com/joaosantosg/reserva-salas-uni/internal/recurrence"
)

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID  string
	IsAdmin bool
	Course  string
}

// CanManage reports whether the principal may mutate a record owned by ownerID.
func (p Principal) CanManage(ownerID string) bool {
	return p.IsAdmin || (p.UserID != "" && p.UserID == ownerID)
}

// User represents an account without credentials.
type User struct {
	ID          string
	Email       string
	DisplayName string
	Course      string
	IsAdmin     bool
	Disabled    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UserCredentials pairs a user with the data needed to authenticate them.
type UserCredentials struct {
	User           User
	PasswordHash   string
	FailedAttempts int
}

// Block is a building that groups rooms.
type Block struct {
	ID        string
	Name      string
	Code      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Room is a bookable space. A restricted room only accepts bookings from
// users enrolled in RestrictedCourse.
type Room struct {
	ID               string
	BlockID          string
	Code             string
	Capacity         int
	Resources        []string
	Restricted       bool
	RestrictedCourse *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// AllowsCourse reports whether a user from course may book the room.
func (r Room) AllowsCourse(course string) bool {
	if !r.Restricted || r.RestrictedCourse == nil {
		return true
	}
	return *r.RestrictedCourse == course
}

// Semester is an academic period.
type Semester struct {
	ID         string
	Identifier string
	StartDate  time.Time
	EndDate    time.Time
	Active     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Reservation is a booked window, standalone or generated by a recurring rule.
type Reservation struct {
	ID        string     `json:"id"`
	RoomID    string     `json:"room_id"`
	UserID    string     `json:"user_id"`
	RuleID    *string    `json:"rule_id,omitempty"`
	Purpose   string     `json:"purpose"`
	Start     time.Time  `json:"start"`
	End       time.Time  `json:"end"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	DeletedBy *string    `json:"deleted_by,omitempty"`
}

// Active reports whether the reservation has not been cancelled.
func (r Reservation) Active() bool {
	return r.DeletedAt == nil
}

// Page is one slice of a filtered listing.
type Page[T any] struct {
	Items  []T
	Total  int
	Page   int
	Size   int
	Offset int
}

// Pagination selects a page. Page starts at 1; zero values fall back to defaults.
type Pagination struct {
	Page int
	Size int
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func (p Pagination) normalize() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Size < 1 {
		p.Size = defaultPageSize
	}
	if p.Size > maxPageSize {
		p.Size = maxPageSize
	}
	return p
}

func (p Pagination) offset() int {
	return (p.Page - 1) * p.Size
}

// FrequencyInput captures the caller supplied repetition pattern.
type FrequencyInput struct {
	Kind       string
	Weekdays   []int
	DayOfMonth int
}

// RuleInput captures caller provided recurring rule fields.
type RuleInput struct {
	Identification string
	RoomID         string
	Purpose        string
	Frequency      FrequencyInput
	StartTime      string
	EndTime        string
	StartDate      time.Time
	EndDate        time.Time
	Exceptions     []time.Time
}

// CreateRegularRuleParams wraps the data required to create a rule with explicit dates.
type CreateRegularRuleParams struct {
	Principal Principal
	Input     RuleInput
}

// CreateSemesterRuleParams wraps the data required to create a rule bounded by a
// semester. Input dates are ignored in favour of the semester's.
type CreateSemesterRuleParams struct {
	Principal Principal
	Semester  string
	Input     RuleInput
}

// RulePatch lists the fields of a rule to change. Absent options leave the
// stored value untouched.
type RulePatch struct {
	Identification mo.Option[string]
	Purpose        mo.Option[string]
	StartDate      mo.Option[time.Time]
	EndDate        mo.Option[time.Time]
	StartTime      mo.Option[string]
	EndTime        mo.Option[string]
	Frequency      mo.Option[FrequencyInput]
	Exceptions     mo.Option[[]time.Time]
}

// UpdateRuleParams wraps the data required to patch a rule.
type UpdateRuleParams struct {
	Principal Principal
	RuleID    string
	Patch     RulePatch
}

// RuleFilter narrows rule listings.
type RuleFilter struct {
	RoomID         string
	UserID         string
	Frequency      string
	From           *time.Time
	Until          *time.Time
	IncludeDeleted bool
	Pagination     Pagination
}

// ReservationInput captures caller provided standalone reservation fields.
type ReservationInput struct {
	RoomID  string
	Purpose string
	Start   time.Time
	End     time.Time
}

// CreateReservationParams wraps the data required to book a single window.
type CreateReservationParams struct {
	Principal Principal
	Input     ReservationInput
}

// UpdateReservationParams wraps the data required to change a reservation.
type UpdateReservationParams struct {
	Principal     Principal
	ReservationID string
	Input         ReservationInput
}

// ReservationFilter narrows reservation listings.
type ReservationFilter struct {
	RoomID         string
	UserID         string
	RuleID         string
	From           *time.Time
	Until          *time.Time
	IncludeDeleted bool
	Pagination     Pagination
}

// GenerationReport summarises an occurrence generation run.
type GenerationReport struct {
	RuleID    string
	Persisted int
	Batches   int
}

// RuleResult is a rule together with the outcome of its occurrence generation.
type RuleResult struct {
	Rule       recurrence.Rule
	Generation GenerationReport
}
