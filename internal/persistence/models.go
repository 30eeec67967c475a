package persistence

import (
	"encoding/json"
	"time"
)

// User represents an account able to book rooms.
type User struct {
	ID             string
	Email          string
	DisplayName    string
	Course         string
	PasswordHash   string
	IsAdmin        bool
	Disabled       bool
	FailedAttempts int
	LastFailedAt   *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Block represents a building grouping rooms.
type Block struct {
	ID        string
	Name      string
	Code      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Room represents a bookable room inside a block.
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

// Semester represents an academic period.
type Semester struct {
	ID         string
	Identifier string
	StartDate  time.Time
	EndDate    time.Time
	Active     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// RecurringRule represents a stored recurrence definition. Frequency is one of
// DAILY, WEEKLY or MONTHLY; Weekdays use 0=Monday..6=Sunday.
type RecurringRule struct {
	ID             string
	Identification string
	Kind           string
	Semester       *string
	RoomID         string
	UserID         string
	Purpose        string
	Frequency      string
	Weekdays       []int
	DayOfMonth     int
	StartTime      string
	EndTime        string
	StartDate      time.Time
	EndDate        time.Time
	Exceptions     []time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      *time.Time
	DeletedBy      *string
}

// Reservation represents one booked time window, standalone or generated by a rule.
type Reservation struct {
	ID        string
	RoomID    string
	UserID    string
	RuleID    *string
	Purpose   string
	Start     time.Time
	End       time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
	DeletedBy *string
}

// AuditEntry records a state change on a rule or reservation.
type AuditEntry struct {
	ID        string
	Action    string
	Entity    string
	EntityID  string
	ActorID   string
	Reason    *string
	Before    json.RawMessage
	After     json.RawMessage
	CreatedAt time.Time
}
