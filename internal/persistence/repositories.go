package persistence

import (
	"context"
	"time"
)

// UserRepository exposes CRUD operations for users.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	UpdateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	DeleteUser(ctx context.Context, id string) error
	RecordLoginFailure(ctx context.Context, id string, at time.Time, disable bool) error
	ResetLoginFailures(ctx context.Context, id string) error
}

// BlockRepository exposes CRUD operations for blocks.
type BlockRepository interface {
	CreateBlock(ctx context.Context, block Block) error
	UpdateBlock(ctx context.Context, block Block) error
	GetBlock(ctx context.Context, id string) (Block, error)
	ListBlocks(ctx context.Context) ([]Block, error)
	DeleteBlock(ctx context.Context, id string) error
}

// RoomFilter narrows room queries.
type RoomFilter struct {
	BlockID string
}

// RoomRepository exposes CRUD operations for rooms.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room Room) error
	UpdateRoom(ctx context.Context, room Room) error
	GetRoom(ctx context.Context, id string) (Room, error)
	ListRooms(ctx context.Context, filter RoomFilter) ([]Room, error)
	DeleteRoom(ctx context.Context, id string) error
}

// SemesterRepository stores academic periods.
type SemesterRepository interface {
	CreateSemester(ctx context.Context, semester Semester) error
	GetSemesterByIdentifier(ctx context.Context, identifier string) (Semester, error)
	ListSemesters(ctx context.Context) ([]Semester, error)
}

// RuleConflictCheck inspects, inside the write transaction, the active rules
// and reservations of the candidate's room whose dates intersect the
// candidate's range. Returning an error aborts the write.
type RuleConflictCheck func(rules []RecurringRule, reservations []Reservation) error

// RuleFilter narrows recurring rule queries. Zero values are ignored.
type RuleFilter struct {
	RoomID         string
	UserID         string
	Frequency      string
	From           *time.Time
	Until          *time.Time
	IncludeDeleted bool
	Limit          int
	Offset         int
}

// RecurringRuleRepository stores recurring rules.
type RecurringRuleRepository interface {
	CreateRecurringRule(ctx context.Context, rule RecurringRule, check RuleConflictCheck) error
	UpdateRecurringRule(ctx context.Context, rule RecurringRule, check RuleConflictCheck) error
	GetRecurringRule(ctx context.Context, id string) (RecurringRule, error)
	ListRecurringRules(ctx context.Context, filter RuleFilter) ([]RecurringRule, int, error)
	// SoftDeleteRecurringRule marks the rule and its active reservations deleted
	// with the same actor and timestamp, returning the number of reservations affected.
	SoftDeleteRecurringRule(ctx context.Context, id, actorID string, at time.Time) (int64, error)
}

// ReservationConflictCheck inspects, inside the write transaction, the active
// reservations of the candidate's room on the candidate's day.
type ReservationConflictCheck func(existing []Reservation) error

// ReservationFilter narrows reservation queries. Zero values are ignored.
type ReservationFilter struct {
	RoomID         string
	UserID         string
	RuleID         string
	From           *time.Time
	Until          *time.Time
	IncludeDeleted bool
	Limit          int
	Offset         int
}

// ReservationRepository stores reservations.
type ReservationRepository interface {
	CreateReservation(ctx context.Context, reservation Reservation, check ReservationConflictCheck) error
	UpdateReservation(ctx context.Context, reservation Reservation, check ReservationConflictCheck) error
	GetReservation(ctx context.Context, id string) (Reservation, error)
	ListReservations(ctx context.Context, filter ReservationFilter) ([]Reservation, int, error)
	// InsertReservations writes the batch atomically. A non-nil check runs in
	// the same transaction against the active reservations of the batch's
	// room across the batch's span, excluding those of the batch's own rule.
	InsertReservations(ctx context.Context, batch []Reservation, check ReservationConflictCheck) error
	SoftDeleteReservation(ctx context.Context, id, actorID string, at time.Time) error
	SoftDeleteRuleReservations(ctx context.Context, ruleID, actorID string, at time.Time) (int64, error)
}

// AuditRepository appends audit entries.
type AuditRepository interface {
	AppendAudit(ctx context.Context, entry AuditEntry) error
	ListAudit(ctx context.Context, entity, entityID string) ([]AuditEntry, error)
}
