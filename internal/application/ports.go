package application

import (
	"context"
	"time"

	"github.com/joaosantosg/reserva-salas-uni/internal/recurrence"
)

// RoomCatalog resolves rooms for booking services.
type RoomCatalog interface {
	GetRoom(ctx context.Context, id string) (Room, error)
}

// UserDirectory resolves booking owners.
type UserDirectory interface {
	GetUser(ctx context.Context, id string) (User, error)
}

// SemesterCatalog resolves academic periods by identifier.
type SemesterCatalog interface {
	GetSemesterByIdentifier(ctx context.Context, identifier string) (Semester, error)
}

// RuleConflictCheck runs inside the write transaction with the active rules
// and reservations competing for the candidate's room and dates.
type RuleConflictCheck func(rules []recurrence.Rule, reservations []Reservation) error

// RecurringRuleStore persists recurring rules.
type RecurringRuleStore interface {
	CreateRule(ctx context.Context, rule recurrence.Rule, check RuleConflictCheck) error
	UpdateRule(ctx context.Context, rule recurrence.Rule, check RuleConflictCheck) error
	GetRule(ctx context.Context, id string) (recurrence.Rule, error)
	ListRules(ctx context.Context, filter RuleFilter) ([]recurrence.Rule, int, error)
	// SoftDeleteRule stamps the rule and its active reservations with the same
	// actor and instant in one transaction.
	SoftDeleteRule(ctx context.Context, id, actorID string, at time.Time) (int64, error)
}

// ReservationConflictCheck runs inside the write transaction with the active
// reservations of the candidate's room around its day.
type ReservationConflictCheck func(existing []Reservation) error

// ReservationStore persists reservations.
type ReservationStore interface {
	CreateReservation(ctx context.Context, reservation Reservation, check ReservationConflictCheck) error
	UpdateReservation(ctx context.Context, reservation Reservation, check ReservationConflictCheck) error
	GetReservation(ctx context.Context, id string) (Reservation, error)
	ListReservations(ctx context.Context, filter ReservationFilter) ([]Reservation, int, error)
	// InsertReservations writes one batch atomically. A non-nil check runs in
	// the same transaction with the active reservations competing for the
	// batch's room, those of the batch's own rule excluded.
	InsertReservations(ctx context.Context, batch []Reservation, check ReservationConflictCheck) error
	SoftDeleteReservation(ctx context.Context, id, actorID string, at time.Time) error
	SoftDeleteRuleReservations(ctx context.Context, ruleID, actorID string, at time.Time) (int64, error)
}

// Notifier delivers booking notifications. Delivery is best effort.
type Notifier interface {
	NotifyRuleCreated(ctx context.Context, rule recurrence.Rule, owner User) error
	NotifyReservationCreated(ctx context.Context, reservation Reservation, owner User) error
}

// Audit actions.
const (
	AuditActionCreate     = "create"
	AuditActionUpdate     = "update"
	AuditActionCancel     = "cancel"
	AuditActionRegenerate = "regenerate"
)

// Audited entities.
const (
	AuditEntityRule        = "recurring_rule"
	AuditEntityReservation = "reservation"
)

// AuditRecord describes a state change. Before and After are snapshots
// encoded as JSON by the sink.
type AuditRecord struct {
	Action   string
	Entity   string
	EntityID string
	ActorID  string
	Reason   *string
	Before   any
	After    any
	At       time.Time
}

// AuditSink records state changes. Recording is fire-and-forget.
type AuditSink interface {
	Record(ctx context.Context, record AuditRecord) error
}
