package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/joaosantosg/reserva-salas-uni/internal/recurrence"
)

// recordAudit hands record to sink without letting a failure reach the caller.
func recordAudit(ctx context.Context, sink AuditSink, logger *slog.Logger, record AuditRecord) {
	if sink == nil {
		return
	}
	if err := sink.Record(context.WithoutCancel(ctx), record); err != nil {
		logger.WarnContext(ctx, "audit record dropped",
			"action", record.Action,
			"entity", record.Entity,
			"entity_id", record.EntityID,
			"error", err,
		)
	}
}

// RuleSnapshot is the audit and notification view of a rule.
type RuleSnapshot struct {
	ID             string     `json:"id"`
	Identification string     `json:"identification"`
	Kind           string     `json:"kind"`
	Semester       string     `json:"semester,omitempty"`
	RoomID         string     `json:"room_id"`
	UserID         string     `json:"user_id"`
	Purpose        string     `json:"purpose"`
	Frequency      string     `json:"frequency"`
	Weekdays       []int      `json:"weekdays,omitempty"`
	DayOfMonth     int        `json:"day_of_month,omitempty"`
	StartTime      string     `json:"start_time"`
	EndTime        string     `json:"end_time"`
	StartDate      string     `json:"start_date"`
	EndDate        string     `json:"end_date"`
	Exceptions     []string   `json:"exceptions,omitempty"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
	DeletedBy      *string    `json:"deleted_by,omitempty"`
}

// SnapshotRule flattens rule for serialisation.
func SnapshotRule(rule recurrence.Rule) RuleSnapshot {
	kind, weekdays, dayOfMonth := recurrence.FrequencyParams(rule.Frequency)
	exceptions := make([]string, 0, len(rule.Exceptions))
	for _, d := range rule.Exceptions {
		exceptions = append(exceptions, d.Format(time.DateOnly))
	}
	return RuleSnapshot{
		ID:             rule.ID,
		Identification: rule.Identification,
		Kind:           string(rule.Kind),
		Semester:       rule.Semester,
		RoomID:         rule.RoomID,
		UserID:         rule.UserID,
		Purpose:        rule.Purpose,
		Frequency:      string(kind),
		Weekdays:       weekdays,
		DayOfMonth:     dayOfMonth,
		StartTime:      rule.StartTime.String(),
		EndTime:        rule.EndTime.String(),
		StartDate:      rule.StartDate.Format(time.DateOnly),
		EndDate:        rule.EndDate.Format(time.DateOnly),
		Exceptions:     exceptions,
		DeletedAt:      rule.DeletedAt,
		DeletedBy:      rule.DeletedBy,
	}
}
