package messaging

import (
	"context"
	"log/slog"

	"github.com/joaosantosg/reserva-salas-uni/internal/application"
	"github.com/joaosantosg/reserva-salas-uni/internal/recurrence"
)

// LogNotifier writes notifications to the log. It is used when no broker is configured.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

var _ application.Notifier = (*LogNotifier)(nil)

func (n *LogNotifier) NotifyRuleCreated(ctx context.Context, rule recurrence.Rule, owner application.User) error {
	n.logger.InfoContext(ctx, "notification",
		"type", EventRuleCreated,
		"rule_id", rule.ID,
		"identification", rule.Identification,
		"owner_id", owner.ID,
		"owner_email", owner.Email,
	)
	return nil
}

func (n *LogNotifier) NotifyReservationCreated(ctx context.Context, reservation application.Reservation, owner application.User) error {
	n.logger.InfoContext(ctx, "notification",
		"type", EventReservationCreated,
		"reservation_id", reservation.ID,
		"room_id", reservation.RoomID,
		"start", reservation.Start,
		"owner_id", owner.ID,
		"owner_email", owner.Email,
	)
	return nil
}

// LogAuditSink writes audit records to the log.
type LogAuditSink struct {
	logger *slog.Logger
}

// NewLogAuditSink constructs a LogAuditSink.
func NewLogAuditSink(logger *slog.Logger) *LogAuditSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogAuditSink{logger: logger}
}

var _ application.AuditSink = (*LogAuditSink)(nil)

func (s *LogAuditSink) Record(ctx context.Context, record application.AuditRecord) error {
	attrs := []any{
		"action", record.Action,
		"entity", record.Entity,
		"entity_id", record.EntityID,
		"actor_id", record.ActorID,
		"at", record.At,
	}
	if record.Reason != nil {
		attrs = append(attrs, "reason", *record.Reason)
	}
	s.logger.InfoContext(ctx, "audit", attrs...)
	return nil
}
