package messaging

import (
	"context"
	"errors"

	"github.com/joaosantosg/reserva-salas-uni/internal/application"
	"github.com/joaosantosg/reserva-salas-uni/internal/recurrence"
)

// FanoutAuditSink records to every sink and joins their errors.
type FanoutAuditSink []application.AuditSink

func (f FanoutAuditSink) Record(ctx context.Context, record application.AuditRecord) error {
	var errs []error
	for _, sink := range f {
		if sink == nil {
			continue
		}
		if err := sink.Record(ctx, record); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FanoutNotifier notifies every notifier and joins their errors.
type FanoutNotifier []application.Notifier

func (f FanoutNotifier) NotifyRuleCreated(ctx context.Context, rule recurrence.Rule, owner application.User) error {
	var errs []error
	for _, n := range f {
		if n == nil {
			continue
		}
		if err := n.NotifyRuleCreated(ctx, rule, owner); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f FanoutNotifier) NotifyReservationCreated(ctx context.Context, reservation application.Reservation, owner application.User) error {
	var errs []error
	for _, n := range f {
		if n == nil {
			continue
		}
		if err := n.NotifyReservationCreated(ctx, reservation, owner); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
