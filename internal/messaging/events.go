// Package messaging delivers notifications and audit records to outside
// systems: an MQTT broker, a Redis stream, the audit table or the log.
package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/joaosantosg/reserva-salas-uni/internal/application"
	"github.com/joaosantosg/reserva-salas-uni/internal/recurrence"
)

// Event types published by notifiers.
const (
	EventRuleCreated        = "recurring_rule.created"
	EventReservationCreated = "reservation.created"
)

// Owner is the public view of the user a notification is addressed to.
type Owner struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// Event is the JSON payload of a notification.
type Event struct {
	Type        string                    `json:"type"`
	OccurredAt  time.Time                 `json:"occurred_at"`
	Owner       Owner                     `json:"owner"`
	Rule        *application.RuleSnapshot `json:"rule,omitempty"`
	Reservation *application.Reservation  `json:"reservation,omitempty"`
}

func ownerOf(user application.User) Owner {
	return Owner{ID: user.ID, Email: user.Email, DisplayName: user.DisplayName}
}

// RuleCreatedEvent builds the notification for a new recurring rule.
func RuleCreatedEvent(rule recurrence.Rule, owner application.User, at time.Time) Event {
	snapshot := application.SnapshotRule(rule)
	return Event{Type: EventRuleCreated, OccurredAt: at.UTC(), Owner: ownerOf(owner), Rule: &snapshot}
}

// ReservationCreatedEvent builds the notification for a new standalone reservation.
func ReservationCreatedEvent(reservation application.Reservation, owner application.User, at time.Time) Event {
	return Event{Type: EventReservationCreated, OccurredAt: at.UTC(), Owner: ownerOf(owner), Reservation: &reservation}
}

// encodeSnapshot marshals an audit snapshot. A nil value yields nil so the
// column stays NULL.
func encodeSnapshot(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode audit snapshot: %w", err)
	}
	return raw, nil
}
