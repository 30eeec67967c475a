// Package calendar exports reservations as iCalendar (RFC 5545) documents.
package calendar

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-ical"

	"github.com/joaosantosg/reserva-salas-uni/internal/application"
)

// ProductID identifies documents produced by this package.
const ProductID = "-//reserva-salas-uni//Reservas//PT-BR"

// ContentType is the media type of exported documents.
const ContentType = "text/calendar; charset=utf-8"

// ErrEmpty is returned when there is nothing to export. iCalendar documents
// must contain at least one component.
var ErrEmpty = errors.New("calendar: no reservations to export")

// Options controls document level metadata.
type Options struct {
	// Name is shown by clients as the calendar title.
	Name string
	// Stamp is written as DTSTAMP on every event. Defaults to time.Now.
	Stamp time.Time
	// Rooms resolves LOCATION by room id. Unknown rooms fall back to the id.
	Rooms map[string]application.Room
}

// Build converts the active reservations into a calendar with one VEVENT each.
func Build(reservations []application.Reservation, opts Options) (*ical.Calendar, error) {
	stamp := opts.Stamp
	if stamp.IsZero() {
		stamp = time.Now()
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropProductID, ProductID)
	cal.Props.SetText(ical.PropVersion, "2.0")
	if opts.Name != "" {
		cal.Props.SetText(ical.PropName, opts.Name)
		cal.Props.SetText("X-WR-CALNAME", opts.Name)
	}

	for _, r := range reservations {
		if !r.Active() {
			continue
		}
		cal.Children = append(cal.Children, reservationEvent(r, opts.Rooms, stamp).Component)
	}
	if len(cal.Children) == 0 {
		return nil, ErrEmpty
	}
	return cal, nil
}

// Write encodes the reservations to w.
func Write(w io.Writer, reservations []application.Reservation, opts Options) error {
	cal, err := Build(reservations, opts)
	if err != nil {
		return err
	}
	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("encode calendar: %w", err)
	}
	return nil
}

func reservationEvent(r application.Reservation, rooms map[string]application.Room, stamp time.Time) *ical.Event {
	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, r.ID+"@reservas")
	event.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
	event.Props.SetDateTime(ical.PropDateTimeStart, r.Start.UTC())
	event.Props.SetDateTime(ical.PropDateTimeEnd, r.End.UTC())
	event.Props.SetText(ical.PropSummary, r.Purpose)

	location := r.RoomID
	if room, ok := rooms[r.RoomID]; ok && room.Code != "" {
		location = room.Code
	}
	event.Props.SetText(ical.PropLocation, location)

	if r.RuleID != nil {
		event.Props.SetText(ical.PropRelatedTo, *r.RuleID+"@reservas")
	}
	return event
}
