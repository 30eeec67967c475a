package scheduler

import (
	"time"

	"github.com/joaosantosg/reserva-salas-uni/internal/recurrence"
)

// Window is a half-open interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether a and b share any instant: a.Start < b.End and a.End > b.Start.
// Touching windows do not overlap.
func Overlaps(a, b Window) bool {
	return a.Start.Before(b.End) && a.End.After(b.Start)
}

// ClockOverlaps applies the half-open test to times of day.
func ClockOverlaps(s1, e1, s2, e2 recurrence.TimeOfDay) bool {
	return s1.Minutes() < e2.Minutes() && e1.Minutes() > s2.Minutes()
}

// Booking is a single room reservation.
type Booking struct {
	ID     string
	RoomID string
	RuleID *string
	Window Window
}

// Series is the slot claimed by a recurring rule.
type Series struct {
	ID        string
	RoomID    string
	Frequency recurrence.Frequency
	StartDate time.Time
	EndDate   time.Time
	StartTime recurrence.TimeOfDay
	EndTime   recurrence.TimeOfDay
}

// SeriesFromRule extracts the claimed slot of rule.
func SeriesFromRule(rule recurrence.Rule) Series {
	return Series{
		ID:        rule.ID,
		RoomID:    rule.RoomID,
		Frequency: rule.Frequency,
		StartDate: rule.StartDate,
		EndDate:   rule.EndDate,
		StartTime: rule.StartTime,
		EndTime:   rule.EndTime,
	}
}

// ConflictType describes which kind of record a candidate collides with.
type ConflictType string

const (
	// ConflictTypeSeries indicates a clash with another recurring rule.
	ConflictTypeSeries ConflictType = "series"
	// ConflictTypeBooking indicates a clash with an existing reservation.
	ConflictTypeBooking ConflictType = "booking"
)

// Conflict names the record a candidate clashes with.
type Conflict struct {
	WithID string
	Type   ConflictType
	RoomID string
	// Day is set for booking conflicts to the date of the clash.
	Day time.Time
}

// DetectSeriesConflicts returns the series in existing that claim an overlapping slot
// of candidate: same room, intersecting date ranges, compatible days and
// overlapping times of day. A series sharing candidate's ID is ignored.
func DetectSeriesConflicts(existing []Series, candidate Series) []Conflict {
	var conflicts []Conflict
	for _, other := range existing {
		if other.ID != "" && other.ID == candidate.ID {
			continue
		}
		if other.RoomID != candidate.RoomID {
			continue
		}
		from, until, ok := intersectDates(candidate, other)
		if !ok {
			continue
		}
		if !ClockOverlaps(candidate.StartTime, candidate.EndTime, other.StartTime, other.EndTime) {
			continue
		}
		if !daysCompatible(candidate.Frequency, other.Frequency, from, until) {
			continue
		}
		conflicts = append(conflicts, Conflict{WithID: other.ID, Type: ConflictTypeSeries, RoomID: other.RoomID})
	}
	return conflicts
}

// DetectBookingConflicts returns the bookings in existing that overlap candidate in the same room.
// A booking sharing candidate's ID is ignored.
func DetectBookingConflicts(existing []Booking, candidate Booking) []Conflict {
	var conflicts []Conflict
	for _, other := range existing {
		if other.ID != "" && other.ID == candidate.ID {
			continue
		}
		if other.RoomID != candidate.RoomID {
			continue
		}
		if Overlaps(candidate.Window, other.Window) {
			conflicts = append(conflicts, Conflict{
				WithID: other.ID,
				Type:   ConflictTypeBooking,
				RoomID: other.RoomID,
				Day:    recurrence.DateOf(candidate.Window.Start),
			})
		}
	}
	return conflicts
}

func intersectDates(a, b Series) (time.Time, time.Time, bool) {
	from := recurrence.DateOf(a.StartDate)
	if s := recurrence.DateOf(b.StartDate); s.After(from) {
		from = s
	}
	until := recurrence.DateOf(a.EndDate)
	if e := recurrence.DateOf(b.EndDate); e.Before(until) {
		until = e
	}
	return from, until, !from.After(until)
}

// daysCompatible reports whether two frequencies are due on a common day
// within [from, until]. Two weekly rules over a full week intersect by weekday
// set; every other pairing is resolved against the actual dates.
func daysCompatible(a, b recurrence.Frequency, from, until time.Time) bool {
	if a == nil || b == nil {
		return true
	}
	_, aMonthly := a.(recurrence.Monthly)
	_, bMonthly := b.(recurrence.Monthly)
	if !aMonthly && !bMonthly {
		// Daily and weekly patterns repeat every seven days.
		if limit := from.AddDate(0, 0, 6); limit.Before(until) {
			until = limit
		}
	}
	return sharesDueDay(a, b, from, until)
}

func sharesDueDay(a, b recurrence.Frequency, from, until time.Time) bool {
	for day := from; !day.After(until); day = day.AddDate(0, 0, 1) {
		if recurrence.IsDue(a, day) && recurrence.IsDue(b, day) {
			return true
		}
	}
	return false
}
