package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/joaosantosg/reserva-salas-uni/internal/recurrence"
)

func at(day string, clock string) time.Time {
	return recurrence.MustTimeOfDay(clock).On(recurrence.MustDate(day), time.UTC)
}

func TestOverlaps(t *testing.T) {
	t.Parallel()

	base := Window{Start: at("2025-01-06", "08:00"), End: at("2025-01-06", "10:00")}

	tests := []struct {
		name  string
		other Window
		want  bool
	}{
		{"overlaps at start", Window{at("2025-01-06", "07:00"), at("2025-01-06", "08:30")}, true},
		{"overlaps at end", Window{at("2025-01-06", "09:30"), at("2025-01-06", "11:00")}, true},
		{"encloses", Window{at("2025-01-06", "07:00"), at("2025-01-06", "11:00")}, true},
		{"enclosed", Window{at("2025-01-06", "09:00"), at("2025-01-06", "09:30")}, true},
		{"identical", base, true},
		{"touching before", Window{at("2025-01-06", "07:00"), at("2025-01-06", "08:00")}, false},
		{"touching after", Window{at("2025-01-06", "10:00"), at("2025-01-06", "11:00")}, false},
		{"other day", Window{at("2025-01-07", "08:00"), at("2025-01-07", "10:00")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Overlaps(base, tt.other))
			assert.Equal(t, Overlaps(base, tt.other), Overlaps(tt.other, base), "overlap must be symmetric")
		})
	}
}

func weeklySeries(id string, clockStart, clockEnd string, days ...recurrence.Weekday) Series {
	return Series{
		ID:        id,
		RoomID:    "room-r",
		Frequency: recurrence.Weekly{Weekdays: days},
		StartDate: recurrence.MustDate("2025-01-06"),
		EndDate:   recurrence.MustDate("2025-01-17"),
		StartTime: recurrence.MustTimeOfDay(clockStart),
		EndTime:   recurrence.MustTimeOfDay(clockEnd),
	}
}

func TestDetectSeriesConflicts(t *testing.T) {
	t.Parallel()

	existing := []Series{weeklySeries("rule-1", "08:00", "10:00", recurrence.Monday, recurrence.Wednesday, recurrence.Friday)}

	t.Run("inner window on shared weekday conflicts", func(t *testing.T) {
		t.Parallel()
		conflicts := DetectSeriesConflicts(existing, weeklySeries("", "09:00", "09:30", recurrence.Monday))
		if assert.Len(t, conflicts, 1) {
			assert.Equal(t, "rule-1", conflicts[0].WithID)
			assert.Equal(t, ConflictTypeSeries, conflicts[0].Type)
		}
	})

	t.Run("disjoint weekdays do not conflict", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, DetectSeriesConflicts(existing, weeklySeries("", "08:00", "10:00", recurrence.Tuesday, recurrence.Thursday)))
	})

	t.Run("adjacent windows do not conflict", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, DetectSeriesConflicts(existing, weeklySeries("", "10:00", "12:00", recurrence.Monday)))
	})

	t.Run("other room does not conflict", func(t *testing.T) {
		t.Parallel()
		candidate := weeklySeries("", "08:00", "10:00", recurrence.Monday)
		candidate.RoomID = "room-s"
		assert.Empty(t, DetectSeriesConflicts(existing, candidate))
	})

	t.Run("disjoint date ranges do not conflict", func(t *testing.T) {
		t.Parallel()
		candidate := weeklySeries("", "08:00", "10:00", recurrence.Monday)
		candidate.StartDate = recurrence.MustDate("2025-01-18")
		candidate.EndDate = recurrence.MustDate("2025-02-28")
		assert.Empty(t, DetectSeriesConflicts(existing, candidate))
	})

	t.Run("self is excluded", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, DetectSeriesConflicts(existing, weeklySeries("rule-1", "08:00", "10:00", recurrence.Monday)))
	})

	t.Run("daily rule conflicts with any weekly rule", func(t *testing.T) {
		t.Parallel()
		candidate := weeklySeries("", "09:00", "11:00")
		candidate.Frequency = recurrence.Daily{}
		assert.Len(t, DetectSeriesConflicts(existing, candidate), 1)
	})

	t.Run("monthly rule conflicts only when a due day is shared", func(t *testing.T) {
		t.Parallel()
		candidate := weeklySeries("", "09:00", "11:00")
		candidate.Frequency = recurrence.Monthly{DayOfMonth: 8}
		assert.Len(t, DetectSeriesConflicts(existing, candidate), 1, "2025-01-08 is a Wednesday")

		candidate.Frequency = recurrence.Monthly{DayOfMonth: 7}
		assert.Empty(t, DetectSeriesConflicts(existing, candidate), "2025-01-07 is a Tuesday")
	})

	t.Run("monthly rules compare day of month", func(t *testing.T) {
		t.Parallel()
		monthly := weeklySeries("rule-m", "08:00", "10:00")
		monthly.Frequency = recurrence.Monthly{DayOfMonth: 10}
		candidate := weeklySeries("", "09:00", "10:00")
		candidate.Frequency = recurrence.Monthly{DayOfMonth: 10}
		assert.Len(t, DetectSeriesConflicts([]Series{monthly}, candidate), 1)

		candidate.Frequency = recurrence.Monthly{DayOfMonth: 11}
		assert.Empty(t, DetectSeriesConflicts([]Series{monthly}, candidate))
	})

	t.Run("shared pattern without a due day in the common range does not conflict", func(t *testing.T) {
		t.Parallel()
		short := Series{
			ID:        "rule-short",
			RoomID:    "room-r",
			Frequency: recurrence.Monthly{DayOfMonth: 20},
			StartDate: recurrence.MustDate("2025-01-06"),
			EndDate:   recurrence.MustDate("2025-01-10"),
			StartTime: recurrence.MustTimeOfDay("08:00"),
			EndTime:   recurrence.MustTimeOfDay("10:00"),
		}
		candidate := short
		candidate.ID = ""
		candidate.EndDate = recurrence.MustDate("2025-03-31")
		assert.Empty(t, DetectSeriesConflicts([]Series{short}, candidate), "the 20th never falls in 01-06..01-10")

		daily := short
		daily.Frequency = recurrence.Daily{}
		assert.Empty(t, DetectSeriesConflicts([]Series{short}, daily))

		sunday := weeklySeries("", "08:00", "10:00", recurrence.Sunday)
		sunday.StartDate = recurrence.MustDate("2025-01-06")
		sunday.EndDate = recurrence.MustDate("2025-01-10")
		dailyRule := short
		dailyRule.ID = "rule-daily"
		dailyRule.Frequency = recurrence.Daily{}
		assert.Empty(t, DetectSeriesConflicts([]Series{dailyRule}, sunday), "no Sunday between Monday and Friday")
	})

	t.Run("weekly rules sharing a weekday outside a short overlap do not conflict", func(t *testing.T) {
		t.Parallel()
		candidate := weeklySeries("", "08:00", "10:00", recurrence.Monday)
		candidate.StartDate = recurrence.MustDate("2025-01-14")
		candidate.EndDate = recurrence.MustDate("2025-01-31")
		assert.Empty(t, DetectSeriesConflicts(existing, candidate), "01-14..01-17 holds no Monday")
	})
}

func TestDetectBookingConflicts(t *testing.T) {
	t.Parallel()

	existing := []Booking{
		{ID: "res-1", RoomID: "room-r", Window: Window{at("2025-01-06", "08:00"), at("2025-01-06", "10:00")}},
		{ID: "res-2", RoomID: "room-s", Window: Window{at("2025-01-06", "08:00"), at("2025-01-06", "10:00")}},
	}

	candidate := Booking{RoomID: "room-r", Window: Window{at("2025-01-06", "09:59"), at("2025-01-06", "11:00")}}
	conflicts := DetectBookingConflicts(existing, candidate)
	if assert.Len(t, conflicts, 1) {
		assert.Equal(t, "res-1", conflicts[0].WithID)
		assert.Equal(t, recurrence.MustDate("2025-01-06"), conflicts[0].Day)
	}

	candidate.ID = "res-1"
	assert.Empty(t, DetectBookingConflicts(existing, candidate), "updates exclude themselves")
}
