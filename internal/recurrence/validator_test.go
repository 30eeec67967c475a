package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func codes(violations []Violation) []Code {
	out := make([]Code, 0, len(violations))
	for _, v := range violations {
		out = append(out, v.Code)
	}
	return out
}

func TestValidate(t *testing.T) {
	t.Parallel()

	today := MustDate("2025-01-06")

	tests := []struct {
		name   string
		mutate func(*Rule)
		opts   ValidateOptions
		want   []Code
	}{
		{
			name:   "valid weekly rule",
			mutate: func(*Rule) {},
			opts:   ValidateOptions{Today: &today},
			want:   []Code{},
		},
		{
			name:   "end date before start date",
			mutate: func(r *Rule) { r.EndDate = MustDate("2025-01-05") },
			want:   []Code{CodeInvalidDateRange},
		},
		{
			name:   "same start and end date is allowed",
			mutate: func(r *Rule) { r.EndDate = r.StartDate },
			want:   []Code{},
		},
		{
			name:   "missing dates",
			mutate: func(r *Rule) { r.StartDate = time.Time{} },
			want:   []Code{CodeMissingDates},
		},
		{
			name:   "start time equal to end time",
			mutate: func(r *Rule) { r.EndTime = r.StartTime },
			want:   []Code{CodeInvalidTimeRange},
		},
		{
			name:   "weekly without weekdays",
			mutate: func(r *Rule) { r.Frequency = Weekly{} },
			want:   []Code{CodeMissingWeekdays},
		},
		{
			name:   "weekly with out of range weekday",
			mutate: func(r *Rule) { r.Frequency = Weekly{Weekdays: []Weekday{0, 7}} },
			want:   []Code{CodeInvalidWeekday},
		},
		{
			name:   "monthly without day",
			mutate: func(r *Rule) { r.Frequency = Monthly{} },
			want:   []Code{CodeMissingDayOfMonth},
		},
		{
			name:   "monthly with day 32",
			mutate: func(r *Rule) { r.Frequency = Monthly{DayOfMonth: 32} },
			want:   []Code{CodeInvalidDayOfMonth},
		},
		{
			name:   "daily needs no extra fields",
			mutate: func(r *Rule) { r.Frequency = Daily{} },
			want:   []Code{},
		},
		{
			name:   "missing frequency",
			mutate: func(r *Rule) { r.Frequency = nil },
			want:   []Code{CodeMissingFrequency},
		},
		{
			name:   "start date yesterday is tolerated",
			mutate: func(r *Rule) { r.StartDate = MustDate("2025-01-05") },
			opts:   ValidateOptions{Today: &today},
			want:   []Code{},
		},
		{
			name:   "start date two days ago is rejected",
			mutate: func(r *Rule) { r.StartDate = MustDate("2025-01-04") },
			opts:   ValidateOptions{Today: &today},
			want:   []Code{CodeStartDateInPast},
		},
		{
			name:   "past start date ignored without today",
			mutate: func(r *Rule) { r.StartDate = MustDate("2024-01-01") },
			want:   []Code{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rule := weeklyRule()
			tt.mutate(&rule)

			got := codes(Validate(rule, tt.opts))

			assert.ElementsMatch(t, tt.want, got)
		})
	}
}

func TestIdentification(t *testing.T) {
	t.Parallel()

	rule := weeklyRule()
	assert.Equal(t, "WEEKLY-B101-08H", Identification(rule, "b101"))

	rule.Frequency = Daily{}
	rule.StartTime = MustTimeOfDay("14:30")
	assert.Equal(t, "DAILY-LAB3-14H", Identification(rule, "Lab 3"))

	rule.Frequency = Monthly{DayOfMonth: 1}
	rule.Kind = KindSemesterBound
	rule.Semester = "2025.1"
	assert.Equal(t, "MONTHLY-B101-14H-2025.1", Identification(rule, "B101"))
}

func TestWeekdayOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Monday, WeekdayOf(MustDate("2025-01-06")))
	assert.Equal(t, Sunday, WeekdayOf(MustDate("2025-01-12")))
	assert.Equal(t, time.Wednesday, Wednesday.Time())
}
