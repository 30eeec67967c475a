package recurrence

import (
	"fmt"
	"time"
)

// Code identifies a structural rule violation.
type Code string

const (
	CodeMissingDates      Code = "MissingDates"
	CodeInvalidDateRange  Code = "InvalidDateRange"
	CodeStartDateInPast   Code = "StartDateInPast"
	CodeInvalidTimeRange  Code = "InvalidTimeRange"
	CodeMissingFrequency  Code = "MissingFrequency"
	CodeMissingWeekdays   Code = "MissingWeekdays"
	CodeInvalidWeekday    Code = "InvalidWeekday"
	CodeMissingDayOfMonth Code = "MissingDayOfMonth"
	CodeInvalidDayOfMonth Code = "InvalidDayOfMonth"
)

// Violation describes one failed check.
type Violation struct {
	Field   string
	Code    Code
	Message string
}

// ValidateOptions tunes checks that depend on the calling operation.
type ValidateOptions struct {
	// Today enables the start date check used on creation. A start date of
	// yesterday is still accepted.
	Today *time.Time
}

// Validate checks the structural invariants of rule and returns every violation found.
func Validate(rule Rule, opts ValidateOptions) []Violation {
	var violations []Violation
	add := func(field string, code Code, format string, args ...any) {
		violations = append(violations, Violation{Field: field, Code: code, Message: fmt.Sprintf(format, args...)})
	}

	switch {
	case rule.StartDate.IsZero() || rule.EndDate.IsZero():
		add("start_date", CodeMissingDates, "start_date and end_date are required")
	case DateOf(rule.EndDate).Before(DateOf(rule.StartDate)):
		add("end_date", CodeInvalidDateRange, "end_date %s is before start_date %s",
			rule.EndDate.Format(time.DateOnly), rule.StartDate.Format(time.DateOnly))
	}

	if opts.Today != nil && !rule.StartDate.IsZero() {
		earliest := DateOf(*opts.Today).AddDate(0, 0, -1)
		if DateOf(rule.StartDate).Before(earliest) {
			add("start_date", CodeStartDateInPast, "start_date %s is in the past", rule.StartDate.Format(time.DateOnly))
		}
	}

	if !rule.StartTime.Before(rule.EndTime) {
		add("end_time", CodeInvalidTimeRange, "start_time %s must be before end_time %s", rule.StartTime, rule.EndTime)
	}

	switch f := rule.Frequency.(type) {
	case nil:
		add("frequency", CodeMissingFrequency, "frequency is required")
	case Daily:
	case Weekly:
		if len(f.Weekdays) == 0 {
			add("weekdays", CodeMissingWeekdays, "weekly rules require at least one weekday")
			break
		}
		for _, day := range f.Weekdays {
			if !day.Valid() {
				add("weekdays", CodeInvalidWeekday, "weekday %d is outside 0 (Monday) to 6 (Sunday)", int(day))
				break
			}
		}
	case Monthly:
		switch {
		case f.DayOfMonth == 0:
			add("day_of_month", CodeMissingDayOfMonth, "monthly rules require day_of_month")
		case f.DayOfMonth < 1 || f.DayOfMonth > 31:
			add("day_of_month", CodeInvalidDayOfMonth, "day_of_month %d is outside 1 to 31", f.DayOfMonth)
		}
	}

	return violations
}
