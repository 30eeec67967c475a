package recurrence

import (
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/teambition/rrule-go"
)

// DefaultBatchSize bounds how many occurrences are written per transaction.
const DefaultBatchSize = 500

// ErrInvalidFrequency indicates the rule carries no usable frequency.
var ErrInvalidFrequency = errors.New("recurrence: invalid frequency")

// HolidayCalendar reports national holidays.
type HolidayCalendar interface {
	IsHoliday(day time.Time) bool
}

type noHolidays struct{}

func (noHolidays) IsHoliday(time.Time) bool { return false }

// Engine expands rules into occurrences.
type Engine struct {
	location *time.Location
	holidays HolidayCalendar
}

// NewEngine constructs an Engine that builds occurrence instants in loc.
// A nil loc means UTC and a nil calendar means no holidays.
func NewEngine(loc *time.Location, holidays HolidayCalendar) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	if holidays == nil {
		holidays = noHolidays{}
	}
	return &Engine{location: loc, holidays: holidays}
}

// Location returns the timezone used to combine dates with times of day.
func (e *Engine) Location() *time.Location {
	return e.location
}

var rruleWeekdays = [...]rrule.Weekday{rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA, rrule.SU}

func toRRule(rule Rule) (*rrule.RRule, error) {
	opt := rrule.ROption{
		Dtstart: DateOf(rule.StartDate),
		Until:   DateOf(rule.EndDate),
		Wkst:    rrule.MO,
	}
	switch f := rule.Frequency.(type) {
	case Daily:
		opt.Freq = rrule.DAILY
	case Weekly:
		opt.Freq = rrule.WEEKLY
		for _, day := range f.WeekdaySet() {
			if !day.Valid() {
				return nil, fmt.Errorf("%w: weekday %d", ErrInvalidFrequency, int(day))
			}
			opt.Byweekday = append(opt.Byweekday, rruleWeekdays[day])
		}
		if len(opt.Byweekday) == 0 {
			return nil, fmt.Errorf("%w: weekly rule without weekdays", ErrInvalidFrequency)
		}
	case Monthly:
		if f.DayOfMonth < 1 || f.DayOfMonth > 31 {
			return nil, fmt.Errorf("%w: day of month %d", ErrInvalidFrequency, f.DayOfMonth)
		}
		opt.Freq = rrule.MONTHLY
		opt.Bymonthday = []int{f.DayOfMonth}
	default:
		return nil, ErrInvalidFrequency
	}
	return rrule.NewRRule(opt)
}

// DueDates yields, in order, every date of the rule's range on which its frequency is due.
// Exceptions and holidays are not applied.
func (e *Engine) DueDates(rule Rule) (iter.Seq[time.Time], error) {
	if DateOf(rule.EndDate).Before(DateOf(rule.StartDate)) {
		return func(func(time.Time) bool) {}, nil
	}
	r, err := toRRule(rule)
	if err != nil {
		return nil, err
	}
	return func(yield func(time.Time) bool) {
		next := r.Iterator()
		for day, ok := next(); ok; day, ok = next() {
			if !yield(DateOf(day)) {
				return
			}
		}
	}, nil
}

// Occurrences yields the occurrences of rule. Due dates listed as exceptions or
// reported as holidays are skipped. Iteration is restartable and deterministic
// for a given rule state.
func (e *Engine) Occurrences(rule Rule) (iter.Seq[Occurrence], error) {
	due, err := e.DueDates(rule)
	if err != nil {
		return nil, err
	}
	return func(yield func(Occurrence) bool) {
		for day := range due {
			if rule.IsException(day) || e.holidays.IsHoliday(day) {
				continue
			}
			occ := Occurrence{
				RuleID:  rule.ID,
				RoomID:  rule.RoomID,
				UserID:  rule.UserID,
				Purpose: rule.Purpose,
				Start:   rule.StartTime.On(day, e.location),
				End:     rule.EndTime.On(day, e.location),
			}
			if !yield(occ) {
				return
			}
		}
	}, nil
}

// HolidayExceptions lists the holidays that fall on due dates of rule.
func (e *Engine) HolidayExceptions(rule Rule) ([]time.Time, error) {
	due, err := e.DueDates(rule)
	if err != nil {
		return nil, err
	}
	var holidays []time.Time
	for day := range due {
		if e.holidays.IsHoliday(day) {
			holidays = append(holidays, day)
		}
	}
	return holidays, nil
}

// Batches groups seq into slices of at most size elements.
func Batches[T any](seq iter.Seq[T], size int) iter.Seq[[]T] {
	if size <= 0 {
		size = DefaultBatchSize
	}
	return func(yield func([]T) bool) {
		batch := make([]T, 0, size)
		for item := range seq {
			batch = append(batch, item)
			if len(batch) == size {
				if !yield(batch) {
					return
				}
				batch = make([]T, 0, size)
			}
		}
		if len(batch) > 0 {
			yield(batch)
		}
	}
}
