package recurrence

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Weekday numbers days starting at Monday (0) through Sunday (6).
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// WeekdayOf converts the calendar weekday of t to the Monday-based numbering.
func WeekdayOf(t time.Time) Weekday {
	return Weekday((int(t.Weekday()) + 6) % 7)
}

// Valid reports whether w is within [0,6].
func (w Weekday) Valid() bool {
	return w >= Monday && w <= Sunday
}

// Time converts w into the standard library weekday.
func (w Weekday) Time() time.Weekday {
	return time.Weekday((int(w) + 1) % 7)
}

func (w Weekday) String() string {
	if !w.Valid() {
		return "Weekday(" + strconv.Itoa(int(w)) + ")"
	}
	return w.Time().String()
}

// TimeOfDay is a wall clock time with minute precision.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM" (an optional ":SS" suffix is accepted and ignored).
func ParseTimeOfDay(value string) (TimeOfDay, error) {
	value = strings.TrimSpace(value)
	layouts := []string{"15:04", "15:04:05"}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
		}
	}
	return TimeOfDay{}, fmt.Errorf("recurrence: invalid time of day %q", value)
}

// MustTimeOfDay is ParseTimeOfDay for literals known to be valid.
func MustTimeOfDay(value string) TimeOfDay {
	tod, err := ParseTimeOfDay(value)
	if err != nil {
		panic(err)
	}
	return tod
}

// Minutes returns the number of minutes since midnight.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

// Before reports whether t is strictly earlier than other.
func (t TimeOfDay) Before(other TimeOfDay) bool {
	return t.Minutes() < other.Minutes()
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// On combines the calendar date of day with t in loc.
func (t TimeOfDay) On(day time.Time, loc *time.Location) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, t.Hour, t.Minute, 0, 0, loc)
}

// FrequencyKind is the tag of a Frequency variant.
type FrequencyKind string

const (
	KindDaily   FrequencyKind = "DAILY"
	KindWeekly  FrequencyKind = "WEEKLY"
	KindMonthly FrequencyKind = "MONTHLY"
)

// ParseFrequencyKind accepts the canonical names case-insensitively.
func ParseFrequencyKind(value string) (FrequencyKind, error) {
	switch FrequencyKind(strings.ToUpper(strings.TrimSpace(value))) {
	case KindDaily:
		return KindDaily, nil
	case KindWeekly:
		return KindWeekly, nil
	case KindMonthly:
		return KindMonthly, nil
	}
	return "", fmt.Errorf("recurrence: unknown frequency %q", value)
}

// Frequency is the closed set of repetition patterns: Daily, Weekly and Monthly.
type Frequency interface {
	Kind() FrequencyKind
	isFrequency()
}

// Daily is due on every day of the range.
type Daily struct{}

// Weekly is due on the listed weekdays.
type Weekly struct {
	Weekdays []Weekday
}

// Monthly is due on a fixed day of the month. Months without that day are skipped.
type Monthly struct {
	DayOfMonth int
}

func (Daily) Kind() FrequencyKind   { return KindDaily }
func (Weekly) Kind() FrequencyKind  { return KindWeekly }
func (Monthly) Kind() FrequencyKind { return KindMonthly }

func (Daily) isFrequency()   {}
func (Weekly) isFrequency()  {}
func (Monthly) isFrequency() {}

// NewFrequency builds the variant for kind from loosely typed input, as decoded from storage or requests.
func NewFrequency(kind FrequencyKind, weekdays []int, dayOfMonth int) (Frequency, error) {
	switch kind {
	case KindDaily:
		return Daily{}, nil
	case KindWeekly:
		days := make([]Weekday, 0, len(weekdays))
		for _, d := range weekdays {
			days = append(days, Weekday(d))
		}
		return Weekly{Weekdays: days}, nil
	case KindMonthly:
		return Monthly{DayOfMonth: dayOfMonth}, nil
	}
	return nil, fmt.Errorf("recurrence: unknown frequency %q", kind)
}

// FrequencyParams flattens freq into its kind, weekdays and day of month, the
// inverse of NewFrequency.
func FrequencyParams(freq Frequency) (FrequencyKind, []int, int) {
	switch f := freq.(type) {
	case Daily:
		return KindDaily, nil, 0
	case Weekly:
		days := make([]int, 0, len(f.Weekdays))
		for _, d := range f.WeekdaySet() {
			days = append(days, int(d))
		}
		return KindWeekly, days, 0
	case Monthly:
		return KindMonthly, nil, f.DayOfMonth
	}
	return "", nil, 0
}

// WeekdaySet returns the sorted, de-duplicated weekdays of a Weekly frequency.
func (w Weekly) WeekdaySet() []Weekday {
	out := slices.Clone(w.Weekdays)
	slices.Sort(out)
	return slices.Compact(out)
}

// Has reports whether day is one of the configured weekdays.
func (w Weekly) Has(day Weekday) bool {
	return slices.Contains(w.Weekdays, day)
}

// IsDue reports whether freq schedules an occurrence on day.
func IsDue(freq Frequency, day time.Time) bool {
	switch f := freq.(type) {
	case Daily:
		return true
	case Weekly:
		return f.Has(WeekdayOf(day))
	case Monthly:
		return day.Day() == f.DayOfMonth
	}
	return false
}

// EqualFrequency compares two variants including their parameters.
func EqualFrequency(a, b Frequency) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch fa := a.(type) {
	case Weekly:
		return slices.Equal(fa.WeekdaySet(), b.(Weekly).WeekdaySet())
	case Monthly:
		return fa.DayOfMonth == b.(Monthly).DayOfMonth
	}
	return true
}

// Kind distinguishes explicitly dated rules from those bound to a semester.
type Kind string

const (
	KindRegular       Kind = "REGULAR"
	KindSemesterBound Kind = "SEMESTER"
)

// Rule is a recurring reservation definition.
type Rule struct {
	ID             string
	Identification string
	Kind           Kind
	Semester       string
	RoomID         string
	UserID         string
	Purpose        string
	Frequency      Frequency
	StartTime      TimeOfDay
	EndTime        TimeOfDay
	StartDate      time.Time
	EndDate        time.Time
	Exceptions     []time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      *time.Time
	DeletedBy      *string
}

// Active reports whether the rule has not been soft-deleted.
func (r Rule) Active() bool {
	return r.DeletedAt == nil
}

// IsException reports whether day is listed in the rule's exception dates.
func (r Rule) IsException(day time.Time) bool {
	day = DateOf(day)
	for _, ex := range r.Exceptions {
		if DateOf(ex).Equal(day) {
			return true
		}
	}
	return false
}

// AddExceptions merges dates into the exception set, keeping it sorted and unique.
func (r *Rule) AddExceptions(dates ...time.Time) {
	r.Exceptions = NormalizeDates(append(r.Exceptions, dates...))
}

// Occurrence is one concrete booking produced from a rule.
type Occurrence struct {
	RuleID  string
	RoomID  string
	UserID  string
	Purpose string
	Start   time.Time
	End     time.Time
}

// DateOf truncates t to its calendar date at midnight UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses an ISO calendar date (YYYY-MM-DD).
func ParseDate(value string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("recurrence: invalid date %q", value)
	}
	return t, nil
}

// MustDate is ParseDate for literals known to be valid.
func MustDate(value string) time.Time {
	d, err := ParseDate(value)
	if err != nil {
		panic(err)
	}
	return d
}

// NormalizeDates truncates, sorts and de-duplicates dates.
func NormalizeDates(dates []time.Time) []time.Time {
	if len(dates) == 0 {
		return nil
	}
	out := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		out = append(out, DateOf(d))
	}
	slices.SortFunc(out, func(a, b time.Time) int { return a.Compare(b) })
	return slices.CompactFunc(out, func(a, b time.Time) bool { return a.Equal(b) })
}
