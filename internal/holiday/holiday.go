// Package holiday answers whether a calendar date is a national holiday.
package holiday

import (
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/br"
)

// Provider reports national holidays. Implementations are safe for concurrent use.
type Provider interface {
	IsHoliday(day time.Time) bool
}

// BlackConsciousnessDay is a national holiday since 2024 (Lei 14.759/2023).
var BlackConsciousnessDay = &cal.Holiday{
	Name:      "Dia Nacional de Zumbi e da Consciência Negra",
	Type:      cal.ObservancePublic,
	Month:     time.November,
	Day:       20,
	StartYear: 2024,
	Func:      cal.CalcDayOfMonth,
}

// NationalHolidays lists the public holidays observed nationwide in Brazil.
var NationalHolidays = []*cal.Holiday{
	br.AnoNovo,
	br.SextaFeiraSanta,
	br.Tiradentes,
	br.Trabalhador,
	br.Independencia,
	br.NossaSenhoraAparecida,
	br.Finados,
	br.Republica,
	BlackConsciousnessDay,
	br.Natal,
}

// OptionalHolidays are the "pontos facultativos" most universities close for.
var OptionalHolidays = []*cal.Holiday{
	br.Carnaval,
	br.CorpusChristi,
}

// Calendar is a Provider backed by a rickar/cal business calendar.
type Calendar struct {
	calendar *cal.BusinessCalendar
}

// NewCalendar builds a calendar observing the given holidays.
func NewCalendar(holidays ...*cal.Holiday) *Calendar {
	c := cal.NewBusinessCalendar()
	c.AddHoliday(holidays...)
	return &Calendar{calendar: c}
}

// NewBrazil builds the national calendar. Optional holidays such as
// Carnival and Corpus Christi are observed when withOptional is set.
func NewBrazil(withOptional bool) *Calendar {
	holidays := append([]*cal.Holiday{}, NationalHolidays...)
	if withOptional {
		holidays = append(holidays, OptionalHolidays...)
	}
	return NewCalendar(holidays...)
}

// IsHoliday reports whether day, taken as a calendar date, is an observed holiday.
func (c *Calendar) IsHoliday(day time.Time) bool {
	if c == nil || c.calendar == nil {
		return false
	}
	y, m, d := day.Date()
	_, observed, _ := c.calendar.IsHoliday(time.Date(y, m, d, 12, 0, 0, 0, time.UTC))
	return observed
}

// Name returns the holiday observed on day, or an empty string.
func (c *Calendar) Name(day time.Time) string {
	if c == nil || c.calendar == nil {
		return ""
	}
	y, m, d := day.Date()
	_, observed, h := c.calendar.IsHoliday(time.Date(y, m, d, 12, 0, 0, 0, time.UTC))
	if !observed || h == nil {
		return ""
	}
	return h.Name
}

// Fixed is a Provider over an explicit set of dates.
type Fixed map[string]struct{}

// NewFixed builds a Fixed provider from ISO dates (YYYY-MM-DD).
func NewFixed(dates ...string) Fixed {
	f := make(Fixed, len(dates))
	for _, d := range dates {
		f[d] = struct{}{}
	}
	return f
}

// IsHoliday reports whether day is in the set.
func (f Fixed) IsHoliday(day time.Time) bool {
	_, ok := f[day.Format(time.DateOnly)]
	return ok
}

// None observes no holidays.
type None struct{}

// IsHoliday always returns false.
func (None) IsHoliday(time.Time) bool { return false }
