package generic

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

// =============================================================================
// DATE - Whole-day calendar date
// =============================================================================

// DateLayout is the wire format for every date in the system.
const DateLayout = "2006-01-02"

// Date is a calendar day. The wrapped time is always midnight UTC.
type Date struct {
	time.Time
}

// NewDate builds a Date in UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate accepts YYYY-MM-DD or a full RFC3339 timestamp.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return Date{Time: t}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return NewDate(t.Year(), t.Month(), t.Day()), nil
	}
	return Date{}, ErrInvalidDate
}

// Comparison
func (d Date) Before(other Date) bool        { return d.Time.Before(other.Time) }
func (d Date) After(other Date) bool         { return d.Time.After(other.Time) }
func (d Date) Equal(other Date) bool         { return d.Time.Equal(other.Time) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.Before(other) }

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{Time: d.Time.AddDate(0, 0, n)} }

// Noon returns the date at 12:00 in loc. Iterating days from a noon anchor
// keeps day counts stable across daylight-saving transitions.
func (d Date) Noon(loc *time.Location) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 12, 0, 0, 0, loc)
}

func (d Date) IsWeekend() bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func (d Date) MonthKey() MonthKey { return NewMonthKey(d.Year(), d.Month()) }

func (d Date) String() string {
	if d.Time.IsZero() {
		return ""
	}
	return d.Time.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MinDate returns the earlier of a and b.
func MinDate(a, b Date) Date {
	if a.Before(b) {
		return a
	}
	return b
}

// MaxDate returns the later of a and b.
func MaxDate(a, b Date) Date {
	if a.After(b) {
		return a
	}
	return b
}

// =============================================================================
// HOLIDAY CALENDAR
// =============================================================================

// Holiday is a non-working day. Recurring holidays repeat every year on the
// same month and day.
type Holiday struct {
	ID        string
	Date      Date
	Name      string
	Recurring bool
}

// OccursIn reports the concrete date of h within year. A recurring Feb 29
// does not occur in common years.
func (h Holiday) OccursIn(year int) (Date, bool) {
	if !h.Recurring {
		return h.Date, h.Date.Year() == year
	}
	d := NewDate(year, h.Date.Month(), h.Date.Day())
	return d, d.Month() == h.Date.Month()
}

// HolidayCalendar provides holiday lookup for one year: recurring holidays
// plus those dated in that year.
type HolidayCalendar interface {
	HolidaysIn(ctx context.Context, year int) ([]Holiday, error)
}
