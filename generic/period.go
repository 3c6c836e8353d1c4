package generic

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// PERIOD - Inclusive day range
// =============================================================================

// Period is the inclusive range [Start, End] at day granularity.
type Period struct {
	Start Date
	End   Date
}

// NewPeriod validates that end is not before start.
func NewPeriod(start, end Date) (Period, error) {
	if end.Before(start) {
		return Period{}, ErrInvalidPeriod
	}
	return Period{Start: start, End: end}, nil
}

// Contains returns true if d is within [Start, End].
func (p Period) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

// Overlaps uses inclusive day comparison: periods sharing a single boundary
// day overlap.
func (p Period) Overlaps(other Period) bool {
	return p.Start.BeforeOrEqual(other.End) && p.End.AfterOrEqual(other.Start)
}

// Intersect returns the shared days of p and other.
func (p Period) Intersect(other Period) (Period, bool) {
	if !p.Overlaps(other) {
		return Period{}, false
	}
	return Period{Start: MaxDate(p.Start, other.Start), End: MinDate(p.End, other.End)}, true
}

// DayCount counts calendar days in the period, both ends included. Days are
// walked from a noon anchor in loc so DST shifts never drop or add a day.
func (p Period) DayCount(loc *time.Location) int {
	if p.End.Before(p.Start) {
		return 0
	}
	if loc == nil {
		loc = time.UTC
	}
	end := p.End.Noon(loc)
	count := 0
	for cur := p.Start.Noon(loc); !cur.After(end); cur = cur.AddDate(0, 0, 1) {
		count++
	}
	return count
}

// Days returns every date in the period.
func (p Period) Days() []Date {
	var days []Date
	for cur := p.Start; cur.BeforeOrEqual(p.End); cur = cur.AddDays(1) {
		days = append(days, cur)
	}
	return days
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// =============================================================================
// MONTH KEY - "YYYY-MM"
// =============================================================================

// MonthKey identifies a calendar month, formatted "YYYY-MM". It is the first
// half of every calculation record key.
type MonthKey string

func NewMonthKey(year int, month time.Month) MonthKey {
	return MonthKey(fmt.Sprintf("%04d-%02d", year, int(month)))
}

// ParseMonthKey validates and normalizes a "YYYY-MM" string.
func ParseMonthKey(s string) (MonthKey, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 2 || len(parts[0]) != 4 || len(parts[1]) != 2 {
		return "", fmt.Errorf("%w: %q", ErrInvalidMonthKey, s)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidMonthKey, s)
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil || month < 1 || month > 12 {
		return "", fmt.Errorf("%w: %q", ErrInvalidMonthKey, s)
	}
	return NewMonthKey(year, time.Month(month)), nil
}

// CurrentMonth returns the month key of now.
func CurrentMonth(now time.Time) MonthKey {
	return NewMonthKey(now.Year(), now.Month())
}

func (m MonthKey) parts() (int, time.Month) {
	var year, month int
	fmt.Sscanf(string(m), "%d-%d", &year, &month)
	return year, time.Month(month)
}

func (m MonthKey) Year() int {
	y, _ := m.parts()
	return y
}

func (m MonthKey) Month() time.Month {
	_, mo := m.parts()
	return mo
}

func (m MonthKey) String() string { return string(m) }

// Valid reports whether m round-trips through ParseMonthKey.
func (m MonthKey) Valid() bool {
	parsed, err := ParseMonthKey(string(m))
	return err == nil && parsed == m
}

// InYear reports whether the key starts with the given year.
func (m MonthKey) InYear(year int) bool {
	return strings.HasPrefix(string(m), fmt.Sprintf("%04d-", year))
}

func (m MonthKey) AddMonths(n int) MonthKey {
	y, mo := m.parts()
	t := time.Date(y, mo, 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	return NewMonthKey(t.Year(), t.Month())
}

func (m MonthKey) Next() MonthKey { return m.AddMonths(1) }
func (m MonthKey) Prev() MonthKey { return m.AddMonths(-1) }

// Start is day 1 of the month.
func (m MonthKey) Start() Date {
	y, mo := m.parts()
	return NewDate(y, mo, 1)
}

// End is the last day of the month.
func (m MonthKey) End() Date {
	return m.Next().Start().AddDays(-1)
}

// Period is [Start, End].
func (m MonthKey) Period() Period {
	return Period{Start: m.Start(), End: m.End()}
}

func (m *MonthKey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseMonthKey(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
