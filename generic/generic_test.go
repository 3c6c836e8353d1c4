package generic_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/benefits-engine/generic"
)

// =============================================================================
// MONEY
// =============================================================================

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"12.50", "12.5", false},
		{"12,50", "12.5", false},
		{"  7 ", "7", false},
		{"-25", "-25", false},
		{"", "", true},
		{"abc", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := generic.ParseMoney(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, generic.ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestDiscountFactor(t *testing.T) {
	assert.True(t, generic.DiscountFactor(generic.MoneyFromInt(10)).Equal(decimal.RequireFromString("0.9")))
	assert.True(t, generic.DiscountFactor(decimal.Zero).Equal(decimal.NewFromInt(1)))
	assert.True(t, generic.DiscountFactor(generic.MoneyFromInt(100)).IsZero())
}

func TestMoneyHelpers(t *testing.T) {
	assert.True(t, generic.Percent(generic.MoneyFromInt(3000), generic.MoneyFromInt(6)).Equal(generic.MoneyFromInt(180)))
	assert.True(t, generic.MinDecimal(generic.MoneyFromInt(220), generic.MoneyFromInt(180)).Equal(generic.MoneyFromInt(180)))
	assert.True(t, generic.Sum(generic.Money(1.5), generic.Money(2.25)).Equal(decimal.RequireFromString("3.75")))
}

// =============================================================================
// DATE & PERIOD
// =============================================================================

func TestParseDate(t *testing.T) {
	d, err := generic.ParseDate("2025-04-07")
	require.NoError(t, err)
	assert.Equal(t, generic.NewDate(2025, time.April, 7), d)

	d, err = generic.ParseDate("2025-04-07T23:30:00-03:00")
	require.NoError(t, err)
	assert.Equal(t, "2025-04-07", d.String(), "the calendar day as written is kept")

	_, err = generic.ParseDate("07/04/2025")
	assert.ErrorIs(t, err, generic.ErrInvalidDate)
}

func TestDate_JSON(t *testing.T) {
	var d generic.Date
	require.NoError(t, json.Unmarshal([]byte(`"2025-12-31"`), &d))
	out, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `"2025-12-31"`, string(out))

	require.NoError(t, json.Unmarshal([]byte(`""`), &d))
	assert.True(t, d.IsZero())
}

func TestNewPeriod_EndBeforeStart(t *testing.T) {
	_, err := generic.NewPeriod(generic.NewDate(2025, 4, 10), generic.NewDate(2025, 4, 9))
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)
}

func TestPeriod_Overlaps_Inclusive(t *testing.T) {
	a := generic.Period{Start: generic.NewDate(2025, 4, 1), End: generic.NewDate(2025, 4, 10)}
	b := generic.Period{Start: generic.NewDate(2025, 4, 10), End: generic.NewDate(2025, 4, 12)}
	c := generic.Period{Start: generic.NewDate(2025, 4, 11), End: generic.NewDate(2025, 4, 12)}

	assert.True(t, a.Overlaps(b), "one shared day is an overlap")
	assert.False(t, a.Overlaps(c))

	shared, ok := a.Intersect(b)
	require.True(t, ok)
	assert.Equal(t, 1, shared.DayCount(time.UTC))
}

func TestPeriod_DayCount_AcrossDST(t *testing.T) {
	// Clocks move in March in New York; every calendar day must still count once.
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata not available")
	}
	p := generic.Period{Start: generic.NewDate(2025, 3, 1), End: generic.NewDate(2025, 3, 31)}

	assert.Equal(t, 31, p.DayCount(loc))
	assert.Equal(t, 31, p.DayCount(time.UTC))
	assert.Len(t, p.Days(), 31)
}

// =============================================================================
// MONTH KEY
// =============================================================================

func TestParseMonthKey(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"2025-04", false},
		{" 2025-12 ", false},
		{"2025-4", true},
		{"2025-13", true},
		{"2025-00", true},
		{"25-04", true},
		{"2025/04", true},
		{"", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, err := generic.ParseMonthKey(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, generic.ErrInvalidMonthKey)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMonthKey_Arithmetic(t *testing.T) {
	m := generic.MonthKey("2025-12")

	assert.Equal(t, generic.MonthKey("2026-01"), m.Next())
	assert.Equal(t, generic.MonthKey("2025-11"), m.Prev())
	assert.Equal(t, generic.MonthKey("2024-12"), m.AddMonths(-12))
	assert.Equal(t, 2025, m.Year())
	assert.Equal(t, time.December, m.Month())
	assert.True(t, m.InYear(2025))
	assert.False(t, m.InYear(2026))
}

func TestMonthKey_Bounds(t *testing.T) {
	assert.Equal(t, "2024-02-29", generic.MonthKey("2024-02").End().String())
	assert.Equal(t, "2025-02-28", generic.MonthKey("2025-02").End().String())
	assert.Equal(t, "2025-04-01", generic.MonthKey("2025-04").Start().String())
	assert.Equal(t, generic.MonthKey("2025-04"), generic.CurrentMonth(time.Date(2025, 4, 30, 23, 0, 0, 0, time.UTC)))
}

func TestMonthKey_UnmarshalJSON_Validates(t *testing.T) {
	var m generic.MonthKey
	assert.NoError(t, json.Unmarshal([]byte(`"2025-04"`), &m))
	assert.Error(t, json.Unmarshal([]byte(`"April"`), &m))
}

// =============================================================================
// WORKING DAY SUGGESTION
// =============================================================================

func TestSuggestWorkingDays(t *testing.T) {
	// April 2025 has 22 weekdays.
	april := generic.MonthKey("2025-04")
	tiradentes := generic.Holiday{ID: "h1", Date: generic.NewDate(2019, 4, 21), Name: "Tiradentes", Recurring: true}
	goodFriday := generic.Holiday{ID: "h2", Date: generic.NewDate(2025, 4, 18), Name: "Sexta-feira Santa"}
	lastYear := generic.Holiday{ID: "h3", Date: generic.NewDate(2024, 4, 15), Name: "Old"}
	sunday := generic.Holiday{ID: "h4", Date: generic.NewDate(2025, 4, 6), Name: "Domingo"}

	tests := []struct {
		name     string
		holidays []generic.Holiday
		extra    int
		want     int
	}{
		{"weekdays only", nil, 0, 22},
		{"recurring and fixed holidays", []generic.Holiday{tiradentes, goodFriday}, 0, 20},
		{"other year ignored", []generic.Holiday{lastYear}, 0, 22},
		{"weekend holiday ignored", []generic.Holiday{sunday}, 0, 22},
		{"extra days off", []generic.Holiday{goodFriday}, 3, 18},
		{"never negative", nil, 40, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, generic.SuggestWorkingDays(april, tt.holidays, tt.extra))
		})
	}
}

func TestSuggestWorkingDays_RecurringLeapDay(t *testing.T) {
	// GIVEN: A recurring holiday first recorded on Feb 29
	leapDay := generic.Holiday{ID: "h1", Date: generic.NewDate(2024, 2, 29), Name: "Bissexto", Recurring: true}
	holidays := []generic.Holiday{leapDay}

	// THEN: Common years keep every weekday, March 1 included
	assert.Equal(t, 23, generic.SuggestWorkingDays("2027-03", holidays, 0))
	assert.Equal(t, 20, generic.SuggestWorkingDays("2027-02", holidays, 0))

	// AND: Leap years observe it (Feb 29, 2028 is a Tuesday)
	assert.Equal(t, 20, generic.SuggestWorkingDays("2028-02", holidays, 0))
	_, ok := leapDay.OccursIn(2027)
	assert.False(t, ok)
}

// =============================================================================
// ERROR TAXONOMY
// =============================================================================

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		client   bool
		notFound bool
		conflict bool
	}{
		{"validation", &generic.ValidationError{Field: "name", Message: "required"}, true, false, false},
		{"wrapped working days", fmt.Errorf("run: %w", generic.ErrInvalidWorkingDays), true, false, false},
		{"invalid input child", fmt.Errorf("%w: event", generic.ErrInvalidInput), true, false, false},
		{"not found", &generic.NotFoundError{Kind: "unit", ID: "u"}, false, true, false},
		{"dependents", &generic.DependentsError{Kind: "unit", ID: "u", DependentKind: "locations", DependentCount: 2}, false, false, true},
		{"transition", generic.ErrInvalidTransition, false, false, true},
		{"other", errors.New("disk full"), false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.client, generic.IsClientError(tt.err))
			assert.Equal(t, tt.notFound, generic.IsNotFound(tt.err))
			assert.Equal(t, tt.conflict, generic.IsConflict(tt.err))
		})
	}
}
