package events

import (
	"time"

	"github.com/warp/benefits-engine/generic"
)

// DaysIn counts the calendar days of e that fall inside p, both ends
// inclusive. Malformed events count zero.
func (e LeaveEvent) DaysIn(p generic.Period) int {
	span, err := e.Period()
	if err != nil {
		return 0
	}
	shared, ok := span.Intersect(p)
	if !ok {
		return 0
	}
	return shared.DayCount(time.UTC)
}

// AbsenceDays sums DaysIn over leaves. Overlapping leaves are not
// deduplicated; OverlapValidator keeps them from being stored.
func AbsenceDays(leaves []LeaveEvent, month generic.Period) int {
	total := 0
	for _, e := range leaves {
		total += e.DaysIn(month)
	}
	return total
}
