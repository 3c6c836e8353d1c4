package generic

// SuggestWorkingDays counts Monday to Friday dates in month, minus holidays
// that fall on a weekday, minus extra manually declared days off. The result
// never goes below zero.
func SuggestWorkingDays(month MonthKey, holidays []Holiday, extra int) int {
	off := make(map[Date]bool, len(holidays))
	for _, h := range holidays {
		if d, ok := h.OccursIn(month.Year()); ok {
			off[d] = true
		}
	}

	count := 0
	for _, d := range month.Period().Days() {
		if d.IsWeekend() || off[d] {
			continue
		}
		count++
	}

	count -= extra
	if count < 0 {
		return 0
	}
	return count
}
