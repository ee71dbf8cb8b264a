package domain

import "time"

// Date-range keywords accepted by transaction search.
const (
	RangeToday       = "Today"
	RangeYesterday   = "Yesterday"
	RangeThisWeek    = "This Week"
	RangeThisMonth   = "This Month"
	RangeCustomRange = "Custom Range"
)

// DateRange is an inclusive calendar-date window.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// ResolveDateRange maps a range keyword to concrete dates.
//
// "This Week" means the trailing 7 days, not the calendar week to date;
// that matches the upstream behavior and is kept as-is. Any unrecognized
// keyword resolves to the all-time sentinel window.
func ResolveDateRange(keyword string, customStart, customEnd *time.Time, now time.Time) DateRange {
	today := truncateToDate(now)

	switch keyword {
	case RangeToday:
		return DateRange{Start: today, End: today}
	case RangeYesterday:
		y := today.AddDate(0, 0, -1)
		return DateRange{Start: y, End: y}
	case RangeThisWeek:
		return DateRange{Start: today.AddDate(0, 0, -7), End: today}
	case RangeThisMonth:
		first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
		return DateRange{Start: first, End: today}
	case RangeCustomRange:
		r := DateRange{Start: allTimeStart, End: today}
		if customStart != nil {
			r.Start = truncateToDate(*customStart)
		}
		if customEnd != nil {
			r.End = truncateToDate(*customEnd)
		}
		return r
	default:
		return DateRange{Start: allTimeStart, End: allTimeEnd}
	}
}

var (
	allTimeStart = time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC)
	allTimeEnd   = time.Date(2100, time.December, 31, 0, 0, 0, 0, time.UTC)
)

func truncateToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
