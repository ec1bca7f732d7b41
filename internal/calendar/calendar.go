// Package calendar does day math in the business timezone.
//
// Every instant is first snapped to local midnight in the business zone, then
// compared in UTC date space. Doing the comparison on (year, month, day)
// triples keeps daylight-saving transitions from skewing a difference by a
// fractional day.
package calendar

import "time"

// StartOfDay returns local midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

// DayOffset returns the whole number of calendar days from now's day to
// target's day, both taken in loc. Negative when target is in the past.
func DayOffset(target, now time.Time, loc *time.Location) int {
	t := utcDay(target, loc)
	n := utcDay(now, loc)
	return int(t.Sub(n) / (24 * time.Hour))
}

// DayKey formats t's calendar day in loc as YYYY-MM-DD.
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

// AddDays returns local midnight n calendar days after t's day in loc.
// n may be negative.
func AddDays(t time.Time, n int, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day()+n, 0, 0, 0, 0, loc)
}

// utcDay rebuilds the local calendar day as a UTC midnight so that a plain
// Sub is always an exact multiple of 24h regardless of DST.
func utcDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
