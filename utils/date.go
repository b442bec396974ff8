package utils

import "time"

func FromUTCToTimezone(utcTime time.Time, timezone string) time.Time {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return utcTime
	}
	return utcTime.In(loc)
}

// FormatOptionalTime renders t in timezone, or "never" when t is nil.
func FormatOptionalTime(t *time.Time, timezone string) string {
	if t == nil {
		return "never"
	}
	return FromUTCToTimezone(*t, timezone).Format(time.RFC3339)
}
