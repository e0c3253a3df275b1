package sheetsync

import (
	"fmt"
	"strconv"
	"time"
)

const dateLayout = "2006-01-02"

// clockOf returns the HH:mm of a normalized sheet time, or "" when the time
// is absent, "TBA" or free text.
func clockOf(t *string) string {
	if t == nil || !hhmmRe.MatchString(*t) {
		return ""
	}
	return *t
}

// storedClock returns the local HH:mm of a stored start, or "" for local
// midnight, which stands for "no time of day".
func storedClock(start time.Time, loc *time.Location) string {
	local := start.In(loc)
	if local.Hour() == 0 && local.Minute() == 0 {
		return ""
	}
	return local.Format("15:04")
}

// dayBounds returns the first and last instant of a YYYY-MM-DD date in loc.
func dayBounds(date string, loc *time.Location) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation(dateLayout, date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	end := start.AddDate(0, 0, 1).Add(-time.Microsecond)
	return start, end, nil
}

// startInstant combines a sheet date and time into the stored start_date.
// Without a real HH:mm the start is local midnight.
func startInstant(date string, t *string, loc *time.Location) (time.Time, error) {
	start, _, err := dayBounds(date, loc)
	if err != nil {
		return time.Time{}, err
	}
	clock := clockOf(t)
	if clock == "" {
		return start, nil
	}
	hours, _ := strconv.Atoi(clock[:2])
	minutes, _ := strconv.Atoi(clock[3:])
	return time.Date(start.Year(), start.Month(), start.Day(), hours, minutes, 0, 0, loc), nil
}
