package domain

import "time"

// DaySchedule is the open interval for a single weekday, both ends in
// "15:04" local wall-clock form. Close is exclusive.
type DaySchedule struct {
	Open  string
	Close string
}

// BusinessHours is the weekly schedule. A weekday with no entry is treated
// as entirely outside business hours. When Enabled is false the schedule is
// ignored and every time counts as within hours.
type BusinessHours struct {
	Enabled bool
	Days    map[time.Weekday]DaySchedule
}

// Within reports whether t falls inside the configured hours for its weekday.
func (h BusinessHours) Within(t time.Time) bool {
	if !h.Enabled {
		return true
	}

	day, ok := h.Days[t.Weekday()]
	if !ok {
		return false
	}

	open, err := parseWallClock(t, day.Open)
	if err != nil {
		return false
	}
	close, err := parseWallClock(t, day.Close)
	if err != nil {
		return false
	}

	return !t.Before(open) && t.Before(close)
}

func parseWallClock(day time.Time, hhmm string) (time.Time, error) {
	parsed, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(),
		parsed.Hour(), parsed.Minute(), 0, 0, day.Location()), nil
}
