package schedule

import (
	"fmt"
	"strings"
	"time"
)

// Window is a recurring weekly busy interval. Start and End are minutes
// since midnight, inclusive at both ends.
type Window struct {
	Days  map[time.Weekday]bool
	Start int
	End   int
}

var dayAliases = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tues": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thur": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// Parse parses a schedule entry of the form "<days> <start> <end>", where
// days is "weekdays", "weekends", or a comma-separated weekday list, and
// start/end are HH:MM clock times.
func Parse(entry string) (Window, error) {
	fields := strings.Fields(strings.TrimSpace(entry))
	if len(fields) != 3 {
		return Window{}, fmt.Errorf("schedule entry %q: want \"days start end\"", entry)
	}

	days, err := parseDays(fields[0])
	if err != nil {
		return Window{}, fmt.Errorf("schedule entry %q: %w", entry, err)
	}

	start, err := parseClock(fields[1])
	if err != nil {
		return Window{}, fmt.Errorf("schedule entry %q: %w", entry, err)
	}
	end, err := parseClock(fields[2])
	if err != nil {
		return Window{}, fmt.Errorf("schedule entry %q: %w", entry, err)
	}
	if end < start {
		return Window{}, fmt.Errorf("schedule entry %q: end before start", entry)
	}

	return Window{Days: days, Start: start, End: end}, nil
}

func parseDays(raw string) (map[time.Weekday]bool, error) {
	days := make(map[time.Weekday]bool)
	switch strings.ToLower(raw) {
	case "weekdays":
		for d := time.Monday; d <= time.Friday; d++ {
			days[d] = true
		}
		return days, nil
	case "weekends":
		days[time.Saturday] = true
		days[time.Sunday] = true
		return days, nil
	}

	for _, name := range strings.Split(raw, ",") {
		day, ok := dayAliases[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", name)
		}
		days[day] = true
	}
	if len(days) == 0 {
		return nil, fmt.Errorf("empty day list")
	}
	return days, nil
}

func parseClock(raw string) (int, error) {
	t, err := time.Parse("15:04", raw)
	if err != nil {
		return 0, fmt.Errorf("bad clock time %q", raw)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Matches reports whether t falls inside the window: its weekday is in the
// day set and its time of day lies in [Start, End]. Seconds past the End
// minute fall outside the window.
func (w Window) Matches(t time.Time) bool {
	if !w.Days[t.Weekday()] {
		return false
	}
	minute := t.Hour()*60 + t.Minute()
	if minute == w.End {
		// Inclusive only at the exact top of the minute.
		return t.Second() == 0 && t.Nanosecond() == 0
	}
	return minute >= w.Start && minute < w.End
}

// AnyMatch reports whether any of the raw schedule entries matches t.
// Malformed entries are skipped rather than trusted; the returned slice
// carries their parse errors so callers can log them.
func AnyMatch(entries []string, t time.Time) (bool, []error) {
	var errs []error
	matched := false
	for _, entry := range entries {
		w, err := Parse(entry)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if w.Matches(t) {
			matched = true
		}
	}
	return matched, errs
}
