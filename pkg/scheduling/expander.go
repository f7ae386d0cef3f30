package scheduling

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bcal-io/bcal/pkg/models"
)

// Weekday maps time.Weekday onto the engine's 0=Monday..6=Sunday convention.
func Weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// ParseClock parses a "HH:MM" time-of-day string.
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}

// Combine anchors a time-of-day string on the given date, keeping the
// date's location.
func Combine(date time.Time, clock string) (time.Time, error) {
	h, m, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	y, mo, d := date.Date()
	return time.Date(y, mo, d, h, m, 0, 0, date.Location()), nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// matches decides whether a rule produces a window on the target date.
func matches(rule models.AvailabilityRule, target time.Time) bool {
	pattern, end := rule.Recurrence()
	day := dateOnly(target)
	if end != nil && day.After(dateOnly(*end)) {
		return false
	}
	switch pattern {
	case models.PatternDaily:
		return !day.Before(dateOnly(rule.CreatedAt))
	case models.PatternWeekly:
		if len(rule.RecurringDays) > 0 {
			return rule.RecurringDays.Contains(Weekday(target))
		}
		return Weekday(target) == rule.DayOfWeek
	case models.PatternMonthly:
		anchor := rule.CreatedAt
		if anchor.IsZero() {
			return Weekday(target) == rule.DayOfWeek
		}
		return target.Day() == anchor.Day()
	default:
		return Weekday(target) == rule.DayOfWeek
	}
}

// Expand turns a host's availability rules into the concrete windows for a
// single date. Overlapping windows from different rules are kept separate so
// each carries its own meeting metadata; output is ordered by rule creation
// (id ascending).
func Expand(rules []models.AvailabilityRule, target time.Time) []models.TimeWindow {
	windows := make([]models.TimeWindow, 0, len(rules))
	for _, rule := range rules {
		if !rule.Active {
			continue
		}
		if !matches(rule, target) {
			continue
		}
		start, err := Combine(target, rule.StartTime)
		if err != nil {
			continue
		}
		end, err := Combine(target, rule.EndTime)
		if err != nil {
			continue
		}
		if !start.Before(end) {
			continue
		}
		windows = append(windows, models.TimeWindow{Start: start, End: end, Rule: rule})
	}
	sort.SliceStable(windows, func(i, j int) bool {
		return windows[i].Rule.ID < windows[j].Rule.ID
	})
	return windows
}
