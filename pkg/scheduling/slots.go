package scheduling

import (
	"sort"
	"time"

	"github.com/bcal-io/bcal/pkg/models"
)

const dateLayout = "2006-01-02"

// Generate divides expanded windows into discrete slots of the rule's
// configured duration. Slots that violate notice, lead-time or buffer
// constraints are still emitted with Available=false so callers can render
// a complete picture. Output is ascending by start, ties by rule id.
func Generate(windows []models.TimeWindow, bookings []models.Booking, now time.Time) []models.Slot {
	var slots []models.Slot
	for _, w := range windows {
		dur := w.Rule.SlotDuration()
		if dur <= 0 {
			continue
		}
		for start := w.Start; ; start = start.Add(dur) {
			end := start.Add(dur)
			if end.After(w.End) {
				break
			}
			slots = append(slots, models.Slot{
				Date:      w.Start.Format(dateLayout),
				Start:     start,
				End:       end,
				HostID:    w.Rule.UserID,
				RuleID:    w.Rule.ID,
				Available: available(start, end, w.Rule, bookings, now),
			})
		}
	}
	sort.SliceStable(slots, func(i, j int) bool {
		if slots[i].Start.Equal(slots[j].Start) {
			return slots[i].RuleID < slots[j].RuleID
		}
		return slots[i].Start.Before(slots[j].Start)
	})
	return slots
}

func available(start, end time.Time, rule models.AvailabilityRule, bookings []models.Booking, now time.Time) bool {
	if CheckPolicy(start, rule, now) != nil {
		return false
	}
	return !HasConflict(start, end, bookings, rule)
}
