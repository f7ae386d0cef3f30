package scheduling

import (
	"time"

	"github.com/bcal-io/bcal/pkg/models"
)

// AggregateTeam runs expansion and slot generation independently for every
// active member and returns the union tagged with member identity and rule
// metadata. Entries are deliberately not merged or deduplicated across
// members: a guest sees each member's own offering for the date.
func AggregateTeam(team models.Team, members []models.MemberSchedule, date, now time.Time) models.TeamAvailability {
	result := models.TeamAvailability{
		TeamID:   team.ID,
		TeamName: team.Name,
		Date:     date.Format(dateLayout),
		Slots:    []models.TeamSlot{},
	}
	for _, m := range members {
		if !m.User.Active || !m.Member.Active {
			continue
		}
		rulesByID := make(map[int]models.AvailabilityRule, len(m.Rules))
		for _, r := range m.Rules {
			rulesByID[r.ID] = r
		}
		slots := Generate(Expand(m.Rules, date), m.Bookings, now)
		for _, s := range slots {
			rule := rulesByID[s.RuleID]
			result.Slots = append(result.Slots, models.TeamSlot{
				UserID:             m.User.ID,
				UserName:           m.User.FullName(),
				Start:              s.Start,
				End:                s.End,
				Available:          s.Available,
				MeetingType:        rule.MeetingType,
				MeetingDescription: rule.MeetingDescription,
				MeetingLocation:    rule.MeetingLocation,
				SlotDuration:       rule.SlotDurationMinutes,
			})
		}
	}
	return result
}
