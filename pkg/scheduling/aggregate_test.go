package scheduling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcal-io/bcal/pkg/models"
)

func TestAggregateTeam(t *testing.T) {
	team := models.Team{ID: 5, Name: "Support", Active: true}

	ruleA := weeklyRule(1, 0, "09:00", "11:00")
	ruleA.SlotDurationMinutes = 60
	ruleA.MeetingType = "consultation"
	ruleA.MeetingLocation = "Room 1"

	ruleB := weeklyRule(2, 0, "10:00", "12:00")
	ruleB.SlotDurationMinutes = 60
	ruleB.UserID = 2

	alice := models.MemberSchedule{
		User:   models.User{ID: 1, FirstName: "Alice", LastName: "Hart", Active: true},
		Member: models.TeamMember{TeamID: 5, UserID: 1, Active: true},
		Rules:  []models.AvailabilityRule{ruleA},
	}
	bob := models.MemberSchedule{
		User:   models.User{ID: 2, FirstName: "Bob", LastName: "Stone", Active: true},
		Member: models.TeamMember{TeamID: 5, UserID: 2, Active: true},
		Rules:  []models.AvailabilityRule{ruleB},
	}

	got := AggregateTeam(team, []models.MemberSchedule{alice, bob}, monday, at(6, 0))

	assert.Equal(t, 5, got.TeamID)
	assert.Equal(t, "Support", got.TeamName)
	assert.Equal(t, "2023-06-05", got.Date)
	// Two slots each; the overlapping 10:00 hour is present for both members.
	require.Len(t, got.Slots, 4)

	byUser := map[int]int{}
	for _, s := range got.Slots {
		byUser[s.UserID]++
	}
	assert.Equal(t, 2, byUser[1])
	assert.Equal(t, 2, byUser[2])

	assert.Equal(t, "Alice Hart", got.Slots[0].UserName)
	assert.Equal(t, "consultation", got.Slots[0].MeetingType)
	assert.Equal(t, "Room 1", got.Slots[0].MeetingLocation)
	assert.Equal(t, 60, got.Slots[0].SlotDuration)
}

func TestAggregateTeamSkipsInactive(t *testing.T) {
	team := models.Team{ID: 5, Name: "Support", Active: true}
	rule := weeklyRule(1, 0, "09:00", "10:00")

	inactiveUser := models.MemberSchedule{
		User:   models.User{ID: 1, Active: false},
		Member: models.TeamMember{UserID: 1, Active: true},
		Rules:  []models.AvailabilityRule{rule},
	}
	inactiveMembership := models.MemberSchedule{
		User:   models.User{ID: 2, Active: true},
		Member: models.TeamMember{UserID: 2, Active: false},
		Rules:  []models.AvailabilityRule{rule},
	}

	got := AggregateTeam(team, []models.MemberSchedule{inactiveUser, inactiveMembership}, monday, at(6, 0))
	assert.Empty(t, got.Slots)
}

func TestAggregateTeamMarksBookedSlots(t *testing.T) {
	team := models.Team{ID: 5, Name: "Support", Active: true}
	rule := weeklyRule(1, 0, "09:00", "11:00")
	rule.SlotDurationMinutes = 60

	m := models.MemberSchedule{
		User:     models.User{ID: 1, Active: true},
		Member:   models.TeamMember{UserID: 1, Active: true},
		Rules:    []models.AvailabilityRule{rule},
		Bookings: []models.Booking{booking(at(9, 0), at(10, 0), models.StatusConfirmed)},
	}

	got := AggregateTeam(team, []models.MemberSchedule{m}, monday, at(6, 0))
	require.Len(t, got.Slots, 2)
	assert.False(t, got.Slots[0].Available)
	assert.True(t, got.Slots[1].Available)
}
