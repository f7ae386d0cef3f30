package models

import "time"

const (
	TeamRoleMember = `member`
	TeamRoleLead   = `lead`
	TeamRoleAdmin  = `team_admin`
)

type Team struct {
	ID             int       `json:"id" db:"id"`
	OrganizationID int       `json:"organizationId" db:"organization_id"`
	Name           string    `json:"name" db:"name"`
	Description    string    `json:"description" db:"description"`
	Active         bool      `json:"isActive" db:"is_active"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time `json:"updatedAt" db:"updated_at"`
}

type TeamMember struct {
	ID       int    `json:"id" db:"id"`
	TeamID   int    `json:"teamId" db:"team_id"`
	UserID   int    `json:"userId" db:"user_id"`
	Role     string `json:"role" db:"role"`
	Active   bool   `json:"isActive" db:"is_active"`
	Priority *int   `json:"priority" db:"priority"`
}

// MemberSchedule bundles a team member with their availability rules and
// current bookings; the unit TeamAggregator and AssignmentEngine consume.
type MemberSchedule struct {
	User     User
	Member   TeamMember
	Rules    []AvailabilityRule
	Bookings []Booking
}

// TeamSlot is one member's offering within an aggregated team view.
// Deliberately not deduplicated across members.
type TeamSlot struct {
	UserID             int       `json:"userId"`
	UserName           string    `json:"userName"`
	Start              time.Time `json:"start"`
	End                time.Time `json:"end"`
	Available          bool      `json:"available"`
	MeetingType        string    `json:"meetingType"`
	MeetingDescription string    `json:"meetingDescription"`
	MeetingLocation    string    `json:"meetingLocation"`
	SlotDuration       int       `json:"slotDuration"`
}

type TeamAvailability struct {
	TeamID   int        `json:"teamId"`
	TeamName string     `json:"teamName"`
	Date     string     `json:"date"`
	Slots    []TeamSlot `json:"availableSlots"`
}

type TeamSummary struct {
	ID          int    `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	Description string `json:"description" db:"description"`
	MemberCount int    `json:"memberCount" db:"member_count"`
}
