package models

import (
	"time"
)

// Day-of-week convention is 0=Monday .. 6=Sunday everywhere in the engine.

type RecurrencePattern string

const (
	PatternDaily   RecurrencePattern = "daily"
	PatternWeekly  RecurrencePattern = "weekly"
	PatternMonthly RecurrencePattern = "monthly"
)

// AvailabilityRule is a host's recurring availability declaration. A rule
// with an empty pattern is a standing weekly rule that repeats indefinitely;
// Recurrence() normalizes that so callers never branch on the empty case.
type AvailabilityRule struct {
	ID                  int               `json:"id" db:"id"`
	UserID              int               `json:"userId" db:"user_id"`
	OrganizationID      int               `json:"organizationId" db:"organization_id"`
	DayOfWeek           int               `json:"dayOfWeek" db:"day_of_week"`
	StartTime           string            `json:"startTime" db:"start_time"` // "HH:MM"
	EndTime             string            `json:"endTime" db:"end_time"`     // "HH:MM"
	Active              bool              `json:"isActive" db:"is_active"`
	Pattern             RecurrencePattern `json:"recurringPattern" db:"recurring_pattern"`
	RecurringDays       IntSlice          `json:"recurringDays" db:"recurring_days"`
	RecurringEndDate    *time.Time        `json:"recurringEndDate" db:"recurring_end_date"`
	BufferBeforeMinutes int               `json:"bufferBeforeMinutes" db:"buffer_before_minutes"`
	BufferAfterMinutes  int               `json:"bufferAfterMinutes" db:"buffer_after_minutes"`
	MinNoticeHours      int               `json:"minNoticeHours" db:"min_notice_hours"`
	MaxBookingDays      int               `json:"maxBookingDays" db:"max_booking_days"`
	SlotDurationMinutes int               `json:"slotDurationMinutes" db:"slot_duration_minutes"`
	MeetingType         string            `json:"meetingType" db:"meeting_type"`
	MeetingDescription  string            `json:"meetingDescription" db:"meeting_description"`
	MeetingLocation     string            `json:"meetingLocation" db:"meeting_location"`
	MeetingURL          string            `json:"meetingUrl" db:"meeting_url"`
	CreatedAt           time.Time         `json:"createdAt" db:"created_at"`
	UpdatedAt           time.Time         `json:"updatedAt" db:"updated_at"`
}

// Recurrence returns the effective pattern and end date for the rule.
// "No recurrence" means weekly forever, carried over from the source system.
func (r AvailabilityRule) Recurrence() (RecurrencePattern, *time.Time) {
	if r.Pattern == "" {
		return PatternWeekly, nil
	}
	return r.Pattern, r.RecurringEndDate
}

// BufferBefore and BufferAfter as durations.
func (r AvailabilityRule) BufferBefore() time.Duration {
	return time.Duration(r.BufferBeforeMinutes) * time.Minute
}

func (r AvailabilityRule) BufferAfter() time.Duration {
	return time.Duration(r.BufferAfterMinutes) * time.Minute
}

func (r AvailabilityRule) SlotDuration() time.Duration {
	return time.Duration(r.SlotDurationMinutes) * time.Minute
}

type AvailabilityRuleRequest struct {
	ID                  *int               `json:"id" db:"id"`
	DayOfWeek           *int               `json:"dayOfWeek" db:"day_of_week"`
	StartTime           *string            `json:"startTime" db:"start_time"`
	EndTime             *string            `json:"endTime" db:"end_time"`
	Active              *bool              `json:"isActive" db:"is_active"`
	Pattern             *RecurrencePattern `json:"recurringPattern" db:"recurring_pattern"`
	RecurringDays       *IntSlice          `json:"recurringDays" db:"recurring_days"`
	RecurringEndDate    *time.Time         `json:"recurringEndDate" db:"recurring_end_date"`
	BufferBeforeMinutes *int               `json:"bufferBeforeMinutes" db:"buffer_before_minutes"`
	BufferAfterMinutes  *int               `json:"bufferAfterMinutes" db:"buffer_after_minutes"`
	MinNoticeHours      *int               `json:"minNoticeHours" db:"min_notice_hours"`
	MaxBookingDays      *int               `json:"maxBookingDays" db:"max_booking_days"`
	SlotDurationMinutes *int               `json:"slotDurationMinutes" db:"slot_duration_minutes"`
	MeetingType         *string            `json:"meetingType" db:"meeting_type"`
	MeetingDescription  *string            `json:"meetingDescription" db:"meeting_description"`
	MeetingLocation     *string            `json:"meetingLocation" db:"meeting_location"`
	MeetingURL          *string            `json:"meetingUrl" db:"meeting_url"`
}

// TimeWindow is one concrete bookable range expanded from a rule for a
// single date. Windows from different rules are never merged so each keeps
// its own meeting metadata.
type TimeWindow struct {
	Start time.Time
	End   time.Time
	Rule  AvailabilityRule
}

// Slot is ephemeral: computed per request, never persisted.
type Slot struct {
	Date      string    `json:"date"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	HostID    int       `json:"hostId"`
	RuleID    int       `json:"ruleId"`
	Available bool      `json:"available"`
}
