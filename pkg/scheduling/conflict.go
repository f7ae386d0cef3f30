package scheduling

import (
	"time"

	"github.com/bcal-io/bcal/pkg/models"
)

// Overlaps is the half-open interval intersection test: [a,b) and [c,d)
// intersect iff a < d && c < b, so back-to-back intervals never conflict.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// HasConflict reports whether the candidate interval collides with any
// blocking booking once the host's buffer zones are applied. Each existing
// booking is widened by buffer-before/-after from the rule; cancelled and
// completed bookings never conflict.
func HasConflict(start, end time.Time, bookings []models.Booking, rule models.AvailabilityRule) bool {
	before := rule.BufferBefore()
	after := rule.BufferAfter()
	for _, b := range bookings {
		if !b.Status.Blocks() {
			continue
		}
		if Overlaps(start, end, b.StartTime.Add(-before), b.EndTime.Add(after)) {
			return true
		}
	}
	return false
}

// CheckPolicy validates notice and lead-time against the current wall clock.
// The notice boundary is exclusive: a slot starting exactly at
// now+min_notice is still bookable. The lead-time boundary is inclusive.
func CheckPolicy(start time.Time, rule models.AvailabilityRule, now time.Time) error {
	if rule.MinNoticeHours > 0 {
		earliest := now.Add(time.Duration(rule.MinNoticeHours) * time.Hour)
		if start.Before(earliest) {
			return ErrInsufficientNotice
		}
	}
	if rule.MaxBookingDays > 0 {
		horizon := now.Add(time.Duration(rule.MaxBookingDays) * 24 * time.Hour)
		if start.After(horizon) {
			return ErrBeyondLeadTime
		}
	}
	return nil
}

// ValidateInterval rejects malformed candidate intervals before any
// conflict or policy check runs.
func ValidateInterval(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return NewValidationError("start and end are required")
	}
	if !start.Before(end) {
		return NewValidationError("start %s must be before end %s", start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return nil
}
