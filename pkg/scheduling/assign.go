package scheduling

import (
	"time"

	"github.com/bcal-io/bcal/pkg/models"
)

// DefaultLoadWindow is the trailing span over which a member's bookings
// count toward their load score.
const DefaultLoadWindow = 7 * 24 * time.Hour

// AssignmentRequest describes a team-directed booking request.
type AssignmentRequest struct {
	Start       time.Time
	End         time.Time
	MeetingType string
	// LoadWindow overrides DefaultLoadWindow when positive.
	LoadWindow time.Duration
}

// Assign picks the team member who should receive the booking. Eligible
// members must be active, have a matching availability window covering the
// interval with notice/lead-time satisfied, and be conflict-free. Among
// eligible members the lowest load score wins; ties go to the declared
// priority order when both members define one, then to the ascending user
// id, so the outcome is deterministic. The search window is never widened:
// when nobody fits, ErrNoEligibleMember comes back.
func Assign(members []models.MemberSchedule, req AssignmentRequest, now time.Time) (models.MemberSchedule, error) {
	if err := ValidateInterval(req.Start, req.End); err != nil {
		return models.MemberSchedule{}, err
	}
	window := req.LoadWindow
	if window <= 0 {
		window = DefaultLoadWindow
	}

	var (
		chosen     models.MemberSchedule
		chosenLoad int
		found      bool
	)
	for _, m := range members {
		if !eligible(m, req, now) {
			continue
		}
		load := LoadScore(m.Bookings, req.Start, window)
		if !found || load < chosenLoad || (load == chosenLoad && prefer(m, chosen)) {
			chosen = m
			chosenLoad = load
			found = true
		}
	}
	if !found {
		return models.MemberSchedule{}, ErrNoEligibleMember
	}
	return chosen, nil
}

func eligible(m models.MemberSchedule, req AssignmentRequest, now time.Time) bool {
	if !m.User.Active || !m.Member.Active {
		return false
	}
	for _, w := range Expand(m.Rules, req.Start) {
		if req.MeetingType != "" && w.Rule.MeetingType != req.MeetingType {
			continue
		}
		if req.Start.Before(w.Start) || req.End.After(w.End) {
			continue
		}
		if CheckPolicy(req.Start, w.Rule, now) != nil {
			continue
		}
		if HasConflict(req.Start, req.End, m.Bookings, w.Rule) {
			continue
		}
		return true
	}
	return false
}

// LoadScore counts non-cancelled bookings starting within the trailing
// window that ends at ref.
func LoadScore(bookings []models.Booking, ref time.Time, window time.Duration) int {
	from := ref.Add(-window)
	n := 0
	for _, b := range bookings {
		if b.Status == models.StatusCancelled {
			continue
		}
		if b.StartTime.After(from) && !b.StartTime.After(ref) {
			n++
		}
	}
	return n
}

func prefer(a, b models.MemberSchedule) bool {
	if a.Member.Priority != nil && b.Member.Priority != nil && *a.Member.Priority != *b.Member.Priority {
		return *a.Member.Priority < *b.Member.Priority
	}
	return a.User.ID < b.User.ID
}
