package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bcal-io/bcal/pkg/ics"
	"github.com/bcal-io/bcal/pkg/metrics"
	"github.com/bcal-io/bcal/pkg/models"
	"github.com/bcal-io/bcal/pkg/pgstore"
	"github.com/bcal-io/bcal/pkg/scheduling"
)

// validTransitions encodes the booking state machine: pending may confirm
// or cancel, confirmed may complete or cancel, terminal states stay put.
var validTransitions = map[models.BookingStatus][]models.BookingStatus{
	models.StatusPending:   {models.StatusConfirmed, models.StatusCancelled},
	models.StatusConfirmed: {models.StatusCompleted, models.StatusCancelled},
}

func transitionAllowed(from, to models.BookingStatus) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CreateBooking is the critical section of the whole engine. For a team
// request the assignment engine first picks the member; then the
// conflict-check-then-insert sequence runs under the chosen host's lock so
// that among concurrent overlapping requests at most one commits. The
// uniqueness index in the store backs the same invariant at the storage
// level, so the guarantee holds even across processes.
func (s *ScheduleService) CreateBooking(ctx context.Context, req models.BookingRequest) (models.BookingResponse, error) {
	if err := validateBookingRequest(req); err != nil {
		return models.BookingResponse{}, err
	}
	start, end := *req.StartTime, *req.EndTime

	hostID := 0
	switch {
	case req.HostID != nil:
		hostID = *req.HostID
	case req.TeamID != nil:
		chosen, err := s.assignMember(ctx, *req.TeamID, req)
		if err != nil {
			return models.BookingResponse{}, err
		}
		hostID = chosen.User.ID
	}

	host, err := s.store.GetUser(ctx, hostID)
	if err != nil {
		return models.BookingResponse{}, fmt.Errorf("err getting host: %w", err)
	}
	if !host.Active {
		return models.BookingResponse{}, scheduling.NewValidationError("host %d is not active", hostID)
	}

	booking, err := s.book(ctx, host, req, start, end)
	if err != nil {
		return models.BookingResponse{}, err
	}

	if err = s.notifier.Notify(ctx, fmt.Sprintf("booking %s created for %s", booking.Ref, booking.StartTime.Format(time.RFC3339)), host.ID); err != nil {
		s.log.Warnf("err notifying host %d: %v", host.ID, err)
	}

	return models.BookingResponse{
		Booking:  booking,
		Host:     host,
		Calendar: ics.Invite(booking, host, s.now()),
	}, nil
}

// book runs the atomic check-then-insert for a fixed host.
func (s *ScheduleService) book(ctx context.Context, host models.User, req models.BookingRequest, start, end time.Time) (models.Booking, error) {
	rule, err := s.coveringRule(ctx, host.ID, req, start, end)
	if err != nil {
		return models.Booking{}, err
	}

	unlock := s.locks.Lock(host.ID)
	defer unlock()

	// Policy is checked against the wall clock at commit time, not at the
	// time the slot list was rendered.
	now := s.now()
	if err = scheduling.CheckPolicy(start, rule, now); err != nil {
		metrics.BookingOutcomes.WithLabelValues("policy_rejected").Inc()
		return models.Booking{}, err
	}

	live, err := s.bookingsAround(ctx, host.ID, start)
	if err != nil {
		metrics.BookingOutcomes.WithLabelValues("store_error").Inc()
		return models.Booking{}, err
	}
	if scheduling.HasConflict(start, end, live, rule) {
		metrics.BookingOutcomes.WithLabelValues("conflict").Inc()
		return models.Booking{}, scheduling.ErrSlotConflict
	}

	status := models.StatusPending
	if s.cfg.AutoConfirm {
		status = models.StatusConfirmed
	}
	guestID := s.resolveGuest(ctx, req)
	booking := models.Booking{
		Ref:       uuid.New().String(),
		HostID:    host.ID,
		GuestID:   guestID,
		StartTime: start,
		EndTime:   end,
		Status:    status,
	}
	if req.Title != nil {
		booking.Title = *req.Title
	}
	if req.Description != nil {
		booking.Description = *req.Description
	}
	if req.GuestName != nil {
		booking.GuestName = *req.GuestName
	}
	if req.GuestEmail != nil {
		booking.GuestEmail = *req.GuestEmail
	}

	created, err := s.store.InsertBooking(ctx, booking)
	if err != nil {
		// A failed or timed-out insert is never reported as success; a
		// uniqueness violation means somebody else won the slot.
		if errors.Is(err, pgstore.ErrDuplicateBooking) {
			metrics.BookingOutcomes.WithLabelValues("conflict").Inc()
			return models.Booking{}, scheduling.ErrSlotConflict
		}
		metrics.BookingOutcomes.WithLabelValues("store_error").Inc()
		return models.Booking{}, fmt.Errorf("err committing booking: %w", err)
	}
	metrics.BookingOutcomes.WithLabelValues("created").Inc()
	return created, nil
}

func (s *ScheduleService) assignMember(ctx context.Context, teamID int, req models.BookingRequest) (models.MemberSchedule, error) {
	if _, err := s.store.GetTeam(ctx, teamID); err != nil {
		return models.MemberSchedule{}, fmt.Errorf("err getting team: %w", err)
	}
	start := *req.StartTime
	members, err := s.store.TeamMemberSchedules(ctx, teamID, start.Add(-s.cfg.LoadWindow), start.Add(bookingFetchSlack))
	if err != nil {
		return models.MemberSchedule{}, fmt.Errorf("err getting team members: %w", err)
	}
	assignReq := scheduling.AssignmentRequest{
		Start:      start,
		End:        *req.EndTime,
		LoadWindow: s.cfg.LoadWindow,
	}
	if req.MeetingType != nil {
		assignReq.MeetingType = *req.MeetingType
	}
	chosen, err := scheduling.Assign(members, assignReq, s.now())
	if err != nil {
		if errors.Is(err, scheduling.ErrNoEligibleMember) {
			metrics.BookingOutcomes.WithLabelValues("no_eligible_member").Inc()
		}
		return models.MemberSchedule{}, err
	}
	s.log.Debugf("assigned booking to member %d (team %d)", chosen.User.ID, teamID)
	return chosen, nil
}

// coveringRule finds the availability window the candidate interval falls
// into; booking outside any declared window is a validation failure, not a
// conflict.
func (s *ScheduleService) coveringRule(ctx context.Context, hostID int, req models.BookingRequest, start, end time.Time) (models.AvailabilityRule, error) {
	rules, err := s.store.ActiveRules(ctx, hostID)
	if err != nil {
		return models.AvailabilityRule{}, fmt.Errorf("err getting rules: %w", err)
	}
	for _, w := range scheduling.Expand(rules, start) {
		if req.MeetingType != nil && *req.MeetingType != "" && w.Rule.MeetingType != *req.MeetingType {
			continue
		}
		if !start.Before(w.Start) && !end.After(w.End) {
			return w.Rule, nil
		}
	}
	return models.AvailabilityRule{}, scheduling.NewValidationError("host %d has no availability covering %s", hostID, start.Format(time.RFC3339))
}

// resolveGuest links the booking to an existing user account when the
// guest email matches one; otherwise the booking stays transient with just
// the name and email captured.
func (s *ScheduleService) resolveGuest(ctx context.Context, req models.BookingRequest) *int {
	if req.GuestEmail == nil || *req.GuestEmail == "" {
		return nil
	}
	user, err := s.store.GetUserByEmail(ctx, *req.GuestEmail)
	if err != nil {
		return nil
	}
	return &user.ID
}

// UpdateBookingStatus applies one state machine transition.
func (s *ScheduleService) UpdateBookingStatus(ctx context.Context, id int, status models.BookingStatus) (models.Booking, error) {
	switch status {
	case models.StatusPending, models.StatusConfirmed, models.StatusCancelled, models.StatusCompleted:
	default:
		return models.Booking{}, scheduling.NewValidationError("unknown status %q", status)
	}
	booking, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return models.Booking{}, fmt.Errorf("err getting booking: %w", err)
	}
	if !transitionAllowed(booking.Status, status) {
		return models.Booking{}, scheduling.NewValidationError("cannot transition booking from %s to %s", booking.Status, status)
	}
	updated, err := s.store.UpdateBookingStatus(ctx, id, status)
	if err != nil {
		return models.Booking{}, fmt.Errorf("err updating booking status: %w", err)
	}
	if status == models.StatusCancelled {
		if err = s.notifier.Notify(ctx, fmt.Sprintf("booking %s cancelled", updated.Ref), updated.HostID); err != nil {
			s.log.Warnf("err notifying host %d: %v", updated.HostID, err)
		}
	}
	return updated, nil
}

// CancelBooking is deletion: the row is kept and excluded from conflict
// checks by its status, never removed.
func (s *ScheduleService) CancelBooking(ctx context.Context, id int) (models.Booking, error) {
	return s.UpdateBookingStatus(ctx, id, models.StatusCancelled)
}

// RescheduleBooking is cancel+recreate: the original is cancelled first so
// the new interval does not collide with it, then the replacement goes
// through the full booking transaction. If the new interval is rejected the
// original status is restored.
func (s *ScheduleService) RescheduleBooking(ctx context.Context, id int, start, end time.Time) (models.BookingResponse, error) {
	if err := scheduling.ValidateInterval(start, end); err != nil {
		return models.BookingResponse{}, err
	}
	old, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return models.BookingResponse{}, fmt.Errorf("err getting booking: %w", err)
	}
	if !old.Status.Blocks() {
		return models.BookingResponse{}, scheduling.NewValidationError("booking %d is %s and cannot be rescheduled", id, old.Status)
	}
	prev := old.Status
	if _, err = s.store.UpdateBookingStatus(ctx, id, models.StatusCancelled); err != nil {
		return models.BookingResponse{}, fmt.Errorf("err cancelling booking %d: %w", id, err)
	}

	req := models.BookingRequest{
		HostID:      &old.HostID,
		StartTime:   &start,
		EndTime:     &end,
		Title:       &old.Title,
		Description: &old.Description,
		GuestName:   &old.GuestName,
		GuestEmail:  &old.GuestEmail,
	}
	resp, err := s.CreateBooking(ctx, req)
	if err != nil {
		if _, restoreErr := s.store.UpdateBookingStatus(ctx, id, prev); restoreErr != nil {
			s.log.Errorf("err restoring booking %d after failed reschedule: %v", id, restoreErr)
		}
		return models.BookingResponse{}, err
	}
	// The replacement has its own calendar UID, so the superseded event
	// needs an explicit cancellation.
	old.Status = models.StatusCancelled
	resp.Cancellation = ics.Cancellation(old, resp.Host, s.now())
	return resp, nil
}

func validateBookingRequest(req models.BookingRequest) error {
	if (req.HostID == nil) == (req.TeamID == nil) {
		return scheduling.NewValidationError("exactly one of hostId and teamId is required")
	}
	if req.StartTime == nil || req.EndTime == nil {
		return scheduling.NewValidationError("startTime and endTime are required")
	}
	if err := scheduling.ValidateInterval(*req.StartTime, *req.EndTime); err != nil {
		return err
	}
	if req.Title == nil || *req.Title == "" {
		return scheduling.NewValidationError("title is required")
	}
	if req.GuestEmail == nil || *req.GuestEmail == "" {
		return scheduling.NewValidationError("guestEmail is required")
	}
	return nil
}

