package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/bcal-io/bcal/pkg/metrics"
	"github.com/bcal-io/bcal/pkg/models"
	"github.com/bcal-io/bcal/pkg/scheduling"
)

// How far around a candidate day the live booking set is fetched, so buffer
// zones that cross midnight are still seen.
const bookingFetchSlack = 24 * time.Hour

type Notifier interface {
	Notify(ctx context.Context, message string, userID int) error
}

type Store interface {
	GetUser(ctx context.Context, id int) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)

	ActiveRules(ctx context.Context, hostID int) ([]models.AvailabilityRule, error)
	GetRule(ctx context.Context, id int) (models.AvailabilityRule, error)
	CreateRule(ctx context.Context, rule models.AvailabilityRule) (models.AvailabilityRule, error)
	UpdateRule(ctx context.Context, id, hostID int, rule models.AvailabilityRule) (models.AvailabilityRule, error)
	DeactivateRule(ctx context.Context, id, hostID int) (models.AvailabilityRule, error)

	HostBookings(ctx context.Context, hostID int, from, to time.Time) ([]models.Booking, error)
	InsertBooking(ctx context.Context, booking models.Booking) (models.Booking, error)
	GetBooking(ctx context.Context, id int) (models.Booking, error)
	UserBookings(ctx context.Context, userID int) ([]models.Booking, error)
	UpdateBookingStatus(ctx context.Context, id int, status models.BookingStatus) (models.Booking, error)

	GetTeam(ctx context.Context, id int) (models.Team, error)
	ListTeams(ctx context.Context) ([]models.TeamSummary, error)
	TeamMemberSchedules(ctx context.Context, teamID int, from, to time.Time) ([]models.MemberSchedule, error)
}

// Config carries the scheduling policy knobs: whether created bookings skip
// the pending state, and the trailing window for assignment load scores.
type Config struct {
	AutoConfirm bool
	LoadWindow  time.Duration
}

type ScheduleService struct {
	log      *logrus.Entry
	store    Store
	notifier Notifier
	locks    *scheduling.HostLock
	cfg      Config
	now      func() time.Time
}

func NewScheduleService(log *logrus.Logger, store Store, notifier Notifier, cfg Config) *ScheduleService {
	if cfg.LoadWindow <= 0 {
		cfg.LoadWindow = scheduling.DefaultLoadWindow
	}
	s := ScheduleService{
		log:      log.WithField("component", "service"),
		store:    store,
		notifier: notifier,
		locks:    scheduling.NewHostLock(),
		cfg:      cfg,
		now:      time.Now,
	}
	return &s
}

// Authenticate verifies host credentials for the login endpoint.
func (s *ScheduleService) Authenticate(ctx context.Context, email, password string) (models.User, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return models.User{}, models.ErrInvalidCredentials
	}
	if !user.Active {
		return models.User{}, models.ErrInvalidCredentials
	}
	if err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.User{}, models.ErrInvalidCredentials
	}
	return user, nil
}

// HostSlots renders the bookable slot list for one host and date. The list
// may be slightly stale by the time a guest submits; the booking path
// re-validates against the live set.
func (s *ScheduleService) HostSlots(ctx context.Context, hostID int, date time.Time) ([]models.Slot, error) {
	metrics.SlotQueries.WithLabelValues("host").Inc()
	host, err := s.store.GetUser(ctx, hostID)
	if err != nil {
		return nil, fmt.Errorf("err getting host: %w", err)
	}
	if !host.Active {
		return []models.Slot{}, nil
	}
	rules, err := s.store.ActiveRules(ctx, hostID)
	if err != nil {
		return nil, fmt.Errorf("err getting rules: %w", err)
	}
	windows := scheduling.Expand(rules, date)
	bookings, err := s.bookingsAround(ctx, hostID, date)
	if err != nil {
		return nil, err
	}
	return scheduling.Generate(windows, bookings, s.now()), nil
}

// TeamAvailability returns every active member's independent offering for
// the date, tagged by member.
func (s *ScheduleService) TeamAvailability(ctx context.Context, teamID int, date time.Time) (models.TeamAvailability, error) {
	metrics.SlotQueries.WithLabelValues("team").Inc()
	team, err := s.store.GetTeam(ctx, teamID)
	if err != nil {
		return models.TeamAvailability{}, fmt.Errorf("err getting team: %w", err)
	}
	members, err := s.store.TeamMemberSchedules(ctx, teamID, date.Add(-bookingFetchSlack), date.Add(2*bookingFetchSlack))
	if err != nil {
		return models.TeamAvailability{}, fmt.Errorf("err getting team members: %w", err)
	}
	return scheduling.AggregateTeam(team, members, date, s.now()), nil
}

func (s *ScheduleService) ListTeams(ctx context.Context) ([]models.TeamSummary, error) {
	teams, err := s.store.ListTeams(ctx)
	if err != nil {
		return nil, fmt.Errorf("err listing teams: %w", err)
	}
	return teams, nil
}

func (s *ScheduleService) HostRules(ctx context.Context, hostID int) ([]models.AvailabilityRule, error) {
	rules, err := s.store.ActiveRules(ctx, hostID)
	if err != nil {
		return nil, fmt.Errorf("err getting rules: %w", err)
	}
	return rules, nil
}

func (s *ScheduleService) CreateRule(ctx context.Context, hostID int, req models.AvailabilityRuleRequest) (models.AvailabilityRule, error) {
	rule := ruleDefaults(hostID)
	applyRuleRequest(&rule, req)
	if err := validateRule(rule); err != nil {
		return models.AvailabilityRule{}, err
	}
	created, err := s.store.CreateRule(ctx, rule)
	if err != nil {
		return models.AvailabilityRule{}, fmt.Errorf("err creating rule: %w", err)
	}
	return created, nil
}

func (s *ScheduleService) UpdateRule(ctx context.Context, id, hostID int, req models.AvailabilityRuleRequest) (models.AvailabilityRule, error) {
	rule, err := s.store.GetRule(ctx, id)
	if err != nil {
		return models.AvailabilityRule{}, fmt.Errorf("err getting rule: %w", err)
	}
	if rule.UserID != hostID {
		return models.AvailabilityRule{}, scheduling.NewValidationError("rule %d does not belong to host %d", id, hostID)
	}
	applyRuleRequest(&rule, req)
	if err = validateRule(rule); err != nil {
		return models.AvailabilityRule{}, err
	}
	updated, err := s.store.UpdateRule(ctx, id, hostID, rule)
	if err != nil {
		return models.AvailabilityRule{}, fmt.Errorf("err updating rule: %w", err)
	}
	return updated, nil
}

// DeactivateRule is the delete operation: rules are switched off, never
// removed, so past bookings keep their source rule.
func (s *ScheduleService) DeactivateRule(ctx context.Context, id, hostID int) (models.AvailabilityRule, error) {
	rule, err := s.store.DeactivateRule(ctx, id, hostID)
	if err != nil {
		return models.AvailabilityRule{}, fmt.Errorf("err deactivating rule: %w", err)
	}
	return rule, nil
}

func (s *ScheduleService) UserBookings(ctx context.Context, userID int) ([]models.Booking, error) {
	bookings, err := s.store.UserBookings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("err getting bookings: %w", err)
	}
	return bookings, nil
}

func (s *ScheduleService) GetBooking(ctx context.Context, id int) (models.Booking, error) {
	return s.store.GetBooking(ctx, id)
}

func (s *ScheduleService) bookingsAround(ctx context.Context, hostID int, date time.Time) ([]models.Booking, error) {
	from := date.Add(-bookingFetchSlack)
	to := date.Add(2 * bookingFetchSlack)
	bookings, err := s.store.HostBookings(ctx, hostID, from, to)
	if err != nil {
		return nil, fmt.Errorf("err getting bookings: %w", err)
	}
	return bookings, nil
}

func ruleDefaults(hostID int) models.AvailabilityRule {
	return models.AvailabilityRule{
		UserID:              hostID,
		Active:              true,
		MinNoticeHours:      2,
		MaxBookingDays:      90,
		SlotDurationMinutes: 30,
		MeetingType:         "general",
	}
}

func applyRuleRequest(rule *models.AvailabilityRule, req models.AvailabilityRuleRequest) {
	if req.DayOfWeek != nil {
		rule.DayOfWeek = *req.DayOfWeek
	}
	if req.StartTime != nil {
		rule.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		rule.EndTime = *req.EndTime
	}
	if req.Active != nil {
		rule.Active = *req.Active
	}
	if req.Pattern != nil {
		rule.Pattern = *req.Pattern
	}
	if req.RecurringDays != nil {
		rule.RecurringDays = *req.RecurringDays
	}
	if req.RecurringEndDate != nil {
		rule.RecurringEndDate = req.RecurringEndDate
	}
	if req.BufferBeforeMinutes != nil {
		rule.BufferBeforeMinutes = *req.BufferBeforeMinutes
	}
	if req.BufferAfterMinutes != nil {
		rule.BufferAfterMinutes = *req.BufferAfterMinutes
	}
	if req.MinNoticeHours != nil {
		rule.MinNoticeHours = *req.MinNoticeHours
	}
	if req.MaxBookingDays != nil {
		rule.MaxBookingDays = *req.MaxBookingDays
	}
	if req.SlotDurationMinutes != nil {
		rule.SlotDurationMinutes = *req.SlotDurationMinutes
	}
	if req.MeetingType != nil {
		rule.MeetingType = *req.MeetingType
	}
	if req.MeetingDescription != nil {
		rule.MeetingDescription = *req.MeetingDescription
	}
	if req.MeetingLocation != nil {
		rule.MeetingLocation = *req.MeetingLocation
	}
	if req.MeetingURL != nil {
		rule.MeetingURL = *req.MeetingURL
	}
}

func validateRule(rule models.AvailabilityRule) error {
	if rule.DayOfWeek < 0 || rule.DayOfWeek > 6 {
		return scheduling.NewValidationError("day of week %d out of range 0..6", rule.DayOfWeek)
	}
	startH, startM, err := scheduling.ParseClock(rule.StartTime)
	if err != nil {
		return scheduling.NewValidationError("invalid start time: %v", err)
	}
	endH, endM, err := scheduling.ParseClock(rule.EndTime)
	if err != nil {
		return scheduling.NewValidationError("invalid end time: %v", err)
	}
	if startH*60+startM >= endH*60+endM {
		return scheduling.NewValidationError("start time %s must be before end time %s", rule.StartTime, rule.EndTime)
	}
	if rule.SlotDurationMinutes <= 0 {
		return scheduling.NewValidationError("slot duration must be positive")
	}
	if rule.BufferBeforeMinutes < 0 || rule.BufferAfterMinutes < 0 || rule.MinNoticeHours < 0 || rule.MaxBookingDays < 0 {
		return scheduling.NewValidationError("buffer, notice and lead-time values must not be negative")
	}
	switch rule.Pattern {
	case "", models.PatternDaily, models.PatternWeekly, models.PatternMonthly:
	default:
		return scheduling.NewValidationError("unknown recurrence pattern %q", rule.Pattern)
	}
	return nil
}
