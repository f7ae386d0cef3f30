package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcal-io/bcal/pkg/logger"
	"github.com/bcal-io/bcal/pkg/models"
	"github.com/bcal-io/bcal/pkg/pgstore"
	"github.com/bcal-io/bcal/pkg/scheduling"
)

// 2023-06-05 is a Monday.
var monday = time.Date(2023, 6, 5, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return time.Date(2023, 6, 5, hour, minute, 0, 0, time.UTC)
}

// memStore is an in-memory Store. InsertBooking enforces the same
// uniqueness guard as the Postgres partial index.
type memStore struct {
	mu       sync.Mutex
	users    map[int]models.User
	rules    map[int][]models.AvailabilityRule
	bookings []models.Booking
	teams    map[int]models.Team
	members  map[int][]models.MemberSchedule
	nextID   int
}

func newMemStore() *memStore {
	return &memStore{
		users:   map[int]models.User{},
		rules:   map[int][]models.AvailabilityRule{},
		teams:   map[int]models.Team{},
		members: map[int][]models.MemberSchedule{},
		nextID:  1,
	}
}

func (m *memStore) GetUser(_ context.Context, id int) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return models.User{}, pgstore.ErrUserNotFound
	}
	return user, nil
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, pgstore.ErrUserNotFound
}

func (m *memStore) ActiveRules(_ context.Context, hostID int) ([]models.AvailabilityRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var active []models.AvailabilityRule
	for _, r := range m.rules[hostID] {
		if r.Active {
			active = append(active, r)
		}
	}
	return active, nil
}

func (m *memStore) GetRule(_ context.Context, id int) (models.AvailabilityRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rules := range m.rules {
		for _, r := range rules {
			if r.ID == id {
				return r, nil
			}
		}
	}
	return models.AvailabilityRule{}, pgstore.ErrRuleNotFound
}

func (m *memStore) CreateRule(_ context.Context, rule models.AvailabilityRule) (models.AvailabilityRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rule.ID = m.nextID
	m.nextID++
	rule.CreatedAt = time.Now()
	m.rules[rule.UserID] = append(m.rules[rule.UserID], rule)
	return rule, nil
}

func (m *memStore) UpdateRule(_ context.Context, id, hostID int, rule models.AvailabilityRule) (models.AvailabilityRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.rules[hostID] {
		if r.ID == id {
			rule.ID = id
			rule.UserID = hostID
			m.rules[hostID][i] = rule
			return rule, nil
		}
	}
	return models.AvailabilityRule{}, pgstore.ErrRuleNotFound
}

func (m *memStore) DeactivateRule(_ context.Context, id, hostID int) (models.AvailabilityRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.rules[hostID] {
		if r.ID == id {
			m.rules[hostID][i].Active = false
			return m.rules[hostID][i], nil
		}
	}
	return models.AvailabilityRule{}, pgstore.ErrRuleNotFound
}

func (m *memStore) HostBookings(_ context.Context, hostID int, from, to time.Time) ([]models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Booking
	for _, b := range m.bookings {
		if b.HostID == hostID && b.Status != models.StatusCancelled &&
			b.StartTime.Before(to) && b.EndTime.After(from) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memStore) InsertBooking(_ context.Context, booking models.Booking) (models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bookings {
		if b.HostID == booking.HostID && b.Status.Blocks() && b.StartTime.Equal(booking.StartTime) {
			return models.Booking{}, pgstore.ErrDuplicateBooking
		}
	}
	booking.ID = m.nextID
	m.nextID++
	booking.CreatedAt = time.Now()
	booking.UpdatedAt = booking.CreatedAt
	m.bookings = append(m.bookings, booking)
	return booking, nil
}

func (m *memStore) GetBooking(_ context.Context, id int) (models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bookings {
		if b.ID == id {
			return b, nil
		}
	}
	return models.Booking{}, pgstore.ErrBookingNotFound
}

func (m *memStore) UserBookings(_ context.Context, userID int) ([]models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Booking
	for _, b := range m.bookings {
		if b.HostID == userID || (b.GuestID != nil && *b.GuestID == userID) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memStore) UpdateBookingStatus(_ context.Context, id int, status models.BookingStatus) (models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, b := range m.bookings {
		if b.ID == id {
			m.bookings[i].Status = status
			m.bookings[i].UpdatedAt = time.Now()
			return m.bookings[i], nil
		}
	}
	return models.Booking{}, pgstore.ErrBookingNotFound
}

func (m *memStore) GetTeam(_ context.Context, id int) (models.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	team, ok := m.teams[id]
	if !ok {
		return models.Team{}, pgstore.ErrTeamNotFound
	}
	return team, nil
}

func (m *memStore) ListTeams(_ context.Context) ([]models.TeamSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.TeamSummary
	for _, t := range m.teams {
		out = append(out, models.TeamSummary{ID: t.ID, Name: t.Name, Description: t.Description, MemberCount: len(m.members[t.ID])})
	}
	return out, nil
}

func (m *memStore) TeamMemberSchedules(ctx context.Context, teamID int, from, to time.Time) ([]models.MemberSchedule, error) {
	m.mu.Lock()
	templates := m.members[teamID]
	m.mu.Unlock()
	// Rebuild rules and bookings from live state so assignment sees commits.
	out := make([]models.MemberSchedule, 0, len(templates))
	for _, t := range templates {
		rules, _ := m.ActiveRules(ctx, t.User.ID)
		bookings, _ := m.HostBookings(ctx, t.User.ID, from, to)
		out = append(out, models.MemberSchedule{User: t.User, Member: t.Member, Rules: rules, Bookings: bookings})
	}
	return out, nil
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string, int) error { return nil }

func newTestService(t *testing.T, store Store, cfg Config) *ScheduleService {
	t.Helper()
	svc := NewScheduleService(logger.New(), store, nopNotifier{}, cfg)
	svc.now = func() time.Time { return at(7, 0) }
	return svc
}

// Host 1: Monday 09:00-12:00, hour slots, 15m buffer after, 2h notice.
func seedHost(store *memStore) {
	store.users[1] = models.User{ID: 1, FirstName: "Alice", LastName: "Hart", Email: "alice@example.com", Active: true}
	store.rules[1] = []models.AvailabilityRule{{
		ID: 1, UserID: 1, DayOfWeek: 0, StartTime: "09:00", EndTime: "12:00",
		Active: true, SlotDurationMinutes: 60, BufferAfterMinutes: 15,
		MinNoticeHours: 2, MaxBookingDays: 90, MeetingType: "general",
		CreatedAt: monday.AddDate(0, -1, 0),
	}}
	store.nextID = 2
}

func bookingReq(hostID int, start, end time.Time) models.BookingRequest {
	title := "Consultation"
	name := "Guest"
	email := "guest@example.com"
	return models.BookingRequest{
		HostID:     &hostID,
		StartTime:  &start,
		EndTime:    &end,
		Title:      &title,
		GuestName:  &name,
		GuestEmail: &email,
	}
}

func TestCreateBooking(t *testing.T) {
	store := newMemStore()
	seedHost(store)
	svc := newTestService(t, store, Config{})

	resp, err := svc.CreateBooking(context.Background(), bookingReq(1, at(10, 0), at(11, 0)))
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, resp.Booking.Status)
	assert.Equal(t, 1, resp.Booking.HostID)
	assert.NotEmpty(t, resp.Booking.Ref)
	assert.Contains(t, resp.Calendar, "BEGIN:VCALENDAR")
	assert.Equal(t, "Alice Hart", resp.Host.FullName())
}

func TestCreateBookingAutoConfirm(t *testing.T) {
	store := newMemStore()
	seedHost(store)
	svc := newTestService(t, store, Config{AutoConfirm: true})

	resp, err := svc.CreateBooking(context.Background(), bookingReq(1, at(10, 0), at(11, 0)))
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, resp.Booking.Status)
}

func TestCreateBookingValidation(t *testing.T) {
	store := newMemStore()
	seedHost(store)
	svc := newTestService(t, store, Config{})
	ctx := context.Background()

	var verr *scheduling.ValidationError

	// Inverted interval.
	_, err := svc.CreateBooking(ctx, bookingReq(1, at(11, 0), at(10, 0)))
	assert.ErrorAs(t, err, &verr)

	// Host and team both set.
	req := bookingReq(1, at(10, 0), at(11, 0))
	teamID := 1
	req.TeamID = &teamID
	_, err = svc.CreateBooking(ctx, req)
	assert.ErrorAs(t, err, &verr)

	// Missing title.
	req = bookingReq(1, at(10, 0), at(11, 0))
	req.Title = nil
	_, err = svc.CreateBooking(ctx, req)
	assert.ErrorAs(t, err, &verr)

	// Outside any availability window.
	_, err = svc.CreateBooking(ctx, bookingReq(1, at(15, 0), at(16, 0)))
	assert.ErrorAs(t, err, &verr)
}

func TestCreateBookingConflict(t *testing.T) {
	store := newMemStore()
	seedHost(store)
	svc := newTestService(t, store, Config{})
	ctx := context.Background()

	_, err := svc.CreateBooking(ctx, bookingReq(1, at(10, 0), at(11, 0)))
	require.NoError(t, err)

	// Same interval conflicts.
	_, err = svc.CreateBooking(ctx, bookingReq(1, at(10, 0), at(11, 0)))
	assert.ErrorIs(t, err, scheduling.ErrSlotConflict)

	// 11:00 starts inside the 15 minute buffer after the first booking.
	_, err = svc.CreateBooking(ctx, bookingReq(1, at(11, 0), at(12, 0)))
	assert.ErrorIs(t, err, scheduling.ErrSlotConflict)

	// 09:00 is untouched.
	_, err = svc.CreateBooking(ctx, bookingReq(1, at(9, 0), at(10, 0)))
	require.NoError(t, err)
}

func TestCreateBookingPolicyAtCommitTime(t *testing.T) {
	store := newMemStore()
	seedHost(store)
	svc := newTestService(t, store, Config{})

	// The 09:00 slot was valid when listed at 06:00 but notice lapsed.
	svc.now = func() time.Time { return at(8, 0) }
	_, err := svc.CreateBooking(context.Background(), bookingReq(1, at(9, 0), at(10, 0)))
	assert.ErrorIs(t, err, scheduling.ErrInsufficientNotice)
}

// The no-double-booking property: many concurrent requests for one slot,
// exactly one winner.
func TestCreateBookingConcurrent(t *testing.T) {
	store := newMemStore()
	seedHost(store)
	svc := newTestService(t, store, Config{})

	const attempts = 32
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			defer wg.Done()
			_, err := svc.CreateBooking(context.Background(), bookingReq(1, at(10, 0), at(11, 0)))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	won, lost := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			won++
		default:
			require.ErrorIs(t, err, scheduling.ErrSlotConflict)
			lost++
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, attempts-1, lost)

	blocking := 0
	for _, b := range store.bookings {
		if b.Status.Blocks() {
			blocking++
		}
	}
	assert.Equal(t, 1, blocking)
}

func TestCreateTeamBookingBalancesLoad(t *testing.T) {
	store := newMemStore()
	seedHost(store)
	// Second host with the same Monday schedule.
	store.users[2] = models.User{ID: 2, FirstName: "Bob", LastName: "Stone", Email: "bob@example.com", Active: true}
	store.rules[2] = []models.AvailabilityRule{{
		ID: 5, UserID: 2, DayOfWeek: 0, StartTime: "09:00", EndTime: "12:00",
		Active: true, SlotDurationMinutes: 60, MaxBookingDays: 90, MeetingType: "general",
		CreatedAt: monday.AddDate(0, -1, 0),
	}}
	store.teams[1] = models.Team{ID: 1, Name: "Support", Active: true}
	store.members[1] = []models.MemberSchedule{
		{User: store.users[1], Member: models.TeamMember{TeamID: 1, UserID: 1, Active: true}},
		{User: store.users[2], Member: models.TeamMember{TeamID: 1, UserID: 2, Active: true}},
	}
	// Alice already has a booking this week.
	store.bookings = append(store.bookings, models.Booking{
		ID: 90, HostID: 1, StartTime: at(9, 0).AddDate(0, 0, -2), EndTime: at(10, 0).AddDate(0, 0, -2),
		Status: models.StatusConfirmed,
	})
	svc := newTestService(t, store, Config{})

	teamID := 1
	req := bookingReq(0, at(10, 0), at(11, 0))
	req.HostID = nil
	req.TeamID = &teamID

	resp, err := svc.CreateBooking(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Booking.HostID)
}

func TestCreateTeamBookingNoEligibleMember(t *testing.T) {
	store := newMemStore()
	seedHost(store)
	store.teams[1] = models.Team{ID: 1, Name: "Support", Active: true}
	store.members[1] = []models.MemberSchedule{
		{User: store.users[1], Member: models.TeamMember{TeamID: 1, UserID: 1, Active: true}},
	}
	svc := newTestService(t, store, Config{})

	teamID := 1
	req := bookingReq(0, at(15, 0), at(16, 0)) // outside the window
	req.HostID = nil
	req.TeamID = &teamID

	_, err := svc.CreateBooking(context.Background(), req)
	assert.ErrorIs(t, err, scheduling.ErrNoEligibleMember)
}

func TestUpdateBookingStatusTransitions(t *testing.T) {
	store := newMemStore()
	seedHost(store)
	svc := newTestService(t, store, Config{})
	ctx := context.Background()

	resp, err := svc.CreateBooking(ctx, bookingReq(1, at(10, 0), at(11, 0)))
	require.NoError(t, err)
	id := resp.Booking.ID

	var verr *scheduling.ValidationError

	// pending -> completed is not allowed.
	_, err = svc.UpdateBookingStatus(ctx, id, models.StatusCompleted)
	assert.ErrorAs(t, err, &verr)

	booking, err := svc.UpdateBookingStatus(ctx, id, models.StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, booking.Status)

	booking, err = svc.UpdateBookingStatus(ctx, id, models.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, booking.Status)

	// Terminal states reject every transition.
	_, err = svc.UpdateBookingStatus(ctx, id, models.StatusCancelled)
	assert.ErrorAs(t, err, &verr)
}

func TestCancelFreesSlot(t *testing.T) {
	store := newMemStore()
	seedHost(store)
	svc := newTestService(t, store, Config{})
	ctx := context.Background()

	resp, err := svc.CreateBooking(ctx, bookingReq(1, at(10, 0), at(11, 0)))
	require.NoError(t, err)

	_, err = svc.CancelBooking(ctx, resp.Booking.ID)
	require.NoError(t, err)

	// The cancelled row stays but no longer blocks.
	_, err = svc.CreateBooking(ctx, bookingReq(1, at(10, 0), at(11, 0)))
	require.NoError(t, err)
	assert.Len(t, store.bookings, 2)
}

func TestRescheduleBooking(t *testing.T) {
	store := newMemStore()
	seedHost(store)
	svc := newTestService(t, store, Config{})
	ctx := context.Background()

	resp, err := svc.CreateBooking(ctx, bookingReq(1, at(10, 0), at(11, 0)))
	require.NoError(t, err)

	moved, err := svc.RescheduleBooking(ctx, resp.Booking.ID, at(9, 0), at(10, 0))
	require.NoError(t, err)
	assert.Equal(t, at(9, 0), moved.Booking.StartTime)
	assert.Contains(t, moved.Cancellation, "METHOD:CANCEL")

	old, err := svc.GetBooking(ctx, resp.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, old.Status)
}

func TestRescheduleFailureRestoresOriginal(t *testing.T) {
	store := newMemStore()
	seedHost(store)
	svc := newTestService(t, store, Config{})
	ctx := context.Background()

	resp, err := svc.CreateBooking(ctx, bookingReq(1, at(10, 0), at(11, 0)))
	require.NoError(t, err)

	// Target interval is outside availability; the original must survive.
	_, err = svc.RescheduleBooking(ctx, resp.Booking.ID, at(15, 0), at(16, 0))
	require.Error(t, err)

	old, err := svc.GetBooking(ctx, resp.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, old.Status)
}

func TestHostSlotsExampleScenario(t *testing.T) {
	store := newMemStore()
	seedHost(store)
	svc := newTestService(t, store, Config{})
	ctx := context.Background()

	slots, err := svc.HostSlots(ctx, 1, monday)
	require.NoError(t, err)
	require.Len(t, slots, 3)
	for _, s := range slots {
		assert.True(t, s.Available)
	}

	_, err = svc.CreateBooking(ctx, bookingReq(1, at(10, 0), at(11, 0)))
	require.NoError(t, err)

	slots, err = svc.HostSlots(ctx, 1, monday)
	require.NoError(t, err)
	require.Len(t, slots, 3)
	assert.True(t, slots[0].Available)
	assert.False(t, slots[1].Available)
	assert.False(t, slots[2].Available)
}

func TestAuthenticate(t *testing.T) {
	store := newMemStore()
	seedHost(store)
	user := store.users[1]
	// bcrypt hash of "secret" (cost 10).
	user.PasswordHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"
	store.users[1] = user
	svc := newTestService(t, store, Config{})
	ctx := context.Background()

	_, err := svc.Authenticate(ctx, "alice@example.com", "wrong")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody@example.com", "secret")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
}

func TestCreateRuleValidation(t *testing.T) {
	store := newMemStore()
	seedHost(store)
	svc := newTestService(t, store, Config{})
	ctx := context.Background()

	day := 0
	start := "09:00"
	end := "17:00"
	rule, err := svc.CreateRule(ctx, 1, models.AvailabilityRuleRequest{DayOfWeek: &day, StartTime: &start, EndTime: &end})
	require.NoError(t, err)
	// Documented defaults apply when the request leaves them unset.
	assert.Equal(t, 2, rule.MinNoticeHours)
	assert.Equal(t, 90, rule.MaxBookingDays)
	assert.Equal(t, 30, rule.SlotDurationMinutes)

	var verr *scheduling.ValidationError
	bad := 9
	_, err = svc.CreateRule(ctx, 1, models.AvailabilityRuleRequest{DayOfWeek: &bad, StartTime: &start, EndTime: &end})
	assert.ErrorAs(t, err, &verr)

	inverted := "08:00"
	_, err = svc.CreateRule(ctx, 1, models.AvailabilityRuleRequest{DayOfWeek: &day, StartTime: &end, EndTime: &inverted})
	assert.ErrorAs(t, err, &verr)
}

func TestHostSlotsUnknownHost(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store, Config{})
	_, err := svc.HostSlots(context.Background(), 42, monday)
	require.Error(t, err)
	assert.Contains(t, fmt.Sprint(err), "user not found")
}
