package pgstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/sirupsen/logrus"

	"github.com/bcal-io/bcal/pkg/metrics"
	"github.com/bcal-io/bcal/pkg/models"
)

//go:embed migrations
var migrations embed.FS

const retries = 3

const pgUniqueViolation = "23505"

var (
	ErrUserNotFound     = fmt.Errorf("user not found")
	ErrRuleNotFound     = fmt.Errorf("availability rule not found")
	ErrBookingNotFound  = fmt.Errorf("booking not found")
	ErrTeamNotFound     = fmt.Errorf("team not found")
	ErrDuplicateBooking = fmt.Errorf("booking already exists for host and start time")
)

type Store struct {
	log *logrus.Entry
	db  *sqlx.DB
}

func NewStore(ctx context.Context, log *logrus.Logger, dsn string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &Store{
		log: log.WithField("component", "pgstore"),
		db:  db,
	}, nil
}

func (s *Store) Migrate(direction migrate.MigrationDirection) error {
	assetDir := func() func(string) ([]string, error) {
		return func(path string) ([]string, error) {
			dirEntry, er := migrations.ReadDir(path)
			if er != nil {
				return nil, er
			}
			entries := make([]string, 0)
			for _, e := range dirEntry {
				entries = append(entries, e.Name())
			}

			return entries, nil
		}
	}()
	asset := migrate.AssetMigrationSource{
		Asset:    migrations.ReadFile,
		AssetDir: assetDir,
		Dir:      "migrations",
	}
	_, err := migrate.Exec(s.db.DB, "postgres", asset, direction)
	return err
}

func observe(method string, start time.Time, err error) {
	metrics.PgDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.PgErrCount.WithLabelValues(method).Inc()
	}
}

func (s *Store) GetUser(ctx context.Context, id int) (models.User, error) {
	var user models.User
	query := `
SELECT * FROM users
WHERE id = $1;`
	start := time.Now()
	var err error
	defer func() { observe("GetUser", start, err) }()
	for i := 0; i < retries; i++ {
		err = s.db.GetContext(ctx, &user, query, id)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return models.User{}, ErrUserNotFound
		case err != nil:
			continue
		}
		return user, nil
	}
	return models.User{}, fmt.Errorf("err getting user %d: %w", id, err)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	query := `
SELECT * FROM users
WHERE email = $1;`
	start := time.Now()
	var err error
	defer func() { observe("GetUserByEmail", start, err) }()
	for i := 0; i < retries; i++ {
		err = s.db.GetContext(ctx, &user, query, email)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return models.User{}, ErrUserNotFound
		case err != nil:
			continue
		}
		return user, nil
	}
	return models.User{}, fmt.Errorf("err getting user %s: %w", email, err)
}

func (s *Store) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	var created models.User
	query := `
INSERT INTO users (last_name, first_name, email, password_hash, role, organization_id, is_active)
VALUES ($1, $2, $3, $4, $5, $6, true)
RETURNING *;`
	start := time.Now()
	var err error
	defer func() { observe("CreateUser", start, err) }()
	for i := 0; i < retries; i++ {
		if err = s.db.GetContext(ctx, &created, query,
			user.LastName, user.FirstName, user.Email, user.PasswordHash, user.Role, user.OrganizationID); err != nil {
			continue
		}
		return created, nil
	}
	return models.User{}, fmt.Errorf("err creating user: %w", err)
}

// ActiveRules returns the host's active availability rules ordered by
// creation so downstream expansion stays deterministic.
func (s *Store) ActiveRules(ctx context.Context, hostID int) ([]models.AvailabilityRule, error) {
	var rules []models.AvailabilityRule
	query := `
SELECT * FROM availability_rules
WHERE user_id = $1 AND is_active = true
ORDER BY id;`
	start := time.Now()
	var err error
	defer func() { observe("ActiveRules", start, err) }()
	for i := 0; i < retries; i++ {
		if err = s.db.SelectContext(ctx, &rules, query, hostID); err != nil {
			continue
		}
		return rules, nil
	}
	return nil, fmt.Errorf("err getting rules for host %d: %w", hostID, err)
}

func (s *Store) GetRule(ctx context.Context, id int) (models.AvailabilityRule, error) {
	var rule models.AvailabilityRule
	query := `
SELECT * FROM availability_rules
WHERE id = $1;`
	start := time.Now()
	var err error
	defer func() { observe("GetRule", start, err) }()
	for i := 0; i < retries; i++ {
		err = s.db.GetContext(ctx, &rule, query, id)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return models.AvailabilityRule{}, ErrRuleNotFound
		case err != nil:
			continue
		}
		return rule, nil
	}
	return models.AvailabilityRule{}, fmt.Errorf("err getting rule %d: %w", id, err)
}

func (s *Store) CreateRule(ctx context.Context, rule models.AvailabilityRule) (models.AvailabilityRule, error) {
	var created models.AvailabilityRule
	query := `
INSERT INTO availability_rules (user_id, organization_id, day_of_week, start_time, end_time, is_active,
	recurring_pattern, recurring_days, recurring_end_date,
	buffer_before_minutes, buffer_after_minutes, min_notice_hours, max_booking_days, slot_duration_minutes,
	meeting_type, meeting_description, meeting_location, meeting_url)
VALUES ($1, $2, $3, $4, $5, true, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
RETURNING *;`
	start := time.Now()
	var err error
	defer func() { observe("CreateRule", start, err) }()
	for i := 0; i < retries; i++ {
		if err = s.db.GetContext(ctx, &created, query,
			rule.UserID, rule.OrganizationID, rule.DayOfWeek, rule.StartTime, rule.EndTime,
			rule.Pattern, rule.RecurringDays, rule.RecurringEndDate,
			rule.BufferBeforeMinutes, rule.BufferAfterMinutes, rule.MinNoticeHours, rule.MaxBookingDays, rule.SlotDurationMinutes,
			rule.MeetingType, rule.MeetingDescription, rule.MeetingLocation, rule.MeetingURL); err != nil {
			continue
		}
		return created, nil
	}
	return models.AvailabilityRule{}, fmt.Errorf("err creating rule: %w", err)
}

func (s *Store) UpdateRule(ctx context.Context, id, hostID int, rule models.AvailabilityRule) (models.AvailabilityRule, error) {
	var updated models.AvailabilityRule
	query := `
UPDATE availability_rules
SET day_of_week = $3,
	start_time = $4,
	end_time = $5,
	is_active = $6,
	recurring_pattern = $7,
	recurring_days = $8,
	recurring_end_date = $9,
	buffer_before_minutes = $10,
	buffer_after_minutes = $11,
	min_notice_hours = $12,
	max_booking_days = $13,
	slot_duration_minutes = $14,
	meeting_type = $15,
	meeting_description = $16,
	meeting_location = $17,
	meeting_url = $18,
	updated_at = now()
WHERE id = $1 AND user_id = $2
RETURNING *;`
	start := time.Now()
	var err error
	defer func() { observe("UpdateRule", start, err) }()
	for i := 0; i < retries; i++ {
		err = s.db.GetContext(ctx, &updated, query, id, hostID,
			rule.DayOfWeek, rule.StartTime, rule.EndTime, rule.Active,
			rule.Pattern, rule.RecurringDays, rule.RecurringEndDate,
			rule.BufferBeforeMinutes, rule.BufferAfterMinutes, rule.MinNoticeHours, rule.MaxBookingDays, rule.SlotDurationMinutes,
			rule.MeetingType, rule.MeetingDescription, rule.MeetingLocation, rule.MeetingURL)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return models.AvailabilityRule{}, ErrRuleNotFound
		case err != nil:
			continue
		}
		return updated, nil
	}
	return models.AvailabilityRule{}, fmt.Errorf("err updating rule %d: %w", id, err)
}

// DeactivateRule soft-deletes so historical bookings stay attributable to
// the rule that produced them.
func (s *Store) DeactivateRule(ctx context.Context, id, hostID int) (models.AvailabilityRule, error) {
	var updated models.AvailabilityRule
	query := `
UPDATE availability_rules
SET is_active = false,
	updated_at = now()
WHERE id = $1 AND user_id = $2
RETURNING *;`
	start := time.Now()
	var err error
	defer func() { observe("DeactivateRule", start, err) }()
	for i := 0; i < retries; i++ {
		err = s.db.GetContext(ctx, &updated, query, id, hostID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return models.AvailabilityRule{}, ErrRuleNotFound
		case err != nil:
			continue
		}
		return updated, nil
	}
	return models.AvailabilityRule{}, fmt.Errorf("err deactivating rule %d: %w", id, err)
}

// HostBookings returns the host's non-cancelled bookings intersecting
// [from, to). This is the live set conflict checks run against.
func (s *Store) HostBookings(ctx context.Context, hostID int, from, to time.Time) ([]models.Booking, error) {
	var bookings []models.Booking
	query := `
SELECT * FROM bookings
WHERE host_id = $1
  AND status <> 'cancelled'
  AND start_at < $3
  AND end_at > $2
ORDER BY start_at;`
	start := time.Now()
	var err error
	defer func() { observe("HostBookings", start, err) }()
	for i := 0; i < retries; i++ {
		if err = s.db.SelectContext(ctx, &bookings, query, hostID, from, to); err != nil {
			continue
		}
		return bookings, nil
	}
	return nil, fmt.Errorf("err getting bookings for host %d: %w", hostID, err)
}

// InsertBooking commits a new booking row. The partial unique index on
// (host_id, start_at) over blocking rows is the storage-level guard behind
// the per-host lock; a violation surfaces as ErrDuplicateBooking. No retry
// loop here: a failed or timed-out insert must never be assumed committed.
func (s *Store) InsertBooking(ctx context.Context, booking models.Booking) (models.Booking, error) {
	var created models.Booking
	query := `
INSERT INTO bookings (ref, host_id, guest_id, guest_name, guest_email, title, description, start_at, end_at, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING *;`
	start := time.Now()
	var err error
	defer func() { observe("InsertBooking", start, err) }()
	err = s.db.GetContext(ctx, &created, query,
		booking.Ref, booking.HostID, booking.GuestID, booking.GuestName, booking.GuestEmail,
		booking.Title, booking.Description, booking.StartTime, booking.EndTime, booking.Status)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return models.Booking{}, ErrDuplicateBooking
		}
		return models.Booking{}, fmt.Errorf("err inserting booking: %w", err)
	}
	return created, nil
}

func (s *Store) GetBooking(ctx context.Context, id int) (models.Booking, error) {
	var booking models.Booking
	query := `
SELECT * FROM bookings
WHERE id = $1;`
	start := time.Now()
	var err error
	defer func() { observe("GetBooking", start, err) }()
	for i := 0; i < retries; i++ {
		err = s.db.GetContext(ctx, &booking, query, id)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return models.Booking{}, ErrBookingNotFound
		case err != nil:
			continue
		}
		return booking, nil
	}
	return models.Booking{}, fmt.Errorf("err getting booking %d: %w", id, err)
}

// UserBookings returns bookings the user participates in, as host or guest.
func (s *Store) UserBookings(ctx context.Context, userID int) ([]models.Booking, error) {
	var bookings []models.Booking
	query := `
SELECT * FROM bookings
WHERE host_id = $1 OR guest_id = $1
ORDER BY start_at;`
	start := time.Now()
	var err error
	defer func() { observe("UserBookings", start, err) }()
	for i := 0; i < retries; i++ {
		if err = s.db.SelectContext(ctx, &bookings, query, userID); err != nil {
			continue
		}
		return bookings, nil
	}
	return nil, fmt.Errorf("err getting bookings for user %d: %w", userID, err)
}

func (s *Store) UpdateBookingStatus(ctx context.Context, id int, status models.BookingStatus) (models.Booking, error) {
	var updated models.Booking
	query := `
UPDATE bookings
SET status = $2,
	updated_at = now()
WHERE id = $1
RETURNING *;`
	start := time.Now()
	var err error
	defer func() { observe("UpdateBookingStatus", start, err) }()
	err = s.db.GetContext(ctx, &updated, query, id, status)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return models.Booking{}, ErrBookingNotFound
	case err != nil:
		return models.Booking{}, fmt.Errorf("err updating booking %d status: %w", id, err)
	}
	return updated, nil
}

// CompleteElapsed flips confirmed bookings whose end has passed to
// completed. Run periodically by the worker.
func (s *Store) CompleteElapsed(ctx context.Context, now time.Time) (int64, error) {
	query := `
UPDATE bookings
SET status = 'completed',
	updated_at = now()
WHERE status = 'confirmed' AND end_at <= $1;`
	start := time.Now()
	var err error
	defer func() { observe("CompleteElapsed", start, err) }()
	res, err := s.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("err completing elapsed bookings: %w", err)
	}
	return res.RowsAffected()
}

// UpcomingUnnotified returns blocking bookings starting within [from, to)
// whose reminder has not gone out yet.
func (s *Store) UpcomingUnnotified(ctx context.Context, from, to time.Time) ([]models.Booking, error) {
	var bookings []models.Booking
	query := `
SELECT * FROM bookings
WHERE status IN ('pending', 'confirmed')
  AND notified = false
  AND start_at >= $1
  AND start_at < $2
ORDER BY start_at;`
	start := time.Now()
	var err error
	defer func() { observe("UpcomingUnnotified", start, err) }()
	for i := 0; i < retries; i++ {
		if err = s.db.SelectContext(ctx, &bookings, query, from, to); err != nil {
			continue
		}
		return bookings, nil
	}
	return nil, fmt.Errorf("err getting upcoming bookings: %w", err)
}

func (s *Store) MarkNotified(ctx context.Context, id int) error {
	query := `
UPDATE bookings
SET notified = true
WHERE id = $1;`
	start := time.Now()
	var err error
	defer func() { observe("MarkNotified", start, err) }()
	if _, err = s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("err marking booking %d notified: %w", id, err)
	}
	return nil
}

func (s *Store) GetTeam(ctx context.Context, id int) (models.Team, error) {
	var team models.Team
	query := `
SELECT * FROM teams
WHERE id = $1 AND is_active = true;`
	start := time.Now()
	var err error
	defer func() { observe("GetTeam", start, err) }()
	for i := 0; i < retries; i++ {
		err = s.db.GetContext(ctx, &team, query, id)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return models.Team{}, ErrTeamNotFound
		case err != nil:
			continue
		}
		return team, nil
	}
	return models.Team{}, fmt.Errorf("err getting team %d: %w", id, err)
}

func (s *Store) ListTeams(ctx context.Context) ([]models.TeamSummary, error) {
	var teams []models.TeamSummary
	query := `
SELECT t.id, t.name, t.description,
	count(m.id) FILTER (WHERE m.is_active) AS member_count
FROM teams t
LEFT JOIN team_members m ON m.team_id = t.id
WHERE t.is_active = true
GROUP BY t.id
ORDER BY t.id;`
	start := time.Now()
	var err error
	defer func() { observe("ListTeams", start, err) }()
	for i := 0; i < retries; i++ {
		if err = s.db.SelectContext(ctx, &teams, query); err != nil {
			continue
		}
		return teams, nil
	}
	return nil, fmt.Errorf("err listing teams: %w", err)
}

// TeamMemberSchedules assembles the per-member input for aggregation and
// assignment: active members with their active rules and the bookings
// intersecting [from, to).
func (s *Store) TeamMemberSchedules(ctx context.Context, teamID int, from, to time.Time) ([]models.MemberSchedule, error) {
	type row struct {
		models.User
		MemberID   int    `db:"member_id"`
		MemberRole string `db:"member_role"`
		Priority   *int   `db:"priority"`
	}
	var rows []row
	query := `
SELECT u.*, m.id AS member_id, m.role AS member_role, m.priority
FROM team_members m
JOIN users u ON u.id = m.user_id
WHERE m.team_id = $1 AND m.is_active = true AND u.is_active = true
ORDER BY u.id;`
	start := time.Now()
	var err error
	defer func() { observe("TeamMemberSchedules", start, err) }()
	if err = s.db.SelectContext(ctx, &rows, query, teamID); err != nil {
		return nil, fmt.Errorf("err getting members for team %d: %w", teamID, err)
	}

	schedules := make([]models.MemberSchedule, 0, len(rows))
	for _, r := range rows {
		rules, er := s.ActiveRules(ctx, r.User.ID)
		if er != nil {
			return nil, er
		}
		bookings, er := s.HostBookings(ctx, r.User.ID, from, to)
		if er != nil {
			return nil, er
		}
		schedules = append(schedules, models.MemberSchedule{
			User: r.User,
			Member: models.TeamMember{
				ID:       r.MemberID,
				TeamID:   teamID,
				UserID:   r.User.ID,
				Role:     r.MemberRole,
				Active:   true,
				Priority: r.Priority,
			},
			Rules:    rules,
			Bookings: bookings,
		})
	}
	return schedules, nil
}

func (s *Store) QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return s.db.QueryRowContext(ctx, query, args...)
}

func (s *Store) ResetTables(ctx context.Context, tables []string) error {
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, `TRUNCATE TABLE `+table+` RESTART IDENTITY CASCADE`); err != nil {
			return err
		}
	}
	return nil
}
