package models

import "time"

type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusCancelled BookingStatus = "cancelled"
	StatusCompleted BookingStatus = "completed"
)

// Blocks returns true when the booking occupies its interval for conflict
// purposes. Cancelled and completed bookings never block.
func (s BookingStatus) Blocks() bool {
	return s == StatusPending || s == StatusConfirmed
}

// Terminal reports whether no further transitions are allowed.
func (s BookingStatus) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

type Booking struct {
	ID          int           `json:"id" db:"id"`
	Ref         string        `json:"ref" db:"ref"`
	HostID      int           `json:"hostId" db:"host_id"`
	GuestID     *int          `json:"guestId" db:"guest_id"`
	GuestName   string        `json:"guestName" db:"guest_name"`
	GuestEmail  string        `json:"guestEmail" db:"guest_email"`
	Title       string        `json:"title" db:"title"`
	Description string        `json:"description" db:"description"`
	StartTime   time.Time     `json:"startTime" db:"start_at"`
	EndTime     time.Time     `json:"endTime" db:"end_at"`
	Status      BookingStatus `json:"status" db:"status"`
	Notified    bool          `json:"-" db:"notified"`
	CreatedAt   time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time     `json:"updatedAt" db:"updated_at"`
}

// BookingRequest targets either a single host or a team; exactly one of
// HostID/TeamID must be set.
type BookingRequest struct {
	HostID      *int       `json:"hostId"`
	TeamID      *int       `json:"teamId"`
	StartTime   *time.Time `json:"startTime"`
	EndTime     *time.Time `json:"endTime"`
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	GuestName   *string    `json:"guestName"`
	GuestEmail  *string    `json:"guestEmail"`
	MeetingType *string    `json:"meetingType"`
}

type BookingStatusRequest struct {
	Status BookingStatus `json:"status"`
}

type RescheduleRequest struct {
	StartTime *time.Time `json:"startTime"`
	EndTime   *time.Time `json:"endTime"`
}

// BookingResponse is what the public booking endpoint returns: the stored
// row plus a rendered ICS invite for the guest's calendar. Reschedules also
// carry the cancellation for the superseded event, which has its own UID.
type BookingResponse struct {
	Booking      Booking `json:"booking"`
	Host         User    `json:"host"`
	Calendar     string  `json:"icsCalendar,omitempty"`
	Cancellation string  `json:"icsCancellation,omitempty"`
}
