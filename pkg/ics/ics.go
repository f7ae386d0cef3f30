package ics

import (
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/bcal-io/bcal/pkg/models"
)

const prodID = "-//BCal//Calendar Booking//EN"

// Invite renders an ICS REQUEST for a booking so the guest can add it to
// any calendar client.
func Invite(booking models.Booking, host models.User, now time.Time) string {
	return render(booking, host, now, ical.MethodRequest, "CONFIRMED")
}

// Cancellation renders the matching ICS CANCEL for a cancelled booking.
// The UID matches the original invite so clients update the same event.
func Cancellation(booking models.Booking, host models.User, now time.Time) string {
	return render(booking, host, now, ical.MethodCancel, "CANCELLED")
}

func render(booking models.Booking, host models.User, now time.Time, method ical.Method, status string) string {
	cal := ical.NewCalendar()
	cal.SetProductId(prodID)
	cal.SetVersion("2.0")
	cal.SetCalscale("GREGORIAN")
	cal.SetMethod(method)

	event := cal.AddEvent(fmt.Sprintf("bcal-booking-%s@bcal.io", booking.Ref))
	event.SetSummary(booking.Title)
	event.SetStartAt(booking.StartTime.UTC())
	event.SetEndAt(booking.EndTime.UTC())
	event.SetDtStampTime(now.UTC())
	event.SetOrganizer("mailto:" + host.Email)
	event.AddAttendee(booking.GuestEmail)
	event.SetStatus(ical.ObjectStatus(status))

	description := booking.Description
	if description == "" {
		description = "Meeting with " + host.FullName()
	}
	event.SetDescription(description)

	return cal.Serialize()
}
