package scheduling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcal-io/bcal/pkg/models"
)

func TestOverlapsHalfOpen(t *testing.T) {
	tests := []struct {
		name                           string
		aStart, aEnd, bStart, bEnd     time.Time
		want                           bool
	}{
		{"disjoint", at(9, 0), at(10, 0), at(11, 0), at(12, 0), false},
		{"back to back", at(9, 0), at(10, 0), at(10, 0), at(11, 0), false},
		{"identical", at(9, 0), at(10, 0), at(9, 0), at(10, 0), true},
		{"partial", at(9, 30), at(10, 30), at(10, 0), at(11, 0), true},
		{"contained", at(9, 0), at(12, 0), at(10, 0), at(11, 0), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overlaps(tt.aStart, tt.aEnd, tt.bStart, tt.bEnd))
			assert.Equal(t, tt.want, Overlaps(tt.bStart, tt.bEnd, tt.aStart, tt.aEnd))
		})
	}
}

func TestHasConflictStatusFilter(t *testing.T) {
	rule := scenarioRule()
	for status, want := range map[models.BookingStatus]bool{
		models.StatusPending:   true,
		models.StatusConfirmed: true,
		models.StatusCancelled: false,
		models.StatusCompleted: false,
	} {
		existing := []models.Booking{booking(at(10, 0), at(11, 0), status)}
		assert.Equal(t, want, HasConflict(at(10, 0), at(11, 0), existing, rule), "status %s", status)
	}
}

func TestHasConflictBufferAfter(t *testing.T) {
	rule := scenarioRule() // buffer_after = 15
	existing := []models.Booking{booking(at(10, 0), at(11, 0), models.StatusConfirmed)}

	// Starting inside (11:00, 11:15) conflicts, at 11:15 it does not.
	assert.True(t, HasConflict(at(11, 0), at(12, 0), existing, rule))
	assert.True(t, HasConflict(at(11, 14), at(12, 0), existing, rule))
	assert.False(t, HasConflict(at(11, 15), at(12, 0), existing, rule))
}

func TestCheckPolicy(t *testing.T) {
	rule := scenarioRule()
	rule.MaxBookingDays = 90

	require.NoError(t, CheckPolicy(at(9, 0), rule, at(7, 0)))
	assert.ErrorIs(t, CheckPolicy(at(9, 0), rule, at(8, 0)), ErrInsufficientNotice)
	assert.ErrorIs(t, CheckPolicy(at(9, 0).AddDate(0, 0, 91), rule, at(7, 0)), ErrBeyondLeadTime)
	// Horizon boundary is inclusive.
	require.NoError(t, CheckPolicy(at(7, 0).Add(90*24*time.Hour), rule, at(7, 0)))
}

func TestCheckPolicyUnboundedLeadTime(t *testing.T) {
	rule := scenarioRule()
	rule.MaxBookingDays = 0
	require.NoError(t, CheckPolicy(at(9, 0).AddDate(5, 0, 0), rule, at(7, 0)))
}

func TestValidateInterval(t *testing.T) {
	require.NoError(t, ValidateInterval(at(9, 0), at(10, 0)))

	var verr *ValidationError
	err := ValidateInterval(at(10, 0), at(9, 0))
	require.Error(t, err)
	assert.ErrorAs(t, err, &verr)

	assert.Error(t, ValidateInterval(at(9, 0), at(9, 0)))
	assert.Error(t, ValidateInterval(time.Time{}, at(9, 0)))
}

func TestCheckPolicyNormalizesZones(t *testing.T) {
	rule := scenarioRule()
	loc := time.FixedZone("UTC+3", 3*60*60)
	// 09:00 UTC expressed as 12:00 UTC+3 is the same instant.
	require.NoError(t, CheckPolicy(at(9, 0).In(loc), rule, at(7, 0)))
	assert.ErrorIs(t, CheckPolicy(at(9, 0).In(loc), rule, at(8, 0).In(loc)), ErrInsufficientNotice)
}
