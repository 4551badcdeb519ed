package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return time.Date(2025, 6, 1, h, m, 0, 0, time.UTC)
}

func TestValidateWindow(t *testing.T) {
	now := at(9, 0)

	tests := []struct {
		name   string
		window Window
		reason Reason
	}{
		{
			name:   "accepts a one hour slot",
			window: Window{Start: at(10, 0), End: at(11, 0)},
		},
		{
			name:   "accepts exactly two hours",
			window: Window{Start: at(10, 0), End: at(12, 0)},
		},
		{
			name:   "accepts a slot starting now",
			window: Window{Start: at(9, 0), End: at(10, 0)},
		},
		{
			name:   "rejects end before start",
			window: Window{Start: at(11, 0), End: at(10, 0)},
			reason: ReasonInvalidWindow,
		},
		{
			name:   "rejects zero length",
			window: Window{Start: at(10, 0), End: at(10, 0)},
			reason: ReasonInvalidWindow,
		},
		{
			name:   "rejects three hours",
			window: Window{Start: at(9, 0), End: at(12, 0)},
			reason: ReasonDurationExceeded,
		},
		{
			name:   "rejects a past start",
			window: Window{Start: at(8, 0), End: at(9, 30)},
			reason: ReasonPastStart,
		},
		{
			name: "rejects yesterday",
			window: Window{
				Start: base.AddDate(0, 0, -1),
				End:   base.AddDate(0, 0, -1).Add(time.Hour),
			},
			reason: ReasonPastStart,
		},
		{
			name: "rejects a sub-second start",
			window: Window{
				Start: at(10, 0).Add(200 * time.Millisecond),
				End:   at(11, 0),
			},
			reason: ReasonInvalidWindow,
		},
		{
			name: "rejects a sub-second end",
			window: Window{
				Start: at(10, 0),
				End:   at(11, 0).Add(400 * time.Millisecond),
			},
			reason: ReasonInvalidWindow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rejection := ValidateWindow(tt.window, now)
			if tt.reason == "" {
				assert.Nil(t, rejection)
				return
			}
			require.NotNil(t, rejection)
			assert.Equal(t, tt.reason, rejection.Reason)
		})
	}
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name                           string
		aStart, aEnd, bStart, bEnd     time.Time
		want                           bool
	}{
		{
			name:   "partial overlap",
			aStart: at(10, 30), aEnd: at(11, 30),
			bStart: at(10, 0), bEnd: at(11, 0),
			want: true,
		},
		{
			name:   "containment",
			aStart: at(10, 15), aEnd: at(10, 45),
			bStart: at(10, 0), bEnd: at(11, 0),
			want: true,
		},
		{
			name:   "identical",
			aStart: at(10, 0), aEnd: at(11, 0),
			bStart: at(10, 0), bEnd: at(11, 0),
			want: true,
		},
		{
			name:   "exact abutment is not a conflict",
			aStart: at(11, 0), aEnd: at(12, 0),
			bStart: at(10, 0), bEnd: at(11, 0),
			want: false,
		},
		{
			name:   "abutment on the other side",
			aStart: at(9, 0), aEnd: at(10, 0),
			bStart: at(10, 0), bEnd: at(11, 0),
			want: false,
		},
		{
			name:   "disjoint",
			aStart: at(14, 0), aEnd: at(15, 0),
			bStart: at(10, 0), bEnd: at(11, 0),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overlaps(tt.aStart, tt.aEnd, tt.bStart, tt.bEnd))
			assert.Equal(t, tt.want, Overlaps(tt.bStart, tt.bEnd, tt.aStart, tt.aEnd), "predicate must be symmetric")
		})
	}
}

func TestFindConflict(t *testing.T) {
	existing := []Slot{
		{ReservationID: "res-1", ChargerID: 1, Start: at(10, 0), End: at(11, 0)},
		{ReservationID: "res-2", ChargerID: 2, Start: at(10, 0), End: at(12, 0)},
	}

	t.Run("reports the colliding reservation", func(t *testing.T) {
		conflict := FindConflict(existing, Slot{ChargerID: 1, Start: at(10, 30), End: at(11, 30)})
		require.NotNil(t, conflict)
		assert.Equal(t, "res-1", conflict.ReservationID)
		assert.Equal(t, 1, conflict.ChargerID)
	})

	t.Run("ignores other chargers", func(t *testing.T) {
		conflict := FindConflict(existing, Slot{ChargerID: 3, Start: at(10, 0), End: at(11, 0)})
		assert.Nil(t, conflict)
	})

	t.Run("accepts exact abutment", func(t *testing.T) {
		conflict := FindConflict(existing, Slot{ChargerID: 1, Start: at(11, 0), End: at(12, 0)})
		assert.Nil(t, conflict)
	})

	t.Run("skips the candidate itself", func(t *testing.T) {
		conflict := FindConflict(existing, Slot{ReservationID: "res-1", ChargerID: 1, Start: at(10, 0), End: at(11, 0)})
		assert.Nil(t, conflict)
	})
}
