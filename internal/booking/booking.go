package booking

import (
	"fmt"
	"time"
)

// MaxDuration is the organization-wide ceiling for a single charging slot.
const MaxDuration = 2 * time.Hour

// Window is a proposed [Start, End) charging interval.
type Window struct {
	Start time.Time
	End   time.Time
}

// Duration returns the length of the window.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Reason identifies why an admission request was rejected.
type Reason string

const (
	// ReasonInvalidWindow indicates the end does not lie after the start.
	ReasonInvalidWindow Reason = "invalid_window"
	// ReasonDurationExceeded indicates the window is longer than MaxDuration.
	ReasonDurationExceeded Reason = "duration_exceeded"
	// ReasonPastStart indicates the window starts in the past.
	ReasonPastStart Reason = "past_start"
	// ReasonSlotConflict indicates another reservation occupies the charger.
	ReasonSlotConflict Reason = "slot_conflict"
	// ReasonUnitQuotaExceeded indicates the requesting unit already holds a
	// current or future reservation.
	ReasonUnitQuotaExceeded Reason = "unit_quota_exceeded"
	// ReasonUnknownCharger indicates the charger id is outside the account's
	// configured range.
	ReasonUnknownCharger Reason = "unknown_charger"
)

// Rejection is a terminal admission failure that callers surface to users.
type Rejection struct {
	Reason Reason
	Detail string
}

// Error implements the error interface.
func (r *Rejection) Error() string {
	if r == nil {
		return ""
	}
	if r.Detail == "" {
		return string(r.Reason)
	}
	return fmt.Sprintf("%s: %s", r.Reason, r.Detail)
}

// Reject builds a rejection with a formatted detail message.
func Reject(reason Reason, format string, args ...any) *Rejection {
	return &Rejection{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// ValidateWindow checks a proposed window for basic sanity against the
// supplied reference time. It is a pure function: no repository access and
// no side effects.
//
// Sub-second timestamps are refused rather than rounded: the store compares
// intervals as RFC3339 second-resolution text, and silently truncating could
// turn a real overlap into an apparent abutment.
func ValidateWindow(w Window, now time.Time) *Rejection {
	if w.Start.Nanosecond() != 0 || w.End.Nanosecond() != 0 {
		return Reject(ReasonInvalidWindow, "start and end must be whole seconds")
	}
	if !w.End.After(w.Start) {
		return Reject(ReasonInvalidWindow, "end must be after start")
	}
	if w.Duration() > MaxDuration {
		return Reject(ReasonDurationExceeded, "slots are limited to %s per reservation", MaxDuration)
	}
	if w.Start.Before(now) {
		return Reject(ReasonPastStart, "start must not be in the past")
	}
	return nil
}

// Slot is an existing reservation interval on a charger, as seen by the
// conflict detector.
type Slot struct {
	ReservationID string
	ChargerID     int
	Start         time.Time
	End           time.Time
}

// Conflict names the existing reservation that collides with a candidate.
type Conflict struct {
	ReservationID string
	ChargerID     int
	Start         time.Time
	End           time.Time
}

// Overlaps reports whether two half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect. Intervals that exactly abut do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// FindConflict returns the first existing slot on the same charger that
// overlaps the candidate, or nil when the candidate fits. The existing
// slots may span several chargers; only same-charger entries are tested.
func FindConflict(existing []Slot, candidate Slot) *Conflict {
	for _, slot := range existing {
		if slot.ChargerID != candidate.ChargerID {
			continue
		}
		if slot.ReservationID != "" && slot.ReservationID == candidate.ReservationID {
			continue
		}
		if Overlaps(candidate.Start, candidate.End, slot.Start, slot.End) {
			return &Conflict{
				ReservationID: slot.ReservationID,
				ChargerID:     slot.ChargerID,
				Start:         slot.Start,
				End:           slot.End,
			}
		}
	}
	return nil
}
