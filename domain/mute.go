package domain

import (
	"fmt"
	"time"

	"group-lab/errors"
)

const (
	// LegacyNoMute is the historical wire encoding of "not muted": old
	// servers signaled it by unsigned wraparound instead of zero. Every
	// read path treats it exactly like 0, never as a four-billion-second
	// mute. Kept for compatibility with servers still in the field.
	LegacyNoMute uint32 = 0xFFFFFFFF

	// MaxMuteSeconds caps a mute request at thirty days.
	MaxMuteSeconds int64 = 30 * 24 * 3600
)

// ValidateMuteSeconds checks a requested mute duration before any remote
// call is issued. The protocol is second-precise end to end; rounding to
// whole minutes is a presentation concern and never happens here.
func ValidateMuteSeconds(sec int64) error {
	if sec <= 0 {
		return fmt.Errorf("%w: mute duration must be positive, got %ds", errors.ErrInvalidArgument, sec)
	}
	if sec > MaxMuteSeconds {
		return fmt.Errorf("%w: mute duration %ds exceeds %ds (30 days)", errors.ErrInvalidArgument, sec, MaxMuteSeconds)
	}
	return nil
}

// DecodeMuteSeconds normalizes a wire-encoded remaining-mute value.
// Both 0 and the legacy sentinel decode to "not muted"; any other value
// is remaining seconds, verbatim.
func DecodeMuteSeconds(raw uint32) int64 {
	if raw == 0 || raw == LegacyNoMute {
		return 0
	}
	return int64(raw)
}

// MuteRemaining derives the seconds left on a mute deadline. A zero
// deadline or one already passed yields 0.
func MuteRemaining(until time.Time, now time.Time) int64 {
	if until.IsZero() || !until.After(now) {
		return 0
	}
	return int64(until.Sub(now) / time.Second)
}
