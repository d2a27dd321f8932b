package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"group-lab/errors"
)

func Test_ValidateMuteSeconds_Bounds(t *testing.T) {
	req := require.New(t)

	req.NoError(ValidateMuteSeconds(1))
	req.NoError(ValidateMuteSeconds(600))
	req.NoError(ValidateMuteSeconds(MaxMuteSeconds))

	req.ErrorIs(ValidateMuteSeconds(0), errors.ErrInvalidArgument)
	req.ErrorIs(ValidateMuteSeconds(-30), errors.ErrInvalidArgument)
	req.ErrorIs(ValidateMuteSeconds(MaxMuteSeconds+1), errors.ErrInvalidArgument)

	// The legacy wire sentinel is a read-side encoding, never a valid
	// duration to ask for.
	req.ErrorIs(ValidateMuteSeconds(int64(LegacyNoMute)), errors.ErrInvalidArgument)
}

func Test_DecodeMuteSeconds_Treats_Sentinel_As_Unmuted(t *testing.T) {
	req := require.New(t)

	req.Zero(DecodeMuteSeconds(0))
	req.Zero(DecodeMuteSeconds(LegacyNoMute))
	req.Equal(int64(1), DecodeMuteSeconds(1))
	req.Equal(int64(600), DecodeMuteSeconds(600))
}

func Test_MuteRemaining_Counts_Down_To_Zero(t *testing.T) {
	req := require.New(t)
	now := time.Now()

	req.Zero(MuteRemaining(time.Time{}, now))
	req.Zero(MuteRemaining(now.Add(-time.Minute), now))
	req.Equal(int64(90), MuteRemaining(now.Add(90*time.Second), now))
}
