package e2e

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"group-lab/contract"
	"group-lab/domain"
	"group-lab/infrastructure/arpc/client"
)

type testModerationSuite struct {
	BaseSuite
}

func TestModerationSuite(t *testing.T) {
	suite.Run(t, &testModerationSuite{})
}

func (s *testModerationSuite) TestFullModerationFlow() {
	s.WithSession("Moderation round trip", func(ctx context.Context, session *client.Session) {
		self := domain.MemberID(s.Config.BotID)

		var group domain.GroupID
		var target domain.MemberID

		// --- STEP 0: DISCOVER ROSTERS ---
		s.Run("Step 0: Fetch rosters and pick a target", func() {
			snaps, err := session.FetchGroups(ctx)
			s.Require().NoError(err)
			s.Require().NotEmpty(snaps, "The account is in no group, nothing to moderate")

			group, target = pickTarget(snaps, self)
			s.Require().NotZero(target, "No group where the account outranks a member")
			s.T().Logf("Acting on member %d in group %d", target, group)
		})

		// --- STEP 1: CARD ROUND TRIP ---
		// The server acknowledges the write, then echoes it on the push
		// feed like any other observed change.
		card := "e2e-" + uuid.New().String()[:8]
		s.Run("Step 1: Set card and observe the echo push", func() {
			rsp := s.Mutate(ctx, s.T(), session, contract.MutationRequest{
				Group: group, Member: target, Action: domain.ActionSetCard, Text: card,
			})
			s.Require().Equal(contract.ResponseOK, rsp.Code, rsp.Detail)

			s.AwaitChange(session, 10*time.Second, func(c domain.Change) bool {
				cc, ok := c.(domain.CardChange)
				return ok && cc.Group == group && cc.Member == target && cc.Card == card
			})
			s.T().Logf("Verified: card push observed for %q", card)
		})

		// --- STEP 2: MUTE / UNMUTE CYCLE ---
		s.Run("Step 2: Mute for two minutes and observe the push", func() {
			rsp := s.Mutate(ctx, s.T(), session, contract.MutationRequest{
				Group: group, Member: target, Action: domain.ActionMute, Seconds: 120,
			})
			s.Require().Equal(contract.ResponseOK, rsp.Code, rsp.Detail)

			s.AwaitChange(session, 10*time.Second, func(c domain.Change) bool {
				mc, ok := c.(domain.MuteChange)
				return ok && mc.Group == group && mc.Member == target &&
					domain.DecodeMuteSeconds(mc.RawSeconds) > 0
			})
		})

		s.Run("Step 3: Unmute and observe the cleared push", func() {
			rsp := s.Mutate(ctx, s.T(), session, contract.MutationRequest{
				Group: group, Member: target, Action: domain.ActionUnmute,
			})
			s.Require().Equal(contract.ResponseOK, rsp.Code, rsp.Detail)

			s.AwaitChange(session, 10*time.Second, func(c domain.Change) bool {
				mc, ok := c.(domain.MuteChange)
				return ok && mc.Group == group && mc.Member == target &&
					domain.DecodeMuteSeconds(mc.RawSeconds) == 0
			})
		})

		// --- STEP 3: SERVER-SIDE REFUSALS ---
		// Muting yourself never outranks, whatever role the account holds,
		// so this probe is deterministic on any deployment.
		s.Run("Step 4: Muting yourself is refused", func() {
			rsp := s.Mutate(ctx, s.T(), session, contract.MutationRequest{
				Group: group, Member: self, Action: domain.ActionMute, Seconds: 60,
			})
			s.Require().Equal(contract.ResponseDenied, rsp.Code)
		})

		s.Run("Step 5: Zero-second mute is a bad argument", func() {
			rsp := s.Mutate(ctx, s.T(), session, contract.MutationRequest{
				Group: group, Member: target, Action: domain.ActionMute, Seconds: 0,
			})
			s.Require().Equal(contract.ResponseBadArgument, rsp.Code)
		})
	})
}

// pickTarget finds a group where the account strictly outranks another
// member, which is the precondition for every moderation probe above.
func pickTarget(snaps []domain.GroupSnapshot, self domain.MemberID) (domain.GroupID, domain.MemberID) {
	for _, snap := range snaps {
		var mine domain.Role
		seated := false
		for _, m := range snap.Members {
			if m.Key.Member == self {
				mine = m.Role
				seated = true
				break
			}
		}
		if !seated {
			continue
		}
		for _, m := range snap.Members {
			if m.Key.Member != self && mine.Outranks(m.Role) {
				return snap.Group, m.Key.Member
			}
		}
	}
	return 0, 0
}
