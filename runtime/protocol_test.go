package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"group-lab/contract"
	"group-lab/domain"
	"group-lab/domain/event"
	"group-lab/errors"
	"group-lab/mocks"
	"group-lab/moderation"
	"group-lab/observability"
)

type protocolHarness struct {
	protocol  *Protocol
	group     *Group
	transport *mocks.MockTransport
	events    chan event.GroupEvent
}

// newProtocolHarness builds a protocol over a mocked transport and one
// live group. The apply loop normally runs under the supervisor; tests
// drive it directly.
func newProtocolHarness(t *testing.T, screen *moderation.Screen) protocolHarness {
	t.Helper()
	ctrl := gomock.NewController(t)
	log := logs.GetLoggerFromLevel(slog.LevelError)
	mon := observability.NewMonitoringManager(log)
	transport := mocks.NewMockTransport(ctrl)

	events := make(chan event.GroupEvent, 16)
	g := newGroup(log, mon, func(e event.GroupEvent) { events <- e }, domain.GroupSnapshot{
		Bot:   99,
		Group: 42,
		Name:  "ops",
		Members: []domain.MemberSnapshot{
			{Key: domain.MemberKey{Bot: 99, Group: 42, Member: 99}, Role: domain.RoleOwner, Card: "the-bot"},
			{Key: domain.MemberKey{Bot: 99, Group: 42, Member: 5}, Role: domain.RoleMember, Card: "alice"},
			{Key: domain.MemberKey{Bot: 99, Group: 42, Member: 6}, Role: domain.RoleAdmin, Card: "bob"},
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	go g.Run(ctx)
	t.Cleanup(cancel)

	return protocolHarness{
		protocol:  NewProtocol(log, transport, screen, mon, 2*time.Second),
		group:     g,
		transport: transport,
		events:    events,
	}
}

// No transport expectation is registered in the fast-fail tests: gomock
// fails the test if a rejected mutation still reaches the wire.

func TestProtocol_ArgumentLimitsCheckedBeforeWire(t *testing.T) {
	req := require.New(t)
	h := newProtocolHarness(t, nil)
	ctx := context.Background()

	err := h.protocol.execute(ctx, h.group, 99, 5, domain.ActionSetCard, strings.Repeat("x", 61), 0)
	req.ErrorIs(err, errors.ErrInvalidArgument)

	err = h.protocol.execute(ctx, h.group, 99, 5, domain.ActionSetTitle, strings.Repeat("x", 19), 0)
	req.ErrorIs(err, errors.ErrInvalidArgument)

	err = h.protocol.execute(ctx, h.group, 99, 5, domain.ActionKick, strings.Repeat("x", 121), 0)
	req.ErrorIs(err, errors.ErrInvalidArgument)

	err = h.protocol.execute(ctx, h.group, 99, 5, domain.ActionMute, "", 0)
	req.ErrorIs(err, errors.ErrInvalidArgument)

	err = h.protocol.execute(ctx, h.group, 99, 5, domain.ActionMute, "", -30)
	req.ErrorIs(err, errors.ErrInvalidArgument)

	err = h.protocol.execute(ctx, h.group, 99, 5, domain.ActionMute, "", domain.MaxMuteSeconds+1)
	req.ErrorIs(err, errors.ErrInvalidArgument)

	err = h.protocol.execute(ctx, h.group, 99, 5, domain.Action(42), "", 0)
	req.ErrorIs(err, errors.ErrInvalidArgument)
}

func TestProtocol_BannedWordsRejectedBeforeWire(t *testing.T) {
	req := require.New(t)
	screen, err := moderation.NewScreen([]string{"badword"})
	req.NoError(err)
	h := newProtocolHarness(t, &screen)

	err = h.protocol.execute(context.Background(), h.group, 99, 5, domain.ActionSetCard, "totally badword here", 0)
	req.ErrorIs(err, errors.ErrInvalidArgument)
}

func TestProtocol_PermissionGateRunsLocally(t *testing.T) {
	req := require.New(t)
	h := newProtocolHarness(t, nil)
	ctx := context.Background()

	// A plain member muting an admin.
	err := h.protocol.execute(ctx, h.group, 5, 6, domain.ActionMute, "", 60)
	req.ErrorIs(err, errors.ErrPermissionDenied)

	// Muting yourself: outranking is strict, self never qualifies.
	err = h.protocol.execute(ctx, h.group, 5, 5, domain.ActionMute, "", 60)
	req.ErrorIs(err, errors.ErrPermissionDenied)

	// Titles are the owner's privilege, admin is not enough.
	err = h.protocol.execute(ctx, h.group, 6, 5, domain.ActionSetTitle, "vip", 0)
	req.ErrorIs(err, errors.ErrPermissionDenied)

	// An admin kicking the owner.
	err = h.protocol.execute(ctx, h.group, 6, 99, domain.ActionKick, "", 0)
	req.ErrorIs(err, errors.ErrPermissionDenied)
}

func TestProtocol_ActorMissingIsProtocolInconsistency(t *testing.T) {
	req := require.New(t)
	h := newProtocolHarness(t, nil)

	err := h.protocol.execute(context.Background(), h.group, 404, 5, domain.ActionSetCard, "x", 0)
	req.ErrorIs(err, errors.ErrProtocolInconsistency)
}

func TestProtocol_TargetMissingIsTargetNotFound(t *testing.T) {
	req := require.New(t)
	h := newProtocolHarness(t, nil)

	err := h.protocol.execute(context.Background(), h.group, 99, 404, domain.ActionSetCard, "x", 0)
	req.ErrorIs(err, errors.ErrTargetNotFound)
}

func TestProtocol_ServerVerdictMapping(t *testing.T) {
	req := require.New(t)
	h := newProtocolHarness(t, nil)
	ctx := context.Background()

	gomock.InOrder(
		h.transport.EXPECT().SendGroupMutation(gomock.Any(), gomock.Any()).
			Return(contract.MutationResponse{Code: contract.ResponseDenied, Detail: "server says no"}, nil),
		h.transport.EXPECT().SendGroupMutation(gomock.Any(), gomock.Any()).
			Return(contract.MutationResponse{Code: contract.ResponseBadArgument, Detail: "card rejected"}, nil),
		h.transport.EXPECT().SendGroupMutation(gomock.Any(), gomock.Any()).
			Return(contract.MutationResponse{Code: contract.ResponseNoTarget}, nil),
		h.transport.EXPECT().SendGroupMutation(gomock.Any(), gomock.Any()).
			Return(contract.MutationResponse{Code: contract.ResponseCode(9)}, nil),
	)

	err := h.protocol.execute(ctx, h.group, 99, 5, domain.ActionSetCard, "a", 0)
	req.ErrorIs(err, errors.ErrPermissionDenied)

	err = h.protocol.execute(ctx, h.group, 99, 5, domain.ActionSetCard, "b", 0)
	req.ErrorIs(err, errors.ErrInvalidArgument)

	err = h.protocol.execute(ctx, h.group, 99, 5, domain.ActionSetCard, "c", 0)
	req.ErrorIs(err, errors.ErrTargetNotFound)

	// A verdict outside the protocol is never guessed at.
	err = h.protocol.execute(ctx, h.group, 99, 5, domain.ActionSetCard, "d", 0)
	req.ErrorIs(err, errors.ErrProtocolInconsistency)
}

func TestProtocol_TransportFailureIsTransient(t *testing.T) {
	req := require.New(t)
	h := newProtocolHarness(t, nil)

	h.transport.EXPECT().SendGroupMutation(gomock.Any(), gomock.Any()).
		Return(contract.MutationResponse{}, fmt.Errorf("connection reset")).Times(1)

	err := h.protocol.execute(context.Background(), h.group, 99, 5, domain.ActionSetCard, "x", 0)
	req.ErrorIs(err, errors.ErrTransient)
}

func TestProtocol_SuccessfulMutationUpdatesRoster(t *testing.T) {
	req := require.New(t)
	h := newProtocolHarness(t, nil)

	h.transport.EXPECT().SendGroupMutation(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, r contract.MutationRequest) (contract.MutationResponse, error) {
			req.Equal(domain.GroupID(42), r.Group)
			req.Equal(domain.MemberID(5), r.Member)
			req.Equal(domain.ActionSetCard, r.Action)
			req.Equal("ops-alice", r.Text)
			return contract.MutationResponse{Code: contract.ResponseOK}, nil
		}).Times(1)

	err := h.protocol.execute(context.Background(), h.group, 99, 5, domain.ActionSetCard, "ops-alice", 0)
	req.NoError(err)

	v, ok := h.group.view(5)
	req.True(ok)
	req.Equal("ops-alice", v.card)

	select {
	case e := <-h.events:
		req.IsType(event.CardChanged{}, e)
	case <-time.After(2 * time.Second):
		req.Fail("no event published for the acknowledged mutation")
	}
}

func TestProtocol_CallerCancelDoesNotDesyncRoster(t *testing.T) {
	req := require.New(t)
	h := newProtocolHarness(t, nil)

	wireEntered := make(chan struct{})
	proceed := make(chan struct{})
	h.transport.EXPECT().SendGroupMutation(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ contract.MutationRequest) (contract.MutationResponse, error) {
			close(wireEntered)
			<-proceed
			return contract.MutationResponse{Code: contract.ResponseOK}, nil
		}).Times(1)

	callCtx, cancel := context.WithCancel(context.Background())
	res := make(chan error, 1)
	go func() {
		res <- h.protocol.execute(callCtx, h.group, 99, 5, domain.ActionSetCard, "late-card", 0)
	}()

	select {
	case <-wireEntered:
	case <-time.After(2 * time.Second):
		req.Fail("mutation never reached the transport")
	}

	// The caller walks away while the request is on the wire.
	cancel()
	select {
	case err := <-res:
		req.ErrorIs(err, context.Canceled)
	case <-time.After(2 * time.Second):
		req.Fail("execute did not return after cancellation")
	}

	// Releasing the server response must still reconcile the roster, or
	// local state forks from the server over an impatient caller.
	close(proceed)
	select {
	case e := <-h.events:
		req.IsType(event.CardChanged{}, e)
	case <-time.After(2 * time.Second):
		req.Fail("late acknowledgement was not reconciled")
	}

	v, ok := h.group.view(5)
	req.True(ok)
	req.Equal("late-card", v.card)
}

func TestProtocol_SameFieldMutationsSerialize(t *testing.T) {
	req := require.New(t)
	h := newProtocolHarness(t, nil)

	var inflight, overlapped int32
	h.transport.EXPECT().SendGroupMutation(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ contract.MutationRequest) (contract.MutationResponse, error) {
			if atomic.AddInt32(&inflight, 1) > 1 {
				atomic.StoreInt32(&overlapped, 1)
			}
			time.Sleep(30 * time.Millisecond)
			atomic.AddInt32(&inflight, -1)
			return contract.MutationResponse{Code: contract.ResponseOK}, nil
		}).Times(2)

	var wg sync.WaitGroup
	for _, card := range []string{"first", "second"} {
		wg.Add(1)
		go func(c string) {
			defer wg.Done()
			_ = h.protocol.execute(context.Background(), h.group, 99, 5, domain.ActionSetCard, c, 0)
		}(card)
	}
	wg.Wait()

	// Two writes to the same member field must never overlap on the wire.
	req.Zero(atomic.LoadInt32(&overlapped))
}
