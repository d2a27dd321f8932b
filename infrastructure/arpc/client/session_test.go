package client

import (
	"context"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/lesismal/arpc"
	"github.com/stretchr/testify/require"

	"group-lab/contract"
	"group-lab/domain"
)

// fakeServer is a minimal in-process IM server: it verdicts mutations by
// the text they carry and can push frames back over the caller's
// connection.
type fakeServer struct {
	srv   *arpc.Server
	addr  string
	calls chan MutationFrame
	peers chan *arpc.Client
}

func startFakeServer(t *testing.T) *fakeServer {
	f := &fakeServer{
		srv:   arpc.NewServer(),
		calls: make(chan MutationFrame, 16),
		peers: make(chan *arpc.Client, 1),
	}
	f.srv.Handler.Handle(RouteMutation, func(c *arpc.Context) {
		var frame MutationFrame
		if err := c.Bind(&frame); err != nil {
			return
		}
		select {
		case f.peers <- c.Client:
		default:
		}
		f.calls <- frame
		code := CodeOK
		switch frame.Text {
		case "deny":
			code = CodeDenied
		case "bad":
			code = CodeBadArgument
		case "gone":
			code = CodeNoTarget
		case "drunk":
			code = 42
		}
		_ = c.Write(&VerdictFrame{Code: code, Detail: "verdict for " + frame.Action})
	})

	f.srv.Handler.Handle(RouteGroups, func(c *arpc.Context) {
		var frame GroupsRequest
		if err := c.Bind(&frame); err != nil {
			return
		}
		_ = c.Write(&GroupsReply{Groups: []GroupFrame{
			{Group: 42, Name: "ops", Members: []MemberFrame{
				{Member: 99, Role: uint8(domain.RoleOwner), Card: "the-bot"},
				{Member: 5, Role: uint8(domain.RoleMember), Card: "alice", Seconds: 120},
			}},
			{Group: 43, Name: "offtopic"},
		}})
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go f.srv.Serve(ln)
	t.Cleanup(func() { _ = f.srv.Stop() })
	f.addr = ln.Addr().String()
	return f
}

// push sends one frame over the last seen peer connection.
func (f *fakeServer) push(t *testing.T, frame PushFrame) {
	select {
	case peer := <-f.peers:
		require.NoError(t, peer.Notify(RoutePush, &frame, time.Second))
		f.peers <- peer
	case <-time.After(2 * time.Second):
		require.Fail(t, "no peer connection observed")
	}
}

func dialTestSession(t *testing.T, f *fakeServer) *Session {
	s, err := NewSession(slog.Default(), 99, f.addr, "sekret", 2*time.Second, 16)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func waitChange(t *testing.T, feed <-chan domain.Change) domain.Change {
	select {
	case c := <-feed:
		return c
	case <-time.After(2 * time.Second):
		require.Fail(t, "timed out waiting for a push record")
		return nil
	}
}

func TestSession_SendGroupMutation_Verdicts(t *testing.T) {
	req := require.New(t)
	f := startFakeServer(t)
	s := dialTestSession(t, f)

	tests := []struct {
		name string
		text string
		want contract.ResponseCode
	}{
		{name: "Accepted", text: "", want: contract.ResponseOK},
		{name: "Denied", text: "deny", want: contract.ResponseDenied},
		{name: "Bad Argument", text: "bad", want: contract.ResponseBadArgument},
		{name: "Target Gone", text: "gone", want: contract.ResponseNoTarget},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rsp, err := s.SendGroupMutation(context.Background(), contract.MutationRequest{
				Group:  42,
				Member: 5,
				Action: domain.ActionSetCard,
				Text:   tt.text,
			})
			req.NoError(err)
			req.Equal(tt.want, rsp.Code)
			req.Equal("verdict for set_card", rsp.Detail)

			frame := <-f.calls
			req.Equal("sekret", frame.Token)
			req.Equal(int64(42), frame.Group)
			req.Equal(int64(5), frame.Member)
			req.Equal("set_card", frame.Action)
		})
	}
}

func TestSession_UnknownVerdictCodeIsPreserved(t *testing.T) {
	req := require.New(t)
	f := startFakeServer(t)
	s := dialTestSession(t, f)

	rsp, err := s.SendGroupMutation(context.Background(), contract.MutationRequest{
		Group:  42,
		Member: 5,
		Action: domain.ActionKick,
		Text:   "drunk",
	})
	req.NoError(err)
	<-f.calls

	// None of the known codes: the protocol layer will flag the
	// disagreement.
	req.NotEqual(contract.ResponseOK, rsp.Code)
	req.NotEqual(contract.ResponseDenied, rsp.Code)
	req.NotEqual(contract.ResponseBadArgument, rsp.Code)
	req.NotEqual(contract.ResponseNoTarget, rsp.Code)
}

func TestSession_PushFeed_OrderAndDecoding(t *testing.T) {
	req := require.New(t)
	f := startFakeServer(t)
	s := dialTestSession(t, f)

	// Prime the connection so the server holds a peer to push through.
	_, err := s.SendGroupMutation(context.Background(), contract.MutationRequest{Group: 1, Member: 1, Action: domain.ActionUnmute})
	req.NoError(err)
	<-f.calls

	f.push(t, PushFrame{Group: 42, Member: 5, Origin: "admin", Kind: KindCard, Card: "renamed"})
	f.push(t, PushFrame{Group: 42, Member: 5, Origin: "admin", Kind: "???"})
	f.push(t, PushFrame{Group: 42, Member: 5, Operator: 7, Origin: "admin", Kind: KindMute, Seconds: 600})

	first := waitChange(t, s.Changes())
	card, ok := first.(domain.CardChange)
	req.True(ok)
	req.Equal("renamed", card.Card)
	req.Equal(domain.GroupID(42), card.Group)

	// The malformed record was skipped, order of the rest held.
	second := waitChange(t, s.Changes())
	mute, ok := second.(domain.MuteChange)
	req.True(ok)
	req.Equal(uint32(600), mute.RawSeconds)
	req.Equal(domain.MemberID(7), mute.Operator)
}

func TestSession_JoinPushCarriesSnapshot(t *testing.T) {
	req := require.New(t)
	f := startFakeServer(t)
	s := dialTestSession(t, f)

	_, err := s.SendGroupMutation(context.Background(), contract.MutationRequest{Group: 1, Member: 1, Action: domain.ActionUnmute})
	req.NoError(err)
	<-f.calls

	at := time.Now().Unix()
	f.push(t, PushFrame{
		Group: 42, Member: 6, Origin: "self", Kind: KindJoin,
		Role: uint8(domain.RoleAdmin), Card: "newcomer", Title: "vip", At: at,
	})

	change := waitChange(t, s.Changes())
	join, ok := change.(domain.Join)
	req.True(ok)
	req.Equal(domain.MemberKey{Bot: 99, Group: 42, Member: 6}, join.Snapshot.Key)
	req.Equal(domain.RoleAdmin, join.Snapshot.Role)
	req.Equal("newcomer", join.Snapshot.Card)
	req.Equal("vip", join.Snapshot.Title)
	req.Equal(at, join.Snapshot.JoinedAt.Unix())
}

func TestSession_FetchGroups(t *testing.T) {
	req := require.New(t)
	f := startFakeServer(t)
	s := dialTestSession(t, f)

	snaps, err := s.FetchGroups(context.Background())
	req.NoError(err)
	req.Len(snaps, 2)

	ops := snaps[0]
	req.Equal(domain.GroupID(42), ops.Group)
	req.Equal("ops", ops.Name)
	req.Len(ops.Members, 2)
	req.Equal(domain.MemberKey{Bot: 99, Group: 42, Member: 5}, ops.Members[1].Key)
	req.Equal(domain.RoleMember, ops.Members[1].Role)
	req.Equal(uint32(120), ops.Members[1].MuteRaw)

	req.Equal("offtopic", snaps[1].Name)
	req.Empty(snaps[1].Members)
}

func TestSession_CloseEndsFeed(t *testing.T) {
	req := require.New(t)
	f := startFakeServer(t)
	s := dialTestSession(t, f)

	s.Close()
	select {
	case _, open := <-s.Changes():
		req.False(open)
	case <-time.After(2 * time.Second):
		req.Fail("feed not closed")
	}
}
