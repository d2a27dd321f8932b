// Package client maintains the authenticated connection to the IM server.
// A Session is both the Transport used by the mutation protocol and the
// PushFeed drained by the reconciler; it performs no retries and keeps no
// moderation state of its own.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/lesismal/arpc"

	"group-lab/contract"
	"group-lab/domain"
)

// Session owns one arpc connection. Push records handed to the feed keep
// their arrival order; a record that cannot be decoded is logged and
// skipped so one malformed frame never stalls the stream.
type Session struct {
	log     *slog.Logger
	bot     domain.BotID
	addr    string
	token   string
	timeout time.Duration
	client  *arpc.Client
	pushes  chan domain.Change
	done    chan struct{}

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

func NewSession(log *slog.Logger, bot domain.BotID, addr, token string,
	dialTimeout time.Duration, pushBuffer int) (*Session, error) {
	s := &Session{
		log:     log,
		bot:     bot,
		addr:    addr,
		token:   token,
		timeout: dialTimeout,
		pushes:  make(chan domain.Change, pushBuffer),
		done:    make(chan struct{}),
	}
	cli, err := arpc.NewClient(func() (net.Conn, error) {
		return net.DialTimeout("tcp", addr, dialTimeout)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to dial IM server %s: %w", addr, err)
	}
	cli.Handler.Handle(RoutePush, s.onPush)
	s.client = cli
	log.Info(fmt.Sprintf("Session established with IM server %s", addr))
	return s, nil
}

// SendGroupMutation performs one mutation call. Errors are returned as-is:
// the protocol layer decides what counts as transient, this layer never
// retries on its own.
func (s *Session) SendGroupMutation(ctx context.Context, req contract.MutationRequest) (contract.MutationResponse, error) {
	frame := toMutationFrame(s.token, req)
	var verdict VerdictFrame
	if err := s.client.CallWith(ctx, RouteMutation, &frame, &verdict); err != nil {
		return contract.MutationResponse{}, fmt.Errorf("mutation call to %s: %w", s.addr, err)
	}
	return toMutationResponse(verdict), nil
}

// FetchGroups asks the server for every group visible to this account,
// with full rosters. Called once after connecting, before the push feed
// is consumed.
func (s *Session) FetchGroups(ctx context.Context) ([]domain.GroupSnapshot, error) {
	frame := GroupsRequest{Token: s.token}
	var reply GroupsReply
	if err := s.client.CallWith(ctx, RouteGroups, &frame, &reply); err != nil {
		return nil, fmt.Errorf("group list call to %s: %w", s.addr, err)
	}
	snaps := make([]domain.GroupSnapshot, 0, len(reply.Groups))
	for _, gf := range reply.Groups {
		snap, err := toSnapshot(s.bot, gf)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

// Changes exposes the ordered push stream. The channel closes when the
// session is closed.
func (s *Session) Changes() <-chan domain.Change {
	return s.pushes
}

// Close tears the connection down and closes the push stream. Safe to
// call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		// Waits for in-flight deliveries before the channel close; a
		// delivery holds the read side of the lock for its whole send.
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.client.Stop()
		close(s.pushes)
		s.log.Info(fmt.Sprintf("Session with IM server %s closed", s.addr))
	})
}

func (s *Session) onPush(c *arpc.Context) {
	var frame PushFrame
	if err := c.Bind(&frame); err != nil {
		s.log.Warn("Undecodable push frame, skipping", slog.Any("error", err))
		return
	}
	change, err := toChange(s.bot, frame)
	if err != nil {
		s.log.Warn("Invalid push record, skipping",
			slog.Int64("group", frame.Group),
			slog.Int64("member", frame.Member),
			slog.String("kind", frame.Kind),
			slog.Any("error", err))
		return
	}
	s.deliver(change)
}

// deliver blocks when the feed is full: push order is load-bearing, so
// backpressure is preferred over dropping records.
func (s *Session) deliver(change domain.Change) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.pushes <- change:
	case <-s.done:
	}
}
