package services

import (
	"context"
	"fmt"

	"group-lab/contract"
	"group-lab/domain"
	"group-lab/domain/event"
	"group-lab/errors"
	"group-lab/projection"
	"group-lab/repositories"
	"group-lab/runtime"
	"group-lab/search"
)

// IGroupService is the application front used by command handlers, UIs,
// and tests. Everything is addressed by raw ids so callers never hold
// runtime objects.
type IGroupService interface {
	SetCard(ctx context.Context, group domain.GroupID, member domain.MemberID, card string) error
	SetSpecialTitle(ctx context.Context, group domain.GroupID, member domain.MemberID, title string) error
	Mute(ctx context.Context, group domain.GroupID, member domain.MemberID, seconds int64) error
	Unmute(ctx context.Context, group domain.GroupID, member domain.MemberID) error
	Kick(ctx context.Context, group domain.GroupID, member domain.MemberID, reason string) error
	Roster(group domain.GroupID) (domain.GroupSnapshot, error)
	History(group domain.GroupID, n int) []event.GroupEvent
	AuditTrail(group domain.GroupID, cursor *string) ([]repositories.AuditEntry, *string, error)
	SearchMembers(ctx context.Context, text string, group domain.GroupID, limit int) ([]search.MemberHit, error)
	Watch(subscriberID string, group domain.GroupID, sink contract.EventSink)
	Unwatch(subscriberID string, group domain.GroupID)
}

type GroupService struct {
	bot      *runtime.Bot
	timeline *projection.Timeline
	journal  repositories.IAuditJournal
	index    search.IMemberIndex
}

func NewGroupService(bot *runtime.Bot, timeline *projection.Timeline, journal repositories.IAuditJournal, index search.IMemberIndex) *GroupService {
	return &GroupService{bot: bot, timeline: timeline, journal: journal, index: index}
}

func (s *GroupService) SetCard(ctx context.Context, group domain.GroupID, member domain.MemberID, card string) error {
	return s.bot.Member(group, member).SetCard(ctx, card)
}

func (s *GroupService) SetSpecialTitle(ctx context.Context, group domain.GroupID, member domain.MemberID, title string) error {
	return s.bot.Member(group, member).SetSpecialTitle(ctx, title)
}

func (s *GroupService) Mute(ctx context.Context, group domain.GroupID, member domain.MemberID, seconds int64) error {
	return s.bot.Member(group, member).Mute(ctx, seconds)
}

func (s *GroupService) Unmute(ctx context.Context, group domain.GroupID, member domain.MemberID) error {
	return s.bot.Member(group, member).Unmute(ctx)
}

func (s *GroupService) Kick(ctx context.Context, group domain.GroupID, member domain.MemberID, reason string) error {
	return s.bot.Member(group, member).Kick(ctx, reason)
}

func (s *GroupService) Roster(group domain.GroupID) (domain.GroupSnapshot, error) {
	g, ok := s.bot.Group(group)
	if !ok {
		return domain.GroupSnapshot{}, fmt.Errorf("%w: group %d not installed", errors.ErrGroupUnknown, group)
	}
	return g.Roster(), nil
}

func (s *GroupService) History(group domain.GroupID, n int) []event.GroupEvent {
	return s.timeline.Recent(group, n)
}

func (s *GroupService) AuditTrail(group domain.GroupID, cursor *string) ([]repositories.AuditEntry, *string, error) {
	return s.journal.RecentActions(group, cursor)
}

func (s *GroupService) SearchMembers(ctx context.Context, text string, group domain.GroupID, limit int) ([]search.MemberHit, error) {
	return s.index.Search(ctx, text, group, limit)
}

func (s *GroupService) Watch(subscriberID string, group domain.GroupID, sink contract.EventSink) {
	s.bot.Subscribe(subscriberID, group, sink)
}

func (s *GroupService) Unwatch(subscriberID string, group domain.GroupID) {
	s.bot.Unsubscribe(subscriberID, group)
}
