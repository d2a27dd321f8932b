package event

import (
	"time"

	"github.com/google/uuid"

	"group-lab/domain"
)

// GroupEvent is implemented by every semantic membership event published
// to subscribers. One event is published per logical change, whether the
// change was observed through a local acknowledgement or a server push.
type GroupEvent interface {
	GroupID() domain.GroupID
	MemberID() domain.MemberID
	OccurredAt() time.Time
}

// Meta carries the fields shared by all membership events. Origin tells
// subscribers whether the change came from the member, another admin, or
// this bot; Operator is the acting member when the server reported one.
type Meta struct {
	ID       uuid.UUID
	Group    domain.GroupID
	Member   domain.MemberID
	Operator domain.MemberID
	Origin   domain.Origin
	At       time.Time
}

func (m Meta) GroupID() domain.GroupID   { return m.Group }
func (m Meta) MemberID() domain.MemberID { return m.Member }
func (m Meta) OccurredAt() time.Time     { return m.At }

// NewMeta stamps a fresh event id.
func NewMeta(group domain.GroupID, member, operator domain.MemberID, origin domain.Origin, at time.Time) Meta {
	return Meta{
		ID:       uuid.New(),
		Group:    group,
		Member:   member,
		Operator: operator,
		Origin:   origin,
		At:       at,
	}
}

type PermissionChanged struct {
	Meta
	Old domain.Role
	New domain.Role
}

type CardChanged struct {
	Meta
	Old string
	New string
}

type TitleChanged struct {
	Meta
	Old string
	New string
}

// MemberMuted reports a mute with its applied duration. Until is the
// local deadline derived at application time.
type MemberMuted struct {
	Meta
	Seconds int64
	Until   time.Time
}

type MemberUnmuted struct {
	Meta
}

// MemberJoined reports a member inserted by a join push, with the
// attributes it arrived with.
type MemberJoined struct {
	Meta
	Role domain.Role
	Card string
}

// MemberRemoved reports a departure. Kicked distinguishes an eviction
// from a voluntary leave; Operator identifies the evictor when known.
// The member is already gone from the group mapping when subscribers
// observe this event.
type MemberRemoved struct {
	Meta
	Kicked bool
}

// Kind gives a stable short name per event type, used for audit keys,
// counters, and display.
func Kind(e GroupEvent) string {
	switch e.(type) {
	case PermissionChanged:
		return "permission_changed"
	case CardChanged:
		return "card_changed"
	case TitleChanged:
		return "title_changed"
	case MemberMuted:
		return "member_muted"
	case MemberUnmuted:
		return "member_unmuted"
	case MemberJoined:
		return "member_joined"
	case MemberRemoved:
		return "member_removed"
	default:
		return "unknown"
	}
}
