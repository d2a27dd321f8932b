package runtime

import (
	"context"
	"strconv"
	"time"

	"group-lab/domain"
)

// Member is a cheap value handle on one roster entry. Identity lives
// entirely in the key: two handles refer to the same member exactly when
// their keys are equal, regardless of when or where they were obtained.
// A handle never pins state. The member behind it can be kicked, or its
// whole group dropped, while the handle is held; the handle then turns
// detached, reads return zero values and mutations fail with a
// not-found error. No getter here ever touches the network.
type Member struct {
	bot *Bot
	key domain.MemberKey
}

func (m Member) Key() domain.MemberKey   { return m.key }
func (m Member) ID() domain.MemberID     { return m.key.Member }
func (m Member) GroupID() domain.GroupID { return m.key.Group }

// Detached reports whether the handle still resolves to a live roster
// entry.
func (m Member) Detached() bool {
	_, ok := m.snapshot()
	return !ok
}

func (m Member) Role() domain.Role {
	v, _ := m.snapshot()
	return v.role
}

func (m Member) Card() string {
	v, _ := m.snapshot()
	return v.card
}

func (m Member) SpecialTitle() string {
	v, _ := m.snapshot()
	return v.title
}

func (m Member) JoinedAt() time.Time {
	v, _ := m.snapshot()
	return v.joinedAt
}

// MuteRemaining is the number of whole seconds until the member may
// speak again, 0 when not muted. Derived from the locally stored
// deadline, so it decays without any further server traffic.
func (m Member) MuteRemaining() int64 {
	v, ok := m.snapshot()
	if !ok {
		return 0
	}
	return domain.MuteRemaining(v.muteTill, time.Now())
}

func (m Member) IsMuted() bool {
	return m.MuteRemaining() > 0
}

// DisplayName resolves what to show for this member: the group card
// when one is set, else the contact-book nickname, else the bare id.
func (m Member) DisplayName() string {
	if v, ok := m.snapshot(); ok && v.card != "" {
		return v.card
	}
	if nick := m.bot.nickname(m.key.Member); nick != "" {
		return nick
	}
	return strconv.FormatInt(int64(m.key.Member), 10)
}

// SetCard changes the member's in-group display card. Allowed for the
// member on themselves or for an admin on anyone; an empty card clears
// it.
func (m Member) SetCard(ctx context.Context, card string) error {
	return m.bot.exec(ctx, m.key, domain.ActionSetCard, card, 0)
}

// SetSpecialTitle changes the honorary title next to the member's name.
// Owner only.
func (m Member) SetSpecialTitle(ctx context.Context, title string) error {
	return m.bot.exec(ctx, m.key, domain.ActionSetTitle, title, 0)
}

// Mute silences the member for the given number of seconds, at most
// thirty days. The actor must strictly outrank the target.
func (m Member) Mute(ctx context.Context, seconds int64) error {
	return m.bot.exec(ctx, m.key, domain.ActionMute, "", seconds)
}

// Unmute lifts a mute early. Unmuting a member who is not muted is not
// an error; it just confirms the state.
func (m Member) Unmute(ctx context.Context) error {
	return m.bot.exec(ctx, m.key, domain.ActionUnmute, "", 0)
}

// Kick removes the member from the group. The reason is recorded by the
// server; it is not delivered to the kicked member.
func (m Member) Kick(ctx context.Context, reason string) error {
	return m.bot.exec(ctx, m.key, domain.ActionKick, reason, 0)
}

func (m Member) snapshot() (memberView, bool) {
	if m.bot == nil {
		return memberView{}, false
	}
	g, ok := m.bot.lookup(m.key.Group)
	if !ok {
		return memberView{}, false
	}
	return g.view(m.key.Member)
}
