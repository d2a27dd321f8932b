package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"group-lab/domain"
	"group-lab/domain/event"
	"group-lab/errors"
	"group-lab/observability"
)

const (
	// applyQueueSize bounds the per-group task channel. The push feed
	// blocks when a group falls behind instead of dropping records,
	// because record order carries the conflict resolution.
	applyQueueSize = 64

	// muteDedupWindow is how long an applied mute shadows an identical
	// one on the same member. An acknowledgement and the push echoing it
	// carry the same raw duration but arrive seconds apart; without the
	// window the second application would move the deadline and publish
	// a duplicate event.
	muteDedupWindow = 10 * time.Second
)

// memberState is the mutable record behind one roster entry. It is only
// touched by the owning group's apply loop, under the group mutex so
// concurrent readers see consistent values.
type memberState struct {
	role     domain.Role
	card     string
	title    string
	muteRaw  uint32
	muteTill time.Time
	joinedAt time.Time

	// pushSeq counts push applications per field. A mutation in flight
	// remembers the count it started from; if the count moved by the
	// time its acknowledgement lands, a push wrote the field in between
	// and the pushed value is kept.
	pushSeq [domain.FieldCount]uint64

	lastMuteRaw uint32
	lastMuteAt  time.Time
}

func newMemberState(s domain.MemberSnapshot, now time.Time) *memberState {
	st := &memberState{
		role:     s.Role,
		card:     s.Card,
		title:    s.Title,
		joinedAt: s.JoinedAt,
	}
	if secs := domain.DecodeMuteSeconds(s.MuteRaw); secs > 0 {
		st.muteRaw = s.MuteRaw
		st.muteTill = now.Add(time.Duration(secs) * time.Second)
	}
	return st
}

// memberView is a point-in-time copy of one member, safe to keep after
// the lock is gone.
type memberView struct {
	role     domain.Role
	card     string
	title    string
	muteTill time.Time
	joinedAt time.Time
	pushSeq  [domain.FieldCount]uint64
}

// applyTask is one unit of work for the apply loop: either a push record
// from the server feed (op nil) or a local acknowledgement to reconcile
// (op set, seq captured when the mutation was dispatched).
type applyTask struct {
	change domain.Change
	seq    uint64
	op     *operation
}

// Group owns the confirmed state of one group roster. All writes go
// through a single apply loop so that push records and mutation
// acknowledgements are serialized in arrival order; reads take a shared
// lock and never wait on the network.
type Group struct {
	bot  domain.BotID
	id   domain.GroupID
	name string

	log     *slog.Logger
	mon     *observability.MonitoringManager
	publish func(event.GroupEvent)

	mu      sync.RWMutex
	members map[domain.MemberID]*memberState

	tasks    chan applyTask
	stop     chan struct{}
	stopOnce sync.Once

	// supervised flips once when the apply loop is handed to the
	// supervisor, so a group installed while the bot starts cannot end
	// up with two loops draining one queue.
	supervised atomic.Bool
}

func newGroup(log *slog.Logger, mon *observability.MonitoringManager, publish func(event.GroupEvent), snap domain.GroupSnapshot) *Group {
	g := &Group{
		bot:     snap.Bot,
		id:      snap.Group,
		name:    snap.Name,
		log:     log,
		mon:     mon,
		publish: publish,
		members: make(map[domain.MemberID]*memberState, len(snap.Members)),
		tasks:   make(chan applyTask, applyQueueSize),
		stop:    make(chan struct{}),
	}
	now := time.Now()
	for _, m := range snap.Members {
		g.members[m.Key.Member] = newMemberState(m, now)
	}
	return g
}

func (g *Group) ID() domain.GroupID { return g.id }
func (g *Group) Name() string       { return g.name }
func (g *Group) BotID() domain.BotID {
	return g.bot
}

// Run consumes the apply queue until the context ends or the group is
// dropped. It is restarted by the supervisor if an application panics;
// the roster survives a restart because it lives on the Group itself.
func (g *Group) Run(ctx context.Context) error {
	g.log.Info("Group apply loop started",
		slog.Int64("group", int64(g.id)),
		slog.Int("members", g.MemberCount()))
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-g.stop:
			return nil
		case t := <-g.tasks:
			g.handle(t)
		}
	}
}

// shutdown ends the apply loop without touching the supervisor context.
// Used when a single group is uninstalled while the bot keeps running.
func (g *Group) shutdown() {
	g.stopOnce.Do(func() { close(g.stop) })
}

// submit queues one task for the apply loop. It blocks while the queue
// is full: push records must not be dropped, their order is the whole
// arbitration model. The context puts an upper bound on the wait.
func (g *Group) submit(ctx context.Context, t applyTask) error {
	select {
	case g.tasks <- t:
		return nil
	case <-g.stop:
		return fmt.Errorf("%w: group %d apply loop stopped", errors.ErrTransient, g.id)
	case <-ctx.Done():
		return fmt.Errorf("%w: group %d apply queue saturated: %v", errors.ErrTransient, g.id, ctx.Err())
	}
}

func (g *Group) handle(t applyTask) {
	if t.op != nil {
		g.applyAck(t)
		return
	}
	g.mon.IncrPushesApplied()
	if ev := g.apply(t.change, true); ev != nil {
		g.publish(ev)
	}
}

// applyAck reconciles a successful remote mutation with the local state.
// The happy path applies it like a push would. Two degenerate paths both
// resolve the caller without error, because in both the mutation itself
// succeeded remotely:
//   - the member is gone, a removal push won the race;
//   - a push wrote the same field after the mutation was dispatched, and
//     by arrival order the pushed value is the newer one.
func (g *Group) applyAck(t applyTask) {
	memberID := t.change.MemberID()
	field, hasField := domain.ChangeField(t.change)

	g.mu.RLock()
	st, known := g.members[memberID]
	stale := known && hasField && st.pushSeq[field] != t.seq
	g.mu.RUnlock()

	switch {
	case !known:
		g.log.Debug("Acknowledgement for a member already removed, dropping",
			slog.Int64("group", int64(g.id)),
			slog.Int64("member", int64(memberID)))
	case stale:
		g.log.Debug("Push overtook acknowledgement, keeping pushed value",
			slog.Int64("group", int64(g.id)),
			slog.Int64("member", int64(memberID)),
			slog.String("field", field.String()))
	default:
		g.mon.IncrAcksApplied()
		if ev := g.apply(t.change, false); ev != nil {
			g.publish(ev)
		}
	}
	t.op.resolve(nil)
}

// apply writes one change into the roster and derives at most one event
// from it. fromPush advances the per-field push counters; applications
// that do not move the state produce no event, which is what keeps an
// acknowledgement and its echoing push from publishing twice.
func (g *Group) apply(c domain.Change, fromPush bool) event.GroupEvent {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch ch := c.(type) {
	case domain.Join:
		return g.applyJoin(ch)
	case domain.RoleChange:
		st, ok := g.lookupLocked(ch.Member, fromPush, domain.FieldRole)
		if !ok {
			return nil
		}
		if st.role == ch.Role {
			return nil
		}
		if ch.Role == domain.RoleOwner {
			g.demoteStaleOwnerLocked(ch.Member)
		}
		old := st.role
		st.role = ch.Role
		return event.PermissionChanged{
			Meta: event.NewMeta(g.id, ch.Member, ch.Operator, ch.Origin, g.stamp(ch.At)),
			Old:  old,
			New:  ch.Role,
		}
	case domain.CardChange:
		st, ok := g.lookupLocked(ch.Member, fromPush, domain.FieldCard)
		if !ok {
			return nil
		}
		if st.card == ch.Card {
			return nil
		}
		old := st.card
		st.card = ch.Card
		return event.CardChanged{
			Meta: event.NewMeta(g.id, ch.Member, ch.Operator, ch.Origin, g.stamp(ch.At)),
			Old:  old,
			New:  ch.Card,
		}
	case domain.TitleChange:
		st, ok := g.lookupLocked(ch.Member, fromPush, domain.FieldTitle)
		if !ok {
			return nil
		}
		if st.title == ch.Title {
			return nil
		}
		old := st.title
		st.title = ch.Title
		return event.TitleChanged{
			Meta: event.NewMeta(g.id, ch.Member, ch.Operator, ch.Origin, g.stamp(ch.At)),
			Old:  old,
			New:  ch.Title,
		}
	case domain.MuteChange:
		st, ok := g.lookupLocked(ch.Member, fromPush, domain.FieldMute)
		if !ok {
			return nil
		}
		return g.applyMuteLocked(st, ch)
	case domain.Removal:
		if _, ok := g.members[ch.Member]; !ok {
			g.discardLocked(ch)
			return nil
		}
		delete(g.members, ch.Member)
		return event.MemberRemoved{
			Meta:   event.NewMeta(g.id, ch.Member, ch.Operator, ch.Origin, g.stamp(ch.At)),
			Kicked: ch.Kicked,
		}
	default:
		g.log.Warn("Unknown change record, discarding",
			slog.Int64("group", int64(g.id)),
			slog.Any("error", errors.ErrInvalidPayload))
		return nil
	}
}

func (g *Group) applyJoin(ch domain.Join) event.GroupEvent {
	id := ch.Snapshot.Key.Member
	if _, ok := g.members[id]; ok {
		g.log.Debug("Join for a member already in the roster, ignoring",
			slog.Int64("group", int64(g.id)),
			slog.Int64("member", int64(id)))
		return nil
	}
	g.members[id] = newMemberState(ch.Snapshot, time.Now())
	return event.MemberJoined{
		Meta: event.NewMeta(g.id, id, ch.Operator, ch.Origin, g.stamp(ch.At)),
		Role: ch.Snapshot.Role,
		Card: ch.Snapshot.Card,
	}
}

// applyMuteLocked handles both directions of the mute field. The wire
// carries one record shape; a decoded zero means the member talks again.
func (g *Group) applyMuteLocked(st *memberState, ch domain.MuteChange) event.GroupEvent {
	now := time.Now()
	secs := domain.DecodeMuteSeconds(ch.RawSeconds)

	if secs == 0 {
		muted := domain.MuteRemaining(st.muteTill, now) > 0
		st.muteRaw = 0
		st.muteTill = time.Time{}
		st.lastMuteRaw = 0
		st.lastMuteAt = time.Time{}
		if !muted {
			return nil
		}
		return event.MemberUnmuted{
			Meta: event.NewMeta(g.id, ch.Member, ch.Operator, ch.Origin, g.stamp(ch.At)),
		}
	}

	if st.lastMuteRaw == ch.RawSeconds && now.Sub(st.lastMuteAt) < muteDedupWindow {
		return nil
	}
	st.muteRaw = ch.RawSeconds
	st.muteTill = g.stamp(ch.At).Add(time.Duration(secs) * time.Second)
	st.lastMuteRaw = ch.RawSeconds
	st.lastMuteAt = now
	return event.MemberMuted{
		Meta:    event.NewMeta(g.id, ch.Member, ch.Operator, ch.Origin, g.stamp(ch.At)),
		Seconds: secs,
		Until:   st.muteTill,
	}
}

// lookupLocked resolves the member a field change targets, advancing the
// field's push counter when the record came off the feed. Records for
// members the roster never saw are discarded, not buffered: the server
// does not guarantee a join precedes every reference.
func (g *Group) lookupLocked(id domain.MemberID, fromPush bool, f domain.Field) (*memberState, bool) {
	st, ok := g.members[id]
	if !ok {
		g.log.Debug("Change for unknown member, discarding",
			slog.Int64("group", int64(g.id)),
			slog.Int64("member", int64(id)),
			slog.String("field", f.String()))
		return nil, false
	}
	if fromPush {
		st.pushSeq[f]++
	}
	return st, true
}

// stamp substitutes application time when the record carried none,
// which is the case for locally built acknowledgement changes.
func (g *Group) stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}

func (g *Group) discardLocked(c domain.Change) {
	g.log.Debug("Change for unknown member, discarding",
		slog.Int64("group", int64(g.id)),
		slog.Int64("member", int64(c.MemberID())))
}

// demoteStaleOwnerLocked clears any previous owner before a pushed owner
// change is written. Group ownership is exclusive; when the server
// promotes a new owner without reporting the old one's demotion, the
// stale entry is silently downgraded to a plain member and the roster
// stays coherent.
func (g *Group) demoteStaleOwnerLocked(next domain.MemberID) {
	for id, st := range g.members {
		if id == next || st.role != domain.RoleOwner {
			continue
		}
		g.log.Warn("Second owner pushed, demoting the stale one",
			slog.Int64("group", int64(g.id)),
			slog.Int64("stale", int64(id)),
			slog.Int64("next", int64(next)),
			slog.Any("error", errors.ErrProtocolInconsistency))
		st.role = domain.RoleMember
	}
}

// view copies one member's current state. The second return is false for
// members the group does not know, including ones already removed.
func (g *Group) view(id domain.MemberID) (memberView, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	st, ok := g.members[id]
	if !ok {
		return memberView{}, false
	}
	return memberView{
		role:     st.role,
		card:     st.card,
		title:    st.title,
		muteTill: st.muteTill,
		joinedAt: st.joinedAt,
		pushSeq:  st.pushSeq,
	}, true
}

func (g *Group) MemberCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.members)
}

// MemberIDs lists the roster ids in ascending order.
func (g *Group) MemberIDs() []domain.MemberID {
	g.mu.RLock()
	ids := make([]domain.MemberID, 0, len(g.members))
	for id := range g.members {
		ids = append(ids, id)
	}
	g.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Owner returns the current owner id, false when no entry holds the
// owner role (possible transiently between a snapshot and its pushes).
func (g *Group) Owner() (domain.MemberID, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for id, st := range g.members {
		if st.role == domain.RoleOwner {
			return id, true
		}
	}
	return 0, false
}

// Roster snapshots the whole group, members ordered by id. MuteRaw is
// re-encoded as remaining whole seconds at call time.
func (g *Group) Roster() domain.GroupSnapshot {
	now := time.Now()

	g.mu.RLock()
	members := make([]domain.MemberSnapshot, 0, len(g.members))
	for id, st := range g.members {
		members = append(members, domain.MemberSnapshot{
			Key:      domain.MemberKey{Bot: g.bot, Group: g.id, Member: id},
			Role:     st.role,
			Card:     st.card,
			Title:    st.title,
			MuteRaw:  uint32(domain.MuteRemaining(st.muteTill, now)),
			JoinedAt: st.joinedAt,
		})
	}
	g.mu.RUnlock()

	sort.Slice(members, func(i, j int) bool { return members[i].Key.Member < members[j].Key.Member })
	return domain.GroupSnapshot{
		Bot:     g.bot,
		Group:   g.id,
		Name:    g.name,
		Members: members,
	}
}
