// Package runtime keeps live group rosters and everything that mutates them.
// It sequences apply loops, mutations and pushes without containing the
// permission rules or wire formats themselves.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/alphadose/haxmap"

	"group-lab/contract"
	"group-lab/domain"
	"group-lab/domain/event"
	"group-lab/errors"
	"group-lab/observability"
	"group-lab/runtime/workers"
)

// Bot is the root object of one logged-in account. It owns the groups
// the account sits in, publishes their membership events, and routes
// both server pushes and local mutations to the right apply loop.
type Bot struct {
	mu             sync.Mutex
	log            *slog.Logger
	id             domain.BotID
	groups         *haxmap.Map[domain.GroupID, *Group]
	permanentSinks []contract.EventSink
	supervisor     contract.ISupervisor
	registry       contract.IRegistry
	protocol       *Protocol
	mon            *observability.MonitoringManager
	feed           contract.PushFeed
	events         chan event.GroupEvent
	telemetry      chan event.Event
	sinkTimeout    time.Duration
	nicknames      contract.NicknameSource
	runCtx         context.Context
	cancel         context.CancelFunc
	started        bool
}

// NewBot assembles an account runtime. feed may be nil when no live
// session exists yet; pushes can then still be injected through Route.
func NewBot(log *slog.Logger, id domain.BotID, supervisor contract.ISupervisor,
	registry contract.IRegistry, protocol *Protocol, feed contract.PushFeed,
	mon *observability.MonitoringManager, telemetry chan event.Event,
	bufferSize int, sinkTimeout time.Duration) *Bot {
	return &Bot{
		log:            log,
		id:             id,
		groups:         haxmap.New[domain.GroupID, *Group](),
		permanentSinks: nil,
		supervisor:     supervisor,
		registry:       registry,
		protocol:       protocol,
		mon:            mon,
		feed:           feed,
		events:         make(chan event.GroupEvent, bufferSize),
		telemetry:      telemetry,
		sinkTimeout:    sinkTimeout,
	}
}

func (b *Bot) ID() domain.BotID { return b.id }

// SelfID is the bot's member id inside any group, which by protocol
// convention equals its account id.
func (b *Bot) SelfID() domain.MemberID { return domain.MemberID(b.id) }

// SetNicknameSource wires the contact subsystem used as display-name
// fallback. Call before Start.
func (b *Bot) SetNicknameSource(src contract.NicknameSource) { b.nicknames = src }

// Add registers permanent sinks that receive every event of every
// group, regardless of subscriptions. Call before Start.
func (b *Bot) Add(sinks ...contract.EventSink) {
	b.permanentSinks = append(b.permanentSinks, sinks...)
}

// InstallGroup registers a roster snapshot and begins serializing its
// changes. Installing an id that is already live is a no-op returning
// the existing group; a session restart that needs the fresh snapshot
// is DropGroup then InstallGroup.
func (b *Bot) InstallGroup(snap domain.GroupSnapshot) *Group {
	snap.Bot = b.id
	g, loaded := b.groups.GetOrCompute(snap.Group, func() *Group {
		return newGroup(b.log, b.mon, b.publish, snap)
	})
	if loaded {
		b.log.Info(fmt.Sprintf("Group %d already installed", snap.Group))
		return g
	}
	b.mon.UpdateActiveGroups(int(b.groups.Len()))

	b.mu.Lock()
	runCtx := b.runCtx
	b.mu.Unlock()
	if runCtx != nil {
		b.superviseGroup(runCtx, g)
	}
	b.log.Info("Group installed",
		slog.Int64("group", int64(snap.Group)),
		slog.Int("members", g.MemberCount()))
	return g
}

// DropGroup uninstalls a group and stops its apply loop. Handles into
// the group turn detached. Safe to call for unknown ids.
func (b *Bot) DropGroup(id domain.GroupID) bool {
	g, ok := b.groups.GetAndDel(id)
	if !ok {
		return false
	}
	g.shutdown()
	b.mon.UpdateActiveGroups(int(b.groups.Len()))
	b.log.Info(fmt.Sprintf("Group %d dropped", id))
	return true
}

func (b *Bot) Group(id domain.GroupID) (*Group, bool) {
	return b.groups.Get(id)
}

// Groups lists the installed groups ordered by id.
func (b *Bot) Groups() []*Group {
	var res []*Group
	b.groups.ForEach(func(_ domain.GroupID, g *Group) bool {
		res = append(res, g)
		return true
	})
	sort.Slice(res, func(i, j int) bool { return res[i].id < res[j].id })
	return res
}

// Member builds a handle for the given coordinates. Handles are valid
// to build and hold whether or not the member currently exists.
func (b *Bot) Member(group domain.GroupID, member domain.MemberID) Member {
	return Member{bot: b, key: domain.MemberKey{Bot: b.id, Group: group, Member: member}}
}

// Self is the bot's own handle in the given group.
func (b *Bot) Self(group domain.GroupID) Member {
	return b.Member(group, b.SelfID())
}

// Subscribe attaches a subscriber's sink to one group's event stream.
func (b *Bot) Subscribe(subscriberID string, groupID domain.GroupID, sink contract.EventSink) {
	b.registry.Subscribe(subscriberID, groupID, sink)
}

// Unsubscribe detaches a subscriber from a group's event stream.
func (b *Bot) Unsubscribe(subscriberID string, groupID domain.GroupID) {
	b.registry.Unsubscribe(subscriberID, groupID)
}

// Route hands one push record to the owning group's apply loop,
// preserving feed order. Records for groups the bot is not in are
// rejected here; records for unknown members are discarded later,
// inside the group, where ordering is decided.
func (b *Bot) Route(ctx context.Context, c domain.Change) error {
	g, ok := b.groups.Get(c.GroupID())
	if !ok {
		return fmt.Errorf("%w: push for group %d", errors.ErrGroupUnknown, c.GroupID())
	}
	return g.submit(ctx, applyTask{change: c})
}

// Start brings the account online and blocks until ctx ends or Stop is
// called. It uses a preparation pattern to minimize mutex locking time.
func (b *Bot) Start(ctx context.Context) error {
	// 1. Preparation phase (No Lock)
	var toSupervise []contract.Worker
	if b.feed != nil {
		toSupervise = append(toSupervise, workers.NewReconciler(b.log, b.feed, b))
	}
	toSupervise = append(toSupervise,
		workers.NewEventFanout(b.log, b.permanentSinks, b.registry, b.events, b.telemetry, b.sinkTimeout))

	// 2. Critical Section (Short Lock)
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return fmt.Errorf("bot %d already started", b.id)
	}
	runCtx, cancel := context.WithCancel(ctx)
	b.runCtx = runCtx
	b.cancel = cancel
	b.started = true
	for _, w := range toSupervise {
		b.supervisor.Add(w)
	}
	b.mu.Unlock()

	// 3. Execution phase (No Lock)
	b.groups.ForEach(func(_ domain.GroupID, g *Group) bool {
		b.superviseGroup(runCtx, g)
		return true
	})
	b.log.Info("Starting bot and all supervised workers", slog.Int64("bot", int64(b.id)))
	b.supervisor.Run(runCtx)
	return nil
}

// Stop initiates a graceful shutdown. It cancels the supervision
// context so every group loop and worker unblocks, then waits for them
// through the supervisor.
func (b *Bot) Stop() {
	b.log.Info("Requesting bot shutdown")

	b.mu.Lock()
	cancel := b.cancel
	b.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	b.supervisor.Stop()
}

// superviseGroup hands one apply loop to the supervisor exactly once,
// whether the group was installed before or after Start.
func (b *Bot) superviseGroup(ctx context.Context, g *Group) {
	if g.supervised.CompareAndSwap(false, true) {
		b.supervisor.Start(ctx, g)
	}
}

// publish pushes one membership event toward the fanout. The channel is
// bounded; a full buffer drops the event and counts the drop rather
// than stalling an apply loop.
func (b *Bot) publish(e event.GroupEvent) {
	select {
	case b.events <- e:
		b.mon.IncrEventsPublished()
	default:
		b.mon.IncrEventsDropped()
		b.log.Warn(fmt.Sprintf("Event channel full for group %d, dropping event", e.GroupID()))
	}
}

func (b *Bot) exec(ctx context.Context, key domain.MemberKey, act domain.Action, text string, seconds int64) error {
	g, ok := b.groups.Get(key.Group)
	if !ok {
		return fmt.Errorf("%w: group %d not installed", errors.ErrTargetNotFound, key.Group)
	}
	return b.protocol.execute(ctx, g, b.SelfID(), key.Member, act, text, seconds)
}

func (b *Bot) lookup(id domain.GroupID) (*Group, bool) {
	return b.groups.Get(id)
}

func (b *Bot) nickname(member domain.MemberID) string {
	if b == nil || b.nicknames == nil {
		return ""
	}
	return b.nicknames.Nickname(member)
}
