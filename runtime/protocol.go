package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"group-lab/contract"
	"group-lab/domain"
	"group-lab/errors"
	"group-lab/moderation"
	"group-lab/observability"
)

const defaultCallTimeout = 10 * time.Second

// Local caps on mutation text, checked before any remote call. The
// server enforces its own limits; failing here just saves a round trip.
type cardParams struct {
	Card string `validate:"max=60"`
}

type titleParams struct {
	Title string `validate:"max=18"`
}

type reasonParams struct {
	Reason string `validate:"max=120"`
}

// operation is one in-flight mutation. done is resolved exactly once:
// by the transport on failure, or by the group apply loop once the
// acknowledgement has been reconciled. The buffer lets a resolution land
// after the caller stopped listening.
type operation struct {
	done chan error
}

func newOperation() *operation {
	return &operation{done: make(chan error, 1)}
}

func (o *operation) resolve(err error) {
	select {
	case o.done <- err:
	default:
	}
}

// opKey identifies one serialization slot. Mutations on the same member
// field queue behind each other; everything else runs concurrently.
type opKey struct {
	member domain.MemberKey
	field  domain.Field
}

// removalField is the slot kicks serialize on. A kick has no member
// field of its own but two kicks on one member must still not overlap.
const removalField domain.Field = 0xFF

// keyLock is a context-aware mutex. The token channel holds the lock
// state; refs keeps the map entry alive while waiters queue on it.
type keyLock struct {
	ch   chan struct{}
	refs int
}

// Protocol drives mutating calls against the server: local permission
// and argument gates first, then one request on the wire, then local
// reconciliation of the acknowledgement. There is no retry anywhere in
// here; a mutation is sent at most once and its outcome reported as is.
type Protocol struct {
	log       *slog.Logger
	transport contract.Transport
	screen    *moderation.Screen
	mon       *observability.MonitoringManager
	validate  *validator.Validate
	timeout   time.Duration

	mu       sync.Mutex
	inflight map[opKey]*keyLock
}

// NewProtocol wires the mutation path. screen may be nil when no banned
// word list is configured.
func NewProtocol(log *slog.Logger, transport contract.Transport, screen *moderation.Screen, mon *observability.MonitoringManager, timeout time.Duration) *Protocol {
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &Protocol{
		log:       log,
		transport: transport,
		screen:    screen,
		mon:       mon,
		validate:  validator.New(),
		timeout:   timeout,
		inflight:  make(map[opKey]*keyLock),
	}
}

// execute runs one mutation end to end on behalf of actor. It returns
// once the outcome is known or ctx ends; in the latter case the wire
// call keeps going in the background and a late acknowledgement is still
// reconciled into the roster, so local state cannot fork from the
// server over an impatient caller.
func (p *Protocol) execute(ctx context.Context, g *Group, actor, target domain.MemberID, act domain.Action, text string, seconds int64) error {
	if err := p.validateParams(act, text, seconds); err != nil {
		return err
	}

	key := opKey{
		member: domain.MemberKey{Bot: g.bot, Group: g.id, Member: target},
		field:  lockField(act),
	}
	lock, err := p.lockKey(ctx, key)
	if err != nil {
		return err
	}
	dispatched := false
	defer func() {
		if !dispatched {
			p.unlockKey(key, lock)
		}
	}()

	// Authorize on the freshest state once the slot is ours. The view
	// also carries the push counter the acknowledgement will be judged
	// against.
	actorView, ok := g.view(actor)
	if !ok {
		return fmt.Errorf("%w: own account %d missing from group %d roster", errors.ErrProtocolInconsistency, actor, g.id)
	}
	targetView := actorView
	if target != actor {
		targetView, ok = g.view(target)
		if !ok {
			return fmt.Errorf("%w: member %d in group %d", errors.ErrTargetNotFound, target, g.id)
		}
	}
	if !domain.Allows(actorView.role, targetView.role, act, target == actor) {
		return fmt.Errorf("%w: %s by role %s on role %s", errors.ErrPermissionDenied, act, actorView.role, targetView.role)
	}

	var seq uint64
	if f, ok := domain.ActionField(act); ok {
		seq = targetView.pushSeq[f]
	}

	op := newOperation()
	p.mon.IncrMutationsSent()
	dispatched = true
	go p.roundTrip(g, op, contract.MutationRequest{
		Group:   g.id,
		Member:  target,
		Action:  act,
		Text:    text,
		Seconds: seconds,
	}, p.ackChange(g, actor, target, act, text, seconds), seq, key, lock)

	select {
	case err := <-op.done:
		return err
	case <-ctx.Done():
		p.log.Debug("Caller gone before the acknowledgement, call continues in background",
			slog.Int64("group", int64(g.id)),
			slog.Int64("member", int64(target)),
			slog.String("action", act.String()))
		return ctx.Err()
	}
}

// roundTrip owns the wire call. It deliberately runs on a context of its
// own: the caller may be gone already, but once a request is on the wire
// the acknowledgement must be awaited and reconciled regardless.
func (p *Protocol) roundTrip(g *Group, op *operation, req contract.MutationRequest, ack domain.Change, seq uint64, key opKey, lock *keyLock) {
	defer p.unlockKey(key, lock)

	wireCtx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	rsp, err := p.transport.SendGroupMutation(wireCtx, req)
	if err != nil {
		op.resolve(fmt.Errorf("%w: %s on member %d: %v", errors.ErrTransient, req.Action, req.Member, err))
		return
	}

	switch rsp.Code {
	case contract.ResponseOK:
		// The apply loop resolves op once it reconciled the ack.
		applyCtx, acancel := context.WithTimeout(context.Background(), p.timeout)
		defer acancel()
		if serr := g.submit(applyCtx, applyTask{change: ack, seq: seq, op: op}); serr != nil {
			op.resolve(serr)
		}
	case contract.ResponseDenied:
		op.resolve(fmt.Errorf("%w: server refused %s on member %d: %s", errors.ErrPermissionDenied, req.Action, req.Member, rsp.Detail))
	case contract.ResponseBadArgument:
		op.resolve(fmt.Errorf("%w: server refused %s on member %d: %s", errors.ErrInvalidArgument, req.Action, req.Member, rsp.Detail))
	case contract.ResponseNoTarget:
		op.resolve(fmt.Errorf("%w: member %d already gone from group %d", errors.ErrTargetNotFound, req.Member, req.Group))
	default:
		op.resolve(fmt.Errorf("%w: response code %d for %s", errors.ErrProtocolInconsistency, rsp.Code, req.Action))
	}
}

// ackChange is the local record a successful mutation reduces to. At is
// left zero so the apply loop stamps reconciliation time.
func (p *Protocol) ackChange(g *Group, actor, target domain.MemberID, act domain.Action, text string, seconds int64) domain.Change {
	meta := domain.ChangeMeta{
		Group:    g.id,
		Member:   target,
		Operator: actor,
		Origin:   domain.OriginBot,
	}
	switch act {
	case domain.ActionSetCard:
		return domain.CardChange{ChangeMeta: meta, Card: text}
	case domain.ActionSetTitle:
		return domain.TitleChange{ChangeMeta: meta, Title: text}
	case domain.ActionMute:
		return domain.MuteChange{ChangeMeta: meta, RawSeconds: uint32(seconds)}
	case domain.ActionUnmute:
		return domain.MuteChange{ChangeMeta: meta, RawSeconds: 0}
	default:
		return domain.Removal{ChangeMeta: meta, Kicked: true}
	}
}

func (p *Protocol) validateParams(act domain.Action, text string, seconds int64) error {
	switch act {
	case domain.ActionSetCard:
		if err := p.validate.Struct(cardParams{Card: text}); err != nil {
			return fmt.Errorf("%w: card too long: %v", errors.ErrInvalidArgument, err)
		}
		return p.screenText(act, text)
	case domain.ActionSetTitle:
		if err := p.validate.Struct(titleParams{Title: text}); err != nil {
			return fmt.Errorf("%w: title too long: %v", errors.ErrInvalidArgument, err)
		}
		return p.screenText(act, text)
	case domain.ActionMute:
		return domain.ValidateMuteSeconds(seconds)
	case domain.ActionUnmute:
		return nil
	case domain.ActionKick:
		if err := p.validate.Struct(reasonParams{Reason: text}); err != nil {
			return fmt.Errorf("%w: kick reason too long: %v", errors.ErrInvalidArgument, err)
		}
		return p.screenText(act, text)
	default:
		return fmt.Errorf("%w: unsupported action %d", errors.ErrInvalidArgument, uint8(act))
	}
}

// screenText rejects outgoing text containing banned words before it
// reaches the server. Group cards and titles are visible to the whole
// roster, so the same word list that moderates inbound content gates
// what the bot itself writes.
func (p *Protocol) screenText(act domain.Action, text string) error {
	if p.screen == nil || text == "" {
		return nil
	}
	if verdict := p.screen.Check(text); !verdict.Clean() {
		p.mon.IncrScreenRejections()
		return fmt.Errorf("%w: %s text contains banned words %v", errors.ErrInvalidArgument, act, verdict.Matches)
	}
	return nil
}

func lockField(act domain.Action) domain.Field {
	if f, ok := domain.ActionField(act); ok {
		return f
	}
	return removalField
}

// lockKey takes the serialization slot for key, waiting behind any
// mutation already in flight on it. The wait is bounded by ctx.
func (p *Protocol) lockKey(ctx context.Context, key opKey) (*keyLock, error) {
	p.mu.Lock()
	lock, ok := p.inflight[key]
	if !ok {
		lock = &keyLock{ch: make(chan struct{}, 1)}
		p.inflight[key] = lock
	}
	lock.refs++
	p.mu.Unlock()

	select {
	case lock.ch <- struct{}{}:
		return lock, nil
	case <-ctx.Done():
		p.releaseRef(key, lock)
		return nil, ctx.Err()
	}
}

// unlockKey frees the slot once the mutation left it: either before
// dispatch on a local rejection, or when the wire call finished.
func (p *Protocol) unlockKey(key opKey, lock *keyLock) {
	<-lock.ch
	p.releaseRef(key, lock)
}

func (p *Protocol) releaseRef(key opKey, lock *keyLock) {
	p.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(p.inflight, key)
	}
	p.mu.Unlock()
}
