package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/lesismal/arpc"

	"group-lab/domain"
	"group-lab/infrastructure/arpc/client"
)

// In-memory IM server speaking the group mutation protocol. Lets the
// bot and the tester run against localhost without a real backend.
// State is naive on purpose: one process, token equality as auth, demo
// rosters reset at every start.
func main() {
	// flag.String gère automatiquement le fait que --port soit en os.Args[1]
	port := flag.String("port", "9000", "port to listen on")
	token := flag.String("token", "sekret", "session token accepted by the server")
	bot := flag.Int64("bot", 99, "account id granted a seat in the demo groups")
	churn := flag.Duration("churn", 0, "emit a random push at this interval (0 = off)")
	flag.Parse()

	address := ":" + *port
	lis, err := net.Listen("tcp", address)
	if err != nil {
		log.Fatalf("Failed to listen: %v", err)
	}

	world := newWorld(*token, *bot)

	s := arpc.NewServer()
	s.Handler.Handle(client.RouteGroups, world.onGroups)
	s.Handler.Handle(client.RouteMutation, world.onMutation)

	if *churn > 0 {
		go world.stir(*churn)
	}

	fmt.Printf("Mock IM server listening on %s (token=%q, bot=%d)\n", address, *token, *bot)

	if err := s.Serve(lis); err != nil {
		log.Fatalf("Failed to serve: %v", err)
	}
}

type memberState struct {
	role  domain.Role
	card  string
	title string
	until time.Time
}

type mockGroup struct {
	name    string
	members map[int64]*memberState
}

type world struct {
	mu     sync.Mutex
	token  string
	bot    int64
	groups map[int64]*mockGroup
	peers  map[*arpc.Client]struct{}
}

func newWorld(token string, bot int64) *world {
	return &world{
		token: token,
		bot:   bot,
		groups: map[int64]*mockGroup{
			1001: {name: "ops", members: map[int64]*memberState{
				bot: {role: domain.RoleOwner, card: "the-bot"},
				5:   {role: domain.RoleMember, card: "alice"},
				6:   {role: domain.RoleAdmin, card: "ops-bob", title: "firefighter"},
				7:   {role: domain.RoleMember, card: "carol", until: time.Now().Add(300 * time.Second)},
			}},
			1002: {name: "lounge", members: map[int64]*memberState{
				bot: {role: domain.RoleAdmin, card: "the-bot"},
				5:   {role: domain.RoleMember, card: "alice"},
				8:   {role: domain.RoleOwner, card: "dave"},
			}},
		},
		peers: make(map[*arpc.Client]struct{}),
	}
}

func (w *world) onGroups(c *arpc.Context) {
	var req client.GroupsRequest
	if err := c.Bind(&req); err != nil {
		log.Printf("Undecodable groups request: %v", err)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	reply := client.GroupsReply{}
	if req.Token == w.token {
		w.peers[c.Client] = struct{}{}
		now := time.Now()
		for id, g := range w.groups {
			frame := client.GroupFrame{Group: id, Name: g.name}
			for mid, m := range g.members {
				frame.Members = append(frame.Members, client.MemberFrame{
					Member:  mid,
					Role:    uint8(m.role),
					Card:    m.card,
					Title:   m.title,
					Seconds: remaining(m.until, now),
				})
			}
			reply.Groups = append(reply.Groups, frame)
		}
	} else {
		log.Printf("Rejected groups request with bad token")
	}

	if err := c.Write(&reply); err != nil {
		log.Printf("Failed to write groups reply: %v", err)
	}
}

func (w *world) onMutation(c *arpc.Context) {
	var frame client.MutationFrame
	if err := c.Bind(&frame); err != nil {
		log.Printf("Undecodable mutation frame: %v", err)
		return
	}

	verdict, push := w.judge(frame)
	if err := c.Write(&verdict); err != nil {
		log.Printf("Failed to write verdict: %v", err)
		return
	}

	// Un vrai serveur renvoie aussi le changement en push ; le bot doit
	// le dédupliquer avec son propre accusé de réception.
	if push != nil {
		w.broadcast(*push)
	}
}

// judge applies the same authorization table the bot checks locally, so
// verdicts stay consistent when local state is fresh.
func (w *world) judge(frame client.MutationFrame) (client.VerdictFrame, *client.PushFrame) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if frame.Token != w.token {
		return client.VerdictFrame{Code: client.CodeDenied, Detail: "bad token"}, nil
	}
	g, ok := w.groups[frame.Group]
	if !ok {
		return client.VerdictFrame{Code: client.CodeNoTarget, Detail: "unknown group"}, nil
	}
	actor, ok := g.members[w.bot]
	if !ok {
		return client.VerdictFrame{Code: client.CodeNoTarget, Detail: "bot has no seat"}, nil
	}
	target, ok := g.members[frame.Member]
	if !ok {
		return client.VerdictFrame{Code: client.CodeNoTarget, Detail: "member gone"}, nil
	}

	act, ok := parseAction(frame.Action)
	if !ok {
		return client.VerdictFrame{Code: client.CodeBadArgument, Detail: "unknown action"}, nil
	}
	self := frame.Member == w.bot
	if !domain.Allows(actor.role, target.role, act, self) {
		return client.VerdictFrame{Code: client.CodeDenied, Detail: "insufficient rights"}, nil
	}

	now := time.Now()
	push := client.PushFrame{
		Group:    frame.Group,
		Member:   frame.Member,
		Operator: w.bot,
		Origin:   "bot",
		At:       now.Unix(),
	}

	switch act {
	case domain.ActionSetCard:
		target.card = frame.Text
		push.Kind = client.KindCard
		push.Card = frame.Text
	case domain.ActionSetTitle:
		target.title = frame.Text
		push.Kind = client.KindTitle
		push.Title = frame.Text
	case domain.ActionMute:
		if err := domain.ValidateMuteSeconds(frame.Seconds); err != nil {
			return client.VerdictFrame{Code: client.CodeBadArgument, Detail: err.Error()}, nil
		}
		target.until = now.Add(time.Duration(frame.Seconds) * time.Second)
		push.Kind = client.KindMute
		push.Seconds = uint32(frame.Seconds)
	case domain.ActionUnmute:
		target.until = time.Time{}
		push.Kind = client.KindMute
		push.Seconds = 0
	case domain.ActionKick:
		delete(g.members, frame.Member)
		push.Kind = client.KindLeave
		push.Kicked = true
	}

	log.Printf("Applied %s on %d/%d", frame.Action, frame.Group, frame.Member)
	return client.VerdictFrame{Code: client.CodeOK}, &push
}

// broadcast fans one push out to every session that listed groups.
// Dead peers are dropped on their first failed notify.
func (w *world) broadcast(frame client.PushFrame) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for peer := range w.peers {
		if err := peer.Notify(client.RoutePush, &frame, time.Second); err != nil {
			delete(w.peers, peer)
		}
	}
}

// stir emits random card changes so a connected bot has something to
// reconcile even when nobody is typing commands.
func (w *world) stir(every time.Duration) {
	cards := []string{"alice", "alice-ops", "al1ce", "second-shift"}
	for range time.Tick(every) {
		w.mu.Lock()
		card := ""
		touched := false
		if g, ok := w.groups[1001]; ok {
			if m, here := g.members[5]; here {
				m.card = cards[rand.Intn(len(cards))]
				card = m.card
				touched = true
			}
		}
		w.mu.Unlock()

		if touched {
			w.broadcast(client.PushFrame{
				Group:  1001,
				Member: 5,
				Origin: "self",
				At:     time.Now().Unix(),
				Kind:   client.KindCard,
				Card:   card,
			})
		}
	}
}

func remaining(until time.Time, now time.Time) uint32 {
	if sec := domain.MuteRemaining(until, now); sec > 0 {
		return uint32(sec)
	}
	return 0
}

func parseAction(s string) (domain.Action, bool) {
	for _, a := range []domain.Action{
		domain.ActionSetCard, domain.ActionSetTitle,
		domain.ActionMute, domain.ActionUnmute, domain.ActionKick,
	} {
		if a.String() == s {
			return a, true
		}
	}
	return 0, false
}
