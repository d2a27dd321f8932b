package client

import (
	"fmt"
	"time"

	"group-lab/contract"
	"group-lab/domain"
	"group-lab/errors"
)

// Route names of the group moderation surface. The server calls RoutePush
// on the client connection; everything else is client-initiated.
const (
	RouteMutation = "/group/mutate"
	RouteGroups   = "/group/list"
	RoutePush     = "/group/push"
)

// Verdict codes carried by VerdictFrame. Anything else maps onto an
// unknown response code and is rejected upstream.
const (
	CodeOK          = 0
	CodeDenied      = 1
	CodeBadArgument = 2
	CodeNoTarget    = 3
)

// MutationFrame is the body of a RouteMutation call. The session token
// rides in every request, the server keeps no conversation state.
type MutationFrame struct {
	Token   string `json:"token"`
	Group   int64  `json:"group"`
	Member  int64  `json:"member"`
	Action  string `json:"action"`
	Text    string `json:"text,omitempty"`
	Seconds int64  `json:"seconds,omitempty"`
}

// VerdictFrame is the server's reply to a mutation.
type VerdictFrame struct {
	Code   int    `json:"code"`
	Detail string `json:"detail,omitempty"`
}

// PushFrame is one record of the server push stream. Kind selects which
// attribute fields are meaningful; a join carries the full snapshot of
// the new member.
type PushFrame struct {
	Group    int64  `json:"group"`
	Member   int64  `json:"member"`
	Operator int64  `json:"operator,omitempty"`
	Origin   string `json:"origin"`
	At       int64  `json:"at,omitempty"`
	Kind     string `json:"kind"`
	Role     uint8  `json:"role,omitempty"`
	Card     string `json:"card,omitempty"`
	Title    string `json:"title,omitempty"`
	Seconds  uint32 `json:"seconds,omitempty"`
	Kicked   bool   `json:"kicked,omitempty"`
}

// Push record kinds.
const (
	KindRole  = "role"
	KindCard  = "card"
	KindTitle = "title"
	KindMute  = "mute"
	KindLeave = "leave"
	KindJoin  = "join"
)

// GroupsRequest is the body of a RouteGroups call.
type GroupsRequest struct {
	Token string `json:"token"`
}

type GroupsReply struct {
	Groups []GroupFrame `json:"groups"`
}

// GroupFrame is one visible group with its full roster.
type GroupFrame struct {
	Group   int64         `json:"group"`
	Name    string        `json:"name"`
	Members []MemberFrame `json:"members"`
}

type MemberFrame struct {
	Member   int64  `json:"member"`
	Role     uint8  `json:"role"`
	Card     string `json:"card,omitempty"`
	Title    string `json:"title,omitempty"`
	Seconds  uint32 `json:"seconds,omitempty"`
	JoinedAt int64  `json:"joined_at,omitempty"`
}

func toMutationFrame(token string, req contract.MutationRequest) MutationFrame {
	return MutationFrame{
		Token:   token,
		Group:   int64(req.Group),
		Member:  int64(req.Member),
		Action:  req.Action.String(),
		Text:    req.Text,
		Seconds: req.Seconds,
	}
}

func toMutationResponse(v VerdictFrame) contract.MutationResponse {
	rsp := contract.MutationResponse{Detail: v.Detail}
	switch v.Code {
	case CodeOK:
		rsp.Code = contract.ResponseOK
	case CodeDenied:
		rsp.Code = contract.ResponseDenied
	case CodeBadArgument:
		rsp.Code = contract.ResponseBadArgument
	case CodeNoTarget:
		rsp.Code = contract.ResponseNoTarget
	default:
		// Out of range on purpose: the protocol classifies unknown codes
		// as a server/client disagreement.
		rsp.Code = contract.ResponseCode(^uint8(0))
	}
	return rsp
}

// toChange decodes a push record into its domain form. bot is the account
// the session authenticated as; it completes the member key of joins.
func toChange(bot domain.BotID, f PushFrame) (domain.Change, error) {
	meta := domain.ChangeMeta{
		Group:    domain.GroupID(f.Group),
		Member:   domain.MemberID(f.Member),
		Operator: domain.MemberID(f.Operator),
		Origin:   originFromWire(f.Origin),
		At:       stampFromWire(f.At),
	}
	switch f.Kind {
	case KindRole:
		role, err := domain.ParseRole(f.Role)
		if err != nil {
			return nil, err
		}
		return domain.RoleChange{ChangeMeta: meta, Role: role}, nil
	case KindCard:
		return domain.CardChange{ChangeMeta: meta, Card: f.Card}, nil
	case KindTitle:
		return domain.TitleChange{ChangeMeta: meta, Title: f.Title}, nil
	case KindMute:
		return domain.MuteChange{ChangeMeta: meta, RawSeconds: f.Seconds}, nil
	case KindLeave:
		return domain.Removal{ChangeMeta: meta, Kicked: f.Kicked}, nil
	case KindJoin:
		role, err := domain.ParseRole(f.Role)
		if err != nil {
			return nil, err
		}
		return domain.Join{ChangeMeta: meta, Snapshot: domain.MemberSnapshot{
			Key:      domain.MemberKey{Bot: bot, Group: meta.Group, Member: meta.Member},
			Role:     role,
			Card:     f.Card,
			Title:    f.Title,
			MuteRaw:  f.Seconds,
			JoinedAt: stampFromWire(f.At),
		}}, nil
	default:
		return nil, fmt.Errorf("%w: unknown push kind %q", errors.ErrInvalidPayload, f.Kind)
	}
}

// toSnapshot decodes one group frame. A role outside the known ranks
// fails the whole frame: an undecodable roster is a server/client
// disagreement, not something to paper over.
func toSnapshot(bot domain.BotID, f GroupFrame) (domain.GroupSnapshot, error) {
	snap := domain.GroupSnapshot{
		Bot:     bot,
		Group:   domain.GroupID(f.Group),
		Name:    f.Name,
		Members: make([]domain.MemberSnapshot, 0, len(f.Members)),
	}
	for _, m := range f.Members {
		role, err := domain.ParseRole(m.Role)
		if err != nil {
			return domain.GroupSnapshot{}, fmt.Errorf("%w: member %d of group %d: %v",
				errors.ErrProtocolInconsistency, m.Member, f.Group, err)
		}
		snap.Members = append(snap.Members, domain.MemberSnapshot{
			Key:      domain.MemberKey{Bot: bot, Group: snap.Group, Member: domain.MemberID(m.Member)},
			Role:     role,
			Card:     m.Card,
			Title:    m.Title,
			MuteRaw:  m.Seconds,
			JoinedAt: stampFromWire(m.JoinedAt),
		})
	}
	return snap, nil
}

func originFromWire(v string) domain.Origin {
	switch v {
	case "admin":
		return domain.OriginAdmin
	case "bot":
		return domain.OriginBot
	default:
		return domain.OriginSelf
	}
}

// stampFromWire converts unix seconds, keeping zero as "server did not
// say" so the apply loop substitutes its own clock.
func stampFromWire(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(v, 0)
}
