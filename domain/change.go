package domain

import "time"

// Origin tells who caused a change.
type Origin uint8

const (
	// OriginSelf means the member acted on themselves.
	OriginSelf Origin = iota
	// OriginAdmin means another privileged member acted on them.
	OriginAdmin
	// OriginBot means this client's own account was the actor.
	OriginBot
)

func (o Origin) String() string {
	switch o {
	case OriginSelf:
		return "self"
	case OriginAdmin:
		return "admin"
	case OriginBot:
		return "bot"
	default:
		return "unknown"
	}
}

// Change is one record of the server push feed. Records arrive in server
// order and that order defines the last writer whenever a push races a
// local mutation on the same field.
type Change interface {
	GroupID() GroupID
	MemberID() MemberID
}

// ChangeMeta carries the fields every push record shares. Operator is the
// member who performed the change, zero when the server did not say.
type ChangeMeta struct {
	Group    GroupID
	Member   MemberID
	Operator MemberID
	Origin   Origin
	At       time.Time
}

func (m ChangeMeta) GroupID() GroupID   { return m.Group }
func (m ChangeMeta) MemberID() MemberID { return m.Member }

type RoleChange struct {
	ChangeMeta
	Role Role
}

type CardChange struct {
	ChangeMeta
	Card string
}

type TitleChange struct {
	ChangeMeta
	Title string
}

// MuteChange reports mutes and unmutes alike: the wire carries remaining
// seconds, and a decoded zero (0 or the legacy sentinel) means the member
// is no longer muted.
type MuteChange struct {
	ChangeMeta
	RawSeconds uint32
}

// Removal reports that a member left or was kicked out.
type Removal struct {
	ChangeMeta
	Kicked bool
}

// Join reports a new member. Snapshot.Key is authoritative for the ids.
type Join struct {
	ChangeMeta
	Snapshot MemberSnapshot
}

// ChangeField maps a push record to the member field it writes, or false
// for structural records (join, removal).
func ChangeField(c Change) (Field, bool) {
	switch c.(type) {
	case RoleChange:
		return FieldRole, true
	case CardChange:
		return FieldCard, true
	case TitleChange:
		return FieldTitle, true
	case MuteChange:
		return FieldMute, true
	default:
		return 0, false
	}
}
