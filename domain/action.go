package domain

// Action enumerates the mutating operations a bot can request on a member.
// Role changes are absent on purpose: they only ever arrive through the
// push feed, there is no client-initiated promotion call here.
type Action uint8

const (
	ActionSetCard Action = iota
	ActionSetTitle
	ActionMute
	ActionUnmute
	ActionKick
)

func (a Action) String() string {
	switch a {
	case ActionSetCard:
		return "set_card"
	case ActionSetTitle:
		return "set_title"
	case ActionMute:
		return "mute"
	case ActionUnmute:
		return "unmute"
	case ActionKick:
		return "kick"
	default:
		return "unknown"
	}
}

// Field names one mutable member attribute. Push applications and local
// acknowledgements racing on the same field are adjudicated per field,
// so conflicts on one attribute never stall another.
type Field uint8

const (
	FieldRole Field = iota
	FieldCard
	FieldTitle
	FieldMute

	// FieldCount sizes per-field bookkeeping arrays.
	FieldCount = 4
)

func (f Field) String() string {
	switch f {
	case FieldRole:
		return "role"
	case FieldCard:
		return "card"
	case FieldTitle:
		return "title"
	case FieldMute:
		return "mute"
	default:
		return "unknown"
	}
}

// ActionField maps an action to the member field it writes. Kick is
// structural (it removes the whole entry) and has no field.
func ActionField(a Action) (Field, bool) {
	switch a {
	case ActionSetCard:
		return FieldCard, true
	case ActionSetTitle:
		return FieldTitle, true
	case ActionMute, ActionUnmute:
		return FieldMute, true
	default:
		return 0, false
	}
}
