package domain

// Allows is the authorization table for mutating actions.
//
//	set card:   self, or any admin-or-above
//	set title:  owner only
//	mute/kick:  actor strictly outranks target
//
// Reads are always permitted and never go through Allows. The check is a
// local fast-fail: the server stays the final authority and may still
// reject a locally-allowed request when the local role is stale.
func Allows(actor, target Role, act Action, self bool) bool {
	switch act {
	case ActionSetCard:
		return self || actor.AtLeast(RoleAdmin)
	case ActionSetTitle:
		return actor == RoleOwner
	case ActionMute, ActionUnmute, ActionKick:
		return actor.Outranks(target)
	default:
		return false
	}
}
