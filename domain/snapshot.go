package domain

import "time"

// MemberSnapshot carries one member's attributes as last confirmed by the
// server. MuteRaw keeps the wire encoding; DecodeMuteSeconds is applied
// at install time.
type MemberSnapshot struct {
	Key      MemberKey
	Role     Role
	Card     string
	Title    string
	MuteRaw  uint32
	JoinedAt time.Time
}

// GroupSnapshot is the roster the session layer hands over when a group
// becomes visible to the bot. Discovery itself happens elsewhere.
type GroupSnapshot struct {
	Bot     BotID
	Group   GroupID
	Name    string
	Members []MemberSnapshot
}
