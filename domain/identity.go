// Package domain contains core concepts of group membership and moderation.
// This file defines identities and the equality rules between member handles.
// No runtime, network, or UI logic should be added here.
package domain

import "fmt"

type BotID int64

type GroupID int64

type MemberID int64

// MemberKey identifies one member of one group as seen by one bot.
// Equality and hashing depend on these three ids only, never on mutable
// attributes, so a key stays a valid map/set index across attribute
// pushes and snapshot refreshes. MemberKey is comparable and can be used
// directly as a map key.
type MemberKey struct {
	Bot    BotID
	Group  GroupID
	Member MemberID
}

func (k MemberKey) String() string {
	return fmt.Sprintf("%d/%d/%d", k.Bot, k.Group, k.Member)
}
