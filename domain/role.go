package domain

import (
	"fmt"

	"group-lab/errors"
)

// Role is the rank of a group member. Values are ordered: a higher value
// outranks a lower one. Comparisons always use this order, never identity.
// A group has exactly one RoleOwner at any time.
type Role uint8

const (
	RoleMember Role = iota
	RoleAdmin
	RoleOwner
)

// Outranks reports whether r is strictly above other.
func (r Role) Outranks(other Role) bool {
	return r > other
}

// AtLeast reports whether r is other or above.
func (r Role) AtLeast(other Role) bool {
	return r >= other
}

func (r Role) String() string {
	switch r {
	case RoleOwner:
		return "owner"
	case RoleAdmin:
		return "admin"
	case RoleMember:
		return "member"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// ParseRole validates a wire-encoded role value.
func ParseRole(v uint8) (Role, error) {
	r := Role(v)
	if r > RoleOwner {
		return RoleMember, fmt.Errorf("%w: unknown role value %d", errors.ErrInvalidArgument, v)
	}
	return r, nil
}
