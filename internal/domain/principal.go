package domain

import "github.com/google/uuid"

// Role is a platform-wide role carried by an authenticated principal.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Valid reports whether r is a known platform role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleMember
}

// Principal is the authenticated caller as supplied by the identity provider.
// The core trusts it without re-validating credentials.
type Principal struct {
	ID   uuid.UUID `json:"id"`
	Role Role      `json:"role"`
}

// BoardRole is a principal's relationship to one board. Ownership is per
// board and independent of the platform role.
type BoardRole string

const (
	BoardRoleNone   BoardRole = ""
	BoardRoleOwner  BoardRole = "owner"
	BoardRoleMember BoardRole = "member"
)
