package domain

// Role is the coarse role resolved by the identity collaborator.
type Role string

const (
	RolePassenger Role = "passenger"
	RoleDriver    Role = "driver"
	RoleAdmin     Role = "admin"
	RoleSystem    Role = "system"
)

// Actor is an already-authenticated caller.
type Actor struct {
	UserID string
	Role   Role
}

// IsPrivileged reports whether the actor acts on behalf of the platform.
func (a Actor) IsPrivileged() bool {
	return a.Role == RoleAdmin || a.Role == RoleSystem
}
