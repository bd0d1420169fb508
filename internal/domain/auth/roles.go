package auth

// Role is the single role carried by every workspace user.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleReviewer  Role = "reviewer"
	RoleTaskOwner Role = "task_owner"
)

var allRoles = map[Role]struct{}{
	RoleAdmin:     {},
	RoleReviewer:  {},
	RoleTaskOwner: {},
}

func ParseRole(value string) (Role, bool) {
	role := Role(value)
	_, ok := allRoles[role]
	return role, ok
}

// UserContext is the resolved session principal attached to each request.
type UserContext struct {
	UserID      string
	WorkspaceID string
	Role        Role
}
