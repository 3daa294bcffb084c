package rbac

// Role names. Keep these stable; they are signed into tokens.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleMember  = "member"
)

// Editors may mutate HR records.
var Editors = []string{RoleAdmin, RoleManager}

func IsKnownRole(role string) bool {
	switch role {
	case RoleAdmin, RoleManager, RoleMember:
		return true
	default:
		return false
	}
}

func CanEdit(role string) bool { return role == RoleAdmin || role == RoleManager }
