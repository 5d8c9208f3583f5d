package authz

const (
	RoleVolunteer   = 10
	RoleObserver    = 30
	RoleCoordinator = 40
	RoleAdmin       = 50
)

var roleNames = map[int]string{
	RoleVolunteer:   "volunteer",
	RoleObserver:    "observer",
	RoleCoordinator: "coordinator",
	RoleAdmin:       "admin",
}

func RoleName(roleID int) string {
	if n, ok := roleNames[roleID]; ok {
		return n
	}
	return "unknown"
}

// IsElevated reports whether the role may publish, edit, delete and approve tasks.
func IsElevated(roleID int) bool {
	return roleID == RoleCoordinator || roleID == RoleAdmin
}

func IsReadOnly(roleID int) bool {
	return roleID == RoleObserver
}
