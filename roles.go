package identity

// IsValid checks if the role is one of the predefined account roles
func IsValidRole(r AccountRole) bool {
	switch r {
	case RolePatient, RoleDoctor, RoleAdmin:
		return true
	default:
		return false
	}
}

// HasProfileTable reports whether the role owns a profile row that the
// update engine can mutate. Admin profiles are created at signup but are
// not updatable through the profile path.
func HasProfileTable(r AccountRole) bool {
	return r == RolePatient || r == RoleDoctor
}

// ParseRole safely parses a string into an AccountRole
func ParseRole(roleStr string) (AccountRole, bool) {
	role := AccountRole(roleStr)
	return role, IsValidRole(role)
}

// AllRoles returns the predefined roles
func AllRoles() []AccountRole {
	return []AccountRole{RolePatient, RoleDoctor, RoleAdmin}
}
