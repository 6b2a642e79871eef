package domain

const (
	RoleUser     = "user"
	RoleProvider = "provider"
	RoleAdmin    = "admin"
)

// IsValidRole indica si role es uno de los roles conocidos.
func IsValidRole(role string) bool {
	switch role {
	case RoleUser, RoleProvider, RoleAdmin:
		return true
	}
	return false
}

// IsSelfAssignableRole indica si un rol puede elegirse al registrarse.
func IsSelfAssignableRole(role string) bool {
	return role == RoleUser || role == RoleProvider
}
