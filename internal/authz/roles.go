package authz

const (
	RoleAdmin       = "admin"
	RoleSalesman    = "salesman"
	RolePurchaseman = "purchaseman"
	RoleUser        = "user"
)

// AssignableRoles are the roles a task can be offered to as a pool.
var AssignableRoles = []string{RoleSalesman, RolePurchaseman}

func IsAdmin(role string) bool {
	return role == RoleAdmin
}

func IsAssignable(role string) bool {
	for _, r := range AssignableRoles {
		if r == role {
			return true
		}
	}
	return false
}

func IsKnown(role string) bool {
	switch role {
	case RoleAdmin, RoleSalesman, RolePurchaseman, RoleUser:
		return true
	}
	return false
}
