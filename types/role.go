package types

import "fmt"

// Role is an authorization tier. The set of roles is closed.
type Role string

const (
	RoleOrganizer  Role = "organizer"
	RoleAttendee   Role = "attendee"
	RoleStaff      Role = "staff"
	RoleSuperAdmin Role = "super_admin"
)

// Roles lists every valid role.
var Roles = []Role{RoleOrganizer, RoleAttendee, RoleStaff, RoleSuperAdmin}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	for _, v := range Roles {
		if r == v {
			return true
		}
	}
	return false
}

// ParseRole converts a string into a Role, rejecting unknown values.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// TenantScoped reports whether accounts with this role belong to a tenant.
func (r Role) TenantScoped() bool {
	return r != RoleSuperAdmin
}
