package types

import "testing"

func TestParseRole(t *testing.T) {
	for _, r := range Roles {
		got, err := ParseRole(string(r))
		if err != nil {
			t.Fatalf("ParseRole(%q) error: %v", r, err)
		}
		if got != r {
			t.Fatalf("ParseRole(%q) = %q", r, got)
		}
	}

	for _, bad := range []string{"", "admin", "Organizer", "super-admin"} {
		if _, err := ParseRole(bad); err == nil {
			t.Fatalf("ParseRole(%q) expected error", bad)
		}
	}
}

func TestTenantScoped(t *testing.T) {
	if RoleSuperAdmin.TenantScoped() {
		t.Fatalf("super_admin must not be tenant scoped")
	}
	if !RoleOrganizer.TenantScoped() || !RoleAttendee.TenantScoped() || !RoleStaff.TenantScoped() {
		t.Fatalf("tenant roles must be tenant scoped")
	}
}
