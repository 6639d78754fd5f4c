package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/netsync/apiserver/internal/store"
	"github.com/netsync/apiserver/types"
	"github.com/oklog/ulid/v2"
)

// DemoTenantID is the tenant the demo accounts belong to.
const DemoTenantID = "tenant_001"

// SeedAccount describes a pre-verified account created by Seed.
type SeedAccount struct {
	Email    string
	Password string
	FullName string
	Role     types.Role
	TenantID string
	OrgName  string
}

// DemoAccounts are the verified accounts installed by the seed command.
var DemoAccounts = []SeedAccount{
	{Email: "admin@netsync.com", Password: "admin12345", FullName: "Platform Admin", Role: types.RoleSuperAdmin},
	{Email: "organizer@netsync.com", Password: "org12345", FullName: "Demo Organizer", Role: types.RoleOrganizer, TenantID: DemoTenantID, OrgName: "NetSync Demo"},
	{Email: "staff@netsync.com", Password: "staff12345", FullName: "Demo Staff", Role: types.RoleStaff, TenantID: DemoTenantID},
	{Email: "attendee@netsync.com", Password: "attendee123", FullName: "Demo Attendee", Role: types.RoleAttendee, TenantID: DemoTenantID},
}

// SeedReport lists the emails Seed created and skipped.
type SeedReport struct {
	Created []string
	Skipped []string
}

// Seed inserts verified accounts without sending any code. Existing emails
// are skipped, so running it twice is harmless.
func (s *IdentityService) Seed(ctx context.Context, accounts []SeedAccount) (SeedReport, error) {
	var report SeedReport
	for _, sa := range accounts {
		email, err := NormalizeEmail(sa.Email)
		if err != nil {
			return report, fmt.Errorf("seed %q: %w", sa.Email, err)
		}
		if !sa.Role.Valid() {
			return report, fmt.Errorf("seed %s: unknown role %q", email, sa.Role)
		}
		if sa.Role.TenantScoped() && strings.TrimSpace(sa.TenantID) == "" {
			return report, fmt.Errorf("seed %s: role %s needs a tenant", email, sa.Role)
		}

		passwordHash, err := s.hasher.Hash(sa.Password)
		if err != nil {
			return report, fmt.Errorf("seed %s: hash password: %w", email, err)
		}

		now := s.now().UTC()
		result, err := s.accounts.Insert(ctx, types.Account{
			ID:            ulid.Make().String(),
			Email:         email,
			FullName:      sa.FullName,
			PasswordHash:  passwordHash,
			Role:          sa.Role,
			TenantID:      sa.TenantID,
			OrgName:       sa.OrgName,
			EmailVerified: true,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
		if err != nil {
			return report, fmt.Errorf("seed %s: %w", email, err)
		}
		if result == store.Conflict {
			report.Skipped = append(report.Skipped, email)
			continue
		}
		report.Created = append(report.Created, email)
	}
	return report, nil
}
