package services

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/netsync/apiserver/config"
	"github.com/netsync/apiserver/internal/credentials"
	"github.com/netsync/apiserver/internal/logging"
	"github.com/netsync/apiserver/internal/notify"
	"github.com/netsync/apiserver/internal/store"
	"github.com/netsync/apiserver/internal/token"
	"github.com/netsync/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []notify.VerificationEmail
	err  error
}

func (n *fakeNotifier) Enqueue(msg notify.VerificationEmail) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
	return n.err
}

func (n *fakeNotifier) last(t *testing.T) notify.VerificationEmail {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.msgs, "no verification message dispatched")
	return n.msgs[len(n.msgs)-1]
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.msgs)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	svc      *IdentityService
	repo     *store.MemoryAccountRepository
	notifier *fakeNotifier
	codec    *token.Codec
	clock    *clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clk := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	codec, err := token.NewCodec(config.AuthConfig{
		JWTSecret:      "test-secret",
		JWTAlgorithm:   "HS256",
		AccessTokenTTL: time.Hour,
	}, token.WithClock(clk.Now))
	require.NoError(t, err)

	f := &fixture{
		repo:     store.NewMemoryAccountRepository(),
		notifier: &fakeNotifier{},
		codec:    codec,
		clock:    clk,
	}
	f.svc = NewIdentityService(IdentityDeps{
		Accounts: f.repo,
		Hasher: credentials.NewHasher(credentials.Params{
			MemoryKiB: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32,
		}),
		Tokens:   codec,
		Notifier: f.notifier,
		Logger:   logging.Discard(),
	}, 10*time.Minute, WithClock(clk.Now))
	return f
}

func (f *fixture) signupOrganizer(t *testing.T, email string) SignupResult {
	t.Helper()
	res, err := f.svc.SignupOrganizer(context.Background(), OrganizerSignup{
		Email:    email,
		Password: "Passw0rd",
		FullName: "Olga Organizer",
		OrgName:  "Acme Events",
	})
	require.NoError(t, err)
	return res
}

func TestSignupOrganizer(t *testing.T) {
	f := newFixture(t)

	res := f.signupOrganizer(t, "  Org@X.com ")

	assert.Regexp(t, regexp.MustCompile(`^tenant_[0-9a-f]{8}$`), res.TenantID)
	assert.Equal(t, "org@x.com", res.Account.Email)
	assert.Equal(t, types.RoleOrganizer, res.Account.Role)
	assert.Equal(t, res.TenantID, res.Account.TenantID)
	assert.False(t, res.Account.EmailVerified)
	assert.Empty(t, res.Account.PasswordHash)
	assert.Empty(t, res.Account.OTPHash)

	body, err := json.Marshal(res.Account)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "password")
	assert.NotContains(t, string(body), "otp")

	stored, err := f.repo.FindByEmail(context.Background(), "org@x.com")
	require.NoError(t, err)
	assert.NotEqual(t, "Passw0rd", stored.PasswordHash)
	require.NotNil(t, stored.OTPExpiresAt)
	assert.Equal(t, f.clock.Now().Add(10*time.Minute), *stored.OTPExpiresAt)

	msg := f.notifier.last(t)
	assert.Equal(t, "org@x.com", msg.To)
	assert.Len(t, msg.Code, 6)
	assert.Equal(t, 10, msg.ValidMinutes)
	assert.False(t, msg.Resend)
}

func TestSignupAttendee_KeepsGivenTenant(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.SignupAttendee(context.Background(), AttendeeSignup{
		Email:    "guest@x.com",
		Password: "Passw0rd",
		FullName: "Gus Guest",
		TenantID: "tenant_unknown",
	})
	require.NoError(t, err)
	assert.Equal(t, types.RoleAttendee, res.Account.Role)
	assert.Equal(t, "tenant_unknown", res.TenantID)
}

func TestSignup_Rejections(t *testing.T) {
	tests := []struct {
		name string
		in   OrganizerSignup
		want error
	}{
		{"short password", OrganizerSignup{Email: "a@x.com", Password: "Pa55", FullName: "Al", OrgName: "Org"}, ErrWeakPassword},
		{"letters only", OrganizerSignup{Email: "a@x.com", Password: "Password", FullName: "Al", OrgName: "Org"}, ErrWeakPassword},
		{"digits only", OrganizerSignup{Email: "a@x.com", Password: "12345678", FullName: "Al", OrgName: "Org"}, ErrWeakPassword},
		{"bad email", OrganizerSignup{Email: "not-an-email", Password: "Passw0rd", FullName: "Al", OrgName: "Org"}, ErrInvalidInput},
		{"short name", OrganizerSignup{Email: "a@x.com", Password: "Passw0rd", FullName: "A", OrgName: "Org"}, ErrInvalidInput},
		{"short org name", OrganizerSignup{Email: "a@x.com", Password: "Passw0rd", FullName: "Al", OrgName: "O"}, ErrInvalidInput},
		{"weak password before org name", OrganizerSignup{Email: "a@x.com", Password: "Password", FullName: "Al", OrgName: "O"}, ErrWeakPassword},
		{"missing org", OrganizerSignup{Email: "a@x.com", Password: "Passw0rd", FullName: "Al"}, ErrInvalidInput},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)

			_, err := f.svc.SignupOrganizer(context.Background(), tc.in)
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, 0, f.repo.Len())
			assert.Equal(t, 0, f.notifier.count())
		})
	}
}

func TestSignup_Duplicate(t *testing.T) {
	f := newFixture(t)
	f.signupOrganizer(t, "org@x.com")

	_, err := f.svc.SignupAttendee(context.Background(), AttendeeSignup{
		Email:    "ORG@x.com",
		Password: "Passw0rd",
		FullName: "Someone Else",
	})
	assert.ErrorIs(t, err, ErrDuplicateAccount)
	assert.Equal(t, 1, f.repo.Len())
	assert.Equal(t, 1, f.notifier.count())
}

func TestSignup_ConcurrentDuplicates(t *testing.T) {
	f := newFixture(t)

	const n = 16
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		ok, dupes  int
		unexpected []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.SignupOrganizer(context.Background(), OrganizerSignup{
				Email: "race@x.com", Password: "Passw0rd", FullName: "Racer", OrgName: "Race Org",
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrDuplicateAccount):
				dupes++
			default:
				unexpected = append(unexpected, err)
			}
		}()
	}
	wg.Wait()

	assert.Empty(t, unexpected)
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, dupes)
	assert.Equal(t, 1, f.repo.Len())
}

func TestSignup_NotifierFailureDoesNotFailSignup(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = notify.ErrQueueFull

	res := f.signupOrganizer(t, "org@x.com")
	assert.NotEmpty(t, res.TenantID)
	assert.Equal(t, 1, f.repo.Len())
}

func TestVerifyEmail(t *testing.T) {
	f := newFixture(t)
	f.signupOrganizer(t, "org@x.com")
	code := f.notifier.last(t).Code

	already, err := f.svc.VerifyEmail(context.Background(), "org@x.com", code)
	require.NoError(t, err)
	assert.False(t, already)

	stored, err := f.repo.FindByEmail(context.Background(), "org@x.com")
	require.NoError(t, err)
	assert.True(t, stored.EmailVerified)

	already, err = f.svc.VerifyEmail(context.Background(), " ORG@x.com", "000000")
	require.NoError(t, err, "a second verify is a no-op")
	assert.True(t, already)
}

func TestVerifyEmail_Failures(t *testing.T) {
	t.Run("unknown email", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.VerifyEmail(context.Background(), "nobody@x.com", "123456")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("wrong code", func(t *testing.T) {
		f := newFixture(t)
		f.signupOrganizer(t, "org@x.com")
		code := f.notifier.last(t).Code

		_, err := f.svc.VerifyEmail(context.Background(), "org@x.com", otherCode(code))
		assert.ErrorIs(t, err, ErrInvalidCode)
		assertUnverified(t, f, "org@x.com")
	})

	t.Run("expired code", func(t *testing.T) {
		f := newFixture(t)
		f.signupOrganizer(t, "org@x.com")
		code := f.notifier.last(t).Code

		f.clock.Advance(10*time.Minute + time.Second)
		_, err := f.svc.VerifyEmail(context.Background(), "org@x.com", code)
		assert.ErrorIs(t, err, ErrCodeExpired)
		assertUnverified(t, f, "org@x.com")
	})

	t.Run("code at the expiry instant is accepted", func(t *testing.T) {
		f := newFixture(t)
		f.signupOrganizer(t, "org@x.com")
		code := f.notifier.last(t).Code

		f.clock.Advance(10 * time.Minute)
		_, err := f.svc.VerifyEmail(context.Background(), "org@x.com", code)
		assert.NoError(t, err)
	})

	t.Run("malformed code", func(t *testing.T) {
		f := newFixture(t)
		f.signupOrganizer(t, "org@x.com")

		_, err := f.svc.VerifyEmail(context.Background(), "org@x.com", "12345")
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestResendCode(t *testing.T) {
	f := newFixture(t)
	f.signupOrganizer(t, "org@x.com")
	first := f.notifier.last(t).Code

	f.clock.Advance(9 * time.Minute)
	already, err := f.svc.ResendCode(context.Background(), "org@x.com")
	require.NoError(t, err)
	assert.False(t, already)

	msg := f.notifier.last(t)
	assert.True(t, msg.Resend)
	second := msg.Code

	stored, err := f.repo.FindByEmail(context.Background(), "org@x.com")
	require.NoError(t, err)
	assert.Equal(t, f.clock.Now().Add(10*time.Minute), *stored.OTPExpiresAt)

	if first != second {
		_, err = f.svc.VerifyEmail(context.Background(), "org@x.com", first)
		assert.ErrorIs(t, err, ErrInvalidCode, "the previous code is superseded")
	}

	f.clock.Advance(5 * time.Minute)
	_, err = f.svc.VerifyEmail(context.Background(), "org@x.com", second)
	require.NoError(t, err)

	already, err = f.svc.ResendCode(context.Background(), "org@x.com")
	require.NoError(t, err)
	assert.True(t, already)
	assert.Equal(t, 2, f.notifier.count(), "verified accounts get no new code")
}

func TestResendCode_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ResendCode(context.Background(), "nobody@x.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	res := f.signupOrganizer(t, "org@x.com")

	_, err := f.svc.Login(context.Background(), "org@x.com", "Passw0rd")
	assert.ErrorIs(t, err, ErrEmailNotVerified)

	_, err = f.svc.VerifyEmail(context.Background(), "org@x.com", f.notifier.last(t).Code)
	require.NoError(t, err)

	login, err := f.svc.Login(context.Background(), " Org@x.com", "Passw0rd")
	require.NoError(t, err)
	assert.Equal(t, f.clock.Now().Add(time.Hour), login.ExpiresAt)
	assert.Equal(t, time.Hour, login.ExpiresIn)

	claims, err := f.codec.Verify(login.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "org@x.com", claims.Subject)
	assert.Equal(t, types.RoleOrganizer, claims.Role)
	assert.Equal(t, res.TenantID, claims.TenantID)
}

func TestLogin_InvalidCredentialsAreIndistinguishable(t *testing.T) {
	f := newFixture(t)
	f.signupOrganizer(t, "org@x.com")
	_, err := f.svc.VerifyEmail(context.Background(), "org@x.com", f.notifier.last(t).Code)
	require.NoError(t, err)

	_, wrongPassword := f.svc.Login(context.Background(), "org@x.com", "Wr0ngPass")
	_, unknownEmail := f.svc.Login(context.Background(), "ghost@x.com", "Passw0rd")

	assert.ErrorIs(t, wrongPassword, ErrInvalidCredentials)
	assert.ErrorIs(t, unknownEmail, ErrInvalidCredentials)
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
}

func TestLogin_WrongPasswordBeforeVerification(t *testing.T) {
	f := newFixture(t)
	f.signupOrganizer(t, "org@x.com")

	_, err := f.svc.Login(context.Background(), "org@x.com", "Wr0ngPass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSeed(t *testing.T) {
	f := newFixture(t)

	report, err := f.svc.Seed(context.Background(), DemoAccounts)
	require.NoError(t, err)
	assert.Len(t, report.Created, len(DemoAccounts))
	assert.Empty(t, report.Skipped)
	assert.Equal(t, 0, f.notifier.count())

	login, err := f.svc.Login(context.Background(), "organizer@netsync.com", "org12345")
	require.NoError(t, err)
	claims, err := f.codec.Verify(login.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, DemoTenantID, claims.TenantID)

	login, err = f.svc.Login(context.Background(), "admin@netsync.com", "admin12345")
	require.NoError(t, err)
	claims, err = f.codec.Verify(login.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, types.RoleSuperAdmin, claims.Role)
	assert.Empty(t, claims.TenantID)

	report, err = f.svc.Seed(context.Background(), DemoAccounts)
	require.NoError(t, err)
	assert.Empty(t, report.Created)
	assert.Len(t, report.Skipped, len(DemoAccounts))
}

func TestSeed_RejectsTenantlessStaff(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Seed(context.Background(), []SeedAccount{
		{Email: "s@x.com", Password: "staff12345", FullName: "Staff", Role: types.RoleStaff},
	})
	assert.Error(t, err)
	assert.Equal(t, 0, f.repo.Len())
}

func assertUnverified(t *testing.T, f *fixture, email string) {
	t.Helper()
	stored, err := f.repo.FindByEmail(context.Background(), email)
	require.NoError(t, err)
	assert.False(t, stored.EmailVerified)
}

func otherCode(code string) string {
	if code == "000000" {
		return "000001"
	}
	return "000000"
}
