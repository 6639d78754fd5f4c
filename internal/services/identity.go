package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/netsync/apiserver/internal/credentials"
	"github.com/netsync/apiserver/internal/metrics"
	"github.com/netsync/apiserver/internal/notify"
	"github.com/netsync/apiserver/internal/store"
	"github.com/netsync/apiserver/types"
	"github.com/oklog/ulid/v2"
)

const (
	minNameLength = 2
	maxNameLength = 120
)

// AccountRepository defines persistence operations for accounts. Insert and
// each update must be atomic on the store side.
type AccountRepository interface {
	Insert(ctx context.Context, account types.Account) (store.InsertResult, error)
	FindByEmail(ctx context.Context, email string) (types.Account, error)
	MarkEmailVerified(ctx context.Context, email string, at time.Time) error
	ReplaceOTP(ctx context.Context, email, otpHash string, expiresAt, at time.Time) error
}

// SecretHasher hashes passwords and verification codes.
type SecretHasher interface {
	Hash(secret string) (string, error)
	Verify(secret, encoded string) bool
}

// TokenIssuer signs access tokens.
type TokenIssuer interface {
	Issue(subject string, role types.Role, tenantID string) (string, time.Time, error)
	TTL() time.Duration
}

// Notifier accepts verification messages for background delivery.
type Notifier interface {
	Enqueue(msg notify.VerificationEmail) error
}

// IdentityDeps are the collaborators of IdentityService. Logger and Metrics
// may be nil.
type IdentityDeps struct {
	Accounts AccountRepository
	Hasher   SecretHasher
	Tokens   TokenIssuer
	Notifier Notifier
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

// IdentityService encapsulates signup, email verification and login.
type IdentityService struct {
	accounts AccountRepository
	hasher   SecretHasher
	tokens   TokenIssuer
	notifier Notifier
	log      *slog.Logger
	metrics  *metrics.Metrics
	otpTTL   time.Duration
	now      func() time.Time

	decoyOnce sync.Once
	decoy     string
}

// Option customizes an IdentityService.
type Option func(*IdentityService)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *IdentityService) { s.now = now }
}

func NewIdentityService(deps IdentityDeps, otpTTL time.Duration, opts ...Option) *IdentityService {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	s := &IdentityService{
		accounts: deps.Accounts,
		hasher:   deps.Hasher,
		tokens:   deps.Tokens,
		notifier: deps.Notifier,
		log:      log,
		metrics:  deps.Metrics,
		otpTTL:   otpTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OrganizerSignup is the input of SignupOrganizer.
type OrganizerSignup struct {
	Email    string
	Password string
	FullName string
	OrgName  string
}

// AttendeeSignup is the input of SignupAttendee. TenantID is optional and
// taken as given.
type AttendeeSignup struct {
	Email    string
	Password string
	FullName string
	TenantID string
}

// SignupResult describes the created account. Account carries no secrets.
type SignupResult struct {
	Account  types.Account
	TenantID string
}

// LoginResult is an issued access token.
type LoginResult struct {
	AccessToken string
	ExpiresAt   time.Time
	ExpiresIn   time.Duration
	Account     types.Account
}

// SignupOrganizer creates an organizer under a freshly generated tenant.
func (s *IdentityService) SignupOrganizer(ctx context.Context, in OrganizerSignup) (SignupResult, error) {
	return s.signup(ctx, "signup_organizer", types.Account{
		Email:    in.Email,
		FullName: in.FullName,
		Role:     types.RoleOrganizer,
		TenantID: NewTenantID(),
		OrgName:  strings.TrimSpace(in.OrgName),
	}, in.Password)
}

// SignupAttendee creates an attendee, optionally under the given tenant.
func (s *IdentityService) SignupAttendee(ctx context.Context, in AttendeeSignup) (SignupResult, error) {
	return s.signup(ctx, "signup_attendee", types.Account{
		Email:    in.Email,
		FullName: in.FullName,
		Role:     types.RoleAttendee,
		TenantID: strings.TrimSpace(in.TenantID),
	}, in.Password)
}

func (s *IdentityService) signup(ctx context.Context, op string, account types.Account, password string) (SignupResult, error) {
	email, err := NormalizeEmail(account.Email)
	if err != nil {
		s.metrics.Auth(op, "invalid_input")
		return SignupResult{}, err
	}
	account.Email = email
	account.FullName = strings.TrimSpace(account.FullName)
	if err := validateName("full_name", account.FullName); err != nil {
		s.metrics.Auth(op, "invalid_input")
		return SignupResult{}, err
	}
	if err := credentials.ValidatePassword(password); err != nil {
		s.metrics.Auth(op, "weak_password")
		return SignupResult{}, err
	}
	if account.Role == types.RoleOrganizer {
		if err := validateName("org_name", account.OrgName); err != nil {
			s.metrics.Auth(op, "invalid_input")
			return SignupResult{}, err
		}
	}

	code, err := credentials.GenerateOTP()
	if err != nil {
		return SignupResult{}, fmt.Errorf("generate code: %w", err)
	}
	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return SignupResult{}, fmt.Errorf("hash password: %w", err)
	}
	otpHash, err := s.hasher.Hash(code)
	if err != nil {
		return SignupResult{}, fmt.Errorf("hash code: %w", err)
	}

	now := s.now().UTC()
	expiresAt := now.Add(s.otpTTL)
	account.ID = ulid.Make().String()
	account.PasswordHash = passwordHash
	account.EmailVerified = false
	account.OTPHash = otpHash
	account.OTPExpiresAt = &expiresAt
	account.CreatedAt = now
	account.UpdatedAt = now

	result, err := s.accounts.Insert(ctx, account)
	if err != nil {
		s.metrics.Auth(op, "error")
		return SignupResult{}, fmt.Errorf("insert account: %w", err)
	}
	if result == store.Conflict {
		s.metrics.Auth(op, "duplicate")
		return SignupResult{}, ErrDuplicateAccount
	}

	s.dispatch(email, code, false)
	s.metrics.Auth(op, "ok")
	s.log.Info("account created", "id", account.ID, "email", email, "role", account.Role, "tenant_id", account.TenantID)

	return SignupResult{Account: Public(account), TenantID: account.TenantID}, nil
}

// VerifyEmail marks the account verified when code matches the outstanding
// one. It reports alreadyVerified when there was nothing to do.
func (s *IdentityService) VerifyEmail(ctx context.Context, email, code string) (alreadyVerified bool, err error) {
	const op = "verify_email"

	email, err = NormalizeEmail(email)
	if err != nil {
		s.metrics.Auth(op, "invalid_input")
		return false, err
	}
	code = strings.TrimSpace(code)
	if utf8.RuneCountInString(code) != credentials.OTPLength {
		s.metrics.Auth(op, "invalid_input")
		return false, invalid("code", fmt.Sprintf("must be %d characters", credentials.OTPLength))
	}

	account, err := s.find(ctx, op, email)
	if err != nil {
		return false, err
	}
	if account.EmailVerified {
		s.metrics.Auth(op, "already_verified")
		return true, nil
	}

	now := s.now().UTC()
	if account.OTPExpiresAt == nil || now.After(*account.OTPExpiresAt) {
		s.metrics.Auth(op, "code_expired")
		return false, ErrCodeExpired
	}
	if !s.hasher.Verify(code, account.OTPHash) {
		s.metrics.Auth(op, "invalid_code")
		return false, ErrInvalidCode
	}

	if err := s.accounts.MarkEmailVerified(ctx, email, now); err != nil {
		s.metrics.Auth(op, "error")
		return false, fmt.Errorf("mark verified: %w", err)
	}
	s.metrics.Auth(op, "ok")
	s.log.Info("email verified", "email", email)
	return false, nil
}

// ResendCode replaces the outstanding code with a fresh one and sends it.
// Verified accounts are left untouched and reported as alreadyVerified.
func (s *IdentityService) ResendCode(ctx context.Context, email string) (alreadyVerified bool, err error) {
	const op = "resend_code"

	email, err = NormalizeEmail(email)
	if err != nil {
		s.metrics.Auth(op, "invalid_input")
		return false, err
	}

	account, err := s.find(ctx, op, email)
	if err != nil {
		return false, err
	}
	if account.EmailVerified {
		s.metrics.Auth(op, "already_verified")
		return true, nil
	}

	code, err := credentials.GenerateOTP()
	if err != nil {
		return false, fmt.Errorf("generate code: %w", err)
	}
	otpHash, err := s.hasher.Hash(code)
	if err != nil {
		return false, fmt.Errorf("hash code: %w", err)
	}

	now := s.now().UTC()
	if err := s.accounts.ReplaceOTP(ctx, email, otpHash, now.Add(s.otpTTL), now); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.metrics.Auth(op, "not_found")
			return false, ErrNotFound
		}
		s.metrics.Auth(op, "error")
		return false, fmt.Errorf("replace code: %w", err)
	}

	s.dispatch(email, code, true)
	s.metrics.Auth(op, "ok")
	return false, nil
}

// Login checks the password and issues an access token. Unknown emails and
// wrong passwords fail alike with ErrInvalidCredentials.
func (s *IdentityService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	const op = "login"

	email, err := NormalizeEmail(email)
	if err != nil {
		s.metrics.Auth(op, "invalid_credentials")
		return LoginResult{}, ErrInvalidCredentials
	}

	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.metrics.Auth(op, "error")
			return LoginResult{}, fmt.Errorf("find account: %w", err)
		}
		// Spend the same hashing work as a real check.
		s.hasher.Verify(password, s.decoyHash())
		s.metrics.Auth(op, "invalid_credentials")
		return LoginResult{}, ErrInvalidCredentials
	}
	if !s.hasher.Verify(password, account.PasswordHash) {
		s.metrics.Auth(op, "invalid_credentials")
		return LoginResult{}, ErrInvalidCredentials
	}
	if !account.EmailVerified {
		s.metrics.Auth(op, "email_not_verified")
		return LoginResult{}, ErrEmailNotVerified
	}

	accessToken, expiresAt, err := s.tokens.Issue(account.Email, account.Role, account.TenantID)
	if err != nil {
		s.metrics.Auth(op, "error")
		return LoginResult{}, fmt.Errorf("issue token: %w", err)
	}
	s.metrics.Auth(op, "ok")
	return LoginResult{
		AccessToken: accessToken,
		ExpiresAt:   expiresAt,
		ExpiresIn:   s.tokens.TTL(),
		Account:     Public(account),
	}, nil
}

func (s *IdentityService) find(ctx context.Context, op, email string) (types.Account, error) {
	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.metrics.Auth(op, "not_found")
			return types.Account{}, ErrNotFound
		}
		s.metrics.Auth(op, "error")
		return types.Account{}, fmt.Errorf("find account: %w", err)
	}
	return account, nil
}

// dispatch hands the code to the notifier. The account is already stored;
// a rejected message is logged by the notifier and otherwise ignored.
func (s *IdentityService) dispatch(email, code string, resend bool) {
	if s.notifier == nil {
		return
	}
	_ = s.notifier.Enqueue(notify.VerificationEmail{
		To:           email,
		Code:         code,
		ValidMinutes: int(s.otpTTL / time.Minute),
		Resend:       resend,
		RequestedAt:  s.now().UTC(),
	})
}

func (s *IdentityService) decoyHash() string {
	s.decoyOnce.Do(func() {
		s.decoy, _ = s.hasher.Hash(ulid.Make().String())
	})
	return s.decoy
}

// NormalizeEmail trims and lower-cases email and checks it is a bare
// address.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", invalid("email", "is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", invalid("email", "is not a valid address")
	}
	return email, nil
}

// NewTenantID returns an opaque tenant identifier of the form tenant_xxxxxxxx.
func NewTenantID() string {
	id := uuid.New()
	return "tenant_" + strings.ReplaceAll(id.String(), "-", "")[:8]
}

// Public strips the password and code hashes from account.
func Public(account types.Account) types.Account {
	account.PasswordHash = ""
	account.OTPHash = ""
	account.OTPExpiresAt = nil
	return account
}

func validateName(field, value string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(value))
	if n < minNameLength || n > maxNameLength {
		return invalid(field, fmt.Sprintf("must be between %d and %d characters", minNameLength, maxNameLength))
	}
	return nil
}
