package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/netsync/apiserver/types"
)

const pqUniqueViolation = "23505"

// AccountRepository handles persistence for accounts in Postgres.
type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Insert stores a new account. A duplicate email is reported as Conflict,
// relying on the unique index on accounts.email.
func (r *AccountRepository) Insert(ctx context.Context, account types.Account) (InsertResult, error) {
	const query = `
		INSERT INTO accounts (
			id, email, full_name, password_hash, role, tenant_id, org_name,
			email_verified, otp_hash, otp_expires_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.db.ExecContext(
		ctx,
		query,
		account.ID,
		account.Email,
		account.FullName,
		account.PasswordHash,
		string(account.Role),
		nullString(account.TenantID),
		nullString(account.OrgName),
		account.EmailVerified,
		nullString(account.OTPHash),
		nullTime(account.OTPExpiresAt),
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return Conflict, nil
		}
		return 0, err
	}
	return Inserted, nil
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (types.Account, error) {
	const query = `
		SELECT id, email, full_name, password_hash, role, tenant_id, org_name,
			email_verified, otp_hash, otp_expires_at, created_at, updated_at
		FROM accounts
		WHERE email = $1`

	var (
		account   types.Account
		role      string
		tenantID  sql.NullString
		orgName   sql.NullString
		otpHash   sql.NullString
		otpExpiry sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, email).Scan(
		&account.ID,
		&account.Email,
		&account.FullName,
		&account.PasswordHash,
		&role,
		&tenantID,
		&orgName,
		&account.EmailVerified,
		&otpHash,
		&otpExpiry,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Account{}, ErrNotFound
		}
		return types.Account{}, err
	}

	if account.Role, err = types.ParseRole(role); err != nil {
		return types.Account{}, fmt.Errorf("account %s: %w", account.ID, err)
	}
	account.TenantID = tenantID.String
	account.OrgName = orgName.String
	account.OTPHash = otpHash.String
	if otpExpiry.Valid {
		t := otpExpiry.Time
		account.OTPExpiresAt = &t
	}
	return account, nil
}

// MarkEmailVerified sets email_verified. The flag is never cleared.
func (r *AccountRepository) MarkEmailVerified(ctx context.Context, email string, at time.Time) error {
	const query = `
		UPDATE accounts
		SET email_verified = TRUE,
			updated_at = $1
		WHERE email = $2`
	return r.execOne(ctx, query, at, email)
}

// ReplaceOTP overwrites the outstanding verification code in one statement.
func (r *AccountRepository) ReplaceOTP(ctx context.Context, email, otpHash string, expiresAt, at time.Time) error {
	const query = `
		UPDATE accounts
		SET otp_hash = $1,
			otp_expires_at = $2,
			updated_at = $3
		WHERE email = $4`
	return r.execOne(ctx, query, otpHash, expiresAt, at, email)
}

func (r *AccountRepository) execOne(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == pqUniqueViolation
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
