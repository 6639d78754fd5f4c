package types

import "time"

// Account represents an identity record in the system.
// Email is the natural key; it is stored normalized and never changes.
type Account struct {
	// ID is the unique identifier of the account (ULID).
	ID string `json:"id" db:"id" bson:"_id"`

	// Email is the trimmed, lower-cased email address.
	Email string `json:"email" db:"email" bson:"email"`

	// FullName is the account holder's display name.
	FullName string `json:"full_name" db:"full_name" bson:"full_name"`

	// PasswordHash stores the encoded Argon2id hash of the password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash" bson:"hashed_password"`

	// Role is fixed at creation.
	Role Role `json:"role" db:"role" bson:"role"`

	// TenantID identifies the owning organization. It is empty for
	// platform-level roles.
	TenantID string `json:"tenant_id,omitempty" db:"tenant_id" bson:"tenant_id,omitempty"`

	// OrgName is the organization name given by an organizer at signup.
	OrgName string `json:"org_name,omitempty" db:"org_name" bson:"org_name,omitempty"`

	// EmailVerified becomes true once, through the verification flow.
	EmailVerified bool `json:"email_verified" db:"email_verified" bson:"is_email_verified"`

	// OTPHash and OTPExpiresAt describe the outstanding verification code.
	// They are set together and never exposed.
	OTPHash      string     `json:"-" db:"otp_hash" bson:"email_otp_hash,omitempty"`
	OTPExpiresAt *time.Time `json:"-" db:"otp_expires_at" bson:"email_otp_expires_at,omitempty"`

	// CreatedAt is the timestamp when the account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at" bson:"created_at"`

	// UpdatedAt is the timestamp of the most recent change to the account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at" bson:"updated_at"`
}
