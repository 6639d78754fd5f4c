package store

import (
	"context"
	"sync"
	"time"

	"github.com/netsync/apiserver/types"
)

// MemoryAccountRepository keeps accounts in process memory. It provides the
// same atomic insert-with-uniqueness and single-record update guarantees as
// the database-backed repositories.
type MemoryAccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]types.Account
}

func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{accounts: make(map[string]types.Account)}
}

func (r *MemoryAccountRepository) Insert(ctx context.Context, account types.Account) (InsertResult, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.accounts[account.Email]; exists {
		return Conflict, nil
	}
	r.accounts[account.Email] = cloneAccount(account)
	return Inserted, nil
}

func (r *MemoryAccountRepository) FindByEmail(ctx context.Context, email string) (types.Account, error) {
	if err := ctx.Err(); err != nil {
		return types.Account{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.accounts[email]
	if !ok {
		return types.Account{}, ErrNotFound
	}
	return cloneAccount(account), nil
}

func (r *MemoryAccountRepository) MarkEmailVerified(ctx context.Context, email string, at time.Time) error {
	return r.update(ctx, email, func(a *types.Account) {
		a.EmailVerified = true
		a.UpdatedAt = at
	})
}

func (r *MemoryAccountRepository) ReplaceOTP(ctx context.Context, email, otpHash string, expiresAt, at time.Time) error {
	return r.update(ctx, email, func(a *types.Account) {
		a.OTPHash = otpHash
		exp := expiresAt
		a.OTPExpiresAt = &exp
		a.UpdatedAt = at
	})
}

// Len returns the number of stored accounts.
func (r *MemoryAccountRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.accounts)
}

func (r *MemoryAccountRepository) update(ctx context.Context, email string, fn func(*types.Account)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[email]
	if !ok {
		return ErrNotFound
	}
	fn(&account)
	r.accounts[email] = account
	return nil
}

func cloneAccount(a types.Account) types.Account {
	if a.OTPExpiresAt != nil {
		exp := *a.OTPExpiresAt
		a.OTPExpiresAt = &exp
	}
	return a
}
