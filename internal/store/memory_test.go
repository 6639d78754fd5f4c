package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/netsync/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryAccountRepository_InsertConflict(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAccountRepository()

	res, err := repo.Insert(ctx, types.Account{ID: "1", Email: "a@x.com", Role: types.RoleAttendee})
	require.NoError(t, err)
	assert.Equal(t, Inserted, res)

	res, err = repo.Insert(ctx, types.Account{ID: "2", Email: "a@x.com", Role: types.RoleOrganizer})
	require.NoError(t, err)
	assert.Equal(t, Conflict, res)

	got, err := repo.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "1", got.ID)
	assert.Equal(t, 1, repo.Len())
}

func TestMemoryAccountRepository_ConcurrentInsert(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAccountRepository()

	var inserted, conflicts atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := repo.Insert(ctx, types.Account{Email: "race@x.com"})
			if err != nil {
				t.Errorf("insert error: %v", err)
				return
			}
			if res == Inserted {
				inserted.Add(1)
			} else {
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), inserted.Load())
	assert.Equal(t, int32(31), conflicts.Load())
}

func TestMemoryAccountRepository_Updates(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAccountRepository()
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	_, err := repo.Insert(ctx, types.Account{Email: "a@x.com"})
	require.NoError(t, err)

	require.NoError(t, repo.ReplaceOTP(ctx, "a@x.com", "hash", now.Add(10*time.Minute), now))
	got, err := repo.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "hash", got.OTPHash)
	require.NotNil(t, got.OTPExpiresAt)
	assert.True(t, got.OTPExpiresAt.Equal(now.Add(10*time.Minute)))

	// Returned records are copies.
	*got.OTPExpiresAt = now
	again, err := repo.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.True(t, again.OTPExpiresAt.Equal(now.Add(10*time.Minute)))

	require.NoError(t, repo.MarkEmailVerified(ctx, "a@x.com", now))
	got, err = repo.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.True(t, got.EmailVerified)

	assert.ErrorIs(t, repo.MarkEmailVerified(ctx, "missing@x.com", now), ErrNotFound)
	assert.ErrorIs(t, repo.ReplaceOTP(ctx, "missing@x.com", "h", now, now), ErrNotFound)
	_, err = repo.FindByEmail(ctx, "missing@x.com")
	assert.ErrorIs(t, err, ErrNotFound)
}
