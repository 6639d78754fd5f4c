//go:build e2e

package e2e

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/netsync/apiserver/config"
	"github.com/netsync/apiserver/internal/db"
	"github.com/netsync/apiserver/internal/store"
	"github.com/netsync/apiserver/types"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

const mongoURI = "mongodb://localhost:27017"

// openMongoRepo connects to the compose mongo service with a throwaway
// database that is dropped when the test ends.
func openMongoRepo(t *testing.T) (*store.MongoAccountRepository, *mongo.Database) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg := config.MongoConfig{
		URI:      mongoURI,
		Database: fmt.Sprintf("netsync_e2e_%d", time.Now().UnixNano()),
	}

	var (
		client   *mongo.Client
		database *mongo.Database
		err      error
	)
	for {
		client, database, err = db.OpenMongo(ctx, cfg)
		if err == nil {
			break
		}
		select {
		case <-ctx.Done():
			t.Fatalf("mongo not reachable: %v", err)
		case <-time.After(time.Second):
		}
	}
	t.Cleanup(func() {
		_ = database.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})

	repo := store.NewMongoAccountRepository(database)
	if err := repo.EnsureIndexes(ctx); err != nil {
		t.Fatalf("ensure indexes: %v", err)
	}
	return repo, database
}

func pendingAccount(id, email string, now time.Time) types.Account {
	expires := now.Add(10 * time.Minute)
	return types.Account{
		ID:           id,
		Email:        email,
		FullName:     "Mongo Tester",
		PasswordHash: "$argon2id$stub",
		Role:         types.RoleOrganizer,
		TenantID:     "tenant_abcdef12",
		OrgName:      "Mongo Org",
		OTPHash:      "$argon2id$code",
		OTPExpiresAt: &expires,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestMongoAccountRepository_Lifecycle(t *testing.T) {
	repo, _ := openMongoRepo(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	res, err := repo.Insert(ctx, pendingAccount("01MONGO1", "owner@mongo.test", now))
	if err != nil || res != store.Inserted {
		t.Fatalf("insert: got %v, %v", res, err)
	}

	res, err = repo.Insert(ctx, pendingAccount("01MONGO2", "owner@mongo.test", now))
	if err != nil || res != store.Conflict {
		t.Fatalf("duplicate insert: got %v, %v", res, err)
	}

	got, err := repo.FindByEmail(ctx, "owner@mongo.test")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.ID != "01MONGO1" || got.EmailVerified || got.OTPHash != "$argon2id$code" {
		t.Fatalf("unexpected account %+v", got)
	}
	if got.OTPExpiresAt == nil || !got.OTPExpiresAt.Equal(now.Add(10*time.Minute)) {
		t.Fatalf("unexpected expiry %v", got.OTPExpiresAt)
	}

	if _, err := repo.FindByEmail(ctx, "nobody@mongo.test"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("find unknown: expected ErrNotFound, got %v", err)
	}

	later := now.Add(time.Minute)
	newExpiry := later.Add(10 * time.Minute)
	if err := repo.ReplaceOTP(ctx, "owner@mongo.test", "$argon2id$next", newExpiry, later); err != nil {
		t.Fatalf("replace otp: %v", err)
	}
	got, err = repo.FindByEmail(ctx, "owner@mongo.test")
	if err != nil {
		t.Fatalf("find after replace: %v", err)
	}
	if got.OTPHash != "$argon2id$next" || !got.OTPExpiresAt.Equal(newExpiry) || !got.UpdatedAt.Equal(later) {
		t.Fatalf("otp not replaced: %+v", got)
	}

	if err := repo.MarkEmailVerified(ctx, "owner@mongo.test", later); err != nil {
		t.Fatalf("mark verified: %v", err)
	}
	got, err = repo.FindByEmail(ctx, "owner@mongo.test")
	if err != nil {
		t.Fatalf("find after verify: %v", err)
	}
	if !got.EmailVerified {
		t.Fatalf("expected verified account")
	}

	if err := repo.ReplaceOTP(ctx, "nobody@mongo.test", "x", newExpiry, later); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("replace otp unknown: expected ErrNotFound, got %v", err)
	}
	if err := repo.MarkEmailVerified(ctx, "nobody@mongo.test", later); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("mark unknown: expected ErrNotFound, got %v", err)
	}
}

func TestMongoAccountRepository_ConcurrentInsert(t *testing.T) {
	repo, _ := openMongoRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	var inserted, conflicts atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := repo.Insert(ctx, pendingAccount(fmt.Sprintf("01RACE%02d", i), "race@mongo.test", now))
			if err != nil {
				t.Errorf("insert %d: %v", i, err)
				return
			}
			switch res {
			case store.Inserted:
				inserted.Add(1)
			case store.Conflict:
				conflicts.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if inserted.Load() != 1 || conflicts.Load() != 15 {
		t.Fatalf("expected 1 insert and 15 conflicts, got %d and %d", inserted.Load(), conflicts.Load())
	}
}

func TestMongoAccountRepository_RejectsUnknownRole(t *testing.T) {
	repo, database := openMongoRepo(t)
	ctx := context.Background()

	_, err := database.Collection(store.DefaultAccountsCollection).InsertOne(ctx, bson.M{
		"_id":   "01BADROLE",
		"email": "odd@mongo.test",
		"role":  "root",
	})
	if err != nil {
		t.Fatalf("insert raw document: %v", err)
	}

	if _, err := repo.FindByEmail(ctx, "odd@mongo.test"); err == nil {
		t.Fatalf("expected unknown role to be rejected")
	}
}
