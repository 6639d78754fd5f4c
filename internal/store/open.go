package store

import (
	"context"
	"fmt"
	"time"

	"github.com/netsync/apiserver/config"
	"github.com/netsync/apiserver/internal/db"
	"github.com/netsync/apiserver/types"
)

// Repository is implemented by every account store.
type Repository interface {
	Insert(ctx context.Context, account types.Account) (InsertResult, error)
	FindByEmail(ctx context.Context, email string) (types.Account, error)
	MarkEmailVerified(ctx context.Context, email string, at time.Time) error
	ReplaceOTP(ctx context.Context, email, otpHash string, expiresAt, at time.Time) error
}

// Open connects the account store selected by cfg.Store.Driver. The
// returned close function releases the connection and is never nil.
func Open(ctx context.Context, cfg config.Config) (Repository, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		conn, err := db.Open(ctx, cfg.Database)
		if err != nil {
			return nil, noop, err
		}
		return NewAccountRepository(conn), conn.Close, nil
	case config.StoreDriverMongo:
		client, database, err := db.OpenMongo(ctx, cfg.Mongo)
		if err != nil {
			return nil, noop, err
		}
		closeFn := func() error { return client.Disconnect(context.Background()) }

		repo := NewMongoAccountRepository(database)
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = closeFn()
			return nil, noop, fmt.Errorf("ensure indexes: %w", err)
		}
		return repo, closeFn, nil
	case config.StoreDriverMemory:
		return NewMemoryAccountRepository(), noop, nil
	default:
		return nil, noop, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
}
