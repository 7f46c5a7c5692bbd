package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/trustmecro/trust-service/internal/repository"
	"github.com/trustmecro/trust-service/pkg/database"
	"github.com/trustmecro/trust-service/pkg/tracing"
)

// Store builds repositories on a pool and runs ledger transactions.
type Store struct {
	db database.DBTX
}

// NewStore creates a Store on db.
func NewStore(db database.DBTX) *Store {
	return &Store{db: db}
}

// Repositories returns repositories that run each statement on their own.
func (s *Store) Repositories() repository.Repositories {
	return newRepositories(s.db)
}

// WithinTx runs fn with repositories bound to one transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(repos repository.Repositories) error) (err error) {
	ctx, span := tracing.StartSpan(ctx, "postgres", "ledger.tx")
	defer func() { tracing.End(span, err) }()

	return database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		return fn(newRepositories(tx))
	})
}

func newRepositories(db database.DBTX) repository.Repositories {
	return repository.Repositories{
		Products:   NewProductRepository(db),
		Reviews:    NewReviewRepository(db),
		Users:      NewUserRepository(db),
		Operations: NewOperationRepository(db),
	}
}
