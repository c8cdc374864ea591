package usecase

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/psouza/walletcore/internal/app/core/domain"
)

// Store is the ledger's persistence port. Atomic runs fn inside one
// all-or-nothing unit of work and hands it a Store view bound to that
// scope; every balance mutation and movement write the engine performs
// goes through such a scope.
type Store interface {
	// Atomic commits everything fn did or nothing. An error returned by
	// fn (or a context cancellation) discards all writes in the scope.
	Atomic(ctx context.Context, fn func(s Store) error) error
	Accounts() AccountStore
	Movements() MovementStore
}

// AccountStore reads and conditionally mutates account balances. Account
// rows themselves are owned by the identity subsystem; Create exists for
// provisioning and test seeding, the engine never calls it.
type AccountStore interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	// GetForUpdate loads the account holding a row lock for the rest of
	// the enclosing atomic scope.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	// AddBalance applies a signed delta to the account balance.
	AddBalance(ctx context.Context, id uuid.UUID, delta decimal.Decimal) error
	// Summaries resolves display fields for a set of accounts. Missing
	// ids are simply absent from the result.
	Summaries(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.AccountSummary, error)
	Create(ctx context.Context, account *domain.Account) error
}

// MovementStore appends and finalizes movement records.
type MovementStore interface {
	Create(ctx context.Context, movement *domain.Movement) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Movement, error)
	// GetForUpdate loads the movement holding a row lock, so a status
	// check and the following Finalize act on the same observed row.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Movement, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.Movement, error)
	// Finalize updates status, kind and updatedAt; all other columns are
	// immutable after Create.
	Finalize(ctx context.Context, id uuid.UUID, status domain.MovementStatus, kind domain.MovementKind) error
	// ListByAccount returns movements where the account is sender or
	// receiver, newest first, plus the total count for the same filter.
	ListByAccount(ctx context.Context, accountID uuid.UUID, offset, limit int) ([]domain.Movement, int64, error)
}
