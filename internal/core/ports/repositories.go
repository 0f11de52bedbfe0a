package ports

import (
	"context"
	"errors"
	"time"

	"mobile-money-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	// ErrDuplicate is returned when a write violates a uniqueness rule
	// (phone number, merchant code, account link).
	ErrDuplicate = errors.New("duplicate key")
	// ErrStaleWrite is returned when an update loses its version check.
	ErrStaleWrite = errors.New("stale write")
)

// AccountRepository defines persistence operations for accounts.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic locking.
// Lookups return (nil, nil) when nothing matches.
type AccountRepository interface {
	Create(ctx context.Context, tx pgx.Tx, account *domain.Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetByPhoneAndType(ctx context.Context, phone string, t domain.AccountType) (*domain.Account, error)
	GetByMerchantCode(ctx context.Context, code int) (*domain.Account, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Account, error)
	// Update persists mutable fields when the stored version matches
	// account.Version, then increments it. Returns ErrStaleWrite otherwise.
	Update(ctx context.Context, tx pgx.Tx, account *domain.Account) error
}

// UserRepository defines persistence operations for identities.
type UserRepository interface {
	Create(ctx context.Context, tx pgx.Tx, user *domain.User) error
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.User, error)
	LinkAccount(ctx context.Context, tx pgx.Tx, userID uuid.UUID, t domain.AccountType, accountID uuid.UUID) error
}

// LedgerRepository defines persistence operations for ledger entries.
// Entries are append-only.
type LedgerRepository interface {
	Append(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error
	ListByAccounts(ctx context.Context, params LedgerListParams) ([]domain.LedgerEntry, int64, error)
}

// LedgerListParams holds filter + pagination for listing ledger entries.
type LedgerListParams struct {
	AccountIDs []uuid.UUID
	Kind       *domain.EntryKind
	From       *time.Time
	To         *time.Time
	Page       int
	PageSize   int
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
