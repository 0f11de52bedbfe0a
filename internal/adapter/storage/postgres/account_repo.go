package postgres

import (
	"context"
	"errors"
	"fmt"

	"mobile-money-ledger/internal/core/domain"
	"mobile-money-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const accountColumns = `a.id, a.account_type, a.status, a.balance, a.merchant_code,
	a.otp_hash, a.otp_expires_at, a.activated_at, a.version, a.created_at, a.updated_at`

// AccountRepo implements ports.AccountRepository.
type AccountRepo struct {
	pool Pool
}

// NewAccountRepo creates a new AccountRepo.
func NewAccountRepo(pool Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

// Create inserts a new account within a database transaction.
func (r *AccountRepo) Create(ctx context.Context, tx pgx.Tx, a *domain.Account) error {
	query := `INSERT INTO accounts (id, account_type, status, balance, merchant_code,
		otp_hash, otp_expires_at, activated_at, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := tx.Exec(ctx, query,
		a.ID, a.Type, a.Status, a.Balance, a.MerchantCode,
		a.OTPHash, a.OTPExpiresAt, a.ActivatedAt, a.Version,
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return mapWriteErr("insert account", err)
	}
	return nil
}

// GetByID fetches an account by its UUID (without locking).
func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts a WHERE a.id = $1`

	return scanAccount(r.pool.QueryRow(ctx, query, id), "get account by id")
}

// GetByPhoneAndType resolves the account of type t owned by the user with
// the given phone. It joins through the unique phone index and the user's
// account link, never scanning accounts.
func (r *AccountRepo) GetByPhoneAndType(ctx context.Context, phone string, t domain.AccountType) (*domain.Account, error) {
	col, err := linkColumn(t)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + accountColumns + ` FROM users u
		JOIN accounts a ON a.id = u.` + col + `
		WHERE u.phone = $1`

	return scanAccount(r.pool.QueryRow(ctx, query, phone), "get account by phone and type")
}

// GetByMerchantCode fetches the merchant account holding code.
func (r *AccountRepo) GetByMerchantCode(ctx context.Context, code int) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts a WHERE a.merchant_code = $1`

	return scanAccount(r.pool.QueryRow(ctx, query, code), "get account by merchant code")
}

// GetByIDForUpdate fetches an account by ID with pessimistic locking.
// This MUST be called within a transaction.
func (r *AccountRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts a WHERE a.id = $1 FOR UPDATE`

	return scanAccount(tx.QueryRow(ctx, query, id), "get account for update")
}

// Update writes the mutable account fields if the stored version still
// matches, and bumps the version on success.
func (r *AccountRepo) Update(ctx context.Context, tx pgx.Tx, a *domain.Account) error {
	query := `UPDATE accounts SET status = $1, balance = $2, merchant_code = $3,
		otp_hash = $4, otp_expires_at = $5, activated_at = $6,
		version = version + 1, updated_at = $7
		WHERE id = $8 AND version = $9`

	tag, err := tx.Exec(ctx, query,
		a.Status, a.Balance, a.MerchantCode,
		a.OTPHash, a.OTPExpiresAt, a.ActivatedAt,
		a.UpdatedAt, a.ID, a.Version,
	)
	if err != nil {
		return mapWriteErr("update account", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update account %s: %w", a.ID, ports.ErrStaleWrite)
	}
	a.Version++
	return nil
}

func linkColumn(t domain.AccountType) (string, error) {
	switch t {
	case domain.AccountTypeClient:
		return "client_account_id", nil
	case domain.AccountTypeMerchant:
		return "merchant_account_id", nil
	}
	return "", fmt.Errorf("unknown account type %q", t)
}

func scanAccount(row pgx.Row, op string) (*domain.Account, error) {
	a := &domain.Account{}
	err := row.Scan(
		&a.ID, &a.Type, &a.Status, &a.Balance, &a.MerchantCode,
		&a.OTPHash, &a.OTPExpiresAt, &a.ActivatedAt, &a.Version,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return a, nil
}
