package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mobile-money-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, external_id, phone, display_name,
	client_account_id, merchant_account_id, created_at, updated_at`

// UserRepo implements ports.UserRepository.
type UserRepo struct {
	pool Pool
}

// NewUserRepo creates a new UserRepo.
func NewUserRepo(pool Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

// Create inserts a new user. A taken phone number yields ports.ErrDuplicate.
func (r *UserRepo) Create(ctx context.Context, tx pgx.Tx, u *domain.User) error {
	query := `INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := tx.Exec(ctx, query,
		u.ID, u.ExternalID, u.Phone, u.DisplayName,
		u.ClientAccountID, u.MerchantAccountID, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return mapWriteErr("insert user", err)
	}
	return nil
}

// GetByPhone fetches a user by phone number.
func (r *UserRepo) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE phone = $1`

	return scanUser(r.pool.QueryRow(ctx, query, phone), "get user by phone")
}

// GetByIDForUpdate fetches a user with a row lock so that account issuance
// for the same user is serialised.
func (r *UserRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR UPDATE`

	return scanUser(tx.QueryRow(ctx, query, id), "get user for update")
}

// LinkAccount records that the user owns accountID as its account of type t.
func (r *UserRepo) LinkAccount(ctx context.Context, tx pgx.Tx, userID uuid.UUID, t domain.AccountType, accountID uuid.UUID) error {
	col, err := linkColumn(t)
	if err != nil {
		return err
	}
	query := `UPDATE users SET ` + col + ` = $1, updated_at = $2 WHERE id = $3`

	tag, err := tx.Exec(ctx, query, accountID, time.Now().UTC(), userID)
	if err != nil {
		return mapWriteErr("link account", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user not found: %s", userID)
	}
	return nil
}

func scanUser(row pgx.Row, op string) (*domain.User, error) {
	u := &domain.User{}
	err := row.Scan(
		&u.ID, &u.ExternalID, &u.Phone, &u.DisplayName,
		&u.ClientAccountID, &u.MerchantAccountID, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}
