package postgres

import (
	"context"
	"fmt"
	"strings"

	"mobile-money-ledger/internal/core/domain"
	"mobile-money-ledger/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

const ledgerColumns = `id, reference, kind, amount, source_account_id,
	destination_account_id, memo, created_at`

// LedgerRepo implements ports.LedgerRepository.
type LedgerRepo struct {
	pool Pool
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(pool Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

// Append inserts an entry in the same transaction as the balance changes.
// A taken reference returns ports.ErrDuplicate without aborting tx, so the
// caller can retry with a fresh one.
func (r *LedgerRepo) Append(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	query := `INSERT INTO ledger_entries (` + ledgerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (reference) DO NOTHING`

	tag, err := tx.Exec(ctx, query,
		e.ID, e.Reference, e.Kind, e.Amount,
		e.SourceAccountID, e.DestinationAccountID, e.Memo, e.CreatedAt,
	)
	if err != nil {
		return mapWriteErr("insert ledger entry", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("insert ledger entry: reference %s: %w", e.Reference, ports.ErrDuplicate)
	}
	return nil
}

// ListByAccounts fetches entries touching any of the given accounts,
// newest first, with filtering and pagination.
func (r *LedgerRepo) ListByAccounts(ctx context.Context, params ports.LedgerListParams) ([]domain.LedgerEntry, int64, error) {
	if len(params.AccountIDs) == 0 {
		return nil, 0, nil
	}

	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, fmt.Sprintf("(source_account_id = ANY($%d) OR destination_account_id = ANY($%d))", argIdx, argIdx))
	args = append(args, params.AccountIDs)
	argIdx++

	if params.Kind != nil {
		conditions = append(conditions, fmt.Sprintf("kind = $%d", argIdx))
		args = append(args, *params.Kind)
		argIdx++
	}
	if params.From != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argIdx))
		args = append(args, *params.From)
		argIdx++
	}
	if params.To != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", argIdx))
		args = append(args, *params.To)
		argIdx++
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	var total int64
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM ledger_entries %s", where)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count ledger entries: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM ledger_entries %s
		ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, ledgerColumns, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(
			&e.ID, &e.Reference, &e.Kind, &e.Amount,
			&e.SourceAccountID, &e.DestinationAccountID, &e.Memo, &e.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan ledger row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate ledger rows: %w", err)
	}
	return entries, total, nil
}
