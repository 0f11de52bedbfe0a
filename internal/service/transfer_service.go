package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"mobile-money-ledger/internal/core/domain"
	"mobile-money-ledger/internal/core/ports"
	"mobile-money-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// referenceAttempts bounds how many fresh references a transfer tries when
// the generated one is already taken.
const referenceAttempts = 5

// TransferServiceImpl implements ports.TransferService.
type TransferServiceImpl struct {
	accountRepo  ports.AccountRepository
	ledgerRepo   ports.LedgerRepository
	transactor   ports.DBTransactor
	metrics      ports.Metrics
	now          func() time.Time
	newReference func(prefix string) string
	log          zerolog.Logger
}

// NewTransferService creates a new TransferServiceImpl.
func NewTransferService(
	accountRepo ports.AccountRepository,
	ledgerRepo ports.LedgerRepository,
	transactor ports.DBTransactor,
	metrics ports.Metrics,
	log zerolog.Logger,
) *TransferServiceImpl {
	return &TransferServiceImpl{
		accountRepo:  accountRepo,
		ledgerRepo:   ledgerRepo,
		transactor:   transactor,
		metrics:      metrics,
		now:          func() time.Time { return time.Now().UTC() },
		newReference: domain.NewReference,
		log:          log,
	}
}

// Execute moves req.Amount from source to destination. Both balance updates
// and the ledger entry are written in one transaction; rows are locked in
// ascending id order.
func (s *TransferServiceImpl) Execute(ctx context.Context, req ports.TransferRequest) (res *ports.TransferResult, err error) {
	kind := req.Kind
	if kind == "" {
		kind = domain.EntryKindTransfer
	}
	defer func() {
		outcome := ports.OutcomeSuccess
		if err != nil {
			outcome = ports.OutcomeFailure
		}
		s.metrics.ObserveMovement(kind, outcome, req.Amount)
	}()

	if req.SourceID == req.DestinationID {
		return nil, apperror.ErrSelfTransfer()
	}
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount("Amount must be greater than zero")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	locked := make(map[uuid.UUID]*domain.Account, 2)
	for _, id := range lockOrder(req.SourceID, req.DestinationID) {
		acc, err := s.accountRepo.GetByIDForUpdate(ctx, dbTx, id)
		if err != nil {
			return nil, storeErr("lock account", err)
		}
		locked[id] = acc
	}
	src, dst := locked[req.SourceID], locked[req.DestinationID]

	if err := checkParties(src, dst); err != nil {
		return nil, err
	}
	if src.Balance < req.Amount {
		return nil, apperror.ErrInsufficientFunds(domain.FormatAmount(src.Balance))
	}

	if err := src.Debit(req.Amount); err != nil {
		return nil, apperror.ErrInsufficientFunds(domain.FormatAmount(src.Balance))
	}
	if err := dst.Credit(req.Amount); err != nil {
		if errors.Is(err, domain.ErrBalanceOverflow) {
			return nil, apperror.ErrInvalidAmount("Amount exceeds the destination account capacity")
		}
		return nil, apperror.ErrInvalidAmount(err.Error())
	}

	now := s.now()
	src.UpdatedAt = now
	dst.UpdatedAt = now

	if err := s.accountRepo.Update(ctx, dbTx, src); err != nil {
		return nil, storeErr("update source account", err)
	}
	if err := s.accountRepo.Update(ctx, dbTx, dst); err != nil {
		return nil, storeErr("update destination account", err)
	}

	entry := domain.NewLedgerEntry(kind, req.Amount, src.ID, dst.ID, req.Memo, now)
	if err := s.appendEntry(ctx, dbTx, entry); err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, storeErr("commit tx", err)
	}

	s.log.Info().
		Str("reference", entry.Reference).
		Str("kind", string(kind)).
		Str("source_id", src.ID.String()).
		Str("destination_id", dst.ID.String()).
		Int64("amount", req.Amount).
		Msg("transfer completed")

	return &ports.TransferResult{Entry: entry, Source: src, Destination: dst}, nil
}

// appendEntry writes entry, drawing a new reference while the current one
// is taken.
func (s *TransferServiceImpl) appendEntry(ctx context.Context, dbTx pgx.Tx, entry *domain.LedgerEntry) error {
	for attempt := 1; ; attempt++ {
		entry.Reference = s.newReference(entry.Kind.RefPrefix())
		err := s.ledgerRepo.Append(ctx, dbTx, entry)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ports.ErrDuplicate) || attempt == referenceAttempts {
			return storeErr("append ledger entry", err)
		}
		s.log.Warn().Str("reference", entry.Reference).Int("attempt", attempt).Msg("ledger reference taken, retrying")
	}
}

// checkParties reports the first reason the pair cannot move funds,
// looking at the source before the destination.
func checkParties(src, dst *domain.Account) error {
	switch {
	case src == nil:
		return apperror.ErrAccountNotFound("Source account not found")
	case dst == nil:
		return apperror.ErrAccountNotFound("Destination account not found")
	case src.Status == domain.AccountStatusBlocked:
		return apperror.ErrAccountBlocked("Source account is blocked")
	case dst.Status == domain.AccountStatusBlocked:
		return apperror.ErrAccountBlocked("Destination account is blocked")
	case !src.IsActive():
		return apperror.ErrAccountInactive("Source account is not active")
	case !dst.IsActive():
		return apperror.ErrAccountInactive("Destination account is not active")
	}
	return nil
}

func lockOrder(a, b uuid.UUID) []uuid.UUID {
	if bytes.Compare(a[:], b[:]) <= 0 {
		return []uuid.UUID{a, b}
	}
	return []uuid.UUID{b, a}
}
