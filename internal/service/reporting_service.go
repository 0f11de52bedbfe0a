package service

import (
	"context"
	"fmt"
	"math"

	"mobile-money-ledger/internal/core/domain"
	"mobile-money-ledger/internal/core/ports"
	"mobile-money-ledger/pkg/apperror"

	"github.com/google/uuid"
)

// ReportingServiceImpl implements ports.ReportingService. All queries are
// read-only and run outside a transaction.
type ReportingServiceImpl struct {
	userRepo    ports.UserRepository
	accountRepo ports.AccountRepository
	ledgerRepo  ports.LedgerRepository
}

// NewReportingService creates a new ReportingServiceImpl.
func NewReportingService(
	userRepo ports.UserRepository,
	accountRepo ports.AccountRepository,
	ledgerRepo ports.LedgerRepository,
) *ReportingServiceImpl {
	return &ReportingServiceImpl{
		userRepo:    userRepo,
		accountRepo: accountRepo,
		ledgerRepo:  ledgerRepo,
	}
}

func (s *ReportingServiceImpl) GetBalance(ctx context.Context, phone string, t domain.AccountType) (int64, error) {
	if !t.Valid() {
		return 0, apperror.Validation(fmt.Sprintf("unknown account type %q", t))
	}
	acc, err := accountByPhone(ctx, s.userRepo, s.accountRepo, domain.NormalizePhone(phone), t)
	if err != nil {
		return 0, err
	}
	return acc.Balance, nil
}

// GetTotalBalance sums every account linked to phone.
func (s *ReportingServiceImpl) GetTotalBalance(ctx context.Context, phone string) (int64, error) {
	user, err := findUser(ctx, s.userRepo, domain.NormalizePhone(phone))
	if err != nil {
		return 0, err
	}

	var total int64
	for _, id := range linkedAccounts(user) {
		acc, err := s.accountRepo.GetByID(ctx, id)
		if err != nil {
			return 0, storeErr("get account", err)
		}
		if acc == nil {
			continue
		}
		if total > math.MaxInt64-acc.Balance {
			return 0, apperror.InternalError(fmt.Errorf("total balance overflows for %s", user.Phone))
		}
		total += acc.Balance
	}
	return total, nil
}

// HasMerchantAccount is true when phone owns a merchant account that has not
// been deactivated.
func (s *ReportingServiceImpl) HasMerchantAccount(ctx context.Context, phone string) (bool, error) {
	user, err := findUser(ctx, s.userRepo, domain.NormalizePhone(phone))
	if err != nil {
		return false, err
	}
	if user.MerchantAccountID == nil {
		return false, nil
	}
	acc, err := s.accountRepo.GetByID(ctx, *user.MerchantAccountID)
	if err != nil {
		return false, storeErr("get merchant account", err)
	}
	return acc != nil && acc.Status != domain.AccountStatusDeactivated, nil
}

// ListTransactionsForPhone pages through ledger entries touching any
// account of the phone, newest first.
func (s *ReportingServiceImpl) ListTransactionsForPhone(ctx context.Context, params ports.HistoryParams) ([]domain.LedgerEntry, int64, error) {
	user, err := findUser(ctx, s.userRepo, domain.NormalizePhone(params.Phone))
	if err != nil {
		return nil, 0, err
	}
	if params.Kind != nil && !params.Kind.Valid() {
		return nil, 0, apperror.Validation(fmt.Sprintf("unknown transaction kind %q", *params.Kind))
	}
	if params.From != nil && params.To != nil && params.From.After(*params.To) {
		return nil, 0, apperror.Validation("from must not be after to")
	}

	ids := linkedAccounts(user)
	if len(ids) == 0 {
		return []domain.LedgerEntry{}, 0, nil
	}

	params = params.Normalized()

	entries, total, err := s.ledgerRepo.ListByAccounts(ctx, ports.LedgerListParams{
		AccountIDs: ids,
		Kind:       params.Kind,
		From:       params.From,
		To:         params.To,
		Page:       params.Page,
		PageSize:   params.PageSize,
	})
	if err != nil {
		return nil, 0, storeErr("list ledger entries", err)
	}
	return entries, total, nil
}

// LookupByPhone returns the identity registered for phone with the accounts
// it owns. OTP material never leaves the service.
func (s *ReportingServiceImpl) LookupByPhone(ctx context.Context, phone string) (*ports.UserProfile, error) {
	user, err := findUser(ctx, s.userRepo, domain.NormalizePhone(phone))
	if err != nil {
		return nil, err
	}

	profile := &ports.UserProfile{User: user}
	if user.ClientAccountID != nil {
		if profile.ClientAccount, err = s.accountRepo.GetByID(ctx, *user.ClientAccountID); err != nil {
			return nil, storeErr("get client account", err)
		}
	}
	if user.MerchantAccountID != nil {
		if profile.MerchantAccount, err = s.accountRepo.GetByID(ctx, *user.MerchantAccountID); err != nil {
			return nil, storeErr("get merchant account", err)
		}
	}
	for _, acc := range []*domain.Account{profile.ClientAccount, profile.MerchantAccount} {
		if acc != nil {
			acc.ClearOTP(acc.UpdatedAt)
		}
	}
	return profile, nil
}

func linkedAccounts(u *domain.User) []uuid.UUID {
	var ids []uuid.UUID
	if u.ClientAccountID != nil {
		ids = append(ids, *u.ClientAccountID)
	}
	if u.MerchantAccountID != nil {
		ids = append(ids, *u.MerchantAccountID)
	}
	return ids
}
