package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mobile-money-ledger/internal/core/domain"
	"mobile-money-ledger/internal/core/ports"
	"mobile-money-ledger/pkg/apperror"

	"github.com/rs/zerolog"
)

// MerchantServiceImpl implements ports.MerchantService.
type MerchantServiceImpl struct {
	userRepo    ports.UserRepository
	accountRepo ports.AccountRepository
	transactor  ports.DBTransactor
	now         func() time.Time
	log         zerolog.Logger
}

// NewMerchantService creates a new MerchantServiceImpl.
func NewMerchantService(
	userRepo ports.UserRepository,
	accountRepo ports.AccountRepository,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *MerchantServiceImpl {
	return &MerchantServiceImpl{
		userRepo:    userRepo,
		accountRepo: accountRepo,
		transactor:  transactor,
		now:         func() time.Time { return time.Now().UTC() },
		log:         log,
	}
}

// ProvisionMerchantAccount opens an ACTIVE merchant account for a phone that
// already holds an ACTIVE client account.
func (s *MerchantServiceImpl) ProvisionMerchantAccount(ctx context.Context, phone string, merchantCode int) (*domain.Account, error) {
	phone = domain.NormalizePhone(phone)
	owner, err := findUser(ctx, s.userRepo, phone)
	if err != nil {
		return nil, err
	}
	if owner.ClientAccountID == nil {
		return nil, apperror.ErrAccountNotFound("A client account is required before opening a merchant account")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	user, err := s.userRepo.GetByIDForUpdate(ctx, dbTx, owner.ID)
	if err != nil {
		return nil, storeErr("lock user", err)
	}
	if user == nil {
		return nil, apperror.ErrNotFound("user")
	}
	if user.MerchantAccountID != nil {
		return nil, apperror.ErrAlreadyExists("A merchant account already exists for this phone number")
	}

	client, err := s.accountRepo.GetByIDForUpdate(ctx, dbTx, *user.ClientAccountID)
	if err != nil {
		return nil, storeErr("lock client account", err)
	}
	if client == nil {
		return nil, apperror.ErrAccountNotFound("Client account not found")
	}
	if client.Status == domain.AccountStatusBlocked {
		return nil, apperror.ErrAccountBlocked("Client account is blocked")
	}
	if !client.IsActive() {
		return nil, apperror.ErrAccountInactive("Client account must be activated before opening a merchant account")
	}

	if !domain.ValidMerchantCode(merchantCode) {
		return nil, apperror.Validation(fmt.Sprintf("merchant code must be between %d and %d", domain.MerchantCodeMin, domain.MerchantCodeMax))
	}
	taken, err := s.accountRepo.GetByMerchantCode(ctx, merchantCode)
	if err != nil {
		return nil, storeErr("check merchant code", err)
	}
	if taken != nil {
		return nil, apperror.ErrCodeInUse(merchantCode)
	}

	account := domain.NewMerchantAccount(merchantCode, s.now())
	if err := s.accountRepo.Create(ctx, dbTx, account); err != nil {
		if errors.Is(err, ports.ErrDuplicate) {
			return nil, apperror.ErrCodeInUse(merchantCode)
		}
		return nil, storeErr("create merchant account", err)
	}
	if err := s.userRepo.LinkAccount(ctx, dbTx, user.ID, domain.AccountTypeMerchant, account.ID); err != nil {
		if errors.Is(err, ports.ErrDuplicate) {
			return nil, apperror.ErrAlreadyExists("A merchant account already exists for this phone number")
		}
		return nil, storeErr("link merchant account", err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		if errors.Is(err, ports.ErrDuplicate) {
			return nil, apperror.ErrCodeInUse(merchantCode)
		}
		return nil, storeErr("commit tx", err)
	}

	s.log.Info().
		Str("account_id", account.ID.String()).
		Int("merchant_code", merchantCode).
		Msg("merchant account provisioned")

	return account, nil
}

// DeactivateMerchantAccount closes the merchant account of phone. The
// balance must be exactly zero.
func (s *MerchantServiceImpl) DeactivateMerchantAccount(ctx context.Context, phone string) (*domain.Account, error) {
	phone = domain.NormalizePhone(phone)
	user, err := findUser(ctx, s.userRepo, phone)
	if err != nil {
		return nil, err
	}
	if user.MerchantAccountID == nil {
		return nil, apperror.ErrAccountNotFound("No merchant account for this phone number")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	account, err := s.accountRepo.GetByIDForUpdate(ctx, dbTx, *user.MerchantAccountID)
	if err != nil {
		return nil, storeErr("lock merchant account", err)
	}
	if account == nil {
		return nil, apperror.ErrAccountNotFound("No merchant account for this phone number")
	}
	if account.Status == domain.AccountStatusDeactivated {
		return nil, apperror.ErrAccountInactive("Merchant account is already deactivated")
	}
	if account.Balance != 0 {
		return nil, apperror.ErrNonZeroBalance(domain.FormatAmount(account.Balance))
	}

	account.Deactivate(s.now())
	if err := s.accountRepo.Update(ctx, dbTx, account); err != nil {
		return nil, storeErr("deactivate merchant account", err)
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, storeErr("commit tx", err)
	}

	s.log.Info().Str("account_id", account.ID.String()).Msg("merchant account deactivated")
	return account, nil
}
