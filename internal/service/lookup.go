package service

import (
	"context"
	"fmt"

	"mobile-money-ledger/internal/core/domain"
	"mobile-money-ledger/internal/core/ports"
	"mobile-money-ledger/pkg/apperror"
)

// accountByPhone resolves the account of type t owned by phone.
// An unknown phone is NOT_FOUND; a known phone without that account type is
// ACCOUNT_NOT_FOUND.
func accountByPhone(
	ctx context.Context,
	userRepo ports.UserRepository,
	accountRepo ports.AccountRepository,
	phone string,
	t domain.AccountType,
) (*domain.Account, error) {
	acc, err := accountRepo.GetByPhoneAndType(ctx, phone, t)
	if err != nil {
		return nil, storeErr("find account", err)
	}
	if acc != nil {
		return acc, nil
	}

	user, err := userRepo.GetByPhone(ctx, phone)
	if err != nil {
		return nil, storeErr("find user", err)
	}
	if user == nil {
		return nil, apperror.ErrNotFound("user")
	}
	return nil, apperror.ErrAccountNotFound(fmt.Sprintf("No %s account for %s", t, phone))
}

// findUser loads the identity for phone or fails with NOT_FOUND.
func findUser(ctx context.Context, userRepo ports.UserRepository, phone string) (*domain.User, error) {
	user, err := userRepo.GetByPhone(ctx, phone)
	if err != nil {
		return nil, storeErr("find user", err)
	}
	if user == nil {
		return nil, apperror.ErrNotFound("user")
	}
	return user, nil
}
