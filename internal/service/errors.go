package service

import (
	"errors"
	"fmt"

	"mobile-money-ledger/internal/core/ports"
	"mobile-money-ledger/pkg/apperror"
)

// storeErr converts a repository failure into an AppError. Errors that are
// already AppErrors pass through.
func storeErr(op string, err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, ports.ErrStaleWrite) {
		return apperror.ErrConcurrentUpdate(fmt.Errorf("%s: %w", op, err))
	}
	return apperror.ErrPersistence(fmt.Errorf("%s: %w", op, err))
}
