package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the stable, machine-readable category of a failure.
type Kind string

const (
	KindNotFound          Kind = "NOT_FOUND"
	KindAccountNotFound   Kind = "ACCOUNT_NOT_FOUND"
	KindDuplicateAccount  Kind = "DUPLICATE_ACCOUNT"
	KindAlreadyExists     Kind = "ALREADY_EXISTS"
	KindAlreadyActive     Kind = "ALREADY_ACTIVE"
	KindExpiredOTP        Kind = "EXPIRED_OTP"
	KindInvalidOTP        Kind = "INVALID_OTP"
	KindSelfTransfer      Kind = "SELF_TRANSFER"
	KindInvalidAmount     Kind = "INVALID_AMOUNT"
	KindAccountBlocked    Kind = "ACCOUNT_BLOCKED"
	KindAccountInactive   Kind = "ACCOUNT_INACTIVE"
	KindInsufficientFunds Kind = "INSUFFICIENT_FUNDS"
	KindNonZeroBalance    Kind = "NON_ZERO_BALANCE"
	KindCodeInUse         Kind = "CODE_IN_USE"
	KindDuplicateRequest  Kind = "DUPLICATE_REQUEST"
	KindValidation        Kind = "VALIDATION"
	KindUnauthorized      Kind = "UNAUTHORIZED"
	KindRateLimited       Kind = "RATE_LIMITED"
	KindPersistence       Kind = "PERSISTENCE"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Kind       Kind   `json:"error_kind"`
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(kind Kind, code string, message string, httpStatus int) *AppError {
	return &AppError{
		Kind:       kind,
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(kind Kind, code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Kind:       kind,
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// From normalises any error into an *AppError. Errors that are not already
// application errors become PERSISTENCE failures.
func From(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return ErrPersistence(err)
}

// KindOf returns the kind of err, or "" when err is nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return From(err).Kind
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// ---- Identity & accounts (ACC) ----

func ErrNotFound(entity string) *AppError {
	return New(KindNotFound, "ACC_001", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrAccountNotFound(message string) *AppError {
	return New(KindAccountNotFound, "ACC_002", message, http.StatusNotFound)
}

func ErrDuplicateAccount(accountType string) *AppError {
	return New(KindDuplicateAccount, "ACC_003",
		fmt.Sprintf("User already owns a %s account", accountType), http.StatusConflict)
}

func ErrAlreadyExists(message string) *AppError {
	return New(KindAlreadyExists, "ACC_004", message, http.StatusConflict)
}

func ErrAccountBlocked(message string) *AppError {
	return New(KindAccountBlocked, "ACC_005", message, http.StatusForbidden)
}

func ErrAccountInactive(message string) *AppError {
	return New(KindAccountInactive, "ACC_006", message, http.StatusUnprocessableEntity)
}

func ErrNonZeroBalance(balance string) *AppError {
	return New(KindNonZeroBalance, "ACC_007",
		fmt.Sprintf("Account balance must be zero before deactivation, current balance: %s", balance),
		http.StatusUnprocessableEntity)
}

func ErrCodeInUse(code int) *AppError {
	return New(KindCodeInUse, "ACC_008", fmt.Sprintf("Merchant code %d is already in use", code), http.StatusConflict)
}

// ---- Activation (OTP) ----

func ErrAlreadyActive() *AppError {
	return New(KindAlreadyActive, "OTP_001", "Account is already active", http.StatusConflict)
}

func ErrExpiredOTP() *AppError {
	return New(KindExpiredOTP, "OTP_002", "Verification code has expired", http.StatusGone)
}

func ErrInvalidOTP() *AppError {
	return New(KindInvalidOTP, "OTP_003", "Invalid verification code", http.StatusUnprocessableEntity)
}

// ---- Fund movements (TRF) ----

func ErrSelfTransfer() *AppError {
	return New(KindSelfTransfer, "TRF_001", "Source and destination accounts must differ", http.StatusBadRequest)
}

func ErrInvalidAmount(message string) *AppError {
	return New(KindInvalidAmount, "TRF_002", message, http.StatusBadRequest)
}

func ErrInsufficientFunds(balance string) *AppError {
	return New(KindInsufficientFunds, "TRF_003",
		fmt.Sprintf("Insufficient funds, current balance: %s", balance), http.StatusPaymentRequired)
}

func ErrDuplicateRequest() *AppError {
	return New(KindDuplicateRequest, "TRF_004", "A request with this idempotency key is already in progress", http.StatusConflict)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New(KindUnauthorized, "AUTH_001", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrForbidden() *AppError {
	return New(KindUnauthorized, "AUTH_002", "Operation not permitted for this caller", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New(KindRateLimited, "RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrPersistence(err error) *AppError {
	return Wrap(KindPersistence, "SYS_001", "Internal storage error", http.StatusInternalServerError, err)
}

// ErrConcurrentUpdate is returned when an optimistic version check loses.
func ErrConcurrentUpdate(err error) *AppError {
	return Wrap(KindPersistence, "SYS_002", "Account was modified concurrently, retry the operation", http.StatusConflict, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap(KindPersistence, "SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a VAL_001 validation error.
func Validation(message string) *AppError {
	return New(KindValidation, "VAL_001", message, http.StatusBadRequest)
}
