package domain

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/google/uuid"
)

// AccountType distinguishes consumer and merchant accounts.
type AccountType string

const (
	AccountTypeClient   AccountType = "CLIENT"
	AccountTypeMerchant AccountType = "MERCHANT"
)

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	return t == AccountTypeClient || t == AccountTypeMerchant
}

// AccountStatus represents the lifecycle state of an account.
type AccountStatus string

const (
	AccountStatusPending     AccountStatus = "PENDING"
	AccountStatusActive      AccountStatus = "ACTIVE"
	AccountStatusBlocked     AccountStatus = "BLOCKED"
	AccountStatusDeactivated AccountStatus = "DEACTIVATED"
)

const (
	// WelcomeCredit is the balance granted on OTP activation, in FCFA.
	WelcomeCredit int64 = 500000
	// DefaultOTPTTL is how long an issued OTP stays valid.
	DefaultOTPTTL = 300 * time.Second
	// OTPLength is the number of digits in an OTP.
	OTPLength = 6

	MerchantCodeMin = 100000
	MerchantCodeMax = 999999
)

var (
	ErrNonPositiveAmount   = errors.New("amount must be positive")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrBalanceOverflow     = errors.New("balance overflow")
)

// Account is a balance-holding ledger account. Balance is in whole FCFA.
type Account struct {
	ID           uuid.UUID     `json:"id"`
	Type         AccountType   `json:"type"`
	Status       AccountStatus `json:"status"`
	Balance      int64         `json:"balance"`
	MerchantCode *int          `json:"merchant_code,omitempty"`
	OTPHash      *string       `json:"-"`
	OTPExpiresAt *time.Time    `json:"-"`
	ActivatedAt  *time.Time    `json:"activated_at,omitempty"`
	Version      int64         `json:"-"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// NewAccount returns a fresh PENDING account with a zero balance.
func NewAccount(t AccountType, now time.Time) *Account {
	return &Account{
		ID:        uuid.New(),
		Type:      t,
		Status:    AccountStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewMerchantAccount returns an ACTIVE merchant account with a zero balance.
// Merchant accounts skip the OTP step; the owner's client account was
// already verified.
func NewMerchantAccount(code int, now time.Time) *Account {
	a := NewAccount(AccountTypeMerchant, now)
	a.Status = AccountStatusActive
	a.MerchantCode = &code
	a.ActivatedAt = &now
	return a
}

// IsActive returns true if the account may send or receive funds.
func (a *Account) IsActive() bool {
	return a.Status == AccountStatusActive
}

// Debit removes amount from the balance. The balance never goes negative.
func (a *Account) Debit(amount int64) error {
	if amount <= 0 {
		return ErrNonPositiveAmount
	}
	if a.Balance < amount {
		return ErrInsufficientBalance
	}
	a.Balance -= amount
	return nil
}

// Credit adds amount to the balance.
func (a *Account) Credit(amount int64) error {
	if amount <= 0 {
		return ErrNonPositiveAmount
	}
	if a.Balance > math.MaxInt64-amount {
		return ErrBalanceOverflow
	}
	a.Balance += amount
	return nil
}

// IssueOTP stores the hash of a new one-time code valid for ttl. The
// plaintext code is never kept on the account.
func (a *Account) IssueOTP(hash string, now time.Time, ttl time.Duration) {
	exp := now.Add(ttl)
	a.OTPHash = &hash
	a.OTPExpiresAt = &exp
	a.UpdatedAt = now
}

// ClearOTP drops the pending code so it cannot be used twice.
func (a *Account) ClearOTP(now time.Time) {
	a.OTPHash = nil
	a.OTPExpiresAt = nil
	a.UpdatedAt = now
}

// OTPExpired reports whether the stored OTP is missing or past its expiry.
func (a *Account) OTPExpired(now time.Time) bool {
	return a.OTPExpiresAt == nil || now.After(*a.OTPExpiresAt)
}

// Activate moves a PENDING account to ACTIVE, grants credit and clears the OTP.
func (a *Account) Activate(now time.Time, credit int64) {
	a.Status = AccountStatusActive
	a.Balance = credit
	a.ClearOTP(now)
	a.ActivatedAt = &now
}

// Deactivate closes the account. Callers check the zero-balance rule.
func (a *Account) Deactivate(now time.Time) {
	a.Status = AccountStatusDeactivated
	a.UpdatedAt = now
}

// ValidMerchantCode reports whether code is a six-digit merchant code.
func ValidMerchantCode(code int) bool {
	return code >= MerchantCodeMin && code <= MerchantCodeMax
}

// GenerateOTP returns a uniformly random zero-padded six-digit code.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generating otp: %w", err)
	}
	return fmt.Sprintf("%0*d", OTPLength, n.Int64()), nil
}
