package domain

import (
	"math"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccount_IsActive(t *testing.T) {
	tests := []struct {
		name   string
		status AccountStatus
		want   bool
	}{
		{"pending", AccountStatusPending, false},
		{"active", AccountStatusActive, true},
		{"blocked", AccountStatusBlocked, false},
		{"deactivated", AccountStatusDeactivated, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Account{Status: tt.status}
			assert.Equal(t, tt.want, a.IsActive())
		})
	}
}

func TestNewAccount(t *testing.T) {
	now := time.Now()
	a := NewAccount(AccountTypeClient, now)

	assert.NotEqual(t, uuid.Nil, a.ID)
	assert.Equal(t, AccountStatusPending, a.Status)
	assert.Zero(t, a.Balance)
	assert.Equal(t, now, a.CreatedAt)
	assert.Nil(t, a.ActivatedAt)
}

func TestNewMerchantAccount(t *testing.T) {
	now := time.Now()
	a := NewMerchantAccount(123456, now)

	assert.Equal(t, AccountTypeMerchant, a.Type)
	assert.Equal(t, AccountStatusActive, a.Status)
	require.NotNil(t, a.MerchantCode)
	assert.Equal(t, 123456, *a.MerchantCode)
	require.NotNil(t, a.ActivatedAt)
	assert.Zero(t, a.Balance)
}

func TestAccount_DebitCredit(t *testing.T) {
	a := &Account{Balance: 100}

	assert.ErrorIs(t, a.Debit(200), ErrInsufficientBalance)
	assert.Equal(t, int64(100), a.Balance, "failed debit must not change balance")

	assert.ErrorIs(t, a.Debit(0), ErrNonPositiveAmount)
	assert.ErrorIs(t, a.Credit(-5), ErrNonPositiveAmount)

	require.NoError(t, a.Debit(100))
	assert.Zero(t, a.Balance)

	require.NoError(t, a.Credit(40))
	assert.Equal(t, int64(40), a.Balance)

	full := &Account{Balance: math.MaxInt64}
	assert.ErrorIs(t, full.Credit(1), ErrBalanceOverflow)
}

func TestAccount_OTPLifecycle(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	a := NewAccount(AccountTypeClient, now)

	assert.True(t, a.OTPExpired(now), "no otp counts as expired")

	a.IssueOTP("$argon2id$hash", now, DefaultOTPTTL)
	require.NotNil(t, a.OTPHash)
	assert.Equal(t, "$argon2id$hash", *a.OTPHash)
	assert.False(t, a.OTPExpired(now.Add(299*time.Second)))
	assert.False(t, a.OTPExpired(now.Add(300*time.Second)), "expiry instant is still valid")
	assert.True(t, a.OTPExpired(now.Add(301*time.Second)))

	later := now.Add(time.Minute)
	a.Activate(later, WelcomeCredit)
	assert.Equal(t, AccountStatusActive, a.Status)
	assert.Equal(t, int64(500000), a.Balance)
	assert.Nil(t, a.OTPHash)
	assert.Nil(t, a.OTPExpiresAt)
	require.NotNil(t, a.ActivatedAt)
	assert.Equal(t, later, *a.ActivatedAt)

	a.Deactivate(later)
	assert.Equal(t, AccountStatusDeactivated, a.Status)
}

func TestValidMerchantCode(t *testing.T) {
	assert.False(t, ValidMerchantCode(99999))
	assert.True(t, ValidMerchantCode(100000))
	assert.True(t, ValidMerchantCode(999999))
	assert.False(t, ValidMerchantCode(1000000))
}

func TestGenerateOTP(t *testing.T) {
	re := regexp.MustCompile(`^\d{6}$`)
	for i := 0; i < 50; i++ {
		code, err := GenerateOTP()
		require.NoError(t, err)
		assert.Regexp(t, re, code)
	}
}

func TestValidPhone(t *testing.T) {
	tests := []struct {
		phone string
		want  bool
	}{
		{"+221771234567", true},
		{"+12", true},
		{"221771234567", false},
		{"+0221771234567", false},
		{"+2217712345678901", false},
		{"+22177 123", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.phone, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidPhone(tt.phone))
		})
	}
	assert.Equal(t, "+221771234567", NormalizePhone("  +221771234567 "))
}

func TestUser_LinkAccount(t *testing.T) {
	u := &User{}
	clientID, merchantID := uuid.New(), uuid.New()

	assert.Nil(t, u.AccountID(AccountTypeClient))

	u.LinkAccount(AccountTypeClient, clientID)
	u.LinkAccount(AccountTypeMerchant, merchantID)

	assert.Equal(t, clientID, *u.AccountID(AccountTypeClient))
	assert.Equal(t, merchantID, *u.AccountID(AccountTypeMerchant))
	assert.Nil(t, u.AccountID("OTHER"))
}

func TestNewLedgerEntry(t *testing.T) {
	src, dst := uuid.New(), uuid.New()
	memo := "rent"
	now := time.Now()

	e := NewLedgerEntry(EntryKindInternalToMerchant, 700, src, dst, &memo, now)

	assert.Equal(t, uuid.Version(7), e.ID.Version())
	assert.Regexp(t, `^INT_MAR_[0-9A-F]{8}$`, e.Reference)
	assert.Equal(t, int64(700), e.Amount)
	assert.Equal(t, src, e.SourceAccountID)
	assert.Equal(t, dst, e.DestinationAccountID)
	assert.Equal(t, now, e.CreatedAt)
}

func TestAccount_ClearOTP(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	a := NewAccount(AccountTypeClient, now)
	a.Status = AccountStatusActive
	a.IssueOTP("$argon2id$hash", now, DefaultOTPTTL)

	later := now.Add(time.Minute)
	a.ClearOTP(later)
	assert.Nil(t, a.OTPHash)
	assert.True(t, a.OTPExpired(later))
	assert.Equal(t, AccountStatusActive, a.Status)
	assert.Equal(t, later, a.UpdatedAt)
}

func TestEntryKind_Valid(t *testing.T) {
	for _, k := range []EntryKind{EntryKindTransfer, EntryKindPayment, EntryKindInternalToClient, EntryKindInternalToMerchant} {
		assert.True(t, k.Valid(), k)
	}
	assert.False(t, EntryKind("REFUND").Valid())
	assert.False(t, EntryKind("").Valid())
	assert.False(t, EntryKind("payment").Valid())
}

func TestEntryKind_RefPrefix(t *testing.T) {
	assert.Equal(t, "TRF_", EntryKindTransfer.RefPrefix())
	assert.Equal(t, "PAY_", EntryKindPayment.RefPrefix())
	assert.Equal(t, "INT_CLI_", EntryKindInternalToClient.RefPrefix())
	assert.Equal(t, "INT_MAR_", EntryKindInternalToMerchant.RefPrefix())
}

func TestDirection(t *testing.T) {
	assert.True(t, DirectionToClient.Valid())
	assert.False(t, Direction("SIDEWAYS").Valid())
	assert.Equal(t, EntryKindInternalToClient, DirectionToClient.EntryKind())
	assert.Equal(t, EntryKindInternalToMerchant, DirectionToMerchant.EntryKind())
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "5000 FCFA", FormatAmount(5000))
	assert.Equal(t, "0 FCFA", FormatAmount(0))
}

func TestAmountFromDecimal(t *testing.T) {
	v, err := AmountFromDecimal(decimal.NewFromInt(3000))
	require.NoError(t, err)
	assert.Equal(t, int64(3000), v)

	_, err = AmountFromDecimal(decimal.RequireFromString("10.5"))
	assert.ErrorIs(t, err, ErrFractionalAmount)

	_, err = AmountFromDecimal(decimal.RequireFromString("100000000000000000000"))
	assert.ErrorIs(t, err, ErrAmountOutOfRange)
}
