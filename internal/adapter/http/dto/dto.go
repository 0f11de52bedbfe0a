package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// RegisterRequest is the request body for user registration.
type RegisterRequest struct {
	Phone       string `json:"phone" binding:"required,e164"`
	DisplayName string `json:"display_name" binding:"required,min=1,max=100"`
	ExternalID  string `json:"external_id,omitempty" binding:"omitempty,max=100,safe_id"`
}

// RegisterResponse is the response body for successful registration.
type RegisterResponse struct {
	UserID       string    `json:"user_id"`
	Phone        string    `json:"phone"`
	AccountID    string    `json:"account_id"`
	Status       string    `json:"status"`
	OTPExpiresAt time.Time `json:"otp_expires_at"`
}

// ValidateOtpRequest is the request body for account activation.
type ValidateOtpRequest struct {
	Phone string `json:"phone" binding:"required,e164"`
	Code  string `json:"code" binding:"required,len=6,numeric"`
}

// SessionResponse carries the caller's client account and a session token.
// Activation and sign-in both answer with it.
type SessionResponse struct {
	Account AccountResponse `json:"account"`
	Token   string          `json:"token"`
	Expiry  int64           `json:"expiry"` // Unix timestamp
}

// ResendOtpRequest is the request body for re-sending an activation code.
type ResendOtpRequest struct {
	Phone string `json:"phone" binding:"required,e164"`
}

// LoginOtpRequest asks for a sign-in code for an active account.
type LoginOtpRequest struct {
	Phone string `json:"phone" binding:"required,e164"`
}

// LoginRequest exchanges a sign-in code for a session token.
type LoginRequest struct {
	Phone string `json:"phone" binding:"required,e164"`
	Code  string `json:"code" binding:"required,len=6,numeric"`
}

// UserProfileResponse is an identity with the accounts it owns.
type UserProfileResponse struct {
	ID              string           `json:"id"`
	Phone           string           `json:"phone"`
	DisplayName     string           `json:"display_name"`
	ExternalID      string           `json:"external_id,omitempty"`
	ClientAccount   *AccountResponse `json:"client_account,omitempty"`
	MerchantAccount *AccountResponse `json:"merchant_account,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

// AccountResponse is the public view of an account.
type AccountResponse struct {
	ID             string     `json:"id"`
	Type           string     `json:"type"`
	Status         string     `json:"status"`
	Balance        int64      `json:"balance"`
	BalanceDisplay string     `json:"balance_display"`
	MerchantCode   *int       `json:"merchant_code,omitempty"`
	ActivatedAt    *time.Time `json:"activated_at,omitempty"`
}

// TransferRequest is the request body for an operator transfer.
type TransferRequest struct {
	SourceAccountID      string          `json:"source_account_id" binding:"required,uuid"`
	DestinationAccountID string          `json:"destination_account_id" binding:"required,uuid"`
	Amount               decimal.Decimal `json:"amount" binding:"fcfa"`
	Memo                 *string         `json:"memo,omitempty" binding:"omitempty,max=255"`
}

// TransferResponse is the response body for a completed transfer.
type TransferResponse struct {
	TransactionID string          `json:"transaction_id"`
	Reference     string          `json:"reference"`
	Kind          string          `json:"kind"`
	Amount        int64           `json:"amount"`
	Source        AccountResponse `json:"source"`
	Destination   AccountResponse `json:"destination"`
	CreatedAt     time.Time       `json:"created_at"`
}

// PayRequest is the request body for a client to merchant payment.
// The paying client is the authenticated caller.
type PayRequest struct {
	MerchantPhone string          `json:"merchant_phone" binding:"required,e164"`
	Amount        decimal.Decimal `json:"amount" binding:"fcfa"`
	Memo          *string         `json:"memo,omitempty" binding:"omitempty,max=255"`
}

// InternalTransferRequest is the request body for moving funds between the
// caller's own accounts.
type InternalTransferRequest struct {
	Amount    decimal.Decimal `json:"amount" binding:"fcfa"`
	Direction string          `json:"direction" binding:"required,oneof=TO_CLIENT TO_MERCHANT"`
	Memo      *string         `json:"memo,omitempty" binding:"omitempty,max=255"`
}

// ProvisionMerchantRequest is the request body for opening a merchant account.
type ProvisionMerchantRequest struct {
	MerchantCode int `json:"merchant_code" binding:"required,merchant_code"`
}

// BalanceResponse is the response for a single account balance.
type BalanceResponse struct {
	Type           string `json:"type"`
	Balance        int64  `json:"balance"`
	BalanceDisplay string `json:"balance_display"`
}

// TotalBalanceResponse sums every account of the caller.
type TotalBalanceResponse struct {
	Phone              string `json:"phone"`
	Total              int64  `json:"total"`
	TotalDisplay       string `json:"total_display"`
	HasMerchantAccount bool   `json:"has_merchant_account"`
}

// LedgerEntryResponse is the public view of a ledger entry.
type LedgerEntryResponse struct {
	ID                   string    `json:"id"`
	Reference            string    `json:"reference"`
	Kind                 string    `json:"kind"`
	Amount               int64     `json:"amount"`
	SourceAccountID      string    `json:"source_account_id"`
	DestinationAccountID string    `json:"destination_account_id"`
	Memo                 *string   `json:"memo,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
}

// TransactionListResponse wraps a paginated ledger listing.
type TransactionListResponse struct {
	Transactions []LedgerEntryResponse `json:"transactions"`
	Total        int64                 `json:"total"`
	Page         int                   `json:"page"`
	PageSize     int                   `json:"page_size"`
}
