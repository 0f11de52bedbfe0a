package ports

import (
	"context"
	"time"

	"mobile-money-ledger/internal/core/domain"

	"github.com/google/uuid"
)

// Notifier delivers short text messages to a phone number.
type Notifier interface {
	Send(ctx context.Context, phone, message string) error
}

// HashService hashes short secrets such as one-time codes.
type HashService interface {
	Hash(secret string) (string, error)
	Verify(secret, encodedHash string) (bool, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(phone string, role string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// Caller roles carried in tokens.
const (
	RoleUser     = "user"
	RoleOperator = "operator"
)

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	Phone string
	Role  string
}

// IdempotencyCache is the Redis-layer idempotency store for fund movements.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Claim atomically reserves key. Returns false if it is already held.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// RateLimitStore counts attempts in fixed windows.
type RateLimitStore interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error)
}

// RateLimitResult holds the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   int64 // Unix timestamp
}

// Outcome labels passed to Metrics.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics records ledger activity.
type Metrics interface {
	ObserveMovement(kind domain.EntryKind, outcome string, amount int64)
	ObserveActivation(outcome string)
	ObserveNotification(outcome string)
}

// --- Service Ports (Business Logic) ---

// AccountService drives the account activation state machine.
type AccountService interface {
	Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error)
	IssueAccount(ctx context.Context, userID uuid.UUID, t domain.AccountType) (*domain.Account, error)
	ValidateOtp(ctx context.Context, phone, code string) (*domain.Account, error)
	ResendOtp(ctx context.Context, phone string) error
	RequestLoginOtp(ctx context.Context, phone string) error
	Login(ctx context.Context, phone, code string) (*domain.Account, error)
}

// RegisterRequest holds input for identity registration.
type RegisterRequest struct {
	Phone       string
	DisplayName string
	ExternalID  string
}

// RegisterResponse holds the identity and its pending client account.
type RegisterResponse struct {
	User    *domain.User
	Account *domain.Account
}

// TransferService moves funds between two accounts atomically.
type TransferService interface {
	Execute(ctx context.Context, req TransferRequest) (*TransferResult, error)
}

// TransferRequest holds validated input for a direct transfer.
type TransferRequest struct {
	SourceID      uuid.UUID
	DestinationID uuid.UUID
	Amount        int64
	Kind          domain.EntryKind // defaults to TRANSFER
	Memo          *string
}

// TransferResult holds the ledger entry and both accounts after the move.
type TransferResult struct {
	Entry       *domain.LedgerEntry
	Source      *domain.Account
	Destination *domain.Account
}

// PaymentService orchestrates phone-addressed fund movements.
type PaymentService interface {
	Pay(ctx context.Context, req PayRequest) (*domain.PaymentReceipt, error)
	InternalTransfer(ctx context.Context, req InternalTransferRequest) (*domain.PaymentReceipt, error)
}

// PayRequest holds validated input for a client to merchant payment.
type PayRequest struct {
	ClientPhone    string
	MerchantPhone  string
	Amount         int64
	Memo           *string
	IdempotencyKey string
}

// InternalTransferRequest moves funds between a user's own accounts.
type InternalTransferRequest struct {
	Phone          string
	Amount         int64
	Direction      domain.Direction
	Memo           *string
	IdempotencyKey string
}

// MerchantService manages merchant account lifecycle.
type MerchantService interface {
	ProvisionMerchantAccount(ctx context.Context, phone string, merchantCode int) (*domain.Account, error)
	DeactivateMerchantAccount(ctx context.Context, phone string) (*domain.Account, error)
}

// ReportingService defines read-only balance and history queries.
type ReportingService interface {
	GetBalance(ctx context.Context, phone string, t domain.AccountType) (int64, error)
	GetTotalBalance(ctx context.Context, phone string) (int64, error)
	HasMerchantAccount(ctx context.Context, phone string) (bool, error)
	ListTransactionsForPhone(ctx context.Context, params HistoryParams) ([]domain.LedgerEntry, int64, error)
	LookupByPhone(ctx context.Context, phone string) (*UserProfile, error)
}

// UserProfile is an identity with the accounts it owns. Either account may
// be nil.
type UserProfile struct {
	User            *domain.User
	ClientAccount   *domain.Account
	MerchantAccount *domain.Account
}

// HistoryParams filters a user's ledger history.
type HistoryParams struct {
	Phone    string
	Kind     *domain.EntryKind
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// History paging bounds.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Normalized clamps paging to its bounds.
func (p HistoryParams) Normalized() HistoryParams {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}
