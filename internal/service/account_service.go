package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mobile-money-ledger/config"
	"mobile-money-ledger/internal/core/domain"
	"mobile-money-ledger/internal/core/ports"
	"mobile-money-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// AccountServiceImpl implements ports.AccountService.
type AccountServiceImpl struct {
	userRepo    ports.UserRepository
	accountRepo ports.AccountRepository
	transactor  ports.DBTransactor
	hasher      ports.HashService
	limiter     ports.RateLimitStore
	sms         *SMSDispatcher
	metrics     ports.Metrics
	cfg         config.LedgerConfig
	now         func() time.Time
	log         zerolog.Logger
}

// NewAccountService creates a new AccountServiceImpl. limiter may be nil,
// in which case OTP attempts are not throttled.
func NewAccountService(
	userRepo ports.UserRepository,
	accountRepo ports.AccountRepository,
	transactor ports.DBTransactor,
	hasher ports.HashService,
	limiter ports.RateLimitStore,
	sms *SMSDispatcher,
	metrics ports.Metrics,
	cfg config.LedgerConfig,
	log zerolog.Logger,
) *AccountServiceImpl {
	return &AccountServiceImpl{
		userRepo:    userRepo,
		accountRepo: accountRepo,
		transactor:  transactor,
		hasher:      hasher,
		limiter:     limiter,
		sms:         sms,
		metrics:     metrics,
		cfg:         cfg,
		now:         func() time.Time { return time.Now().UTC() },
		log:         log,
	}
}

// Register creates an identity and its PENDING client account in one
// transaction, then sends the activation code.
func (s *AccountServiceImpl) Register(ctx context.Context, req ports.RegisterRequest) (*ports.RegisterResponse, error) {
	phone := domain.NormalizePhone(req.Phone)
	if !domain.ValidPhone(phone) {
		return nil, apperror.Validation("phone must be in E.164 format, e.g. +221770000000")
	}
	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		return nil, apperror.Validation("display name is required")
	}

	existing, err := s.userRepo.GetByPhone(ctx, phone)
	if err != nil {
		return nil, storeErr("check phone", err)
	}
	if existing != nil {
		return nil, apperror.ErrAlreadyExists("A user with this phone number already exists")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	now := s.now()
	user := &domain.User{
		ID:          uuid.New(),
		ExternalID:  strings.TrimSpace(req.ExternalID),
		Phone:       phone,
		DisplayName: name,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.userRepo.Create(ctx, dbTx, user); err != nil {
		if errors.Is(err, ports.ErrDuplicate) {
			return nil, apperror.ErrAlreadyExists("A user with this phone number already exists")
		}
		return nil, storeErr("create user", err)
	}

	account, code, err := s.openAccount(ctx, dbTx, user, domain.AccountTypeClient)
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		if errors.Is(err, ports.ErrDuplicate) {
			return nil, apperror.ErrAlreadyExists("A user with this phone number already exists")
		}
		return nil, storeErr("commit tx", err)
	}

	s.sms.Dispatch(phone, otpMessage(code, s.cfg.OTPTTL))

	s.log.Info().
		Str("user_id", user.ID.String()).
		Str("account_id", account.ID.String()).
		Msg("user registered, activation code sent")

	return &ports.RegisterResponse{User: user, Account: account}, nil
}

// IssueAccount creates a PENDING account of type t for an existing user.
// Only CLIENT accounts are issued here; merchant accounts come from
// MerchantService.ProvisionMerchantAccount.
func (s *AccountServiceImpl) IssueAccount(ctx context.Context, userID uuid.UUID, t domain.AccountType) (*domain.Account, error) {
	if !t.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("unknown account type %q", t))
	}
	if t != domain.AccountTypeClient {
		return nil, apperror.Validation("merchant accounts are provisioned from an active client account")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	user, err := s.userRepo.GetByIDForUpdate(ctx, dbTx, userID)
	if err != nil {
		return nil, storeErr("lock user", err)
	}
	if user == nil {
		return nil, apperror.ErrNotFound("user")
	}

	account, code, err := s.openAccount(ctx, dbTx, user, t)
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, storeErr("commit tx", err)
	}

	s.sms.Dispatch(user.Phone, otpMessage(code, s.cfg.OTPTTL))

	s.log.Info().
		Str("user_id", user.ID.String()).
		Str("account_id", account.ID.String()).
		Str("type", string(t)).
		Msg("account issued")

	return account, nil
}

// openAccount creates a PENDING account with a fresh OTP and links it to user.
// user must be locked by dbTx.
func (s *AccountServiceImpl) openAccount(ctx context.Context, dbTx pgx.Tx, user *domain.User, t domain.AccountType) (*domain.Account, string, error) {
	if user.AccountID(t) != nil {
		return nil, "", apperror.ErrDuplicateAccount(string(t))
	}

	now := s.now()
	account := domain.NewAccount(t, now)
	code, err := s.issueCode(account, now)
	if err != nil {
		return nil, "", err
	}

	if err := s.accountRepo.Create(ctx, dbTx, account); err != nil {
		return nil, "", storeErr("create account", err)
	}
	if err := s.userRepo.LinkAccount(ctx, dbTx, user.ID, t, account.ID); err != nil {
		if errors.Is(err, ports.ErrDuplicate) {
			return nil, "", apperror.ErrDuplicateAccount(string(t))
		}
		return nil, "", storeErr("link account", err)
	}
	user.LinkAccount(t, account.ID)

	return account, code, nil
}

// ValidateOtp activates the caller's PENDING client account and grants the
// welcome credit. The status check runs under the row lock, so concurrent
// submissions of the same code credit the account once.
func (s *AccountServiceImpl) ValidateOtp(ctx context.Context, phone, code string) (account *domain.Account, err error) {
	defer func() { s.observeActivation(err) }()

	phone = domain.NormalizePhone(phone)
	if err := s.allowAttempt(ctx, "otp:validate:"+phone); err != nil {
		return nil, err
	}

	accountID, err := s.clientAccountID(ctx, phone)
	if err != nil {
		return nil, err
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	account, err = s.accountRepo.GetByIDForUpdate(ctx, dbTx, accountID)
	if err != nil {
		return nil, storeErr("lock account", err)
	}
	if account == nil {
		return nil, apperror.ErrNotFound("client account")
	}

	now := s.now()
	switch {
	case account.Status == domain.AccountStatusActive:
		return nil, apperror.ErrAlreadyActive()
	case account.Status == domain.AccountStatusBlocked:
		return nil, apperror.ErrAccountBlocked("Account is blocked")
	case account.Status != domain.AccountStatusPending:
		return nil, apperror.ErrAccountInactive("Account is not awaiting activation")
	}
	if err := s.checkCode(account, code, now); err != nil {
		return nil, err
	}

	account.Activate(now, s.cfg.WelcomeCredit)
	if err := s.accountRepo.Update(ctx, dbTx, account); err != nil {
		return nil, storeErr("activate account", err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, storeErr("commit tx", err)
	}

	s.log.Info().
		Str("account_id", account.ID.String()).
		Int64("balance", account.Balance).
		Msg("account activated")

	return account, nil
}

// ResendOtp replaces the code of a PENDING client account and sends it again.
func (s *AccountServiceImpl) ResendOtp(ctx context.Context, phone string) error {
	phone = domain.NormalizePhone(phone)
	if err := s.allowAttempt(ctx, "otp:resend:"+phone); err != nil {
		return err
	}

	accountID, err := s.clientAccountID(ctx, phone)
	if err != nil {
		return err
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.ErrPersistence(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	account, err := s.accountRepo.GetByIDForUpdate(ctx, dbTx, accountID)
	if err != nil {
		return storeErr("lock account", err)
	}
	if account == nil {
		return apperror.ErrNotFound("client account")
	}

	switch account.Status {
	case domain.AccountStatusPending:
	case domain.AccountStatusActive:
		return apperror.ErrAlreadyActive()
	case domain.AccountStatusBlocked:
		return apperror.ErrAccountBlocked("Account is blocked")
	default:
		return apperror.ErrAccountInactive("Account is not awaiting activation")
	}

	code, err := s.issueCode(account, s.now())
	if err != nil {
		return err
	}

	if err := s.accountRepo.Update(ctx, dbTx, account); err != nil {
		return storeErr("reissue otp", err)
	}
	if err := dbTx.Commit(ctx); err != nil {
		return storeErr("commit tx", err)
	}

	s.sms.Dispatch(phone, otpMessage(code, s.cfg.OTPTTL))

	s.log.Info().Str("account_id", account.ID.String()).Msg("activation code re-issued")
	return nil
}

func (s *AccountServiceImpl) clientAccountID(ctx context.Context, phone string) (uuid.UUID, error) {
	user, err := findUser(ctx, s.userRepo, phone)
	if err != nil {
		return uuid.Nil, err
	}
	if user.ClientAccountID == nil {
		return uuid.Nil, apperror.ErrNotFound("client account")
	}
	return *user.ClientAccountID, nil
}

// allowAttempt enforces the per-phone OTP attempt window. A limiter outage
// lets the attempt through.
func (s *AccountServiceImpl) allowAttempt(ctx context.Context, key string) error {
	if s.limiter == nil || s.cfg.OTPAttempts <= 0 {
		return nil
	}
	res, err := s.limiter.Allow(ctx, key, int64(s.cfg.OTPAttempts), s.cfg.OTPWindow)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("otp rate limiter unavailable, allowing attempt")
		return nil
	}
	if !res.Allowed {
		return apperror.ErrRateLimitExceeded()
	}
	return nil
}

func (s *AccountServiceImpl) observeActivation(err error) {
	if err == nil {
		s.metrics.ObserveActivation(ports.OutcomeSuccess)
		return
	}
	s.metrics.ObserveActivation(strings.ToLower(string(apperror.KindOf(err))))
}

// RequestLoginOtp sends a sign-in code to the owner of an ACTIVE client
// account. The code is stored hashed on the account until Login uses it.
func (s *AccountServiceImpl) RequestLoginOtp(ctx context.Context, phone string) error {
	phone = domain.NormalizePhone(phone)
	if err := s.allowAttempt(ctx, "otp:login-request:"+phone); err != nil {
		return err
	}

	accountID, err := s.clientAccountID(ctx, phone)
	if err != nil {
		return err
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.ErrPersistence(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	account, err := s.accountRepo.GetByIDForUpdate(ctx, dbTx, accountID)
	if err != nil {
		return storeErr("lock account", err)
	}
	if account == nil {
		return apperror.ErrNotFound("client account")
	}
	if err := checkCanSignIn(account); err != nil {
		return err
	}

	code, err := s.issueCode(account, s.now())
	if err != nil {
		return err
	}
	if err := s.accountRepo.Update(ctx, dbTx, account); err != nil {
		return storeErr("store login code", err)
	}
	if err := dbTx.Commit(ctx); err != nil {
		return storeErr("commit tx", err)
	}

	s.sms.Dispatch(phone, loginMessage(code, s.cfg.OTPTTL))

	s.log.Info().Str("account_id", account.ID.String()).Msg("sign-in code issued")
	return nil
}

// Login consumes a sign-in code issued by RequestLoginOtp. The code is
// cleared under the row lock, so it signs in at most once.
func (s *AccountServiceImpl) Login(ctx context.Context, phone, code string) (*domain.Account, error) {
	phone = domain.NormalizePhone(phone)
	if err := s.allowAttempt(ctx, "otp:login:"+phone); err != nil {
		return nil, err
	}

	accountID, err := s.clientAccountID(ctx, phone)
	if err != nil {
		return nil, err
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	account, err := s.accountRepo.GetByIDForUpdate(ctx, dbTx, accountID)
	if err != nil {
		return nil, storeErr("lock account", err)
	}
	if account == nil {
		return nil, apperror.ErrNotFound("client account")
	}
	if err := checkCanSignIn(account); err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.checkCode(account, code, now); err != nil {
		return nil, err
	}

	account.ClearOTP(now)
	if err := s.accountRepo.Update(ctx, dbTx, account); err != nil {
		return nil, storeErr("consume login code", err)
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, storeErr("commit tx", err)
	}

	s.log.Info().Str("account_id", account.ID.String()).Msg("signed in")
	return account, nil
}

func checkCanSignIn(a *domain.Account) error {
	switch a.Status {
	case domain.AccountStatusActive:
		return nil
	case domain.AccountStatusBlocked:
		return apperror.ErrAccountBlocked("Account is blocked")
	case domain.AccountStatusPending:
		return apperror.ErrAccountInactive("Account is not activated yet; validate the activation code first")
	default:
		return apperror.ErrAccountInactive("Account is not active")
	}
}

// issueCode stores the hash of a fresh code on a and returns the plaintext
// for delivery.
func (s *AccountServiceImpl) issueCode(a *domain.Account, now time.Time) (string, error) {
	code, err := domain.GenerateOTP()
	if err != nil {
		return "", apperror.InternalError(err)
	}
	hash, err := s.hasher.Hash(code)
	if err != nil {
		return "", apperror.InternalError(fmt.Errorf("hash otp: %w", err))
	}
	a.IssueOTP(hash, now, s.cfg.OTPTTL)
	return code, nil
}

// checkCode verifies the submitted code exactly as typed against the stored
// hash.
func (s *AccountServiceImpl) checkCode(a *domain.Account, code string, now time.Time) error {
	if a.OTPExpired(now) || a.OTPHash == nil {
		return apperror.ErrExpiredOTP()
	}
	if len(code) != domain.OTPLength {
		return apperror.ErrInvalidOTP()
	}
	ok, err := s.hasher.Verify(code, *a.OTPHash)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("verify otp: %w", err))
	}
	if !ok {
		return apperror.ErrInvalidOTP()
	}
	return nil
}
