package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"mobile-money-ledger/config"
	"mobile-money-ledger/internal/core/domain"
	"mobile-money-ledger/internal/core/ports"
	"mobile-money-ledger/pkg/apperror"

	"github.com/rs/zerolog"
)

// claimTTL bounds how long an in-flight idempotency key stays reserved if
// the holder dies before releasing it.
const claimTTL = 30 * time.Second

const defaultInternalMemo = "Internal transfer"

// PaymentServiceImpl implements ports.PaymentService on top of the
// transfer engine.
type PaymentServiceImpl struct {
	userRepo    ports.UserRepository
	accountRepo ports.AccountRepository
	engine      ports.TransferService
	idempCache  ports.IdempotencyCache
	sms         *SMSDispatcher
	cfg         config.LedgerConfig
	log         zerolog.Logger
}

// NewPaymentService creates a new PaymentServiceImpl. idempCache may be nil,
// in which case idempotency keys are ignored.
func NewPaymentService(
	userRepo ports.UserRepository,
	accountRepo ports.AccountRepository,
	engine ports.TransferService,
	idempCache ports.IdempotencyCache,
	sms *SMSDispatcher,
	cfg config.LedgerConfig,
	log zerolog.Logger,
) *PaymentServiceImpl {
	return &PaymentServiceImpl{
		userRepo:    userRepo,
		accountRepo: accountRepo,
		engine:      engine,
		idempCache:  idempCache,
		sms:         sms,
		cfg:         cfg,
		log:         log,
	}
}

// Pay moves funds from the client account of req.ClientPhone to the
// merchant account of req.MerchantPhone.
func (s *PaymentServiceImpl) Pay(ctx context.Context, req ports.PayRequest) (*domain.PaymentReceipt, error) {
	if err := s.checkMinimum(req.Amount); err != nil {
		return nil, err
	}
	clientPhone := domain.NormalizePhone(req.ClientPhone)
	merchantPhone := domain.NormalizePhone(req.MerchantPhone)
	if !domain.ValidPhone(clientPhone) || !domain.ValidPhone(merchantPhone) {
		return nil, apperror.Validation("phone numbers must be in E.164 format")
	}

	scope := "pay:" + clientPhone
	return s.idempotent(ctx, scope, req.IdempotencyKey, func() (*domain.PaymentReceipt, error) {
		client, err := accountByPhone(ctx, s.userRepo, s.accountRepo, clientPhone, domain.AccountTypeClient)
		if err != nil {
			return nil, err
		}
		merchant, err := accountByPhone(ctx, s.userRepo, s.accountRepo, merchantPhone, domain.AccountTypeMerchant)
		if err != nil {
			return nil, err
		}

		res, err := s.engine.Execute(ctx, ports.TransferRequest{
			SourceID:      client.ID,
			DestinationID: merchant.ID,
			Amount:        req.Amount,
			Kind:          domain.EntryKindPayment,
			Memo:          req.Memo,
		})
		if err != nil {
			return nil, apperror.From(err)
		}

		receipt := buildReceipt(res, clientPhone, merchantPhone, res.Source, res.Destination)
		s.sms.Dispatch(clientPhone, paymentMessage(receipt))

		s.log.Info().
			Str("reference", receipt.Reference).
			Int64("amount", receipt.Amount).
			Msg("payment processed successfully")

		return receipt, nil
	})
}

// InternalTransfer moves funds between the client and merchant accounts of
// one phone number in req.Direction.
func (s *PaymentServiceImpl) InternalTransfer(ctx context.Context, req ports.InternalTransferRequest) (*domain.PaymentReceipt, error) {
	if err := s.checkMinimum(req.Amount); err != nil {
		return nil, err
	}
	if !req.Direction.Valid() {
		return nil, apperror.Validation("direction must be TO_CLIENT or TO_MERCHANT")
	}
	phone := domain.NormalizePhone(req.Phone)
	if !domain.ValidPhone(phone) {
		return nil, apperror.Validation("phone must be in E.164 format")
	}

	scope := "internal:" + phone
	return s.idempotent(ctx, scope, req.IdempotencyKey, func() (*domain.PaymentReceipt, error) {
		client, err := accountByPhone(ctx, s.userRepo, s.accountRepo, phone, domain.AccountTypeClient)
		if err != nil {
			return nil, err
		}
		merchant, err := accountByPhone(ctx, s.userRepo, s.accountRepo, phone, domain.AccountTypeMerchant)
		if err != nil {
			return nil, err
		}

		src, dst := client, merchant
		if req.Direction == domain.DirectionToClient {
			src, dst = merchant, client
		}

		memo := req.Memo
		if memo == nil {
			m := defaultInternalMemo
			memo = &m
		}

		res, err := s.engine.Execute(ctx, ports.TransferRequest{
			SourceID:      src.ID,
			DestinationID: dst.ID,
			Amount:        req.Amount,
			Kind:          req.Direction.EntryKind(),
			Memo:          memo,
		})
		if err != nil {
			return nil, apperror.From(err)
		}

		clientAfter, merchantAfter := res.Source, res.Destination
		if req.Direction == domain.DirectionToClient {
			clientAfter, merchantAfter = res.Destination, res.Source
		}
		receipt := buildReceipt(res, phone, phone, clientAfter, merchantAfter)

		s.log.Info().
			Str("reference", receipt.Reference).
			Str("direction", string(req.Direction)).
			Int64("amount", receipt.Amount).
			Msg("internal transfer processed successfully")

		return receipt, nil
	})
}

func (s *PaymentServiceImpl) checkMinimum(amount int64) error {
	if amount < s.cfg.MinPaymentAmount {
		return apperror.ErrInvalidAmount(fmt.Sprintf("Minimum amount is %s", domain.FormatAmount(s.cfg.MinPaymentAmount)))
	}
	return nil
}

// idempotent runs fn at most once per (scope, key). A completed receipt is
// replayed from the cache; a key still in flight is rejected. Cache outages
// degrade to running fn without protection.
func (s *PaymentServiceImpl) idempotent(
	ctx context.Context,
	scope, key string,
	fn func() (*domain.PaymentReceipt, error),
) (*domain.PaymentReceipt, error) {
	if key == "" || s.idempCache == nil {
		return fn()
	}
	cacheKey := scope + ":" + key

	cached, err := s.idempCache.Get(ctx, cacheKey)
	if err != nil {
		s.log.Warn().Err(err).Str("key", cacheKey).Msg("redis idempotency check failed, proceeding without replay")
	}
	if cached != nil {
		var receipt domain.PaymentReceipt
		if err := json.Unmarshal(cached, &receipt); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("unmarshal cached receipt: %w", err))
		}
		return &receipt, nil
	}

	claimed, err := s.idempCache.Claim(ctx, cacheKey, claimTTL)
	if err != nil {
		s.log.Warn().Err(err).Str("key", cacheKey).Msg("redis idempotency claim failed, proceeding unguarded")
		return fn()
	}
	if !claimed {
		return nil, apperror.ErrDuplicateRequest()
	}

	receipt, err := fn()
	if err != nil {
		if relErr := s.idempCache.Release(ctx, cacheKey); relErr != nil {
			s.log.Warn().Err(relErr).Str("key", cacheKey).Msg("failed to release idempotency claim")
		}
		return nil, err
	}

	body, err := json.Marshal(receipt)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("marshal receipt: %w", err))
	}
	if err := s.idempCache.Set(ctx, cacheKey, body, s.cfg.IdempotencyTTL); err != nil {
		s.log.Warn().Err(err).Str("key", cacheKey).Msg("failed to cache receipt in redis")
	}
	if err := s.idempCache.Release(ctx, cacheKey); err != nil {
		s.log.Warn().Err(err).Str("key", cacheKey).Msg("failed to release idempotency claim")
	}

	return receipt, nil
}

func buildReceipt(res *ports.TransferResult, clientPhone, merchantPhone string, client, merchant *domain.Account) *domain.PaymentReceipt {
	return &domain.PaymentReceipt{
		TransactionID:      res.Entry.ID,
		Reference:          res.Entry.Reference,
		Kind:               res.Entry.Kind,
		Amount:             res.Entry.Amount,
		AmountDisplay:      domain.FormatAmount(res.Entry.Amount),
		ClientPhone:        clientPhone,
		MerchantPhone:      merchantPhone,
		MerchantCode:       merchant.MerchantCode,
		NewClientBalance:   client.Balance,
		NewMerchantBalance: merchant.Balance,
		Status:             domain.ReceiptStatusCompleted,
		Timestamp:          res.Entry.CreatedAt,
	}
}
