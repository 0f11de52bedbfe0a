package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"mobile-money-ledger/internal/core/domain"
	"mobile-money-ledger/internal/core/ports"
	"mobile-money-ledger/internal/core/ports/mocks"
	"mobile-money-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// ==================== Pay ====================

func TestPaymentService_Pay_Success(t *testing.T) {
	l := newLedger(t)
	client := l.activeClient(t, phoneAlice, 10000)
	merchant := l.activeMerchant(t, phoneBob, 654321, 500)

	receipt, err := l.paymentSvc.Pay(context.Background(), ports.PayRequest{
		ClientPhone:   phoneAlice,
		MerchantPhone: phoneBob,
		Amount:        3000,
	})
	require.NoError(t, err)

	assert.Regexp(t, `^PAY_[0-9A-F]{8}$`, receipt.Reference)
	assert.Equal(t, domain.EntryKindPayment, receipt.Kind)
	assert.Equal(t, int64(3000), receipt.Amount)
	assert.Equal(t, "3000 FCFA", receipt.AmountDisplay)
	assert.Equal(t, int64(7000), receipt.NewClientBalance)
	assert.Equal(t, int64(3500), receipt.NewMerchantBalance)
	require.NotNil(t, receipt.MerchantCode)
	assert.Equal(t, 654321, *receipt.MerchantCode)
	assert.Equal(t, domain.ReceiptStatusCompleted, receipt.Status)
	assert.Equal(t, phoneAlice, receipt.ClientPhone)
	assert.Equal(t, phoneBob, receipt.MerchantPhone)

	assert.Equal(t, int64(7000), l.balance(t, client.ID))
	assert.Equal(t, int64(3500), l.balance(t, merchant.ID))

	l.sms.Wait()
	var confirmed bool
	for _, m := range l.notifier.messages() {
		if m.Phone == phoneAlice && strings.Contains(m.Message, receipt.Reference) && strings.Contains(m.Message, "7000 FCFA") {
			confirmed = true
		}
	}
	assert.True(t, confirmed, "client should receive a payment confirmation")
}

func TestPaymentService_Pay_BelowMinimum(t *testing.T) {
	l := newLedger(t)
	l.activeClient(t, phoneAlice, 10000)
	l.activeMerchant(t, phoneBob, 654321, 0)

	_, err := l.paymentSvc.Pay(context.Background(), ports.PayRequest{ClientPhone: phoneAlice, MerchantPhone: phoneBob, Amount: 99})
	requireKind(t, err, apperror.KindInvalidAmount)
	assert.Contains(t, err.Error(), "100 FCFA")
}

func TestPaymentService_Pay_Resolution(t *testing.T) {
	l := newLedger(t)
	l.activeClient(t, phoneAlice, 10000)
	l.activeClient(t, phoneBob, 0)
	ctx := context.Background()

	_, err := l.paymentSvc.Pay(ctx, ports.PayRequest{ClientPhone: phoneAlice, MerchantPhone: phoneCarol, Amount: 500})
	requireKind(t, err, apperror.KindNotFound)

	_, err = l.paymentSvc.Pay(ctx, ports.PayRequest{ClientPhone: phoneAlice, MerchantPhone: phoneBob, Amount: 500})
	requireKind(t, err, apperror.KindAccountNotFound)

	_, err = l.paymentSvc.Pay(ctx, ports.PayRequest{ClientPhone: "abc", MerchantPhone: phoneBob, Amount: 500})
	requireKind(t, err, apperror.KindValidation)
}

func TestPaymentService_Pay_InsufficientFunds(t *testing.T) {
	l := newLedger(t)
	client := l.activeClient(t, phoneAlice, 150)
	merchant := l.activeMerchant(t, phoneBob, 654321, 0)

	_, err := l.paymentSvc.Pay(context.Background(), ports.PayRequest{ClientPhone: phoneAlice, MerchantPhone: phoneBob, Amount: 200})
	requireKind(t, err, apperror.KindInsufficientFunds)

	assert.Equal(t, int64(150), l.balance(t, client.ID))
	assert.Zero(t, l.balance(t, merchant.ID))
}

// ==================== InternalTransfer ====================

func TestPaymentService_InternalTransfer_BothDirections(t *testing.T) {
	l := newLedger(t)
	merchant := l.activeMerchant(t, phoneAlice, 111111, 2000)
	client, err := l.accounts.GetByPhoneAndType(context.Background(), phoneAlice, domain.AccountTypeClient)
	require.NoError(t, err)
	l.setBalance(t, client.ID, 1000)

	receipt, err := l.paymentSvc.InternalTransfer(context.Background(), ports.InternalTransferRequest{
		Phone:     phoneAlice,
		Amount:    500,
		Direction: domain.DirectionToClient,
	})
	require.NoError(t, err)
	assert.Regexp(t, `^INT_CLI_[0-9A-F]{8}$`, receipt.Reference)
	assert.Equal(t, int64(1500), receipt.NewClientBalance)
	assert.Equal(t, int64(1500), receipt.NewMerchantBalance)

	receipt, err = l.paymentSvc.InternalTransfer(context.Background(), ports.InternalTransferRequest{
		Phone:     phoneAlice,
		Amount:    1200,
		Direction: domain.DirectionToMerchant,
	})
	require.NoError(t, err)
	assert.Regexp(t, `^INT_MAR_[0-9A-F]{8}$`, receipt.Reference)
	assert.Equal(t, int64(300), receipt.NewClientBalance)
	assert.Equal(t, int64(2700), receipt.NewMerchantBalance)

	assert.Equal(t, int64(300), l.balance(t, client.ID))
	assert.Equal(t, int64(2700), l.balance(t, merchant.ID))

	entries, total, err := l.reportingSvc.ListTransactionsForPhone(context.Background(), ports.HistoryParams{Phone: phoneAlice})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, entries, 2)
	require.NotNil(t, entries[0].Memo)
	assert.Equal(t, defaultInternalMemo, *entries[0].Memo)
}

func TestPaymentService_InternalTransfer_Validation(t *testing.T) {
	l := newLedger(t)
	l.activeClient(t, phoneAlice, 1000)
	ctx := context.Background()

	_, err := l.paymentSvc.InternalTransfer(ctx, ports.InternalTransferRequest{Phone: phoneAlice, Amount: 500, Direction: "SIDEWAYS"})
	requireKind(t, err, apperror.KindValidation)

	_, err = l.paymentSvc.InternalTransfer(ctx, ports.InternalTransferRequest{Phone: phoneAlice, Amount: 50, Direction: domain.DirectionToMerchant})
	requireKind(t, err, apperror.KindInvalidAmount)

	_, err = l.paymentSvc.InternalTransfer(ctx, ports.InternalTransferRequest{Phone: phoneAlice, Amount: 500, Direction: domain.DirectionToMerchant})
	requireKind(t, err, apperror.KindAccountNotFound)
}

// ==================== Idempotency ====================

type paymentTestDeps struct {
	svc         *PaymentServiceImpl
	userRepo    *mocks.MockUserRepository
	accountRepo *mocks.MockAccountRepository
	engine      *mocks.MockTransferService
	idempCache  *mocks.MockIdempotencyCache
}

func setupPaymentService(t *testing.T) *paymentTestDeps {
	ctrl := gomock.NewController(t)
	d := &paymentTestDeps{
		userRepo:    mocks.NewMockUserRepository(ctrl),
		accountRepo: mocks.NewMockAccountRepository(ctrl),
		engine:      mocks.NewMockTransferService(ctrl),
		idempCache:  mocks.NewMockIdempotencyCache(ctrl),
	}
	sms := NewSMSDispatcher(&captureNotifier{}, newCountingMetrics(), time.Second, zerolog.Nop())
	t.Cleanup(sms.Wait)
	d.svc = NewPaymentService(d.userRepo, d.accountRepo, d.engine, d.idempCache, sms, testLedgerConfig(), zerolog.Nop())
	return d
}

func TestPaymentService_Pay_ReplaysCachedReceipt(t *testing.T) {
	d := setupPaymentService(t)
	ctx := context.Background()

	cached := domain.PaymentReceipt{Reference: "PAY_ABCDEF12", Amount: 3000, Status: domain.ReceiptStatusCompleted}
	body, err := json.Marshal(cached)
	require.NoError(t, err)

	d.idempCache.EXPECT().Get(ctx, "pay:"+phoneAlice+":key-1").Return(body, nil)

	receipt, err := d.svc.Pay(ctx, ports.PayRequest{ClientPhone: phoneAlice, MerchantPhone: phoneBob, Amount: 3000, IdempotencyKey: "key-1"})
	require.NoError(t, err)
	assert.Equal(t, "PAY_ABCDEF12", receipt.Reference)
}

func TestPaymentService_Pay_InFlightKeyRejected(t *testing.T) {
	d := setupPaymentService(t)
	ctx := context.Background()
	key := "pay:" + phoneAlice + ":key-1"

	d.idempCache.EXPECT().Get(ctx, key).Return(nil, nil)
	d.idempCache.EXPECT().Claim(ctx, key, claimTTL).Return(false, nil)

	_, err := d.svc.Pay(ctx, ports.PayRequest{ClientPhone: phoneAlice, MerchantPhone: phoneBob, Amount: 3000, IdempotencyKey: "key-1"})
	requireKind(t, err, apperror.KindDuplicateRequest)
}

func TestPaymentService_Pay_CachesReceiptOnSuccess(t *testing.T) {
	d := setupPaymentService(t)
	ctx := context.Background()
	key := "pay:" + phoneAlice + ":key-1"
	code := 654321
	client := &domain.Account{ID: uuid.New(), Type: domain.AccountTypeClient, Balance: 7000}
	merchant := &domain.Account{ID: uuid.New(), Type: domain.AccountTypeMerchant, Balance: 3500, MerchantCode: &code}
	entry := domain.NewLedgerEntry(domain.EntryKindPayment, 3000, client.ID, merchant.ID, nil, time.Now())

	d.idempCache.EXPECT().Get(ctx, key).Return(nil, nil)
	d.idempCache.EXPECT().Claim(ctx, key, claimTTL).Return(true, nil)
	d.accountRepo.EXPECT().GetByPhoneAndType(ctx, phoneAlice, domain.AccountTypeClient).Return(client, nil)
	d.accountRepo.EXPECT().GetByPhoneAndType(ctx, phoneBob, domain.AccountTypeMerchant).Return(merchant, nil)
	d.engine.EXPECT().Execute(ctx, ports.TransferRequest{
		SourceID:      client.ID,
		DestinationID: merchant.ID,
		Amount:        3000,
		Kind:          domain.EntryKindPayment,
	}).Return(&ports.TransferResult{Entry: entry, Source: client, Destination: merchant}, nil)
	d.idempCache.EXPECT().Set(ctx, key, gomock.Any(), time.Hour).DoAndReturn(
		func(_ context.Context, _ string, value []byte, _ time.Duration) error {
			var r domain.PaymentReceipt
			require.NoError(t, json.Unmarshal(value, &r))
			assert.Equal(t, entry.Reference, r.Reference)
			return nil
		})
	d.idempCache.EXPECT().Release(ctx, key).Return(nil)

	receipt, err := d.svc.Pay(ctx, ports.PayRequest{ClientPhone: phoneAlice, MerchantPhone: phoneBob, Amount: 3000, IdempotencyKey: "key-1"})
	require.NoError(t, err)
	assert.Equal(t, entry.Reference, receipt.Reference)
	assert.Equal(t, int64(7000), receipt.NewClientBalance)
}

func TestPaymentService_Pay_ReleasesClaimOnFailure(t *testing.T) {
	d := setupPaymentService(t)
	ctx := context.Background()
	key := "pay:" + phoneAlice + ":key-1"
	client := &domain.Account{ID: uuid.New(), Type: domain.AccountTypeClient, Balance: 10}
	merchant := &domain.Account{ID: uuid.New(), Type: domain.AccountTypeMerchant}

	d.idempCache.EXPECT().Get(ctx, key).Return(nil, nil)
	d.idempCache.EXPECT().Claim(ctx, key, claimTTL).Return(true, nil)
	d.accountRepo.EXPECT().GetByPhoneAndType(ctx, phoneAlice, domain.AccountTypeClient).Return(client, nil)
	d.accountRepo.EXPECT().GetByPhoneAndType(ctx, phoneBob, domain.AccountTypeMerchant).Return(merchant, nil)
	d.engine.EXPECT().Execute(ctx, gomock.Any()).Return(nil, apperror.ErrInsufficientFunds("10 FCFA"))
	d.idempCache.EXPECT().Release(ctx, key).Return(nil)

	_, err := d.svc.Pay(ctx, ports.PayRequest{ClientPhone: phoneAlice, MerchantPhone: phoneBob, Amount: 3000, IdempotencyKey: "key-1"})
	requireKind(t, err, apperror.KindInsufficientFunds)
}

func TestPaymentService_Pay_CacheOutageDegrades(t *testing.T) {
	d := setupPaymentService(t)
	ctx := context.Background()
	key := "pay:" + phoneAlice + ":key-1"

	d.idempCache.EXPECT().Get(ctx, key).Return(nil, errors.New("redis down"))
	d.idempCache.EXPECT().Claim(ctx, key, claimTTL).Return(false, errors.New("redis down"))
	d.accountRepo.EXPECT().GetByPhoneAndType(ctx, phoneAlice, domain.AccountTypeClient).Return(nil, nil)
	d.userRepo.EXPECT().GetByPhone(ctx, phoneAlice).Return(nil, nil)

	_, err := d.svc.Pay(ctx, ports.PayRequest{ClientPhone: phoneAlice, MerchantPhone: phoneBob, Amount: 3000, IdempotencyKey: "key-1"})
	requireKind(t, err, apperror.KindNotFound)
}
