package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"mobile-money-ledger/config"
	"mobile-money-ledger/internal/adapter/storage/memory"
	"mobile-money-ledger/internal/core/domain"
	"mobile-money-ledger/internal/core/ports"
	"mobile-money-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// mockTx implements pgx.Tx for testing
type mockTx struct {
	pgx.Tx
	committed bool
}

func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error {
	m.committed = true
	return nil
}

func testLedgerConfig() config.LedgerConfig {
	return config.LedgerConfig{
		WelcomeCredit:    domain.WelcomeCredit,
		OTPTTL:           domain.DefaultOTPTTL,
		MinPaymentAmount: 100,
		IdempotencyTTL:   time.Hour,
		OTPAttempts:      5,
		OTPWindow:        5 * time.Minute,
	}
}

type sentSMS struct {
	Phone   string
	Message string
}

// captureNotifier records every message it is asked to send.
type captureNotifier struct {
	mu   sync.Mutex
	sent []sentSMS
	err  error
}

func (n *captureNotifier) Send(_ context.Context, phone, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentSMS{Phone: phone, Message: message})
	return n.err
}

func (n *captureNotifier) messages() []sentSMS {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentSMS(nil), n.sent...)
}

// countingMetrics tallies observations by label.
type countingMetrics struct {
	mu            sync.Mutex
	movements     map[string]int
	activations   map[string]int
	notifications map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{
		movements:     map[string]int{},
		activations:   map[string]int{},
		notifications: map[string]int{},
	}
}

func (m *countingMetrics) ObserveMovement(kind domain.EntryKind, outcome string, _ int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.movements[string(kind)+"/"+outcome]++
}

func (m *countingMetrics) ObserveActivation(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activations[outcome]++
}

func (m *countingMetrics) ObserveNotification(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications[outcome]++
}

func (m *countingMetrics) count(set map[string]int, key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return set[key]
}

// ledger wires every service over one in-memory store.
type ledger struct {
	store    *memory.Store
	accounts *memory.AccountRepo
	users    *memory.UserRepo
	entries  *memory.LedgerRepo
	notifier *captureNotifier
	metrics  *countingMetrics
	sms      *SMSDispatcher
	hasher   *Argon2HashService

	accountSvc   *AccountServiceImpl
	transferSvc  *TransferServiceImpl
	paymentSvc   *PaymentServiceImpl
	merchantSvc  *MerchantServiceImpl
	reportingSvc *ReportingServiceImpl
}

func newLedger(t *testing.T) *ledger {
	t.Helper()
	l := &ledger{
		store:    memory.NewStore(),
		notifier: &captureNotifier{},
		metrics:  newCountingMetrics(),
	}
	l.accounts = memory.NewAccountRepo(l.store)
	l.users = memory.NewUserRepo(l.store)
	l.entries = memory.NewLedgerRepo(l.store)
	l.sms = NewSMSDispatcher(l.notifier, l.metrics, time.Second, zerolog.Nop())

	cfg := testLedgerConfig()
	l.hasher = NewArgon2HashService(cheapArgon2())
	l.accountSvc = NewAccountService(l.users, l.accounts, l.store, l.hasher, nil, l.sms, l.metrics, cfg, zerolog.Nop())
	l.transferSvc = NewTransferService(l.accounts, l.entries, l.store, l.metrics, zerolog.Nop())
	l.paymentSvc = NewPaymentService(l.users, l.accounts, l.transferSvc, nil, l.sms, cfg, zerolog.Nop())
	l.merchantSvc = NewMerchantService(l.users, l.accounts, l.store, zerolog.Nop())
	l.reportingSvc = NewReportingService(l.users, l.accounts, l.entries)

	t.Cleanup(l.sms.Wait)
	return l
}

// register creates a user with a PENDING client account.
func (l *ledger) register(t *testing.T, phone string) *ports.RegisterResponse {
	t.Helper()
	resp, err := l.accountSvc.Register(context.Background(), ports.RegisterRequest{
		Phone:       phone,
		DisplayName: "Test User " + phone,
	})
	require.NoError(t, err)
	l.sms.Wait()
	return resp
}

var smsCode = regexp.MustCompile(`\b\d{6}\b`)

// otpFor returns the code in the latest SMS sent to phone. The store only
// keeps its hash.
func (l *ledger) otpFor(t *testing.T, phone string) string {
	t.Helper()
	l.sms.Wait()
	sent := l.notifier.messages()
	for i := len(sent) - 1; i >= 0; i-- {
		if sent[i].Phone == phone && strings.Contains(sent[i].Message, "code is") {
			code := smsCode.FindString(sent[i].Message)
			require.NotEmpty(t, code, "no code in %q", sent[i].Message)
			return code
		}
	}
	t.Fatalf("no sms sent to %s", phone)
	return ""
}

// activeClient registers phone, validates its OTP and sets the balance.
func (l *ledger) activeClient(t *testing.T, phone string, balance int64) *domain.Account {
	t.Helper()
	l.register(t, phone)
	acc, err := l.accountSvc.ValidateOtp(context.Background(), phone, l.otpFor(t, phone))
	require.NoError(t, err)
	return l.setBalance(t, acc.ID, balance)
}

// activeMerchant creates an active client and merchant account on phone.
func (l *ledger) activeMerchant(t *testing.T, phone string, code int, balance int64) *domain.Account {
	t.Helper()
	l.activeClient(t, phone, 0)
	acc, err := l.merchantSvc.ProvisionMerchantAccount(context.Background(), phone, code)
	require.NoError(t, err)
	return l.setBalance(t, acc.ID, balance)
}

func (l *ledger) setBalance(t *testing.T, id uuid.UUID, balance int64) *domain.Account {
	t.Helper()
	ctx := context.Background()
	tx, err := l.store.Begin(ctx)
	require.NoError(t, err)
	acc, err := l.accounts.GetByIDForUpdate(ctx, tx, id)
	require.NoError(t, err)
	require.NotNil(t, acc)
	acc.Balance = balance
	require.NoError(t, l.accounts.Update(ctx, tx, acc))
	require.NoError(t, tx.Commit(ctx))
	return acc
}

func (l *ledger) setStatus(t *testing.T, id uuid.UUID, status domain.AccountStatus) {
	t.Helper()
	ctx := context.Background()
	tx, err := l.store.Begin(ctx)
	require.NoError(t, err)
	acc, err := l.accounts.GetByIDForUpdate(ctx, tx, id)
	require.NoError(t, err)
	acc.Status = status
	require.NoError(t, l.accounts.Update(ctx, tx, acc))
	require.NoError(t, tx.Commit(ctx))
}

func (l *ledger) balance(t *testing.T, id uuid.UUID) int64 {
	t.Helper()
	acc, err := l.accounts.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, acc)
	return acc.Balance
}

func (l *ledger) entryCount(t *testing.T, ids ...uuid.UUID) int64 {
	t.Helper()
	params := ports.LedgerListParams{Page: 1, PageSize: 1000}
	for _, id := range ids {
		params.AccountIDs = append(params.AccountIDs, id)
	}
	_, total, err := l.entries.ListByAccounts(context.Background(), params)
	require.NoError(t, err)
	return total
}

func requireKind(t *testing.T, err error, kind apperror.Kind) {
	t.Helper()
	require.Error(t, err)
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr), "expected *AppError, got %T: %v", err, err)
	require.Equal(t, kind, appErr.Kind, appErr.Message)
}
