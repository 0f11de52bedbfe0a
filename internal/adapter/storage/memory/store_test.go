package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"mobile-money-ledger/internal/core/domain"
	"mobile-money-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedUser(t *testing.T, s *Store, phone string, balance int64) (*domain.User, *domain.Account) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()

	acc := domain.NewAccount(domain.AccountTypeClient, now)
	acc.Status = domain.AccountStatusActive
	acc.Balance = balance
	user := &domain.User{ID: uuid.New(), Phone: phone, CreatedAt: now, UpdatedAt: now}

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, NewAccountRepo(s).Create(ctx, tx, acc))
	require.NoError(t, NewUserRepo(s).Create(ctx, tx, user))
	require.NoError(t, NewUserRepo(s).LinkAccount(ctx, tx, user.ID, domain.AccountTypeClient, acc.ID))
	require.NoError(t, tx.Commit(ctx))
	return user, acc
}

// lockCount reports how many rows have a holder or waiter.
func lockCount(s *Store) int {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	return len(s.locks)
}

func TestStore_CommitMakesWritesVisible(t *testing.T) {
	s := NewStore()
	user, acc := seedUser(t, s, "+221770000001", 500)
	ctx := context.Background()

	got, err := NewAccountRepo(s).GetByPhoneAndType(ctx, "+221770000001", domain.AccountTypeClient)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, acc.ID, got.ID)
	assert.Equal(t, int64(500), got.Balance)

	u, err := NewUserRepo(s).GetByPhone(ctx, user.Phone)
	require.NoError(t, err)
	assert.Equal(t, acc.ID, *u.ClientAccountID)

	none, err := NewAccountRepo(s).GetByPhoneAndType(ctx, "+221770000001", domain.AccountTypeMerchant)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestStore_RollbackDiscardsWrites(t *testing.T) {
	s := NewStore()
	_, acc := seedUser(t, s, "+221770000001", 500)
	ctx := context.Background()
	repo := NewAccountRepo(s)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	locked, err := repo.GetByIDForUpdate(ctx, tx, acc.ID)
	require.NoError(t, err)
	require.NoError(t, locked.Debit(200))
	require.NoError(t, repo.Update(ctx, tx, locked))
	require.NoError(t, NewLedgerRepo(s).Append(ctx, tx, domain.NewLedgerEntry(domain.EntryKindTransfer, 200, acc.ID, uuid.New(), nil, time.Now())))
	require.NoError(t, tx.Rollback(ctx))

	got, err := repo.GetByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), got.Balance)

	_, total, err := NewLedgerRepo(s).ListByAccounts(ctx, ports.LedgerListParams{AccountIDs: []uuid.UUID{acc.ID}, Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Zero(t, total)

	assert.ErrorIs(t, tx.Commit(ctx), pgx.ErrTxClosed)
	assert.ErrorIs(t, tx.Rollback(ctx), pgx.ErrTxClosed)
}

func TestStore_ForUpdateBlocksUntilRelease(t *testing.T) {
	s := NewStore()
	_, acc := seedUser(t, s, "+221770000001", 500)
	ctx := context.Background()
	repo := NewAccountRepo(s)

	tx1, _ := s.Begin(ctx)
	a1, err := repo.GetByIDForUpdate(ctx, tx1, acc.ID)
	require.NoError(t, err)

	acquired := make(chan int64)
	go func() {
		tx2, _ := s.Begin(ctx)
		a2, err := repo.GetByIDForUpdate(ctx, tx2, acc.ID)
		if err != nil {
			close(acquired)
			return
		}
		_ = tx2.Rollback(ctx)
		acquired <- a2.Balance
	}()

	select {
	case <-acquired:
		t.Fatal("second transaction acquired a held row lock")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, a1.Debit(100))
	require.NoError(t, repo.Update(ctx, tx1, a1))
	require.NoError(t, tx1.Commit(ctx))

	select {
	case bal := <-acquired:
		assert.Equal(t, int64(400), bal, "waiter must observe the committed balance")
	case <-time.After(time.Second):
		t.Fatal("lock was not released on commit")
	}
}

func TestStore_ForUpdateHonoursContext(t *testing.T) {
	s := NewStore()
	_, acc := seedUser(t, s, "+221770000001", 500)
	repo := NewAccountRepo(s)

	tx1, _ := s.Begin(context.Background())
	_, err := repo.GetByIDForUpdate(context.Background(), tx1, acc.ID)
	require.NoError(t, err)
	defer tx1.Rollback(context.Background()) //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	tx2, _ := s.Begin(ctx)
	_, err = repo.GetByIDForUpdate(ctx, tx2, acc.ID)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStore_UpdateVersionCheck(t *testing.T) {
	s := NewStore()
	_, acc := seedUser(t, s, "+221770000001", 500)
	ctx := context.Background()
	repo := NewAccountRepo(s)

	stale, err := repo.GetByID(ctx, acc.ID)
	require.NoError(t, err)

	tx, _ := s.Begin(ctx)
	fresh, err := repo.GetByIDForUpdate(ctx, tx, acc.ID)
	require.NoError(t, err)
	require.NoError(t, repo.Update(ctx, tx, fresh))
	require.NoError(t, tx.Commit(ctx))

	tx2, _ := s.Begin(ctx)
	defer tx2.Rollback(ctx) //nolint:errcheck
	assert.ErrorIs(t, repo.Update(ctx, tx2, stale), ports.ErrStaleWrite)
}

func TestStore_DuplicatePhone(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	users := NewUserRepo(s)

	seedUser(t, s, "+221770000001", 0)

	tx, _ := s.Begin(ctx)
	err := users.Create(ctx, tx, &domain.User{ID: uuid.New(), Phone: "+221770000001"})
	assert.ErrorIs(t, err, ports.ErrDuplicate)
	_ = tx.Rollback(ctx)
}

func TestStore_ConcurrentDuplicatePhoneRejectedAtCommit(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	users := NewUserRepo(s)

	tx1, _ := s.Begin(ctx)
	tx2, _ := s.Begin(ctx)
	require.NoError(t, users.Create(ctx, tx1, &domain.User{ID: uuid.New(), Phone: "+221770000009"}))
	require.NoError(t, users.Create(ctx, tx2, &domain.User{ID: uuid.New(), Phone: "+221770000009"}))

	require.NoError(t, tx1.Commit(ctx))
	assert.ErrorIs(t, tx2.Commit(ctx), ports.ErrDuplicate)
}

func TestStore_MerchantCodeUnique(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	repo := NewAccountRepo(s)
	code := 123456

	m1 := domain.NewAccount(domain.AccountTypeMerchant, time.Now())
	m1.MerchantCode = &code
	tx, _ := s.Begin(ctx)
	require.NoError(t, repo.Create(ctx, tx, m1))
	require.NoError(t, tx.Commit(ctx))

	got, err := repo.GetByMerchantCode(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, m1.ID, got.ID)

	m2 := domain.NewAccount(domain.AccountTypeMerchant, time.Now())
	m2.MerchantCode = &code
	tx2, _ := s.Begin(ctx)
	assert.ErrorIs(t, repo.Create(ctx, tx2, m2), ports.ErrDuplicate)
	_ = tx2.Rollback(ctx)
}

func TestStore_ForeignTxRejected(t *testing.T) {
	s1, s2 := NewStore(), NewStore()
	tx, _ := s1.Begin(context.Background())

	err := NewAccountRepo(s2).Create(context.Background(), tx, domain.NewAccount(domain.AccountTypeClient, time.Now()))
	assert.ErrorIs(t, err, errForeignTx)
}

func TestStore_ReturnsCopies(t *testing.T) {
	s := NewStore()
	_, acc := seedUser(t, s, "+221770000001", 500)
	repo := NewAccountRepo(s)

	got, _ := repo.GetByID(context.Background(), acc.ID)
	got.Balance = 1

	again, _ := repo.GetByID(context.Background(), acc.ID)
	assert.Equal(t, int64(500), again.Balance)
}

func TestLedgerRepo_ListByAccounts(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	ledger := NewLedgerRepo(s)
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	base := time.Now()

	tx, _ := s.Begin(ctx)
	for i := 0; i < 5; i++ {
		require.NoError(t, ledger.Append(ctx, tx, domain.NewLedgerEntry(domain.EntryKindTransfer, int64(100+i), a, b, nil, base.Add(time.Duration(i)*time.Second))))
	}
	require.NoError(t, ledger.Append(ctx, tx, domain.NewLedgerEntry(domain.EntryKindPayment, 999, b, c, nil, base)))
	require.NoError(t, tx.Commit(ctx))

	page1, total, err := ledger.ListByAccounts(ctx, ports.LedgerListParams{AccountIDs: []uuid.UUID{a}, Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, page1, 2)
	assert.Equal(t, int64(104), page1[0].Amount, "newest first")

	page3, _, err := ledger.ListByAccounts(ctx, ports.LedgerListParams{AccountIDs: []uuid.UUID{a}, Page: 3, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, page3, 1)

	beyond, _, err := ledger.ListByAccounts(ctx, ports.LedgerListParams{AccountIDs: []uuid.UUID{a}, Page: 9, PageSize: 2})
	require.NoError(t, err)
	assert.Empty(t, beyond)

	kind := domain.EntryKindPayment
	payments, total, err := ledger.ListByAccounts(ctx, ports.LedgerListParams{AccountIDs: []uuid.UUID{b}, Kind: &kind, Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, int64(999), payments[0].Amount)
}

func TestStore_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	s := NewStore()
	_, acc := seedUser(t, s, "+221770000001", 1000)
	ctx := context.Background()
	repo := NewAccountRepo(s)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tx, _ := s.Begin(ctx)
			defer tx.Rollback(ctx) //nolint:errcheck
			a, err := repo.GetByIDForUpdate(ctx, tx, acc.ID)
			if err != nil || a.Debit(100) != nil {
				return
			}
			if repo.Update(ctx, tx, a) == nil {
				_ = tx.Commit(ctx)
			}
		}()
	}
	wg.Wait()

	got, _ := repo.GetByID(ctx, acc.ID)
	assert.Equal(t, int64(0), got.Balance)
}

func TestStore_Health(t *testing.T) {
	s := NewStore()
	assert.Equal(t, "memory", s.Name())
	assert.NoError(t, s.Ping(context.Background()))
}

func TestLedgerRepo_RejectsTakenReference(t *testing.T) {
	s := NewStore()
	_, acc := seedUser(t, s, "+221770000001", 500)
	ctx := context.Background()
	ledger := NewLedgerRepo(s)

	first := domain.NewLedgerEntry(domain.EntryKindTransfer, 100, acc.ID, uuid.New(), nil, time.Now())
	first.Reference = "TRF_DEADBEEF"
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, ledger.Append(ctx, tx, first))

	staged := domain.NewLedgerEntry(domain.EntryKindTransfer, 100, acc.ID, uuid.New(), nil, time.Now())
	staged.Reference = first.Reference
	assert.ErrorIs(t, ledger.Append(ctx, tx, staged), ports.ErrDuplicate, "taken within the same tx")

	// The failed append leaves the tx usable.
	staged.Reference = "TRF_0000CAFE"
	require.NoError(t, ledger.Append(ctx, tx, staged))
	require.NoError(t, tx.Commit(ctx))

	tx, err = s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx) //nolint:errcheck
	again := domain.NewLedgerEntry(domain.EntryKindPayment, 100, acc.ID, uuid.New(), nil, time.Now())
	again.Reference = "TRF_DEADBEEF"
	assert.ErrorIs(t, ledger.Append(ctx, tx, again), ports.ErrDuplicate, "taken by a committed entry")
}

func TestStore_CommitRejectsReferenceTakenMeanwhile(t *testing.T) {
	s := NewStore()
	_, acc := seedUser(t, s, "+221770000001", 500)
	ctx := context.Background()
	ledger := NewLedgerRepo(s)

	txA, err := s.Begin(ctx)
	require.NoError(t, err)
	txB, err := s.Begin(ctx)
	require.NoError(t, err)

	for _, tx := range []pgx.Tx{txA, txB} {
		e := domain.NewLedgerEntry(domain.EntryKindTransfer, 100, acc.ID, uuid.New(), nil, time.Now())
		e.Reference = "TRF_DEADBEEF"
		require.NoError(t, ledger.Append(ctx, tx, e))
	}

	require.NoError(t, txA.Commit(ctx))
	assert.ErrorIs(t, txB.Commit(ctx), ports.ErrDuplicate)

	_, total, err := ledger.ListByAccounts(ctx, ports.LedgerListParams{AccountIDs: []uuid.UUID{acc.ID}, Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestStore_LockTableShrinksOnRelease(t *testing.T) {
	s := NewStore()
	_, acc := seedUser(t, s, "+221770000001", 500)
	ctx := context.Background()
	repo := NewAccountRepo(s)

	// Unknown ids still take a lock for the life of the tx.
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		got, err := repo.GetByIDForUpdate(ctx, tx, uuid.New())
		require.NoError(t, err)
		assert.Nil(t, got)
	}
	_, err = repo.GetByIDForUpdate(ctx, tx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, 51, lockCount(s))
	require.NoError(t, tx.Rollback(ctx))
	assert.Zero(t, lockCount(s))

	// A waiter keeps the entry alive after the holder leaves.
	holder, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = repo.GetByIDForUpdate(ctx, holder, acc.ID)
	require.NoError(t, err)

	acquired := make(chan struct{})
	waiter, err := s.Begin(ctx)
	require.NoError(t, err)
	go func() {
		defer close(acquired)
		_, err := repo.GetByIDForUpdate(ctx, waiter, acc.ID)
		assert.NoError(t, err)
	}()

	require.Eventually(t, func() bool {
		s.lockMu.Lock()
		defer s.lockMu.Unlock()
		l, ok := s.locks[accountKey(acc.ID)]
		return ok && l.users == 2
	}, time.Second, time.Millisecond)

	require.NoError(t, holder.Commit(ctx))
	<-acquired
	assert.Equal(t, 1, lockCount(s))
	require.NoError(t, waiter.Commit(ctx))
	assert.Zero(t, lockCount(s))
}

func TestStore_CancelledWaiterLeavesNoEntry(t *testing.T) {
	s := NewStore()
	_, acc := seedUser(t, s, "+221770000001", 500)
	ctx := context.Background()
	repo := NewAccountRepo(s)

	holder, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = repo.GetByIDForUpdate(ctx, holder, acc.ID)
	require.NoError(t, err)

	cctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	waiter, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = repo.GetByIDForUpdate(cctx, waiter, acc.ID)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	require.NoError(t, waiter.Rollback(ctx))
	assert.Equal(t, 1, lockCount(s))

	require.NoError(t, holder.Rollback(ctx))
	assert.Zero(t, lockCount(s))
}
