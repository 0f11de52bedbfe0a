// Package memory is an in-process storage backend with the same locking and
// atomicity guarantees as the PostgreSQL adapter: rows locked "for update"
// stay locked until the owning transaction commits or rolls back, and staged
// writes become visible all at once on commit.
package memory

import (
	"context"
	"fmt"
	"sync"

	"mobile-money-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Store holds committed state and the row lock table.
type Store struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]domain.Account
	users    map[uuid.UUID]domain.User
	phones   map[string]uuid.UUID
	codes    map[int]uuid.UUID
	refs     map[string]struct{}
	entries  []domain.LedgerEntry

	lockMu sync.Mutex
	locks  map[string]*rowLock
}

// rowLock is a one-slot semaphore. users counts the holder plus waiters;
// the entry leaves the table when it drops to zero.
type rowLock struct {
	slot  chan struct{}
	users int
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		accounts: make(map[uuid.UUID]domain.Account),
		users:    make(map[uuid.UUID]domain.User),
		phones:   make(map[string]uuid.UUID),
		codes:    make(map[int]uuid.UUID),
		refs:     make(map[string]struct{}),
		locks:    make(map[string]*rowLock),
	}
}

// Begin starts a transaction. It implements ports.DBTransactor.
func (s *Store) Begin(_ context.Context) (pgx.Tx, error) {
	return newTx(s), nil
}

// Ping implements ports.HealthChecker.
func (s *Store) Ping(_ context.Context) error { return nil }

// Name implements ports.HealthChecker.
func (s *Store) Name() string { return "memory" }

func (s *Store) acquire(ctx context.Context, key string) (*rowLock, error) {
	s.lockMu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &rowLock{slot: make(chan struct{}, 1)}
		s.locks[key] = l
	}
	l.users++
	s.lockMu.Unlock()

	select {
	case l.slot <- struct{}{}:
		return l, nil
	case <-ctx.Done():
		s.forget(key, l)
		return nil, fmt.Errorf("acquire lock %s: %w", key, ctx.Err())
	}
}

// unlock frees the slot held on key.
func (s *Store) unlock(key string, l *rowLock) {
	<-l.slot
	s.forget(key, l)
}

func (s *Store) forget(key string, l *rowLock) {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	l.users--
	if l.users == 0 {
		delete(s.locks, key)
	}
}

func accountKey(id uuid.UUID) string { return "account:" + id.String() }
func userKey(id uuid.UUID) string    { return "user:" + id.String() }

func cloneAccount(a domain.Account) *domain.Account {
	c := a
	if a.MerchantCode != nil {
		v := *a.MerchantCode
		c.MerchantCode = &v
	}
	if a.OTPHash != nil {
		v := *a.OTPHash
		c.OTPHash = &v
	}
	if a.OTPExpiresAt != nil {
		v := *a.OTPExpiresAt
		c.OTPExpiresAt = &v
	}
	if a.ActivatedAt != nil {
		v := *a.ActivatedAt
		c.ActivatedAt = &v
	}
	return &c
}

func cloneUser(u domain.User) *domain.User {
	c := u
	if u.ClientAccountID != nil {
		v := *u.ClientAccountID
		c.ClientAccountID = &v
	}
	if u.MerchantAccountID != nil {
		v := *u.MerchantAccountID
		c.MerchantAccountID = &v
	}
	return &c
}
