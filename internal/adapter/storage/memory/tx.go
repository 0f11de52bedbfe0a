package memory

import (
	"context"
	"errors"
	"fmt"

	"mobile-money-ledger/internal/core/domain"
	"mobile-money-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var errForeignTx = errors.New("memory: transaction was not started by this store")

// Tx is a unit of work over a Store. Only Commit and Rollback are
// implemented; the embedded pgx.Tx is nil and must not be used.
type Tx struct {
	pgx.Tx

	store    *Store
	held     map[string]*rowLock
	accounts map[uuid.UUID]domain.Account
	users    map[uuid.UUID]domain.User
	entries  []domain.LedgerEntry
	done     bool
}

func newTx(s *Store) *Tx {
	return &Tx{
		store:    s,
		held:     make(map[string]*rowLock),
		accounts: make(map[uuid.UUID]domain.Account),
		users:    make(map[uuid.UUID]domain.User),
	}
}

func asTx(tx pgx.Tx, s *Store) (*Tx, error) {
	t, ok := tx.(*Tx)
	if !ok || t.store != s {
		return nil, errForeignTx
	}
	if t.done {
		return nil, pgx.ErrTxClosed
	}
	return t, nil
}

func (t *Tx) lock(ctx context.Context, key string) error {
	if _, ok := t.held[key]; ok {
		return nil
	}
	l, err := t.store.acquire(ctx, key)
	if err != nil {
		return err
	}
	t.held[key] = l
	return nil
}

// account returns the staged or committed account visible to this tx.
func (t *Tx) account(id uuid.UUID) (domain.Account, bool) {
	if a, ok := t.accounts[id]; ok {
		return a, true
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	a, ok := t.store.accounts[id]
	return a, ok
}

func (t *Tx) user(id uuid.UUID) (domain.User, bool) {
	if u, ok := t.users[id]; ok {
		return u, true
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	u, ok := t.store.users[id]
	return u, ok
}

func (t *Tx) referenceTaken(ref string) bool {
	for _, e := range t.entries {
		if e.Reference == ref {
			return true
		}
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	_, ok := t.store.refs[ref]
	return ok
}

// Commit validates uniqueness against committed state, then applies every
// staged write at once and releases the row locks.
func (t *Tx) Commit(_ context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	defer t.release()

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, u := range t.users {
		if owner, ok := s.phones[u.Phone]; ok && owner != id {
			return fmt.Errorf("commit user %s: %w", id, ports.ErrDuplicate)
		}
	}
	for _, e := range t.entries {
		if _, ok := s.refs[e.Reference]; ok {
			return fmt.Errorf("commit entry %s: reference %s: %w", e.ID, e.Reference, ports.ErrDuplicate)
		}
	}
	for id, a := range t.accounts {
		if a.MerchantCode == nil {
			continue
		}
		if owner, ok := s.codes[*a.MerchantCode]; ok && owner != id {
			return fmt.Errorf("commit account %s: %w", id, ports.ErrDuplicate)
		}
	}

	for id, a := range t.accounts {
		if prev, ok := s.accounts[id]; ok && prev.MerchantCode != nil {
			delete(s.codes, *prev.MerchantCode)
		}
		s.accounts[id] = a
		if a.MerchantCode != nil {
			s.codes[*a.MerchantCode] = id
		}
	}
	for id, u := range t.users {
		s.users[id] = u
		s.phones[u.Phone] = id
	}
	for _, e := range t.entries {
		s.refs[e.Reference] = struct{}{}
	}
	s.entries = append(s.entries, t.entries...)
	return nil
}

// Rollback discards staged writes and releases the row locks.
func (t *Tx) Rollback(_ context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.release()
	return nil
}

func (t *Tx) release() {
	t.done = true
	for key, l := range t.held {
		t.store.unlock(key, l)
		delete(t.held, key)
	}
}
