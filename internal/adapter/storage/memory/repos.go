package memory

import (
	"context"
	"fmt"
	"sort"

	"mobile-money-ledger/internal/core/domain"
	"mobile-money-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AccountRepo implements ports.AccountRepository.
type AccountRepo struct {
	s *Store
}

// NewAccountRepo creates an AccountRepo over s.
func NewAccountRepo(s *Store) *AccountRepo { return &AccountRepo{s: s} }

func (r *AccountRepo) Create(_ context.Context, tx pgx.Tx, a *domain.Account) error {
	t, err := asTx(tx, r.s)
	if err != nil {
		return err
	}
	if _, ok := t.account(a.ID); ok {
		return fmt.Errorf("insert account %s: %w", a.ID, ports.ErrDuplicate)
	}
	if a.MerchantCode != nil {
		if existing, _ := r.GetByMerchantCode(context.Background(), *a.MerchantCode); existing != nil {
			return fmt.Errorf("insert account: merchant code %d: %w", *a.MerchantCode, ports.ErrDuplicate)
		}
	}
	t.accounts[a.ID] = *cloneAccount(*a)
	return nil
}

func (r *AccountRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.accounts[id]
	if !ok {
		return nil, nil
	}
	return cloneAccount(a), nil
}

func (r *AccountRepo) GetByPhoneAndType(_ context.Context, phone string, t domain.AccountType) (*domain.Account, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("unknown account type %q", t)
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	uid, ok := r.s.phones[phone]
	if !ok {
		return nil, nil
	}
	u := r.s.users[uid]
	id := u.AccountID(t)
	if id == nil {
		return nil, nil
	}
	a, ok := r.s.accounts[*id]
	if !ok {
		return nil, nil
	}
	return cloneAccount(a), nil
}

func (r *AccountRepo) GetByMerchantCode(_ context.Context, code int) (*domain.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.codes[code]
	if !ok {
		return nil, nil
	}
	return cloneAccount(r.s.accounts[id]), nil
}

// GetByIDForUpdate blocks until the row lock is free, then reads the latest
// committed (or this tx's staged) state.
func (r *AccountRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Account, error) {
	t, err := asTx(tx, r.s)
	if err != nil {
		return nil, err
	}
	if err := t.lock(ctx, accountKey(id)); err != nil {
		return nil, fmt.Errorf("get account for update: %w", err)
	}
	a, ok := t.account(id)
	if !ok {
		return nil, nil
	}
	return cloneAccount(a), nil
}

func (r *AccountRepo) Update(_ context.Context, tx pgx.Tx, a *domain.Account) error {
	t, err := asTx(tx, r.s)
	if err != nil {
		return err
	}
	cur, ok := t.account(a.ID)
	if !ok || cur.Version != a.Version {
		return fmt.Errorf("update account %s: %w", a.ID, ports.ErrStaleWrite)
	}
	a.Version++
	t.accounts[a.ID] = *cloneAccount(*a)
	return nil
}

// UserRepo implements ports.UserRepository.
type UserRepo struct {
	s *Store
}

// NewUserRepo creates a UserRepo over s.
func NewUserRepo(s *Store) *UserRepo { return &UserRepo{s: s} }

func (r *UserRepo) Create(_ context.Context, tx pgx.Tx, u *domain.User) error {
	t, err := asTx(tx, r.s)
	if err != nil {
		return err
	}
	r.s.mu.RLock()
	_, taken := r.s.phones[u.Phone]
	r.s.mu.RUnlock()
	if taken {
		return fmt.Errorf("insert user: phone %s: %w", u.Phone, ports.ErrDuplicate)
	}
	t.users[u.ID] = *cloneUser(*u)
	return nil
}

func (r *UserRepo) GetByPhone(_ context.Context, phone string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.phones[phone]
	if !ok {
		return nil, nil
	}
	return cloneUser(r.s.users[id]), nil
}

func (r *UserRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.User, error) {
	t, err := asTx(tx, r.s)
	if err != nil {
		return nil, err
	}
	if err := t.lock(ctx, userKey(id)); err != nil {
		return nil, fmt.Errorf("get user for update: %w", err)
	}
	u, ok := t.user(id)
	if !ok {
		return nil, nil
	}
	return cloneUser(u), nil
}

func (r *UserRepo) LinkAccount(ctx context.Context, tx pgx.Tx, userID uuid.UUID, at domain.AccountType, accountID uuid.UUID) error {
	t, err := asTx(tx, r.s)
	if err != nil {
		return err
	}
	if !at.Valid() {
		return fmt.Errorf("unknown account type %q", at)
	}
	if err := t.lock(ctx, userKey(userID)); err != nil {
		return fmt.Errorf("link account: %w", err)
	}
	u, ok := t.user(userID)
	if !ok {
		return fmt.Errorf("user not found: %s", userID)
	}
	u.LinkAccount(at, accountID)
	t.users[userID] = *cloneUser(u)
	return nil
}

// LedgerRepo implements ports.LedgerRepository.
type LedgerRepo struct {
	s *Store
}

// NewLedgerRepo creates a LedgerRepo over s.
func NewLedgerRepo(s *Store) *LedgerRepo { return &LedgerRepo{s: s} }

func (r *LedgerRepo) Append(_ context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	t, err := asTx(tx, r.s)
	if err != nil {
		return err
	}
	if t.referenceTaken(e.Reference) {
		return fmt.Errorf("append entry: reference %s: %w", e.Reference, ports.ErrDuplicate)
	}
	t.entries = append(t.entries, *e)
	return nil
}

func (r *LedgerRepo) ListByAccounts(_ context.Context, params ports.LedgerListParams) ([]domain.LedgerEntry, int64, error) {
	if len(params.AccountIDs) == 0 {
		return nil, 0, nil
	}
	ids := make(map[uuid.UUID]struct{}, len(params.AccountIDs))
	for _, id := range params.AccountIDs {
		ids[id] = struct{}{}
	}

	r.s.mu.RLock()
	var matched []domain.LedgerEntry
	for _, e := range r.s.entries {
		_, src := ids[e.SourceAccountID]
		_, dst := ids[e.DestinationAccountID]
		if !src && !dst {
			continue
		}
		if params.Kind != nil && e.Kind != *params.Kind {
			continue
		}
		if params.From != nil && e.CreatedAt.Before(*params.From) {
			continue
		}
		if params.To != nil && e.CreatedAt.After(*params.To) {
			continue
		}
		matched = append(matched, e)
	}
	r.s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID.String() > matched[j].ID.String()
	})

	total := int64(len(matched))
	offset := (params.Page - 1) * params.PageSize
	if offset < 0 || offset >= len(matched) {
		return nil, total, nil
	}
	end := offset + params.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}
