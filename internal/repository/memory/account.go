// Package memory holds process-local repositories. AccountStore gives the
// same locking guarantees as the postgres ledger using one mutex per account.
package memory

import (
	"context"
	"sync"
	"time"

	"minibank-core/internal/domain"
	"minibank-core/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type accountRow struct {
	mu  sync.Mutex
	acc domain.Account
}

type AccountStore struct {
	mu       sync.RWMutex
	rows     map[uuid.UUID]*accountRow
	byUser   map[uuid.UUID]uuid.UUID
	byNumber map[string]uuid.UUID
}

func NewAccountStore() *AccountStore {
	return &AccountStore{
		rows:     make(map[uuid.UUID]*accountRow),
		byUser:   make(map[uuid.UUID]uuid.UUID),
		byNumber: make(map[string]uuid.UUID),
	}
}

var _ repository.AccountRepository = (*AccountStore)(nil)

func (s *AccountStore) Create(_ context.Context, acc *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byUser[acc.UserID]; ok {
		return domain.Conflict("account for user %s already exists", acc.UserID)
	}
	if _, ok := s.byNumber[acc.AccountNumber]; ok {
		return repository.ErrDuplicateAccountNumber
	}
	if acc.ID == uuid.Nil {
		acc.ID = uuid.New()
	}
	now := time.Now().UTC()
	acc.CreatedAt, acc.UpdatedAt = now, now

	s.rows[acc.ID] = &accountRow{acc: *acc}
	s.byUser[acc.UserID] = acc.ID
	s.byNumber[acc.AccountNumber] = acc.ID
	return nil
}

func (s *AccountStore) row(id uuid.UUID) (*accountRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rows[id]
	if !ok {
		return nil, domain.NotFound("account %s not found", id)
	}
	return r, nil
}

func (s *AccountStore) snapshot(id uuid.UUID) (*domain.Account, error) {
	r, err := s.row(id)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	acc := r.acc
	return &acc, nil
}

func (s *AccountStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Account, error) {
	return s.snapshot(id)
}

func (s *AccountStore) GetByUserID(_ context.Context, userID uuid.UUID) (*domain.Account, error) {
	s.mu.RLock()
	id, ok := s.byUser[userID]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.NotFound("account for user %s not found", userID)
	}
	return s.snapshot(id)
}

func (s *AccountStore) GetByAccountNumber(_ context.Context, number string) (*domain.Account, error) {
	s.mu.RLock()
	id, ok := s.byNumber[number]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.NotFound("account %s not found", number)
	}
	return s.snapshot(id)
}

func (s *AccountStore) UpdateBalance(_ context.Context, id uuid.UUID, op domain.BalanceOperation, amount decimal.Decimal) (*domain.Account, error) {
	r, err := s.row(id)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	balance, err := domain.ApplyBalance(&r.acc, op, amount)
	if err != nil {
		return nil, err
	}
	r.acc.Balance = balance
	r.acc.UpdatedAt = time.Now().UTC()
	acc := r.acc
	return &acc, nil
}

func (s *AccountStore) Transfer(_ context.Context, fromID, toID uuid.UUID, amount decimal.Decimal) (*domain.Account, *domain.Account, error) {
	if fromID == toID {
		return nil, nil, domain.Conflict("cannot transfer to the same account")
	}
	firstID, secondID := domain.OrderPair(fromID, toID)
	first, err := s.row(firstID)
	if err != nil {
		return nil, nil, err
	}
	second, err := s.row(secondID)
	if err != nil {
		return nil, nil, err
	}

	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()

	from, to := &first.acc, &second.acc
	if from.ID != fromID {
		from, to = to, from
	}
	if !from.IsActive() {
		return nil, nil, domain.Conflict("source account %s is %s", from.ID, from.Status)
	}
	if !to.IsActive() {
		return nil, nil, domain.Conflict("destination account %s is %s", to.ID, to.Status)
	}
	fromBalance, err := domain.ApplyBalance(from, domain.BalanceOperationWithdraw, amount)
	if err != nil {
		return nil, nil, err
	}
	toBalance, err := domain.ApplyBalance(to, domain.BalanceOperationDeposit, amount)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	from.Balance, from.UpdatedAt = fromBalance, now
	to.Balance, to.UpdatedAt = toBalance, now
	fromCopy, toCopy := *from, *to
	return &fromCopy, &toCopy, nil
}

func (s *AccountStore) ApplyStatus(_ context.Context, id uuid.UUID, cmd domain.StatusCommand) (*domain.Account, domain.AccountAction, bool, error) {
	r, err := s.row(id)
	if err != nil {
		return nil, "", false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	next, action, changed, err := domain.NextStatus(r.acc.Status, cmd)
	if err != nil {
		return nil, "", false, err
	}
	if changed {
		r.acc.Status = next
		r.acc.UpdatedAt = time.Now().UTC()
	}
	acc := r.acc
	return &acc, action, changed, nil
}
