package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"minibank-core/internal/domain"
	"minibank-core/internal/repository"

	"github.com/google/uuid"
)

type TransactionStore struct {
	mu     sync.RWMutex
	txs    map[uuid.UUID]domain.Transaction
	claims map[uuid.UUID]*sync.Mutex
}

func NewTransactionStore() *TransactionStore {
	return &TransactionStore{
		txs:    make(map[uuid.UUID]domain.Transaction),
		claims: make(map[uuid.UUID]*sync.Mutex),
	}
}

var _ repository.TransactionRepository = (*TransactionStore)(nil)

func (s *TransactionStore) Create(_ context.Context, tx *domain.Transaction) error {
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = time.Now().UTC()
	}
	stored := *tx
	stored.NewBalance = nil

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.txs[tx.ID]; ok {
		return domain.Conflict("transaction %s already exists", tx.ID)
	}
	s.txs[tx.ID] = stored
	return nil
}

func (s *TransactionStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.txs[id]
	if !ok {
		return nil, domain.NotFound("transaction %s not found", id)
	}
	return &tx, nil
}

func (s *TransactionStore) claimLock(id uuid.UUID) (*sync.Mutex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.txs[id]; !ok {
		return nil, domain.NotFound("transaction %s not found", id)
	}
	m, ok := s.claims[id]
	if !ok {
		m = &sync.Mutex{}
		s.claims[id] = m
	}
	return m, nil
}

func (s *TransactionStore) ClaimForUpdate(ctx context.Context, id uuid.UUID, skipLocked bool, fn repository.ClaimFunc) (*domain.Transaction, error) {
	m, err := s.claimLock(id)
	if err != nil {
		return nil, err
	}
	if skipLocked {
		if !m.TryLock() {
			return nil, repository.ErrClaimed
		}
	} else {
		m.Lock()
	}
	defer m.Unlock()

	tx, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := fn(tx)
	if err != nil {
		return nil, err
	}
	if next != tx.Status {
		s.mu.Lock()
		stored := s.txs[id]
		stored.Status = next
		s.txs[id] = stored
		s.mu.Unlock()
		tx.Status = next
	}
	return tx, nil
}

// filter returns matching transactions newest first.
func (s *TransactionStore) filter(match func(*domain.Transaction) bool) []domain.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Transaction
	for _, tx := range s.txs {
		if match(&tx) {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

func (s *TransactionStore) ListByAccount(_ context.Context, f domain.TransactionFilter) ([]domain.Transaction, int32, error) {
	all := s.filter(func(tx *domain.Transaction) bool {
		if !tx.InvolvesAccount(f.AccountID) {
			return false
		}
		if len(f.Types) == 0 {
			return true
		}
		for _, t := range f.Types {
			if tx.Type == t {
				return true
			}
		}
		return false
	})

	total := int64(len(all))
	start := (int64(f.Page) - 1) * int64(f.PageSize)
	if start < 0 || start >= total {
		return []domain.Transaction{}, int32(total), nil
	}
	end := min(start+int64(f.PageSize), total)
	return all[start:end], int32(total), nil
}

func isPendingCounterDeposit(tx *domain.Transaction) bool {
	return tx.Type == domain.TransactionTypeCounterDeposit && tx.Status == domain.TransactionStatusPending
}

func (s *TransactionStore) ListPendingByStaff(_ context.Context, staffID uuid.UUID) ([]domain.Transaction, error) {
	out := s.filter(func(tx *domain.Transaction) bool {
		return isPendingCounterDeposit(tx) && tx.StaffID != nil && *tx.StaffID == staffID
	})
	reverse(out)
	return out, nil
}

func (s *TransactionStore) ListPendingOlderThan(_ context.Context, cutoff time.Time) ([]domain.Transaction, error) {
	out := s.filter(func(tx *domain.Transaction) bool {
		return isPendingCounterDeposit(tx) && tx.Timestamp.Before(cutoff)
	})
	reverse(out)
	return out, nil
}

func (s *TransactionStore) CountPendingByStaff(_ context.Context) (map[uuid.UUID]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[uuid.UUID]int)
	for _, tx := range s.txs {
		if isPendingCounterDeposit(&tx) && tx.StaffID != nil {
			counts[*tx.StaffID]++
		}
	}
	return counts, nil
}

func reverse(txs []domain.Transaction) {
	for i, j := 0, len(txs)-1; i < j; i, j = i+1, j-1 {
		txs[i], txs[j] = txs[j], txs[i]
	}
}
