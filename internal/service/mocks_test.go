package service_test

import (
	"context"
	"time"

	"minibank-core/internal/domain"
	"minibank-core/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockSink
type MockSink struct {
	mock.Mock
}

func (m *MockSink) Publish(ctx context.Context, topic, key string, payload any) {
	m.Called(ctx, topic, key, payload)
}

// MockLedgerClient
type MockLedgerClient struct {
	mock.Mock
}

func (m *MockLedgerClient) GetAccountByUser(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}
func (m *MockLedgerClient) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}
func (m *MockLedgerClient) UpdateBalance(ctx context.Context, id uuid.UUID, op domain.BalanceOperation, amount decimal.Decimal) (*domain.Account, error) {
	args := m.Called(ctx, id, op, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}
func (m *MockLedgerClient) Transfer(ctx context.Context, fromID, toID uuid.UUID, amount decimal.Decimal) (*domain.Account, error) {
	args := m.Called(ctx, fromID, toID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

// MockTransactionRepo
type MockTransactionRepo struct {
	mock.Mock
}

func (m *MockTransactionRepo) Create(ctx context.Context, tx *domain.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}
func (m *MockTransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}
// ClaimForUpdate runs fn against the transaction given to Return and applies
// the status it returns.
func (m *MockTransactionRepo) ClaimForUpdate(ctx context.Context, id uuid.UUID, skipLocked bool, fn repository.ClaimFunc) (*domain.Transaction, error) {
	args := m.Called(ctx, id, skipLocked)
	if err := args.Error(1); err != nil {
		return nil, err
	}
	tx := args.Get(0).(*domain.Transaction)
	next, err := fn(tx)
	if err != nil {
		return nil, err
	}
	tx.Status = next
	return tx, nil
}
func (m *MockTransactionRepo) ListByAccount(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, int32, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Transaction), args.Get(1).(int32), args.Error(2)
}
func (m *MockTransactionRepo) ListPendingByStaff(ctx context.Context, staffID uuid.UUID) ([]domain.Transaction, error) {
	args := m.Called(ctx, staffID)
	return args.Get(0).([]domain.Transaction), args.Error(1)
}
func (m *MockTransactionRepo) ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]domain.Transaction, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).([]domain.Transaction), args.Error(1)
}
func (m *MockTransactionRepo) CountPendingByStaff(ctx context.Context) (map[uuid.UUID]int, error) {
	args := m.Called(ctx)
	return args.Get(0).(map[uuid.UUID]int), args.Error(1)
}
