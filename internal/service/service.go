package service

import (
	"context"
	"time"

	"minibank-core/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountService is the ledger. It owns account rows and is the only
// component that mutates balances.
type AccountService interface {
	CreateAccount(ctx context.Context, userID uuid.UUID, initialBalance decimal.Decimal) (*domain.Account, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Account, error)
	GetByAccountNumber(ctx context.Context, number string) (*domain.Account, error)
	UpdateBalance(ctx context.Context, id uuid.UUID, op domain.BalanceOperation, amount decimal.Decimal) (*domain.Account, error)
	Transfer(ctx context.Context, fromID, toID uuid.UUID, amount decimal.Decimal) (from *domain.Account, to *domain.Account, err error)
	Freeze(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	Unfreeze(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	Lock(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	Unlock(ctx context.Context, id uuid.UUID) (*domain.Account, error)
}

// LedgerClient is the orchestrator's view of the ledger. Errors are already
// classified as domain errors.
type LedgerClient interface {
	GetAccountByUser(ctx context.Context, userID uuid.UUID) (*domain.Account, error)
	GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	UpdateBalance(ctx context.Context, id uuid.UUID, op domain.BalanceOperation, amount decimal.Decimal) (*domain.Account, error)
	// Transfer returns the source account after the debit.
	Transfer(ctx context.Context, fromID, toID uuid.UUID, amount decimal.Decimal) (*domain.Account, error)
}

// TransactionService turns user requests into ledger calls plus an audit record.
type TransactionService interface {
	Deposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*domain.Transaction, error)
	Withdraw(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*domain.Transaction, error)
	Transfer(ctx context.Context, userID, toAccountID uuid.UUID, amount decimal.Decimal) (*domain.Transaction, error)
	History(ctx context.Context, userID uuid.UUID, types []domain.TransactionType, page, pageSize int32) ([]domain.Transaction, int32, error)
	GetTransaction(ctx context.Context, userID, transactionID uuid.UUID) (*domain.Transaction, error)
}

// CounterDepositService runs the in-person deposit workflow.
type CounterDepositService interface {
	RequestDeposit(ctx context.Context, userID, counterID uuid.UUID, amount decimal.Decimal) (*domain.Transaction, error)
	ConfirmDeposit(ctx context.Context, staffID, transactionID uuid.UUID) (*domain.Transaction, error)
	CancelDeposit(ctx context.Context, callerID, transactionID uuid.UUID) (*domain.Transaction, error)
	AssignStaff(ctx context.Context, counterID uuid.UUID) (uuid.UUID, error)
	ListPendingForStaff(ctx context.Context, staffID uuid.UUID) ([]domain.Transaction, error)
	AddStaff(ctx context.Context, adminID, counterID, staffUserID uuid.UUID) (*domain.CounterStaff, error)
	RemoveStaff(ctx context.Context, adminID, counterID, staffUserID uuid.UUID) error
	ExpireStale(ctx context.Context, olderThan time.Duration) (int, error)
	ReconcileLoad(ctx context.Context) error
}
