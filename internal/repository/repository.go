package repository

import (
	"context"
	"errors"
	"time"

	"minibank-core/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrDuplicateAccountNumber is returned by AccountRepository.Create when the
// generated account number is already taken. Callers may retry with a new one.
var ErrDuplicateAccountNumber = errors.New("account number already exists")

// ErrClaimed is returned by TransactionRepository.ClaimForUpdate with
// skipLocked when another caller holds the transaction.
var ErrClaimed = errors.New("transaction is claimed by another caller")

// ClaimFunc inspects a claimed transaction and returns the status to store.
// Returning an error stores nothing.
type ClaimFunc func(tx *domain.Transaction) (domain.TransactionStatus, error)

// AccountRepository is the ledger store. Every mutating method is one atomic
// unit holding exclusive row locks for its duration.
type AccountRepository interface {
	Create(ctx context.Context, acc *domain.Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Account, error)
	GetByAccountNumber(ctx context.Context, number string) (*domain.Account, error)

	UpdateBalance(ctx context.Context, id uuid.UUID, op domain.BalanceOperation, amount decimal.Decimal) (*domain.Account, error)
	// Transfer locks both rows in domain.OrderPair order.
	Transfer(ctx context.Context, fromID, toID uuid.UUID, amount decimal.Decimal) (from *domain.Account, to *domain.Account, err error)
	// ApplyStatus reports changed=false when cmd was a no-op for the account.
	ApplyStatus(ctx context.Context, id uuid.UUID, cmd domain.StatusCommand) (acc *domain.Account, action domain.AccountAction, changed bool, err error)
}

type TransactionRepository interface {
	Create(ctx context.Context, tx *domain.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	// ClaimForUpdate holds an exclusive claim on the transaction while fn runs
	// and then stores the status fn returns. The claim is visible to every
	// process sharing the store, so side effects made inside fn happen at most
	// once per status change. With skipLocked a held claim returns ErrClaimed
	// instead of waiting.
	ClaimForUpdate(ctx context.Context, id uuid.UUID, skipLocked bool, fn ClaimFunc) (*domain.Transaction, error)
	ListByAccount(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, int32, error)
	ListPendingByStaff(ctx context.Context, staffID uuid.UUID) ([]domain.Transaction, error)
	ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]domain.Transaction, error)
	// CountPendingByStaff counts PENDING counter deposits per assigned staff member.
	CountPendingByStaff(ctx context.Context) (map[uuid.UUID]int, error)
}

type CounterRepository interface {
	Create(ctx context.Context, counter *domain.Counter) error
	GetActiveByID(ctx context.Context, id uuid.UUID) (*domain.Counter, error)
	ListActiveStaff(ctx context.Context, counterID uuid.UUID) ([]domain.CounterStaff, error)
	GetStaff(ctx context.Context, counterID, userID uuid.UUID) (*domain.CounterStaff, error)
	// SaveStaff inserts the membership or updates its active flag.
	SaveStaff(ctx context.Context, staff *domain.CounterStaff) error
}
