package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypeDeposit        TransactionType = "DEPOSIT"
	TransactionTypeWithdraw       TransactionType = "WITHDRAW"
	TransactionTypeTransfer       TransactionType = "TRANSFER"
	TransactionTypeCounterDeposit TransactionType = "COUNTER_DEPOSIT"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeDeposit, TransactionTypeWithdraw, TransactionTypeTransfer, TransactionTypeCounterDeposit:
		return true
	}
	return false
}

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusSuccess   TransactionStatus = "SUCCESS"
	TransactionStatusFailed    TransactionStatus = "FAILED"
	TransactionStatusCancelled TransactionStatus = "CANCELLED"
)

// IsTerminal reports whether no further transition is allowed.
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusSuccess || s == TransactionStatusFailed || s == TransactionStatusCancelled
}

type Transaction struct {
	ID              uuid.UUID         `json:"id"`
	Type            TransactionType   `json:"type"`
	FromAccountID   *uuid.UUID        `json:"fromAccountId,omitempty"`
	ToAccountID     *uuid.UUID        `json:"toAccountId,omitempty"`
	Amount          decimal.Decimal   `json:"amount"`
	Status          TransactionStatus `json:"status"`
	Timestamp       time.Time         `json:"timestamp"`
	StaffID         *uuid.UUID        `json:"staffId,omitempty"`
	CounterID       *uuid.UUID        `json:"counterId,omitempty"`
	TransactionCode string            `json:"transactionCode,omitempty"`
	// NewBalance is the ledger balance returned by the call that settled
	// this transaction. Not stored.
	NewBalance *decimal.Decimal `json:"newBalance,omitempty"`
}

// InvolvesAccount reports whether accountID is either side of the transaction.
func (t *Transaction) InvolvesAccount(accountID uuid.UUID) bool {
	return (t.FromAccountID != nil && *t.FromAccountID == accountID) ||
		(t.ToAccountID != nil && *t.ToAccountID == accountID)
}

// TransactionFilter scopes a history query to one account.
type TransactionFilter struct {
	AccountID uuid.UUID
	Types     []TransactionType
	Page      int32
	PageSize  int32
}
