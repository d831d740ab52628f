package service

import (
	"context"

	"minibank-core/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// localLedger serves LedgerClient from an in-process AccountService. Used
// when the orchestrator and ledger run in one binary and in tests.
type localLedger struct {
	accounts AccountService
}

func NewLocalLedger(accounts AccountService) LedgerClient {
	return &localLedger{accounts: accounts}
}

func (l *localLedger) GetAccountByUser(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	return l.accounts.GetByUserID(ctx, userID)
}

func (l *localLedger) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return l.accounts.GetByID(ctx, id)
}

func (l *localLedger) UpdateBalance(ctx context.Context, id uuid.UUID, op domain.BalanceOperation, amount decimal.Decimal) (*domain.Account, error) {
	return l.accounts.UpdateBalance(ctx, id, op, amount)
}

func (l *localLedger) Transfer(ctx context.Context, fromID, toID uuid.UUID, amount decimal.Decimal) (*domain.Account, error) {
	from, _, err := l.accounts.Transfer(ctx, fromID, toID, amount)
	return from, err
}
