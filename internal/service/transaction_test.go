package service_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"minibank-core/internal/domain"
	"minibank-core/internal/repository/memory"
	"minibank-core/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// bank wires the orchestrator to an in-process ledger over memory stores.
type bank struct {
	accounts        service.AccountService
	ledger          service.LedgerClient
	txs             service.TransactionService
	counterDeposits service.CounterDepositService
	txStore         *memory.TransactionStore
	counters        *memory.CounterStore
	load            *service.StaffLoad
	sink            *MockSink
}

func newBank(t *testing.T) *bank {
	t.Helper()
	sink := new(MockSink)
	sink.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return()

	accounts := service.NewAccountService(memory.NewAccountStore(), sink)
	ledger := service.NewLocalLedger(accounts)
	txStore := memory.NewTransactionStore()
	counters := memory.NewCounterStore()
	load := service.NewStaffLoad()

	return &bank{
		accounts:        accounts,
		ledger:          ledger,
		txs:             service.NewTransactionService(ledger, txStore, sink),
		counterDeposits: service.NewCounterDepositService(ledger, txStore, counters, load, sink),
		txStore:         txStore,
		counters:        counters,
		load:            load,
		sink:            sink,
	}
}

func (b *bank) openAccount(t *testing.T, balance string) *domain.Account {
	t.Helper()
	acc, err := b.accounts.CreateAccount(context.Background(), uuid.New(), decimal.RequireFromString(balance))
	require.NoError(t, err)
	return acc
}

func (b *bank) balance(t *testing.T, id uuid.UUID) decimal.Decimal {
	t.Helper()
	acc, err := b.accounts.GetByID(context.Background(), id)
	require.NoError(t, err)
	return acc.Balance
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestTransactionService_Deposit(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		b := newBank(t)
		acc := b.openAccount(t, "0")

		tx, err := b.txs.Deposit(ctx, acc.UserID, dec("100000"))
		require.NoError(t, err)
		assert.Equal(t, domain.TransactionStatusSuccess, tx.Status)
		assert.Equal(t, domain.TransactionTypeDeposit, tx.Type)
		require.NotNil(t, tx.NewBalance)
		assert.True(t, tx.NewBalance.Equal(dec("100000")))
		assert.True(t, b.balance(t, acc.ID).Equal(dec("100000")))

		stored, err := b.txStore.GetByID(ctx, tx.ID)
		require.NoError(t, err)
		assert.Equal(t, acc.ID, *stored.ToAccountID)
		b.sink.AssertCalled(t, "Publish", mock.Anything, domain.TopicTransactionCompleted, tx.ID.String(), mock.Anything)
	})

	t.Run("Error_InvalidAmount", func(t *testing.T) {
		b := newBank(t)
		acc := b.openAccount(t, "0")

		for _, amount := range []string{"0", "-5", "1.005"} {
			_, err := b.txs.Deposit(ctx, acc.UserID, dec(amount))
			assert.True(t, domain.IsKind(err, domain.KindValidation), amount)
		}
	})

	t.Run("Error_NoAccount", func(t *testing.T) {
		b := newBank(t)
		_, err := b.txs.Deposit(ctx, uuid.New(), dec("10"))
		assert.True(t, domain.IsKind(err, domain.KindNotFound))
	})

	t.Run("Error_AuditWriteFails", func(t *testing.T) {
		ledger := new(MockLedgerClient)
		repo := new(MockTransactionRepo)
		sink := new(MockSink)
		svc := service.NewTransactionService(ledger, repo, sink)

		acc := &domain.Account{ID: uuid.New(), UserID: uuid.New(), Balance: dec("0"), Status: domain.AccountStatusActive}
		updated := *acc
		updated.Balance = dec("10")
		ledger.On("GetAccountByUser", ctx, acc.UserID).Return(acc, nil)
		ledger.On("UpdateBalance", ctx, acc.ID, domain.BalanceOperationDeposit, dec("10")).Return(&updated, nil)
		repo.On("Create", ctx, mock.Anything).Return(errors.New("db down"))

		_, err := svc.Deposit(ctx, acc.UserID, dec("10"))
		assert.True(t, domain.IsKind(err, domain.KindInternal))
		sink.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestTransactionService_Withdraw(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		b := newBank(t)
		acc := b.openAccount(t, "100")

		tx, err := b.txs.Withdraw(ctx, acc.UserID, dec("40.50"))
		require.NoError(t, err)
		assert.True(t, tx.NewBalance.Equal(dec("59.50")))
		assert.Equal(t, acc.ID, *tx.FromAccountID)
		assert.Nil(t, tx.ToAccountID)
	})

	t.Run("Error_InsufficientFundsSkipsLedger", func(t *testing.T) {
		ledger := new(MockLedgerClient)
		svc := service.NewTransactionService(ledger, new(MockTransactionRepo), new(MockSink))

		acc := &domain.Account{ID: uuid.New(), UserID: uuid.New(), Balance: dec("5"), Status: domain.AccountStatusActive}
		ledger.On("GetAccountByUser", ctx, acc.UserID).Return(acc, nil)

		_, err := svc.Withdraw(ctx, acc.UserID, dec("10"))
		assert.True(t, domain.IsKind(err, domain.KindInsufficientFunds))
		ledger.AssertNotCalled(t, "UpdateBalance", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Error_RemoteFailureLeavesNoRecord", func(t *testing.T) {
		ledger := new(MockLedgerClient)
		repo := new(MockTransactionRepo)
		svc := service.NewTransactionService(ledger, repo, new(MockSink))

		acc := &domain.Account{ID: uuid.New(), UserID: uuid.New(), Balance: dec("50"), Status: domain.AccountStatusActive}
		ledger.On("GetAccountByUser", ctx, acc.UserID).Return(acc, nil)
		ledger.On("UpdateBalance", ctx, acc.ID, domain.BalanceOperationWithdraw, dec("10")).
			Return(nil, domain.RemoteService(errors.New("timeout"), "ledger unavailable"))

		_, err := svc.Withdraw(ctx, acc.UserID, dec("10"))
		assert.True(t, domain.IsKind(err, domain.KindRemoteService))
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	// Freeze A, then attempt withdraw from A.
	t.Run("Error_FrozenAccount", func(t *testing.T) {
		b := newBank(t)
		acc := b.openAccount(t, "100")
		_, err := b.accounts.Freeze(ctx, acc.ID)
		require.NoError(t, err)

		_, err = b.txs.Withdraw(ctx, acc.UserID, dec("10"))
		assert.True(t, domain.IsKind(err, domain.KindConflict))
		assert.True(t, b.balance(t, acc.ID).Equal(dec("100")))
	})
}

func TestTransactionService_Transfer(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		b := newBank(t)
		a := b.openAccount(t, "100000")
		dst := b.openAccount(t, "20000")

		tx, err := b.txs.Transfer(ctx, a.UserID, dst.ID, dec("50000"))
		require.NoError(t, err)
		assert.True(t, tx.NewBalance.Equal(dec("50000")))
		assert.True(t, b.balance(t, a.ID).Equal(dec("50000")))
		assert.True(t, b.balance(t, dst.ID).Equal(dec("70000")))
	})

	t.Run("Error_InsufficientFunds", func(t *testing.T) {
		b := newBank(t)
		a := b.openAccount(t, "100000")
		dst := b.openAccount(t, "20000")

		_, err := b.txs.Transfer(ctx, a.UserID, dst.ID, dec("150000"))
		assert.True(t, domain.IsKind(err, domain.KindInsufficientFunds))
		assert.True(t, b.balance(t, a.ID).Equal(dec("100000")))
		assert.True(t, b.balance(t, dst.ID).Equal(dec("20000")))

		_, total, err := b.txStore.ListByAccount(ctx, domain.TransactionFilter{AccountID: a.ID, Page: 1, PageSize: 10})
		require.NoError(t, err)
		assert.Zero(t, total)
	})

	t.Run("Error_SameAccount", func(t *testing.T) {
		b := newBank(t)
		a := b.openAccount(t, "100")

		_, err := b.txs.Transfer(ctx, a.UserID, a.ID, dec("1"))
		assert.True(t, domain.IsKind(err, domain.KindConflict))
	})

	t.Run("Error_TargetLocked", func(t *testing.T) {
		b := newBank(t)
		a := b.openAccount(t, "100")
		dst := b.openAccount(t, "0")
		_, err := b.accounts.Lock(ctx, dst.ID)
		require.NoError(t, err)

		_, err = b.txs.Transfer(ctx, a.UserID, dst.ID, dec("10"))
		assert.True(t, domain.IsKind(err, domain.KindConflict))
		assert.True(t, b.balance(t, a.ID).Equal(dec("100")))
	})

	t.Run("Error_UnknownTarget", func(t *testing.T) {
		b := newBank(t)
		a := b.openAccount(t, "100")

		_, err := b.txs.Transfer(ctx, a.UserID, uuid.New(), dec("10"))
		assert.True(t, domain.IsKind(err, domain.KindNotFound))
		assert.True(t, b.balance(t, a.ID).Equal(dec("100")))
	})
}

func TestTransactionService_History(t *testing.T) {
	ctx := context.Background()

	t.Run("DefaultsAndCaps", func(t *testing.T) {
		ledger := new(MockLedgerClient)
		repo := new(MockTransactionRepo)
		svc := service.NewTransactionService(ledger, repo, new(MockSink))

		acc := &domain.Account{ID: uuid.New(), UserID: uuid.New(), Status: domain.AccountStatusActive}
		ledger.On("GetAccountByUser", ctx, acc.UserID).Return(acc, nil)
		repo.On("ListByAccount", ctx, domain.TransactionFilter{AccountID: acc.ID, Page: 1, PageSize: 20}).
			Return([]domain.Transaction{}, int32(0), nil).Once()
		repo.On("ListByAccount", ctx, domain.TransactionFilter{AccountID: acc.ID, Page: 2, PageSize: 100}).
			Return([]domain.Transaction{}, int32(0), nil).Once()

		_, _, err := svc.History(ctx, acc.UserID, nil, 0, 0)
		require.NoError(t, err)
		_, _, err = svc.History(ctx, acc.UserID, nil, 2, 500)
		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("PageBeyondEnd", func(t *testing.T) {
		b := newBank(t)
		a := b.openAccount(t, "0")
		_, err := b.txs.Deposit(ctx, a.UserID, dec("10"))
		require.NoError(t, err)

		txs, total, err := b.txs.History(ctx, a.UserID, nil, math.MaxInt32, 20)
		require.NoError(t, err)
		assert.Equal(t, int32(1), total)
		assert.Empty(t, txs)
	})

	t.Run("TypeFilter", func(t *testing.T) {
		b := newBank(t)
		a := b.openAccount(t, "100")
		dst := b.openAccount(t, "0")

		_, err := b.txs.Deposit(ctx, a.UserID, dec("10"))
		require.NoError(t, err)
		_, err = b.txs.Transfer(ctx, a.UserID, dst.ID, dec("5"))
		require.NoError(t, err)

		all, total, err := b.txs.History(ctx, a.UserID, nil, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, int32(2), total)
		assert.Len(t, all, 2)

		transfers, total, err := b.txs.History(ctx, a.UserID, []domain.TransactionType{domain.TransactionTypeTransfer}, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, int32(1), total)
		assert.Equal(t, domain.TransactionTypeTransfer, transfers[0].Type)

		// the recipient sees the transfer too
		_, total, err = b.txs.History(ctx, dst.UserID, nil, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, int32(1), total)
	})

	t.Run("Error_UnknownType", func(t *testing.T) {
		b := newBank(t)
		_, _, err := b.txs.History(ctx, uuid.New(), []domain.TransactionType{"REFUND"}, 1, 10)
		assert.True(t, domain.IsKind(err, domain.KindValidation))
	})
}

func TestTransactionService_GetTransaction(t *testing.T) {
	ctx := context.Background()
	b := newBank(t)
	a := b.openAccount(t, "100")
	dst := b.openAccount(t, "0")
	stranger := b.openAccount(t, "0")

	tx, err := b.txs.Transfer(ctx, a.UserID, dst.ID, dec("5"))
	require.NoError(t, err)

	t.Run("Success_Sender", func(t *testing.T) {
		got, err := b.txs.GetTransaction(ctx, a.UserID, tx.ID)
		require.NoError(t, err)
		assert.Equal(t, tx.ID, got.ID)
	})

	t.Run("Success_Recipient", func(t *testing.T) {
		_, err := b.txs.GetTransaction(ctx, dst.UserID, tx.ID)
		assert.NoError(t, err)
	})

	t.Run("Error_NotAParty", func(t *testing.T) {
		_, err := b.txs.GetTransaction(ctx, stranger.UserID, tx.ID)
		assert.True(t, domain.IsKind(err, domain.KindNotFound))
	})

	t.Run("Error_CallerWithoutAccount", func(t *testing.T) {
		_, err := b.txs.GetTransaction(ctx, uuid.New(), tx.ID)
		assert.True(t, domain.IsKind(err, domain.KindNotFound))
	})
}
