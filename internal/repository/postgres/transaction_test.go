package postgres_test

import (
	"context"
	"math"
	"testing"
	"time"

	"minibank-core/internal/domain"
	"minibank-core/internal/repository"
	"minibank-core/internal/repository/postgres"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var transactionCols = []string{"id", "type", "from_account", "to_account", "amount", "status", "timestamp", "staff_id", "counter_id", "transaction_code"}

func TestTransactionRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := postgres.NewTransactionRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		to := uuid.New()
		tx := &domain.Transaction{
			Type:        domain.TransactionTypeDeposit,
			ToAccountID: &to,
			Amount:      decimal.NewFromInt(100000),
			Status:      domain.TransactionStatusSuccess,
		}
		mock.ExpectExec("INSERT INTO transactions").
			WithArgs(sqlmock.AnyArg(), tx.Type, nil, to, sqlmock.AnyArg(), tx.Status, sqlmock.AnyArg(), nil, nil, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.Create(ctx, tx)
		assert.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, tx.ID)
		assert.False(t, tx.Timestamp.IsZero())
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := postgres.NewTransactionRepository(db)
	ctx := context.Background()
	id, to, staff, counter := uuid.New(), uuid.New(), uuid.New(), uuid.New()

	t.Run("Success", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM transactions WHERE id = \\$1").
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows(transactionCols).AddRow(
				id.String(), "COUNTER_DEPOSIT", nil, to.String(), "500.00", "PENDING", time.Now(), staff.String(), counter.String(), "ABCD12340000161026",
			))

		tx, err := repo.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, tx.FromAccountID)
		require.NotNil(t, tx.ToAccountID)
		assert.Equal(t, to, *tx.ToAccountID)
		require.NotNil(t, tx.StaffID)
		assert.Equal(t, staff, *tx.StaffID)
		assert.Equal(t, domain.TransactionStatusPending, tx.Status)
	})

	t.Run("Error_NotFound", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM transactions WHERE id = \\$1").
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows(transactionCols))

		_, err := repo.GetByID(ctx, id)
		assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
	})
}

func pendingRow(id uuid.UUID) *sqlmock.Rows {
	return sqlmock.NewRows(transactionCols).AddRow(
		id.String(), "COUNTER_DEPOSIT", nil, uuid.NewString(), "10.00", "PENDING", time.Now(), uuid.NewString(), uuid.NewString(), "ABCDEF120000010126",
	)
}

func TestTransactionRepository_ClaimForUpdate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := postgres.NewTransactionRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		id := uuid.New()
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT (.+) FROM transactions WHERE id = \\$1 FOR UPDATE").
			WithArgs(id).
			WillReturnRows(pendingRow(id))
		mock.ExpectExec("UPDATE transactions SET status = \\$1 WHERE id = \\$2").
			WithArgs(domain.TransactionStatusSuccess, id).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		tx, err := repo.ClaimForUpdate(ctx, id, false, func(tx *domain.Transaction) (domain.TransactionStatus, error) {
			assert.Equal(t, domain.TransactionStatusPending, tx.Status)
			return domain.TransactionStatusSuccess, nil
		})
		require.NoError(t, err)
		assert.Equal(t, domain.TransactionStatusSuccess, tx.Status)
	})

	t.Run("Error_CallbackRollsBack", func(t *testing.T) {
		id := uuid.New()
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT (.+) FOR UPDATE").WithArgs(id).WillReturnRows(pendingRow(id))
		mock.ExpectRollback()

		_, err := repo.ClaimForUpdate(ctx, id, false, func(*domain.Transaction) (domain.TransactionStatus, error) {
			return "", domain.RemoteService(nil, "ledger unavailable")
		})
		assert.Equal(t, domain.KindRemoteService, domain.KindOf(err))
	})

	t.Run("SkipLocked_Claimed", func(t *testing.T) {
		id := uuid.New()
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT (.+) FOR UPDATE SKIP LOCKED").
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows(transactionCols))
		mock.ExpectRollback()

		called := false
		_, err := repo.ClaimForUpdate(ctx, id, true, func(*domain.Transaction) (domain.TransactionStatus, error) {
			called = true
			return domain.TransactionStatusCancelled, nil
		})
		assert.ErrorIs(t, err, repository.ErrClaimed)
		assert.False(t, called)
	})

	t.Run("Error_NotFound", func(t *testing.T) {
		id := uuid.New()
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT (.+) FOR UPDATE").WithArgs(id).WillReturnRows(sqlmock.NewRows(transactionCols))
		mock.ExpectRollback()

		_, err := repo.ClaimForUpdate(ctx, id, false, func(*domain.Transaction) (domain.TransactionStatus, error) {
			return domain.TransactionStatusSuccess, nil
		})
		assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_ListByAccount(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := postgres.NewTransactionRepository(db)
	ctx := context.Background()
	acc := uuid.New()

	t.Run("Success with type filter", func(t *testing.T) {
		mock.ExpectQuery("SELECT count\\(\\*\\) FROM transactions WHERE").
			WithArgs(acc, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectQuery("SELECT (.+) FROM transactions WHERE (.+) type = ANY\\(\\$2\\) ORDER BY timestamp DESC LIMIT \\$3 OFFSET \\$4").
			WithArgs(acc, sqlmock.AnyArg(), int32(10), int64(0)).
			WillReturnRows(sqlmock.NewRows(transactionCols).AddRow(
				uuid.NewString(), "DEPOSIT", nil, acc.String(), "100.00", "SUCCESS", time.Now(), nil, nil, "",
			))

		txs, total, err := repo.ListByAccount(ctx, domain.TransactionFilter{
			AccountID: acc,
			Types:     []domain.TransactionType{domain.TransactionTypeDeposit},
			Page:      1,
			PageSize:  10,
		})
		require.NoError(t, err)
		assert.Equal(t, int32(1), total)
		assert.Len(t, txs, 1)
	})

	t.Run("PageBeyondTotal", func(t *testing.T) {
		mock.ExpectQuery("SELECT count\\(\\*\\) FROM transactions WHERE").
			WithArgs(acc).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

		txs, total, err := repo.ListByAccount(ctx, domain.TransactionFilter{
			AccountID: acc,
			Page:      math.MaxInt32,
			PageSize:  100,
		})
		require.NoError(t, err)
		assert.Equal(t, int32(3), total)
		assert.Empty(t, txs)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_CountPendingByStaff(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := postgres.NewTransactionRepository(db)
	s1, s2 := uuid.New(), uuid.New()

	mock.ExpectQuery("SELECT staff_id, count\\(\\*\\) FROM transactions").
		WithArgs(domain.TransactionTypeCounterDeposit, domain.TransactionStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"staff_id", "count"}).AddRow(s1.String(), 2).AddRow(s2.String(), 1))

	counts, err := repo.CountPendingByStaff(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[uuid.UUID]int{s1: 2, s2: 1}, counts)
	assert.NoError(t, mock.ExpectationsWereMet())
}
