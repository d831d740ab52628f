package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"minibank-core/internal/domain"
	"minibank-core/internal/logger"
	"minibank-core/internal/repository"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const transactionColumns = `id, type, from_account, to_account, amount, status, timestamp, staff_id, counter_id, COALESCE(transaction_code, '')`

type transactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) repository.TransactionRepository {
	return &transactionRepository{db: db}
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var (
		tx                 domain.Transaction
		from, to           uuid.NullUUID
		staffID, counterID uuid.NullUUID
	)
	err := row.Scan(&tx.ID, &tx.Type, &from, &to, &tx.Amount, &tx.Status, &tx.Timestamp, &staffID, &counterID, &tx.TransactionCode)
	if err != nil {
		return nil, err
	}
	tx.FromAccountID = uuidPtr(from)
	tx.ToAccountID = uuidPtr(to)
	tx.StaffID = uuidPtr(staffID)
	tx.CounterID = uuidPtr(counterID)
	return &tx, nil
}

func collectTransactions(rows *sql.Rows) ([]domain.Transaction, error) {
	defer rows.Close()
	var txs []domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, *tx)
	}
	return txs, rows.Err()
}

func (r *transactionRepository) Create(ctx context.Context, tx *domain.Transaction) error {
	logger.EnterMethod("transactionRepository.Create", "type", tx.Type, "status", tx.Status)

	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = time.Now().UTC()
	}
	query := `INSERT INTO transactions (id, type, from_account, to_account, amount, status, timestamp, staff_id, counter_id, transaction_code)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.db.ExecContext(ctx, query,
		tx.ID, tx.Type, tx.FromAccountID, tx.ToAccountID, tx.Amount, tx.Status, tx.Timestamp,
		tx.StaffID, tx.CounterID, nullString(tx.TransactionCode),
	)
	if err != nil {
		logger.ExitMethodWithError("transactionRepository.Create", err, "transactionID", tx.ID)
		return err
	}

	logger.ExitMethod("transactionRepository.Create", "transactionID", tx.ID)
	return nil
}

func (r *transactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	tx, err := scanTransaction(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFoundOr(err, "transaction %s not found", id)
	}
	return tx, nil
}

// ClaimForUpdate holds the row lock from SELECT ... FOR UPDATE while fn runs,
// so a confirm that is crediting the ledger blocks cancel and expiry in every
// process until its status is committed.
func (r *transactionRepository) ClaimForUpdate(ctx context.Context, id uuid.UUID, skipLocked bool, fn repository.ClaimFunc) (*domain.Transaction, error) {
	logger.EnterMethod("transactionRepository.ClaimForUpdate", "transactionID", id, "skipLocked", skipLocked)

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer dbTx.Rollback()

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 FOR UPDATE`
	if skipLocked {
		query += ` SKIP LOCKED`
	}
	logger.DatabaseCall("ClaimForUpdate", query, "transactionID", id)
	tx, err := scanTransaction(dbTx.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) && skipLocked {
		return nil, repository.ErrClaimed
	}
	if err != nil {
		logger.ExitMethodWithError("transactionRepository.ClaimForUpdate", err, "transactionID", id)
		return nil, notFoundOr(err, "transaction %s not found", id)
	}

	next, err := fn(tx)
	if err != nil {
		logger.ExitMethodWithError("transactionRepository.ClaimForUpdate", err, "transactionID", id)
		return nil, err
	}
	if next != tx.Status {
		res, err := dbTx.ExecContext(ctx, `UPDATE transactions SET status = $1 WHERE id = $2`, next, id)
		if err != nil {
			return nil, fmt.Errorf("failed to store status %s: %w", next, err)
		}
		n, _ := res.RowsAffected()
		logger.DatabaseResult("ClaimForUpdate", n, nil)
	}
	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit status %s: %w", next, err)
	}
	tx.Status = next

	logger.ExitMethod("transactionRepository.ClaimForUpdate", "transactionID", id, "status", next)
	return tx, nil
}

func (r *transactionRepository) ListByAccount(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, int32, error) {
	where := `WHERE (from_account = $1 OR to_account = $1)`
	args := []interface{}{filter.AccountID}
	if len(filter.Types) > 0 {
		types := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			types[i] = string(t)
		}
		where += ` AND type = ANY($2)`
		args = append(args, pq.Array(types))
	}

	var count int32
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM transactions `+where, args...).Scan(&count); err != nil {
		return nil, 0, err
	}

	offset := (int64(filter.Page) - 1) * int64(filter.PageSize)
	if offset < 0 {
		offset = 0
	}
	if offset >= int64(count) {
		return []domain.Transaction{}, count, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM transactions %s ORDER BY timestamp DESC LIMIT $%d OFFSET $%d`,
		transactionColumns, where, len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, query, append(args, filter.PageSize, offset)...)
	if err != nil {
		return nil, 0, err
	}
	txs, err := collectTransactions(rows)
	if err != nil {
		return nil, 0, err
	}
	return txs, count, nil
}

func (r *transactionRepository) ListPendingByStaff(ctx context.Context, staffID uuid.UUID) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
	          WHERE staff_id = $1 AND type = $2 AND status = $3 ORDER BY timestamp ASC`
	rows, err := r.db.QueryContext(ctx, query, staffID, domain.TransactionTypeCounterDeposit, domain.TransactionStatusPending)
	if err != nil {
		return nil, err
	}
	return collectTransactions(rows)
}

func (r *transactionRepository) ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
	          WHERE type = $1 AND status = $2 AND timestamp < $3 ORDER BY timestamp ASC`
	rows, err := r.db.QueryContext(ctx, query, domain.TransactionTypeCounterDeposit, domain.TransactionStatusPending, cutoff)
	if err != nil {
		return nil, err
	}
	return collectTransactions(rows)
}

func (r *transactionRepository) CountPendingByStaff(ctx context.Context) (map[uuid.UUID]int, error) {
	query := `SELECT staff_id, count(*) FROM transactions
	          WHERE type = $1 AND status = $2 AND staff_id IS NOT NULL GROUP BY staff_id`
	rows, err := r.db.QueryContext(ctx, query, domain.TransactionTypeCounterDeposit, domain.TransactionStatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[uuid.UUID]int)
	for rows.Next() {
		var staffID uuid.UUID
		var n int
		if err := rows.Scan(&staffID, &n); err != nil {
			return nil, err
		}
		counts[staffID] = n
	}
	return counts, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
