package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"minibank-core/internal/domain"
	"minibank-core/internal/logger"
	"minibank-core/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const accountColumns = `id, user_id, account_number, balance, status, created_at, updated_at`

type accountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) repository.AccountRepository {
	return &accountRepository{db: db}
}

func scanAccount(row rowScanner) (*domain.Account, error) {
	acc := &domain.Account{}
	err := row.Scan(&acc.ID, &acc.UserID, &acc.AccountNumber, &acc.Balance, &acc.Status, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return acc, nil
}

func (r *accountRepository) Create(ctx context.Context, acc *domain.Account) error {
	logger.EnterMethod("accountRepository.Create", "userID", acc.UserID)

	query := `INSERT INTO accounts (` + accountColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	now := time.Now().UTC()
	if acc.ID == uuid.Nil {
		acc.ID = uuid.New()
	}
	acc.CreatedAt, acc.UpdatedAt = now, now

	_, err := r.db.ExecContext(ctx, query, acc.ID, acc.UserID, acc.AccountNumber, acc.Balance, acc.Status, now, now)
	if err != nil {
		logger.ExitMethodWithError("accountRepository.Create", err, "userID", acc.UserID)
		if constraint, ok := uniqueConstraint(err); ok {
			if strings.Contains(constraint, "account_number") {
				return repository.ErrDuplicateAccountNumber
			}
			return domain.Conflict("account for user %s already exists", acc.UserID)
		}
		return err
	}

	logger.ExitMethod("accountRepository.Create", "accountID", acc.ID)
	return nil
}

func (r *accountRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	acc, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFoundOr(err, "account %s not found", id)
	}
	return acc, nil
}

func (r *accountRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1`
	acc, err := scanAccount(r.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		return nil, notFoundOr(err, "account for user %s not found", userID)
	}
	return acc, nil
}

func (r *accountRepository) GetByAccountNumber(ctx context.Context, number string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_number = $1`
	acc, err := scanAccount(r.db.QueryRowContext(ctx, query, number))
	if err != nil {
		return nil, notFoundOr(err, "account %s not found", number)
	}
	return acc, nil
}

// lockAccount takes the row lock for the rest of tx.
func lockAccount(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`
	logger.DatabaseCall("lockAccount", query, "accountID", id)
	acc, err := scanAccount(tx.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFoundOr(err, "account %s not found", id)
	}
	return acc, nil
}

func saveBalance(ctx context.Context, tx *sql.Tx, acc *domain.Account) error {
	acc.UpdatedAt = time.Now().UTC()
	_, err := tx.ExecContext(ctx, `UPDATE accounts SET balance = $1, updated_at = $2 WHERE id = $3`, acc.Balance, acc.UpdatedAt, acc.ID)
	return err
}

func (r *accountRepository) UpdateBalance(ctx context.Context, id uuid.UUID, op domain.BalanceOperation, amount decimal.Decimal) (*domain.Account, error) {
	logger.EnterMethod("accountRepository.UpdateBalance", "accountID", id, "operation", op, "amount", amount)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	acc, err := lockAccount(ctx, tx, id)
	if err != nil {
		logger.ExitMethodWithError("accountRepository.UpdateBalance", err, "accountID", id)
		return nil, err
	}
	balance, err := domain.ApplyBalance(acc, op, amount)
	if err != nil {
		logger.ExitMethodWithError("accountRepository.UpdateBalance", err, "accountID", id)
		return nil, err
	}
	acc.Balance = balance
	if err := saveBalance(ctx, tx, acc); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	logger.ExitMethod("accountRepository.UpdateBalance", "accountID", id, "balance", acc.Balance)
	return acc, nil
}

func (r *accountRepository) Transfer(ctx context.Context, fromID, toID uuid.UUID, amount decimal.Decimal) (*domain.Account, *domain.Account, error) {
	logger.EnterMethod("accountRepository.Transfer", "fromID", fromID, "toID", toID, "amount", amount)

	if fromID == toID {
		return nil, nil, domain.Conflict("cannot transfer to the same account")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	firstID, secondID := domain.OrderPair(fromID, toID)
	first, err := lockAccount(ctx, tx, firstID)
	if err != nil {
		return nil, nil, err
	}
	second, err := lockAccount(ctx, tx, secondID)
	if err != nil {
		return nil, nil, err
	}

	from, to := first, second
	if from.ID != fromID {
		from, to = second, first
	}
	if err := debitCredit(from, to, amount); err != nil {
		logger.ExitMethodWithError("accountRepository.Transfer", err, "fromID", fromID, "toID", toID)
		return nil, nil, err
	}

	if err := saveBalance(ctx, tx, first); err != nil {
		return nil, nil, err
	}
	if err := saveBalance(ctx, tx, second); err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}

	logger.ExitMethod("accountRepository.Transfer", "fromID", fromID, "toID", toID)
	return from, to, nil
}

// debitCredit moves amount between two locked accounts. Neither is modified
// when an error is returned.
func debitCredit(from, to *domain.Account, amount decimal.Decimal) error {
	if !from.IsActive() {
		return domain.Conflict("source account %s is %s", from.ID, from.Status)
	}
	if !to.IsActive() {
		return domain.Conflict("destination account %s is %s", to.ID, to.Status)
	}
	fromBalance, err := domain.ApplyBalance(from, domain.BalanceOperationWithdraw, amount)
	if err != nil {
		return err
	}
	toBalance, err := domain.ApplyBalance(to, domain.BalanceOperationDeposit, amount)
	if err != nil {
		return err
	}
	from.Balance, to.Balance = fromBalance, toBalance
	return nil
}

func (r *accountRepository) ApplyStatus(ctx context.Context, id uuid.UUID, cmd domain.StatusCommand) (*domain.Account, domain.AccountAction, bool, error) {
	logger.EnterMethod("accountRepository.ApplyStatus", "accountID", id, "command", cmd)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, "", false, err
	}
	defer tx.Rollback()

	acc, err := lockAccount(ctx, tx, id)
	if err != nil {
		return nil, "", false, err
	}
	next, action, changed, err := domain.NextStatus(acc.Status, cmd)
	if err != nil {
		logger.ExitMethodWithError("accountRepository.ApplyStatus", err, "accountID", id)
		return nil, "", false, err
	}
	if !changed {
		logger.ExitMethod("accountRepository.ApplyStatus", "accountID", id, "changed", false)
		return acc, "", false, nil
	}

	acc.Status = next
	acc.UpdatedAt = time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `UPDATE accounts SET status = $1, updated_at = $2 WHERE id = $3`, acc.Status, acc.UpdatedAt, acc.ID); err != nil {
		return nil, "", false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, "", false, err
	}

	logger.ExitMethod("accountRepository.ApplyStatus", "accountID", id, "status", acc.Status)
	return acc, action, true, nil
}
