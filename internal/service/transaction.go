package service

import (
	"context"
	"time"

	"minibank-core/internal/domain"
	"minibank-core/internal/events"
	"minibank-core/internal/logger"
	"minibank-core/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	defaultPageSize int32 = 20
	maxPageSize     int32 = 100
)

type transactionService struct {
	ledger LedgerClient
	txRepo repository.TransactionRepository
	sink   events.Sink
}

func NewTransactionService(ledger LedgerClient, txRepo repository.TransactionRepository, sink events.Sink) TransactionService {
	return &transactionService{
		ledger: ledger,
		txRepo: txRepo,
		sink:   sink,
	}
}

// resolveActiveAccount loads the caller's account and fails fast when it
// cannot move money. The ledger repeats the check under its row lock.
func (s *transactionService) resolveActiveAccount(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	acc, err := s.ledger.GetAccountByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !acc.IsActive() {
		return nil, domain.Conflict("account is %s", acc.Status)
	}
	return acc, nil
}

func (s *transactionService) Deposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*domain.Transaction, error) {
	logger.EnterMethod("transactionService.Deposit", "userID", userID, "amount", amount)

	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	acc, err := s.resolveActiveAccount(ctx, userID)
	if err != nil {
		logger.ExitMethodWithError("transactionService.Deposit", err, "userID", userID)
		return nil, err
	}

	updated, err := s.ledger.UpdateBalance(ctx, acc.ID, domain.BalanceOperationDeposit, amount)
	if err != nil {
		logger.ExitMethodWithError("transactionService.Deposit", err, "accountID", acc.ID)
		return nil, err
	}

	tx := &domain.Transaction{
		Type:        domain.TransactionTypeDeposit,
		ToAccountID: &acc.ID,
		Amount:      amount,
		Status:      domain.TransactionStatusSuccess,
	}
	if err := s.record(ctx, tx, updated.Balance); err != nil {
		return nil, err
	}
	s.publishCompleted(ctx, tx, userID)

	logger.ExitMethod("transactionService.Deposit", "transactionID", tx.ID)
	return tx, nil
}

func (s *transactionService) Withdraw(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*domain.Transaction, error) {
	logger.EnterMethod("transactionService.Withdraw", "userID", userID, "amount", amount)

	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	acc, err := s.resolveActiveAccount(ctx, userID)
	if err != nil {
		logger.ExitMethodWithError("transactionService.Withdraw", err, "userID", userID)
		return nil, err
	}
	if acc.Balance.LessThan(amount) {
		return nil, domain.InsufficientFunds("insufficient balance")
	}

	updated, err := s.ledger.UpdateBalance(ctx, acc.ID, domain.BalanceOperationWithdraw, amount)
	if err != nil {
		logger.ExitMethodWithError("transactionService.Withdraw", err, "accountID", acc.ID)
		return nil, err
	}

	tx := &domain.Transaction{
		Type:          domain.TransactionTypeWithdraw,
		FromAccountID: &acc.ID,
		Amount:        amount,
		Status:        domain.TransactionStatusSuccess,
	}
	if err := s.record(ctx, tx, updated.Balance); err != nil {
		return nil, err
	}
	s.publishCompleted(ctx, tx, userID)

	logger.ExitMethod("transactionService.Withdraw", "transactionID", tx.ID)
	return tx, nil
}

func (s *transactionService) Transfer(ctx context.Context, userID, toAccountID uuid.UUID, amount decimal.Decimal) (*domain.Transaction, error) {
	logger.EnterMethod("transactionService.Transfer", "userID", userID, "toAccountID", toAccountID, "amount", amount)

	if toAccountID == uuid.Nil {
		return nil, domain.Validation("toAccountId is required")
	}
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	acc, err := s.resolveActiveAccount(ctx, userID)
	if err != nil {
		logger.ExitMethodWithError("transactionService.Transfer", err, "userID", userID)
		return nil, err
	}
	if acc.ID == toAccountID {
		return nil, domain.Conflict("cannot transfer to the same account")
	}
	if acc.Balance.LessThan(amount) {
		return nil, domain.InsufficientFunds("insufficient balance")
	}

	from, err := s.ledger.Transfer(ctx, acc.ID, toAccountID, amount)
	if err != nil {
		logger.ExitMethodWithError("transactionService.Transfer", err, "fromID", acc.ID, "toID", toAccountID)
		return nil, err
	}

	to := toAccountID
	tx := &domain.Transaction{
		Type:          domain.TransactionTypeTransfer,
		FromAccountID: &acc.ID,
		ToAccountID:   &to,
		Amount:        amount,
		Status:        domain.TransactionStatusSuccess,
	}
	if err := s.record(ctx, tx, from.Balance); err != nil {
		return nil, err
	}
	s.publishCompleted(ctx, tx, userID)

	logger.ExitMethod("transactionService.Transfer", "transactionID", tx.ID)
	return tx, nil
}

// record persists the audit row for a ledger call that already committed.
// A failure here leaves the balance changed without a record; it is logged
// for reconciliation and reported as internal so the caller does not retry
// blindly.
func (s *transactionService) record(ctx context.Context, tx *domain.Transaction, balance decimal.Decimal) error {
	if err := s.txRepo.Create(ctx, tx); err != nil {
		logger.ErrorContext(ctx, "Ledger call committed but transaction record failed",
			"type", tx.Type, "amount", tx.Amount, "from", tx.FromAccountID, "to", tx.ToAccountID, "error", err)
		return domain.Internal(err, "balance updated but the transaction record could not be saved")
	}
	tx.NewBalance = &balance
	return nil
}

func (s *transactionService) publishCompleted(ctx context.Context, tx *domain.Transaction, userID uuid.UUID) {
	publishTransactionCompleted(ctx, s.sink, tx, userID)
}

func publishTransactionCompleted(ctx context.Context, sink events.Sink, tx *domain.Transaction, userID uuid.UUID) {
	evt := domain.TransactionEvent{
		Type:            tx.Type,
		TransactionID:   tx.ID.String(),
		UserID:          userID.String(),
		Amount:          tx.Amount.StringFixed(2),
		Status:          tx.Status,
		TransactionCode: tx.TransactionCode,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
	}
	if tx.FromAccountID != nil {
		evt.FromAccount = tx.FromAccountID.String()
	}
	if tx.ToAccountID != nil {
		evt.ToAccount = tx.ToAccountID.String()
	}
	sink.Publish(ctx, domain.TopicTransactionCompleted, tx.ID.String(), evt)
}

func (s *transactionService) History(ctx context.Context, userID uuid.UUID, types []domain.TransactionType, page, pageSize int32) ([]domain.Transaction, int32, error) {
	for _, t := range types {
		if !t.Valid() {
			return nil, 0, domain.Validation("unknown transaction type %q", t)
		}
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	acc, err := s.ledger.GetAccountByUser(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	return s.txRepo.ListByAccount(ctx, domain.TransactionFilter{
		AccountID: acc.ID,
		Types:     types,
		Page:      page,
		PageSize:  pageSize,
	})
}

// GetTransaction returns the transaction only to a party of it: the owner
// of either account or the assigned counter staff. Everyone else gets NotFound.
func (s *transactionService) GetTransaction(ctx context.Context, userID, transactionID uuid.UUID) (*domain.Transaction, error) {
	tx, err := s.txRepo.GetByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.StaffID != nil && *tx.StaffID == userID {
		return tx, nil
	}
	acc, err := s.ledger.GetAccountByUser(ctx, userID)
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			return nil, domain.NotFound("transaction %s not found", transactionID)
		}
		return nil, err
	}
	if !tx.InvolvesAccount(acc.ID) {
		return nil, domain.NotFound("transaction %s not found", transactionID)
	}
	return tx, nil
}
