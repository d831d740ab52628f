package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"minibank-core/internal/domain"
	"minibank-core/internal/events"
	"minibank-core/internal/logger"
	"minibank-core/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const accountNumberAttempts = 5

type accountService struct {
	repo          repository.AccountRepository
	sink          events.Sink
	accountNumber func() string
}

func NewAccountService(repo repository.AccountRepository, sink events.Sink) AccountService {
	return &accountService{
		repo:          repo,
		sink:          sink,
		accountNumber: randomAccountNumber,
	}
}

// randomAccountNumber returns 12 digits without a leading zero.
func randomAccountNumber() string {
	return fmt.Sprintf("%d", 100_000_000_000+rand.Int64N(900_000_000_000))
}

func (s *accountService) CreateAccount(ctx context.Context, userID uuid.UUID, initialBalance decimal.Decimal) (*domain.Account, error) {
	logger.EnterMethod("accountService.CreateAccount", "userID", userID)

	if userID == uuid.Nil {
		return nil, domain.Validation("userId is required")
	}
	if initialBalance.IsNegative() {
		return nil, domain.Validation("initial balance must not be negative")
	}

	for attempt := 1; attempt <= accountNumberAttempts; attempt++ {
		acc := &domain.Account{
			UserID:        userID,
			AccountNumber: s.accountNumber(),
			Balance:       initialBalance.Round(2),
			Status:        domain.AccountStatusActive,
		}
		err := s.repo.Create(ctx, acc)
		if errors.Is(err, repository.ErrDuplicateAccountNumber) {
			logger.Warn("Account number collision, retrying", "attempt", attempt)
			continue
		}
		if err != nil {
			logger.ExitMethodWithError("accountService.CreateAccount", err, "userID", userID)
			return nil, err
		}

		s.publish(ctx, acc, domain.AccountActionCreated)
		logger.ExitMethod("accountService.CreateAccount", "accountID", acc.ID)
		return acc, nil
	}
	return nil, domain.Internal(repository.ErrDuplicateAccountNumber, "could not allocate an account number")
}

func (s *accountService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *accountService) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	return s.repo.GetByUserID(ctx, userID)
}

func (s *accountService) GetByAccountNumber(ctx context.Context, number string) (*domain.Account, error) {
	return s.repo.GetByAccountNumber(ctx, number)
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return domain.Validation("amount must be greater than 0")
	}
	if !amount.Equal(amount.Round(2)) {
		return domain.Validation("amount must have at most 2 decimal places")
	}
	return nil
}

func (s *accountService) UpdateBalance(ctx context.Context, id uuid.UUID, op domain.BalanceOperation, amount decimal.Decimal) (*domain.Account, error) {
	if op != domain.BalanceOperationDeposit && op != domain.BalanceOperationWithdraw {
		return nil, domain.Validation("operation must be DEPOSIT or WITHDRAW")
	}
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	acc, err := s.repo.UpdateBalance(ctx, id, op, amount)
	if err != nil {
		return nil, err
	}
	logger.InfoContext(ctx, "Balance updated", "accountID", id, "operation", op, "amount", amount, "balance", acc.Balance)
	return acc, nil
}

func (s *accountService) Transfer(ctx context.Context, fromID, toID uuid.UUID, amount decimal.Decimal) (*domain.Account, *domain.Account, error) {
	if fromID == toID {
		return nil, nil, domain.Conflict("cannot transfer to the same account")
	}
	if err := validateAmount(amount); err != nil {
		return nil, nil, err
	}
	from, to, err := s.repo.Transfer(ctx, fromID, toID, amount)
	if err != nil {
		return nil, nil, err
	}
	logger.InfoContext(ctx, "Transfer applied", "fromID", fromID, "toID", toID, "amount", amount)
	return from, to, nil
}

func (s *accountService) Freeze(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return s.applyStatus(ctx, id, domain.StatusCommandFreeze)
}

func (s *accountService) Unfreeze(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return s.applyStatus(ctx, id, domain.StatusCommandUnfreeze)
}

func (s *accountService) Lock(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return s.applyStatus(ctx, id, domain.StatusCommandLock)
}

func (s *accountService) Unlock(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return s.applyStatus(ctx, id, domain.StatusCommandUnlock)
}

func (s *accountService) applyStatus(ctx context.Context, id uuid.UUID, cmd domain.StatusCommand) (*domain.Account, error) {
	acc, action, changed, err := s.repo.ApplyStatus(ctx, id, cmd)
	if err != nil {
		return nil, err
	}
	if changed {
		logger.InfoContext(ctx, "Account status changed", "accountID", id, "status", acc.Status)
		s.publish(ctx, acc, action)
	}
	return acc, nil
}

func (s *accountService) publish(ctx context.Context, acc *domain.Account, action domain.AccountAction) {
	s.sink.Publish(ctx, string(action), acc.ID.String(), domain.AccountEvent{
		Action:    action,
		AccountID: acc.ID.String(),
		UserID:    acc.UserID.String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
