package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"minibank-core/internal/domain"
	"minibank-core/internal/events"
	"minibank-core/internal/logger"
	"minibank-core/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type counterDepositService struct {
	ledger   LedgerClient
	txRepo   repository.TransactionRepository
	counters repository.CounterRepository
	load     *StaffLoad
	sink     events.Sink
	now      func() time.Time
}

func NewCounterDepositService(
	ledger LedgerClient,
	txRepo repository.TransactionRepository,
	counters repository.CounterRepository,
	load *StaffLoad,
	sink events.Sink,
) CounterDepositService {
	return &counterDepositService{
		ledger:   ledger,
		txRepo:   txRepo,
		counters: counters,
		load:     load,
		sink:     sink,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// transactionCode builds employeeCode + last four of citizenID + ddMMyy.
func transactionCode(staffID uuid.UUID, employeeCode, citizenID string, at time.Time) string {
	if employeeCode == "" {
		employeeCode = strings.ToUpper(strings.ReplaceAll(staffID.String(), "-", "")[:8])
	}
	suffix := "0000"
	if len(citizenID) >= 4 {
		suffix = citizenID[len(citizenID)-4:]
	}
	return employeeCode + suffix + at.Format("020106")
}

func (s *counterDepositService) AssignStaff(ctx context.Context, counterID uuid.UUID) (uuid.UUID, error) {
	if _, err := s.counters.GetActiveByID(ctx, counterID); err != nil {
		return uuid.Nil, err
	}
	staff, err := s.counters.ListActiveStaff(ctx, counterID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to list counter staff: %w", err)
	}

	candidates := make([]uuid.UUID, 0, len(staff))
	for _, cs := range staff {
		candidates = append(candidates, cs.UserID)
	}
	staffID, ok := s.load.Assign(candidates)
	if !ok {
		return uuid.Nil, domain.Conflict("counter has no active staff")
	}
	return staffID, nil
}

func (s *counterDepositService) RequestDeposit(ctx context.Context, userID, counterID uuid.UUID, amount decimal.Decimal) (*domain.Transaction, error) {
	logger.EnterMethod("counterDepositService.RequestDeposit", "userID", userID, "counterID", counterID, "amount", amount)

	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	if counterID == uuid.Nil {
		return nil, domain.Validation("counterId is required")
	}
	acc, err := s.ledger.GetAccountByUser(ctx, userID)
	if err != nil {
		logger.ExitMethodWithError("counterDepositService.RequestDeposit", err, "userID", userID)
		return nil, err
	}
	if !acc.IsActive() {
		return nil, domain.Conflict("account is %s", acc.Status)
	}

	staffID, err := s.AssignStaff(ctx, counterID)
	if err != nil {
		logger.ExitMethodWithError("counterDepositService.RequestDeposit", err, "counterID", counterID)
		return nil, err
	}

	now := s.now()
	tx := &domain.Transaction{
		Type:            domain.TransactionTypeCounterDeposit,
		ToAccountID:     &acc.ID,
		Amount:          amount,
		Status:          domain.TransactionStatusPending,
		Timestamp:       now,
		StaffID:         &staffID,
		CounterID:       &counterID,
		TransactionCode: transactionCode(staffID, "", "", now),
	}
	if err := s.txRepo.Create(ctx, tx); err != nil {
		s.load.Release(staffID)
		logger.ExitMethodWithError("counterDepositService.RequestDeposit", err, "userID", userID)
		return nil, fmt.Errorf("failed to create counter deposit: %w", err)
	}

	s.publishNotification(ctx, tx, userID)
	logger.ExitMethod("counterDepositService.RequestDeposit", "transactionID", tx.ID, "staffID", staffID)
	return tx, nil
}

func requirePending(tx *domain.Transaction) error {
	if tx.Type != domain.TransactionTypeCounterDeposit {
		return domain.Conflict("transaction %s is not a counter deposit", tx.ID)
	}
	if tx.Status != domain.TransactionStatusPending {
		return domain.Conflict("transaction %s is already %s", tx.ID, tx.Status)
	}
	return nil
}

// ConfirmDeposit credits the ledger while holding the transaction claim.
// Cancel and expiry cannot change the status until the claim is released,
// so a credited deposit always ends SUCCESS.
func (s *counterDepositService) ConfirmDeposit(ctx context.Context, staffID, transactionID uuid.UUID) (*domain.Transaction, error) {
	logger.EnterMethod("counterDepositService.ConfirmDeposit", "staffID", staffID, "transactionID", transactionID)

	var acc *domain.Account
	tx, err := s.txRepo.ClaimForUpdate(ctx, transactionID, false, func(tx *domain.Transaction) (domain.TransactionStatus, error) {
		if err := requirePending(tx); err != nil {
			return "", err
		}
		if tx.StaffID == nil || *tx.StaffID != staffID {
			return "", domain.Validation("transaction %s is not assigned to this staff member", transactionID)
		}
		if tx.ToAccountID == nil {
			return "", domain.Internal(nil, "counter deposit %s has no target account", transactionID)
		}
		// A failed credit leaves the deposit PENDING for a retry.
		credited, err := s.ledger.UpdateBalance(ctx, *tx.ToAccountID, domain.BalanceOperationDeposit, tx.Amount)
		if err != nil {
			return "", err
		}
		acc = credited
		return domain.TransactionStatusSuccess, nil
	})
	if err != nil {
		if acc != nil {
			logger.ErrorContext(ctx, "Counter deposit credited but status was not stored",
				"transactionID", transactionID, "accountID", acc.ID, "error", err)
		}
		logger.ExitMethodWithError("counterDepositService.ConfirmDeposit", err, "transactionID", transactionID)
		return nil, err
	}
	s.load.Release(staffID)

	tx.NewBalance = &acc.Balance
	publishTransactionCompleted(ctx, s.sink, tx, acc.UserID)

	logger.ExitMethod("counterDepositService.ConfirmDeposit", "transactionID", tx.ID, "balance", acc.Balance)
	return tx, nil
}

func (s *counterDepositService) CancelDeposit(ctx context.Context, callerID, transactionID uuid.UUID) (*domain.Transaction, error) {
	logger.EnterMethod("counterDepositService.CancelDeposit", "callerID", callerID, "transactionID", transactionID)

	var ownerID uuid.UUID
	tx, err := s.txRepo.ClaimForUpdate(ctx, transactionID, false, func(tx *domain.Transaction) (domain.TransactionStatus, error) {
		owner, err := s.authorizeCancel(ctx, callerID, tx)
		if err != nil {
			return "", err
		}
		if err := requirePending(tx); err != nil {
			return "", err
		}
		ownerID = owner
		return domain.TransactionStatusCancelled, nil
	})
	if err != nil {
		logger.ExitMethodWithError("counterDepositService.CancelDeposit", err, "transactionID", transactionID)
		return nil, err
	}

	s.afterCancel(ctx, tx, ownerID)
	logger.ExitMethod("counterDepositService.CancelDeposit", "transactionID", tx.ID)
	return tx, nil
}

// authorizeCancel allows the assigned staff member or the owner of the target
// account. It returns the account owner's user id for the notification.
func (s *counterDepositService) authorizeCancel(ctx context.Context, callerID uuid.UUID, tx *domain.Transaction) (uuid.UUID, error) {
	notFound := domain.NotFound("transaction %s not found", tx.ID)
	if tx.ToAccountID == nil {
		return uuid.Nil, notFound
	}
	acc, err := s.ledger.GetAccount(ctx, *tx.ToAccountID)
	if err != nil {
		return uuid.Nil, err
	}
	if acc.UserID == callerID || (tx.StaffID != nil && *tx.StaffID == callerID) {
		return acc.UserID, nil
	}
	return uuid.Nil, notFound
}

func (s *counterDepositService) afterCancel(ctx context.Context, tx *domain.Transaction, ownerID uuid.UUID) {
	if tx.StaffID != nil {
		s.load.Release(*tx.StaffID)
	}
	s.publishNotification(ctx, tx, ownerID)
}

func (s *counterDepositService) ListPendingForStaff(ctx context.Context, staffID uuid.UUID) ([]domain.Transaction, error) {
	return s.txRepo.ListPendingByStaff(ctx, staffID)
}

func (s *counterDepositService) requireAdmin(ctx context.Context, adminID, counterID uuid.UUID) (*domain.Counter, error) {
	counter, err := s.counters.GetActiveByID(ctx, counterID)
	if err != nil {
		return nil, err
	}
	if counter.AdminUserID == nil || *counter.AdminUserID != adminID {
		return nil, domain.Validation("caller is not the admin of counter %s", counterID)
	}
	return counter, nil
}

func (s *counterDepositService) AddStaff(ctx context.Context, adminID, counterID, staffUserID uuid.UUID) (*domain.CounterStaff, error) {
	logger.EnterMethod("counterDepositService.AddStaff", "adminID", adminID, "counterID", counterID, "staffUserID", staffUserID)

	if staffUserID == uuid.Nil {
		return nil, domain.Validation("userId is required")
	}
	counter, err := s.requireAdmin(ctx, adminID, counterID)
	if err != nil {
		logger.ExitMethodWithError("counterDepositService.AddStaff", err, "counterID", counterID)
		return nil, err
	}

	existing, err := s.counters.GetStaff(ctx, counterID, staffUserID)
	switch {
	case err == nil && existing.IsActive:
		return existing, nil
	case err != nil && !domain.IsKind(err, domain.KindNotFound):
		return nil, err
	}

	active, err := s.counters.ListActiveStaff(ctx, counterID)
	if err != nil {
		return nil, fmt.Errorf("failed to list counter staff: %w", err)
	}
	if len(active) >= counter.MaxStaff {
		return nil, domain.Conflict("counter has reached its maximum of %d staff", counter.MaxStaff)
	}

	cs := &domain.CounterStaff{CounterID: counterID, UserID: staffUserID, IsActive: true}
	if err := s.counters.SaveStaff(ctx, cs); err != nil {
		return nil, fmt.Errorf("failed to save counter staff: %w", err)
	}
	logger.ExitMethod("counterDepositService.AddStaff", "staffID", cs.ID)
	return cs, nil
}

// RemoveStaff deactivates the membership. Deposits already assigned to the
// staff member stay with them until confirmed, cancelled or expired.
func (s *counterDepositService) RemoveStaff(ctx context.Context, adminID, counterID, staffUserID uuid.UUID) error {
	if _, err := s.requireAdmin(ctx, adminID, counterID); err != nil {
		return err
	}
	cs, err := s.counters.GetStaff(ctx, counterID, staffUserID)
	if err != nil {
		return err
	}
	if !cs.IsActive {
		return nil
	}
	cs.IsActive = false
	if err := s.counters.SaveStaff(ctx, cs); err != nil {
		return fmt.Errorf("failed to save counter staff: %w", err)
	}
	logger.InfoContext(ctx, "Staff removed from counter", "counterID", counterID, "staffUserID", staffUserID)
	return nil
}

// ExpireStale cancels PENDING counter deposits created before now-olderThan.
// Deposits claimed by a concurrent confirm or cancel are skipped.
func (s *counterDepositService) ExpireStale(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := s.now().Add(-olderThan)
	stale, err := s.txRepo.ListPendingOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale counter deposits: %w", err)
	}

	expired := 0
	for i := range stale {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		if s.expireOne(ctx, stale[i].ID) {
			expired++
		}
	}
	logger.Info("Expired stale counter deposits", "count", expired, "cutoff", cutoff)
	return expired, nil
}

func (s *counterDepositService) expireOne(ctx context.Context, id uuid.UUID) bool {
	tx, err := s.txRepo.ClaimForUpdate(ctx, id, true, func(tx *domain.Transaction) (domain.TransactionStatus, error) {
		if err := requirePending(tx); err != nil {
			return "", err
		}
		return domain.TransactionStatusCancelled, nil
	})
	if err != nil {
		logger.Warn("Skipping counter deposit expiry", "transactionID", id, "error", err)
		return false
	}

	var ownerID uuid.UUID
	if tx.ToAccountID != nil {
		if acc, err := s.ledger.GetAccount(ctx, *tx.ToAccountID); err == nil {
			ownerID = acc.UserID
		}
	}
	s.afterCancel(ctx, tx, ownerID)
	return true
}

func (s *counterDepositService) ReconcileLoad(ctx context.Context) error {
	if err := s.load.Seed(ctx, s.txRepo); err != nil {
		return fmt.Errorf("failed to reconcile staff load: %w", err)
	}
	return nil
}

func (s *counterDepositService) publishNotification(ctx context.Context, tx *domain.Transaction, userID uuid.UUID) {
	evt := domain.CounterDepositEvent{
		TransactionID:   tx.ID.String(),
		TransactionCode: tx.TransactionCode,
		Amount:          tx.Amount.StringFixed(2),
		Status:          tx.Status,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
	}
	if userID != uuid.Nil {
		evt.UserID = userID.String()
	}
	if tx.StaffID != nil {
		evt.StaffID = tx.StaffID.String()
	}
	if tx.CounterID != nil {
		evt.CounterID = tx.CounterID.String()
	}
	s.sink.Publish(ctx, domain.TopicCounterDepositNotification, tx.ID.String(), evt)
}
