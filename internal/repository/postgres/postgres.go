package postgres

import (
	"database/sql"
	"errors"

	"minibank-core/internal/domain"
	"minibank-core/internal/repository"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Store groups the repositories of one database. The ledger process uses
// AccountRepository; the orchestrator uses the other two.
type Store struct {
	repository.AccountRepository
	repository.TransactionRepository
	repository.CounterRepository
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		AccountRepository:     NewAccountRepository(db),
		TransactionRepository: NewTransactionRepository(db),
		CounterRepository:     NewCounterRepository(db),
	}
}

const uniqueViolation = "23505"

// uniqueConstraint returns the violated constraint name when err is a
// postgres unique violation.
func uniqueConstraint(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return pqErr.Constraint, true
	}
	return "", false
}

func notFoundOr(err error, format string, args ...any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFound(format, args...)
	}
	return err
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func uuidPtr(n uuid.NullUUID) *uuid.UUID {
	if !n.Valid {
		return nil
	}
	id := n.UUID
	return &id
}
