package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AccountStatus string

const (
	AccountStatusActive AccountStatus = "ACTIVE"
	AccountStatusFrozen AccountStatus = "FROZEN"
	AccountStatusLocked AccountStatus = "LOCKED"
)

type BalanceOperation string

const (
	BalanceOperationDeposit  BalanceOperation = "DEPOSIT"
	BalanceOperationWithdraw BalanceOperation = "WITHDRAW"
)

type Account struct {
	ID            uuid.UUID       `json:"id"`
	UserID        uuid.UUID       `json:"userId"`
	AccountNumber string          `json:"accountNumber"`
	Balance       decimal.Decimal `json:"balance"`
	Status        AccountStatus   `json:"status"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// IsActive reports whether balance mutations are allowed.
func (a *Account) IsActive() bool {
	return a.Status == AccountStatusActive
}

// OrderPair returns the two ids smallest first. Every path that locks two
// accounts must acquire them in this order.
func OrderPair(a, b uuid.UUID) (first, second uuid.UUID) {
	if CompareIDs(a, b) > 0 {
		return b, a
	}
	return a, b
}

// CompareIDs compares two uuids the way java.util.UUID does: most
// significant half first, then least significant half, both as signed
// 64-bit integers.
func CompareIDs(a, b uuid.UUID) int {
	am, al := halves(a)
	bm, bl := halves(b)
	switch {
	case am < bm:
		return -1
	case am > bm:
		return 1
	case al < bl:
		return -1
	case al > bl:
		return 1
	}
	return 0
}

func halves(id uuid.UUID) (int64, int64) {
	var msb, lsb uint64
	for i := 0; i < 8; i++ {
		msb = msb<<8 | uint64(id[i])
		lsb = lsb<<8 | uint64(id[i+8])
	}
	return int64(msb), int64(lsb)
}

// AccountAction names a ledger status change published to the event sink.
type AccountAction string

const (
	AccountActionCreated  AccountAction = "ACCOUNT_CREATED"
	AccountActionFrozen   AccountAction = "ACCOUNT_FROZEN"
	AccountActionUnfrozen AccountAction = "ACCOUNT_UNFROZEN"
	AccountActionLocked   AccountAction = "ACCOUNT_LOCKED"
	AccountActionUnlocked AccountAction = "ACCOUNT_UNLOCKED"
)

type StatusCommand string

const (
	StatusCommandFreeze   StatusCommand = "FREEZE"
	StatusCommandUnfreeze StatusCommand = "UNFREEZE"
	StatusCommandLock     StatusCommand = "LOCK"
	StatusCommandUnlock   StatusCommand = "UNLOCK"
)

// NextStatus applies cmd to current. changed is false when the account is
// already where cmd would put it, or cmd does not apply to it; in that case
// nothing should be persisted or published.
func NextStatus(current AccountStatus, cmd StatusCommand) (next AccountStatus, action AccountAction, changed bool, err error) {
	switch cmd {
	case StatusCommandFreeze:
		if current == AccountStatusLocked {
			return current, "", false, Conflict("account is locked")
		}
		if current == AccountStatusFrozen {
			return current, "", false, nil
		}
		return AccountStatusFrozen, AccountActionFrozen, true, nil
	case StatusCommandUnfreeze:
		if current == AccountStatusLocked {
			return current, "", false, Conflict("account is locked")
		}
		if current != AccountStatusFrozen {
			return current, "", false, nil
		}
		return AccountStatusActive, AccountActionUnfrozen, true, nil
	case StatusCommandLock:
		if current == AccountStatusLocked {
			return current, "", false, nil
		}
		return AccountStatusLocked, AccountActionLocked, true, nil
	case StatusCommandUnlock:
		if current != AccountStatusLocked {
			return current, "", false, nil
		}
		return AccountStatusActive, AccountActionUnlocked, true, nil
	}
	return current, "", false, Validation("unknown status command %q", cmd)
}

// ApplyBalance returns the balance after op. The account must already be
// locked by the caller.
func ApplyBalance(acc *Account, op BalanceOperation, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return acc.Balance, Validation("amount must be greater than 0")
	}
	if !acc.IsActive() {
		return acc.Balance, Conflict("account %s is %s", acc.ID, acc.Status)
	}
	switch op {
	case BalanceOperationDeposit:
		return acc.Balance.Add(amount), nil
	case BalanceOperationWithdraw:
		if acc.Balance.LessThan(amount) {
			return acc.Balance, InsufficientFunds("insufficient balance")
		}
		return acc.Balance.Sub(amount), nil
	}
	return acc.Balance, Validation("unknown operation %q", op)
}
