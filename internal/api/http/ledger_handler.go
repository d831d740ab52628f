package http

import (
	"context"
	"net/http"

	"minibank-core/internal/domain"
	"minibank-core/internal/service"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

// LedgerHandler serves the internal account API used by the orchestrator.
type LedgerHandler struct {
	accounts service.AccountService
}

func NewLedgerHandler(accounts service.AccountService) *LedgerHandler {
	return &LedgerHandler{accounts: accounts}
}

type createAccountRequest struct {
	UserID         uuid.UUID       `json:"userId" validate:"required"`
	InitialBalance decimal.Decimal `json:"initialBalance" validate:"nonneg_decimal"`
}

type updateBalanceRequest struct {
	Amount    decimal.Decimal         `json:"amount" validate:"positive_decimal"`
	Operation domain.BalanceOperation `json:"operation" validate:"required,oneof=DEPOSIT WITHDRAW"`
}

type transferRequest struct {
	FromAccountID uuid.UUID       `json:"fromAccountId" validate:"required"`
	ToAccountID   uuid.UUID       `json:"toAccountId" validate:"required"`
	Amount        decimal.Decimal `json:"amount" validate:"positive_decimal"`
}

type transferResponse struct {
	FromAccount *domain.Account `json:"fromAccount"`
	ToAccount   *domain.Account `json:"toAccount"`
}

func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		return uuid.Nil, domain.Validation("%s is not a valid id", name)
	}
	return id, nil
}

func (h *LedgerHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	writeError(r.Context(), w, err, ledgerStatus)
}

func (h *LedgerHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	acc, err := h.accounts.CreateAccount(r.Context(), req.UserID, req.InitialBalance)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, acc)
}

func (h *LedgerHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	acc, err := h.accounts.GetByID(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

func (h *LedgerHandler) GetAccountByUser(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userId")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	acc, err := h.accounts.GetByUserID(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

func (h *LedgerHandler) GetAccountByNumber(w http.ResponseWriter, r *http.Request) {
	acc, err := h.accounts.GetByAccountNumber(r.Context(), mux.Vars(r)["accountNumber"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

func (h *LedgerHandler) UpdateBalance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req updateBalanceRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	acc, err := h.accounts.UpdateBalance(r.Context(), id, req.Operation, req.Amount)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

func (h *LedgerHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	from, to, err := h.accounts.Transfer(r.Context(), req.FromAccountID, req.ToAccountID, req.Amount)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transferResponse{FromAccount: from, ToAccount: to})
}

// statusHandler adapts one of the freeze/unfreeze/lock/unlock operations.
func (h *LedgerHandler) statusHandler(op func(context.Context, uuid.UUID) (*domain.Account, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			h.fail(w, r, err)
			return
		}
		acc, err := op(r.Context(), id)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, acc)
	}
}
