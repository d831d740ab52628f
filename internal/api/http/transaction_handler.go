package http

import (
	"net/http"
	"strconv"
	"strings"

	"minibank-core/internal/domain"
	"minibank-core/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionHandler serves the user-facing orchestrator API. The caller is
// always taken from the X-User-Id header.
type TransactionHandler struct {
	transactions    service.TransactionService
	counterDeposits service.CounterDepositService
}

func NewTransactionHandler(transactions service.TransactionService, counterDeposits service.CounterDepositService) *TransactionHandler {
	return &TransactionHandler{
		transactions:    transactions,
		counterDeposits: counterDeposits,
	}
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"positive_decimal"`
}

type transferToRequest struct {
	ToAccountID uuid.UUID       `json:"toAccountId" validate:"required"`
	Amount      decimal.Decimal `json:"amount" validate:"positive_decimal"`
}

type counterDepositRequest struct {
	CounterID uuid.UUID       `json:"counterId" validate:"required"`
	Amount    decimal.Decimal `json:"amount" validate:"positive_decimal"`
}

type addStaffRequest struct {
	UserID uuid.UUID `json:"userId" validate:"required"`
}

type historyResponse struct {
	Transactions []domain.Transaction `json:"transactions"`
	TotalCount   int32                `json:"totalCount"`
}

func (h *TransactionHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	writeError(r.Context(), w, err, orchestratorStatus)
}

func (h *TransactionHandler) respond(w http.ResponseWriter, r *http.Request, status int, tx *domain.Transaction, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, status, tx)
}

func (h *TransactionHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	tx, err := h.transactions.Deposit(r.Context(), userIDFrom(r.Context()), req.Amount)
	h.respond(w, r, http.StatusOK, tx, err)
}

func (h *TransactionHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	tx, err := h.transactions.Withdraw(r.Context(), userIDFrom(r.Context()), req.Amount)
	h.respond(w, r, http.StatusOK, tx, err)
}

func (h *TransactionHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req transferToRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	tx, err := h.transactions.Transfer(r.Context(), userIDFrom(r.Context()), req.ToAccountID, req.Amount)
	h.respond(w, r, http.StatusOK, tx, err)
}

func (h *TransactionHandler) RequestCounterDeposit(w http.ResponseWriter, r *http.Request) {
	var req counterDepositRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	tx, err := h.counterDeposits.RequestDeposit(r.Context(), userIDFrom(r.Context()), req.CounterID, req.Amount)
	h.respond(w, r, http.StatusCreated, tx, err)
}

func (h *TransactionHandler) ConfirmCounterDeposit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	tx, err := h.counterDeposits.ConfirmDeposit(r.Context(), userIDFrom(r.Context()), id)
	h.respond(w, r, http.StatusOK, tx, err)
}

func (h *TransactionHandler) CancelCounterDeposit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	tx, err := h.counterDeposits.CancelDeposit(r.Context(), userIDFrom(r.Context()), id)
	h.respond(w, r, http.StatusOK, tx, err)
}

// parseTypes accepts ?type=DEPOSIT&type=TRANSFER as well as ?type=DEPOSIT,TRANSFER.
func parseTypes(values []string) []domain.TransactionType {
	var types []domain.TransactionType
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				types = append(types, domain.TransactionType(strings.ToUpper(part)))
			}
		}
	}
	return types
}

func queryInt32(r *http.Request, name string) (int32, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return 0, domain.Validation("%s must be a number", name)
	}
	return int32(n), nil
}

func (h *TransactionHandler) History(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt32(r, "page")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	size, err := queryInt32(r, "size")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	types := parseTypes(r.URL.Query()["type"])
	txs, total, err := h.transactions.History(r.Context(), userIDFrom(r.Context()), types, page, size)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}
	writeJSON(w, http.StatusOK, historyResponse{Transactions: txs, TotalCount: total})
}

func (h *TransactionHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	tx, err := h.transactions.GetTransaction(r.Context(), userIDFrom(r.Context()), id)
	h.respond(w, r, http.StatusOK, tx, err)
}

func (h *TransactionHandler) ListPendingForStaff(w http.ResponseWriter, r *http.Request) {
	txs, err := h.counterDeposits.ListPendingForStaff(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

func (h *TransactionHandler) AddStaff(w http.ResponseWriter, r *http.Request) {
	counterID, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req addStaffRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	cs, err := h.counterDeposits.AddStaff(r.Context(), userIDFrom(r.Context()), counterID, req.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, cs)
}

func (h *TransactionHandler) RemoveStaff(w http.ResponseWriter, r *http.Request) {
	counterID, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	staffUserID, err := pathID(r, "userId")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.counterDeposits.RemoveStaff(r.Context(), userIDFrom(r.Context()), counterID, staffUserID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
