package http

import (
	"net/http"

	"minibank-core/internal/service"

	"github.com/gorilla/mux"
)

func health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// RegisterLedgerRoutes mounts the account API. Every route except /health
// requires the internal secret when one is configured.
func RegisterLedgerRoutes(router *mux.Router, accounts service.AccountService, internalSecret string) {
	h := NewLedgerHandler(accounts)

	router.Use(accessLog)
	router.HandleFunc("/health", health).Methods("GET")

	api := router.PathPrefix("/accounts").Subrouter()
	api.Use(requireInternalSecret(internalSecret))
	api.HandleFunc("", h.CreateAccount).Methods("POST")
	api.HandleFunc("/transfer", h.Transfer).Methods("POST")
	api.HandleFunc("/by-user/{userId}", h.GetAccountByUser).Methods("GET")
	api.HandleFunc("/by-number/{accountNumber}", h.GetAccountByNumber).Methods("GET")
	api.HandleFunc("/{id}", h.GetAccount).Methods("GET")
	api.HandleFunc("/{id}/update-balance", h.UpdateBalance).Methods("PATCH")
	api.HandleFunc("/{id}/freeze", h.statusHandler(accounts.Freeze)).Methods("PATCH")
	api.HandleFunc("/{id}/unfreeze", h.statusHandler(accounts.Unfreeze)).Methods("PATCH")
	api.HandleFunc("/{id}/lock", h.statusHandler(accounts.Lock)).Methods("PATCH")
	api.HandleFunc("/{id}/unlock", h.statusHandler(accounts.Unlock)).Methods("PATCH")
}

// RegisterOrchestratorRoutes mounts the user-facing transaction and counter API.
func RegisterOrchestratorRoutes(router *mux.Router, transactions service.TransactionService, counterDeposits service.CounterDepositService) {
	h := NewTransactionHandler(transactions, counterDeposits)

	router.Use(accessLog)
	router.HandleFunc("/health", health).Methods("GET")

	tx := router.PathPrefix("/transactions").Subrouter()
	tx.Use(requireUser)
	tx.HandleFunc("/deposit", h.Deposit).Methods("POST")
	tx.HandleFunc("/withdraw", h.Withdraw).Methods("POST")
	tx.HandleFunc("/transfer", h.Transfer).Methods("POST")
	tx.HandleFunc("/deposit-counter", h.RequestCounterDeposit).Methods("POST")
	tx.HandleFunc("/deposit-counter/{id}/confirm", h.ConfirmCounterDeposit).Methods("POST")
	tx.HandleFunc("/deposit-counter/{id}/cancel", h.CancelCounterDeposit).Methods("POST")
	tx.HandleFunc("/history", h.History).Methods("GET")
	tx.HandleFunc("/counter/pending", h.ListPendingForStaff).Methods("GET")
	tx.HandleFunc("/{id}", h.GetTransaction).Methods("GET")

	counters := router.PathPrefix("/counters").Subrouter()
	counters.Use(requireUser)
	counters.HandleFunc("/{id}/staff", h.AddStaff).Methods("POST")
	counters.HandleFunc("/{id}/staff/{userId}", h.RemoveStaff).Methods("DELETE")
}
