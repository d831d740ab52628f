package http

import (
	"context"
	"encoding/json"
	"net/http"

	"minibank-core/internal/domain"
	"minibank-core/internal/logger"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

// statusFor maps an error kind to the HTTP status of one surface.
type statusFor func(domain.ErrorKind) int

// orchestratorStatus is the user-facing mapping.
func orchestratorStatus(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindInsufficientFunds:
		return http.StatusUnprocessableEntity
	case domain.KindRemoteService:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// ledgerStatus keeps every business rejection on 400 and lets the body code
// tell them apart; the ledger client depends on this.
func ledgerStatus(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation, domain.KindConflict, domain.KindInsufficientFunds:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindRemoteService:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func writeError(ctx context.Context, w http.ResponseWriter, err error, mapStatus statusFor) {
	kind := domain.KindOf(err)
	status := mapStatus(kind)
	msg := err.Error()
	if kind == domain.KindInternal {
		logger.ErrorContext(ctx, "Request failed", "error", err)
		msg = "internal error"
	}
	writeJSON(w, status, errorResponse{Error: errorBody{Code: string(kind), Message: msg}})
}
