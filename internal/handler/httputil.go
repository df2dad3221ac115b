package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/matthewbaird/walletledger/internal/ledger"
)

// writeJSON marshals v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("writeJSON encode error: %v", err)
	}
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
		"code":  code,
	})
}

// decodeJSON decodes the request body into v.
func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// parseID extracts and validates an integer id path parameter.
func parseID(w http.ResponseWriter, r *http.Request, paramName string) (int64, bool) {
	raw := chi.URLParam(r, paramName)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "invalid id: "+raw)
		return 0, false
	}
	return id, true
}

// actor returns the X-Actor header, the caller's username.
func actor(r *http.Request) string {
	return r.Header.Get("X-Actor")
}

// ledgerErrorToHTTP maps ledger errors to HTTP responses.
func ledgerErrorToHTTP(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrWalletNotFound):
		writeError(w, http.StatusNotFound, "WALLET_NOT_FOUND", err.Error())
	case errors.Is(err, ledger.ErrOperationNotFound):
		writeError(w, http.StatusNotFound, "OPERATION_NOT_FOUND", err.Error())
	case errors.Is(err, ledger.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, "INVALID_AMOUNT", err.Error())
	case errors.Is(err, ledger.ErrInvalidOperation):
		writeError(w, http.StatusBadRequest, "INVALID_OPERATION", err.Error())
	case errors.Is(err, ledger.ErrUnknownReference):
		writeError(w, http.StatusBadRequest, "UNKNOWN_REFERENCE", err.Error())
	case errors.Is(err, ledger.ErrWalletExists):
		writeError(w, http.StatusConflict, "CONFLICT", err.Error())
	default:
		log.Printf("internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// mirrorWarning is the degraded-success note returned when the mirror
// could not be updated after the ledger committed.
func mirrorWarning(res ledger.Result) string {
	if !res.Degraded() {
		return ""
	}
	return res.MirrorErr.Error()
}
