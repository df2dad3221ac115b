package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/matthewbaird/walletledger/internal/ledger"
)

// OperationHandler implements HTTP handlers for ledger operations.
type OperationHandler struct {
	svc *ledger.Service
}

// NewOperationHandler creates a new OperationHandler.
func NewOperationHandler(svc *ledger.Service) *OperationHandler {
	return &OperationHandler{svc: svc}
}

// amountInput accepts an amount as a JSON string or number and keeps its
// decimal text unchanged, so no float rounding happens before parsing.
type amountInput string

func (a *amountInput) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = amountInput(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("amount must be a string or number")
	}
	*a = amountInput(n.String())
	return nil
}

type operationRequest struct {
	Username       *string      `json:"username"`
	OperationDate  *string      `json:"operation_date"`
	OperationType  *string      `json:"operation_type"`
	Amount         *amountInput `json:"amount"`
	Wallet         *string      `json:"wallet"`
	WalletFrom     *string      `json:"wallet_from"`
	WalletTo       *string      `json:"wallet_to"`
	AccountingType *string      `json:"accounting_type"`
	AccountType    *string      `json:"account_type"`
	FinishDate     *string      `json:"finish_date"`
	PaymentType    *string      `json:"payment_type"`
	Comment        *string      `json:"comment"`
}

func (req operationRequest) fields() ledger.Fields {
	f := ledger.Fields{
		Username:       req.Username,
		OperationDate:  req.OperationDate,
		OperationType:  req.OperationType,
		Wallet:         req.Wallet,
		WalletFrom:     req.WalletFrom,
		WalletTo:       req.WalletTo,
		AccountingType: req.AccountingType,
		AccountType:    req.AccountType,
		FinishDate:     req.FinishDate,
		PaymentType:    req.PaymentType,
		Comment:        req.Comment,
	}
	if req.Amount != nil {
		s := string(*req.Amount)
		f.Amount = &s
	}
	return f
}

// operationView renders amounts as decimal strings alongside the cents.
type operationView struct {
	ledger.Operation
	Amount string `json:"amount"`
}

func viewOperation(op ledger.Operation) operationView {
	return operationView{Operation: op, Amount: ledger.FormatCents(op.AmountCents)}
}

// CreateOperation records a new operation.
// POST /v1/operations
func (h *OperationHandler) CreateOperation(w http.ResponseWriter, r *http.Request) {
	var req operationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body: "+err.Error())
		return
	}
	if req.Username == nil {
		if a := actor(r); a != "" {
			req.Username = &a
		}
	}

	res, err := h.svc.CreateOperation(r.Context(), req.fields())
	if err != nil {
		ledgerErrorToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		Operation     operationView `json:"operation"`
		MirrorWarning string        `json:"mirror_warning,omitempty"`
	}{viewOperation(res.Operation), mirrorWarning(res)})
}

// GetOperation returns one operation.
// GET /v1/operations/{id}
func (h *OperationHandler) GetOperation(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	op, err := h.svc.GetOperation(r.Context(), id)
	if err != nil {
		ledgerErrorToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOperation(op))
}

// ListOperations returns operations newest first, optionally for one user.
// GET /v1/operations?username=
func (h *OperationHandler) ListOperations(w http.ResponseWriter, r *http.Request) {
	ops, err := h.svc.ListOperations(r.Context(), r.URL.Query().Get("username"))
	if err != nil {
		ledgerErrorToHTTP(w, err)
		return
	}
	views := make([]operationView, 0, len(ops))
	for _, op := range ops {
		views = append(views, viewOperation(op))
	}
	writeJSON(w, http.StatusOK, map[string]any{"operations": views})
}

// EditOperation changes the supplied fields of an operation.
// PATCH /v1/operations/{id}
func (h *OperationHandler) EditOperation(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	var req operationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body: "+err.Error())
		return
	}

	res, err := h.svc.EditOperation(r.Context(), id, req.fields())
	if err != nil {
		ledgerErrorToHTTP(w, err)
		return
	}
	updated := res.UpdatedFields
	if updated == nil {
		updated = []string{}
	}
	writeJSON(w, http.StatusOK, struct {
		Operation     operationView `json:"operation"`
		UpdatedFields []string      `json:"updated_fields"`
		MirrorWarning string        `json:"mirror_warning,omitempty"`
	}{viewOperation(res.Operation), updated, mirrorWarning(res)})
}

// DeleteOperation removes an operation and reverses its effect.
// DELETE /v1/operations/{id}
func (h *OperationHandler) DeleteOperation(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	res, err := h.svc.DeleteOperation(r.Context(), id)
	if err != nil {
		ledgerErrorToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Deleted       operationView `json:"deleted"`
		MirrorWarning string        `json:"mirror_warning,omitempty"`
	}{viewOperation(res.Operation), mirrorWarning(res)})
}
