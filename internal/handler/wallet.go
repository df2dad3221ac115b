package handler

import (
	"net/http"

	"github.com/matthewbaird/walletledger/internal/ledger"
)

// WalletHandler implements HTTP handlers for wallet administration.
type WalletHandler struct {
	svc *ledger.Service
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(svc *ledger.Service) *WalletHandler {
	return &WalletHandler{svc: svc}
}

type walletView struct {
	ledger.Wallet
	Balance string `json:"balance"`
}

func viewWallet(w ledger.Wallet) walletView {
	return walletView{Wallet: w, Balance: ledger.FormatCents(w.BalanceCents)}
}

type walletRequest struct {
	Name string `json:"name"`
}

// CreateWallet adds a wallet with a zero balance.
// POST /v1/wallets
func (h *WalletHandler) CreateWallet(w http.ResponseWriter, r *http.Request) {
	var req walletRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}
	wallet, err := h.svc.CreateWallet(r.Context(), req.Name)
	if err != nil {
		ledgerErrorToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewWallet(wallet))
}

// RenameWallet changes a wallet's display name. Operations keep pointing at it.
// PATCH /v1/wallets/{id}
func (h *WalletHandler) RenameWallet(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	var req walletRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}
	wallet, err := h.svc.RenameWallet(r.Context(), id, req.Name)
	if err != nil {
		ledgerErrorToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewWallet(wallet))
}

// GetWallet returns one wallet and its balance.
// GET /v1/wallets/{id}
func (h *WalletHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	wallet, err := h.svc.GetWallet(r.Context(), id)
	if err != nil {
		ledgerErrorToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewWallet(wallet))
}

// ListWallets returns every wallet and its balance.
// GET /v1/wallets
func (h *WalletHandler) ListWallets(w http.ResponseWriter, r *http.Request) {
	wallets, err := h.svc.ListWallets(r.Context())
	if err != nil {
		ledgerErrorToHTTP(w, err)
		return
	}
	views := make([]walletView, 0, len(wallets))
	for _, wl := range wallets {
		views = append(views, viewWallet(wl))
	}
	writeJSON(w, http.StatusOK, map[string]any{"wallets": views})
}
