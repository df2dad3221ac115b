package handler

import (
	"context"
	"net/http"

	"github.com/matthewbaird/walletledger/internal/catalog"
	"github.com/matthewbaird/walletledger/internal/worker"
)

// Resyncer replays the mirror outbox.
type Resyncer interface {
	Run(ctx context.Context, rebuild bool) (worker.ResyncReport, error)
}

// MirrorHandler exposes mirror maintenance and the reference catalog.
type MirrorHandler struct {
	resync  Resyncer
	catalog *catalog.Catalog
}

// NewMirrorHandler creates a new MirrorHandler. Either argument may be nil.
func NewMirrorHandler(resync Resyncer, cat *catalog.Catalog) *MirrorHandler {
	return &MirrorHandler{resync: resync, catalog: cat}
}

// Resync drains the mirror outbox and refreshes balances. With
// ?rebuild=true the operations block is rewritten from the ledger.
// POST /v1/mirror/resync
func (h *MirrorHandler) Resync(w http.ResponseWriter, r *http.Request) {
	if h.resync == nil {
		writeError(w, http.StatusNotFound, "NOT_CONFIGURED", "no mirror configured")
		return
	}
	rep, err := h.resync.Run(r.Context(), r.URL.Query().Get("rebuild") == "true")
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":  err.Error(),
			"code":   "SINK_UNAVAILABLE",
			"report": rep,
		})
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// GetCatalog returns the reference data for operation forms.
// GET /v1/catalog
func (h *MirrorHandler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		writeJSON(w, http.StatusOK, catalog.Catalog{PaymentTypes: []string{}, Operations: map[string]catalog.OperationEntries{}})
		return
	}
	writeJSON(w, http.StatusOK, h.catalog)
}
