package handler

import (
	"bytes"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/matthewbaird/walletledger/internal/ledger"
	"github.com/matthewbaird/walletledger/internal/mirror"
)

// ExportHandler serves an offline workbook copy of the mirror.
type ExportHandler struct {
	svc    *ledger.Service
	format mirror.Formatter
}

// NewExportHandler creates a new ExportHandler rendering times in loc.
func NewExportHandler(svc *ledger.Service, loc *time.Location) *ExportHandler {
	return &ExportHandler{svc: svc, format: mirror.NewFormatter(loc)}
}

// ExportXLSX returns the operations and balances as an Excel workbook.
// GET /v1/export.xlsx?username=
func (h *ExportHandler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	ops, err := h.svc.ListOperations(r.Context(), r.URL.Query().Get("username"))
	if err != nil {
		ledgerErrorToHTTP(w, err)
		return
	}
	wallets, err := h.svc.ListWallets(r.Context())
	if err != nil {
		ledgerErrorToHTTP(w, err)
		return
	}

	var buf bytes.Buffer
	if err := h.format.WriteXLSX(&buf, ops, wallets); err != nil {
		log.Printf("export: %v", err)
		writeError(w, http.StatusInternalServerError, "EXPORT_FAILED", "failed to build workbook")
		return
	}

	name := fmt.Sprintf("ledger_%s.xlsx", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename="+name)
	w.Write(buf.Bytes())
}
