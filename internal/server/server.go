// Package server assembles all HTTP handlers and starts the server.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matthewbaird/walletledger/internal/activity"
	"github.com/matthewbaird/walletledger/internal/catalog"
	"github.com/matthewbaird/walletledger/internal/feed"
	"github.com/matthewbaird/walletledger/internal/handler"
	"github.com/matthewbaird/walletledger/internal/ledger"
)

// Config holds server configuration.
type Config struct {
	Port     int
	Service  *ledger.Service
	Activity activity.Store
	Feed     *feed.Hub
	Resync   handler.Resyncer
	Catalog  *catalog.Catalog
	// Location is the time zone of exported timestamps. Nil means UTC.
	Location *time.Location
	Debug    bool
}

// NewRouter registers every route on a chi router.
func NewRouter(cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if cfg.Debug {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)

	// Health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/v1", func(r chi.Router) {
		// --- Operations ---
		oh := handler.NewOperationHandler(cfg.Service)
		r.Post("/operations", oh.CreateOperation)
		r.Get("/operations", oh.ListOperations)
		r.Get("/operations/{id}", oh.GetOperation)
		r.Patch("/operations/{id}", oh.EditOperation)
		r.Delete("/operations/{id}", oh.DeleteOperation)

		// --- Wallets ---
		wh := handler.NewWalletHandler(cfg.Service)
		r.Post("/wallets", wh.CreateWallet)
		r.Get("/wallets", wh.ListWallets)
		r.Get("/wallets/{id}", wh.GetWallet)
		r.Patch("/wallets/{id}", wh.RenameWallet)

		// --- Mirror and reference data ---
		mh := handler.NewMirrorHandler(cfg.Resync, cfg.Catalog)
		r.Get("/catalog", mh.GetCatalog)
		r.Post("/mirror/resync", mh.Resync)

		eh := handler.NewExportHandler(cfg.Service, cfg.Location)
		r.Get("/export.xlsx", eh.ExportXLSX)

		// --- Activity ---
		if cfg.Activity != nil {
			ah := handler.NewActivityHandler(cfg.Activity)
			r.Get("/activity/{entity_type}/{entity_id}", ah.HandleGetEntityActivity)
		}

		// --- Live feed ---
		if cfg.Feed != nil {
			r.Handle("/feed", cfg.Feed)
		}
	})

	return r
}

// Run starts the HTTP server and shuts it down when ctx is cancelled.
func Run(ctx context.Context, cfg Config) error {
	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("server shutdown: %v", err)
		}
	}()

	log.Printf("starting server on %s", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
