package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/matthewbaird/walletledger/internal/activity"
	"github.com/matthewbaird/walletledger/internal/catalog"
	"github.com/matthewbaird/walletledger/internal/config"
	"github.com/matthewbaird/walletledger/internal/eventbus"
	"github.com/matthewbaird/walletledger/internal/feed"
	"github.com/matthewbaird/walletledger/internal/ledger"
	"github.com/matthewbaird/walletledger/internal/mirror"
	"github.com/matthewbaird/walletledger/internal/server"
	"github.com/matthewbaird/walletledger/internal/sqlstore"
	"github.com/matthewbaird/walletledger/internal/worker"
)

func main() {
	envFile := flag.String("env", "", "path to a .env file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if err := cfg.Validate("DATABASE_URL", "OUTBOX_PATH", "TIMEZONE"); err != nil {
		log.Fatal(err)
	}
	if cfg.SheetsEnabled() {
		if err := cfg.Validate("SHEETS_CREDENTIALS_FILE"); err != nil {
			log.Fatal(err)
		}
	}
	loc, err := cfg.Location()
	if err != nil {
		log.Fatal(err)
	}

	store, err := sqlstore.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("opening ledger store: %v", err)
	}
	defer store.Close()
	log.Println("database migrated successfully")

	svc := ledger.NewService(store)

	// --- Reference catalog ---
	var cat *catalog.Catalog
	if cfg.CatalogPath != "" {
		if cat, err = catalog.Load(cfg.CatalogPath); err != nil {
			log.Fatalf("loading catalog: %v", err)
		}
		svc.SetValidator(cat)
	}

	// --- Mirror ---
	var sink mirror.Sink = mirror.LogSink{}
	if cfg.SheetsEnabled() {
		sink, err = mirror.NewSheetsSink(ctx, mirror.SheetsConfig{
			SpreadsheetID:   cfg.Sheets.SpreadsheetID,
			CredentialsFile: cfg.Sheets.CredentialsFile,
			Endpoint:        cfg.Sheets.Endpoint,
			OperationsRange: cfg.Sheets.OperationsRange,
			BalancesSheet:   cfg.Sheets.BalancesSheet,
		})
		if err != nil {
			log.Fatalf("creating sheets mirror: %v", err)
		}
	} else {
		log.Println("SHEETS_SPREADSHEET_ID not set, mirror rows are only logged")
	}
	outbox, err := mirror.OpenOutbox(cfg.OutboxPath)
	if err != nil {
		log.Fatalf("opening mirror outbox: %v", err)
	}
	defer outbox.Close()
	format := mirror.NewFormatter(loc)
	svc.SetMirror(mirror.New(sink, outbox, format))

	resync := worker.NewResyncWorker(store, sink, outbox, format)
	if cfg.ResyncInterval > 0 {
		go resync.Start(ctx, cfg.ResyncInterval)
	}

	// --- Event bus ---
	activityStore := store.Activity()
	hub := feed.NewHub()
	bus := eventbus.New(256)
	bus.Subscribe("log", eventbus.NewLogConsumer())
	bus.Subscribe("activity", activity.NewIndexer(activityStore))
	bus.Subscribe("feed", hub)
	bus.Start(ctx)
	defer bus.Stop()
	svc.SetPublisher(bus)

	if err := server.Run(ctx, server.Config{
		Port:     cfg.Port,
		Service:  svc,
		Activity: activityStore,
		Feed:     hub,
		Resync:   resync,
		Catalog:  cat,
		Location: loc,
		Debug:    cfg.Debug,
	}); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
