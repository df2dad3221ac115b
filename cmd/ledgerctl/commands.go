package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"

	"github.com/matthewbaird/walletledger/internal/catalog"
	"github.com/matthewbaird/walletledger/internal/config"
	"github.com/matthewbaird/walletledger/internal/ledger"
	"github.com/matthewbaird/walletledger/internal/mirror"
	"github.com/matthewbaird/walletledger/internal/sqlstore"
	"github.com/matthewbaird/walletledger/internal/worker"
)

var commands = []subcommands.Command{
	&migrateCmd{},
	&walletAddCmd{},
	&walletRenameCmd{},
	&walletsCmd{},
	&resyncCmd{},
	&catalogCheckCmd{},
}

// openService loads the configuration and opens the ledger store. The
// caller closes the store.
func openService(ctx context.Context) (*config.Config, *sqlstore.Store, *ledger.Service, error) {
	cfg, err := config.Load(*envFile)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := cfg.Validate("DATABASE_URL"); err != nil {
		return nil, nil, nil, err
	}
	store, err := sqlstore.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, store, ledger.NewService(store), nil
}

func fail(format string, args ...any) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	return subcommands.ExitFailure
}

// --- migrate ---

type migrateCmd struct{}

func (*migrateCmd) Name() string             { return "migrate" }
func (*migrateCmd) Synopsis() string         { return "create or upgrade the ledger schema" }
func (*migrateCmd) Usage() string            { return "migrate\n\n  Applies the wallets and operations schema to DATABASE_URL.\n" }
func (*migrateCmd) SetFlags(f *flag.FlagSet) {}

func (*migrateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	_, store, _, err := openService(ctx)
	if err != nil {
		return fail("%v", err)
	}
	defer store.Close()
	fmt.Println("database migrated successfully")
	return subcommands.ExitSuccess
}

// --- wallet-add ---

type walletAddCmd struct {
	name string
}

func (*walletAddCmd) Name() string     { return "wallet-add" }
func (*walletAddCmd) Synopsis() string { return "add a wallet with a zero balance" }
func (*walletAddCmd) Usage() string {
	return `wallet-add -name <name>

  Adds a wallet. Names are unique.
`
}

func (c *walletAddCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.name, "name", "", "wallet name (required)")
}

func (c *walletAddCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.name == "" {
		fmt.Fprintln(os.Stderr, "Error: -name is required")
		return subcommands.ExitUsageError
	}
	_, store, svc, err := openService(ctx)
	if err != nil {
		return fail("%v", err)
	}
	defer store.Close()

	w, err := svc.CreateWallet(ctx, c.name)
	if err != nil {
		return fail("adding wallet %q: %v", c.name, err)
	}
	fmt.Printf("wallet %d %q created\n", w.ID, w.Name)
	return subcommands.ExitSuccess
}

// --- wallet-rename ---

type walletRenameCmd struct {
	id   int64
	name string
}

func (*walletRenameCmd) Name() string     { return "wallet-rename" }
func (*walletRenameCmd) Synopsis() string { return "rename a wallet" }
func (*walletRenameCmd) Usage() string {
	return `wallet-rename -id <id> -name <name>

  Renames a wallet. Operations keep referring to it by id.
`
}

func (c *walletRenameCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.id, "id", 0, "wallet id (required)")
	f.StringVar(&c.name, "name", "", "new wallet name (required)")
}

func (c *walletRenameCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.id <= 0 || c.name == "" {
		fmt.Fprintln(os.Stderr, "Error: -id and -name are required")
		return subcommands.ExitUsageError
	}
	_, store, svc, err := openService(ctx)
	if err != nil {
		return fail("%v", err)
	}
	defer store.Close()

	w, err := svc.RenameWallet(ctx, c.id, c.name)
	if err != nil {
		return fail("renaming wallet %d: %v", c.id, err)
	}
	fmt.Printf("wallet %d renamed to %q\n", w.ID, w.Name)
	return subcommands.ExitSuccess
}

// --- wallets ---

type walletsCmd struct{}

func (*walletsCmd) Name() string             { return "wallets" }
func (*walletsCmd) Synopsis() string         { return "list wallets and balances" }
func (*walletsCmd) Usage() string            { return "wallets\n" }
func (*walletsCmd) SetFlags(f *flag.FlagSet) {}

func (*walletsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	_, store, svc, err := openService(ctx)
	if err != nil {
		return fail("%v", err)
	}
	defer store.Close()

	wallets, err := svc.ListWallets(ctx)
	if err != nil {
		return fail("listing wallets: %v", err)
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "ID\tName\tBalance\t")
	for _, w := range wallets {
		fmt.Fprintf(tw, "%d\t%s\t%s\t\n", w.ID, w.Name, ledger.FormatCents(w.BalanceCents))
	}
	tw.Flush()
	return subcommands.ExitSuccess
}

// --- resync ---

type resyncCmd struct {
	rebuild bool
}

func (*resyncCmd) Name() string     { return "resync" }
func (*resyncCmd) Synopsis() string { return "replay the mirror outbox and refresh balances" }
func (*resyncCmd) Usage() string {
	return `resync [-rebuild]

  Sends queued mirror rows oldest first and rewrites the balance block.
  With -rebuild the operations block is rewritten from the ledger.
`
}

func (c *resyncCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.rebuild, "rebuild", false, "rewrite the operations block from the live operations")
}

func (c *resyncCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, store, _, err := openService(ctx)
	if err != nil {
		return fail("%v", err)
	}
	defer store.Close()
	if !cfg.SheetsEnabled() {
		return fail("SHEETS_SPREADSHEET_ID is not set")
	}
	loc, err := cfg.Location()
	if err != nil {
		return fail("%v", err)
	}

	sink, err := mirror.NewSheetsSink(ctx, mirror.SheetsConfig{
		SpreadsheetID:   cfg.Sheets.SpreadsheetID,
		CredentialsFile: cfg.Sheets.CredentialsFile,
		Endpoint:        cfg.Sheets.Endpoint,
		OperationsRange: cfg.Sheets.OperationsRange,
		BalancesSheet:   cfg.Sheets.BalancesSheet,
	})
	if err != nil {
		return fail("%v", err)
	}
	outbox, err := mirror.OpenOutbox(cfg.OutboxPath)
	if err != nil {
		return fail("opening outbox: %v", err)
	}
	defer outbox.Close()

	rep, err := worker.NewResyncWorker(store, sink, outbox, mirror.NewFormatter(loc)).Run(ctx, c.rebuild)
	fmt.Printf("drained %d batches, %d remaining, %d rows rebuilt, %d wallets\n",
		rep.Drained, rep.Remaining, rep.Rebuilt, rep.Wallets)
	if err != nil {
		return fail("%v", err)
	}
	return subcommands.ExitSuccess
}

// --- catalog-check ---

type catalogCheckCmd struct {
	file string
}

func (*catalogCheckCmd) Name() string     { return "catalog-check" }
func (*catalogCheckCmd) Synopsis() string { return "validate a reference catalog file" }
func (*catalogCheckCmd) Usage() string {
	return `catalog-check [-file <path>]

  Validates a CUE catalog. Defaults to CATALOG_PATH.
`
}

func (c *catalogCheckCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.file, "file", "", "catalog file")
}

func (c *catalogCheckCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	path := c.file
	if path == "" {
		cfg, err := config.Load(*envFile)
		if err != nil {
			return fail("%v", err)
		}
		path = cfg.CatalogPath
	}
	if path == "" {
		fmt.Fprintln(os.Stderr, "Error: -file or CATALOG_PATH is required")
		return subcommands.ExitUsageError
	}
	cat, err := catalog.Load(path)
	if err != nil {
		return fail("%v", err)
	}
	fmt.Printf("%s: %d payment types, %d operation types\n", path, len(cat.PaymentTypes), len(cat.Operations))
	return subcommands.ExitSuccess
}
