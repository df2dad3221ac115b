package mirror

import (
	"context"
	"log"
	"strings"
)

// Sink is the external store rows are written to.
type Sink interface {
	// AppendRows adds rows after the last row of the operations block.
	AppendRows(ctx context.Context, rows [][]string) error
	// ReplaceRows clears the operations block and writes rows from its top.
	ReplaceRows(ctx context.Context, rows [][]string) error
	// WriteBalances overwrites the wallet balance block.
	WriteBalances(ctx context.Context, names, balances []string) error
}

// LogSink writes rows to the process log. It is used when no spreadsheet
// is configured.
type LogSink struct{}

func (LogSink) AppendRows(_ context.Context, rows [][]string) error {
	for _, r := range rows {
		log.Printf("mirror: append %s", strings.Join(r, " | "))
	}
	return nil
}

func (LogSink) ReplaceRows(_ context.Context, rows [][]string) error {
	log.Printf("mirror: replace operations block with %d rows", len(rows))
	return nil
}

func (LogSink) WriteBalances(_ context.Context, names, balances []string) error {
	for i := range names {
		log.Printf("mirror: balance %s = %s", names[i], balances[i])
	}
	return nil
}
