package mirror

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const valueInput = "USER_ENTERED"

// SheetsConfig locates the spreadsheet and how to reach it.
type SheetsConfig struct {
	SpreadsheetID   string
	CredentialsFile string // service account JSON
	Endpoint        string // custom API endpoint, e.g. an emulator; disables auth
	OperationsRange string // e.g. "Operations!A:N"
	BalancesSheet   string // sheet holding the balance block at C7:D
}

// SheetsSink writes rows to a Google Sheets spreadsheet.
type SheetsSink struct {
	svc     *sheets.Service
	id      string
	opsRng  string
	balance string
}

// NewSheetsSink builds a Sheets API client from cfg.
func NewSheetsSink(ctx context.Context, cfg SheetsConfig) (*SheetsSink, error) {
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("mirror: spreadsheet id is required")
	}

	var opts []option.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	} else {
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("mirror: reading credentials: %w", err)
		}
		creds, err := google.CredentialsFromJSON(ctx, data, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("mirror: parsing credentials: %w", err)
		}
		opts = append(opts, option.WithCredentials(creds))
	}

	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("mirror: creating sheets service: %w", err)
	}
	return &SheetsSink{
		svc:     svc,
		id:      cfg.SpreadsheetID,
		opsRng:  cfg.OperationsRange,
		balance: cfg.BalancesSheet,
	}, nil
}

func (s *SheetsSink) AppendRows(ctx context.Context, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	_, err := s.svc.Spreadsheets.Values.Append(s.id, s.opsRng, valueRange("", rows)).
		ValueInputOption(valueInput).
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("mirror: appending %d rows: %w", len(rows), err)
	}
	return nil
}

func (s *SheetsSink) ReplaceRows(ctx context.Context, rows [][]string) error {
	if _, err := s.svc.Spreadsheets.Values.Clear(s.id, s.opsRng, &sheets.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("mirror: clearing %s: %w", s.opsRng, err)
	}
	if len(rows) == 0 {
		return nil
	}
	_, err := s.svc.Spreadsheets.Values.Update(s.id, topLeft(s.opsRng), valueRange("", rows)).
		ValueInputOption(valueInput).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("mirror: writing %d rows: %w", len(rows), err)
	}
	return nil
}

func (s *SheetsSink) WriteBalances(ctx context.Context, names, balances []string) error {
	req := &sheets.BatchClearValuesRequest{
		Ranges: []string{s.balance + "!C7:C", s.balance + "!D7:D"},
	}
	if _, err := s.svc.Spreadsheets.Values.BatchClear(s.id, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("mirror: clearing balances: %w", err)
	}
	if len(names) == 0 {
		return nil
	}
	update := &sheets.BatchUpdateValuesRequest{
		ValueInputOption: valueInput,
		Data: []*sheets.ValueRange{
			valueRange(s.balance+"!C7", column(names)),
			valueRange(s.balance+"!D7", column(balances)),
		},
	}
	if _, err := s.svc.Spreadsheets.Values.BatchUpdate(s.id, update).Context(ctx).Do(); err != nil {
		return fmt.Errorf("mirror: writing balances: %w", err)
	}
	return nil
}

func valueRange(rng string, rows [][]string) *sheets.ValueRange {
	values := make([][]interface{}, len(rows))
	for i, r := range rows {
		values[i] = make([]interface{}, len(r))
		for j, v := range r {
			values[i][j] = cellValue(v)
		}
	}
	return &sheets.ValueRange{Range: rng, Values: values}
}

// cellValue quotes text that USER_ENTERED would otherwise evaluate as a
// formula. Negative numbers are left as numbers.
func cellValue(v string) string {
	if v == "" {
		return v
	}
	switch v[0] {
	case '=', '+', '@':
		return "'" + v
	case '-':
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return "'" + v
		}
	}
	return v
}

func column(values []string) [][]string {
	out := make([][]string, len(values))
	for i, v := range values {
		out[i] = []string{v}
	}
	return out
}

// topLeft turns "Sheet!A:N" into "Sheet!A1".
func topLeft(rng string) string {
	sheet, cells, ok := strings.Cut(rng, "!")
	if !ok {
		sheet, cells = "", rng
	}
	col, _, _ := strings.Cut(cells, ":")
	col = strings.TrimRight(col, "0123456789")
	if sheet == "" {
		return col + "1"
	}
	return sheet + "!" + col + "1"
}
