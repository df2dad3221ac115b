package mirror

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/matthewbaird/walletledger/internal/ledger"
)

const (
	operationsSheet = "Operations"
	balancesSheet   = "Balances"
)

// WriteXLSX writes an offline copy of the mirror as an Excel workbook: the
// operations block, oldest first, and the wallet balances.
func (f Formatter) WriteXLSX(w io.Writer, ops []ledger.Operation, wallets []ledger.Wallet) error {
	rows, err := f.SnapshotRows(ops)
	if err != nil {
		return err
	}

	x := excelize.NewFile()
	defer x.Close()

	if err := x.SetSheetName("Sheet1", operationsSheet); err != nil {
		return fmt.Errorf("mirror: xlsx: %w", err)
	}
	if err := writeSheet(x, operationsSheet, rows); err != nil {
		return err
	}

	if _, err := x.NewSheet(balancesSheet); err != nil {
		return fmt.Errorf("mirror: xlsx: %w", err)
	}
	balances := [][]string{{"Wallet", "Balance"}}
	names, amounts := BalanceColumns(wallets)
	for i := range names {
		balances = append(balances, []string{names[i], amounts[i]})
	}
	if err := writeSheet(x, balancesSheet, balances); err != nil {
		return err
	}

	if err := x.Write(w); err != nil {
		return fmt.Errorf("mirror: xlsx: writing workbook: %w", err)
	}
	return nil
}

func writeSheet(x *excelize.File, sheet string, rows [][]string) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("mirror: xlsx: %w", err)
		}
		values := make([]any, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := x.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("mirror: xlsx: %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
