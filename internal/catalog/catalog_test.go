package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/matthewbaird/walletledger/internal/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
payment_types: ["Cash", "Card"]
operations: {
	Expense: categories: {
		Food: ["Groceries", "Restaurants"]
		Transport: []
	}
	Income: categories: Salary: []
}
`

func str(s string) *string { return &s }

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.cue")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Cash", "Card"}, c.PaymentTypes)
	assert.Equal(t, []string{"Food", "Transport"}, c.Categories(ledger.Expense))
	assert.Equal(t, []string{"Groceries", "Restaurants"}, c.Operations["Expense"].Categories["Food"])
	assert.Nil(t, c.Categories(ledger.Transfer))
}

func TestParse_RejectsUnknownOperationType(t *testing.T) {
	_, err := Parse("bad.cue", []byte(`
payment_types: []
operations: Refund: categories: {}
`))
	assert.Error(t, err)
}

func TestParse_RejectsWrongShape(t *testing.T) {
	_, err := Parse("bad.cue", []byte(`payment_types: "Cash"`))
	assert.Error(t, err)
}

func TestValidateOperation(t *testing.T) {
	c, err := Parse("catalog.cue", []byte(sample))
	require.NoError(t, err)

	tests := []struct {
		name string
		op   ledger.Operation
		ok   bool
	}{
		{"known article", ledger.Operation{Type: ledger.Expense, AccountingType: str("Food"), AccountType: str("Groceries"), PaymentType: str("Card")}, true},
		{"empty values", ledger.Operation{Type: ledger.Expense, AccountingType: str(""), PaymentType: str("")}, true},
		{"type without entries", ledger.Operation{Type: ledger.Transfer, AccountingType: str("Anything")}, true},
		{"unknown payment type", ledger.Operation{Type: ledger.Expense, PaymentType: str("Crypto")}, false},
		{"category of another type", ledger.Operation{Type: ledger.Income, AccountingType: str("Food")}, false},
		{"unknown article", ledger.Operation{Type: ledger.Expense, AccountingType: str("Food"), AccountType: str("Fuel")}, false},
		{"article without category", ledger.Operation{Type: ledger.Expense, AccountType: str("Groceries")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.ValidateOperation(tt.op)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ledger.ErrUnknownReference)
			}
		})
	}
}
