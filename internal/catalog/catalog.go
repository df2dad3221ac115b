// Package catalog loads the reference data offered to operation forms
// (payment types, categories per operation type, articles per category)
// from a CUE file and checks operations against it.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"slices"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/matthewbaird/walletledger/internal/ledger"
)

//go:embed schema.cue
var schemaSrc string

// Catalog is the reference data. Operations is keyed by operation type;
// each category maps to its articles.
type Catalog struct {
	PaymentTypes []string                    `json:"payment_types"`
	Operations   map[string]OperationEntries `json:"operations"`
}

// OperationEntries lists the categories allowed for one operation type.
type OperationEntries struct {
	Categories map[string][]string `json:"categories"`
}

var _ ledger.Validator = (*Catalog)(nil)

// Load reads and validates a catalog file.
func Load(path string) (*Catalog, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: reading %s: %w", path, err)
	}
	return Parse(path, src)
}

// Parse validates src against the catalog schema and decodes it.
func Parse(filename string, src []byte) (*Catalog, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSrc, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("catalog: compiling schema: %w", err)
	}
	data := ctx.CompileBytes(src, cue.Filename(filename))
	if err := data.Err(); err != nil {
		return nil, fmt.Errorf("catalog: compiling %s: %w", filename, err)
	}

	val := schema.LookupPath(cue.ParsePath("#Catalog")).Unify(data)
	if err := val.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("catalog: %s: %w", filename, err)
	}

	var c Catalog
	if err := val.Decode(&c); err != nil {
		return nil, fmt.Errorf("catalog: decoding %s: %w", filename, err)
	}
	return &c, nil
}

// Categories returns the sorted category names for an operation type.
func (c *Catalog) Categories(t ledger.OperationType) []string {
	entries, ok := c.Operations[string(t)]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(entries.Categories))
	for name := range entries.Categories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ValidateOperation rejects payment types, categories and articles the
// catalog does not list. Empty values are not checked, and an operation type
// without catalog entries accepts any category.
func (c *Catalog) ValidateOperation(op ledger.Operation) error {
	if v := value(op.PaymentType); v != "" && len(c.PaymentTypes) > 0 && !slices.Contains(c.PaymentTypes, v) {
		return fmt.Errorf("%w: payment type %q", ledger.ErrUnknownReference, v)
	}

	entries, ok := c.Operations[string(op.Type)]
	if !ok {
		return nil
	}
	category := value(op.AccountingType)
	article := value(op.AccountType)
	if category == "" {
		if article != "" {
			return fmt.Errorf("%w: account type %q without accounting type", ledger.ErrUnknownReference, article)
		}
		return nil
	}
	articles, ok := entries.Categories[category]
	if !ok {
		return fmt.Errorf("%w: accounting type %q for %s", ledger.ErrUnknownReference, category, op.Type)
	}
	if article != "" && !slices.Contains(articles, article) {
		return fmt.Errorf("%w: account type %q in %q", ledger.ErrUnknownReference, article, category)
	}
	return nil
}

func value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
