package activity

import (
	"context"

	"github.com/matthewbaird/walletledger/internal/event"
)

// Indexer consumes domain events from the bus and writes their entries.
type Indexer struct {
	store Store
}

// NewIndexer creates a new activity indexer.
func NewIndexer(store Store) *Indexer {
	return &Indexer{store: store}
}

func (idx *Indexer) HandleEvent(ctx context.Context, evt event.DomainEvent) error {
	return idx.store.WriteEntries(ctx, Entries(evt))
}
