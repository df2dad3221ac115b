// Package activity keeps a per-entity history of domain events, so the
// changes that touched one wallet or one operation can be listed.
package activity

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/matthewbaird/walletledger/internal/event"
)

// Entry is a secondary index entry over the domain event stream, keyed by a
// referenced entity. One event produces one entry per affected entity.
type Entry struct {
	EventID           string            `json:"event_id"`
	EventType         string            `json:"event_type"`
	OccurredAt        time.Time         `json:"occurred_at"`
	IndexedEntityType string            `json:"indexed_entity_type"`
	IndexedEntityID   string            `json:"indexed_entity_id"`
	EntityRole        string            `json:"entity_role"`
	SourceRefs        []event.SourceRef `json:"source_refs"`
	Summary           string            `json:"summary"`
	Category          string            `json:"category"`
	Payload           json.RawMessage   `json:"payload,omitempty"`
}

// Store reads and writes activity entries.
type Store interface {
	WriteEntries(ctx context.Context, entries []Entry) error
	// QueryByEntity returns entries for one entity, newest first.
	QueryByEntity(ctx context.Context, entityType, entityID string, opts QueryOptions) (entries []Entry, nextCursor string, totalCount int, err error)
}

// QueryOptions controls filtering and pagination for entity queries.
type QueryOptions struct {
	Since      *time.Time
	Until      *time.Time
	Categories []string
	Limit      int    // default 100, max 500
	Cursor     string // position of the last entry of the previous page, see CursorOf
}

// CursorOf returns the pagination cursor positioned at e. Entries are
// ordered by (occurred_at, event_id), so equal timestamps never straddle a
// page boundary.
func CursorOf(e Entry) string {
	return e.OccurredAt.UTC().Format(time.RFC3339Nano) + "|" + e.EventID
}

// ParseCursor splits a cursor into its timestamp and event id. A cursor
// without an event id positions before every entry at that time.
func ParseCursor(cursor string) (at time.Time, eventID string, ok bool) {
	ts, id, _ := strings.Cut(cursor, "|")
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return time.Time{}, "", false
	}
	return t, id, true
}

// Before reports whether e sorts after the cursor position in newest-first
// order.
func Before(e Entry, at time.Time, eventID string) bool {
	return e.OccurredAt.Before(at) || (e.OccurredAt.Equal(at) && e.EventID < eventID)
}

// DefaultQueryOptions returns QueryOptions covering all time.
func DefaultQueryOptions() QueryOptions {
	return QueryOptions{Limit: 100}
}

// Entries fans a domain event out into one entry per affected entity.
func Entries(evt event.DomainEvent) []Entry {
	out := make([]Entry, 0, len(evt.AffectedEntities))
	for _, ref := range evt.AffectedEntities {
		out = append(out, Entry{
			EventID:           evt.ID,
			EventType:         evt.EventType,
			OccurredAt:        evt.OccurredAt,
			IndexedEntityType: ref.EntityType,
			IndexedEntityID:   ref.EntityID,
			EntityRole:        ref.Role,
			SourceRefs:        evt.AffectedEntities,
			Summary:           evt.Summary,
			Category:          evt.Category,
			Payload:           evt.Payload,
		})
	}
	return out
}
