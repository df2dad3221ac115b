package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/matthewbaird/walletledger/ent/migrate"
	"github.com/matthewbaird/walletledger/internal/activity"
)

var activityColumns = []string{
	"event_id", "event_type", "occurred_at", "indexed_entity_type", "indexed_entity_id",
	"entity_role", "source_refs", "summary", "category", "payload",
}

// ActivityStore implements activity.Store on the ledger database, so the
// history survives restarts.
type ActivityStore struct {
	q dialect.ExecQuerier
}

var _ activity.Store = (*ActivityStore)(nil)

// Activity returns the activity store sharing this database.
func (s *Store) Activity() *ActivityStore {
	return &ActivityStore{q: s.drv}
}

// WriteEntries inserts entries. Entries already present are skipped.
func (s *ActivityStore) WriteEntries(ctx context.Context, entries []activity.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	ins := builder().Insert(migrate.ActivityEntriesTableName).Columns(activityColumns...)
	for _, e := range entries {
		refs, err := json.Marshal(e.SourceRefs)
		if err != nil {
			return fmt.Errorf("encoding source refs: %w", err)
		}
		var payload any
		if len(e.Payload) > 0 {
			payload = string(e.Payload)
		}
		ins.Values(
			e.EventID, e.EventType, formatTime(e.OccurredAt), e.IndexedEntityType, e.IndexedEntityID,
			e.EntityRole, string(refs), e.Summary, e.Category, payload,
		)
	}
	ins.OnConflict(entsql.DoNothing())

	query, args := ins.Query()
	var res sql.Result
	if err := s.q.Exec(ctx, query, args, &res); err != nil {
		return fmt.Errorf("writing activity entries: %w", err)
	}
	return nil
}

// QueryByEntity returns entries for one entity, newest first. The cursor is
// the (occurred_at, event_id) position of the last entry of the previous page.
func (s *ActivityStore) QueryByEntity(ctx context.Context, entityType, entityID string, opts activity.QueryOptions) ([]activity.Entry, string, int, error) {
	limit := opts.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	preds := []*entsql.Predicate{
		entsql.EQ("indexed_entity_type", entityType),
		entsql.EQ("indexed_entity_id", entityID),
	}
	if opts.Since != nil {
		preds = append(preds, entsql.GTE("occurred_at", formatTime(*opts.Since)))
	}
	if opts.Until != nil {
		preds = append(preds, entsql.LTE("occurred_at", formatTime(*opts.Until)))
	}
	if len(opts.Categories) > 0 {
		cats := make([]any, len(opts.Categories))
		for i, c := range opts.Categories {
			cats[i] = c
		}
		preds = append(preds, entsql.In("category", cats...))
	}
	if opts.Cursor != "" {
		if at, id, ok := activity.ParseCursor(opts.Cursor); ok {
			ts := formatTime(at)
			preds = append(preds, entsql.Or(
				entsql.LT("occurred_at", ts),
				entsql.And(entsql.EQ("occurred_at", ts), entsql.LT("event_id", id)),
			))
		}
	}

	total, err := s.count(ctx, preds)
	if err != nil {
		return nil, "", 0, err
	}

	sel := builder().Select(activityColumns...).
		From(builder().Table(migrate.ActivityEntriesTableName)).
		Where(entsql.And(preds...)).
		OrderBy(entsql.Desc("occurred_at"), entsql.Desc("event_id")).
		Limit(limit + 1)
	query, args := sel.Query()
	var rows entsql.Rows
	if err := s.q.Query(ctx, query, args, &rows); err != nil {
		return nil, "", 0, fmt.Errorf("querying activity entries: %w", err)
	}
	defer rows.Close()

	var entries []activity.Entry
	for rows.Next() {
		var (
			e              activity.Entry
			occurred, refs string
			payload        sql.NullString
		)
		if err := rows.Scan(
			&e.EventID, &e.EventType, &occurred, &e.IndexedEntityType, &e.IndexedEntityID,
			&e.EntityRole, &refs, &e.Summary, &e.Category, &payload,
		); err != nil {
			return nil, "", 0, fmt.Errorf("scanning activity entry: %w", err)
		}
		if e.OccurredAt, err = parseTime(occurred); err != nil {
			return nil, "", 0, fmt.Errorf("parsing occurred_at %q: %w", occurred, err)
		}
		if refs != "" {
			_ = json.Unmarshal([]byte(refs), &e.SourceRefs)
		}
		if payload.Valid {
			e.Payload = json.RawMessage(payload.String)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, "", 0, err
	}

	var nextCursor string
	if len(entries) > limit {
		entries = entries[:limit]
		nextCursor = activity.CursorOf(entries[len(entries)-1])
	}
	return entries, nextCursor, total, nil
}

func (s *ActivityStore) count(ctx context.Context, preds []*entsql.Predicate) (int, error) {
	query, args := builder().Select(entsql.Count("*")).
		From(builder().Table(migrate.ActivityEntriesTableName)).
		Where(entsql.And(preds...)).
		Query()
	var rows entsql.Rows
	if err := s.q.Query(ctx, query, args, &rows); err != nil {
		return 0, fmt.Errorf("counting activity entries: %w", err)
	}
	defer rows.Close()

	var n int
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, fmt.Errorf("scanning activity count: %w", err)
		}
	}
	return n, rows.Err()
}
