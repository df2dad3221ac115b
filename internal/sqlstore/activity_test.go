package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/matthewbaird/walletledger/internal/activity"
	"github.com/matthewbaird/walletledger/internal/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activityEntry(id, category string, at time.Time) activity.Entry {
	return activity.Entry{
		EventID:           id,
		EventType:         category + "_created",
		OccurredAt:        at,
		IndexedEntityType: "wallet",
		IndexedEntityID:   "1",
		EntityRole:        "subject",
		SourceRefs:        []event.SourceRef{{EntityType: "wallet", EntityID: "1", Role: "subject"}},
		Summary:           "summary " + id,
		Category:          category,
		Payload:           []byte(`{"wallet_id":1}`),
	}
}

func TestActivityStore_WriteAndQuery(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t).Activity()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.WriteEntries(ctx, []activity.Entry{
		activityEntry("e1", "wallet", base),
		activityEntry("e2", "operation", base.Add(time.Minute)),
		activityEntry("e3", "operation", base.Add(2*time.Minute)),
	}))
	// Rewriting an entry is a no-op.
	require.NoError(t, s.WriteEntries(ctx, []activity.Entry{activityEntry("e1", "wallet", base)}))

	entries, cursor, total, err := s.QueryByEntity(ctx, "wallet", "1", activity.DefaultQueryOptions())
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Empty(t, cursor)
	require.Len(t, entries, 3)
	assert.Equal(t, "e3", entries[0].EventID)
	assert.True(t, entries[2].OccurredAt.Equal(base))
	assert.Equal(t, "subject", entries[0].SourceRefs[0].Role)
	assert.JSONEq(t, `{"wallet_id":1}`, string(entries[0].Payload))

	opts := activity.DefaultQueryOptions()
	opts.Categories = []string{"wallet"}
	entries, _, total, err = s.QueryByEntity(ctx, "wallet", "1", opts)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "e1", entries[0].EventID)

	entries, _, _, err = s.QueryByEntity(ctx, "operation", "1", activity.DefaultQueryOptions())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestActivityStore_Pagination(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t).Activity()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, s.WriteEntries(ctx, []activity.Entry{activityEntry(id, "operation", base.Add(time.Duration(i)*time.Second))}))
	}

	opts := activity.DefaultQueryOptions()
	opts.Limit = 2
	page, cursor, _, err := s.QueryByEntity(ctx, "wallet", "1", opts)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "e", page[0].EventID)
	require.NotEmpty(t, cursor)

	opts.Cursor = cursor
	page, _, _, err = s.QueryByEntity(ctx, "wallet", "1", opts)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "c", page[0].EventID)
	assert.Equal(t, "b", page[1].EventID)
}

func TestActivityStore_PaginationSharedTimestamp(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t).Activity()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var batch []activity.Entry
	for _, id := range []string{"a", "b", "c", "d"} {
		batch = append(batch, activityEntry(id, "operation", at))
	}
	require.NoError(t, s.WriteEntries(ctx, batch))

	opts := activity.DefaultQueryOptions()
	opts.Limit = 3
	var seen []string
	for {
		page, cursor, _, err := s.QueryByEntity(ctx, "wallet", "1", opts)
		require.NoError(t, err)
		for _, e := range page {
			seen = append(seen, e.EventID)
		}
		if cursor == "" {
			break
		}
		opts.Cursor = cursor
	}
	assert.Equal(t, []string{"d", "c", "b", "a"}, seen)
}
