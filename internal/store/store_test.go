package store

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wastewatch/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "waste.json"), slog.Default())
	require.NoError(t, err)
	return s
}

func entryAt(ts time.Time, hash string) domain.WasteEntry {
	return domain.WasteEntry{
		ImagePath: "images/test.jpg",
		Timestamp: ts,
		ImageHash: hash,
	}
}

func TestStoreAppendAssignsIDs(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	e, err := s.Append(ctx, entryAt(time.Now(), "h1"), []domain.WasteItem{
		{Name: "Rice", Category: "grains", EstimatedValue: 2.5},
		{Name: "Chicken", Category: "protein", EstimatedValue: 4.0},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), e.ID)
	assert.Len(t, e.Items, 2)
	assert.Equal(t, int64(1), e.Items[0].ID)
	assert.Equal(t, int64(2), e.Items[1].ID)
	assert.Equal(t, e.ID, e.Items[0].WasteEntryID)
	assert.False(t, e.CreatedAt.IsZero())
}

func TestStoreIDsNeverReusedAfterDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first, err := s.Append(ctx, entryAt(time.Now(), ""), []domain.WasteItem{{Name: "Bread"}})
	require.NoError(t, err)

	require.NoError(t, s.DeleteByID(ctx, first.ID))

	second, err := s.Append(ctx, entryAt(time.Now(), ""), []domain.WasteItem{{Name: "Soup"}})
	require.NoError(t, err)
	assert.Equal(t, first.ID+1, second.ID)
	assert.Equal(t, first.Items[0].ID+1, second.Items[0].ID)
}

func TestStoreDeleteCascadesToOwnItemsOnly(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	keep, err := s.Append(ctx, entryAt(time.Now(), ""), []domain.WasteItem{{Name: "Pasta"}})
	require.NoError(t, err)
	doomed, err := s.Append(ctx, entryAt(time.Now(), ""), []domain.WasteItem{{Name: "Salad"}, {Name: "Fries"}})
	require.NoError(t, err)

	require.NoError(t, s.DeleteByID(ctx, doomed.ID))

	gone, err := s.GetByID(ctx, doomed.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	kept, err := s.GetByID(ctx, keep.ID)
	require.NoError(t, err)
	require.NotNil(t, kept)
	assert.Len(t, kept.Items, 1)
	assert.Equal(t, "Pasta", kept.Items[0].Name)
}

func TestStoreDeleteUnknownID(t *testing.T) {
	s := openTestStore(t)

	err := s.DeleteByID(context.Background(), 99)
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, int64(99), nf.ID)
}

func TestStoreClearAllResetsCounters(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Append(ctx, entryAt(time.Now(), ""), []domain.WasteItem{{Name: "Stew"}})
	require.NoError(t, err)
	_, err = s.Append(ctx, entryAt(time.Now(), ""), []domain.WasteItem{{Name: "Toast"}})
	require.NoError(t, err)

	require.NoError(t, s.ClearAll(ctx))

	entries, err := s.List(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)

	e, err := s.Append(ctx, entryAt(time.Now(), ""), []domain.WasteItem{{Name: "Curry"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), e.ID)
	assert.Equal(t, int64(1), e.Items[0].ID)
}

func TestStoreListSortedByTimestampDescending(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	old, err := s.Append(ctx, entryAt(base, ""), nil)
	require.NoError(t, err)
	newer, err := s.Append(ctx, entryAt(base.Add(time.Hour), ""), nil)
	require.NoError(t, err)

	entries, err := s.List(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, newer.ID, entries[0].ID)
	assert.Equal(t, old.ID, entries[1].ID)
	// Entries without items must report an empty, non-nil item list.
	assert.NotNil(t, entries[0].Items)
	assert.Empty(t, entries[0].Items)
}

func TestStoreListLimitAndTimeBounds(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		_, err := s.Append(ctx, entryAt(base.AddDate(0, 0, i), ""), nil)
		require.NoError(t, err)
	}

	limited, err := s.List(ctx, ListFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	start := base.AddDate(0, 0, 1)
	end := base.AddDate(0, 0, 3)
	bounded, err := s.List(ctx, ListFilter{StartTime: &start, EndTime: &end})
	require.NoError(t, err)
	assert.Len(t, bounded, 3) // bounds are inclusive
}

func TestStoreFindMostRecentByHash(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	_, err := s.Append(ctx, entryAt(base, "abc"), nil)
	require.NoError(t, err)
	latest, err := s.Append(ctx, entryAt(base.Add(time.Hour), "abc"), nil)
	require.NoError(t, err)
	_, err = s.Append(ctx, entryAt(base.Add(2*time.Hour), "other"), nil)
	require.NoError(t, err)

	found, err := s.FindMostRecentByHash(ctx, "abc")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, latest.ID, found.ID)

	missing, err := s.FindMostRecentByHash(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStoreFindMostRecentByHashTieBreaksOnID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	_, err := s.Append(ctx, entryAt(ts, "same"), nil)
	require.NoError(t, err)
	second, err := s.Append(ctx, entryAt(ts, "same"), nil)
	require.NoError(t, err)

	found, err := s.FindMostRecentByHash(ctx, "same")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, second.ID, found.ID)
}

func TestStoreFindByEmptyHash(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// Entries without a hash never participate in dedup, even when queried
	// with the empty string.
	_, err := s.Append(ctx, entryAt(time.Now(), ""), nil)
	require.NoError(t, err)

	found, err := s.FindMostRecentByHash(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestStoreReloadsDurableImage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "waste.json")
	ctx := context.Background()

	s, err := Open(path, slog.Default())
	require.NoError(t, err)
	created, err := s.Append(ctx, entryAt(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC), "h"), []domain.WasteItem{
		{Name: "Milk", Category: "dairy", EstimatedValue: 1.2},
	})
	require.NoError(t, err)
	require.NoError(t, s.DeleteByID(ctx, created.ID))
	survivor, err := s.Append(ctx, entryAt(time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC), "h2"), []domain.WasteItem{
		{Name: "Eggs", Category: "dairy", EstimatedValue: 2.0},
	})
	require.NoError(t, err)

	reloaded, err := Open(path, slog.Default())
	require.NoError(t, err)

	entries, err := reloaded.List(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, survivor.ID, entries[0].ID)
	assert.Equal(t, "Eggs", entries[0].Items[0].Name)

	// Counters survive the reload: new ids continue past deleted ones.
	next, err := reloaded.Append(ctx, entryAt(time.Now(), ""), nil)
	require.NoError(t, err)
	assert.Equal(t, survivor.ID+1, next.ID)
}

func TestStoreOpenMissingFile(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "absent.json"), slog.Default())
	require.NoError(t, err)

	entries, err := s.List(context.Background(), ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStoreOpenCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "waste.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	s, err := Open(path, slog.Default())
	require.NoError(t, err)

	entries, err := s.List(context.Background(), ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStoreOpenRecomputesMissingCounters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "waste.json")
	legacy := `{
		"entries": [
			{"id": 7, "image_path": "images/a.jpg", "timestamp": "2025-06-01T08:00:00Z", "total_estimated_value": 3.5, "created_at": "2025-06-01T08:00:00Z"}
		],
		"items": [
			{"id": 12, "waste_entry_id": 7, "name": "Banana", "category": "fruits", "condition": "overripe", "estimated_value": 3.5}
		]
	}`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0600))

	s, err := Open(path, slog.Default())
	require.NoError(t, err)

	e, err := s.Append(context.Background(), entryAt(time.Now(), ""), []domain.WasteItem{{Name: "Apple"}})
	require.NoError(t, err)
	assert.Equal(t, int64(8), e.ID)
	assert.Equal(t, int64(13), e.Items[0].ID)
}

func TestStoreAppendPersistFailureRollsBack(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "waste.json"), slog.Default())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.Append(ctx, entryAt(time.Now(), ""), nil)
	require.NoError(t, err)

	// Removing the directory makes the temp-file write fail.
	require.NoError(t, os.RemoveAll(dir))

	_, err = s.Append(ctx, entryAt(time.Now(), ""), []domain.WasteItem{{Name: "Ghost"}})
	var pe *domain.PersistenceError
	require.ErrorAs(t, err, &pe)

	// The failed append must not have advanced the id sequences.
	require.NoError(t, os.MkdirAll(dir, 0755))
	e, err := s.Append(ctx, entryAt(time.Now(), ""), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), e.ID)

	entries, err := s.List(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
