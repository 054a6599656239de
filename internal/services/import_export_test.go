package services

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"symptomlog/internal/core"
	"symptomlog/internal/storage"
)

var fixedNow = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	repo       *storage.SQLiteRepository
	categories *storage.CategoryStore
	entries    *storage.EntryStore
	svc        *ImportExportService
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	seq := 0
	repo, err := storage.Open(filepath.Join(t.TempDir(), "svc.db"),
		storage.WithClock(func() time.Time { return fixedNow }),
		storage.WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("id-%d", seq)
		}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return fixture{
		repo:       repo,
		categories: storage.NewCategoryStore(repo),
		entries:    storage.NewEntryStore(repo),
		svc:        NewImportExportService(repo),
	}
}

func (f fixture) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	a, err := f.categories.Add(ctx, "Husten")
	require.NoError(t, err)
	b, err := f.categories.Add(ctx, "Ärger")
	require.NoError(t, err)
	archived := true
	_, err = f.categories.Update(ctx, b.ID, core.CategoryPatch{Archived: &archived})
	require.NoError(t, err)

	_, err = f.entries.Upsert(ctx, "2024-05-01", core.Scores{a.ID: 2, b.ID: 1})
	require.NoError(t, err)
	_, err = f.entries.Upsert(ctx, "2024-05-02", core.Scores{a.ID: 3, "orphan": 1})
	require.NoError(t, err)
}

func TestExportAllIncludesEverything(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	snap, err := f.svc.ExportAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, SnapshotVersion, snap.Version)
	assert.Equal(t, "2024-05-10T12:00:00.000Z", snap.ExportedAt)
	require.Len(t, snap.Categories, 2)
	assert.Equal(t, "Ärger", snap.Categories[0].Name, "archived categories are exported, collation-sorted")
	assert.True(t, snap.Categories[0].Archived)
	require.Len(t, snap.Entries, 2)
	assert.Equal(t, "2024-05-01", snap.Entries[0].ISODate)
	assert.Equal(t, 1, snap.Entries[1].Scores["orphan"])
	assert.Equal(t, fixedNow.UnixMilli(), snap.Entries[0].UpdatedAt)
}

func TestExportEmptyStoreMarshalsEmptyArrays(t *testing.T) {
	f := newFixture(t)
	snap, err := f.svc.ExportAll(context.Background())
	require.NoError(t, err)

	data, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"categories":[]`)
	assert.Contains(t, string(data), `"entries":[]`)
}

func TestReplaceRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t)

	before, err := f.svc.ExportAll(ctx)
	require.NoError(t, err)
	data, err := json.Marshal(before)
	require.NoError(t, err)

	// Drift away from the snapshot, then restore it.
	_, err = f.categories.Add(ctx, "Schwindel")
	require.NoError(t, err)
	_, err = f.entries.Upsert(ctx, "2024-06-01", core.Scores{"x": 1})
	require.NoError(t, err)

	res, err := f.svc.ImportAll(ctx, data, PolicyReplace)
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Policy: "replace", CategoriesImported: 2, EntriesImported: 2}, res)

	after, err := f.svc.ExportAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, before.Categories, after.Categories)
	assert.Equal(t, before.Entries, after.Entries)
}

func TestMergeImportOverwritesCollisionsOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.entries.Upsert(ctx, "2024-05-01", core.Scores{"a": 1})
	require.NoError(t, err)
	_, err = f.entries.Upsert(ctx, "2024-04-30", core.Scores{"a": 3})
	require.NoError(t, err)
	existing, err := f.categories.Add(ctx, "Bleibt")
	require.NoError(t, err)

	payload := `{
		"version": 1,
		"categories": [{"id": "a", "name": "Kopfschmerzen", "archived": false, "createdAt": 1714521600000}],
		"entries": [{"isoDate": "2024-05-01", "scores": {"a": 3, "b": 2}, "updatedAt": 1714521600000}]
	}`
	res, err := f.svc.ImportAll(ctx, []byte(payload), PolicyMerge)
	require.NoError(t, err)
	assert.Equal(t, "merge", res.Policy)

	e, err := f.entries.Get(ctx, "2024-05-01")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, core.Scores{"a": 3, "b": 2}, e.Scores)
	assert.Equal(t, int64(1714521600000), e.UpdatedAt.UnixMilli())

	untouched, err := f.entries.Get(ctx, "2024-04-30")
	require.NoError(t, err)
	require.NotNil(t, untouched)
	assert.Equal(t, core.Scores{"a": 3}, untouched.Scores)

	kept, err := f.categories.Get(ctx, existing.ID)
	require.NoError(t, err)
	assert.NotNil(t, kept)
	imported, err := f.categories.Get(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, imported)
	assert.Equal(t, "Kopfschmerzen", imported.Name)
}

func TestMalformedSnapshotLeavesStoreUnchanged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t)

	before, err := f.svc.ExportAll(ctx)
	require.NoError(t, err)

	payloads := map[string]string{
		"missing entries":      `{"version": 1, "categories": []}`,
		"missing categories":   `{"entries": []}`,
		"null entries":         `{"categories": [], "entries": null}`,
		"entries not an array": `{"categories": [], "entries": {"2024-05-01": {}}}`,
		"not an object":        `[1, 2, 3]`,
		"not json":             `categories,entries`,
	}
	for name, payload := range payloads {
		t.Run(name, func(t *testing.T) {
			for _, policy := range []MergePolicy{PolicyReplace, PolicyMerge} {
				_, err := f.svc.ImportAll(ctx, []byte(payload), policy)
				require.Error(t, err)
				assert.True(t, core.IsValidationError(err), "got %T: %v", err, err)
			}
		})
	}

	after, err := f.svc.ExportAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, before.Categories, after.Categories)
	assert.Equal(t, before.Entries, after.Entries)
}

func TestImportSkipsBadRowsAndDefaultsOptionalFields(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	payload := `{
		"categories": [
			{"id": "a", "name": "Husten"},
			{"id": "", "name": "kein id"},
			{"name": "ohne id"},
			{"id": "c"},
			"garbage",
			null
		],
		"entries": [
			{"isoDate": "2024-05-01", "scores": {}},
			{"isoDate": "2024-05-02"},
			{"scores": {"a": 1}},
			{"isoDate": "05/03/2024", "scores": {"a": 1}},
			{"isoDate": "2024-05-04", "scores": {"a": "high"}}
		]
	}`
	res, err := f.svc.ImportAll(ctx, []byte(payload), PolicyReplace)
	require.NoError(t, err)
	assert.Equal(t, 1, res.CategoriesImported)
	assert.Equal(t, 5, res.CategoriesSkipped)
	assert.Equal(t, 1, res.EntriesImported)
	assert.Equal(t, 4, res.EntriesSkipped)

	c, err := f.categories.Get(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.False(t, c.Archived)
	assert.Equal(t, fixedNow, c.CreatedAt)

	e, err := f.entries.Get(ctx, "2024-05-01")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Empty(t, e.Scores)
	assert.Equal(t, fixedNow, e.UpdatedAt)
}

func TestImportEmptyArraysReplaceClearsStore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t)

	_, err := f.svc.ImportAll(ctx, []byte(`{"categories": [], "entries": []}`), PolicyReplace)
	require.NoError(t, err)

	all, err := f.categories.List(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, all)
	entries, err := f.entries.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestImportOnClosedStoreIsStorageError(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.repo.Close())

	_, err := f.svc.ImportAll(context.Background(), []byte(`{"categories": [], "entries": []}`), PolicyReplace)
	require.Error(t, err)
	assert.True(t, core.IsStorageError(err))
}

func TestParseMergePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    MergePolicy
		wantErr bool
	}{
		{"", PolicyReplace, false},
		{"replace", PolicyReplace, false},
		{" Merge ", PolicyMerge, false},
		{"append", PolicyReplace, true},
	}
	for _, tt := range tests {
		got, err := ParseMergePolicy(tt.in)
		if tt.wantErr {
			assert.True(t, core.IsValidationError(err), tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestRowValidator(t *testing.T) {
	var v interface{ Struct(any) error }
	require.NotPanics(t, func() { v = newRowValidator() })

	assert.NoError(t, v.Struct(entryRow{ISODate: "2024-02-29", Scores: core.Scores{}}))
	assert.Error(t, v.Struct(entryRow{ISODate: "2023-02-29", Scores: core.Scores{}}), "isodate is registered and enforced")
	assert.Error(t, v.Struct(entryRow{ISODate: "2024-05-01"}))
	assert.Error(t, v.Struct(categoryRow{ID: "a"}))
}
