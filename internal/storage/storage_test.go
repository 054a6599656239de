package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"symptomlog/internal/core"
)

var fixedNow = time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	seq := 0
	repo, err := Open(filepath.Join(t.TempDir(), "data", "test.db"),
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("cat-%03d", seq)
		}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestEnsureDefaultsIsIdempotent(t *testing.T) {
	ctx := context.Background()
	cats := NewCategoryStore(newTestRepo(t))

	seeded, err := cats.EnsureDefaults(ctx)
	require.NoError(t, err)
	assert.True(t, seeded)

	first, err := cats.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, first, len(core.DefaultCategories))

	seeded, err = cats.EnsureDefaults(ctx)
	require.NoError(t, err)
	assert.False(t, seeded)

	second, err := cats.List(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEnsureDefaultsSkipsNonEmptyCatalog(t *testing.T) {
	ctx := context.Background()
	cats := NewCategoryStore(newTestRepo(t))

	_, err := cats.Add(ctx, "Tinnitus")
	require.NoError(t, err)

	seeded, err := cats.EnsureDefaults(ctx)
	require.NoError(t, err)
	assert.False(t, seeded)

	all, err := cats.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Tinnitus", all[0].Name)
}

func TestAddTrimsAndIgnoresEmptyNames(t *testing.T) {
	ctx := context.Background()
	cats := NewCategoryStore(newTestRepo(t))

	c, err := cats.Add(ctx, "  Husten  ")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "Husten", c.Name)
	assert.False(t, c.Archived)
	assert.Equal(t, fixedNow, c.CreatedAt)

	c, err = cats.Add(ctx, "   ")
	require.NoError(t, err)
	assert.Nil(t, c)

	all, err := cats.List(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestListSortsGermanAndFiltersArchived(t *testing.T) {
	ctx := context.Background()
	cats := NewCategoryStore(newTestRepo(t))

	for _, name := range []string{"Zittern", "Übelkeit", "Atemnot", "Unruhe"} {
		_, err := cats.Add(ctx, name)
		require.NoError(t, err)
	}
	all, err := cats.List(ctx, true)
	require.NoError(t, err)

	var atemnot string
	names := make([]string, len(all))
	for i, c := range all {
		names[i] = c.Name
		if c.Name == "Atemnot" {
			atemnot = c.ID
		}
	}
	assert.Equal(t, []string{"Atemnot", "Übelkeit", "Unruhe", "Zittern"}, names)

	archived := true
	found, err := cats.Update(ctx, atemnot, core.CategoryPatch{Archived: &archived})
	require.NoError(t, err)
	require.True(t, found)

	active, err := cats.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, active, 3)
	assert.Equal(t, "Übelkeit", active[0].Name)

	withArchived, err := cats.List(ctx, true)
	require.NoError(t, err)
	assert.Len(t, withArchived, 4)
}

func TestUpdatePatchesAndIgnoresUnknownIDs(t *testing.T) {
	ctx := context.Background()
	cats := NewCategoryStore(newTestRepo(t))

	c, err := cats.Add(ctx, "Kopfweh")
	require.NoError(t, err)

	name := " Kopfschmerzen "
	found, err := cats.Update(ctx, c.ID, core.CategoryPatch{Name: &name})
	require.NoError(t, err)
	require.True(t, found)

	got, err := cats.Get(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Kopfschmerzen", got.Name)
	assert.False(t, got.Archived)
	assert.Equal(t, c.CreatedAt, got.CreatedAt)

	archived := true
	found, err = cats.Update(ctx, "missing", core.CategoryPatch{Archived: &archived})
	require.NoError(t, err)
	assert.False(t, found)

	missing, err := cats.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRestoreDefaultsMintsNewIDsAndOrphansScores(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	cats := NewCategoryStore(repo)
	entries := NewEntryStore(repo)

	_, err := cats.EnsureDefaults(ctx)
	require.NoError(t, err)
	before, err := cats.List(ctx, true)
	require.NoError(t, err)

	oldID := before[0].ID
	_, err = entries.Upsert(ctx, "2024-04-30", core.Scores{oldID: 2})
	require.NoError(t, err)

	after, err := cats.RestoreDefaults(ctx)
	require.NoError(t, err)
	require.Len(t, after, len(core.DefaultCategories))

	oldIDs := map[string]bool{}
	for _, c := range before {
		oldIDs[c.ID] = true
	}
	for _, c := range after {
		assert.False(t, oldIDs[c.ID], "id %s reused after restore", c.ID)
	}

	e, err := entries.Get(ctx, "2024-04-30")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, 2, e.Scores[oldID], "orphaned score must be preserved")
}

func TestEntryUpsertGetDelete(t *testing.T) {
	ctx := context.Background()
	entries := NewEntryStore(newTestRepo(t))

	e, err := entries.Get(ctx, "2024-05-01")
	require.NoError(t, err)
	assert.Nil(t, e)

	_, err = entries.Upsert(ctx, "2024-05-01", core.Scores{"a": 2, "b": 1})
	require.NoError(t, err)

	// Upsert replaces the whole mapping.
	saved, err := entries.Upsert(ctx, "2024-05-01", core.Scores{"c": 3})
	require.NoError(t, err)
	assert.Equal(t, fixedNow, saved.UpdatedAt)

	e, err = entries.Get(ctx, "2024-05-01")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, core.Scores{"c": 3}, e.Scores)

	require.NoError(t, entries.Delete(ctx, "2024-05-01"))
	require.NoError(t, entries.Delete(ctx, "2024-05-01"), "deleting twice is not an error")

	e, err = entries.Get(ctx, "2024-05-01")
	require.NoError(t, err)
	assert.Nil(t, e)
}

func TestUpsertStoresScoresUnvalidated(t *testing.T) {
	ctx := context.Background()
	entries := NewEntryStore(newTestRepo(t))

	_, err := entries.Upsert(ctx, "2024-05-02", core.Scores{"a": 9})
	require.NoError(t, err)

	e, err := entries.Get(ctx, "2024-05-02")
	require.NoError(t, err)
	assert.Equal(t, 9, e.Scores["a"])
}

func TestRangeQuery(t *testing.T) {
	ctx := context.Background()
	entries := NewEntryStore(newTestRepo(t))

	for _, d := range []string{"2024-03-02", "2024-02-28", "2024-03-01", "2024-02-27", "2024-04-01"} {
		_, err := entries.Upsert(ctx, d, core.Scores{"a": 1})
		require.NoError(t, err)
	}

	dates := func(es []core.Entry) []string {
		out := make([]string, len(es))
		for i, e := range es {
			out[i] = e.ISODate
		}
		return out
	}

	tests := []struct {
		name     string
		from, to string
		want     []string
	}{
		{"inclusive both ends", "2024-02-28", "2024-03-02", []string{"2024-02-28", "2024-03-01", "2024-03-02"}},
		{"single day", "2024-03-01", "2024-03-01", []string{"2024-03-01"}},
		{"no entries", "2024-01-01", "2024-01-31", []string{}},
		{"inverted range", "2024-03-02", "2024-02-27", []string{}},
		{"everything", "2000-01-01", "2099-12-31", []string{"2024-02-27", "2024-02-28", "2024-03-01", "2024-03-02", "2024-04-01"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := entries.RangeQuery(ctx, tt.from, tt.to)
			require.NoError(t, err)
			assert.Equal(t, tt.want, dates(got))
		})
	}
}

func TestUpdateRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	boom := errors.New("boom")

	err := repo.Update(ctx, "partial write", func(ctx context.Context, tx *Tx) error {
		if err := tx.PutCategory(ctx, core.Category{ID: "x", Name: "X", CreatedAt: fixedNow}); err != nil {
			return err
		}
		if err := tx.PutEntry(ctx, core.Entry{ISODate: "2024-05-01", Scores: core.Scores{"x": 1}, UpdatedAt: fixedNow}); err != nil {
			return err
		}
		return boom
	})
	require.Error(t, err)
	assert.True(t, core.IsStorageError(err))
	assert.ErrorIs(t, err, boom)

	c, err := NewCategoryStore(repo).Get(ctx, "x")
	require.NoError(t, err)
	assert.Nil(t, c)
	e, err := NewEntryStore(repo).Get(ctx, "2024-05-01")
	require.NoError(t, err)
	assert.Nil(t, e)
}

func TestUpdatePassesValidationErrorsThrough(t *testing.T) {
	repo := newTestRepo(t)
	err := repo.Update(context.Background(), "validate", func(ctx context.Context, tx *Tx) error {
		return &core.ValidationError{Field: "entries", Reason: "missing"}
	})
	assert.True(t, core.IsValidationError(err))
	assert.False(t, core.IsStorageError(err))
}

func TestClosedRepositoryReturnsStorageError(t *testing.T) {
	repo := newTestRepo(t)
	require.NoError(t, repo.Close())

	_, err := NewEntryStore(repo).Upsert(context.Background(), "2024-05-01", core.Scores{"a": 1})
	require.Error(t, err)
	assert.True(t, core.IsStorageError(err))

	_, err = NewCategoryStore(repo).List(context.Background(), false)
	assert.True(t, core.IsStorageError(err))
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "persist.db")

	repo, err := Open(path)
	require.NoError(t, err)
	_, err = NewEntryStore(repo).Upsert(ctx, "2024-01-01", core.Scores{"a": 1})
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	repo, err = Open(path)
	require.NoError(t, err)
	defer repo.Close()

	e, err := NewEntryStore(repo).Get(ctx, "2024-01-01")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, core.Scores{"a": 1}, e.Scores)
}

func TestOpenRejectsMemoryDatabases(t *testing.T) {
	for _, dsn := range []string{":memory:", "file::memory:?cache=shared", "file:scratch?mode=memory"} {
		t.Run(dsn, func(t *testing.T) {
			repo, err := Open(dsn)
			require.Error(t, err)
			assert.Nil(t, repo)
			assert.ErrorIs(t, err, ErrMemoryDatabase)
		})
	}
}

func TestRunMigrationsReportsVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.db")

	v, err := RunMigrations(path)
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)

	v, err = RunMigrations(path)
	require.NoError(t, err, "an up-to-date schema is not an error")
	assert.Equal(t, uint(1), v)

	repo, err := Open(path)
	require.NoError(t, err)
	defer repo.Close()
	_, err = NewEntryStore(repo).Upsert(context.Background(), "2024-01-01", core.Scores{"a": 1})
	require.NoError(t, err)
}
