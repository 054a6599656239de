package storage

import (
	"context"
	"log/slog"
	"time"

	"symptomlog/internal/core"
)

// CategoryStore owns the category catalog.
type CategoryStore struct {
	repo *SQLiteRepository
}

func NewCategoryStore(repo *SQLiteRepository) *CategoryStore {
	return &CategoryStore{repo: repo}
}

// EnsureDefaults seeds the default catalog when no category exists yet. It is
// safe to call on every startup and reports whether it seeded anything.
func (s *CategoryStore) EnsureDefaults(ctx context.Context) (bool, error) {
	seeded := false
	err := s.repo.Update(ctx, "ensure defaults", func(ctx context.Context, tx *Tx) error {
		n, err := tx.CountCategories(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		if err := seedDefaults(ctx, tx); err != nil {
			return err
		}
		seeded = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if seeded {
		slog.InfoContext(ctx, "Seeded default categories", "count", len(core.DefaultCategories))
	}
	return seeded, nil
}

// List returns the catalog sorted by name with German collation. Archived
// categories are dropped unless includeArchived is set.
func (s *CategoryStore) List(ctx context.Context, includeArchived bool) ([]core.Category, error) {
	var all []core.Category
	err := s.repo.View(ctx, "list categories", func(ctx context.Context, tx *Tx) error {
		var err error
		all, err = tx.ListCategories(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	if !includeArchived {
		all = core.Active(all)
	}
	if all == nil {
		all = []core.Category{}
	}
	core.SortByName(all)
	return all, nil
}

// Get returns nil without error when id is unknown.
func (s *CategoryStore) Get(ctx context.Context, id string) (*core.Category, error) {
	var c *core.Category
	err := s.repo.View(ctx, "get category", func(ctx context.Context, tx *Tx) error {
		var err error
		c, err = tx.GetCategory(ctx, id)
		return err
	})
	return c, err
}

// Add creates an active category. A name that is empty after trimming is
// ignored and Add returns nil, nil.
func (s *CategoryStore) Add(ctx context.Context, name string) (*core.Category, error) {
	name, err := core.NormalizeName(name)
	if err != nil {
		return nil, nil
	}

	var created core.Category
	err = s.repo.Update(ctx, "add category", func(ctx context.Context, tx *Tx) error {
		created = core.Category{
			ID:        tx.NewID(),
			Name:      name,
			CreatedAt: truncateMillis(tx.Now()),
		}
		return tx.PutCategory(ctx, created)
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Category added", "id", created.ID, "name", created.Name)
	return &created, nil
}

// Update applies patch to the category with the given id. It reports false,
// without error, when the id does not exist.
func (s *CategoryStore) Update(ctx context.Context, id string, patch core.CategoryPatch) (bool, error) {
	found := false
	err := s.repo.Update(ctx, "update category", func(ctx context.Context, tx *Tx) error {
		current, err := tx.GetCategory(ctx, id)
		if err != nil || current == nil {
			return err
		}
		found = true

		next := *current
		if patch.Name != nil {
			if name, err := core.NormalizeName(*patch.Name); err == nil {
				next.Name = name
			}
		}
		if patch.Archived != nil {
			next.Archived = *patch.Archived
		}
		return tx.PutCategory(ctx, next)
	})
	if err != nil {
		return false, err
	}

	if found {
		slog.InfoContext(ctx, "Category updated", "id", id)
	}
	return found, nil
}

// RestoreDefaults discards the whole catalog and reseeds it under new ids.
// Entry scores keyed by the old ids are left in place and become orphaned;
// nothing remaps them.
func (s *CategoryStore) RestoreDefaults(ctx context.Context) ([]core.Category, error) {
	err := s.repo.Update(ctx, "restore defaults", func(ctx context.Context, tx *Tx) error {
		if err := tx.ClearCategories(ctx); err != nil {
			return err
		}
		return seedDefaults(ctx, tx)
	})
	if err != nil {
		return nil, err
	}

	slog.WarnContext(ctx, "Category catalog replaced with defaults; existing entry scores are orphaned",
		"count", len(core.DefaultCategories))
	return s.List(ctx, true)
}

func seedDefaults(ctx context.Context, tx *Tx) error {
	now := truncateMillis(tx.Now())
	for _, name := range core.DefaultCategories {
		c := core.Category{ID: tx.NewID(), Name: name, CreatedAt: now}
		if err := tx.PutCategory(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

// truncateMillis matches the precision timestamps are persisted with.
func truncateMillis(t time.Time) time.Time {
	return core.MillisToTime(t.UnixMilli())
}
