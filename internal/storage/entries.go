package storage

import (
	"context"
	"log/slog"

	"symptomlog/internal/core"
)

// EntryStore owns the one-entry-per-day score records.
type EntryStore struct {
	repo *SQLiteRepository
}

func NewEntryStore(repo *SQLiteRepository) *EntryStore {
	return &EntryStore{repo: repo}
}

// Get returns nil without error when no entry exists for isoDate.
func (s *EntryStore) Get(ctx context.Context, isoDate string) (*core.Entry, error) {
	var e *core.Entry
	err := s.repo.View(ctx, "get entry", func(ctx context.Context, tx *Tx) error {
		var err error
		e, err = tx.GetEntry(ctx, isoDate)
		return err
	})
	return e, err
}

// Upsert replaces the full score mapping for isoDate and stamps UpdatedAt.
// Scores are stored as given; clamping is the producer's job.
func (s *EntryStore) Upsert(ctx context.Context, isoDate string, scores core.Scores) (*core.Entry, error) {
	var saved core.Entry
	err := s.repo.Update(ctx, "upsert entry", func(ctx context.Context, tx *Tx) error {
		saved = core.Entry{
			ISODate:   isoDate,
			Scores:    scores.Clone(),
			UpdatedAt: truncateMillis(tx.Now()),
		}
		return tx.PutEntry(ctx, saved)
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Entry saved to SQLite",
		"iso_date", saved.ISODate,
		"scores", len(saved.Scores),
		"total", saved.Scores.Sum())
	return &saved, nil
}

// Delete removes the entry for isoDate. A missing entry is not an error.
func (s *EntryStore) Delete(ctx context.Context, isoDate string) error {
	err := s.repo.Update(ctx, "delete entry", func(ctx context.Context, tx *Tx) error {
		return tx.DeleteEntry(ctx, isoDate)
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Entry deleted", "iso_date", isoDate)
	return nil
}

// RangeQuery returns the entries dated within [from, to], ascending. An
// inverted range yields an empty slice.
func (s *EntryStore) RangeQuery(ctx context.Context, from, to string) ([]core.Entry, error) {
	if from > to {
		return []core.Entry{}, nil
	}

	var entries []core.Entry
	err := s.repo.View(ctx, "range query", func(ctx context.Context, tx *Tx) error {
		var err error
		entries, err = tx.ListEntries(ctx, from, to)
		return err
	})
	return entries, err
}

// All returns every entry, ascending by date.
func (s *EntryStore) All(ctx context.Context) ([]core.Entry, error) {
	var entries []core.Entry
	err := s.repo.View(ctx, "list entries", func(ctx context.Context, tx *Tx) error {
		var err error
		entries, err = tx.AllEntries(ctx)
		return err
	})
	return entries, err
}
