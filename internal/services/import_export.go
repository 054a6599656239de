package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"symptomlog/internal/core"
	"symptomlog/internal/storage"
)

// MergePolicy selects how ImportAll treats rows already in the store.
type MergePolicy int

const (
	// PolicyReplace empties both tables before inserting the snapshot.
	PolicyReplace MergePolicy = iota
	// PolicyMerge upserts snapshot rows over existing ones and keeps the rest.
	PolicyMerge
)

func (p MergePolicy) String() string {
	switch p {
	case PolicyMerge:
		return "merge"
	default:
		return "replace"
	}
}

// ParseMergePolicy accepts "", "replace" and "merge".
func ParseMergePolicy(s string) (MergePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "replace":
		return PolicyReplace, nil
	case "merge":
		return PolicyMerge, nil
	default:
		return PolicyReplace, &core.ValidationError{Field: "policy", Reason: fmt.Sprintf("unknown merge policy %q", s)}
	}
}

// ImportResult counts what an import wrote and what it dropped.
type ImportResult struct {
	Policy             string `json:"policy"`
	CategoriesImported int    `json:"categoriesImported"`
	CategoriesSkipped  int    `json:"categoriesSkipped"`
	EntriesImported    int    `json:"entriesImported"`
	EntriesSkipped     int    `json:"entriesSkipped"`
}

// categoryRow and entryRow are the import-side shapes. Optional fields are
// pointers so that absence can be told apart from zero values.
type categoryRow struct {
	ID        string `json:"id" validate:"required"`
	Name      string `json:"name" validate:"required"`
	Archived  *bool  `json:"archived"`
	CreatedAt *int64 `json:"createdAt"`
}

type entryRow struct {
	ISODate   string      `json:"isoDate" validate:"required,isodate"`
	Scores    core.Scores `json:"scores" validate:"required"`
	UpdatedAt *int64      `json:"updatedAt"`
}

// ImportExportService moves the full catalog and all entries in and out of
// the store as a Snapshot.
type ImportExportService struct {
	repo     *storage.SQLiteRepository
	validate *validator.Validate
}

func NewImportExportService(repo *storage.SQLiteRepository) *ImportExportService {
	return &ImportExportService{repo: repo, validate: newRowValidator()}
}

// newRowValidator builds the validator for snapshot rows. Registration only
// fails on a programming error, so it panics like regexp.MustCompile.
func newRowValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		return core.ValidISODate(fl.Field().String())
	}); err != nil {
		panic(fmt.Sprintf("register isodate validation: %v", err))
	}
	return v
}

// ExportAll returns every category (archived included) and every entry,
// read from one consistent view of the store.
func (s *ImportExportService) ExportAll(ctx context.Context) (*Snapshot, error) {
	var (
		categories []core.Category
		entries    []core.Entry
	)
	err := s.repo.View(ctx, "export all", func(ctx context.Context, tx *storage.Tx) error {
		var err error
		if categories, err = tx.ListCategories(ctx); err != nil {
			return err
		}
		entries, err = tx.AllEntries(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	core.SortByName(categories)
	snap := newSnapshot(s.repo.Now(), categories, entries)

	slog.InfoContext(ctx, "Snapshot exported",
		"categories", len(snap.Categories),
		"entries", len(snap.Entries))
	return snap, nil
}

// ImportAll restores a snapshot. The top-level shape is checked first: a
// payload without categories and entries arrays fails with a
// *core.ValidationError and nothing is written. Past that gate, malformed
// rows are skipped one by one. All writes happen in one transaction.
func (s *ImportExportService) ImportAll(ctx context.Context, data []byte, policy MergePolicy) (ImportResult, error) {
	result := ImportResult{Policy: policy.String()}

	rawCategories, rawEntries, err := splitSnapshot(data)
	if err != nil {
		slog.WarnContext(ctx, "Snapshot rejected", "error", err)
		return result, err
	}

	categories, entries := s.decodeRows(ctx, rawCategories, rawEntries, &result)

	err = s.repo.Update(ctx, "import all", func(ctx context.Context, tx *storage.Tx) error {
		if policy == PolicyReplace {
			if err := tx.ClearCategories(ctx); err != nil {
				return err
			}
			if err := tx.ClearEntries(ctx); err != nil {
				return err
			}
		}

		now := tx.Now()
		for _, row := range categories {
			c := core.Category{ID: row.ID, Name: row.Name, CreatedAt: core.MillisToTime(now.UnixMilli())}
			if row.Archived != nil {
				c.Archived = *row.Archived
			}
			if row.CreatedAt != nil {
				c.CreatedAt = core.MillisToTime(*row.CreatedAt)
			}
			if err := tx.PutCategory(ctx, c); err != nil {
				return err
			}
		}
		for _, row := range entries {
			e := core.Entry{ISODate: row.ISODate, Scores: row.Scores, UpdatedAt: core.MillisToTime(now.UnixMilli())}
			if row.UpdatedAt != nil {
				e.UpdatedAt = core.MillisToTime(*row.UpdatedAt)
			}
			if err := tx.PutEntry(ctx, e); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return ImportResult{Policy: policy.String()}, err
	}

	slog.InfoContext(ctx, "Snapshot imported",
		"policy", result.Policy,
		"categories", result.CategoriesImported,
		"categories_skipped", result.CategoriesSkipped,
		"entries", result.EntriesImported,
		"entries_skipped", result.EntriesSkipped)
	return result, nil
}

func (s *ImportExportService) decodeRows(ctx context.Context, rawCategories, rawEntries []json.RawMessage, result *ImportResult) ([]categoryRow, []entryRow) {
	categories := make([]categoryRow, 0, len(rawCategories))
	for i, raw := range rawCategories {
		var row categoryRow
		if err := json.Unmarshal(raw, &row); err != nil {
			slog.DebugContext(ctx, "Skipping category row", "index", i, "error", err)
			result.CategoriesSkipped++
			continue
		}
		if err := s.validate.Struct(row); err != nil {
			slog.DebugContext(ctx, "Skipping category row", "index", i, "error", err)
			result.CategoriesSkipped++
			continue
		}
		categories = append(categories, row)
	}
	result.CategoriesImported = len(categories)

	entries := make([]entryRow, 0, len(rawEntries))
	for i, raw := range rawEntries {
		var row entryRow
		if err := json.Unmarshal(raw, &row); err != nil {
			slog.DebugContext(ctx, "Skipping entry row", "index", i, "error", err)
			result.EntriesSkipped++
			continue
		}
		if err := s.validate.Struct(row); err != nil {
			slog.DebugContext(ctx, "Skipping entry row", "index", i, "error", err)
			result.EntriesSkipped++
			continue
		}
		entries = append(entries, row)
	}
	result.EntriesImported = len(entries)

	return categories, entries
}

// splitSnapshot applies the top-level gate and returns the raw rows.
func splitSnapshot(data []byte) ([]json.RawMessage, []json.RawMessage, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil || top == nil {
		return nil, nil, &core.ValidationError{Reason: "snapshot is not a JSON object"}
	}

	categories, err := rowArray(top, "categories")
	if err != nil {
		return nil, nil, err
	}
	entries, err := rowArray(top, "entries")
	if err != nil {
		return nil, nil, err
	}
	return categories, entries, nil
}

func rowArray(top map[string]json.RawMessage, field string) ([]json.RawMessage, error) {
	raw, ok := top[field]
	if !ok || len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, &core.ValidationError{Field: field, Reason: "missing"}
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, &core.ValidationError{Field: field, Reason: "must be an array"}
	}
	return rows, nil
}
