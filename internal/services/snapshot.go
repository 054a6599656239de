package services

import (
	"time"

	"symptomlog/internal/core"
)

// SnapshotVersion is written into every export.
const SnapshotVersion = 1

// exportedAtLayout matches the millisecond ISO-8601 form browsers produce.
const exportedAtLayout = "2006-01-02T15:04:05.000Z"

// Snapshot is the portable backup of the whole catalog and every entry.
type Snapshot struct {
	Version    int                `json:"version"`
	ExportedAt string             `json:"exportedAt"`
	Categories []SnapshotCategory `json:"categories"`
	Entries    []SnapshotEntry    `json:"entries"`
}

type SnapshotCategory struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Archived  bool   `json:"archived"`
	CreatedAt int64  `json:"createdAt"`
}

type SnapshotEntry struct {
	ISODate   string      `json:"isoDate"`
	Scores    core.Scores `json:"scores"`
	UpdatedAt int64       `json:"updatedAt"`
}

// CategoryList converts the snapshot rows back to domain categories.
func (s *Snapshot) CategoryList() []core.Category {
	out := make([]core.Category, len(s.Categories))
	for i, c := range s.Categories {
		out[i] = core.Category{
			ID:        c.ID,
			Name:      c.Name,
			Archived:  c.Archived,
			CreatedAt: core.MillisToTime(c.CreatedAt),
		}
	}
	return out
}

// EntryList converts the snapshot rows back to domain entries.
func (s *Snapshot) EntryList() []core.Entry {
	out := make([]core.Entry, len(s.Entries))
	for i, e := range s.Entries {
		out[i] = core.Entry{
			ISODate:   e.ISODate,
			Scores:    e.Scores.Clone(),
			UpdatedAt: core.MillisToTime(e.UpdatedAt),
		}
	}
	return out
}

func newSnapshot(exportedAt time.Time, categories []core.Category, entries []core.Entry) *Snapshot {
	snap := &Snapshot{
		Version:    SnapshotVersion,
		ExportedAt: exportedAt.UTC().Format(exportedAtLayout),
		Categories: make([]SnapshotCategory, len(categories)),
		Entries:    make([]SnapshotEntry, len(entries)),
	}
	for i, c := range categories {
		snap.Categories[i] = SnapshotCategory{
			ID:        c.ID,
			Name:      c.Name,
			Archived:  c.Archived,
			CreatedAt: c.CreatedAt.UnixMilli(),
		}
	}
	for i, e := range entries {
		scores := e.Scores
		if scores == nil {
			scores = core.Scores{}
		}
		snap.Entries[i] = SnapshotEntry{
			ISODate:   e.ISODate,
			Scores:    scores,
			UpdatedAt: e.UpdatedAt.UnixMilli(),
		}
	}
	return snap
}
