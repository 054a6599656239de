package http

import (
	"time"

	"symptomlog/internal/core"
)

// CategoryJSON is the API shape of a category. Timestamps are epoch millis
// as in snapshots.
type CategoryJSON struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Archived  bool   `json:"archived"`
	CreatedAt int64  `json:"createdAt"`
}

// EntryJSON is the API shape of an entry.
type EntryJSON struct {
	ISODate   string      `json:"isoDate"`
	Scores    core.Scores `json:"scores"`
	UpdatedAt int64       `json:"updatedAt"`
}

func toCategoryJSON(c core.Category) CategoryJSON {
	return CategoryJSON{
		ID:        c.ID,
		Name:      c.Name,
		Archived:  c.Archived,
		CreatedAt: c.CreatedAt.UnixMilli(),
	}
}

func toCategoriesJSON(cats []core.Category) []CategoryJSON {
	out := make([]CategoryJSON, len(cats))
	for i, c := range cats {
		out[i] = toCategoryJSON(c)
	}
	return out
}

func toEntryJSON(e core.Entry) EntryJSON {
	scores := e.Scores
	if scores == nil {
		scores = core.Scores{}
	}
	return EntryJSON{ISODate: e.ISODate, Scores: scores, UpdatedAt: e.UpdatedAt.UnixMilli()}
}

func toEntriesJSON(entries []core.Entry) []EntryJSON {
	out := make([]EntryJSON, len(entries))
	for i, e := range entries {
		out[i] = toEntryJSON(e)
	}
	return out
}

// localToday is the default "today" for date ranges.
func localToday() time.Time {
	return time.Now()
}
