package stats

import "symptomlog/internal/core"

// Totals holds parallel slices: one name, id and summed score per active
// category, in the same order the catalog is listed.
type Totals struct {
	Names  []string `json:"names"`
	IDs    []string `json:"ids"`
	Values []int    `json:"values"`
}

// CategoryTotals sums each active category's score over entries. Archived
// categories and scores for unknown ids are left out.
func CategoryTotals(entries []core.Entry, categories []core.Category) Totals {
	active := core.SortedByName(core.Active(categories))

	t := Totals{
		Names:  make([]string, len(active)),
		IDs:    make([]string, len(active)),
		Values: make([]int, len(active)),
	}
	for i, c := range active {
		t.Names[i] = c.Name
		t.IDs[i] = c.ID
		for _, e := range entries {
			t.Values[i] += e.Scores[c.ID]
		}
	}
	return t
}

// DayScores fills a day's scores for editing: the stored scores, plus a 0
// for every active category that has no key yet. entry may be nil.
func DayScores(entry *core.Entry, active []core.Category) core.Scores {
	out := core.Scores{}
	if entry != nil {
		out = entry.Scores.Clone()
	}
	for _, c := range active {
		if c.Archived {
			continue
		}
		if _, ok := out[c.ID]; !ok {
			out[c.ID] = 0
		}
	}
	return out
}
