package core

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortByName orders categories by display name using German collation, so
// umlauts sort next to their base letters ("Übelkeit" before "Zittern").
// Ties keep their input order.
func SortByName(categories []Category) {
	// Collators keep internal buffers; one per call keeps this safe to use
	// from concurrent requests.
	c := collate.New(language.German)
	sort.SliceStable(categories, func(i, j int) bool {
		return c.CompareString(categories[i].Name, categories[j].Name) < 0
	})
}

// SortedByName returns a sorted copy.
func SortedByName(categories []Category) []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	SortByName(out)
	return out
}
