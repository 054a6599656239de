// Package csvexport renders an exported snapshot as CSV for spreadsheets.
package csvexport

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"symptomlog/internal/core"
	"symptomlog/internal/services"
)

// Layout picks the CSV shape.
type Layout int

const (
	// Wide has one column per category and one row per day.
	Wide Layout = iota
	// Long has one row per recorded (day, category) score.
	Long
)

func (l Layout) String() string {
	if l == Long {
		return "long"
	}
	return "wide"
}

// ParseLayout accepts "", "wide" and "long".
func ParseLayout(s string) (Layout, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "wide":
		return Wide, nil
	case "long":
		return Long, nil
	default:
		return Wide, &core.ValidationError{Field: "layout", Reason: fmt.Sprintf("unknown csv layout %q", s)}
	}
}

// Header cells.
const (
	colDate     = "Datum"
	colCategory = "Kategorie"
	colValue    = "Wert"
)

// Write renders snap in the given layout.
func Write(w io.Writer, snap *services.Snapshot, layout Layout) error {
	if layout == Long {
		return WriteLong(w, snap)
	}
	return WriteWide(w, snap)
}

// WriteWide writes a Datum column followed by every category, archived ones
// included, in collation order. Unscored cells stay empty.
func WriteWide(w io.Writer, snap *services.Snapshot) error {
	categories := core.SortedByName(snap.CategoryList())

	cw := csv.NewWriter(w)
	header := make([]string, 0, len(categories)+1)
	header = append(header, colDate)
	for _, c := range categories {
		header = append(header, c.Name)
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, e := range sortedEntries(snap) {
		row := make([]string, 0, len(header))
		row = append(row, e.ISODate)
		for _, c := range categories {
			v, ok := e.Scores[c.ID]
			if !ok {
				row = append(row, "")
				continue
			}
			row = append(row, strconv.Itoa(v))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %s: %w", e.ISODate, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteLong writes Datum,Kategorie,Wert rows. Scores for ids missing from
// the catalog are written with the raw id as category.
func WriteLong(w io.Writer, snap *services.Snapshot) error {
	names := make(map[string]string, len(snap.Categories))
	for _, c := range snap.Categories {
		names[c.ID] = c.Name
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{colDate, colCategory, colValue}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, e := range sortedEntries(snap) {
		ids := make([]string, 0, len(e.Scores))
		for id := range e.Scores {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		for _, id := range ids {
			name, ok := names[id]
			if !ok {
				name = id
			}
			if err := cw.Write([]string{e.ISODate, name, strconv.Itoa(e.Scores[id])}); err != nil {
				return fmt.Errorf("write row %s: %w", e.ISODate, err)
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

// FileName is the suggested download name, e.g. health-export-wide-2024-05-01.csv.
func FileName(layout Layout, isoDate string) string {
	return fmt.Sprintf("health-export-%s-%s.csv", layout, isoDate)
}

func sortedEntries(snap *services.Snapshot) []core.Entry {
	entries := snap.EntryList()
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ISODate < entries[j].ISODate
	})
	return entries
}
