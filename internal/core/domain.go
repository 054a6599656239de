package core

import (
	"errors"
	"strings"
	"time"
)

// ISODateLayout is the only accepted entry date format.
const ISODateLayout = "2006-01-02"

const (
	MinScore = 0
	MaxScore = 3
)

type (
	// Category is a tracked symptom. Categories are archived, never deleted.
	Category struct {
		ID        string
		Name      string
		Archived  bool
		CreatedAt time.Time
	}

	// CategoryPatch carries the fields Update may change. Nil means untouched.
	CategoryPatch struct {
		Name     *string
		Archived *bool
	}

	// Scores maps category id to severity. Keys for unknown categories are
	// kept as-is; aggregation skips them.
	Scores map[string]int

	// Entry is the record for one calendar day.
	Entry struct {
		ISODate   string
		Scores    Scores
		UpdatedAt time.Time
	}
)

var (
	ErrInvalidDate = errors.New("invalid date")
	ErrEmptyName   = errors.New("empty category name")
)

// ParseISODate parses a strict YYYY-MM-DD date in UTC.
func ParseISODate(s string) (time.Time, error) {
	if len(s) != len(ISODateLayout) {
		return time.Time{}, ErrInvalidDate
	}
	t, err := time.Parse(ISODateLayout, s)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

// ValidISODate reports whether s is a strict YYYY-MM-DD date.
func ValidISODate(s string) bool {
	_, err := ParseISODate(s)
	return err == nil
}

// FormatISODate renders the calendar date of t, ignoring its clock.
func FormatISODate(t time.Time) string {
	return t.Format(ISODateLayout)
}

// Today returns the local calendar date.
func Today() string {
	return FormatISODate(time.Now())
}

// ClampScore limits n to [MinScore, MaxScore].
func ClampScore(n int) int {
	if n < MinScore {
		return MinScore
	}
	if n > MaxScore {
		return MaxScore
	}
	return n
}

// Clamped returns a copy with every value clamped. Stores never call this;
// producers of scores do.
func (s Scores) Clamped() Scores {
	out := make(Scores, len(s))
	for id, v := range s {
		out[id] = ClampScore(v)
	}
	return out
}

// Sum adds up every value, including scores of unknown categories.
func (s Scores) Sum() int {
	total := 0
	for _, v := range s {
		total += v
	}
	return total
}

// Clone returns an independent copy. A nil map clones to an empty one.
func (s Scores) Clone() Scores {
	out := make(Scores, len(s))
	for id, v := range s {
		out[id] = v
	}
	return out
}

// NormalizeName trims a category name and rejects empty results.
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyName
	}
	return name, nil
}

// Active returns the non-archived categories, preserving order.
func Active(categories []Category) []Category {
	out := make([]Category, 0, len(categories))
	for _, c := range categories {
		if !c.Archived {
			out = append(out, c)
		}
	}
	return out
}

// MillisToTime converts epoch milliseconds to a UTC time.
func MillisToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
