// Package stats turns fetched entries into chart series, per-category totals
// and KPI summaries. Nothing here touches the store.
package stats

import (
	"encoding/json"
	"time"

	"symptomlog/internal/core"
)

// SelectAll selects the sum over every score of a day.
const SelectAll Selector = "__ALL__"

// Selector is either SelectAll or a category id.
type Selector string

// Point is one value of a series. A day without an entry is not Present and
// is distinct from a recorded zero.
type Point struct {
	Value   float64
	Present bool
}

// Val returns a present point.
func Val(v float64) Point { return Point{Value: v, Present: true} }

// Gap is the absent point.
var Gap = Point{}

func (p Point) MarshalJSON() ([]byte, error) {
	if !p.Present {
		return []byte("null"), nil
	}
	return json.Marshal(p.Value)
}

// Series is a per-day sequence aligned with the days it was built from.
type Series []Point

// EnumerateDays lists every calendar date from from to to inclusive. Bad input
// or from after to yields an empty slice.
func EnumerateDays(from, to string) []string {
	start, err := core.ParseISODate(from)
	if err != nil {
		return []string{}
	}
	end, err := core.ParseISODate(to)
	if err != nil || start.After(end) {
		return []string{}
	}

	days := make([]string, 0, int(end.Sub(start).Hours()/24)+1)
	y, m, d := start.Date()
	for cur := start; !cur.After(end); {
		days = append(days, core.FormatISODate(cur))
		d++
		cur = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	return days
}

// IndexByDate keys entries by their date.
func IndexByDate(entries []core.Entry) map[string]core.Entry {
	out := make(map[string]core.Entry, len(entries))
	for _, e := range entries {
		out[e.ISODate] = e
	}
	return out
}

// DailySeries projects one value per day. Days without an entry are gaps;
// days with an entry but no key for the selected category are 0.
func DailySeries(days []string, byDate map[string]core.Entry, sel Selector) Series {
	out := make(Series, len(days))
	for i, day := range days {
		e, ok := byDate[day]
		if !ok {
			continue
		}
		if sel == SelectAll {
			out[i] = Val(float64(e.Scores.Sum()))
		} else {
			out[i] = Val(float64(e.Scores[string(sel)]))
		}
	}
	return out
}

// Cumulative is the running sum of s. Gaps add nothing and stay gaps.
func Cumulative(s Series) Series {
	out := make(Series, len(s))
	var run float64
	for i, p := range s {
		if !p.Present {
			continue
		}
		run += p.Value
		out[i] = Val(run)
	}
	return out
}

// MovingAverage is the trailing mean over up to window points ending at each
// index. Gaps are skipped, not counted as zero; a window of only gaps is a
// gap. A window below 1 is treated as 1.
func MovingAverage(s Series, window int) Series {
	if window < 1 {
		window = 1
	}
	out := make(Series, len(s))
	for i := range s {
		var sum float64
		var n int
		for j := max(0, i-window+1); j <= i; j++ {
			if s[j].Present {
				sum += s[j].Value
				n++
			}
		}
		if n > 0 {
			out[i] = Val(sum / float64(n))
		}
	}
	return out
}
