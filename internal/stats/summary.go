package stats

// Summary is the KPI row shown above the time chart.
type Summary struct {
	Total      float64 `json:"total"`
	Mean       float64 `json:"mean"`
	Min        Point   `json:"min"`
	Max        Point   `json:"max"`
	Days       int     `json:"days"`
	FilledDays int     `json:"filledDays"`
}

// Summarize computes KPIs over the present points of s. Mean is 0 and
// Min/Max are gaps when nothing is present.
func Summarize(s Series) Summary {
	sum := Summary{Days: len(s)}
	for _, p := range s {
		if !p.Present {
			continue
		}
		sum.FilledDays++
		sum.Total += p.Value
		if !sum.Min.Present || p.Value < sum.Min.Value {
			sum.Min = Val(p.Value)
		}
		if !sum.Max.Present || p.Value > sum.Max.Value {
			sum.Max = Val(p.Value)
		}
	}
	if sum.FilledDays > 0 {
		sum.Mean = sum.Total / float64(sum.FilledDays)
	}
	return sum
}
