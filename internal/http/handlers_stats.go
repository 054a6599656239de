package http

import (
	"fmt"
	"net/http"
	"strings"

	"symptomlog/internal/core"
	applog "symptomlog/internal/log"
	"symptomlog/internal/stats"
)

const (
	modeDaily      = "daily"
	modeCumulative = "cumulative"
)

type seriesResponse struct {
	From     string        `json:"from"`
	To       string        `json:"to"`
	Category string        `json:"category"`
	Mode     string        `json:"mode"`
	Window   int           `json:"window"`
	Days     []string      `json:"days"`
	Values   stats.Series  `json:"values"`
	Average  stats.Series  `json:"movingAverage"`
	Summary  stats.Summary `json:"summary"`
}

type totalsResponse struct {
	From string `json:"from"`
	To   string `json:"to"`
	stats.Totals
}

func parseMode(v string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", modeDaily:
		return modeDaily, nil
	case modeCumulative:
		return modeCumulative, nil
	default:
		return "", &core.ValidationError{Field: "mode", Reason: fmt.Sprintf("unknown mode %q", v)}
	}
}

// handleSeries serves one chart: the daily or cumulative series for a
// category (or all of them), its trailing moving average and the KPIs of
// the daily values.
func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	rng, err := ParseDateRange(q, s.today())
	if err != nil {
		RespondWithServiceError(w, r, err)
		return
	}
	mode, err := parseMode(q.Get("mode"))
	if err != nil {
		RespondWithServiceError(w, r, err)
		return
	}
	window, err := ParseWindow(q, s.maWindow)
	if err != nil {
		RespondWithServiceError(w, r, err)
		return
	}

	sel := stats.SelectAll
	if c := strings.TrimSpace(q.Get("category")); c != "" {
		sel = stats.Selector(c)
	}

	entries, err := s.entries.RangeQuery(r.Context(), rng.From, rng.To)
	if err != nil {
		RespondWithServiceError(w, r, err)
		return
	}

	days := stats.EnumerateDays(rng.From, rng.To)
	daily := stats.DailySeries(days, stats.IndexByDate(entries), sel)

	values := daily
	if mode == modeCumulative {
		values = stats.Cumulative(daily)
	}

	average := stats.Series{}
	if window > 0 {
		average = stats.MovingAverage(values, window)
	}

	fields := applog.NewFields().WithRange(rng.From, rng.To)
	fields[applog.FieldCategoryID] = string(sel)
	fields["days"] = len(days)
	applog.FromContext(r.Context()).DebugContext(r.Context(), "Series computed", fields.ToSlice()...)

	RespondWithJSON(w, r, http.StatusOK, seriesResponse{
		From:     rng.From,
		To:       rng.To,
		Category: string(sel),
		Mode:     mode,
		Window:   window,
		Days:     days,
		Values:   values,
		Average:  average,
		Summary:  stats.Summarize(daily),
	})
}

func (s *Server) handleTotals(w http.ResponseWriter, r *http.Request) {
	rng, err := ParseDateRange(r.URL.Query(), s.today())
	if err != nil {
		RespondWithServiceError(w, r, err)
		return
	}

	entries, err := s.entries.RangeQuery(r.Context(), rng.From, rng.To)
	if err != nil {
		RespondWithServiceError(w, r, err)
		return
	}
	cats, err := s.listCategories(r.Context(), false)
	if err != nil {
		RespondWithServiceError(w, r, err)
		return
	}

	RespondWithJSON(w, r, http.StatusOK, totalsResponse{
		From:   rng.From,
		To:     rng.To,
		Totals: stats.CategoryTotals(entries, cats),
	})
}
