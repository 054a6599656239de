package http

import (
	"net/http"

	"symptomlog/internal/core"
	applog "symptomlog/internal/log"
	"symptomlog/internal/stats"
)

type putEntryRequest struct {
	Scores core.Scores `json:"scores"`
}

// dayResponse is what the entry form loads for one date: the stored record,
// if any, and a score for every active category.
type dayResponse struct {
	ISODate string      `json:"isoDate"`
	Entry   *EntryJSON  `json:"entry"`
	Scores  core.Scores `json:"scores"`
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
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
	RespondWithJSON(w, r, http.StatusOK, toEntriesJSON(entries))
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	date, err := PathDate(r)
	if err != nil {
		RespondWithServiceError(w, r, err)
		return
	}

	entry, err := s.entries.Get(r.Context(), date)
	if err != nil {
		RespondWithServiceError(w, r, err)
		return
	}
	cats, err := s.listCategories(r.Context(), false)
	if err != nil {
		RespondWithServiceError(w, r, err)
		return
	}

	resp := dayResponse{ISODate: date, Scores: stats.DayScores(entry, cats)}
	if entry != nil {
		e := toEntryJSON(*entry)
		resp.Entry = &e
	}
	RespondWithJSON(w, r, http.StatusOK, resp)
}

func (s *Server) handlePutEntry(w http.ResponseWriter, r *http.Request) {
	date, err := PathDate(r)
	if err != nil {
		RespondWithServiceError(w, r, err)
		return
	}

	var req putEntryRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		RespondWithServiceError(w, r, err)
		return
	}
	if req.Scores == nil {
		RespondWithServiceError(w, r, &core.ValidationError{Field: "scores", Reason: "required"})
		return
	}

	saved, err := s.entries.Upsert(r.Context(), date, req.Scores.Clamped())
	if err != nil {
		RespondWithServiceError(w, r, err)
		return
	}

	applog.FromContext(r.Context()).DebugContext(r.Context(), "Entry saved",
		applog.NewFields().WithEntry(date, len(saved.Scores)).ToSlice()...)
	RespondWithJSON(w, r, http.StatusOK, toEntryJSON(*saved))
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	date, err := PathDate(r)
	if err != nil {
		RespondWithServiceError(w, r, err)
		return
	}

	if err := s.entries.Delete(r.Context(), date); err != nil {
		RespondWithServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
