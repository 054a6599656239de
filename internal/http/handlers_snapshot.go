package http

import (
	"bytes"
	"net/http"

	"symptomlog/internal/core"
	"symptomlog/internal/csvexport"
	applog "symptomlog/internal/log"
	"symptomlog/internal/services"
)

func (s *Server) handleExportJSON(w http.ResponseWriter, r *http.Request) {
	snap, err := s.snapshots.ExportAll(r.Context())
	if err != nil {
		RespondWithServiceError(w, r, err)
		return
	}

	date := core.FormatISODate(s.today())
	attachment(w, "application/json", "health-export-"+date+".json")
	RespondWithJSON(w, r, http.StatusOK, snap)
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	layout, err := csvexport.ParseLayout(r.URL.Query().Get("layout"))
	if err != nil {
		RespondWithServiceError(w, r, err)
		return
	}

	snap, err := s.snapshots.ExportAll(r.Context())
	if err != nil {
		RespondWithServiceError(w, r, err)
		return
	}

	// Render fully before writing so a failure still gets a proper status.
	var buf bytes.Buffer
	if err := csvexport.Write(&buf, snap, layout); err != nil {
		RespondWithServiceError(w, r, err)
		return
	}

	attachment(w, "text/csv; charset=utf-8", csvexport.FileName(layout, core.FormatISODate(s.today())))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	policy, err := services.ParseMergePolicy(r.URL.Query().Get("policy"))
	if err != nil {
		RespondWithServiceError(w, r, err)
		return
	}

	data, err := ReadSnapshotBody(w, r)
	if err != nil {
		RespondWithServiceError(w, r, err)
		return
	}

	result, err := s.snapshots.ImportAll(r.Context(), data, policy)
	s.invalidateCatalog()
	if err != nil {
		RespondWithServiceError(w, r, err)
		return
	}

	applog.FromContext(r.Context()).InfoContext(r.Context(), "Snapshot imported via API",
		applog.FieldOperation, applog.OpImport,
		applog.FieldPolicy, result.Policy,
		applog.FieldCategories, result.CategoriesImported,
		applog.FieldEntries, result.EntriesImported)
	RespondWithJSON(w, r, http.StatusOK, result)
}
