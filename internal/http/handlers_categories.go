package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"symptomlog/internal/core"
	applog "symptomlog/internal/log"
)

type addCategoryRequest struct {
	Name string `json:"name"`
}

type updateCategoryRequest struct {
	Name     *string `json:"name"`
	Archived *bool   `json:"archived"`
}

type restoreDefaultsResponse struct {
	Categories          []CategoryJSON `json:"categories"`
	OrphanedEntryScores bool           `json:"orphanedEntryScores"`
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	includeArchived, err := ParseBool(r.URL.Query(), "archived")
	if err != nil {
		RespondWithServiceError(w, r, err)
		return
	}

	cats, err := s.listCategories(r.Context(), includeArchived)
	if err != nil {
		RespondWithServiceError(w, r, err)
		return
	}
	RespondWithJSON(w, r, http.StatusOK, toCategoriesJSON(cats))
}

func (s *Server) handleAddCategory(w http.ResponseWriter, r *http.Request) {
	var req addCategoryRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		RespondWithServiceError(w, r, err)
		return
	}

	created, err := s.categories.Add(r.Context(), sanitizeName(req.Name))
	s.invalidateCatalog()
	if err != nil {
		RespondWithServiceError(w, r, err)
		return
	}
	if created == nil {
		RespondWithJSON(w, r, http.StatusUnprocessableEntity, ErrorResponse{
			Error: "category name must not be empty",
			Field: "name",
		})
		return
	}
	RespondWithJSON(w, r, http.StatusCreated, toCategoryJSON(*created))
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateCategoryRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		RespondWithServiceError(w, r, err)
		return
	}
	if req.Name != nil {
		name := sanitizeName(*req.Name)
		req.Name = &name
	}

	found, err := s.categories.Update(r.Context(), id, core.CategoryPatch{Name: req.Name, Archived: req.Archived})
	s.invalidateCatalog()
	if err != nil {
		RespondWithServiceError(w, r, err)
		return
	}
	if !found {
		RespondWithError(w, r, http.StatusNotFound, "category not found")
		return
	}

	updated, err := s.categories.Get(r.Context(), id)
	if err != nil {
		RespondWithServiceError(w, r, err)
		return
	}
	if updated == nil {
		RespondWithError(w, r, http.StatusNotFound, "category not found")
		return
	}
	RespondWithJSON(w, r, http.StatusOK, toCategoryJSON(*updated))
}

func (s *Server) handleRestoreDefaults(w http.ResponseWriter, r *http.Request) {
	cats, err := s.categories.RestoreDefaults(r.Context())
	s.invalidateCatalog()
	if err != nil {
		RespondWithServiceError(w, r, err)
		return
	}

	applog.FromContext(r.Context()).WarnContext(r.Context(), "Category catalog reset, existing entry scores are orphaned",
		applog.FieldOperation, applog.OpRestore,
		applog.FieldCategories, len(cats))

	RespondWithJSON(w, r, http.StatusOK, restoreDefaultsResponse{
		Categories:          toCategoriesJSON(core.SortedByName(cats)),
		OrphanedEntryScores: true,
	})
}
