package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kensaku-io/kensaku/internal/models"
	"github.com/kensaku-io/kensaku/internal/query"
	"github.com/kensaku-io/kensaku/internal/search"
	"github.com/kensaku-io/kensaku/internal/storage"
	"github.com/kensaku-io/kensaku/internal/template"
)

type searchRequest struct {
	Query    string                 `json:"query"`
	Mode     string                 `json:"mode,omitempty"`
	Page     int                    `json:"page,omitempty"`
	PageSize int                    `json:"page_size,omitempty"`
	Criteria *models.SearchCriteria `json:"criteria,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("search request",
		zap.String("query", req.Query), zap.String("mode", req.Mode), zap.Int("page", req.Page))

	var (
		results *models.SearchResults
		err     error
	)
	if req.Criteria != nil {
		results, err = s.engine.SearchCriteria(r.Context(), req.Criteria, req.Page, req.PageSize)
	} else {
		mode := search.Mode(req.Mode)
		if mode == "" {
			mode = search.ModeAuto
		}
		results, err = s.engine.Search(r.Context(), req.Query, mode, req.Page, req.PageSize)
	}
	if err != nil {
		s.respondSearchError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, results)
}

// respondSearchError maps query syntax and unknown-field errors to 400; all
// other failures are internal.
func (s *Server) respondSearchError(w http.ResponseWriter, err error) {
	var lexErr *query.LexError
	var parseErr *query.ParseError
	var execErr *search.ExecError
	switch {
	case errors.As(err, &lexErr), errors.As(err, &parseErr), errors.As(err, &execErr):
		s.respondError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("q")
	suggestions := s.engine.Suggest(prefix)
	if suggestions == nil {
		suggestions = []string{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"suggestions": suggestions})
}

func (s *Server) handleUpsertRecord(w http.ResponseWriter, r *http.Request) {
	var rec models.MediaRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if rec.ID == "" {
		s.respondError(w, http.StatusBadRequest, "record id is required")
		return
	}
	s.logger.Debug("upsert record request", zap.String("id", rec.ID), zap.String("title", rec.Title))
	if err := s.engine.OnRecordUpdated(r.Context(), &rec); err != nil {
		s.logger.Error("indexing failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]string{"id": rec.ID, "status": "indexed"})
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec := s.engine.Record(id)
	if rec == nil {
		s.respondError(w, http.StatusNotFound, "record not found")
		return
	}
	s.respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete record request", zap.String("id", id))
	if err := s.engine.OnRecordDeleted(r.Context(), id); err != nil {
		s.logger.Error("deletion failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type templateRequest struct {
	Name        string                `json:"name"`
	Description string                `json:"description,omitempty"`
	Criteria    models.SearchCriteria `json:"criteria"`
	Overwrite   bool                  `json:"overwrite,omitempty"`
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"templates": s.engine.Templates().List()})
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		s.respondError(w, http.StatusBadRequest, "template name is required")
		return
	}
	tpl, err := s.engine.Templates().Create(req.Name, req.Description, req.Criteria, req.Overwrite)
	if err != nil {
		if errors.Is(err, template.ErrConflict) {
			s.respondError(w, http.StatusConflict, "template already exists")
			return
		}
		s.logger.Error("template create failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, tpl)
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	tpl, err := s.engine.Templates().Get(name)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "template not found")
		return
	}
	s.respondJSON(w, http.StatusOK, tpl)
}

func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req templateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	tpl, err := s.engine.Templates().Update(name, req.Description, req.Criteria)
	if err != nil {
		if errors.Is(err, template.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "template not found")
			return
		}
		s.logger.Error("template update failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, tpl)
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.engine.Templates().Delete(name); err != nil {
		if errors.Is(err, template.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "template not found")
			return
		}
		s.logger.Error("template delete failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleTemplateSearch(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req searchRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	results, err := s.engine.SearchTemplate(r.Context(), name, req.Page, req.PageSize)
	if err != nil {
		if errors.Is(err, template.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "template not found")
			return
		}
		s.respondSearchError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, results)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats := s.engine.Stats()
	resp := map[string]interface{}{
		"stats":     stats,
		"templates": len(s.engine.Templates().List()),
	}

	configInfo := map[string]interface{}{
		"database_path":   s.config.Storage.DatabasePath,
		"snapshot_path":   s.config.Storage.SnapshotPath,
		"strict_fields":   s.config.Search.StrictFields,
		"default_limit":   s.config.Search.DefaultLimit,
		"max_limit":       s.config.Search.MaxLimit,
		"facet_top_n":     s.config.Search.FacetTopN,
		"max_suggestions": s.config.Suggest.MaxSuggestions,
	}
	diskBytes, err := storage.DiskUsageBytes(
		s.config.Storage.DatabasePath,
		s.config.Storage.SnapshotPath,
	)
	if err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	resp["config"] = configInfo
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
