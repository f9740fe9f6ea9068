package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/pagebind/internal/export"
	"github.com/hyperjump/pagebind/internal/models"
	"github.com/hyperjump/pagebind/internal/source"
	"github.com/hyperjump/pagebind/internal/storage"
	"github.com/hyperjump/pagebind/internal/toc"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	bundles, err := s.storage.CountBundles(ctx)
	if err != nil {
		s.logger.Error("status: count bundles failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	docs, err := s.storage.CountDocuments(ctx)
	if err != nil {
		s.logger.Error("status: count documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{
		"bundles":   bundles,
		"documents": docs,
		"config": map[string]interface{}{
			"database_path":  s.config.Storage.DatabasePath,
			"blob_root":      s.config.Storage.BlobRoot,
			"max_concurrent": cap(s.exports),
		},
	}
	if u, ok := s.blobs.(interface{ UsageBytes() (int64, error) }); ok {
		if n, err := u.UsageBytes(); err == nil {
			resp["blob_usage_bytes"] = n
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	select {
	case s.exports <- struct{}{}:
		defer func() { <-s.exports }()
	case <-r.Context().Done():
		s.respondError(w, http.StatusServiceUnavailable, "export queue busy")
		return
	}
	s.logger.Debug("export request", zap.String("bundle_id", id))
	rec, err := s.svc.Export(r.Context(), id)
	if err != nil {
		s.respondFailure(w, "export", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleListExports(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Exports(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondFailure(w, "list exports", err)
		return
	}
	if list == nil {
		list = []models.Export{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"exports": list})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format != "" && format != "json" && format != "xlsx" {
		s.respondError(w, http.StatusBadRequest, "format must be json or xlsx")
		return
	}
	entries, err := s.svc.Index(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondFailure(w, "index", err)
		return
	}
	if format == "xlsx" {
		var buf bytes.Buffer
		if err := export.WriteIndexWorkbook(&buf, entries); err != nil {
			s.respondFailure(w, "index workbook", err)
			return
		}
		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", `attachment; filename="index.xlsx"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

func (s *Server) handleRendered(w http.ResponseWriter, r *http.Request) {
	hf, err := headerFooterFromQuery(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx := r.Context()
	key, err := s.svc.RenderDocument(ctx, chi.URLParam(r, "id"), hf)
	if err != nil {
		s.respondFailure(w, "render document", err)
		return
	}
	data, err := s.blobs.Read(ctx, key)
	if err != nil {
		s.respondFailure(w, "read rendered document", err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func headerFooterFromQuery(r *http.Request) (models.HeaderFooter, error) {
	q := r.URL.Query()
	hf := models.HeaderFooter{
		HeaderLeft:  q.Get("header_left"),
		HeaderRight: q.Get("header_right"),
		Footer:      q.Get("footer"),
	}
	if v := q.Get("page_numbers"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return hf, errors.New("page_numbers must be a boolean")
		}
		hf.PageNumbers = b
	}
	return hf, nil
}

// statusFor maps service errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, export.ErrNotFile):
		return http.StatusBadRequest
	case errors.Is(err, toc.ErrNoIndex), errors.Is(err, source.ErrUnreadable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondFailure(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(op+" failed", zap.Error(err))
	} else {
		s.logger.Debug(op+" rejected", zap.Error(err))
	}
	s.respondJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
