package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/flowledger/ledgerd/internal/classify"
	"github.com/flowledger/ledgerd/internal/common"
	"github.com/flowledger/ledgerd/internal/ingest"
	"github.com/flowledger/ledgerd/internal/model"
	"github.com/flowledger/ledgerd/internal/service"
)

type errorResponse struct {
	Error  string `json:"error"`
	Code   string `json:"code,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleIngest accepts a multipart upload under the "file" field and runs it
// through the full pipeline. Rejections come back as 422 with the rejection
// code; malformed requests as 400.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	tenant := s.tenantFrom(r)

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid multipart request"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing file field"})
		return
	}
	defer func() { _ = file.Close() }()

	var result *model.IngestResult
	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".csv":
		grid, readErr := ingest.ReadCSV(file, header.Filename)
		if readErr != nil {
			s.writeError(w, readErr)
			return
		}
		result, err = s.ingestor.IngestGrid(r.Context(), tenant, grid)
	case ".xlsx":
		// The xlsx reader needs a seekable file on disk. The grid keeps the
		// upload's filename, not the spool name, so the kind-detection
		// filename hints still see it.
		path, spoolErr := spoolUpload(file, header.Filename)
		if spoolErr != nil {
			s.logger.Error("failed to spool upload", "error", spoolErr)
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to store upload"})
			return
		}
		defer func() { _ = os.Remove(path) }()
		grid, readErr := ingest.ReadXLSX(path, header.Filename)
		if readErr != nil {
			s.writeError(w, readErr)
			return
		}
		result, err = s.ingestor.IngestGrid(r.Context(), tenant, grid)
	default:
		s.writeError(w, common.NewRejection(common.ErrUnsupportedFormat,
			"FORMAT_REJECTED", "only .csv and .xlsx files are accepted"))
		return
	}

	if err != nil {
		s.writeError(w, err)
		return
	}

	s.logger.Info("file ingested",
		"tenant", tenant,
		"file", header.Filename,
		"accepted", result.Accepted,
		"quarantined", result.Quarantined,
		"duplicates", result.Duplicates)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	tenant := s.tenantFrom(r)

	filter := service.EventFilter{
		Status:   model.EventStatus(r.URL.Query().Get("status")),
		Category: r.URL.Query().Get("category"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid limit"})
			return
		}
		filter.Limit = limit
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid offset"})
			return
		}
		filter.Offset = offset
	}

	events, err := s.store.GetEvents(r.Context(), tenant, filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events, "count": len(events)})
}

func (s *Server) handleListQuarantine(w http.ResponseWriter, r *http.Request) {
	tenant := s.tenantFrom(r)

	records, err := s.reviewer.Pending(r.Context(), tenant)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"quarantine": records, "count": len(records)})
}

type resolveRequest struct {
	Decision    string `json:"decision"`
	Category    string `json:"category,omitempty"`
	SubCategory string `json:"sub_category,omitempty"`
}

func (s *Server) handleResolveQuarantine(w http.ResponseWriter, r *http.Request) {
	tenant := s.tenantFrom(r)
	eventID := chi.URLParam(r, "eventID")

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	var decision classify.Decision
	switch strings.ToUpper(req.Decision) {
	case string(classify.DecisionApprove):
		decision = classify.DecisionApprove
	case string(classify.DecisionReject):
		decision = classify.DecisionReject
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "decision must be APPROVE or REJECT"})
		return
	}

	var correction *model.Correction
	if req.Category != "" {
		correction = &model.Correction{Category: req.Category, SubCategory: req.SubCategory}
	}

	if err := s.reviewer.Resolve(r.Context(), tenant, eventID, decision, correction); err != nil {
		s.writeError(w, err)
		return
	}

	s.logger.Info("quarantine resolved",
		"tenant", tenant,
		"event_id", eventID,
		"decision", string(decision))
	writeJSON(w, http.StatusOK, map[string]string{"status": "resolved", "event_id": eventID})
}

func (s *Server) handleListPatterns(w http.ResponseWriter, r *http.Request) {
	tenant := s.tenantFrom(r)

	patterns, err := s.store.ListPatterns(r.Context(), tenant)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"patterns": patterns, "count": len(patterns)})
}

func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	tenant := s.tenantFrom(r)

	entities, err := s.store.ListEntities(r.Context(), tenant)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entities": entities, "count": len(entities)})
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.store.GetCategories(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": categories, "count": len(categories)})
}

type createCategoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "name is required"})
		return
	}

	category, err := s.store.CreateCategory(r.Context(), req.Name, req.Description)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, category)
}

// writeError translates pipeline errors into HTTP responses. Rejections keep
// their code so callers can distinguish a bad file from a broken server.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var rejection *common.RejectionError
	switch {
	case errors.As(err, &rejection):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:  "file rejected",
			Code:   rejection.Code,
			Reason: rejection.Reason,
		})
	case errors.Is(err, common.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, common.ErrAlreadyResolved):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "already resolved"})
	case errors.Is(err, common.ErrDuplicateEntry):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "duplicate entry"})
	default:
		s.logger.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// spoolUpload copies a multipart part to a temp file and returns its path.
func spoolUpload(src io.Reader, filename string) (string, error) {
	tmp, err := os.CreateTemp("", "upload-*"+filepath.Ext(filename))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, src); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}
