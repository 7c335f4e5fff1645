package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dgallion1/bidrank/internal/parser"
	"github.com/dgallion1/bidrank/internal/pipeline"
	"github.com/dgallion1/bidrank/internal/rank"
	"github.com/dgallion1/bidrank/internal/rater"
	"github.com/dgallion1/bidrank/internal/report"
	"github.com/dgallion1/bidrank/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// handleEvaluate accepts a multipart batch of proposals and queues it.
//
// Form fields: files (repeated), use_model, explain, weights (JSON object
// with cost, technical and past_performance).
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}
	if len(files) > s.cfg.MaxBatchSize {
		jsonError(w, fmt.Sprintf("too many files: %d (max %d)", len(files), s.cfg.MaxBatchSize), http.StatusBadRequest)
		return
	}

	var weights *rank.Weights
	if v := r.FormValue("weights"); v != "" {
		parsed, err := rank.ParseWeights(strings.NewReader(v))
		if err != nil {
			jsonError(w, "invalid weights: "+err.Error(), http.StatusBadRequest)
			return
		}
		weights = &parsed
	}

	inputs := make([]pipeline.Input, 0, len(files))
	var unsupported []string
	for _, fh := range files {
		filename := sanitizeFilename(fh.Filename)
		if !parser.IsSupportedExtension(filename) {
			unsupported = append(unsupported, filename)
			continue
		}
		f, err := fh.Open()
		if err != nil {
			jsonError(w, "failed to open "+filename, http.StatusBadRequest)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			jsonError(w, "failed to read "+filename, http.StatusBadRequest)
			return
		}
		inputs = append(inputs, pipeline.Input{Filename: filename, Data: data})
	}
	if len(unsupported) > 0 {
		jsonError(w, "unsupported file types: "+strings.Join(unsupported, ", "), http.StatusBadRequest)
		return
	}

	useModel := formBool(r, "use_model")
	explain := formBool(r, "explain")

	// The scoring strategy is fixed here for the whole batch.
	var rt *rater.Rater
	if useModel {
		raters := s.orchestrator.Raters()
		if raters == nil {
			jsonError(w, "rating service not configured", http.StatusServiceUnavailable)
			return
		}
		var err error
		rt, err = raters.Get(r.Context())
		if errors.Is(err, pipeline.ErrNoAPIKey) {
			jsonError(w, fmt.Sprintf("%s; set it with PUT /api/keys/%s", err, raters.Provider()), http.StatusBadRequest)
			return
		}
		if err != nil {
			jsonError(w, "rating service unavailable: "+err.Error(), http.StatusInternalServerError)
			return
		}
	}

	job := pipeline.NewJob(uuid.NewString(), inputs, rt, explain)
	if weights != nil {
		job.SetWeights(*weights)
	}

	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	s.log.Info("evaluate.queued", "job_id", job.ID, "files", len(inputs), "use_model", job.UseModel)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"job_id":     job.ID,
		"status":     pipeline.StatusQueued,
		"files":      job.Files,
		"use_model":  job.UseModel,
		"poll_url":   fmt.Sprintf("/api/evaluate/%s/status", job.ID),
		"report_url": fmt.Sprintf("/api/evaluate/%s/report.json", job.ID),
	})
}

func (s *Server) handleEvaluateStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	var snap pipeline.JobSnapshot
	if job := s.orchestrator.GetJob(jobID); job != nil {
		snap = job.Snapshot()
	} else {
		b, err := s.orchestrator.Batch(r.Context(), jobID)
		if err != nil {
			jsonError(w, "job not found", http.StatusNotFound)
			return
		}
		snap = pipeline.ArchivedSnapshot(b)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snap)
}

// handleReport renders a completed batch as json, xlsx or pdf.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	format, err := report.ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	b, err := s.orchestrator.Batch(r.Context(), jobID)
	switch {
	case errors.Is(err, pipeline.ErrBatchNotReady):
		jsonError(w, "batch is still being evaluated", http.StatusConflict)
		return
	case errors.Is(err, store.ErrNotFound):
		jsonError(w, "job not found", http.StatusNotFound)
		return
	case err != nil:
		s.log.Error("load batch failed", "job_id", jobID, "error", err)
		jsonError(w, "failed to load batch", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := report.Write(&buf, format, b); err != nil {
		s.log.Error("render report failed", "job_id", jobID, "format", format, "error", err)
		jsonError(w, "failed to render report", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.Filename()))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Write(buf.Bytes())
}

func formBool(r *http.Request, key string) bool {
	b, _ := strconv.ParseBool(r.FormValue(key))
	return b
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed"
	}
	return name
}
