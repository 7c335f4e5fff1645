package api

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// handleListBatches lists archived batches, newest first.
func (s *Server) handleListBatches(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		jsonError(w, "batch archive unavailable", http.StatusServiceUnavailable)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			jsonError(w, "limit must be between 1 and 500", http.StatusBadRequest)
			return
		}
		limit = n
	}

	batches, err := s.store.ListBatches(r.Context(), limit)
	if err != nil {
		jsonError(w, "failed to list batches: "+err.Error(), http.StatusInternalServerError)
		return
	}
	for i := range batches {
		batches[i].ReportURL = "/api/evaluate/" + batches[i].ID + "/report.json"
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"batches": batches})
}
