package api

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handleLLMStats(w http.ResponseWriter, r *http.Request) {
	raters := s.orchestrator.Raters()
	if raters == nil {
		jsonError(w, "llm stats unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"provider":    raters.Provider(),
		"queue_depth": s.orchestrator.QueueDepth(),
		"stats":       raters.Stats().Snapshot(),
	})
}
