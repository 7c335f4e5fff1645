package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dgallion1/bidrank/internal/rater"
	"github.com/go-chi/chi/v5"
)

var keyServices = map[string]bool{
	rater.ProviderClaude: true,
	rater.ProviderGemini: true,
	rater.ProviderOpenAI: true,
}

// handlePutKey stores the API key for a rating provider.
func (s *Server) handlePutKey(w http.ResponseWriter, r *http.Request) {
	service := strings.ToLower(chi.URLParam(r, "service"))
	if !keyServices[service] {
		jsonError(w, "unknown service: "+service, http.StatusBadRequest)
		return
	}
	if s.store == nil {
		jsonError(w, "key store unavailable", http.StatusServiceUnavailable)
		return
	}

	var body struct {
		APIKey string `json:"api_key"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 8<<10)).Decode(&body); err != nil {
		jsonError(w, "invalid body: "+err.Error(), http.StatusBadRequest)
		return
	}
	body.APIKey = strings.TrimSpace(body.APIKey)
	if body.APIKey == "" {
		jsonError(w, "api_key is required", http.StatusBadRequest)
		return
	}

	if err := s.store.SaveAPIKey(r.Context(), service, body.APIKey); err != nil {
		s.log.Error("save api key failed", "service", service, "error", err)
		jsonError(w, "failed to save key", http.StatusInternalServerError)
		return
	}
	s.log.Info("api key saved", "service", service)
	w.WriteHeader(http.StatusNoContent)
}
