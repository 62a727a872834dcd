package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/ErikRydengard/BSI/pkg/common/logger"
	"github.com/ErikRydengard/BSI/pkg/common/models"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/pipeline/run", h.handleRunPipeline).Methods(http.MethodPost)
	r.HandleFunc("/runs", h.handleListRuns).Methods(http.MethodGet)
	r.HandleFunc("/runs/{id}", h.handleGetRun).Methods(http.MethodGet)
	r.HandleFunc("/episodes/{id}/features", h.handleGetFeatures).Methods(http.MethodGet)
	r.HandleFunc("/episodes/{id}/findings", h.handleListFindings).Methods(http.MethodGet)
}

func (h *Handler) handleRunPipeline(w http.ResponseWriter, r *http.Request) {
	var req models.PipelineRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if len(req.Microbiology) == 0 {
		http.Error(w, "microbiology table is required", http.StatusBadRequest)
		return
	}
	if req.RequestedBy == "" {
		req.RequestedBy = resolveActor(r)
	}

	summary, err := h.service.RunPipeline(r.Context(), req)
	if err != nil {
		logger.Log.WithError(err).Error("Pipeline run failed")
		http.Error(w, "pipeline run failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"run": summary})
}

func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.service.ListRuns(r.Context(), parseLimit(r, 50))
	if err != nil {
		logger.Log.WithError(err).Error("Failed to list runs")
		http.Error(w, "failed to list runs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": runs})
}

func (h *Handler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid run id", http.StatusBadRequest)
		return
	}
	run, err := h.service.GetRun(r.Context(), id)
	if err != nil {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"run": run})
}

func (h *Handler) handleGetFeatures(w http.ResponseWriter, r *http.Request) {
	episodeID := mux.Vars(r)["id"]
	set, err := h.service.GetEpisodeFeatures(r.Context(), episodeID)
	if err != nil {
		http.Error(w, "episode not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"features": set})
}

func (h *Handler) handleListFindings(w http.ResponseWriter, r *http.Request) {
	episodeID := mux.Vars(r)["id"]
	findings, err := h.service.ListEpisodeFindings(r.Context(), episodeID)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to list findings")
		http.Error(w, "failed to list findings", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": findings})
}

func parseLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	if v, err := strconv.Atoi(raw); err == nil && v > 0 {
		return v
	}
	return fallback
}

func resolveActor(r *http.Request) string {
	if claims, ok := r.Context().Value(UserContextKey).(map[string]interface{}); ok {
		if sub, ok := claims["sub"].(string); ok && sub != "" {
			return sub
		}
	}
	return "system"
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
