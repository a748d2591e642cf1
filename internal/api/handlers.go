package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"time"

	apperrors "insight-agents/internal/common/errors"
	"insight-agents/internal/common/logger"
	orchestratequery "insight-agents/internal/workers/ai-conversation/orchestrate-query"
	"insight-agents/internal/models"
)

const maxBodyBytes = 1 << 20

type handler struct {
	orchestrator QueryProcessor
	readiness    map[string]Pinger
	logger       logger.Logger
	now          func() time.Time
}

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (h *handler) Query(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context(), h.logger)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, log, http.StatusBadRequest, errorBody{Error: "could not read request body"})
		return
	}

	q, err := orchestratequery.ParseQuery(body)
	if err != nil {
		log.Warn("rejected query request", map[string]interface{}{"error": err.Error()})
		writeJSON(w, log, http.StatusBadRequest, errorBody{Error: apperrors.Normalize(err).Error()})
		return
	}

	resp := h.orchestrator.ProcessQuery(r.Context(), *q)

	status := http.StatusOK
	if resp.Metadata.Intent == models.IntentUnknown {
		status = http.StatusInternalServerError
	}
	writeJSON(w, log, status, resp)
}

func (h *handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

// Ready pings every configured dependency and reports each one.
func (h *handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.readiness))
	for name := range h.readiness {
		names = append(names, name)
	}
	sort.Strings(names)

	checks := make(map[string]string, len(names))
	status := http.StatusOK
	for _, name := range names {
		if err := h.readiness[name].Ping(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not ready"
	}
	writeJSON(w, h.logger, status, map[string]interface{}{
		"status":    state,
		"checks":    checks,
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, log logger.Logger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode response", map[string]interface{}{"error": err.Error()})
	}
}
