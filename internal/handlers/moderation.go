package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"kapitbahay/internal/models"
)

// HandleQueueList returns open moderation queue items in review order.
func (h *Handler) HandleQueueList(w http.ResponseWriter, r *http.Request) {
	status := models.QueueStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = models.QueuePending
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	items, err := h.modqueue.List(r.Context(), status, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	counts, err := h.modqueue.Counts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":  items,
		"counts": counts,
	})
}

type resolveRequest struct {
	Action      string `json:"action"`
	Note        string `json:"note,omitempty"`
	ModeratorID string `json:"moderator_id"`
}

// HandleQueueResolve applies a moderator decision to a queue item.
func (h *Handler) HandleQueueResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed body", Code: "VALIDATION"})
		return
	}
	err := h.modqueue.Resolve(r.Context(), r.PathValue("id"), models.ModAction(req.Action), req.Note, req.ModeratorID)
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleModerationLog returns the most recent audit-log entries.
func (h *Handler) HandleModerationLog(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	entries, err := h.modqueue.Log(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
