// Package handlers exposes the lifecycle engine over a JSON API. The
// handlers translate between HTTP and the engine's error taxonomy; all
// policy lives in the services they call.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"kapitbahay/internal/heatmap"
	"kapitbahay/internal/lifecycle"
	"kapitbahay/internal/models"
	"kapitbahay/internal/modqueue"
	"kapitbahay/internal/proximity"
	"kapitbahay/internal/reactions"
	"kapitbahay/internal/search"
	"kapitbahay/internal/store"
)

// Handler contains all HTTP handler methods and their dependencies.
// Dependencies are injected via the constructor for better testability.
type Handler struct {
	lifecycle *lifecycle.Service
	reactions *reactions.Aggregator
	modqueue  *modqueue.Service
	heatmap   *heatmap.Service
	search    *search.Service
	index     *proximity.Index
	store     *store.Store
}

// NewHandler creates a new Handler with all required dependencies.
func NewHandler(
	lc *lifecycle.Service,
	agg *reactions.Aggregator,
	mq *modqueue.Service,
	hm *heatmap.Service,
	sr *search.Service,
	index *proximity.Index,
	st *store.Store,
) *Handler {
	return &Handler{
		lifecycle: lc,
		reactions: agg,
		modqueue:  mq,
		heatmap:   hm,
		search:    sr,
		index:     index,
		store:     st,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to encode response")
	}
}

type errorResponse struct {
	Error          string  `json:"error"`
	Code           string  `json:"code"`
	ExistingPostID string  `json:"existing_post_id,omitempty"`
	RetryAfterSecs float64 `json:"retry_after_seconds,omitempty"`
}

// writeError maps the engine's error taxonomy onto HTTP statuses and
// machine-readable reason codes.
func writeError(w http.ResponseWriter, err error) {
	var dup *lifecycle.DuplicateError
	var rl *lifecycle.RateLimitError
	switch {
	case errors.As(err, &dup):
		writeJSON(w, http.StatusConflict, errorResponse{
			Error: err.Error(), Code: "DUPLICATE_POST", ExistingPostID: dup.ExistingPostID,
		})
	case errors.As(err, &rl):
		w.Header().Set("Retry-After", strconv.Itoa(int(rl.RetryAfter.Seconds())))
		writeJSON(w, http.StatusTooManyRequests, errorResponse{
			Error: err.Error(), Code: "RATE_LIMITED", RetryAfterSecs: rl.RetryAfter.Seconds(),
		})
	case errors.Is(err, lifecycle.ErrEmptyContent),
		errors.Is(err, lifecycle.ErrContentTooLong),
		errors.Is(err, lifecycle.ErrInvalidCoordinate),
		errors.Is(err, lifecycle.ErrUnknownCategory),
		errors.Is(err, reactions.ErrInvalidReaction),
		errors.Is(err, modqueue.ErrUnknownAction):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "VALIDATION"})
	case errors.Is(err, lifecycle.ErrRoleRestricted),
		errors.Is(err, lifecycle.ErrAuthorMuted),
		errors.Is(err, lifecycle.ErrNotAuthor),
		errors.Is(err, store.ErrNotAuthor):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: err.Error(), Code: "FORBIDDEN"})
	case errors.Is(err, store.ErrSelfReaction):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: err.Error(), Code: "SELF_REACTION"})
	case errors.Is(err, store.ErrNoExtensions):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Code: "NO_EXTENSIONS"})
	case errors.Is(err, store.ErrTooEarly):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Code: "TOO_EARLY"})
	case errors.Is(err, store.ErrLowEngagement):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Code: "LOW_ENGAGEMENT"})
	case errors.Is(err, store.ErrAlreadyReported):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Code: "ALREADY_REPORTED"})
	case errors.Is(err, store.ErrPostNotActive):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error(), Code: "POST_NOT_ACTIVE"})
	case errors.Is(err, lifecycle.ErrConflict), errors.Is(err, store.ErrQueueItemClosed):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Code: "CONFLICT"})
	default:
		log.Error().Err(err).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error", Code: "INTERNAL"})
	}
}

type submitRequest struct {
	AuthorID string  `json:"author_id"`
	Category string  `json:"category"`
	Content  string  `json:"content"`
	PhotoURL string  `json:"photo_url,omitempty"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
}

// HandleSubmitPost creates a post from a validated submission.
func (h *Handler) HandleSubmitPost(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed body", Code: "VALIDATION"})
		return
	}

	post, err := h.lifecycle.Submit(r.Context(), lifecycle.SubmitInput{
		AuthorID: req.AuthorID,
		Category: models.Category(req.Category),
		Content:  req.Content,
		PhotoURL: req.PhotoURL,
		Lat:      req.Lat,
		Lng:      req.Lng,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

// HandleDeletePost removes the caller's own active post.
func (h *Handler) HandleDeletePost(w http.ResponseWriter, r *http.Request) {
	if err := h.lifecycle.Delete(r.Context(), r.PathValue("id"), r.URL.Query().Get("user_id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleFeed answers a proximity feed query against the live index.
func (h *Handler) HandleFeed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(q.Get("lng"), 64)
	if errLat != nil || errLng != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "lat and lng are required", Code: "VALIDATION"})
		return
	}

	radius := 1000.0
	if v := q.Get("radius_m"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			radius = parsed
		}
	}
	query := proximity.Query{
		Lat:          lat,
		Lng:          lng,
		RadiusMeters: radius,
		Sort:         proximity.Sort(q.Get("sort")),
		Limit:        50,
	}
	for _, c := range q["category"] {
		query.Categories = append(query.Categories, models.Category(c))
	}
	if v := q.Get("since"); v != "" {
		if since, err := time.Parse(time.RFC3339, v); err == nil {
			query.Since = since
		}
	}
	if v := q.Get("limit"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil && limit > 0 {
			query.Limit = limit
		}
	}
	if v := q.Get("offset"); v != "" {
		if offset, err := strconv.Atoi(v); err == nil && offset >= 0 {
			query.Offset = offset
		}
	}

	results, total := h.index.Search(query)
	writeJSON(w, http.StatusOK, map[string]any{
		"posts": results,
		"total": total,
	})
}

// HandleSearch answers a full-text query over active posts near a point.
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(q.Get("lng"), 64)
	if errLat != nil || errLng != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "lat and lng are required", Code: "VALIDATION"})
		return
	}
	radius := 0.0
	if v := q.Get("radius_m"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			radius = parsed
		}
	}

	results, err := h.search.Search(q.Get("q"), lat, lng, radius)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "VALIDATION"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"total":   len(results),
	})
}

type reactionRequest struct {
	UserID string `json:"user_id"`
	Type   string `json:"reaction"`
}

// HandleReaction applies or switches the caller's reaction on a post.
func (h *Handler) HandleReaction(w http.ResponseWriter, r *http.Request) {
	var req reactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed body", Code: "VALIDATION"})
		return
	}
	out, err := h.reactions.Apply(r.Context(), r.PathValue("id"), req.UserID, models.ReactionType(req.Type))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"reactions":    out.Counts,
		"ttl_extended": out.TTLExtended,
		"auto_removed": out.AutoRemoved,
		"expires_at":   out.ExpiresAt,
	})
}

type reportRequest struct {
	ReporterID string `json:"reporter_id"`
	Reason     string `json:"reason"`
	Details    string `json:"details,omitempty"`
}

// HandleReport records a community report on a post.
func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed body", Code: "VALIDATION"})
		return
	}
	err := h.lifecycle.Report(r.Context(), models.Report{
		PostID:     r.PathValue("id"),
		ReporterID: req.ReporterID,
		Reason:     models.ReportReason(req.Reason),
		Details:    req.Details,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// HandleExtend grants the author-driven TTL extension.
func (h *Handler) HandleExtend(w http.ResponseWriter, r *http.Request) {
	out, err := h.lifecycle.Extend(r.Context(), r.PathValue("id"), r.URL.Query().Get("user_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"new_expires_at":       out.NewExpiresAt,
		"extensions_remaining": out.ExtensionsRemaining,
	})
}

// HandleView counts a feed impression.
func (h *Handler) HandleView(w http.ResponseWriter, r *http.Request) {
	if err := h.lifecycle.RecordView(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleHeatmap serves the advisory density aggregate for a viewport.
func (h *Handler) HandleHeatmap(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(q.Get("lng"), 64)
	if errLat != nil || errLng != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "lat and lng are required", Code: "VALIDATION"})
		return
	}
	radius := 1000.0
	if v := q.Get("radius_m"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			radius = parsed
		}
	}

	cells, err := h.heatmap.Around(r.Context(), lat, lng, radius, heatmap.Resolution(q.Get("resolution")))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "VALIDATION"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cells": cells})
}

type vendorLocationRequest struct {
	VendorID string  `json:"vendor_id"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
}

// HandleVendorLocation broadcasts a vendor's current position.
func (h *Handler) HandleVendorLocation(w http.ResponseWriter, r *http.Request) {
	var req vendorLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed body", Code: "VALIDATION"})
		return
	}
	if err := h.lifecycle.PublishVendorLocation(r.Context(), req.VendorID, req.Lat, req.Lng); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
