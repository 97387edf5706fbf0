package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/formlink/formlink/internal/repository"
)

const (
	defaultDeliveryLimit = 50
	maxDeliveryLimit     = 200
)

// GetDelivery handles GET /api/v1/deliveries/{id}
func (h *Handler) GetDelivery(w http.ResponseWriter, r *http.Request) {
	if h.deliveries == nil {
		writeError(w, http.StatusServiceUnavailable, "service_unavailable", "Delivery recording is disabled")
		return
	}

	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusNotFound, "not_found", "Delivery not found")
		return
	}

	d, err := h.deliveries.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "Delivery not found")
			return
		}
		h.log.Error().Err(err).Str("delivery_id", id).Msg("failed to get delivery")
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to get delivery")
		return
	}

	writeJSON(w, http.StatusOK, d)
}

// ListDeliveries handles GET /api/v1/deliveries?limit=n
func (h *Handler) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	if h.deliveries == nil {
		writeError(w, http.StatusServiceUnavailable, "service_unavailable", "Delivery recording is disabled")
		return
	}

	limit := defaultDeliveryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = min(n, maxDeliveryLimit)
	}

	deliveries, err := h.deliveries.ListRecent(r.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list deliveries")
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to list deliveries")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"deliveries": deliveries,
		"count":      len(deliveries),
	})
}
