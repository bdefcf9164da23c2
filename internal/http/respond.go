package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/fjod/mongomart/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, r *http.Request, status int, code, message, details string) {
	respondJSON(w, r, status, ErrorResponse{
		Error:   message,
		Code:    code,
		Details: details,
	})
}

// handleServiceError converts service errors to HTTP status codes.
func handleServiceError(w http.ResponseWriter, r *http.Request, logger zerolog.Logger, err error) {
	var inputErr *service.InputError

	switch {
	case errors.As(err, &inputErr):
		respondError(w, r, http.StatusBadRequest, "invalid_input", inputErr.Error(), inputErr.Field)
	case errors.Is(err, service.ErrNotFound):
		respondError(w, r, http.StatusNotFound, "not_found", err.Error(), "")
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, r, http.StatusGatewayTimeout, "timeout", "request timed out", "")
	case errors.Is(err, service.ErrStoreUnavailable):
		logger.Error().Err(err).Str("request_id", RequestIDFromContext(r.Context())).Msg("store unavailable")
		respondError(w, r, http.StatusServiceUnavailable, "store_unavailable", "store unavailable", "")
	default:
		logger.Error().Err(err).Str("request_id", RequestIDFromContext(r.Context())).Msg("unexpected error")
		respondError(w, r, http.StatusInternalServerError, "internal_error", "internal server error", "")
	}
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func itemIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// pageParam reads the zero-based page query parameter, defaulting to 0.
func pageParam(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("page")
	if raw == "" {
		return 0, true
	}
	page, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return page, true
}
