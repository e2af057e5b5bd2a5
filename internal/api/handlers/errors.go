package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/dvloznov/bookkeeper/internal/api/middleware"
	"github.com/dvloznov/bookkeeper/internal/assist"
	"github.com/dvloznov/bookkeeper/internal/domain"
	"github.com/dvloznov/bookkeeper/internal/extraction"
	"github.com/dvloznov/bookkeeper/internal/logger"
	"github.com/dvloznov/bookkeeper/internal/reconcile"
)

// writeDomainError maps err onto an HTTP status and logs it at the edge.
// Validation failures carry their field list so a client can highlight the
// offending inputs.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())

	var verr *domain.ValidationError
	switch {
	case errors.Is(err, extraction.ErrQuotaExceeded):
		middleware.WriteError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, domain.ErrExternalService):
		log.Error().Err(err).Msg("External service failure")
		middleware.WriteError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		middleware.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrAlreadyLinked),
		errors.Is(err, assist.ErrApplied),
		errors.Is(err, assist.ErrDismissed),
		errors.Is(err, assist.ErrNotReady):
		middleware.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrProtectedAccount):
		middleware.WriteError(w, http.StatusForbidden, err.Error())
	case errors.As(err, &verr):
		middleware.WriteErrorDetails(w, http.StatusUnprocessableEntity, "validation failed", verr.Errors)
	case errors.Is(err, domain.ErrValidation):
		middleware.WriteError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, reconcile.ErrNoStore):
		middleware.WriteError(w, http.StatusServiceUnavailable, err.Error())
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	log.Warn().Err(err).Str("path", r.URL.Path).Msg("Request rejected")
}

// decode reads a JSON body into v, answering 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// parseDate accepts YYYY-MM-DD. An empty string yields the zero time.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		return time.Time{}, &domain.ValidationError{Errors: []domain.FieldError{{
			Entity: "request", Field: "date", Message: "date must be YYYY-MM-DD",
		}}}
	}
	return t, nil
}
