package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"lms/internal/idclock"
	"lms/internal/middleware"
	"lms/internal/repository"
	"lms/internal/search"
	"lms/internal/service"

	"github.com/rs/zerolog"
)

// StalenessHeader advertises how far index-backed reads may lag a write.
const StalenessHeader = "X-Index-Staleness-Bound"

// ReadPolicy controls how handlers treat index failures and what they
// advertise after writes.
type ReadPolicy struct {
	// DegradeOnIndexError answers 200 with an empty page instead of 503.
	DegradeOnIndexError bool
	StalenessBound      time.Duration
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, idclock.ErrInvalidFormat), errors.Is(err, repository.ErrInvalidRow):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrCourseNotFound),
		errors.Is(err, service.ErrLessonNotFound),
		errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, repository.ErrUnavailable),
		errors.Is(err, search.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, logger zerolog.Logger, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Msg(msg)
	}
	http.Error(w, msg+": "+err.Error(), status)
}

// degraded reports whether a failed listing should still be answered with
// its empty page. A request that ran out of time or was cancelled is never
// degraded; its empty page says nothing about the index.
func (p ReadPolicy) degraded(logger zerolog.Logger, err error) bool {
	if !p.DegradeOnIndexError || !errors.Is(err, search.ErrUnavailable) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	logger.Warn().Err(err).Msg("index unavailable, answering with an empty page")
	return true
}

func (p ReadPolicy) markWrite(w http.ResponseWriter) {
	w.Header().Set(StalenessHeader, p.StalenessBound.String())
}

// requireOwner checks that the authenticated user is the path's userId.
func requireOwner(w http.ResponseWriter, r *http.Request, userID string) bool {
	caller, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return false
	}
	if idclock.Canonical(caller) != idclock.Canonical(userID) {
		http.Error(w, "Forbidden: cannot write on behalf of another user", http.StatusForbidden)
		return false
	}
	return true
}

// projection reads includes and excludes, each a comma separated list that
// may be repeated.
func projection(r *http.Request) search.Projection {
	q := r.URL.Query()
	return search.Projection{
		Includes: splitList(q["includes"]),
		Excludes: splitList(q["excludes"]),
	}
}

func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
