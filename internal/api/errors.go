package api

import (
	"errors"
	"net/http"

	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/boundary"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/catalog"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/exporter"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/planner"
)

// StatusFor maps domain errors onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, errBadBody),
		errors.Is(err, planner.ErrInvalidSelection),
		errors.Is(err, boundary.ErrEmptySource),
		errors.Is(err, boundary.ErrInvalidBoundary):
		return http.StatusBadRequest
	case errors.Is(err, planner.ErrPrecondition):
		return http.StatusConflict
	case errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, boundary.ErrTableNotFound),
		errors.Is(err, boundary.ErrNoMatch):
		return http.StatusNotFound
	case errors.Is(err, planner.ErrCollaborator),
		errors.Is(err, exporter.ErrSubmit):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway {
		h.log.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "err", err)
		msg = http.StatusText(status)
	} else {
		h.log.DebugContext(r.Context(), "request rejected", "path", r.URL.Path, "status", status, "err", err)
	}
	writeJSON(w, status, map[string]string{"error": msg})
}
