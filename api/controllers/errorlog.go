package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/andresvelez/shortreel-backend/api/responses"
	"github.com/andresvelez/shortreel-backend/api/validators"
	"github.com/andresvelez/shortreel-backend/internal/audit"
	"github.com/andresvelez/shortreel-backend/pkg/enums"
	pkgerrors "github.com/andresvelez/shortreel-backend/pkg/errors"
	"github.com/andresvelez/shortreel-backend/pkg/logger"
)

// ErrorLogList returns audit entries, newest first. Query filters: kind,
// category, unresolved, limit.
func ErrorLogList(auditor audit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if auditor == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "audit service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 500)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := audit.ListParams{
			Unresolved: r.URL.Query().Get("unresolved") == "true",
			Limit:      limit,
		}

		if raw := strings.TrimSpace(r.URL.Query().Get("kind")); raw != "" {
			kind, err := enums.ParseEntityKind(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid kind"))
				return
			}
			params.Kind = kind
		}

		if raw := strings.TrimSpace(r.URL.Query().Get("category")); raw != "" {
			category, err := enums.ParseErrorCategory(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid category"))
				return
			}
			params.Category = category
		}

		entries, err := auditor.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, entries)
	}
}

// ErrorLogResolve flips the resolved flag. Entries are never deleted here;
// retention handles cleanup of resolved rows.
func ErrorLogResolve(auditor audit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if auditor == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "audit service unavailable"))
			return
		}

		id, err := validators.ParsePathUUID(chi.URLParam(r, "errorId"), "errorId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := auditor.Resolve(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"id": id.String(), "resolved": true})
	}
}
