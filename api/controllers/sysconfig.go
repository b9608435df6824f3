package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/andresvelez/shortreel-backend/api/responses"
	"github.com/andresvelez/shortreel-backend/api/validators"
	"github.com/andresvelez/shortreel-backend/internal/sysconfig"
	pkgerrors "github.com/andresvelez/shortreel-backend/pkg/errors"
	"github.com/andresvelez/shortreel-backend/pkg/logger"
)

// ConfigList returns every stored override with its current value.
func ConfigList(cfg sysconfig.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "config service unavailable"))
			return
		}

		entries, err := cfg.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, entries)
	}
}

type configSetRequest struct {
	Value       string `json:"value" validate:"required,max=1024"`
	Description string `json:"description" validate:"max=1024"`
}

// ConfigSet upserts one override. Unknown keys are rejected so typos do not
// silently create dead settings.
func ConfigSet(cfg sysconfig.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "config service unavailable"))
			return
		}

		key := strings.TrimSpace(chi.URLParam(r, "key"))
		if key == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "config key is required"))
			return
		}

		var payload configSetRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := cfg.Set(r.Context(), key, payload.Value, payload.Description); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"key": key, "value": payload.Value})
	}
}
