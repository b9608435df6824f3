package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/andresvelez/shortreel-backend/api/responses"
	"github.com/andresvelez/shortreel-backend/api/validators"
	"github.com/andresvelez/shortreel-backend/internal/ingest"
	"github.com/andresvelez/shortreel-backend/internal/processing"
	"github.com/andresvelez/shortreel-backend/internal/scoring"
	pkgerrors "github.com/andresvelez/shortreel-backend/pkg/errors"
	"github.com/andresvelez/shortreel-backend/pkg/logger"
)

// StoryIngest accepts one raw source item. Duplicate submissions return the
// duplicate outcome rather than an error so collectors can retry blindly.
func StoryIngest(svc ingest.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ingest service unavailable"))
			return
		}

		var payload ingest.RawItem
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Ingest(r.Context(), payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := http.StatusOK
		if result.Outcome == ingest.OutcomeInserted {
			status = http.StatusCreated
		}
		responses.WriteSuccessStatus(w, status, result)
	}
}

type storyBatchRequest struct {
	Items []ingest.RawItem `json:"items" validate:"required,min=1,max=100,dive"`
}

// StoryIngestBatch accepts a page of raw items in one call.
func StoryIngestBatch(svc ingest.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ingest service unavailable"))
			return
		}

		var payload storyBatchRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := svc.IngestBatch(r.Context(), payload.Items)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, summary)
	}
}

// StoryRequeue puts a failed story back in the selection pool. Operator-only.
func StoryRequeue(machine processing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if machine == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "processing service unavailable"))
			return
		}

		storyID, err := validators.ParsePathUUID(chi.URLParam(r, "storyId"), "storyId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := machine.Requeue(r.Context(), storyID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"story_id": storyID.String(), "status": "pending"})
	}
}

// PipelineStatus reports story counts per lifecycle state for the dashboard.
func PipelineStatus(selector scoring.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if selector == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "scoring service unavailable"))
			return
		}

		counts, err := selector.CountByStatus(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"stories": counts})
	}
}
