package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/andresvelez/shortreel-backend/api/responses"
	"github.com/andresvelez/shortreel-backend/api/validators"
	"github.com/andresvelez/shortreel-backend/internal/publishing"
	"github.com/andresvelez/shortreel-backend/pkg/enums"
	pkgerrors "github.com/andresvelez/shortreel-backend/pkg/errors"
	"github.com/andresvelez/shortreel-backend/pkg/logger"
)

// PublicationsByContent lists every platform row for one content item.
func PublicationsByContent(svc publishing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "publishing service unavailable"))
			return
		}

		contentID, err := validators.ParsePathUUID(chi.URLParam(r, "contentId"), "contentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		pubs, err := svc.ListByContent(r.Context(), contentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, pubs)
	}
}

// PublicationsDue shows the dispatch queue: scheduled rows whose slot has
// already passed, in the order the workers will pick them up.
func PublicationsDue(svc publishing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "publishing service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 20, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		pubs, err := svc.DueForPublication(r.Context(), time.Now().UTC(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, pubs)
	}
}

// PipelineMonitor joins publications with their content and source story so
// operators can follow an item across the whole pipeline in one listing.
func PipelineMonitor(svc publishing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "publishing service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 500)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.Monitor(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, rows)
	}
}

type scheduleRequest struct {
	Platform      string     `json:"platform" validate:"omitempty,max=20"`
	ScheduledTime *time.Time `json:"scheduled_time"`
}

// PublicationSchedule books publication slots for a processed content item.
// Without a platform in the body, every configured platform gets a slot.
func PublicationSchedule(svc publishing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "publishing service unavailable"))
			return
		}

		contentID, err := validators.ParsePathUUID(chi.URLParam(r, "contentId"), "contentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload scheduleRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if strings.TrimSpace(payload.Platform) != "" {
			platform, err := enums.ParsePlatform(strings.TrimSpace(payload.Platform))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid platform"))
				return
			}
			when := time.Now().UTC()
			if payload.ScheduledTime != nil {
				when = payload.ScheduledTime.UTC()
			}
			pub, err := svc.ScheduleFor(r.Context(), contentID, platform, when)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteSuccessStatus(w, http.StatusCreated, pub)
			return
		}

		pubs, err := svc.ScheduleContent(r.Context(), contentID, time.Now().UTC())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, pubs)
	}
}
