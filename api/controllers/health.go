package controllers

import (
	"net/http"

	"github.com/andresvelez/shortreel-backend/api/responses"
	"github.com/andresvelez/shortreel-backend/pkg/config"
	"github.com/andresvelez/shortreel-backend/pkg/db"
	pkgerrors "github.com/andresvelez/shortreel-backend/pkg/errors"
	"github.com/andresvelez/shortreel-backend/pkg/logger"
	"github.com/andresvelez/shortreel-backend/pkg/redis"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-ShortReel-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady verifies the backing stores respond before reporting ready.
// Redis is optional; a nil client is skipped rather than failed.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-ShortReel-Env", cfg.App.Env)

		checks := map[string]string{"db": "ok", "redis": "skipped"}

		if dbP == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "database unavailable"))
			return
		}
		if err := dbP.Ping(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "database ping failed"))
			return
		}

		if redisClient != nil {
			if err := redisClient.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis ping failed"))
				return
			}
			checks["redis"] = "ok"
		}

		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
