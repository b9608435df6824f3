package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/andresvelez/shortreel-backend/api/controllers"
	"github.com/andresvelez/shortreel-backend/api/middleware"
	"github.com/andresvelez/shortreel-backend/internal/audit"
	"github.com/andresvelez/shortreel-backend/internal/ingest"
	"github.com/andresvelez/shortreel-backend/internal/processing"
	"github.com/andresvelez/shortreel-backend/internal/publishing"
	"github.com/andresvelez/shortreel-backend/internal/scoring"
	"github.com/andresvelez/shortreel-backend/internal/sysconfig"
	"github.com/andresvelez/shortreel-backend/pkg/config"
	"github.com/andresvelez/shortreel-backend/pkg/db"
	"github.com/andresvelez/shortreel-backend/pkg/logger"
	"github.com/andresvelez/shortreel-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	promRegistry *prometheus.Registry,
	ingestService ingest.Service,
	selectorService scoring.Service,
	machineService processing.Service,
	publisherService publishing.Service,
	configService sysconfig.Service,
	auditService audit.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	if promRegistry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/stories", func(r chi.Router) {
			r.Post("/", controllers.StoryIngest(ingestService, logg))
			r.Post("/batch", controllers.StoryIngestBatch(ingestService, logg))
		})

		r.Get("/pipeline/status", controllers.PipelineStatus(selectorService, logg))

		r.Route("/content/{contentId}/publications", func(r chi.Router) {
			r.Get("/", controllers.PublicationsByContent(publisherService, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.AdminAuth(cfg.Admin, logg))

		r.Post("/stories/{storyId}/requeue", controllers.StoryRequeue(machineService, logg))
		r.Post("/content/{contentId}/publications", controllers.PublicationSchedule(publisherService, logg))
		r.Get("/publications/due", controllers.PublicationsDue(publisherService, logg))
		r.Get("/pipeline/monitor", controllers.PipelineMonitor(publisherService, logg))

		r.Route("/errors", func(r chi.Router) {
			r.Get("/", controllers.ErrorLogList(auditService, logg))
			r.Post("/{errorId}/resolve", controllers.ErrorLogResolve(auditService, logg))
		})

		r.Route("/config", func(r chi.Router) {
			r.Get("/", controllers.ConfigList(configService, logg))
			r.Put("/{key}", controllers.ConfigSet(configService, logg))
		})
	})

	return r
}
