package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/factoring-portal/api/controllers"
	webhookcontrollers "github.com/angelmondragon/factoring-portal/api/controllers/webhooks"
	"github.com/angelmondragon/factoring-portal/api/middleware"
	"github.com/angelmondragon/factoring-portal/internal/fundingrequests"
	"github.com/angelmondragon/factoring-portal/internal/notifications"
	"github.com/angelmondragon/factoring-portal/pkg/auth/session"
	"github.com/angelmondragon/factoring-portal/pkg/config"
	"github.com/angelmondragon/factoring-portal/pkg/logger"
	"github.com/angelmondragon/factoring-portal/pkg/metrics"
	pkgredis "github.com/angelmondragon/factoring-portal/pkg/redis"
)

const (
	maxUploadFiles    = 10
	multipartOverhead = 1 << 20
)

type sessionManager interface {
	session.RevocationChecker
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
}

// Observability bundles the health checks and metrics surfaces mounted outside /api.
type Observability struct {
	Readiness   map[string]controllers.Pinger
	HTTPMetrics *metrics.HTTPMetrics
	// Metrics serves /metrics when set.
	Metrics     http.Handler
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	obs Observability,
	sessionManager sessionManager,
	resolver middleware.IdentityResolver,
	idempotencyStore pkgredis.IdempotencyStore,
	requestsService fundingrequests.Service,
	notificationsService notifications.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Recoverer(logg),
		middleware.Logging(logg, obs.HTTPMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, obs.Readiness))
	})
	if obs.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", obs.Metrics)
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/pandadoc", webhookcontrollers.PandaDocWebhook(requestsService, cfg.PandaDoc.WebhookSecret, logg))
	})

	// Idempotency is attached per route so the full chi pattern is known.
	idem := middleware.Idempotency(idempotencyStore, logg)
	uploadLimit := int64(cfg.GCS.MaxUploadMB)<<20*maxUploadFiles + multipartOverhead

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessionManager, resolver, logg))

		r.Post("/auth/logout", controllers.AuthLogout(sessionManager, logg))

		r.Route("/companies/{companyId}", func(r chi.Router) {
			r.Use(middleware.CompanyAccess(resolver, logg))

			r.Route("/requests", func(r chi.Router) {
				r.Get("/", controllers.ListFundingRequests(requestsService, logg))

				r.Route("/{requestId}", func(r chi.Router) {
					r.Get("/", controllers.GetFundingRequest(requestsService, logg))
					r.Patch("/", controllers.UpdateFundingRequest(requestsService, logg))
					r.Delete("/", controllers.DeleteFundingRequest(requestsService, logg))

					r.With(idem).Post("/archive", controllers.ArchiveFundingRequest(requestsService, logg))
					r.With(idem).Post("/deny", controllers.DenyFundingRequest(requestsService, logg))
					r.With(idem).Post("/fund", controllers.FundFundingRequest(requestsService, logg))
					r.With(idem).Post("/force-sign", controllers.ForceSignFundingRequest(requestsService, logg))
					r.With(idem).Post("/documents", controllers.AttachDocuments(requestsService, uploadLimit, logg))

					r.Route("/contract", func(r chi.Router) {
						r.With(idem).Post("/generate", controllers.GenerateContract(requestsService, logg))
						r.With(idem).Post("/send", controllers.SendContract(requestsService, logg))
						r.Get("/link", controllers.ContractLink(requestsService, logg))
					})
				})
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", controllers.ListNotifications(notificationsService, logg))
				r.With(idem).Post("/read-all", controllers.MarkAllNotificationsRead(notificationsService, logg))
				r.With(idem).Post("/{notificationId}/read", controllers.MarkNotificationRead(notificationsService, logg))
			})
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessionManager, resolver, logg))
		r.Use(middleware.RequireStaff(logg))
		r.Get("/summary", controllers.AdminSummary(requestsService, logg))
	})

	return r
}
