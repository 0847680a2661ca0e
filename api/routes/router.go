package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openbilling/qualpay-bridge/api/controllers"
	"github.com/openbilling/qualpay-bridge/api/middleware"
	"github.com/openbilling/qualpay-bridge/internal/paymentmethods"
	"github.com/openbilling/qualpay-bridge/internal/tenantconfig"
	"github.com/openbilling/qualpay-bridge/pkg/config"
	"github.com/openbilling/qualpay-bridge/pkg/db"
	"github.com/openbilling/qualpay-bridge/pkg/logger"
	"github.com/openbilling/qualpay-bridge/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	registry *prometheus.Registry,
	paymentService *paymentmethods.Service,
	tenantRegistry *tenantconfig.Registry,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	var redisP redis.Pinger
	if redisClient != nil {
		redisP = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/plugin/v1", func(r chi.Router) {
		r.Use(middleware.TenantContext(logg))

		r.Route("/accounts/{accountId}/paymentMethods", func(r chi.Router) {
			r.Post("/", controllers.AddPaymentMethod(paymentService, logg))
			r.Get("/", controllers.ListPaymentMethods(paymentService, logg))
		})

		r.Route("/paymentMethods/{paymentMethodId}", func(r chi.Router) {
			r.Get("/", controllers.GetPaymentMethod(paymentService, logg))
			r.Delete("/", controllers.DeletePaymentMethod(paymentService, logg))
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/authorize", controllers.TransactionAuthorize(paymentService, logg))
			r.Post("/capture", controllers.TransactionCapture(paymentService, logg))
			r.Post("/purchase", controllers.TransactionPurchase(paymentService, logg))
			r.Post("/void", controllers.TransactionVoid(paymentService, logg))
			r.Post("/refund", controllers.TransactionRefund(paymentService, logg))
			r.Post("/credit", controllers.TransactionCredit(paymentService, logg))
		})

		r.Post("/notifications", controllers.GatewayNotification(paymentService, logg))
	})

	r.Route("/admin/v1/tenants/{tenantId}/config", func(r chi.Router) {
		r.Put("/", controllers.TenantConfigUpsert(tenantRegistry, logg))
		r.Delete("/", controllers.TenantConfigDelete(tenantRegistry, logg))
	})

	return r
}
