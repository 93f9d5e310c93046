package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rxera/rxledger-backend/api/controllers"
	"github.com/rxera/rxledger-backend/api/middleware"
	"github.com/rxera/rxledger-backend/internal/dashboard"
	"github.com/rxera/rxledger-backend/internal/inventory"
	"github.com/rxera/rxledger-backend/internal/ledger"
	"github.com/rxera/rxledger-backend/internal/notifier"
	"github.com/rxera/rxledger-backend/internal/patients"
	"github.com/rxera/rxledger-backend/internal/prescriptions"
	"github.com/rxera/rxledger-backend/internal/translog"
	"github.com/rxera/rxledger-backend/pkg/config"
	"github.com/rxera/rxledger-backend/pkg/db"
	"github.com/rxera/rxledger-backend/pkg/logger"
	"github.com/rxera/rxledger-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	registry *prometheus.Registry,
	broker *notifier.Broker,
	inventoryService inventory.Service,
	ledgerService *ledger.Service,
	translogService *translog.Service,
	prescriptionService prescriptions.Service,
	patientService patients.Service,
	dashboardService *dashboard.Service,
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
		r.Get("/ready", controllers.HealthReady(cfg, dbP, redisClient, logg))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	// Assign the interface only for a live client: a typed nil *redis.Client
	// would slip past the middleware's nil check and panic on first use.
	var idempotencyStore redis.IdempotencyStore
	if redisClient != nil {
		idempotencyStore = redisClient
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Route("/inventory", func(r chi.Router) {
			r.Get("/", controllers.ListItems(inventoryService, logg))
			r.Post("/", controllers.CreateItem(inventoryService, logg))
			r.Get("/alerts", controllers.LowStockAlerts(inventoryService, logg))
			r.Post("/consume", controllers.ConsumeBulk(ledgerService, logg))
			r.Route("/{itemID}", func(r chi.Router) {
				r.Get("/", controllers.GetItem(inventoryService, logg))
				r.Put("/", controllers.UpdateItem(inventoryService, logg))
				r.Delete("/", controllers.RetireItem(inventoryService, logg))
				r.Post("/restock", controllers.Restock(ledgerService, logg))
				r.Post("/consume", controllers.Consume(ledgerService, logg))
				r.Get("/transactions", controllers.ItemTransactions(translogService, logg))
			})
		})

		r.Route("/prescriptions", func(r chi.Router) {
			r.Get("/", controllers.ListPrescriptions(prescriptionService, logg))
			r.Post("/", controllers.CreatePrescription(prescriptionService, logg))
			r.Route("/{prescriptionID}", func(r chi.Router) {
				r.Get("/", controllers.GetPrescription(prescriptionService, logg))
				r.Post("/complete", controllers.CompletePrescription(prescriptionService, logg))
				r.Get("/transactions", controllers.PrescriptionTransactions(translogService, logg))
			})
		})

		r.Route("/patients", func(r chi.Router) {
			r.Get("/", controllers.ListPatients(patientService, logg))
			r.Post("/", controllers.RegisterPatient(patientService, logg))
			r.Route("/{patientID}", func(r chi.Router) {
				r.Get("/", controllers.GetPatient(patientService, logg))
				r.Put("/", controllers.UpdatePatient(patientService, logg))
			})
		})

		r.Get("/transactions", controllers.RecentTransactions(translogService, logg))
		r.Get("/dashboard", controllers.DashboardOverview(dashboardService, logg))
		r.Get("/events", controllers.StreamEvents(broker, logg))
	})

	return r
}
