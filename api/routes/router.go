package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/andresvillarreal/comprabot-backend/api/controllers"
	"github.com/andresvillarreal/comprabot-backend/api/middleware"
	"github.com/andresvillarreal/comprabot-backend/internal/assistant"
	"github.com/andresvillarreal/comprabot-backend/internal/cart"
	"github.com/andresvillarreal/comprabot-backend/internal/purchase"
	"github.com/andresvillarreal/comprabot-backend/internal/speech"
	"github.com/andresvillarreal/comprabot-backend/pkg/config"
	"github.com/andresvillarreal/comprabot-backend/pkg/db"
	"github.com/andresvillarreal/comprabot-backend/pkg/logger"
	"github.com/andresvillarreal/comprabot-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	cartService cart.Service,
	assistantService assistant.Service,
	orchestrator purchase.Orchestrator,
	transcriber speech.Transcriber,
	metricsHandler http.Handler,
) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	assistantPolicy := middleware.AssistantRateLimitPolicy(cfg.RateLimit)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"database": dbP,
			"redis":    redisClient,
		}))
	})

	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Identity(cfg.JWT, logg))

		r.Route("/assistant", func(r chi.Router) {
			r.Use(middleware.RateLimit(assistantPolicy, redisClient, logg))
			r.Post("/text", controllers.AssistantText(assistantService, logg))
			r.Post("/audio", controllers.AssistantAudio(assistantService, transcriber, logg))
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartView(cartService, logg))
			r.With(middleware.Idempotency(redisClient, logg)).Post("/add", controllers.CartAdd(cartService, logg))
			r.With(middleware.Idempotency(redisClient, logg)).Post("/remove", controllers.CartRemove(cartService, logg))
			r.With(middleware.Idempotency(redisClient, logg)).Post("/update-qty", controllers.CartUpdateQty(cartService, logg))
		})

		r.Route("/purchase", func(r chi.Router) {
			r.With(middleware.Idempotency(redisClient, logg)).Post("/step", controllers.PurchaseStep(orchestrator, logg))
		})
	})

	return r
}
