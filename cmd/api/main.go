package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/andresvillarreal/comprabot-backend/api/routes"
	"github.com/andresvillarreal/comprabot-backend/internal/assistant"
	"github.com/andresvillarreal/comprabot-backend/internal/cart"
	"github.com/andresvillarreal/comprabot-backend/internal/catalog"
	"github.com/andresvillarreal/comprabot-backend/internal/messaging"
	"github.com/andresvillarreal/comprabot-backend/internal/purchase"
	"github.com/andresvillarreal/comprabot-backend/internal/speech"
	"github.com/andresvillarreal/comprabot-backend/internal/token"
	"github.com/andresvillarreal/comprabot-backend/pkg/config"
	"github.com/andresvillarreal/comprabot-backend/pkg/db"
	"github.com/andresvillarreal/comprabot-backend/pkg/logger"
	"github.com/andresvillarreal/comprabot-backend/pkg/metrics"
	"github.com/andresvillarreal/comprabot-backend/pkg/migrate"
	"github.com/andresvillarreal/comprabot-backend/pkg/pubsub"
	"github.com/andresvillarreal/comprabot-backend/pkg/redis"
)

const shutdownGrace = 15 * time.Second

var errProdNeedsPubSub = errors.New("token dispatch requires pubsub in production; set COMPRABOT_GCP_PROJECT_ID")

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	purchaseMetrics := metrics.NewPurchaseMetrics(registry)

	// Token dispatch rides Pub/Sub when a GCP project is configured. The
	// log dispatcher prints OTPs in clear text; dev environments only.
	var pubsubClient *pubsub.Client
	var dispatcher messaging.Dispatcher
	if cfg.GCP.ProjectID != "" {
		pubsubClient, err = pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		dispatcher, err = messaging.NewPubSubDispatcher(pubsubClient)
		if err != nil {
			logg.Error(context.Background(), "failed to create token dispatcher", err)
			os.Exit(1)
		}
	} else {
		if cfg.App.IsProd() {
			logg.Error(context.Background(), "refusing to start", errProdNeedsPubSub)
			os.Exit(1)
		}
		dispatcher = messaging.NewLogDispatcher(logg)
	}

	gormDB := dbClient.DB()

	catalogRepo := catalog.NewRepository(gormDB)
	catalogService, err := catalog.NewService(catalogRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	cartRepo := cart.NewRepository(gormDB)
	cartService, err := cart.NewService(cartRepo, catalogRepo, dbClient, cfg.Commerce, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	tokenRepo := token.NewRepository(gormDB)
	tokenAuthority, err := token.NewAuthority(tokenRepo, dispatcher, cfg.Token, logg, purchaseMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create token authority", err)
		os.Exit(1)
	}

	orchestrator, err := purchase.NewOrchestrator(
		purchase.NewOrderRepo(gormDB),
		purchase.NewSubmissionRepo(gormDB),
		cartRepo,
		tokenAuthority,
		dbClient,
		cfg.Commerce,
		cfg.Token,
		logg,
		purchaseMetrics,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create purchase orchestrator", err)
		os.Exit(1)
	}

	assistantService, err := assistant.NewService(cartService, catalogService, orchestrator, logg, purchaseMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create assistant service", err)
		os.Exit(1)
	}

	metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	handler := routes.NewRouter(
		cfg,
		logg,
		dbClient,
		redisClient,
		cartService,
		assistantService,
		orchestrator,
		speech.Disabled{},
		metricsHandler,
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-stopCtx.Done():
		logg.Info(ctx, "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	var closeErr error
	closeErr = multierr.Append(closeErr, server.Shutdown(shutdownCtx))
	closeErr = multierr.Append(closeErr, pubsubClient.Close())
	closeErr = multierr.Append(closeErr, redisClient.Close())
	closeErr = multierr.Append(closeErr, dbClient.Close())
	if closeErr != nil {
		logg.Error(ctx, "shutdown finished with errors", closeErr)
		os.Exit(1)
	}
	logg.Info(ctx, "shutdown complete")
}
