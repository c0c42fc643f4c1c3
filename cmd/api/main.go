package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/medplan/medplan-api/internal/config"
	"github.com/medplan/medplan-api/internal/handler/health"
	intakeHandler "github.com/medplan/medplan-api/internal/handler/intake"
	patientHandler "github.com/medplan/medplan-api/internal/handler/patient"
	"github.com/medplan/medplan-api/internal/plan"
	"github.com/medplan/medplan-api/internal/repository/redisstore"
	"github.com/medplan/medplan-api/internal/router"
	intakeService "github.com/medplan/medplan-api/internal/service/intake"
	reconcilerService "github.com/medplan/medplan-api/internal/service/reconciler"
	"github.com/medplan/medplan-api/pkg/keylock"
	"github.com/medplan/medplan-api/pkg/logger"
	"github.com/medplan/medplan-api/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)
	appMetrics := metrics.NewMetrics("medplan")

	store, err := redisstore.New(cfg.Redis, appMetrics)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to state store")
	}
	defer store.Close()

	// One lock set for everything that rewrites patient documents.
	locks := keylock.New()

	intakeSvc := intakeService.NewService(store, locks, cfg.Adapter.Namespace, appMetrics, appLogger)
	reconciler := reconcilerService.NewService(store, locks, cfg.Adapter.Namespace, reconcilerService.Config{
		BackfillDays: cfg.Reconciler.BackfillDays,
		Interval:     time.Duration(cfg.Reconciler.IntervalSeconds) * time.Second,
		Grace:        time.Duration(cfg.Reconciler.GraceMinutes) * time.Minute,
		SlotTimes:    plan.ParseSlotTimes(cfg.Reconciler.SlotTimes),
	}, appMetrics, appLogger)

	r := router.NewRouter(
		intakeHandler.NewHandler(intakeSvc, appMetrics),
		patientHandler.NewHandler(intakeSvc),
		health.NewHandler(store),
		router.RouterConfig{
			RateLimitRPS:  100,
			RateBurst:     50,
			MetricsPrefix: "medplan",
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	reconciler.Start(context.Background())

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()
	log.Info().Int("port", cfg.Server.Port).Str("namespace", cfg.Adapter.Namespace).Msg("server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	reconciler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
