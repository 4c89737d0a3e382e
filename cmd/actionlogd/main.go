package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/consolehq/actionlog/pkg/async"
	"github.com/consolehq/actionlog/pkg/audit"
	"github.com/consolehq/actionlog/pkg/config"
	"github.com/consolehq/actionlog/pkg/observability"
	"github.com/consolehq/actionlog/pkg/storage/postgres"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	db, err := postgres.Connect(cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to postgres")
	}
	defer db.Close()

	store, err := audit.NewPostgresStore(db)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize audit store")
	}

	metrics := observability.NewMetrics(prometheus.NewRegistry())

	pipeline := audit.NewPipeline(store, audit.PipelineOptions{
		BufferSize:   cfg.Audit.PipelineBuffer,
		WriteTimeout: cfg.Audit.WriteTimeout,
		Logger:       log,
		Metrics:      metrics,
	})

	interceptor := audit.NewInterceptor(audit.NewBuilder(), pipeline, audit.InterceptorOptions{
		Logger:  log,
		Metrics: metrics,
	})

	service := audit.NewService(store, audit.ServiceOptions{
		StatsWindow: cfg.Audit.StatsWindow,
		Logger:      log,
		Metrics:     metrics,
	})

	// Operator API; its own mutating calls are audited through the
	// same interceptor.
	router := mux.NewRouter()
	audit.NewHandlers(service, log).RegisterRoutes(router)
	handler := audit.NewMiddleware(interceptor).Handler(router)

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthRouter := mux.NewRouter()
	health := observability.NewHealthChecker(db)
	healthRouter.HandleFunc("/healthz", health.Liveness).Methods("GET")
	healthRouter.HandleFunc("/readyz", health.Readiness).Methods("GET")
	healthRouter.Handle("/metrics", metrics.Handler()).Methods("GET")

	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthRouter,
	}

	// Daily retention cleanup.
	scheduler := cron.New()
	_, err = scheduler.AddFunc(cfg.Audit.CleanupSchedule, func() {
		async.SafeGo(context.Background(), 5*time.Minute, "retention cleanup",
			func(ctx context.Context) error {
				result, err := service.Cleanup(ctx)
				if err != nil {
					return err
				}
				log.WithField("deleted", result.DeletedCount).Info("scheduled cleanup finished")
				return nil
			})
	})
	if err != nil {
		log.WithError(err).Fatal("failed to schedule retention cleanup")
	}
	scheduler.Start()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.WithField("addr", apiServer.Addr).Info("operator API listening")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	group.Go(func() error {
		log.WithField("addr", healthServer.Addr).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		_ = apiServer.Shutdown(shutdownCtx)
		_ = healthServer.Shutdown(shutdownCtx)

		cronCtx := scheduler.Stop()
		<-cronCtx.Done()

		// Buffered entries get a final write attempt before exit.
		if err := pipeline.Close(shutdownCtx); err != nil {
			log.WithError(err).Warn("pipeline drain incomplete")
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		log.WithError(err).Fatal("server error")
	}
	log.Info("shutdown complete")
}
