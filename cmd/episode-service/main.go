package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/ErikRydengard/BSI/pkg/api"
	"github.com/ErikRydengard/BSI/pkg/common/config"
	"github.com/ErikRydengard/BSI/pkg/common/database"
	"github.com/ErikRydengard/BSI/pkg/common/kafka"
	"github.com/ErikRydengard/BSI/pkg/common/logger"
	"github.com/ErikRydengard/BSI/pkg/microbiology"
	"github.com/ErikRydengard/BSI/pkg/observability/metrics"
	"github.com/ErikRydengard/BSI/pkg/pipeline"
	"github.com/ErikRydengard/BSI/pkg/storage"
)

func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}

	repo := storage.NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate pipeline tables")
	}

	featureStore := storage.NewFeatureStore(database.GetRedis(), cfg.FeatureCacheTTL)

	catalog, err := microbiology.LoadCatalog(cfg.ContaminantCatalogPath)
	if err != nil {
		logger.Log.WithError(err).Warn("failed to load contaminant catalog, using defaults")
	}

	producer := kafka.NewProducer(cfg.ClassifiedTopic)
	defer producer.Close()

	service := api.NewService(repo, featureStore, producer, pipeline.Options{
		GapDays:            cfg.EpisodeGapDays,
		RelevanceMethod:    microbiology.RelevanceMethod(cfg.RelevanceMethod),
		Catalog:            catalog,
		PastWindowsDays:    cfg.HospPastWindowsDays,
		DaysAfterBaseline:  cfg.DaysAfterBaseline,
		DaysBeforeBaseline: cfg.DaysBeforeBaseline,
	})
	handler := api.NewHandler(service)

	router := mux.NewRouter()
	router.Use(api.Recovery, api.Logging, api.CORS)
	router.Use(api.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
	router.Use(api.BodyLimit(cfg.MaxRequestBody))

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)
	router.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w)
	}).Methods(http.MethodGet)

	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	if cfg.OIDCIssuer != "" {
		authenticator, err := api.NewOIDCAuthenticator(cfg.OIDCIssuer, cfg.OIDCClientID, cfg.OIDCClientSecret)
		if err != nil {
			logger.Log.WithError(err).Fatal("failed to configure OIDC")
		}
		apiRouter.Use(api.Authenticate(authenticator))
	}
	handler.Register(apiRouter)

	address := fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort)
	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithField("addr", address).Info("Episode service listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start episode service")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down episode service...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Episode service forced to shutdown")
	}
	logger.Log.Info("Episode service stopped")
}
