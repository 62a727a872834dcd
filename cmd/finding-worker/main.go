package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ErikRydengard/BSI/pkg/common/config"
	"github.com/ErikRydengard/BSI/pkg/common/database"
	"github.com/ErikRydengard/BSI/pkg/common/kafka"
	"github.com/ErikRydengard/BSI/pkg/common/logger"
	"github.com/ErikRydengard/BSI/pkg/microbiology"
	"github.com/ErikRydengard/BSI/pkg/storage"
	"github.com/ErikRydengard/BSI/pkg/worker"
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

	catalog, err := microbiology.LoadCatalog(cfg.ContaminantCatalogPath)
	if err != nil {
		logger.Log.WithError(err).Warn("failed to load contaminant catalog, using defaults")
	}

	consumer := kafka.NewConsumer(cfg.RawFindingsTopic, cfg.KafkaGroupID)
	defer consumer.Close()
	producer := kafka.NewProducer(cfg.ClassifiedTopic)
	defer producer.Close()

	w := worker.New(
		consumer,
		producer,
		repo,
		microbiology.RelevanceMethod(cfg.RelevanceMethod),
		catalog,
		cfg.WorkerBatchWindow,
	)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Log.Info("Shutting down finding worker...")
		cancel()
	}()

	logger.Log.WithField("topic", cfg.RawFindingsTopic).Info("Finding worker consuming")
	if err := w.Run(ctx); err != nil && err != context.Canceled {
		logger.Log.WithError(err).Error("Finding worker stopped with error")
	}
	logger.Log.Info("Finding worker stopped")
}
