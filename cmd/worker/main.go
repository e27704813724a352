package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"famcoord/internal/config"
	"famcoord/internal/db"
	"famcoord/internal/ingest"
	"famcoord/internal/ledger"
	"famcoord/internal/llm"
	"famcoord/internal/mq"
	"famcoord/internal/mqhandler"
	"famcoord/internal/orchestrator"
	"famcoord/internal/patterns"
	"famcoord/internal/pipeline"
	"famcoord/internal/repository"
	redisclient "famcoord/internal/redis"
	"famcoord/internal/util"
	"famcoord/pkg/logger"
	"famcoord/pkg/outbox"
	pkgutil "famcoord/pkg/util"
)

const handlerMaxRetries = 3

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.NewLogger()
	defer log.Sync()

	log.Info("Starting worker...")

	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("DB initialization failed", zap.Error(err))
	}
	defer dbConn.Close()
	log.Info("Database connection established")

	rdb := redisclient.NewRedisClient(cfg.Redis)
	defer rdb.Close()

	deduper := util.NewDeduper(rdb, time.Hour, log)
	retryCounter := pkgutil.NewRetryCounter(rdb, time.Hour)
	jobGuard := util.NewJobGuard(rdb, "jobguard", time.Hour)
	discoveryGuard := util.NewJobGuard(rdb, "discoveryguard", 15*time.Minute)

	// Repositories
	outboxRepo := outbox.NewRepository(dbConn)
	jobRepo := repository.NewJobRepository(dbConn, outboxRepo)
	emailRepo := repository.NewAnalyzedEmailRepository(dbConn)
	patternRepo := repository.NewPatternRepository(dbConn, outboxRepo)
	logRepo := repository.NewLogRepository(dbConn)

	led := ledger.New(log, logRepo, nil)

	// External collaborators
	modelClient := llm.NewClient(cfg.Model.BaseURL, cfg.Model.Timeout(), cfg.Model.MaxRetries, cfg.Model.EmbeddingModel, log)
	fetcher := ingest.NewHTTPFetcher(cfg.Ingest.BaseURL, cfg.Ingest.Timeout())

	// Core components
	pipe := pipeline.New(modelClient, modelClient, led)
	orch := orchestrator.New(jobRepo, emailRepo, fetcher, pipe, led, log, orchestrator.Config{
		SubBatchSize:   cfg.Pipeline.SubBatchSize,
		SubBatchDelay:  cfg.Pipeline.SubBatchDelay(),
		FullFetchLimit: cfg.Pipeline.FullFetchLimit,
	})
	engine := patterns.NewEngine(emailRepo, patternRepo, modelClient, led, log)

	producer, err := mq.NewProducer(cfg.MQ.URL)
	if err != nil {
		log.Fatal("failed to init producer", zap.Error(err))
	}
	defer producer.Close()

	// Outbox dispatcher publishes job.completed / patterns.updated events
	dispatcher := outbox.NewDispatcher(outboxRepo, producer, log)
	go dispatcher.Start(context.Background())

	// Handlers
	jobHandler := mqhandler.NewJobCreatedHandler(jobRepo, orch, jobGuard, deduper, retryCounter, producer, handlerMaxRetries, log)
	patternsHandler := mqhandler.NewPatternsRequestedHandler(engine, discoveryGuard, retryCounter, producer, handlerMaxRetries, log)

	// (1) Consumer for job processing
	jobConsumer, err := mq.NewConsumer(cfg.MQ.URL, mq.RoutingJobCreated, log)
	if err != nil {
		log.Fatal("failed to init job consumer", zap.Error(err))
	}
	jobConsumer.SetHandler(jobHandler.Handle)
	go func() {
		if err := jobConsumer.StartConsuming(); err != nil {
			log.Fatal("job consumer failed", zap.Error(err))
		}
	}()
	defer jobConsumer.Close()

	// (2) Consumer for pattern discovery
	patternsConsumer, err := mq.NewConsumer(cfg.MQ.URL, mq.RoutingPatternsRequested, log)
	if err != nil {
		log.Fatal("failed to init patterns consumer", zap.Error(err))
	}
	patternsConsumer.SetHandler(patternsHandler.Handle)
	go func() {
		if err := patternsConsumer.StartConsuming(); err != nil {
			log.Fatal("patterns consumer failed", zap.Error(err))
		}
	}()
	defer patternsConsumer.Close()

	log.Info("All consumers started, worker is ready to process messages")

	// Keep worker running
	select {}
}
