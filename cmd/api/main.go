package main

import (
	"go.uber.org/zap"

	"famcoord/internal/api"
	"famcoord/internal/config"
	"famcoord/internal/db"
	"famcoord/internal/mq"
	"famcoord/internal/repository"
	"famcoord/pkg/logger"
	"famcoord/pkg/outbox"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.NewLogger()
	defer log.Sync()

	log.Info("Starting API server...")

	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("DB initialization failed", zap.Error(err))
	}
	defer dbConn.Close()
	log.Info("Database connection established")

	producer, err := mq.NewProducer(cfg.MQ.URL)
	if err != nil {
		log.Fatal("failed to init producer", zap.Error(err))
	}
	defer producer.Close()

	// Repositories
	outboxRepo := outbox.NewRepository(dbConn)
	userRepo := repository.NewUserRepository(dbConn)
	jobRepo := repository.NewJobRepository(dbConn, outboxRepo)
	emailRepo := repository.NewAnalyzedEmailRepository(dbConn)
	patternRepo := repository.NewPatternRepository(dbConn, outboxRepo)

	// Handlers
	authHandler := api.NewAuthHandler(userRepo, cfg.JWT.Secret)
	jobHandler := api.NewJobHandler(jobRepo, producer, log)
	emailHandler := api.NewEmailHandler(emailRepo)
	patternHandler := api.NewPatternHandler(patternRepo, producer, log)

	router := api.NewRouter(authHandler, jobHandler, emailHandler, patternHandler, cfg.JWT.Secret, dbConn, log)

	log.Info("API server listening", zap.String("port", cfg.Server.Port))
	if err := router.Run(cfg.Server.Port); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}
