// Package main runs the rental application intake API over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"rental-application-engine/internal/config"
	"rental-application-engine/internal/handlers"
	"rental-application-engine/internal/metrics"
	"rental-application-engine/internal/services/assembler"
	"rental-application-engine/internal/services/database"
	"rental-application-engine/internal/services/extraction"
	"rental-application-engine/internal/services/intake"
	pdfservice "rental-application-engine/internal/services/pdf"
	s3service "rental-application-engine/internal/services/s3"
	sesservice "rental-application-engine/internal/services/ses"
	"rental-application-engine/internal/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := utils.InitLogger(cfg.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer utils.Sync()
	logger := utils.GetLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(cfg)
	if err != nil {
		logger.Fatal("Could not connect to database", zap.Error(err))
	}
	defer db.Close()

	storage, err := s3service.NewService(ctx, cfg)
	if err != nil {
		logger.Fatal("Could not create S3 client", zap.Error(err))
	}
	mailer, err := sesservice.NewService(ctx, cfg)
	if err != nil {
		logger.Fatal("Could not create SES client", zap.Error(err))
	}
	if cfg.OpenAIAPIKey == "" {
		logger.Warn("OPENAI_API_KEY is not set, every extraction will fail")
	}

	intakeMetrics := metrics.NewIntakeMetrics()
	analyzer := extraction.NewAdapter(extraction.NewVisionClient(extraction.ClientConfigFromApp(cfg)))
	orchestrator := intake.NewOrchestrator(storage, analyzer, pdfservice.NewRasterizer(), intake.OrchestratorConfig{
		MaxFileBytes: cfg.MaxUploadBytes,
		Recorder:     intakeMetrics,
	})

	applications := database.NewApplicationRepository(db)
	submitter := assembler.New(
		database.NewAccountRepository(db),
		database.NewPropertyRepository(db),
		applications,
		mailer,
	)
	reviewer := assembler.NewReviewer(applications, mailer)

	sessions := handlers.NewSessionStore(intake.DefaultCatalog(), handlers.DefaultSessionTTL, intakeMetrics)
	go sessions.RunJanitor(ctx, 5*time.Minute)

	mux := http.NewServeMux()
	handlers.NewIntakeHandler(sessions, orchestrator, submitter, handlers.IntakeOptions{
		Blobs:          storage,
		Recorder:       intakeMetrics,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}).Register(mux)
	handlers.NewApplicationsHandler(applications, reviewer, storage).Register(mux)

	health := handlers.NewHealthHandlerWith(db)
	mux.Handle("GET /health", health)
	mux.Handle("GET /api/health", health)
	mux.Handle("GET /metrics", intakeMetrics.Handler())

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%s", cfg.Port),
		Handler:           c.Handler(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("Rental application engine API server",
		zap.String("addr", server.Addr),
		zap.String("stage", cfg.Stage),
		zap.String("health", fmt.Sprintf("http://localhost:%s/health", cfg.Port)),
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("Server failed", zap.Error(err))
	}
	logger.Info("Server stopped")
}
