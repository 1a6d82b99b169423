package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wyatt/creatorscout/internal/api"
	"github.com/wyatt/creatorscout/internal/config"
	"github.com/wyatt/creatorscout/internal/logger"
	"github.com/wyatt/creatorscout/internal/repository"
	"github.com/wyatt/creatorscout/internal/service"
	"github.com/wyatt/creatorscout/internal/storage"
)

func main() {
	// Load configuration
	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	appLogger := logger.NewFromEnv(nil)
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize database: error=%v", err)
	}

	// Initialize repositories
	jobRepo := repository.NewJobRepository(db)
	campaignRepo := repository.NewCampaignRepository(db)

	progressCache, err := repository.NewProgressCache(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to redis: error=%v", err)
	}
	if progressCache != nil {
		defer progressCache.Close()
		logger.Info("Progress cache enabled: addr=%s", cfg.Redis.Addr)
	}

	qdrantRepo := repository.NewQdrantRepository(&repository.QdrantConnectionConfig{
		Host:            cfg.Qdrant.Host,
		Port:            cfg.Qdrant.Port,
		Collection:      cfg.Qdrant.Collection,
		APIKey:          cfg.Qdrant.APIKey,
		UseTLS:          cfg.Qdrant.UseTLS,
		VectorDimension: cfg.Embedding.Dimensions,
	})
	defer qdrantRepo.Close()

	// The collection is created here when missing; a failure is not fatal
	// so the API can come up before the vector store does.
	ctx := context.Background()
	if err := qdrantRepo.EnsureCollection(ctx); err != nil {
		logger.Warn("Could not ensure qdrant collection at startup: error=%v", err)
	}

	// Initialize snapshot archive (optional)
	archive, err := storage.NewArchive(&cfg.Archive)
	if err != nil {
		logger.Fatal("Failed to initialize snapshot archive: error=%v", err)
	}
	if archive != nil {
		logger.Info("Snapshot archive enabled: bucket=%s", cfg.Archive.Bucket)
	}

	// Initialize services
	tracker := service.NewJobProgressTracker(jobRepo, progressCache)
	binder := service.NewCampaignBinder(campaignRepo)
	expansionService := service.NewQueryExpansionService(&cfg.LLM, &cfg.Expansion)
	embeddingService := service.NewEmbeddingService(&cfg.Embedding)
	searchService := service.NewVectorSearchService(embeddingService, qdrantRepo, &cfg.Pipeline)
	collectionService := service.NewBrightDataService(&cfg.Collection)
	collector := service.NewBatchCollector(collectionService, &cfg.Collection)
	fitService := service.NewProfileFitService(&cfg.LLM, &cfg.Scoring)
	campaignService := service.NewCampaignService(campaignRepo)

	pipeline := service.NewPipelineOrchestrator(
		tracker,
		campaignRepo,
		binder,
		expansionService,
		searchService,
		collector,
		fitService,
		archive,
		cfg,
	)

	// Setup router
	router := api.SetupRouter(pipeline, campaignService, &cfg.Server)

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Starting API server: port=%d, mode=%s", cfg.Server.Port, cfg.Server.Mode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server: error=%v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout. Running pipeline jobs are background
	// tasks; their progress is durable, and an interrupted job resumes as a
	// new submission rather than in place.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown: error=%v", err)
	}

	logger.Info("Server exited")
}
